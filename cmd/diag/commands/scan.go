package commands

import (
	"fmt"
	"io"

	"cooling_control"

	"github.com/spf13/cobra"
)

func newScanCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "List devices responding on the I2C and 1-Wire buses",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp cooling_control.ScanResponse
			if err := opts.client().getJSON(cmd.Context(), "/api/v1/diag/scan", &resp); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			out := cmd.OutOrStdout()
			if ok, err := encode(out, opts.format, resp); ok {
				return err
			}
			printScan(out, resp)
			return nil
		},
	}
}

func printScan(w io.Writer, resp cooling_control.ScanResponse) {
	fmt.Fprintln(w, "I2C:")
	printList(w, resp.I2C)
	if resp.OneWire != nil {
		fmt.Fprintln(w, "1-Wire:")
		printList(w, resp.OneWire)
	}
}

func printList(w io.Writer, items []string) {
	if len(items) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	for _, it := range items {
		fmt.Fprintf(w, "  %s\n", it)
	}
}
