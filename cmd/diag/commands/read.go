package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"cooling_control"

	"github.com/spf13/cobra"
)

var errMissingSensors = errors.New("configured sensors missing from bus scan")

type readReport struct {
	Scan    cooling_control.ScanResponse    `json:"scan"`
	Read    cooling_control.RawReadResponse `json:"read"`
	Missing []string                        `json:"missing"`
}

func newReadCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "read",
		Short: "Scan the buses and read every configured sensor once",
		Long: `Reads every configured channel, bypassing smoothing, alarm and regulation.
Exits with status 1 when a configured sensor does not answer the bus scan.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := opts.client()
			var rep readReport
			if err := c.getJSON(cmd.Context(), "/api/v1/diag/scan", &rep.Scan); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			if err := c.getJSON(cmd.Context(), "/api/v1/diag/read", &rep.Read); err != nil {
				return fmt.Errorf("read: %w", err)
			}
			rep.Missing = missingChannels(rep.Scan, rep.Read)

			out := cmd.OutOrStdout()
			ok, err := encode(out, opts.format, rep)
			if err != nil {
				return err
			}
			if !ok {
				printRead(out, rep)
			}
			if len(rep.Missing) > 0 {
				return fmt.Errorf("%w: %s", errMissingSensors, strings.Join(rep.Missing, ", "))
			}
			return nil
		},
	}
}

// missingChannels lists configured addresses absent from both bus listings.
func missingChannels(scan cooling_control.ScanResponse, read cooling_control.RawReadResponse) []string {
	found := make(map[string]bool, len(scan.I2C)+len(scan.OneWire))
	for _, a := range scan.I2C {
		found[strings.ToLower(a)] = true
	}
	for _, id := range scan.OneWire {
		found[strings.ToLower(id)] = true
	}
	missing := []string{}
	for _, ch := range read.Channels {
		if !found[strings.ToLower(ch.Address)] {
			missing = append(missing, ch.Address)
		}
	}
	return missing
}

func printRead(w io.Writer, rep readReport) {
	printScan(w, rep.Scan)
	fmt.Fprintf(w, "\nChannels (%d ms):\n", rep.Read.DurationMs)
	for _, ch := range rep.Read.Channels {
		fmt.Fprintf(w, "  %-18s %-12s hot=%s cold=%s delta=%s status=%s",
			ch.Address, ch.Label, celsius(ch.Temperature), celsius(ch.Ambient), celsius(ch.Delta), ch.Status)
		if ch.StaleCount > 1 {
			fmt.Fprintf(w, " stale=%d", ch.StaleCount)
		}
		fmt.Fprintln(w)
	}
	for _, a := range rep.Missing {
		fmt.Fprintf(w, "MISSING %s\n", a)
	}
}

func celsius(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f°C", *v)
}
