package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

const (
	defaultAPIURL  = "http://localhost:8080"
	defaultTimeout = 10 * time.Second
	tokenEnv       = "COOLING_TOKEN"
)

type options struct {
	apiURL  string
	token   string
	timeout time.Duration
	format  string
}

// NewRootCmd builds the command tree. Every subcommand talks to the
// controller's HTTP API so bus access stays serialized in one process.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "diag",
		Short:         "Diagnostics for the cooling controller",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.apiURL, "api-url", defaultAPIURL, "controller API URL")
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv(tokenEnv), "bearer token (default $"+tokenEnv+")")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", defaultTimeout, "request timeout")
	root.PersistentFlags().StringVar(&opts.format, "format", "table", "output format (table, json, yaml)")

	root.AddCommand(newScanCmd(opts), newReadCmd(opts), newStatusCmd(opts))
	return root
}

// Execute runs the CLI and exits 1 on any error, including missing sensors.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (o *options) client() *client {
	return newClient(o.apiURL, o.token, o.timeout)
}
