package commands

import (
	"fmt"
	"io"
	"time"

	"cooling_control"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the controller's latest published state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var st cooling_control.StateResponse
			if err := opts.client().getJSON(cmd.Context(), "/api/v1/control/state", &st); err != nil {
				return fmt.Errorf("failed to fetch status: %w", err)
			}
			out := cmd.OutOrStdout()
			if ok, err := encode(out, opts.format, st); ok {
				return err
			}
			printStatus(out, st, time.Now())
			return nil
		},
	}
}

func printStatus(w io.Writer, st cooling_control.StateResponse, now time.Time) {
	running := "stopped"
	if st.Running {
		running = "running"
	}
	fmt.Fprintf(w, "Loop      : %s (tick %s, updated %s)\n",
		running, humanize.Comma(int64(st.Tick)), humanize.RelTime(st.UpdatedAt, now, "ago", "from now"))
	fmt.Fprintf(w, "Mode      : %s  setpoint=%.1f°C  output=%.1f%%\n", st.Mode, st.Setpoint, st.OutputPct)
	fmt.Fprintf(w, "Regulated : %-12s %7.2f°C  ambient %.2f°C  %s\n", st.Label1, st.Temperature1, st.Ambient1, st.Status1)
	fmt.Fprintf(w, "Protected : %-12s %7.2f°C  ambient %.2f°C  %s\n", st.Label2, st.Temperature2, st.Ambient2, st.Status2)

	alarm := string(st.AlarmState)
	if st.PostrunRemainingSeconds > 0 {
		left := time.Duration(st.PostrunRemainingSeconds * float64(time.Second))
		alarm += ", ends " + humanize.RelTime(now.Add(left), now, "ago", "from now")
	}
	fmt.Fprintf(w, "Alarm     : %s (threshold %.1f°C, output %.0f%%)\n", alarm, st.AlarmThreshold, st.AlarmPercent)

	actuator := "ok"
	switch {
	case !st.ActuatorAvailable:
		actuator = "unavailable"
	case st.ActuatorFault != "":
		actuator = string(st.ActuatorFault)
	}
	fmt.Fprintf(w, "Actuator  : %s", actuator)
	if st.ActuatorMinOverride != nil {
		fmt.Fprintf(w, " (min override %d)", *st.ActuatorMinOverride)
	}
	fmt.Fprintln(w)
}
