package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/me/dicomfn/internal/logging"
	"github.com/me/dicomfn/internal/scheduler"
)

func newTickCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Run one preemptive scheduler tick on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Post("/api/v1/preemption/tick", nil)
			if err != nil {
				return fmt.Errorf("tick: %w", err)
			}

			var res scheduler.Result
			if err := json.Unmarshal(resp.Data, &res); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			return render(cmd.OutOrStdout(), res, func(w io.Writer) {
				fmt.Fprintf(w, "Action: %s\n", res.Action)
				if res.Stalled != nil {
					fmt.Fprintf(w, "Stalled: %s idle for %s\n", res.Stalled.Ref(), res.Idle)
				}
				if res.Changed() {
					fmt.Fprintf(w, "Instances (%s): %s\n", humanize.Comma(int64(len(res.Instances))), logging.Refs(res.Instances))
				} else {
					fmt.Fprintln(w, "No instances changed.")
				}
				if res.SignalFailures > 0 {
					fmt.Fprintf(w, "Signal failures: %d\n", res.SignalFailures)
				}
			})
		},
	}
}
