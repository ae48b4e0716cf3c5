package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/me/dicomfn/pkg/model"
)

func newPausedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paused",
		Short: "List instances paused by the scheduler, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get("/api/v1/preemption/paused")
			if err != nil {
				return fmt.Errorf("list paused: %w", err)
			}

			var recs []model.PauseRecord
			if err := json.Unmarshal(resp.Data, &recs); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			return render(cmd.OutOrStdout(), recs, func(w io.Writer) {
				if len(recs) == 0 {
					fmt.Fprintln(w, "No orchestrations are paused.")
					return
				}
				fmt.Fprintf(w, "%-12s  %-36s  %s\n", "NAME", "ID", "PAUSED")
				for _, rec := range recs {
					fmt.Fprintf(w, "%-12s  %-36s  %s\n", rec.Ref.Name, rec.Ref.InstanceID, relTime(rec.PausedAt))
				}
			})
		},
	}
}
