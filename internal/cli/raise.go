package cli

import (
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/dicomfn/internal/config"
)

type raiseResult struct {
	InstanceID string `json:"instance_id" yaml:"instance_id"`
	Event      string `json:"event" yaml:"event"`
}

func newRaiseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "raise <instance_id> <event> [payload-json]",
		Short: "Raise an external event on an orchestration instance",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := parseJSONArg(args, 2)
			if err != nil {
				return err
			}
			var body any
			if payload != nil {
				body = payload
			}
			return raise(cmd.OutOrStdout(), args[0], args[1], body)
		},
	}
}

// newResumeCmd raises the resume event stamped with the current time, the
// same signal the scheduler sends. The scheduler's own pause record is left
// in place and is cleared by its next resume.
func newResumeCmd() *cobra.Command {
	event := config.Default().Preemption.ResumeEventName
	cmd := &cobra.Command{
		Use:   "resume <instance_id>",
		Short: "Manually resume a paused orchestration instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return raise(cmd.OutOrStdout(), args[0], event, time.Now().UTC())
		},
	}
	cmd.Flags().StringVar(&event, "event", event, "Resume event name")
	return cmd
}

func raise(out io.Writer, id, event string, body any) error {
	_, err := client.Post("/api/v1/orchestrations/"+url.PathEscape(id)+"/events/"+url.PathEscape(event), body)
	if err != nil {
		return fmt.Errorf("raise event: %w", err)
	}
	res := raiseResult{InstanceID: id, Event: event}
	return render(out, res, func(w io.Writer) {
		fmt.Fprintf(w, "Raised %s on %s\n", event, id)
	})
}
