package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"

	"github.com/spf13/cobra"
)

type startResult struct {
	Name       string `json:"name" yaml:"name"`
	InstanceID string `json:"instance_id" yaml:"instance_id"`
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <name> [input-json]",
		Short: "Start an orchestration instance",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := parseJSONArg(args, 1)
			if err != nil {
				return err
			}

			var body any
			if input != nil {
				body = input
			}
			resp, err := client.Post("/api/v1/orchestrations/"+url.PathEscape(args[0]), body)
			if err != nil {
				return fmt.Errorf("start orchestration: %w", err)
			}

			var res startResult
			if err := json.Unmarshal(resp.Data, &res); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			return render(cmd.OutOrStdout(), res, func(w io.Writer) {
				fmt.Fprintf(w, "Started %s: %s\n", res.Name, res.InstanceID)
			})
		},
	}
}
