package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/me/dicomfn/pkg/model"
)

func newStatusCmd() *cobra.Command {
	var (
		status   string
		pageSize int
	)
	cmd := &cobra.Command{
		Use:   "status [instance_id]",
		Short: "Show one orchestration instance, or list them all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return showInstance(cmd.OutOrStdout(), args[0])
			}
			return listInstances(cmd.OutOrStdout(), status, pageSize)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Comma-separated runtime statuses to include (e.g. RUNNING,PENDING)")
	cmd.Flags().IntVar(&pageSize, "page-size", model.DefaultPageSize, "Instances fetched per request")
	return cmd
}

func showInstance(out io.Writer, id string) error {
	resp, err := client.Get("/api/v1/orchestrations/" + url.PathEscape(id))
	if err != nil {
		return fmt.Errorf("get orchestration: %w", err)
	}

	var st model.OrchestrationStatus
	if err := json.Unmarshal(resp.Data, &st); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	return render(out, st, func(w io.Writer) {
		fmt.Fprintf(w, "Instance: %s\n", st.InstanceID)
		fmt.Fprintf(w, "  Name:    %s\n", st.Name)
		fmt.Fprintf(w, "  Status:  %s\n", st.RuntimeStatus)
		fmt.Fprintf(w, "  Created: %s\n", relTime(st.CreatedTime))
		fmt.Fprintf(w, "  Updated: %s\n", relTime(st.LastUpdatedTime))
		if st.Output != nil {
			b, _ := json.Marshal(st.Output)
			fmt.Fprintf(w, "  Output:  %s\n", b)
		}
		if st.Error != "" {
			fmt.Fprintf(w, "  Error:   %s\n", st.Error)
		}
	})
}

// listInstances follows continuation tokens until every page is fetched.
func listInstances(out io.Writer, status string, pageSize int) error {
	var all []model.OrchestrationStatus
	token := ""
	for {
		q := url.Values{}
		if status != "" {
			q.Set("status", status)
		}
		q.Set("page_size", strconv.Itoa(pageSize))
		if token != "" {
			q.Set("continuation_token", token)
		}

		resp, err := client.Get("/api/v1/orchestrations/?" + q.Encode())
		if err != nil {
			return fmt.Errorf("list orchestrations: %w", err)
		}
		var page []model.OrchestrationStatus
		if err := json.Unmarshal(resp.Data, &page); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
		all = append(all, page...)

		if resp.Pagination == nil || !resp.Pagination.HasMore {
			break
		}
		token = resp.Pagination.ContinuationToken
	}

	return render(out, all, func(w io.Writer) {
		if len(all) == 0 {
			fmt.Fprintln(w, "No orchestrations found.")
			return
		}
		fmt.Fprintf(w, "%-36s  %-12s  %-10s  %-16s  %s\n", "ID", "NAME", "STATUS", "CREATED", "UPDATED")
		fmt.Fprintf(w, "%-36s  %-12s  %-10s  %-16s  %s\n", "--", "----", "------", "-------", "-------")
		for _, st := range all {
			fmt.Fprintf(w, "%-36s  %-12s  %-10s  %-16s  %s\n",
				st.InstanceID, st.Name, st.RuntimeStatus, relTime(st.CreatedTime), relTime(st.LastUpdatedTime))
		}
	})
}
