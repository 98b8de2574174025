package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

type RetrievalLog struct {
	ID          string    `json:"id"`
	Query       string    `json:"query"`
	Intent      string    `json:"intent"`
	Domain      string    `json:"domain"`
	FunnelStage string    `json:"funnel_stage"`
	Mode        string    `json:"mode"`
	Structure   string    `json:"structure,omitempty"`
	TokensUsed  int       `json:"tokens_used"`
	Budget      int       `json:"budget"`
	Viable      bool      `json:"viable"`
	TraceKey    string    `json:"trace_key,omitempty"`
	DurationMs  int       `json:"duration_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

type RetrievalLogPage struct {
	Items   []RetrievalLog `json:"items"`
	Cursor  string         `json:"cursor,omitempty"`
	HasMore bool           `json:"has_more"`
}

// LogsCmd creates the logs command.
func LogsCmd() *cobra.Command {
	var (
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "List recent context preparations",
		Long:  "Lists the organization's retrieval logs, newest first. Pass the printed cursor to --cursor for the next page.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			query := url.Values{}
			if limit > 0 {
				query.Set("limit", strconv.Itoa(limit))
			}
			if cursor != "" {
				query.Set("cursor", cursor)
			}
			resp, err := api.Get(cmd.Context(), "/v1/retrieval-logs", query)
			if err != nil {
				return fmt.Errorf("listing logs failed: %w", err)
			}

			var page RetrievalLogPage
			if err := json.Unmarshal(resp.Data, &page); err != nil {
				return fmt.Errorf("failed to parse logs: %w", err)
			}
			if outputJSON {
				printJSON(page)
				return nil
			}
			printLogs(page)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Page size")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Cursor from a previous page")

	return cmd
}

func printLogs(page RetrievalLogPage) {
	if len(page.Items) == 0 {
		fmt.Println("No retrieval logs.")
		return
	}
	for _, l := range page.Items {
		status := "ok"
		if !l.Viable {
			status = "insufficient"
		}
		fmt.Printf("%s  %-12s %s/%s  %d/%d tokens  %dms  %s\n",
			l.CreatedAt.Local().Format("2006-01-02 15:04:05"), status, l.Intent, l.Mode,
			l.TokensUsed, l.Budget, l.DurationMs, truncate(l.Query, 60))
		if l.TraceKey != "" {
			fmt.Printf("    trace: %s\n", l.TraceKey)
		}
	}
	if page.HasMore {
		fmt.Printf("\nNext page: --cursor %s\n", page.Cursor)
	}
}
