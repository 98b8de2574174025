package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

type RetrieveRequest struct {
	Query            string   `json:"query"`
	Intent           string   `json:"intent,omitempty"`
	Limit            int      `json:"limit,omitempty"`
	Roles            []string `json:"roles,omitempty"`
	FolderIDs        []string `json:"folder_ids,omitempty"`
	KnowledgeItemIDs []string `json:"knowledge_item_ids,omitempty"`
	Trace            bool     `json:"trace,omitempty"`
}

type RetrievedChunk struct {
	ID              string  `json:"id"`
	KnowledgeItemID string  `json:"knowledge_item_id"`
	Text            string  `json:"text"`
	Role            string  `json:"role"`
	Kind            string  `json:"kind"`
	Distance        float64 `json:"distance"`
	Score           float64 `json:"score"`
	Protected       bool    `json:"protected,omitempty"`
	RecallInjected  bool    `json:"recall_injected,omitempty"`
}

type Classification struct {
	Intent      string `json:"intent"`
	Domain      string `json:"domain"`
	FunnelStage string `json:"funnel_stage"`
	Source      string `json:"source"`
}

type RetrieveResponse struct {
	Results        []RetrievedChunk  `json:"results"`
	Classification Classification    `json:"classification"`
	ExpandedTerms  []string          `json:"expanded_terms"`
	Mode           string            `json:"mode"`
	Decisions      []json.RawMessage `json:"decisions,omitempty"`
}

// RetrieveCmd creates the retrieve command.
func RetrieveCmd() *cobra.Command {
	var req RetrieveRequest

	cmd := &cobra.Command{
		Use:   "retrieve <query>",
		Short: "Retrieve ranked knowledge chunks",
		Long:  "Classifies the query, searches the organization's knowledge and prints the ranked chunks.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Query = args[0]
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			resp, err := api.Post(cmd.Context(), "/v1/retrieve", req)
			if err != nil {
				return fmt.Errorf("retrieve failed: %w", err)
			}

			var out RetrieveResponse
			if err := json.Unmarshal(resp.Data, &out); err != nil {
				return fmt.Errorf("failed to parse retrieval results: %w", err)
			}
			if outputJSON {
				printJSON(out)
				return nil
			}
			printRetrieval(out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&req.Intent, "intent", "i", "", "Intent hint (educational, persuasive, contrarian, story, emotional)")
	cmd.Flags().IntVarP(&req.Limit, "limit", "n", 0, "Maximum number of results")
	cmd.Flags().StringSliceVar(&req.Roles, "role", nil, "Restrict to chunk roles")
	cmd.Flags().StringSliceVar(&req.FolderIDs, "folder", nil, "Restrict to folders")
	cmd.Flags().StringSliceVar(&req.KnowledgeItemIDs, "item", nil, "Restrict to knowledge items")
	cmd.Flags().BoolVar(&req.Trace, "trace", false, "Include ranking decisions")

	return cmd
}

func printRetrieval(out RetrieveResponse) {
	c := out.Classification
	fmt.Printf("Intent: %s  Domain: %s  Funnel: %s  (%s, %s search)\n", c.Intent, c.Domain, c.FunnelStage, c.Source, out.Mode)
	if len(out.ExpandedTerms) > 0 {
		fmt.Printf("Terms: %s\n", strings.Join(out.ExpandedTerms, ", "))
	}
	if len(out.Results) == 0 {
		fmt.Println("No results found.")
		return
	}

	fmt.Printf("\nFound %d results:\n\n", len(out.Results))
	for i, r := range out.Results {
		var flags []string
		if r.Protected {
			flags = append(flags, "protected")
		}
		if r.RecallInjected {
			flags = append(flags, "recall")
		}
		suffix := ""
		if len(flags) > 0 {
			suffix = " [" + strings.Join(flags, ",") + "]"
		}
		fmt.Printf("%d. %s/%s  score %.3f  distance %.3f%s\n", i+1, r.Role, r.Kind, r.Score, r.Distance, suffix)
		fmt.Printf("   %s\n", truncate(r.Text, 100))
		fmt.Printf("   ID: %s  Item: %s\n", r.ID, r.KnowledgeItemID)
	}
}
