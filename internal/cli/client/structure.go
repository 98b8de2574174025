package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

type ResolveStructureRequest struct {
	Prompt      string `json:"prompt"`
	Intent      string `json:"intent,omitempty"`
	FunnelStage string `json:"funnel_stage,omitempty"`
	Platform    string `json:"platform,omitempty"`
}

type ScoredStructure struct {
	Candidate Structure `json:"candidate"`
	Score     int       `json:"score"`
}

type StructureResolution struct {
	Selected Structure         `json:"selected"`
	Scores   []ScoredStructure `json:"scores"`
}

// StructureCmd creates the structure command.
func StructureCmd() *cobra.Command {
	var req ResolveStructureRequest

	cmd := &cobra.Command{
		Use:   "structure <prompt>",
		Short: "Resolve the content structure for a prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Prompt = args[0]
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			resp, err := api.Post(cmd.Context(), "/v1/structures/resolve", req)
			if err != nil {
				return fmt.Errorf("structure resolution failed: %w", err)
			}

			var out StructureResolution
			if err := json.Unmarshal(resp.Data, &out); err != nil {
				return fmt.Errorf("failed to parse structure: %w", err)
			}
			if outputJSON {
				printJSON(out)
				return nil
			}

			s := out.Selected
			fmt.Printf("%s (fit %d, confidence %.2f)\n", s.Resolution, s.FitScore, s.Confidence)
			for i, section := range s.Sections {
				fmt.Printf("  %d. %s\n", i+1, section)
			}
			if len(out.Scores) > 0 {
				fmt.Println("\nCandidates:")
				for _, sc := range out.Scores {
					fmt.Printf("  %s  %d\n", sc.Candidate.ID, sc.Score)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&req.Intent, "intent", "i", "", "Intent hint")
	cmd.Flags().StringVar(&req.FunnelStage, "funnel", "", "Funnel stage hint")
	cmd.Flags().StringVar(&req.Platform, "platform", "", "Target platform")

	return cmd
}
