package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/spf13/cobra"
)

type Template struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Sections []string `json:"sections"`
}

type PrepareRequest struct {
	Query           string    `json:"query"`
	Intent          string    `json:"intent,omitempty"`
	FunnelStage     string    `json:"funnel_stage,omitempty"`
	Platform        string    `json:"platform,omitempty"`
	Template        *Template `json:"template,omitempty"`
	UserContext     string    `json:"user_context,omitempty"`
	BusinessContext string    `json:"business_context,omitempty"`
	Budget          int       `json:"budget,omitempty"`
}

type TokenUsage struct {
	Chunks     int `json:"chunks"`
	Enrichment int `json:"enrichment"`
	Facts      int `json:"facts"`
	Total      int `json:"total"`
}

type ItemCounts struct {
	Chunks     int `json:"chunks"`
	Enrichment int `json:"enrichment"`
	Facts      int `json:"facts"`
}

type Structure struct {
	ID         string   `json:"id,omitempty"`
	Sections   []string `json:"sections"`
	Confidence float64  `json:"confidence"`
	FitScore   int      `json:"fit_score"`
	Resolution string   `json:"resolution,omitempty"`
}

type ContextResponse struct {
	Chunks           []RetrievedChunk `json:"chunks"`
	EnrichmentChunks []RetrievedChunk `json:"enrichment_chunks"`
	Facts            []struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"facts"`
	Structure      *Structure     `json:"structure,omitempty"`
	Budget         int            `json:"budget"`
	TokenUsage     TokenUsage     `json:"token_usage"`
	Used           ItemCounts     `json:"used"`
	Pruned         ItemCounts     `json:"pruned"`
	Classification Classification `json:"classification"`
	Mode           string         `json:"mode"`
	TraceKey       string         `json:"trace_key,omitempty"`
}

// ContextCmd creates the context command.
func ContextCmd() *cobra.Command {
	var (
		req          PrepareRequest
		templateFile string
	)

	cmd := &cobra.Command{
		Use:   "context <query>",
		Short: "Prepare a generation context",
		Long:  "Runs retrieval, structure resolution and budgeting and prints the assembled context.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Query = args[0]
			outputJSON, _ := cmd.Flags().GetBool("output")

			if templateFile != "" {
				raw, err := os.ReadFile(templateFile)
				if err != nil {
					return fmt.Errorf("failed to read template: %w", err)
				}
				var tpl Template
				if err := json.Unmarshal(raw, &tpl); err != nil {
					return fmt.Errorf("failed to parse template: %w", err)
				}
				req.Template = &tpl
			}

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			var data json.RawMessage
			resp, err := api.Post(cmd.Context(), "/v1/context", req)
			var apiErr *APIError
			switch {
			case err == nil:
				data = resp.Data
			case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnprocessableEntity && len(apiErr.Data) > 0:
				data = apiErr.Data
			default:
				return fmt.Errorf("context failed: %w", err)
			}

			var out ContextResponse
			if err := json.Unmarshal(data, &out); err != nil {
				return fmt.Errorf("failed to parse context: %w", err)
			}
			if outputJSON {
				printJSON(out)
			} else {
				printContext(out)
			}
			if apiErr != nil {
				return apiErr
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&req.Intent, "intent", "i", "", "Intent hint")
	cmd.Flags().StringVar(&req.FunnelStage, "funnel", "", "Funnel stage hint (awareness, consideration, decision)")
	cmd.Flags().StringVar(&req.Platform, "platform", "", "Target platform")
	cmd.Flags().StringVarP(&templateFile, "template", "t", "", "Template JSON file")
	cmd.Flags().StringVar(&req.UserContext, "user-context", "", "Free-form user text")
	cmd.Flags().StringVar(&req.BusinessContext, "business-context", "", "Business context, always admitted")
	cmd.Flags().IntVarP(&req.Budget, "budget", "b", 0, "Token budget (0 uses the server default)")

	return cmd
}

func printContext(out ContextResponse) {
	fmt.Printf("Intent: %s  Domain: %s  Funnel: %s  (%s search)\n",
		out.Classification.Intent, out.Classification.Domain, out.Classification.FunnelStage, out.Mode)
	fmt.Printf("Tokens: %d / %d  (chunks %d, enrichment %d, facts %d)\n",
		out.TokenUsage.Total, out.Budget, out.TokenUsage.Chunks, out.TokenUsage.Enrichment, out.TokenUsage.Facts)
	fmt.Printf("Used: %d chunks, %d enrichment, %d facts  Pruned: %d chunks, %d enrichment, %d facts\n",
		out.Used.Chunks, out.Used.Enrichment, out.Used.Facts, out.Pruned.Chunks, out.Pruned.Enrichment, out.Pruned.Facts)
	if s := out.Structure; s != nil {
		fmt.Printf("Structure: %s (fit %d, confidence %.2f): %v\n", s.Resolution, s.FitScore, s.Confidence, s.Sections)
	}
	for i, c := range out.Chunks {
		fmt.Printf("%d. [%s] %s\n", i+1, c.Kind, truncate(c.Text, 100))
	}
	for _, c := range out.EnrichmentChunks {
		fmt.Printf("+  [%s] %s\n", c.Role, truncate(c.Text, 100))
	}
	for _, f := range out.Facts {
		fmt.Printf("*  %s\n", truncate(f.Text, 100))
	}
	if out.TraceKey != "" {
		fmt.Printf("Trace: %s\n", out.TraceKey)
	}
}

// TraceCmd creates the trace command.
func TraceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trace <key>",
		Short: "Print a download URL for an archived decision trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			resp, err := api.Get(cmd.Context(), "/v1/traces", url.Values{"key": {args[0]}})
			if err != nil {
				return fmt.Errorf("trace lookup failed: %w", err)
			}
			var out struct {
				URL string `json:"url"`
			}
			if err := json.Unmarshal(resp.Data, &out); err != nil {
				return fmt.Errorf("failed to parse trace response: %w", err)
			}
			fmt.Println(out.URL)
			return nil
		},
	}
}
