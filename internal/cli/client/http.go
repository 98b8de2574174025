package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	envAPIURL = "KNOWCTX_API_URL"
	envOrgID  = "KNOWCTX_ORG_ID"
	envUserID = "KNOWCTX_USER_ID"

	defaultAPIURL = "http://localhost:8080"
)

type APIClient struct {
	baseURL    string
	orgID      string
	userID     string
	httpClient *http.Client
}

// NewAPIClientWithCmd resolves settings flag first, then environment, then
// the default URL. The organization is required.
func NewAPIClientWithCmd(cmd *cobra.Command) (*APIClient, error) {
	_ = godotenv.Load()

	var baseURL, orgID, userID string
	if cmd != nil {
		baseURL, _ = cmd.Flags().GetString("api-url")
		orgID, _ = cmd.Flags().GetString("org")
		userID, _ = cmd.Flags().GetString("user")
	}
	if baseURL == "" {
		baseURL = os.Getenv(envAPIURL)
	}
	if orgID == "" {
		orgID = os.Getenv(envOrgID)
	}
	if userID == "" {
		userID = os.Getenv(envUserID)
	}

	if orgID == "" {
		return nil, fmt.Errorf("organization not set (use --org or %s)", envOrgID)
	}
	if baseURL == "" {
		baseURL = defaultAPIURL
	}

	return NewAPIClientWithConfig(baseURL, orgID, userID), nil
}

func NewAPIClientWithConfig(baseURL, orgID, userID string) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		orgID:   orgID,
		userID:  userID,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// APIResponse is the envelope every endpoint answers with.
type APIResponse struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
	Code  string          `json:"code,omitempty"`
}

// APIError is a non-2xx answer. Data carries the payload of responses that
// fail with a body, such as insufficient context.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Data       json.RawMessage
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error (%d %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

func (c *APIClient) Get(ctx context.Context, path string, query url.Values) (*APIResponse, error) {
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *APIClient) Post(ctx context.Context, path string, body interface{}) (*APIResponse, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

func (c *APIClient) do(ctx context.Context, method, path string, body interface{}) (*APIResponse, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Org-ID", c.orgID)
	if c.userID != "" {
		req.Header.Set("X-User-ID", c.userID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
		}
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Code:       apiResp.Code,
			Message:    apiResp.Error,
			Data:       apiResp.Data,
		}
	}

	return &apiResp, nil
}

// AddFlags registers the connection flags shared by every client command.
func AddFlags(root *cobra.Command) {
	root.PersistentFlags().Bool("output", false, "Output as JSON")
	root.PersistentFlags().String("api-url", "", "API base URL (overrides "+envAPIURL+")")
	root.PersistentFlags().String("org", "", "Organization id (overrides "+envOrgID+")")
	root.PersistentFlags().String("user", "", "User id (overrides "+envUserID+")")
}

func printJSON(v interface{}) {
	output, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(output))
}

func truncate(s string, n int) string {
	r := []rune(strings.Join(strings.Fields(s), " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-3]) + "..."
}
