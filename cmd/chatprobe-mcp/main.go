package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// askRequest mirrors the Chatprobe API request model.
type askRequest struct {
	Prompt    string `json:"prompt"`
	TimeoutMs int    `json:"timeout_ms,omitempty"`
	Format    string `json:"format,omitempty"`
	MaxAgeMs  int    `json:"max_age_ms,omitempty"`
}

// askResponse mirrors the Chatprobe API response model.
type askResponse struct {
	Success      bool           `json:"success"`
	Text         string         `json:"text"`
	MessageCount int            `json:"message_count"`
	Metadata     map[string]any `json:"metadata"`
	CapturedAt   string         `json:"captured_at"`
	Source       string         `json:"source"`
}

// experimentsResponse mirrors the Chatprobe experiments listing.
type experimentsResponse struct {
	Success     bool `json:"success"`
	Experiments []struct {
		ID          string  `json:"id"`
		Name        string  `json:"name"`
		Dataset     string  `json:"dataset"`
		Status      string  `json:"status"`
		CreatedAt   string  `json:"created_at"`
		CompletedAt *string `json:"completed_at"`
	} `json:"experiments"`
}

func main() {
	apiURL := os.Getenv("CHATPROBE_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("CHATPROBE_API_KEY")

	s := server.NewMCPServer(
		"chatprobe",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	askChatTool := mcp.NewTool("ask_chat",
		mcp.WithDescription("Submit a question to the target chat application and return the captured answer. Drives a real headless browser session, so each call takes tens of seconds."),
		mcp.WithString("prompt",
			mcp.Required(),
			mcp.Description("The question to submit"),
		),
		mcp.WithString("format",
			mcp.Description("Also render the answer markup: 'markdown', 'html', or 'text'"),
			mcp.Enum("markdown", "html", "text"),
		),
		mcp.WithNumber("timeout_ms",
			mcp.Description("Completion wait budget in milliseconds (default: 30000, max: 120000)"),
		),
		mcp.WithNumber("max_age_ms",
			mcp.Description("Accept a cached answer no older than this many milliseconds (0 forces a fresh capture)"),
		),
	)
	s.AddTool(askChatTool, handleAskChat(apiURL, apiKey))

	listExperimentsTool := mcp.NewTool("list_experiments",
		mcp.WithDescription("List recent evaluation experiments with their status."),
		mcp.WithNumber("limit",
			mcp.Description("Maximum experiments to return (default: 20)"),
		),
	)
	s.AddTool(listExperimentsTool, handleListExperiments(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func handleAskChat(apiURL, apiKey string) server.ToolHandlerFunc {
	// Generous client timeout: a capture can legitimately run to the two
	// minute server-side ceiling.
	client := &http.Client{Timeout: 180 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		prompt, err := request.RequireString("prompt")
		if err != nil {
			return mcp.NewToolResultError("prompt is required"), nil
		}

		reqBody := askRequest{
			Prompt:    prompt,
			Format:    request.GetString("format", ""),
			TimeoutMs: request.GetInt("timeout_ms", 0),
			MaxAgeMs:  request.GetInt("max_age_ms", 0),
		}

		body, err := json.Marshal(reqBody)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal request: %v", err)), nil
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+"/api/v1/ask", bytes.NewReader(body))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to create request: %v", err)), nil
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if apiKey != "" {
			httpReq.Header.Set("X-API-Key", apiKey)
		}

		resp, err := client.Do(httpReq)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read response: %v", err)), nil
		}

		var askResp askResponse
		if err := json.Unmarshal(respBody, &askResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		// Capture failures arrive as HTTP 200 with a failure-shaped body; the
		// error_type metadata carries the machine-readable code.
		if !askResp.Success {
			errMsg := askResp.Text
			if code, ok := askResp.Metadata["error_type"].(string); ok {
				errMsg = fmt.Sprintf("[%s] %s", code, askResp.Text)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("Source: %s\nCaptured: %s\n\n", askResp.Source, askResp.CapturedAt))

		// Prefer the rendered form when the caller asked for one.
		if rendered, ok := askResp.Metadata["rendered"].(map[string]any); ok {
			if content, ok := rendered["content"].(string); ok && content != "" {
				sb.WriteString(content)
				return mcp.NewToolResultText(sb.String()), nil
			}
		}
		sb.WriteString(askResp.Text)

		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleListExperiments(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 30 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		endpoint := apiURL + "/api/v1/experiments"
		if limit := request.GetInt("limit", 0); limit > 0 {
			endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to create request: %v", err)), nil
		}
		if apiKey != "" {
			httpReq.Header.Set("X-API-Key", apiKey)
		}

		resp, err := client.Do(httpReq)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read response: %v", err)), nil
		}

		var listResp experimentsResponse
		if err := json.Unmarshal(respBody, &listResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}
		if !listResp.Success {
			return mcp.NewToolResultError("listing experiments failed"), nil
		}

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("Found %d experiments:\n\n", len(listResp.Experiments)))
		for _, exp := range listResp.Experiments {
			completed := "running"
			if exp.CompletedAt != nil {
				completed = *exp.CompletedAt
			}
			sb.WriteString(fmt.Sprintf("- %s (%s): dataset=%s status=%s created=%s completed=%s\n",
				exp.Name, exp.ID, exp.Dataset, exp.Status, exp.CreatedAt, completed))
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}
