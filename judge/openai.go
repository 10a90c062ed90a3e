package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/use-agent/chatprobe/config"
	"github.com/use-agent/chatprobe/models"
)

// openAIJudge grades via any OpenAI-compatible chat completion API.
// It uses net/http directly; the request surface is three fields wide and
// does not justify an SDK.
type openAIJudge struct {
	cfg        config.JudgeConfig
	httpClient *http.Client
}

// newOpenAIJudge creates the grader. Pass nil to use a default http.Client.
func newOpenAIJudge(cfg config.JudgeConfig, httpClient *http.Client) *openAIJudge {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &openAIJudge{cfg: cfg, httpClient: httpClient}
}

// chatRequest is the OpenAI chat completion request body.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// chatResponse is the minimal chat completion response we need.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// chatErrorResponse captures an API error from the provider.
type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

func (j *openAIJudge) Score(ctx context.Context, question, reference, answer string) (*Score, error) {
	reqBody := chatRequest{
		Model: j.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(question, reference, answer)},
		},
		Temperature:    0,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := strings.TrimRight(j.cfg.BaseURL, "/") + "/chat/completions"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+j.cfg.APIKey)

	resp, err := j.httpClient.Do(req)
	if err != nil {
		return nil, models.NewExtractError(models.ErrCodeJudgeFailure, "judge request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, models.NewExtractError(models.ErrCodeJudgeFailure, "failed to read judge response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyJudgeError(resp.StatusCode, respBody)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, models.NewExtractError(models.ErrCodeJudgeFailure, "failed to parse judge response", err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, models.NewExtractError(models.ErrCodeJudgeFailure, "judge returned no choices", nil)
	}

	return parseVerdict(chatResp.Choices[0].Message.Content)
}

// parseVerdict decodes the grader's JSON verdict and clamps the score.
func parseVerdict(raw string) (*Score, error) {
	var s Score
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, models.NewExtractError(models.ErrCodeJudgeFailure, "judge returned invalid JSON", err)
	}
	if s.Value < 0 {
		s.Value = 0
	}
	if s.Value > 1 {
		s.Value = 1
	}
	return &s, nil
}

// classifyJudgeError maps HTTP status codes to typed error codes.
func classifyJudgeError(statusCode int, body []byte) *models.ExtractError {
	var errResp chatErrorResponse
	msg := "judge API error"
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		msg = errResp.Error.Message
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return models.NewExtractError(models.ErrCodeJudgeAuthFailure, msg, nil)
	case statusCode == http.StatusTooManyRequests:
		return models.NewExtractError(models.ErrCodeJudgeRateLimited, msg, nil)
	default:
		return models.NewExtractError(models.ErrCodeJudgeFailure, fmt.Sprintf("judge API returned %d: %s", statusCode, msg), nil)
	}
}
