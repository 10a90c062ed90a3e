package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// SourceChatLangChain identifies the chat.langchain.com integration.
const SourceChatLangChain = "chat.langchain.com"

// ChatResponse is the uniform result of one capture. It is a tagged
// success/failure variant: Text is always populated (on failure it is a
// human-readable error description), and exactly one of the success fields
// or the failure metadata is meaningfully filled. Extraction never returns
// an error to the caller; it returns one of these.
type ChatResponse struct {
	// Success indicates whether the capture completed.
	Success bool `json:"success"`

	// Text is the answer text, or an error description on failure.
	Text string `json:"text"`

	// RawMarkup is a best-effort structural snapshot of the answer
	// container. Absent when auxiliary extraction failed.
	RawMarkup string `json:"raw_markup,omitempty"`

	// MessageCount is the number of message-like elements observed.
	// Always >= 1: reaching extraction implies at least one answer.
	MessageCount int `json:"message_count"`

	// Metadata carries side-channel facts: destination URL, headless flag
	// and timeout on success; error class and message on failure.
	Metadata map[string]any `json:"metadata"`

	// CapturedAt is set at result construction.
	CapturedAt time.Time `json:"captured_at"`

	// Source identifies the producing integration.
	Source string `json:"source"`
}

// EvalMessage is the projection consumed by evaluators.
type EvalMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToEvalMessage projects the response into the shape scored by evaluators.
func (r *ChatResponse) ToEvalMessage() EvalMessage {
	return EvalMessage{Role: "ai", Content: r.Text}
}

// NewAnswer builds a success-shaped response. Text is trimmed and
// messageCount is clamped to >= 1.
func NewAnswer(text, rawMarkup string, messageCount int, metadata map[string]any) *ChatResponse {
	if messageCount < 1 {
		messageCount = 1
	}
	return &ChatResponse{
		Success:      true,
		Text:         strings.TrimSpace(text),
		RawMarkup:    rawMarkup,
		MessageCount: messageCount,
		Metadata:     metadata,
		CapturedAt:   time.Now(),
		Source:       SourceChatLangChain,
	}
}

// NewFailure builds a failure-shaped response for the given target host.
// Text carries a prefixed human-readable description; metadata records the
// error class and message so callers can branch without parsing text.
func NewFailure(target string, err error) *ChatResponse {
	errType := errorType(err)
	return &ChatResponse{
		Success:      false,
		Text:         fmt.Sprintf("Error scraping %s: %v", target, err),
		MessageCount: 1,
		Metadata: map[string]any{
			"error":      err.Error(),
			"error_type": errType,
		},
		CapturedAt: time.Now(),
		Source:     SourceChatLangChain,
	}
}

// errorType reports the typed error code when available, else the dynamic
// Go type name.
func errorType(err error) string {
	var ee *ExtractError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return fmt.Sprintf("%T", err)
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Target  string `json:"target"`
	Version string `json:"version"`
}
