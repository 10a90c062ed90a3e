package models

import "time"

// AskRequest is a single prompt-to-answer capture request. It is consumed
// once and never mutated after Defaults is applied.
type AskRequest struct {
	// Prompt is the question submitted to the chat UI. Required.
	Prompt string `json:"prompt" binding:"required"`

	// Headless controls whether the browser runs headless. Default: true.
	Headless *bool `json:"headless,omitempty"`

	// TimeoutMs bounds each completion wait (copy affordance visibility,
	// secondary network quiescence). Default: 30000. Max: 120000.
	TimeoutMs int `json:"timeout_ms,omitempty" binding:"omitempty,min=1,max=120000"`

	// Format optionally renders the captured answer markup into an extra
	// "rendered" field: "markdown", "html", or "text".
	Format string `json:"format,omitempty" binding:"omitempty,oneof=markdown html text"`

	// MaxAgeMs enables the answer cache: a cached answer younger than this
	// is returned without driving the browser. 0 disables caching.
	MaxAgeMs int `json:"max_age_ms,omitempty" binding:"omitempty,min=0"`
}

// Defaults applies default values to unset fields.
func (r *AskRequest) Defaults() {
	if r.Headless == nil {
		t := true
		r.Headless = &t
	}
	if r.TimeoutMs == 0 {
		r.TimeoutMs = 30000
	}
}

// IsHeadless resolves the headless flag, defaulting to true.
func (r *AskRequest) IsHeadless() bool {
	if r.Headless == nil {
		return true
	}
	return *r.Headless
}

// Timeout returns the wait budget as a duration.
func (r *AskRequest) Timeout() time.Duration {
	return time.Duration(r.TimeoutMs) * time.Millisecond
}
