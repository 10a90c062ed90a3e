package models

import "fmt"

// Error codes used in API responses and internal error handling.
const (
	// ErrCodeLocatorTimeout: a required UI element (prompt textbox, copy
	// affordance) did not appear within the request budget.
	ErrCodeLocatorTimeout = "LOCATOR_TIMEOUT"

	// ErrCodeNavigation: the initial page load did not settle within budget.
	ErrCodeNavigation = "NAVIGATION_FAILED"

	// ErrCodeClipboard: the clipboard round-trip failed and the structural
	// fallback also produced no content.
	ErrCodeClipboard = "CLIPBOARD_UNAVAILABLE"

	// ErrCodeExtraction: both extraction channels yielded empty content.
	ErrCodeExtraction = "CONTENT_EXTRACTION_FAILED"

	ErrCodeBrowserCrash = "BROWSER_CRASH"
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeInternal     = "INTERNAL_ERROR"

	// Judge-related error codes for the scoring client.
	ErrCodeJudgeFailure     = "JUDGE_FAILURE"
	ErrCodeJudgeAuthFailure = "JUDGE_AUTH_FAILURE"
	ErrCodeJudgeRateLimited = "JUDGE_RATE_LIMITED"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ExtractError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ExtractError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *ExtractError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ExtractError) Unwrap() error {
	return e.Err
}

// NewExtractError creates a new ExtractError.
func NewExtractError(code, message string, err error) *ExtractError {
	return &ExtractError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *ExtractError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// ErrorEnvelope is the body for middleware-level rejections (auth, rate
// limiting, malformed input) where no extraction ever ran.
type ErrorEnvelope struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error"`
}
