package extractor

import (
	"context"
	"strings"
	"time"
)

// session is one live browser conversation with the target chat UI. The
// production implementation drives a real Chromium via Rod; tests substitute
// a scripted fake so the completion state machine can be exercised without a
// browser.
//
// Every blocking method takes a context; implementations must honor its
// deadline. Close must be safe to call exactly once on every path.
type session interface {
	// Navigate loads the target URL and waits for the initial page to settle.
	Navigate(ctx context.Context) error

	// SubmitPrompt locates the prompt textbox and submits the prompt.
	SubmitPrompt(ctx context.Context, prompt string) error

	// WaitCopyVisible blocks until the copy affordance for the answer is
	// visible. Its appearance is the completion signal: the UI only renders
	// it once the streamed answer has fully arrived.
	WaitCopyVisible(ctx context.Context) error

	// WaitQuiet blocks until the page's network traffic has been idle for
	// the configured quiet window.
	WaitQuiet(ctx context.Context) error

	// ClearClipboard empties the clipboard so a stale value cannot be
	// mistaken for the answer.
	ClearClipboard() error

	// ClickCopy triggers the copy affordance found by WaitCopyVisible.
	ClickCopy(ctx context.Context) error

	// ReadClipboard returns the current clipboard text.
	ReadClipboard() (string, error)

	// FallbackText returns the raw visible text of the answer region,
	// located structurally from the copy affordance. found is false when no
	// answer region could be identified.
	FallbackText() (text string, found bool)

	// AnswerMarkup returns a best-effort snapshot of the answer container's
	// markup and the number of message-like elements observed.
	AnswerMarkup() (markup string, count int)

	// Close tears down the page and browser. Best-effort; never blocks on
	// an expired request context.
	Close()
}

// sessionFactory builds a session for one extraction. Injectable so tests
// can supply fakes.
type sessionFactory func(headless bool) (session, error)

// stripControlTokens removes UI chrome labels that leak into the structural
// text channel. The clipboard channel never needs this: the UI writes only
// the answer there.
func stripControlTokens(text string, labels ...string) string {
	for _, label := range labels {
		text = strings.ReplaceAll(text, label, "")
	}
	return strings.TrimSpace(text)
}

// sleep pauses cooperatively, returning early if ctx expires.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
