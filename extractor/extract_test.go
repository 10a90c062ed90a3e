package extractor

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/use-agent/chatprobe/config"
	"github.com/use-agent/chatprobe/models"
)

// fakeSession is a scripted session so the completion flow can be exercised
// without a browser.
type fakeSession struct {
	navErr   error
	submitErr error
	copyErr  error
	quietErr error
	clearErr error
	clickErr error
	clipText string
	clipErr  error
	fbText   string
	fbFound  bool
	markup   string
	count    int

	prompt string
	closed bool
}

func (f *fakeSession) Navigate(ctx context.Context) error { return f.navErr }
func (f *fakeSession) SubmitPrompt(ctx context.Context, prompt string) error {
	f.prompt = prompt
	return f.submitErr
}
func (f *fakeSession) WaitCopyVisible(ctx context.Context) error { return f.copyErr }
func (f *fakeSession) WaitQuiet(ctx context.Context) error       { return f.quietErr }
func (f *fakeSession) ClearClipboard() error                     { return f.clearErr }
func (f *fakeSession) ClickCopy(ctx context.Context) error       { return f.clickErr }
func (f *fakeSession) ReadClipboard() (string, error)            { return f.clipText, f.clipErr }
func (f *fakeSession) FallbackText() (string, bool)              { return f.fbText, f.fbFound }
func (f *fakeSession) AnswerMarkup() (string, int)               { return f.markup, f.count }
func (f *fakeSession) Close()                                    { f.closed = true }

func testChatConfig() config.ChatConfig {
	return config.ChatConfig{
		TargetURL:      "https://chat.langchain.com",
		InputName:      "Ask me anything about",
		CopyLabel:      "Copy",
		DefaultTimeout: time.Second,
		MaxTimeout:     5 * time.Second,
		GraceDelay:     time.Millisecond,
		SettleDelay:    time.Millisecond,
		ClipboardDelay: time.Millisecond,
		QuietWindow:    time.Millisecond,
	}
}

func newTestExtractor(sess *fakeSession) *Extractor {
	e := New(testChatConfig(), config.BrowserConfig{Headless: true})
	e.newSession = func(headless bool) (session, error) { return sess, nil }
	return e
}

func TestExtractClipboardSuccess(t *testing.T) {
	sess := &fakeSession{
		clipText: "  LangGraph is a library for building stateful agents.  ",
		markup:   "<div>answer</div>",
		count:    3,
	}
	e := newTestExtractor(sess)

	resp := e.Extract(context.Background(), &models.AskRequest{Prompt: "What is LangGraph?"})

	if !resp.Success {
		t.Fatalf("expected success, got failure: %s", resp.Text)
	}
	if resp.Text != "LangGraph is a library for building stateful agents." {
		t.Errorf("unexpected text: %q", resp.Text)
	}
	if resp.MessageCount != 3 {
		t.Errorf("message count = %d, want 3", resp.MessageCount)
	}
	if resp.RawMarkup != "<div>answer</div>" {
		t.Errorf("unexpected raw markup: %q", resp.RawMarkup)
	}
	if resp.Metadata["channel"] != "clipboard" {
		t.Errorf("channel = %v, want clipboard", resp.Metadata["channel"])
	}
	if sess.prompt != "What is LangGraph?" {
		t.Errorf("submitted prompt = %q", sess.prompt)
	}
	if !sess.closed {
		t.Error("session was not closed")
	}
}

func TestExtractFallbackWhenClipboardEmpty(t *testing.T) {
	sess := &fakeSession{
		clipText: "",
		fbText:   "The answer lives here.\nCopy\n",
		fbFound:  true,
		count:    1,
	}
	e := newTestExtractor(sess)

	resp := e.Extract(context.Background(), &models.AskRequest{Prompt: "q"})

	if !resp.Success {
		t.Fatalf("expected success, got failure: %s", resp.Text)
	}
	if resp.Text != "The answer lives here." {
		t.Errorf("control token not stripped: %q", resp.Text)
	}
	if resp.Metadata["channel"] != "dom" {
		t.Errorf("channel = %v, want dom", resp.Metadata["channel"])
	}
}

func TestExtractFallbackOnClipboardError(t *testing.T) {
	sess := &fakeSession{
		clipErr: context.DeadlineExceeded,
		fbText:  "fallback answer",
		fbFound: true,
	}
	e := newTestExtractor(sess)

	resp := e.Extract(context.Background(), &models.AskRequest{Prompt: "q"})

	if !resp.Success {
		t.Fatalf("expected success, got failure: %s", resp.Text)
	}
	if resp.Text != "fallback answer" {
		t.Errorf("unexpected text: %q", resp.Text)
	}
}

func TestExtractCopyAffordanceTimeout(t *testing.T) {
	sess := &fakeSession{copyErr: context.DeadlineExceeded}
	e := newTestExtractor(sess)

	resp := e.Extract(context.Background(), &models.AskRequest{Prompt: "q"})

	if resp.Success {
		t.Fatal("expected failure")
	}
	if !strings.HasPrefix(resp.Text, "Error scraping chat.langchain.com:") {
		t.Errorf("failure text missing prefix: %q", resp.Text)
	}
	if resp.Metadata["error_type"] != models.ErrCodeLocatorTimeout {
		t.Errorf("error_type = %v, want %s", resp.Metadata["error_type"], models.ErrCodeLocatorTimeout)
	}
	if !sess.closed {
		t.Error("session was not closed on failure")
	}
}

func TestExtractNavigationFailure(t *testing.T) {
	sess := &fakeSession{navErr: context.DeadlineExceeded}
	e := newTestExtractor(sess)

	resp := e.Extract(context.Background(), &models.AskRequest{Prompt: "q"})

	if resp.Success {
		t.Fatal("expected failure")
	}
	if resp.Metadata["error_type"] != models.ErrCodeNavigation {
		t.Errorf("error_type = %v, want %s", resp.Metadata["error_type"], models.ErrCodeNavigation)
	}
	if !sess.closed {
		t.Error("session was not closed on failure")
	}
}

func TestExtractQuietTimeoutStillSucceeds(t *testing.T) {
	sess := &fakeSession{
		quietErr: context.DeadlineExceeded,
		clipText: "answer despite noisy network",
	}
	e := newTestExtractor(sess)

	resp := e.Extract(context.Background(), &models.AskRequest{Prompt: "q"})

	if !resp.Success {
		t.Fatalf("secondary quiescence timeout must not fail extraction: %s", resp.Text)
	}
	if resp.Text != "answer despite noisy network" {
		t.Errorf("unexpected text: %q", resp.Text)
	}
}

func TestExtractBothChannelsEmpty(t *testing.T) {
	sess := &fakeSession{clipText: "", fbFound: false}
	e := newTestExtractor(sess)

	resp := e.Extract(context.Background(), &models.AskRequest{Prompt: "q"})

	if resp.Success {
		t.Fatal("expected failure")
	}
	if resp.Metadata["error_type"] != models.ErrCodeExtraction {
		t.Errorf("error_type = %v, want %s", resp.Metadata["error_type"], models.ErrCodeExtraction)
	}
}

func TestExtractSessionLaunchFailure(t *testing.T) {
	e := New(testChatConfig(), config.BrowserConfig{})
	e.newSession = func(headless bool) (session, error) {
		return nil, context.DeadlineExceeded
	}

	resp := e.Extract(context.Background(), &models.AskRequest{Prompt: "q"})

	if resp.Success {
		t.Fatal("expected failure")
	}
	if resp.Metadata["error_type"] != models.ErrCodeBrowserCrash {
		t.Errorf("error_type = %v, want %s", resp.Metadata["error_type"], models.ErrCodeBrowserCrash)
	}
}

func TestExtractMessageCountClamped(t *testing.T) {
	sess := &fakeSession{clipText: "answer", count: 0}
	e := newTestExtractor(sess)

	resp := e.Extract(context.Background(), &models.AskRequest{Prompt: "q"})

	if !resp.Success {
		t.Fatalf("expected success: %s", resp.Text)
	}
	if resp.MessageCount != 1 {
		t.Errorf("message count = %d, want 1", resp.MessageCount)
	}
}

func TestExtractTimeoutClamp(t *testing.T) {
	sess := &fakeSession{clipText: "answer"}
	e := newTestExtractor(sess)

	resp := e.Extract(context.Background(), &models.AskRequest{Prompt: "q", TimeoutMs: 120000})

	if !resp.Success {
		t.Fatalf("expected success: %s", resp.Text)
	}
	if got := resp.Metadata["timeout_ms"]; got != 5000 {
		t.Errorf("timeout_ms = %v, want clamped 5000", got)
	}
}

func TestStripControlTokens(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		labels []string
		want   string
	}{
		{"trailing label", "answer text\nCopy", []string{"Copy"}, "answer text"},
		{"label only", "Copy", []string{"Copy"}, ""},
		{"no label", "plain answer", []string{"Copy"}, "plain answer"},
		{"whitespace", "  answer  ", []string{"Copy"}, "answer"},
		{"multiple labels", "a\nCopy\nRegenerate", []string{"Copy", "Regenerate"}, "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripControlTokens(tt.in, tt.labels...); got != tt.want {
				t.Errorf("stripControlTokens(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSleepHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleep(ctx, time.Minute); err == nil {
		t.Error("sleep with canceled context should return an error")
	}
	if err := sleep(context.Background(), 0); err != nil {
		t.Errorf("zero sleep returned error: %v", err)
	}
}
