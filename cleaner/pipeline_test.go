package cleaner

import (
	"strings"
	"testing"
)

const sampleAnswer = `<div class="message">
	<p>LangGraph is a <strong>stateful orchestration</strong> library.</p>
	<ul><li>Graphs</li><li>Checkpoints</li></ul>
	<button aria-label="Copy">Copy</button>
	<svg viewBox="0 0 24 24"><path d="M0 0"/></svg>
	<span class="sr-only">Assistant message</span>
</div>`

func TestCleanMarkdown(t *testing.T) {
	c := NewCleaner()

	res, err := c.Clean(sampleAnswer, "https://chat.langchain.com", "markdown")
	if err != nil {
		t.Fatalf("Clean returned error: %v", err)
	}
	if res.Format != "markdown" {
		t.Errorf("format = %q, want markdown", res.Format)
	}
	if !strings.Contains(res.Content, "**stateful orchestration**") {
		t.Errorf("markdown output missing emphasis: %q", res.Content)
	}
	if strings.Contains(res.Content, "Copy") {
		t.Errorf("control button leaked into output: %q", res.Content)
	}
	if res.CleanedTokens >= res.OriginalTokens {
		t.Errorf("expected savings, original=%d cleaned=%d", res.OriginalTokens, res.CleanedTokens)
	}
}

func TestCleanText(t *testing.T) {
	c := NewCleaner()

	res, err := c.Clean(sampleAnswer, "https://chat.langchain.com", "text")
	if err != nil {
		t.Fatalf("Clean returned error: %v", err)
	}
	if !strings.Contains(res.Content, "stateful orchestration") {
		t.Errorf("text output missing content: %q", res.Content)
	}
	if strings.Contains(res.Content, "<p>") {
		t.Errorf("text output contains markup: %q", res.Content)
	}
	if strings.Contains(res.Content, "Assistant message") {
		t.Errorf("screen-reader helper leaked into output: %q", res.Content)
	}
}

func TestCleanHTMLPassThrough(t *testing.T) {
	c := NewCleaner()

	res, err := c.Clean(sampleAnswer, "https://chat.langchain.com", "html")
	if err != nil {
		t.Fatalf("Clean returned error: %v", err)
	}
	if !strings.Contains(res.Content, "<strong>") {
		t.Errorf("html output lost markup: %q", res.Content)
	}
	if strings.Contains(res.Content, "<button") {
		t.Errorf("button survived pruning: %q", res.Content)
	}
}

func TestCleanUnknownFormatDefaultsToMarkdown(t *testing.T) {
	c := NewCleaner()

	res, err := c.Clean("<p>hi</p>", "https://chat.langchain.com", "pdf")
	if err != nil {
		t.Fatalf("Clean returned error: %v", err)
	}
	if res.Format != "markdown" {
		t.Errorf("format = %q, want markdown", res.Format)
	}
}

func TestPruneControlsInvalidSelectorFallback(t *testing.T) {
	// Unparseable markup still yields usable output.
	out := PruneControls("<div><p>unterminated")
	if !strings.Contains(out, "unterminated") {
		t.Errorf("pruning dropped content: %q", out)
	}
}

func TestApplyCSSSelector(t *testing.T) {
	html := `<div><article id="a"><p>keep</p></article><footer>drop</footer></div>`

	out, err := ApplyCSSSelector(html, "article")
	if err != nil {
		t.Fatalf("ApplyCSSSelector returned error: %v", err)
	}
	if !strings.Contains(out, "keep") || strings.Contains(out, "drop") {
		t.Errorf("selector extraction wrong: %q", out)
	}

	// No match falls back to the original markup.
	out, err = ApplyCSSSelector(html, "main")
	if err != nil {
		t.Fatalf("ApplyCSSSelector returned error: %v", err)
	}
	if out != html {
		t.Errorf("no-match fallback altered markup: %q", out)
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"ab", 1},
		{"abcdef", 2},
		{strings.Repeat("x", 300), 100},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.in); got != tt.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
