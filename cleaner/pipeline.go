package cleaner

import (
	"math"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/PuerkitoBio/goquery"
)

// Cleaner renders captured answer markup into a requested output format:
//
//	Stage 1 (prune):   strip copy buttons, icons, and other UI chrome
//	Stage 2 (convert): clean HTML → Markdown (or html/text pass-through)
//
// The converter is created once and reused across all requests (goroutine-safe).
type Cleaner struct {
	mdConverter *converter.Converter
}

// NewCleaner initialises the Cleaner with a pre-configured Markdown converter.
func NewCleaner() *Cleaner {
	return &Cleaner{
		mdConverter: newMarkdownConverter(),
	}
}

// Result is the rendered answer plus token accounting.
type Result struct {
	Content        string  `json:"content"`
	Format         string  `json:"format"`
	OriginalTokens int     `json:"original_tokens"`
	CleanedTokens  int     `json:"cleaned_tokens"`
	SavingsPercent float64 `json:"savings_percent"`
}

// Clean renders answer markup into the requested format.
//
// Flow:
//  1. Estimate original tokens from the raw markup.
//  2. Stage 1: prune UI controls.
//  3. Stage 2: convert to the requested output format.
//  4. Estimate cleaned tokens and compute savings.
func (c *Cleaner) Clean(rawMarkup string, sourceURL string, format string) (*Result, error) {
	// ── 1. Original token estimate ──────────────────────────────────
	originalTokens := EstimateTokens(rawMarkup)

	// ── 2. Stage 1: prune UI controls ───────────────────────────────
	pruned := PruneControls(rawMarkup)

	// ── 3. Stage 2: format conversion ───────────────────────────────
	var content string
	var err error

	switch format {
	case "html":
		content = pruned
	case "text":
		content = stripTags(pruned)
	default:
		// "markdown" and anything unrecognised.
		format = "markdown"
		content, err = ToMarkdown(c.mdConverter, pruned, sourceURL)
		if err != nil {
			return nil, err
		}
	}
	content = strings.TrimSpace(content)

	// ── 4. Cleaned token estimate + savings ─────────────────────────
	cleanedTokens := EstimateTokens(content)

	savingsPercent := 0.0
	if originalTokens > 0 {
		savingsPercent = float64(originalTokens-cleanedTokens) / float64(originalTokens) * 100
		savingsPercent = math.Round(savingsPercent*100) / 100
	}

	return &Result{
		Content:        content,
		Format:         format,
		OriginalTokens: originalTokens,
		CleanedTokens:  cleanedTokens,
		SavingsPercent: savingsPercent,
	}, nil
}

// stripTags extracts visible text from an HTML fragment by parsing it with
// goquery. Returns trimmed plain text.
func stripTags(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	return strings.TrimSpace(doc.Text())
}
