package extractor

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/use-agent/chatprobe/config"
	"github.com/use-agent/chatprobe/models"
)

// Extractor drives a chat UI end to end: submit a prompt, wait for the
// streamed answer to complete, and pull the answer text out. It launches a
// fresh browser per invocation and is safe for concurrent use.
type Extractor struct {
	chatCfg    config.ChatConfig
	browserCfg config.BrowserConfig
	newSession sessionFactory
	targetHost string
}

// New builds an Extractor backed by per-invocation Rod browser sessions.
func New(chatCfg config.ChatConfig, browserCfg config.BrowserConfig) *Extractor {
	e := &Extractor{
		chatCfg:    chatCfg,
		browserCfg: browserCfg,
		targetHost: hostOf(chatCfg.TargetURL),
	}
	e.newSession = func(headless bool) (session, error) {
		return newRodSession(chatCfg, browserCfg, headless)
	}
	return e
}

// hostOf extracts the hostname for failure messages, falling back to the
// raw string for unparseable URLs.
func hostOf(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	return rawURL
}

// Extract runs one prompt-to-answer capture.
//
// It never returns an error: every outcome, success or failure, arrives as a
// *models.ChatResponse so callers have a single shape to handle.
//
// Lifecycle (numbered steps match the inline comments):
//
//	1. Defaults + timeout clamp
//	2. Open browser session
//	3. DEFER: teardown            – guaranteed on every path
//	4. Navigate                   – idle listener registered before load
//	5. Submit prompt
//	6. Grace delay                – let the first streamed tokens appear
//	7. Wait for copy affordance   – the completion signal; the ONLY hard timeout
//	8. Secondary quiescence       – network idle, else fixed settle delay
//	9. Clipboard channel          – clear, click copy, delay, read
//	10. Structural fallback       – answer-region text when clipboard is empty
//	11. Build result              – markup snapshot + metadata
func (e *Extractor) Extract(ctx context.Context, req *models.AskRequest) *models.ChatResponse {
	start := time.Now()

	// ── 1. Defaults + timeout clamp ──────────────────────────────────
	req.Defaults()
	timeout := req.Timeout()
	if timeout > e.chatCfg.MaxTimeout {
		timeout = e.chatCfg.MaxTimeout
	}

	slog.Info("extraction started",
		"target", e.chatCfg.TargetURL,
		"headless", req.IsHeadless(),
		"timeout", timeout,
	)

	// ── 2. Open browser session ──────────────────────────────────────
	sess, err := e.newSession(req.IsHeadless())
	if err != nil {
		return e.failure(models.NewExtractError(
			models.ErrCodeBrowserCrash, "failed to launch browser session", err))
	}

	// ── 3. CRITICAL DEFER: teardown on every path ────────────────────
	defer sess.Close()

	// ── 4. Navigate ──────────────────────────────────────────────────
	navCtx, navCancel := context.WithTimeout(ctx, timeout)
	err = sess.Navigate(navCtx)
	navCancel()
	if err != nil {
		return e.failure(categorizeError(err, models.ErrCodeNavigation,
			"failed to load chat page"))
	}

	// ── 5. Submit prompt ─────────────────────────────────────────────
	subCtx, subCancel := context.WithTimeout(ctx, timeout)
	err = sess.SubmitPrompt(subCtx, req.Prompt)
	subCancel()
	if err != nil {
		return e.failure(categorizeError(err, models.ErrCodeLocatorTimeout,
			"failed to locate prompt input"))
	}

	// ── 6. Grace delay ───────────────────────────────────────────────
	if err := sleep(ctx, e.chatCfg.GraceDelay); err != nil {
		return e.failure(categorizeError(err, models.ErrCodeLocatorTimeout,
			"canceled while waiting for streaming to start"))
	}

	// ── 7. Wait for the copy affordance ──────────────────────────────
	// This is the one wait allowed to fail the whole extraction: if the UI
	// never renders the copy affordance, the answer never completed.
	copyCtx, copyCancel := context.WithTimeout(ctx, timeout)
	err = sess.WaitCopyVisible(copyCtx)
	copyCancel()
	if err != nil {
		return e.failure(categorizeError(err, models.ErrCodeLocatorTimeout,
			"answer did not complete: copy affordance never appeared"))
	}

	// ── 8. Secondary quiescence (best-effort) ────────────────────────
	// The affordance can render a beat before the last network writes land.
	// A failed idle wait downgrades to a fixed settle delay, never to a
	// failed extraction.
	quietCtx, quietCancel := context.WithTimeout(ctx, timeout)
	err = sess.WaitQuiet(quietCtx)
	quietCancel()
	if err != nil {
		slog.Debug("network quiescence wait did not converge, applying settle delay",
			"error", err)
		if err := sleep(ctx, e.chatCfg.SettleDelay); err != nil {
			return e.failure(categorizeError(err, models.ErrCodeLocatorTimeout,
				"canceled during settle delay"))
		}
	}

	// ── 9. Clipboard channel ─────────────────────────────────────────
	text, channel := e.readViaClipboard(ctx, sess)

	// ── 10. Structural fallback ──────────────────────────────────────
	if text == "" {
		if raw, found := sess.FallbackText(); found {
			text = stripControlTokens(raw, e.chatCfg.CopyLabel)
			channel = "dom"
		}
	}
	if text == "" {
		return e.failure(models.NewExtractError(
			models.ErrCodeExtraction,
			"both clipboard and structural extraction produced no content", nil))
	}

	// ── 11. Build result ─────────────────────────────────────────────
	markup, count := sess.AnswerMarkup()

	slog.Info("extraction completed",
		"channel", channel,
		"chars", len(text),
		"messages", count,
		"duration", time.Since(start),
	)

	return models.NewAnswer(text, markup, count, map[string]any{
		"url":        e.chatCfg.TargetURL,
		"headless":   req.IsHeadless(),
		"timeout_ms": int(timeout / time.Millisecond),
		"channel":    channel,
	})
}

// readViaClipboard runs the primary extraction channel: clear the clipboard,
// trigger the copy affordance, give the async clipboard write time to land,
// then read. Any failure returns empty text; the caller falls back to the
// structural channel.
func (e *Extractor) readViaClipboard(ctx context.Context, sess session) (string, string) {
	if err := sess.ClearClipboard(); err != nil {
		slog.Debug("clipboard clear failed, relying on structural fallback", "error", err)
		return "", ""
	}

	clickCtx, clickCancel := context.WithTimeout(ctx, e.chatCfg.DefaultTimeout)
	err := sess.ClickCopy(clickCtx)
	clickCancel()
	if err != nil {
		slog.Debug("copy affordance click failed", "error", err)
		return "", ""
	}

	// The click returns before the page's async clipboard write completes.
	if err := sleep(ctx, e.chatCfg.ClipboardDelay); err != nil {
		return "", ""
	}

	text, err := sess.ReadClipboard()
	if err != nil {
		slog.Debug("clipboard read failed", "error", err)
		return "", ""
	}
	return strings.TrimSpace(text), "clipboard"
}

// failure wraps a typed error into the uniform failure-shaped response.
func (e *Extractor) failure(err error) *models.ChatResponse {
	slog.Warn("extraction failed", "target", e.targetHost, "error", err)
	return models.NewFailure(e.targetHost, err)
}

// categorizeError wraps raw errors into typed ExtractErrors, mapping context
// expiry onto the given code so failure metadata stays meaningful.
func categorizeError(err error, code, msg string) *models.ExtractError {
	var ee *models.ExtractError
	if errors.As(err, &ee) {
		return ee
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewExtractError(code, msg+" within budget", err)
	case errors.Is(err, context.Canceled):
		return models.NewExtractError(code, "request canceled", err)
	default:
		return models.NewExtractError(code, msg, err)
	}
}
