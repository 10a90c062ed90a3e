package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/chatprobe/config"
	"github.com/ysmood/gson"
)

// rodSession drives a real Chromium via Rod. Each extraction gets a fresh
// browser process with an incognito context, so no cookies, storage, or
// clipboard state leaks between invocations.
type rodSession struct {
	chatCfg  config.ChatConfig
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	router   *rod.HijackRouter
	copyBtn  *rod.Element
}

// newRodSession launches a browser, opens an incognito context with
// clipboard access granted, and prepares a blank page. Navigation happens
// later so the caller can bind its own context.
func newRodSession(chatCfg config.ChatConfig, browserCfg config.BrowserConfig, headless bool) (session, error) {
	l := launcher.New().
		Headless(headless).
		NoSandbox(browserCfg.NoSandbox)

	if browserCfg.BrowserBin != "" {
		l = l.Bin(browserCfg.BrowserBin)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect to browser: %w", err)
	}

	incognito, err := browser.Incognito()
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return nil, fmt.Errorf("create incognito context: %w", err)
	}

	// Headless Chromium never shows a clipboard permission prompt; it just
	// denies. Grant read/write up front so navigator.clipboard works.
	err = proto.BrowserGrantPermissions{
		Permissions: []proto.BrowserPermissionType{
			proto.BrowserPermissionTypeClipboardReadWrite,
			proto.BrowserPermissionTypeClipboardSanitizedWrite,
		},
		BrowserContextID: incognito.BrowserContextID,
	}.Call(browser)
	if err != nil {
		slog.Warn("clipboard permission grant failed, structural fallback will carry extraction",
			"error", err)
	}

	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return nil, fmt.Errorf("create page: %w", err)
	}

	if browserCfg.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth",
				"error", evalErr)
		}
	}

	// Headless Chromium sends no Accept-Language by default, which some bot
	// heuristics key on. proto.NetworkHeaders is a map[string]gson.JSON.
	headerErr := proto.NetworkSetExtraHTTPHeaders{
		Headers: proto.NetworkHeaders{"Accept-Language": gson.New("en-US,en;q=0.9")},
	}.Call(page)
	if headerErr != nil {
		slog.Debug("setting Accept-Language header failed", "error", headerErr)
	}

	// NOTE: request interception uses the Fetch domain, which conflicts with
	// WaitRequestIdle on Chromium 145+. When a router is mounted, waits
	// degrade to DOM stability.
	router := setupHijack(page, browserCfg.BlockedResourceTypes)

	return &rodSession{
		chatCfg:  chatCfg,
		launcher: l,
		browser:  browser,
		page:     page,
		router:   router,
	}, nil
}

// Navigate loads the chat page. The idle listener is registered BEFORE
// Navigate: WaitRequestIdle subscribes to network events at call time, and a
// listener set up after navigation would miss the in-flight page load and
// report a false idle.
func (s *rodSession) Navigate(ctx context.Context) error {
	p := s.page.Context(ctx)

	var waitIdle func()
	if s.router == nil {
		waitIdle = p.WaitRequestIdle(s.chatCfg.QuietWindow, nil, nil, nil)
	}

	if err := p.Navigate(s.chatCfg.TargetURL); err != nil {
		return fmt.Errorf("navigate to %s: %w", s.chatCfg.TargetURL, err)
	}

	if waitIdle != nil {
		waitIdle()
	} else {
		if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
			slog.Debug("WaitDOMStable did not converge, proceeding with current DOM",
				"error", err)
		}
	}
	return ctx.Err()
}

// SubmitPrompt finds the prompt textbox by its accessible name and submits
// the prompt with a single text insertion followed by Enter. The lookup
// retries under Rod's page sleeper until the element exists or ctx expires.
func (s *rodSession) SubmitPrompt(ctx context.Context, prompt string) error {
	p := s.page.Context(ctx)

	el, err := p.ElementByJS(rod.Eval(`(name) => {
		const candidates = document.querySelectorAll(
			'textarea, input[type="text"], [role="textbox"], [contenteditable="true"]');
		for (const el of candidates) {
			const label = (el.getAttribute('aria-label') || '') + ' ' +
				(el.getAttribute('placeholder') || '');
			if (label.includes(name)) return el;
		}
		return null;
	}`, s.chatCfg.InputName))
	if err != nil {
		return fmt.Errorf("locate prompt textbox %q: %w", s.chatCfg.InputName, err)
	}

	// Input inserts the whole prompt as one operation. Per-character typing
	// is slow and races the UI's input handlers on long prompts.
	if err := el.Input(prompt); err != nil {
		return fmt.Errorf("insert prompt text: %w", err)
	}
	if err := el.Type(input.Enter); err != nil {
		return fmt.Errorf("submit prompt: %w", err)
	}
	return nil
}

// WaitCopyVisible blocks until a button whose exact visible label matches
// the configured copy label exists and is visible. Exact matching matters:
// the page also renders labels like "Copy link" that must not count.
func (s *rodSession) WaitCopyVisible(ctx context.Context) error {
	p := s.page.Context(ctx)

	el, err := p.ElementR("button", fmt.Sprintf(`/^%s$/`, s.chatCfg.CopyLabel))
	if err != nil {
		return fmt.Errorf("copy affordance %q: %w", s.chatCfg.CopyLabel, err)
	}
	if err := el.WaitVisible(); err != nil {
		return fmt.Errorf("copy affordance visibility: %w", err)
	}
	s.copyBtn = el
	return nil
}

// WaitQuiet waits for network idle. With a hijack router mounted the Fetch
// domain is taken, so it degrades to a DOM stability wait.
func (s *rodSession) WaitQuiet(ctx context.Context) error {
	p := s.page.Context(ctx)

	if s.router != nil {
		return p.WaitDOMStable(300*time.Millisecond, 0.1)
	}

	wait := p.WaitRequestIdle(s.chatCfg.QuietWindow, nil, nil, nil)
	wait()
	return ctx.Err()
}

func (s *rodSession) ClearClipboard() error {
	_, err := s.page.Eval(`async () => { await navigator.clipboard.writeText(''); }`)
	return err
}

func (s *rodSession) ClickCopy(ctx context.Context) error {
	if s.copyBtn == nil {
		return fmt.Errorf("copy affordance not located")
	}
	el := s.copyBtn.Context(ctx)
	if err := el.ScrollIntoView(); err != nil {
		slog.Debug("scroll to copy affordance failed", "error", err)
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (s *rodSession) ReadClipboard() (string, error) {
	res, err := s.page.Eval(`async () => navigator.clipboard.readText()`)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

// FallbackText climbs from the last copy affordance to the nearest
// message-like ancestor (class containing message/response/assistant) and
// returns its visible text. Without such an ancestor it settles for the
// grandparent. Control labels are stripped Go-side by the caller.
func (s *rodSession) FallbackText() (string, bool) {
	res, err := s.page.Eval(`(label) => {
		const buttons = [...document.querySelectorAll('button')]
			.filter(b => b.textContent.trim() === label);
		if (buttons.length === 0) return '';
		const btn = buttons[buttons.length - 1];
		let node = btn;
		for (let i = 0; i < 8 && node.parentElement; i++) {
			node = node.parentElement;
			if (/message|response|assistant/i.test(node.className)) {
				return node.innerText || '';
			}
		}
		const fallback = btn.parentElement && btn.parentElement.parentElement;
		return fallback ? (fallback.innerText || '') : '';
	}`, s.chatCfg.CopyLabel)
	if err != nil {
		slog.Debug("structural fallback eval failed", "error", err)
		return "", false
	}
	text := res.Value.Str()
	return text, text != ""
}

// AnswerMarkup snapshots the answer container's markup and counts the
// message-like elements, taking one copy affordance per rendered answer.
func (s *rodSession) AnswerMarkup() (string, int) {
	res, err := s.page.Eval(`(label) => {
		const buttons = [...document.querySelectorAll('button')]
			.filter(b => b.textContent.trim() === label);
		if (buttons.length === 0) return { html: '', count: 1 };
		const btn = buttons[buttons.length - 1];
		let node = btn;
		let container = null;
		for (let i = 0; i < 8 && node.parentElement; i++) {
			node = node.parentElement;
			if (/message|response|assistant/i.test(node.className)) {
				container = node;
				break;
			}
		}
		if (!container) {
			container = (btn.parentElement && btn.parentElement.parentElement) || btn.parentElement || btn;
		}
		return { html: container.outerHTML, count: buttons.length };
	}`, s.chatCfg.CopyLabel)
	if err != nil {
		slog.Debug("answer markup snapshot failed", "error", err)
		return "", 1
	}
	count := res.Value.Get("count").Int()
	if count < 1 {
		count = 1
	}
	return res.Value.Get("html").Str(), count
}

// Close tears down the router, browser, and launcher. It uses the original
// page and browser references, never a request-scoped one, so teardown
// succeeds even after the request context has expired.
func (s *rodSession) Close() {
	if s.router != nil {
		_ = s.router.Stop()
	}
	if err := s.browser.Close(); err != nil {
		slog.Warn("browser close failed", "error", err)
	}
	s.launcher.Kill()
}
