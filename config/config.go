package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Chat      ChatConfig
	Judge     JudgeConfig
	Eval      EvalConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the per-invocation Rod browser instance.
type BrowserConfig struct {
	// Headless is the default headless setting; requests may override it.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Stealth enables anti-bot-detection evasions before navigation.
	Stealth bool // default: false

	// BlockedResourceTypes lists resource types to block during the session.
	// Empty by default: request interception uses the Fetch domain, which
	// conflicts with network-idle waiting on Chromium 145+.
	BlockedResourceTypes []string
}

// ChatConfig describes the target chat UI and the extraction tunables.
//
// The grace/settle/clipboard delays are empirical; they are config fields
// rather than constants so tests can compress them and alternative
// deployments can retune them.
type ChatConfig struct {
	// TargetURL is the chat application to drive.
	TargetURL string // default: "https://chat.langchain.com"

	// InputName is the accessible name fragment of the prompt textbox.
	InputName string // default: "Ask me anything about"

	// CopyLabel is the exact visible label of the copy affordance whose
	// appearance signals a fully rendered answer.
	CopyLabel string // default: "Copy"

	// DefaultTimeout bounds each completion wait when the request carries none.
	DefaultTimeout time.Duration // default: 30s

	// MaxTimeout caps the per-request timeout.
	MaxTimeout time.Duration // default: 120s

	// GraceDelay is the pause after prompt submission before detection runs,
	// letting the first streamed tokens appear.
	GraceDelay time.Duration // default: 2s

	// SettleDelay is the fallback pause applied when the secondary
	// network-quiescence wait times out.
	SettleDelay time.Duration // default: 2s

	// ClipboardDelay is the pause between triggering the copy affordance and
	// reading the clipboard; clipboard writes are not synchronous with the
	// triggering click.
	ClipboardDelay time.Duration // default: 300ms

	// QuietWindow is how long the network must stay idle to count as quiescent.
	QuietWindow time.Duration // default: 500ms
}

// JudgeConfig controls the LLM-as-judge scoring client.
type JudgeConfig struct {
	// Provider selects the judge backend: "openai" or "anthropic".
	Provider string // default: "openai"

	// Model is the judge model identifier.
	Model string // default: "gpt-4o-mini"

	// BaseURL is the OpenAI-compatible API base URL.
	BaseURL string // default: "https://api.openai.com/v1"

	// APIKey authenticates against the judge provider.
	APIKey string

	// MaxTokens caps the judge completion (anthropic provider).
	MaxTokens int // default: 1024
}

// EvalConfig controls the evaluation harness.
type EvalConfig struct {
	// MaxConcurrency bounds parallel extractions against the target site.
	// Keep this low: every slot is a full browser session hitting a
	// third-party server.
	MaxConcurrency int // default: 2

	// Repetitions is how many times each dataset example runs.
	Repetitions int // default: 1

	// ExperimentPrefix names experiments in the store.
	ExperimentPrefix string // default: "chat-langchain"

	// DatasetPath overrides the embedded default dataset.
	DatasetPath string

	// DBPath is the sqlite experiment store location.
	DBPath string // default: "chatprobe.db"

	// WebhookURL, if set, receives an eval.completed event.
	WebhookURL string

	// WebhookSecret signs webhook payloads with HMAC-SHA256.
	WebhookSecret string
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key. Each request is a
	// full browser round-trip against a third-party site, so the default is
	// far lower than a typical API limit.
	RequestsPerSecond float64 // default: 1

	// Burst is the maximum burst size per API key.
	Burst int // default: 2
}

// CacheConfig controls the answer cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached answers.
	MaxEntries int // default: 256
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("CHATPROBE_HOST", "0.0.0.0"),
			Port: envIntOr("CHATPROBE_PORT", 8080),
			Mode: envOr("CHATPROBE_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:             envBoolOr("CHATPROBE_HEADLESS", true),
			NoSandbox:            envBoolOr("CHATPROBE_NO_SANDBOX", false),
			BrowserBin:           os.Getenv("CHATPROBE_BROWSER_BIN"),
			Stealth:              envBoolOr("CHATPROBE_STEALTH", false),
			BlockedResourceTypes: envSliceOr("CHATPROBE_BLOCKED_RESOURCES", nil),
		},
		Chat: ChatConfig{
			TargetURL:      envOr("CHATPROBE_TARGET_URL", "https://chat.langchain.com"),
			InputName:      envOr("CHATPROBE_INPUT_NAME", "Ask me anything about"),
			CopyLabel:      envOr("CHATPROBE_COPY_LABEL", "Copy"),
			DefaultTimeout: envDurationOr("CHATPROBE_DEFAULT_TIMEOUT", 30*time.Second),
			MaxTimeout:     envDurationOr("CHATPROBE_MAX_TIMEOUT", 120*time.Second),
			GraceDelay:     envDurationOr("CHATPROBE_GRACE_DELAY", 2*time.Second),
			SettleDelay:    envDurationOr("CHATPROBE_SETTLE_DELAY", 2*time.Second),
			ClipboardDelay: envDurationOr("CHATPROBE_CLIPBOARD_DELAY", 300*time.Millisecond),
			QuietWindow:    envDurationOr("CHATPROBE_QUIET_WINDOW", 500*time.Millisecond),
		},
		Judge: JudgeConfig{
			Provider:  envOr("CHATPROBE_JUDGE_PROVIDER", "openai"),
			Model:     envOr("CHATPROBE_JUDGE_MODEL", "gpt-4o-mini"),
			BaseURL:   envOr("CHATPROBE_JUDGE_BASE_URL", "https://api.openai.com/v1"),
			APIKey:    envOr("CHATPROBE_JUDGE_API_KEY", os.Getenv("OPENAI_API_KEY")),
			MaxTokens: envIntOr("CHATPROBE_JUDGE_MAX_TOKENS", 1024),
		},
		Eval: EvalConfig{
			MaxConcurrency:   envIntOr("CHATPROBE_EVAL_CONCURRENCY", 2),
			Repetitions:      envIntOr("CHATPROBE_EVAL_REPETITIONS", 1),
			ExperimentPrefix: envOr("CHATPROBE_EXPERIMENT_PREFIX", "chat-langchain"),
			DatasetPath:      os.Getenv("CHATPROBE_DATASET"),
			DBPath:           envOr("CHATPROBE_DB", "chatprobe.db"),
			WebhookURL:       os.Getenv("CHATPROBE_WEBHOOK_URL"),
			WebhookSecret:    os.Getenv("CHATPROBE_WEBHOOK_SECRET"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("CHATPROBE_AUTH_ENABLED", false),
			APIKeys: envSliceOr("CHATPROBE_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("CHATPROBE_RATE_RPS", 1.0),
			Burst:             envIntOr("CHATPROBE_RATE_BURST", 2),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("CHATPROBE_CACHE_MAX_ENTRIES", 256),
		},
		Log: LogConfig{
			Level:  envOr("CHATPROBE_LOG_LEVEL", "info"),
			Format: envOr("CHATPROBE_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
