package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
)

// Config holds all application configuration.
type Config struct {
	HTTP    HTTPConfig
	Browser BrowserConfig
	Log     LogConfig
}

// HTTPConfig controls the endpoint fetch client.
type HTTPConfig struct {
	// Timeout is the per-request deadline.
	Timeout time.Duration // default: 30s

	// RetryWaitMin is the base backoff between retry attempts.
	RetryWaitMin time.Duration // default: 1s

	// RetryWaitMax caps the exponential backoff.
	RetryWaitMax time.Duration // default: 16s

	// PageRPS throttles page fetches within one traversal, in requests
	// per second. 0 disables pacing.
	PageRPS float64 // default: 2
}

// BrowserConfig controls the Rod browser session.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is the proxy URL for all browser traffic.
	Proxy string

	// UserAgent overrides the browser's user agent when non-empty.
	UserAgent string

	// CaptureWindow is how long one round waits for an intercepted search
	// payload before falling back to the rendered DOM.
	CaptureWindow time.Duration // default: 20s

	// SettleDelay is the pause after each scroll, giving late XHRs time
	// to land before the next round.
	SettleDelay time.Duration // default: 1s

	// MaxIdleRounds is how many consecutive rounds may produce nothing new
	// before the traversal reports exhaustion.
	MaxIdleRounds int // default: 2

	// BlockedResourceTypes lists resource types dropped during capture.
	// Stylesheets stay on so the result cards still render.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string

	// SeeMoreSelector, when set, is clicked once per round to expand
	// truncated result lists. Must be a valid CSS selector.
	SeeMoreSelector string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "text"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:      envDurationOr("ADLIB_HTTP_TIMEOUT", 30*time.Second),
			RetryWaitMin: envDurationOr("ADLIB_RETRY_WAIT_MIN", time.Second),
			RetryWaitMax: envDurationOr("ADLIB_RETRY_WAIT_MAX", 16*time.Second),
			PageRPS:      envFloatOr("ADLIB_PAGE_RPS", 2.0),
		},
		Browser: BrowserConfig{
			Headless:      envBoolOr("ADLIB_HEADLESS", true),
			NoSandbox:     envBoolOr("ADLIB_NO_SANDBOX", false),
			BrowserBin:    os.Getenv("ADLIB_BROWSER_BIN"),
			Proxy:         os.Getenv("ADLIB_PROXY"),
			UserAgent:     os.Getenv("ADLIB_USER_AGENT"),
			CaptureWindow: envDurationOr("ADLIB_CAPTURE_WINDOW", 20*time.Second),
			SettleDelay:   envDurationOr("ADLIB_SETTLE_DELAY", time.Second),
			MaxIdleRounds: envIntOr("ADLIB_MAX_IDLE_ROUNDS", 2),
			BlockedResourceTypes: envSliceOr("ADLIB_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
			SeeMoreSelector: os.Getenv("ADLIB_SEE_MORE_SELECTOR"),
		},
		Log: LogConfig{
			Level:  envOr("ADLIB_LOG_LEVEL", "info"),
			Format: envOr("ADLIB_LOG_FORMAT", "text"),
		},
	}
}

// Validate rejects values that would only fail deep inside a traversal,
// selector syntax in particular.
func (c *Config) Validate() error {
	if sel := c.Browser.SeeMoreSelector; sel != "" {
		if _, err := cascadia.Parse(sel); err != nil {
			return fmt.Errorf("config: invalid ADLIB_SEE_MORE_SELECTOR %q: %w", sel, err)
		}
	}
	if c.Browser.MaxIdleRounds < 1 {
		return fmt.Errorf("config: ADLIB_MAX_IDLE_ROUNDS must be at least 1")
	}
	if c.HTTP.PageRPS < 0 {
		return fmt.Errorf("config: ADLIB_PAGE_RPS must not be negative")
	}
	return nil
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
