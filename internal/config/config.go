// Package config provides configuration for the railbook server.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Browser launch modes.
const (
	ModeLocal  = "local"
	ModeDocker = "docker"
	ModeRemote = "remote"
)

// Config holds the server configuration.
type Config struct {
	// Server settings
	HTTPAddr        string
	ShutdownTimeout time.Duration

	// Logging
	LogLevel  string
	LogFormat string

	// Portal
	PortalURL      string
	CapturePattern string
	RouteLookupURL string

	Browser BrowserConfig

	// Persistence
	ProfileDir string
	StoreDSN   string

	// Rate limiting
	RateLimitPerHour int
	RateLimitBurst   int

	Timings Timings
}

// BrowserConfig controls how the automation browser is started.
type BrowserConfig struct {
	Mode        string
	Bin         string
	Headless    bool
	DebuggerURL string
	UserAgent   string
	Width       int
	Height      int
	DockerImage string
	ProfileName string
}

// Timings are the empirically chosen delays and wait budgets of the UI
// workflows. They can be overridden from a YAML file.
type Timings struct {
	Settle         time.Duration `yaml:"settle"`
	PanelSettle    time.Duration `yaml:"panel_settle"`
	PageLoadSettle time.Duration `yaml:"page_load_settle"`
	StepTimeout    time.Duration `yaml:"step_timeout"`
	OptionalWait   time.Duration `yaml:"optional_wait"`
	OTPWait        time.Duration `yaml:"otp_wait"`
	CaptureWait    time.Duration `yaml:"capture_wait"`
	ProbeTimeout   time.Duration `yaml:"probe_timeout"`
}

// DefaultTimings mirrors the delays the portal has been observed to need.
func DefaultTimings() Timings {
	return Timings{
		Settle:         2 * time.Second,
		PanelSettle:    5 * time.Second,
		PageLoadSettle: 5 * time.Second,
		StepTimeout:    10 * time.Second,
		OptionalWait:   3 * time.Second,
		OTPWait:        10 * time.Second,
		CaptureWait:    30 * time.Second,
		ProbeTimeout:   3 * time.Second,
	}
}

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/140.0.0.0 Safari/537.36"

// Load loads configuration from environment variables, then overlays the
// timings file named by TIMINGS_FILE if set.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPAddr:        getEnv("HTTP_ADDR", ":5000"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "json"),
		PortalURL:       getEnv("PORTAL_URL", "https://askdisha.irctc.co.in/"),
		CapturePattern:  getEnv("CAPTURE_PATTERN", "dishaAPI/bot/editTrains/en"),
		RouteLookupURL:  getEnv("ROUTE_LOOKUP_URL", "https://api.disha.corover.ai/dishaAPI/bot/trainSchedule/en"),
		Browser: BrowserConfig{
			Mode:        getEnv("BROWSER_MODE", ModeLocal),
			Bin:         getEnv("BROWSER_BIN", ""),
			Headless:    getEnvBool("BROWSER_HEADLESS", false),
			DebuggerURL: getEnv("BROWSER_DEBUGGER_URL", ""),
			UserAgent:   getEnv("BROWSER_USER_AGENT", defaultUserAgent),
			Width:       getEnvInt("BROWSER_WIDTH", 1366),
			Height:      getEnvInt("BROWSER_HEIGHT", 900),
			DockerImage: getEnv("DOCKER_IMAGE", "browserless/chrome:latest"),
			ProfileName: getEnv("BROWSER_PROFILE", "default"),
		},
		ProfileDir:       getEnv("PROFILE_DIR", ""),
		StoreDSN:         getEnv("STORE_DSN", "file:railbook.db?_pragma=busy_timeout(5000)"),
		RateLimitPerHour: getEnvInt("RATE_LIMIT_PER_HOUR", 600),
		RateLimitBurst:   getEnvInt("RATE_LIMIT_BURST", 20),
		Timings:          DefaultTimings(),
	}

	if path := os.Getenv("TIMINGS_FILE"); path != "" {
		t, err := LoadTimings(path, cfg.Timings)
		if err != nil {
			return nil, err
		}
		cfg.Timings = t
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadTimings reads a YAML timings file. Keys missing from the file keep the
// values from base.
func LoadTimings(path string, base Timings) (Timings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read timings file: %w", err)
	}
	out := base
	if err := yaml.Unmarshal(data, &out); err != nil {
		return base, fmt.Errorf("parse timings file %s: %w", path, err)
	}
	return out, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Browser.Mode {
	case ModeLocal, ModeDocker:
	case ModeRemote:
		if c.Browser.DebuggerURL == "" {
			return fmt.Errorf("BROWSER_DEBUGGER_URL is required when BROWSER_MODE=remote")
		}
	default:
		return fmt.Errorf("unknown BROWSER_MODE %q (want local, docker or remote)", c.Browser.Mode)
	}
	if c.Browser.Width <= 0 || c.Browser.Height <= 0 {
		return fmt.Errorf("browser window size must be positive, got %dx%d", c.Browser.Width, c.Browser.Height)
	}
	if c.RateLimitPerHour <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit settings must be positive")
	}
	if c.Timings.StepTimeout <= 0 || c.Timings.CaptureWait <= 0 || c.Timings.ProbeTimeout <= 0 {
		return fmt.Errorf("step, capture and probe timeouts must be positive")
	}
	if strings.TrimSpace(c.CapturePattern) == "" {
		return fmt.Errorf("CAPTURE_PATTERN must not be empty")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
