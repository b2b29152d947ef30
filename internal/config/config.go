package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/crimson-sun/slowlog/internal/engine/heuristic"
	"github.com/crimson-sun/slowlog/internal/model"
)

// Config holds all slowlog configuration.
type Config struct {
	Environment string
	Level       int // minimum level rank, clamped by MinLevel
	Debug       bool
	AccessToken string
	Follow      string // path to tail instead of reading stdin
	FromStart   bool   // when following, read the existing file first
	LogLevel    string

	Rollbar RollbarConfig
	Output  OutputConfig

	// Thresholds maps heuristic keys to raw "b0,b1,b2,b3,b4" strings.
	Thresholds map[string]string
}

// RollbarConfig holds Rollbar transport settings.
type RollbarConfig struct {
	Endpoint  string
	RateLimit float64 // items per second, 0 disables
	RateBurst int
}

// OutputConfig holds the optional extra notification sinks.
type OutputConfig struct {
	JSON         bool // debug reports as NDJSON instead of text
	WebhookURL   string
	FindingsFile string
	ArchivePath  string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return Config{
		Environment: getenv("SLOWLOG_ENVIRONMENT", "production"),
		Level:       getenvInt("SLOWLOG_LEVEL", int(model.Warning)),
		Debug:       getenvBool("SLOWLOG_DEBUG", false),
		AccessToken: os.Getenv("SLOWLOG_ACCESS_TOKEN"),
		Follow:      os.Getenv("SLOWLOG_FOLLOW"),
		FromStart:   getenvBool("SLOWLOG_FROM_START", false),
		LogLevel:    getenv("SLOWLOG_LOG_LEVEL", "info"),
		Rollbar: RollbarConfig{
			Endpoint:  os.Getenv("SLOWLOG_ENDPOINT"),
			RateLimit: getenvFloat("SLOWLOG_RATE_LIMIT", 10),
			RateBurst: getenvInt("SLOWLOG_RATE_BURST", 50),
		},
		Output: OutputConfig{
			JSON:         getenvBool("SLOWLOG_JSON", false),
			WebhookURL:   os.Getenv("SLOWLOG_WEBHOOK_URL"),
			FindingsFile: os.Getenv("SLOWLOG_FINDINGS_FILE"),
			ArchivePath:  os.Getenv("SLOWLOG_ARCHIVE_PATH"),
		},
		Thresholds: loadThresholds(),
	}
}

// MinLevel returns the configured minimum level clamped to Debug..Critical.
func (c Config) MinLevel() model.Level {
	return model.ClampLevel(c.Level)
}

// Overrides parses the threshold strings into heuristic ranges.
func (c Config) Overrides() (map[string]heuristic.Ranges, error) {
	if len(c.Thresholds) == 0 {
		return nil, nil
	}
	out := make(map[string]heuristic.Ranges, len(c.Thresholds))
	var errs []error
	for key, raw := range c.Thresholds {
		r, err := heuristic.ParseRanges(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("threshold %s: %w", key, err))
			continue
		}
		out[key] = r
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

// Validate checks the configuration for errors. It returns all problems found,
// not just the first.
func (c Config) Validate() error {
	var errs []error

	if c.AccessToken == "" && !c.Debug {
		errs = append(errs, errors.New("access token is required unless debug mode is enabled"))
	}
	if strings.TrimSpace(c.Environment) == "" {
		errs = append(errs, errors.New("environment must not be empty"))
	}
	if c.Rollbar.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("rate limit must be >= 0, got %v", c.Rollbar.RateLimit))
	}
	if c.Rollbar.RateLimit > 0 && c.Rollbar.RateBurst < 1 {
		errs = append(errs, fmt.Errorf("rate burst must be >= 1 when rate limiting, got %d", c.Rollbar.RateBurst))
	}

	overrides, err := c.Overrides()
	if err != nil {
		errs = append(errs, err)
	} else if _, err := heuristic.Configure(overrides); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// loadThresholds reads SLOWLOG_THRESHOLDS_<KEY> for every built-in heuristic.
func loadThresholds() map[string]string {
	var m map[string]string
	for _, key := range heuristic.Keys() {
		if v := os.Getenv("SLOWLOG_THRESHOLDS_" + strings.ToUpper(key)); v != "" {
			if m == nil {
				m = make(map[string]string)
			}
			m[key] = v
		}
	}
	return m
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
