package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds scraper configuration.
type Config struct {
	BaseURL          string
	Areas            []string
	Workers          int
	Delay            time.Duration // politeness interval between area requests
	PageDelay        time.Duration // interval between detail/probe page requests
	RandomDelay      time.Duration
	Timeout          time.Duration
	MaxRetries       int
	RetryBackoff     time.Duration
	RetryBackoffMax  time.Duration
	OutputFile       string
	OutputFormat     string // csv, json, dual, or none
	UserAgent        string
	Verbose          bool
	RespectRobotsTxt bool
	MetricsAddr      string
	LogFile          string

	PipelineBufferSize int
	BatchSize          int
	DedupeMaxSize      int

	ProfileFile string
	Profile     *SiteProfile

	StoreDSN string

	PageCacheSize int
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration
}

// DefaultConfig returns conservative defaults. BaseURL and Areas have no
// default and must be supplied by the caller.
func DefaultConfig() *Config {
	return &Config{
		Workers:            1,
		Delay:              2500 * time.Millisecond,
		PageDelay:          500 * time.Millisecond,
		RandomDelay:        0,
		Timeout:            15 * time.Second,
		MaxRetries:         1,
		RetryBackoff:       500 * time.Millisecond,
		RetryBackoffMax:    5 * time.Second,
		OutputFile:         "output/listings.csv",
		OutputFormat:       "csv",
		UserAgent:          "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		Verbose:            false,
		RespectRobotsTxt:   false,
		PipelineBufferSize: 256,
		BatchSize:          32,
		DedupeMaxSize:      100000,
		Profile:            DefaultProfile(),
		StoreDSN:           "memory",
		PageCacheSize:      2048,
		CacheTTL:           24 * time.Hour,
	}
}

// Validate ensures all configuration values are coherent. It runs before any
// network activity so a missing base URL or area list fails fast.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if len(c.Areas) == 0 {
		return fmt.Errorf("areas cannot be empty")
	}
	for i, area := range c.Areas {
		if strings.TrimSpace(area) == "" {
			return fmt.Errorf("area %d is blank", i)
		}
	}

	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.PageDelay < 0 {
		return fmt.Errorf("page delay cannot be negative")
	}
	if c.RandomDelay < 0 {
		return fmt.Errorf("random delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	switch c.OutputFormat {
	case "csv", "json", "dual":
		if c.OutputFile == "" {
			return fmt.Errorf("output file cannot be empty")
		}
	case "none":
	default:
		return fmt.Errorf("output format must be csv, json, dual, or none")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.PipelineBufferSize <= 0 {
		return fmt.Errorf("pipeline buffer size must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}
	if c.PageCacheSize <= 0 {
		return fmt.Errorf("page cache size must be positive")
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache ttl cannot be negative")
	}
	if c.Profile == nil {
		return fmt.Errorf("site profile cannot be nil")
	}
	if err := c.Profile.Validate(); err != nil {
		return fmt.Errorf("site profile: %w", err)
	}

	return nil
}

// ParseAreas splits a comma or newline separated area list, dropping blanks.
func ParseAreas(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})
	areas := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" || strings.HasPrefix(f, "#") {
			continue
		}
		areas = append(areas, f)
	}
	return areas
}

// LoadAreasFile reads one area per line (comments with '#').
func LoadAreasFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read areas file: %w", err)
	}
	return ParseAreas(string(data)), nil
}

// LoadDotEnv loads a .env file into the process environment. A missing file
// is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// EnvString returns the value of key when it is set and non-empty.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return "", false
	}
	return value, true
}

// EnvInt parses key as an integer when it is set.
func EnvInt(key string) (int, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return n, true, nil
}
