package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds scraper configuration.
type Config struct {
	URLs               []string
	Parallelism        int
	Delay              time.Duration
	RandomDelay        time.Duration
	Timeout            time.Duration
	MaxRetries         int
	RetryBackoff       time.Duration
	RetryBackoffMax    time.Duration
	OutputFile         string
	OutputFormat       string // csv, json, dual, or none
	UserAgent          string
	Verbose            bool
	RespectRobotsTxt   bool
	MetricsAddr        string
	PipelineBufferSize int
	BatchSize          int
	DedupeMaxSize      int

	// DatabasePath enables price tracking and notifications when set.
	DatabasePath    string
	PricingFile     string
	NotifyThreshold int
	DefaultCurrency string
	Subscribe       string
}

// DefaultConfig returns conservative defaults.
func DefaultConfig() *Config {
	return &Config{
		Parallelism:        4,
		Delay:              500 * time.Millisecond,
		RandomDelay:        500 * time.Millisecond,
		Timeout:            15 * time.Second,
		MaxRetries:         2,
		RetryBackoff:       200 * time.Millisecond,
		RetryBackoffMax:    2 * time.Second,
		OutputFile:         "output/products.csv",
		OutputFormat:       "csv",
		UserAgent:          "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		Verbose:            false,
		RespectRobotsTxt:   false,
		MetricsAddr:        "",
		PipelineBufferSize: 512,
		BatchSize:          64,
		DedupeMaxSize:      100000,
		NotifyThreshold:    40,
		DefaultCurrency:    "$",
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if len(c.URLs) == 0 {
		return fmt.Errorf("at least one product URL is required")
	}
	for _, raw := range c.URLs {
		parsedURL, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid product URL %q: %w", raw, err)
		}
		if parsedURL.Host == "" {
			return fmt.Errorf("product URL %q must include a host", raw)
		}
		if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			return fmt.Errorf("product URL %q must use http or https", raw)
		}
	}

	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
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
		if c.DatabasePath == "" {
			return fmt.Errorf("output format none requires a database path")
		}
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
	if c.NotifyThreshold < 0 || c.NotifyThreshold > 100 {
		return fmt.Errorf("notify threshold must be between 0 and 100")
	}
	if c.Subscribe != "" && c.DatabasePath == "" {
		return fmt.Errorf("subscribe requires a database path")
	}

	return nil
}
