package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the crawler
type Config struct {
	// Search provider settings
	Provider ProviderConfig `yaml:"provider" json:"provider"`

	// Crawl engine settings
	Crawl CrawlConfig `yaml:"crawl" json:"crawl"`

	// URL storage settings
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Work-list workbook settings
	Worklist WorklistConfig `yaml:"worklist" json:"worklist"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ProviderConfig holds search provider configuration
type ProviderConfig struct {
	Endpoint        string        `yaml:"endpoint" json:"endpoint"`
	Source          string        `yaml:"source" json:"source"`
	Username        string        `yaml:"username" json:"username"`
	Password        string        `yaml:"password" json:"password"`
	ResultsLanguage string        `yaml:"results_language" json:"results_language"`
	RequestTimeout  time.Duration `yaml:"request_timeout" json:"request_timeout"`
}

// CrawlConfig holds pagination and retry configuration
type CrawlConfig struct {
	ResultsPerPage      int           `yaml:"results_per_page" json:"results_per_page"`
	DefaultMaxStart     int           `yaml:"default_max_start" json:"default_max_start"`
	MaxRetries          int           `yaml:"max_retries" json:"max_retries"`
	RetryBaseDelay      time.Duration `yaml:"retry_base_delay" json:"retry_base_delay"`
	MaxConsecutiveEmpty int           `yaml:"max_consecutive_empty" json:"max_consecutive_empty"`
	RequestDelayMin     time.Duration `yaml:"request_delay_min" json:"request_delay_min"`
	RequestDelayMax     time.Duration `yaml:"request_delay_max" json:"request_delay_max"`
	FirstDelayMin       time.Duration `yaml:"first_delay_min" json:"first_delay_min"`
	FirstDelayMax       time.Duration `yaml:"first_delay_max" json:"first_delay_max"`
	SiteMarker          string        `yaml:"site_marker" json:"site_marker"`
	CheckpointFile      string        `yaml:"checkpoint_file" json:"checkpoint_file"`
}

// DatabaseConfig holds URL store configuration
type DatabaseConfig struct {
	DSN      string `yaml:"dsn" json:"dsn"`
	MaxConns int    `yaml:"max_conns" json:"max_conns"`
}

// WorklistConfig holds work-list source configuration
type WorklistConfig struct {
	File string `yaml:"file" json:"file"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file" json:"file"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			Endpoint:        "https://realtime.oxylabs.io/v1/queries",
			Source:          "google_search",
			ResultsLanguage: "en",
			RequestTimeout:  60 * time.Second,
		},
		Crawl: CrawlConfig{
			ResultsPerPage:      10,
			DefaultMaxStart:     3000,
			MaxRetries:          5,
			RetryBaseDelay:      time.Second,
			MaxConsecutiveEmpty: 2,
			RequestDelayMin:     1 * time.Second,
			RequestDelayMax:     2 * time.Second,
			FirstDelayMin:       2 * time.Second,
			FirstDelayMax:       4 * time.Second,
			SiteMarker:          "catawiki.com/en/l/",
			CheckpointFile:      "crawler_checkpoint.json",
		},
		Database: DatabaseConfig{
			MaxConns: 2,
		},
		Worklist: WorklistConfig{
			File: "sheets/catalog.xlsx",
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "",
			MaxSize:    100,
			MaxBackups: 3,
		},
	}
}

// LoadFromEnv loads configuration from environment variables.
// A .env file in the working directory is honored when present.
func (c *Config) LoadFromEnv() error {
	_ = godotenv.Load()

	if user := os.Getenv("SERPHARVEST_API_USER"); user != "" {
		c.Provider.Username = user
	}
	if pass := os.Getenv("SERPHARVEST_API_PASS"); pass != "" {
		c.Provider.Password = pass
	}
	if endpoint := os.Getenv("SERPHARVEST_ENDPOINT"); endpoint != "" {
		c.Provider.Endpoint = endpoint
	}

	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}
	if maxConns := os.Getenv("DB_MAX_CONNS"); maxConns != "" {
		if val, err := strconv.Atoi(maxConns); err == nil && val > 0 {
			c.Database.MaxConns = val
		}
	}

	if file := os.Getenv("SERPHARVEST_WORKBOOK"); file != "" {
		c.Worklist.File = file
	}
	if ckpt := os.Getenv("SERPHARVEST_CHECKPOINT"); ckpt != "" {
		c.Crawl.CheckpointFile = ckpt
	}
	if marker := os.Getenv("SERPHARVEST_SITE_MARKER"); marker != "" {
		c.Crawl.SiteMarker = marker
	}

	if logLevel := os.Getenv("SERPHARVEST_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile := os.Getenv("SERPHARVEST_LOG_FILE"); logFile != "" {
		c.Logging.File = logFile
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".serpharvest.yaml",
		".serpharvest.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "serpharvest", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "serpharvest", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// ApplyFlags overlays command-line flag values onto the configuration
func (c *Config) ApplyFlags(flags map[string]interface{}) {
	for key, value := range flags {
		switch key {
		case "workbook":
			if v, ok := value.(string); ok && v != "" {
				c.Worklist.File = v
			}
		case "checkpoint-file":
			if v, ok := value.(string); ok && v != "" {
				c.Crawl.CheckpointFile = v
			}
		case "site-marker":
			if v, ok := value.(string); ok && v != "" {
				c.Crawl.SiteMarker = v
			}
		case "dsn":
			if v, ok := value.(string); ok && v != "" {
				c.Database.DSN = v
			}
		case "max-retries":
			if v, ok := value.(int); ok && v > 0 {
				c.Crawl.MaxRetries = v
			}
		case "results-per-page":
			if v, ok := value.(int); ok && v > 0 {
				c.Crawl.ResultsPerPage = v
			}
		case "log-level":
			if v, ok := value.(string); ok && v != "" {
				c.Logging.Level = v
			}
		}
	}
}

// Load builds the effective configuration: defaults, then config file,
// then environment, then command-line flags.
func Load(path string, flags map[string]interface{}) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(path); err != nil {
		return nil, err
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	cfg.ApplyFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Provider.Endpoint == "" {
		errs = append(errs, errors.New("provider endpoint is required"))
	}
	if c.Provider.RequestTimeout <= 0 {
		errs = append(errs, errors.New("provider request timeout must be positive"))
	}

	if c.Crawl.ResultsPerPage <= 0 {
		errs = append(errs, errors.New("results per page must be positive"))
	}
	if c.Crawl.DefaultMaxStart < 0 {
		errs = append(errs, errors.New("default max start must be non-negative"))
	}
	if c.Crawl.ResultsPerPage > 0 && c.Crawl.DefaultMaxStart%c.Crawl.ResultsPerPage != 0 {
		errs = append(errs, errors.New("default max start must be a multiple of results per page"))
	}
	if c.Crawl.MaxRetries <= 0 {
		errs = append(errs, errors.New("max retries must be positive"))
	}
	if c.Crawl.MaxConsecutiveEmpty <= 0 {
		errs = append(errs, errors.New("max consecutive empty must be positive"))
	}
	if c.Crawl.RequestDelayMax < c.Crawl.RequestDelayMin {
		errs = append(errs, errors.New("request delay max must not be below min"))
	}
	if c.Crawl.SiteMarker == "" {
		errs = append(errs, errors.New("site marker is required"))
	}
	if c.Crawl.CheckpointFile == "" {
		errs = append(errs, errors.New("checkpoint file is required"))
	}

	if c.Worklist.File == "" {
		errs = append(errs, errors.New("work-list workbook file is required"))
	}

	if len(errs) > 0 {
		var msgs []string
		for _, err := range errs {
			msgs = append(msgs, err.Error())
		}
		return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
	}
	return nil
}
