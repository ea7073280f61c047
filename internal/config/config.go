// Package config provides configuration loading and structs for refine.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Validation errors.
var (
	ErrInvalidPrecision  = errors.New("target precision must be a number in (0, 1]")
	ErrEmptyQuery        = errors.New("query cannot be empty")
	ErrInvalidTextSource = errors.New("text source must be \"full\" or \"snippet\"")
	ErrInvalidMaxTerms   = errors.New("max new terms must be at least 1")
)

// Text sources for document bodies.
const (
	TextSourceFull    = "full"
	TextSourceSnippet = "snippet"
)

// Config holds all configuration for the application.
type Config struct {
	Debug    bool           `yaml:"debug"`
	Search   SearchConfig   `yaml:"search"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Feedback FeedbackConfig `yaml:"feedback"`
	Bigram   BigramConfig   `yaml:"bigram"`
	Storage  StorageConfig  `yaml:"storage"`
	Server   ServerConfig   `yaml:"server"`
}

// SearchConfig holds Custom Search API settings.
type SearchConfig struct {
	Endpoint          string        `yaml:"endpoint"`
	APIKey            string        `yaml:"api_key"`
	EngineID          string        `yaml:"engine_id"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Timeout           time.Duration `yaml:"timeout"`
}

// FetchConfig holds result page download settings.
type FetchConfig struct {
	TextSource        string        `yaml:"text_source"`
	Timeout           time.Duration `yaml:"timeout"`
	UserAgent         string        `yaml:"user_agent"`
	MaxBodyBytes      int64         `yaml:"max_body_bytes"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	RespectRobots     bool          `yaml:"respect_robots"`
	// CacheSize is the number of fetched pages kept per run; 0 disables the cache.
	CacheSize         int           `yaml:"cache_size"`
}

// FeedbackConfig holds loop and Rocchio parameters.
type FeedbackConfig struct {
	TargetPrecision float64 `yaml:"target_precision"`
	MaxNewTerms     int     `yaml:"max_new_terms"`
	Alpha           float64 `yaml:"alpha"`
	Beta            float64 `yaml:"beta"`
	Gamma           float64 `yaml:"gamma"`
	MaxRounds       int     `yaml:"max_rounds"`
}

// BigramConfig holds the reference corpus for term ordering.
type BigramConfig struct {
	CorpusPath string `yaml:"corpus_path"`
	Cache      *bool  `yaml:"cache"`
}

// CacheOrDefault returns whether built tables are cached; defaults to true when unset.
func (b *BigramConfig) CacheOrDefault() bool {
	if b.Cache != nil {
		return *b.Cache
	}
	return true
}

// StorageConfig holds paths for the database and the local search index.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	IndexPath    string `yaml:"index_path"`
	Journal      *bool  `yaml:"journal"`
}

// JournalOrDefault returns whether sessions are journaled; defaults to true when unset.
func (s *StorageConfig) JournalOrDefault() bool {
	if s.Journal != nil {
		return *s.Journal
	}
	return true
}

// ServerConfig holds the local search server settings.
type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Watch       *bool    `yaml:"watch"`
}

// WatchOrDefault returns whether served directories are watched; defaults to true when unset.
func (s *ServerConfig) WatchOrDefault() bool {
	if s.Watch != nil {
		return *s.Watch
	}
	return true
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.IndexPath = expandPath(cfg.Storage.IndexPath, configDir)
	if cfg.Bigram.CorpusPath != "" {
		cfg.Bigram.CorpusPath = expandPath(cfg.Bigram.CorpusPath, configDir)
	}
	for i := range cfg.Server.Directories {
		cfg.Server.Directories[i] = expandPath(cfg.Server.Directories[i], configDir)
	}

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks the values a feedback run depends on.
func (c *Config) Validate() error {
	if p := c.Feedback.TargetPrecision; !validPrecision(p) {
		return fmt.Errorf("%w: got %v", ErrInvalidPrecision, p)
	}
	if c.Fetch.TextSource != TextSourceFull && c.Fetch.TextSource != TextSourceSnippet {
		return fmt.Errorf("%w: got %q", ErrInvalidTextSource, c.Fetch.TextSource)
	}
	if c.Feedback.MaxNewTerms < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidMaxTerms, c.Feedback.MaxNewTerms)
	}
	if c.Feedback.MaxRounds < 0 {
		return fmt.Errorf("max rounds must not be negative: got %d", c.Feedback.MaxRounds)
	}
	return nil
}

// ParsePrecision parses a target precision argument in (0, 1].
func ParsePrecision(s string) (float64, error) {
	p, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: got %q", ErrInvalidPrecision, s)
	}
	if !validPrecision(p) {
		return 0, fmt.Errorf("%w: got %v", ErrInvalidPrecision, p)
	}
	return p, nil
}

// A target of 0 would be met by any round, and NaN by none.
func validPrecision(p float64) bool {
	return !math.IsNaN(p) && p > 0 && p <= 1
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
