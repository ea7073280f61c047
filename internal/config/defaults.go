package config

import "time"

// DefaultEndpoint is the Google Custom Search JSON API.
const DefaultEndpoint = "https://www.googleapis.com/customsearch/v1"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Search.Endpoint == "" {
		cfg.Search.Endpoint = DefaultEndpoint
	}
	if cfg.Search.RequestsPerSecond == 0 {
		cfg.Search.RequestsPerSecond = 1
	}
	if cfg.Search.Timeout == 0 {
		cfg.Search.Timeout = 10 * time.Second
	}
	if cfg.Fetch.TextSource == "" {
		cfg.Fetch.TextSource = TextSourceFull
	}
	if cfg.Fetch.Timeout == 0 {
		cfg.Fetch.Timeout = 5 * time.Second
	}
	if cfg.Fetch.UserAgent == "" {
		cfg.Fetch.UserAgent = "refine/1.0 (+relevance feedback)"
	}
	if cfg.Fetch.MaxBodyBytes == 0 {
		cfg.Fetch.MaxBodyBytes = 2 << 20
	}
	if cfg.Fetch.RequestsPerSecond == 0 {
		cfg.Fetch.RequestsPerSecond = 5
	}
	if cfg.Fetch.CacheSize == 0 {
		cfg.Fetch.CacheSize = 256
	}
	if cfg.Feedback.MaxNewTerms == 0 {
		cfg.Feedback.MaxNewTerms = 2
	}
	if cfg.Feedback.Alpha == 0 {
		cfg.Feedback.Alpha = 1.0
	}
	if cfg.Feedback.Beta == 0 {
		cfg.Feedback.Beta = 0.75
	}
	if cfg.Feedback.Gamma == 0 {
		cfg.Feedback.Gamma = 0.15
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/refine/data/refine.db"
	}
	if cfg.Storage.IndexPath == "" {
		cfg.Storage.IndexPath = "/usr/local/var/refine/data/indices/bleve"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Extensions == nil {
		cfg.Server.Extensions = []string{".txt", ".md", ".rst", ".html", ".htm", ".pdf", ".docx", ".xlsx", ".pptx", ".odp", ".ods", ".odt", ".rtf"}
	}
}
