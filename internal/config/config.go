// Package config provides configuration loading for findex.
//
// Configuration is loaded from a YAML file with environment variable
// overrides. See Load for precedence rules.
package config

import (
	"fmt"
	"time"
)

// Config holds the complete findex configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Search      SearchConfig      `koanf:"search"`
	Watch       WatchConfig       `koanf:"watch"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `koanf:"level"`
	// Format is the output encoding: json or console.
	Format string `koanf:"format"`
}

// TelemetryConfig holds OpenTelemetry configuration.
type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
	// Endpoint is the OTLP gRPC endpoint (host:port).
	Endpoint string `koanf:"endpoint"`
	Insecure bool   `koanf:"insecure"`
}

// EmbeddingsConfig holds embedding provider configuration.
type EmbeddingsConfig struct {
	// Provider is the provider type: "fastembed" or "tei".
	Provider string `koanf:"provider"`
	// Model is the embedding model name.
	Model string `koanf:"model"`
	// BaseURL is the TEI server URL (TEI provider only).
	BaseURL string `koanf:"base_url"`
	// CacheDir is the model cache directory (FastEmbed only).
	CacheDir string `koanf:"cache_dir"`
}

// VectorStoreConfig holds vector store configuration.
type VectorStoreConfig struct {
	// Provider is the backend: "chromem" (embedded, default) or "qdrant".
	Provider string `koanf:"provider"`
	// PersistPath is the default persistence directory for chromem.
	// Callers may override it per request.
	PersistPath string `koanf:"persist_path"`
	// DefaultCollection is the collection used when a request names none.
	DefaultCollection string `koanf:"default_collection"`
	// Compress enables gzip compression of persisted chromem data.
	Compress bool `koanf:"compress"`

	Qdrant QdrantConfig `koanf:"qdrant"`
}

// QdrantConfig holds Qdrant connection settings (qdrant provider only).
type QdrantConfig struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	UseTLS bool   `koanf:"use_tls"`
}

// SearchConfig holds query engine configuration.
type SearchConfig struct {
	// DefaultLimit is used when a search request gives no limit.
	DefaultLimit int `koanf:"default_limit"`
	// MaxLimit caps the number of hits a single search may return.
	MaxLimit int `koanf:"max_limit"`
}

// WatchConfig holds filesystem watch configuration.
type WatchConfig struct {
	Enabled bool `koanf:"enabled"`
	// Directory is the tree to watch and re-index on changes.
	Directory string `koanf:"directory"`
	// Collection receives the re-indexed records.
	Collection string        `koanf:"collection"`
	Recursive  bool          `koanf:"recursive"`
	Debounce   time.Duration `koanf:"debounce"`
	// ExcludeDirs lists directory names skipped during indexing.
	ExcludeDirs []string `koanf:"exclude_dirs"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8480
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "findex"
	}
	if c.Telemetry.Endpoint == "" {
		c.Telemetry.Endpoint = "localhost:4317"
	}
	if c.Embeddings.Provider == "" {
		c.Embeddings.Provider = "fastembed"
	}
	if c.Embeddings.Model == "" {
		c.Embeddings.Model = "sentence-transformers/all-MiniLM-L6-v2"
	}
	if c.VectorStore.Provider == "" {
		c.VectorStore.Provider = "chromem"
	}
	if c.VectorStore.PersistPath == "" {
		c.VectorStore.PersistPath = "~/.local/share/findex/vectorstore"
	}
	if c.VectorStore.DefaultCollection == "" {
		c.VectorStore.DefaultCollection = "file_names"
	}
	if c.VectorStore.Qdrant.Host == "" {
		c.VectorStore.Qdrant.Host = "localhost"
	}
	if c.VectorStore.Qdrant.Port == 0 {
		c.VectorStore.Qdrant.Port = 6334
	}
	if c.Search.DefaultLimit == 0 {
		c.Search.DefaultLimit = 10
	}
	if c.Search.MaxLimit == 0 {
		c.Search.MaxLimit = 100
	}
	if c.Watch.Debounce == 0 {
		c.Watch.Debounce = 2 * time.Second
	}
	if c.Watch.Collection == "" {
		c.Watch.Collection = c.VectorStore.DefaultCollection
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid logging format: %q (expected json or console)", c.Logging.Format)
	}
	switch c.Embeddings.Provider {
	case "fastembed", "tei":
	default:
		return fmt.Errorf("invalid embeddings provider: %q (expected fastembed or tei)", c.Embeddings.Provider)
	}
	if c.Embeddings.Provider == "tei" && c.Embeddings.BaseURL == "" {
		return fmt.Errorf("embeddings.base_url is required for the tei provider")
	}
	switch c.VectorStore.Provider {
	case "chromem", "qdrant":
	default:
		return fmt.Errorf("invalid vectorstore provider: %q (expected chromem or qdrant)", c.VectorStore.Provider)
	}
	if c.Search.MaxLimit < c.Search.DefaultLimit {
		return fmt.Errorf("search.max_limit (%d) must be >= search.default_limit (%d)", c.Search.MaxLimit, c.Search.DefaultLimit)
	}
	if c.Watch.Enabled && c.Watch.Directory == "" {
		return fmt.Errorf("watch.directory is required when watch is enabled")
	}
	return nil
}
