package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8480, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "findex", cfg.Telemetry.ServiceName)
	assert.Equal(t, "fastembed", cfg.Embeddings.Provider)
	assert.Equal(t, "sentence-transformers/all-MiniLM-L6-v2", cfg.Embeddings.Model)
	assert.Equal(t, "chromem", cfg.VectorStore.Provider)
	assert.Equal(t, "file_names", cfg.VectorStore.DefaultCollection)
	assert.Equal(t, 6334, cfg.VectorStore.Qdrant.Port)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.Equal(t, 100, cfg.Search.MaxLimit)
	assert.Equal(t, 2*time.Second, cfg.Watch.Debounce)
}

func TestApplyDefaults_WatchCollectionFollowsDefault(t *testing.T) {
	var cfg Config
	cfg.VectorStore.DefaultCollection = "docs"
	cfg.ApplyDefaults()

	assert.Equal(t, "docs", cfg.Watch.Collection)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.Server.Port = -1 },
			wantErr: "invalid server port",
		},
		{
			name:    "invalid logging format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "invalid logging format",
		},
		{
			name:    "invalid embeddings provider",
			mutate:  func(c *Config) { c.Embeddings.Provider = "openai" },
			wantErr: "invalid embeddings provider",
		},
		{
			name: "tei requires base url",
			mutate: func(c *Config) {
				c.Embeddings.Provider = "tei"
				c.Embeddings.BaseURL = ""
			},
			wantErr: "base_url is required",
		},
		{
			name:    "invalid vectorstore provider",
			mutate:  func(c *Config) { c.VectorStore.Provider = "pinecone" },
			wantErr: "invalid vectorstore provider",
		},
		{
			name: "max limit below default limit",
			mutate: func(c *Config) {
				c.Search.DefaultLimit = 50
				c.Search.MaxLimit = 5
			},
			wantErr: "max_limit",
		},
		{
			name: "watch requires directory",
			mutate: func(c *Config) {
				c.Watch.Enabled = true
				c.Watch.Directory = ""
			},
			wantErr: "watch.directory is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			cfg.ApplyDefaults()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoad_FileAndDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9999
vectorstore:
  provider: qdrant
  qdrant:
    host: qdrant.internal
search:
  default_limit: 3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "qdrant", cfg.VectorStore.Provider)
	assert.Equal(t, "qdrant.internal", cfg.VectorStore.Qdrant.Host)
	assert.Equal(t, 3, cfg.Search.DefaultLimit)
	// defaults still apply for unset fields
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 6334, cfg.VectorStore.Qdrant.Port)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8480, cfg.Server.Port)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o600))

	t.Setenv("FINDEX_SERVER_PORT", "9001")
	t.Setenv("FINDEX_VECTORSTORE_PERSIST_PATH", "/tmp/findex-test")
	t.Setenv("FINDEX_VECTORSTORE_QDRANT_HOST", "env-host")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, "/tmp/findex-test", cfg.VectorStore.PersistPath)
	assert.Equal(t, "env-host", cfg.VectorStore.Qdrant.Host)
}

func TestLoad_InvalidConfigRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  format: xml\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestTransformEnvKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"FINDEX_SERVER_PORT", "server.port"},
		{"FINDEX_SERVER_SHUTDOWN_TIMEOUT", "server.shutdown_timeout"},
		{"FINDEX_VECTORSTORE_PERSIST_PATH", "vectorstore.persist_path"},
		{"FINDEX_VECTORSTORE_QDRANT_HOST", "vectorstore.qdrant.host"},
		{"FINDEX_EMBEDDINGS_MODEL", "embeddings.model"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, transformEnvKey(tt.in), tt.in)
	}
}
