package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// envPrefix namespaces findex environment variables.
	envPrefix = "FINDEX_"

	maxConfigFileSize = 1024 * 1024 // 1MB
)

// Load loads configuration from a YAML file, then overrides with
// environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (FINDEX_SERVER_PORT, FINDEX_VECTORSTORE_PERSIST_PATH, ...)
//  2. YAML config file (default ~/.config/findex/config.yaml)
//  3. Hardcoded defaults
//
// A missing config file is not an error; defaults and environment apply.
//
// Environment variables map to config keys by stripping the FINDEX_
// prefix, lowercasing, and splitting the first underscore group into
// the section name:
//
//	FINDEX_SERVER_PORT                  -> server.port
//	FINDEX_VECTORSTORE_PERSIST_PATH     -> vectorstore.persist_path
//	FINDEX_EMBEDDINGS_MODEL             -> embeddings.model
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "findex", "config.yaml")
	}

	if f, err := os.Open(configPath); err == nil {
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("stat config file: %w", err)
		}
		if info.Size() > maxConfigFileSize {
			return nil, fmt.Errorf("config file %s exceeds %d bytes", configPath, maxConfigFileSize)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("opening config file %s: %w", configPath, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", transformEnvKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// transformEnvKey maps an environment variable name to a koanf key.
// The first underscore separates the section; remaining underscores are
// preserved so compound field names round-trip
// (FINDEX_SERVER_SHUTDOWN_TIMEOUT -> server.shutdown_timeout).
func transformEnvKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	section, rest, found := strings.Cut(s, "_")
	if !found {
		return s
	}
	// Qdrant settings nest one level deeper.
	if section == "vectorstore" {
		if sub, qrest, ok := strings.Cut(rest, "_"); ok && sub == "qdrant" {
			return "vectorstore.qdrant." + qrest
		}
	}
	return section + "." + rest
}
