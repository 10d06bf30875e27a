// Package config provides configuration loading for kbase.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/parchment-dev/kbase/internal/kberrors"
)

const maxConfigFileSize = 1024 * 1024 // 1MB

// LoadWithFile loads configuration from a YAML file, then overrides with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (KB_SERVER_HTTP_PORT, KB_MAX_WORKERS, ...)
//  2. YAML config file (~/.config/kbase/config.yaml)
//  3. Hardcoded defaults
//
// # Security considerations
//
// File permissions: the configuration file MUST have 0600 or 0400
// permissions (owner read[/write] only); world-readable files are rejected.
//
// Path validation: only files under ~/.config/kbase/ or /etc/kbase/ may be
// loaded, to prevent path traversal.
//
// File size limit: files over 1MB are rejected.
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "kbase", "config.yaml")
	}

	if err := validateConfigPath(configPath); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if err := validateConfigFileProperties(info); err != nil {
			return nil, fmt.Errorf("config file validation failed: %w", err)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Environment variables use the KB_ prefix, underscore separator, and
	// are uppercased. The first word names the section
	// (KB_SERVER_HTTP_PORT -> server.http_port); KB_OTEL_* maps to
	// observability, and a key whose first word is not a section
	// (KB_MAX_WORKERS -> knowledgebase.max_workers) maps to knowledgebase.
	if err := k.Load(env.Provider("KB_", ".", func(s string) string {
		lower := strings.ToLower(strings.TrimPrefix(s, "KB_"))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		switch parts[0] {
		case "otel":
			return "observability." + parts[1]
		case "server", "observability", "knowledgebase", "project", "vectorstore", "qdrant", "embeddings", "repository", "nats":
			return parts[0] + "." + parts[1]
		default:
			return "knowledgebase." + lower
		}
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: config validation failed: %w", kberrors.ErrConfigError, err)
	}

	return &cfg, nil
}

// EnsureConfigDir creates the kbase config directory if it doesn't exist.
func EnsureConfigDir() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	configDir := filepath.Join(home, ".config", "kbase")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", configDir, err)
	}
	return nil
}

// validateConfigPath checks if path is in allowed directories, even if the
// file doesn't exist yet.
func validateConfigPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		resolvedPath = absPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	allowedDirs := []string{
		filepath.Join(home, ".config", "kbase"),
		"/etc/kbase",
	}

	for _, dir := range allowedDirs {
		if resolvedPath == dir || strings.HasPrefix(resolvedPath, dir+string(filepath.Separator)) {
			return nil
		}
	}
	return fmt.Errorf("config file must be in ~/.config/kbase/ or /etc/kbase/")
}

// validateConfigFileProperties checks file permissions and size.
func validateConfigFileProperties(info os.FileInfo) error {
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}

// applyDefaults sets default values for any field left unset after loading.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9090
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "kbase"
	}

	if cfg.KnowledgeBase.CacheFile == "" {
		cfg.KnowledgeBase.CacheFile = "~/.config/kbase/cache.json"
	}
	if cfg.KnowledgeBase.MaxCacheSize == 0 {
		cfg.KnowledgeBase.MaxCacheSize = 1000
	}
	if cfg.KnowledgeBase.HeartbeatInterval == 0 {
		cfg.KnowledgeBase.HeartbeatInterval = 30 * time.Second
	}
	if cfg.KnowledgeBase.MaxWorkers == 0 {
		cfg.KnowledgeBase.MaxWorkers = runtime.NumCPU()
	}
	if cfg.KnowledgeBase.EmbeddingModel == "" {
		cfg.KnowledgeBase.EmbeddingModel = "BAAI/bge-small-en-v1.5"
	}
	if cfg.KnowledgeBase.VectorSearchMode == "" {
		cfg.KnowledgeBase.VectorSearchMode = "hybrid"
	}
	if cfg.KnowledgeBase.ChunkSize == 0 {
		cfg.KnowledgeBase.ChunkSize = 1000
	}
	if cfg.KnowledgeBase.ChunkingStrategy == "" {
		cfg.KnowledgeBase.ChunkingStrategy = "recursive"
	}
	if len(cfg.KnowledgeBase.FileExtensions) == 0 {
		cfg.KnowledgeBase.FileExtensions = []string{".md"}
	}
	if cfg.KnowledgeBase.HybridAlpha == 0 {
		cfg.KnowledgeBase.HybridAlpha = 0.7
	}

	if cfg.Project.DSN == "" {
		cfg.Project.DSN = "~/.config/kbase/projects.db"
	}

	if cfg.Qdrant.Host == "" {
		cfg.Qdrant.Host = "localhost"
	}
	if cfg.Qdrant.Port == 0 {
		cfg.Qdrant.Port = 6334
	}
	if cfg.Qdrant.CollectionName == "" {
		cfg.Qdrant.CollectionName = "kb_default"
	}
	if cfg.Qdrant.VectorSize == 0 {
		cfg.Qdrant.VectorSize = 384
	}

	if cfg.VectorStore.Provider == "" {
		cfg.VectorStore.Provider = "chromem"
	}
	if cfg.VectorStore.Chromem.Path == "" {
		cfg.VectorStore.Chromem.Path = "~/.config/kbase/vectorstore"
	}
	if cfg.VectorStore.Chromem.DefaultCollection == "" {
		cfg.VectorStore.Chromem.DefaultCollection = "kb_default"
	}
	if cfg.VectorStore.Chromem.VectorSize == 0 {
		cfg.VectorStore.Chromem.VectorSize = 384
	}

	if cfg.Embeddings.Provider == "" {
		cfg.Embeddings.Provider = "fastembed"
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "BAAI/bge-small-en-v1.5"
	}

	if len(cfg.Repository.IgnoreFiles) == 0 {
		cfg.Repository.IgnoreFiles = []string{".gitignore", ".kbaseignore"}
	}
	if len(cfg.Repository.FallbackExcludes) == 0 {
		cfg.Repository.FallbackExcludes = []string{".git/**", "node_modules/**", "vendor/**", "__pycache__/**"}
	}
}
