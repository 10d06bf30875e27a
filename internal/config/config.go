// Package config provides configuration loading for kbase.
//
// Configuration is loaded from a YAML file and overridden by environment
// variables prefixed KB_, with environment variables taking precedence.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Config holds the complete kbase configuration.
type Config struct {
	Server        ServerConfig
	Observability ObservabilityConfig
	KnowledgeBase KnowledgeBaseConfig
	Project       ProjectStoreConfig
	VectorStore   VectorStoreConfig
	Qdrant        QdrantConfig
	Embeddings    EmbeddingsConfig
	Repository    RepositoryConfig
	Nats          NatsConfig
}

// NatsConfig holds the optional NATS connection used for best-effort
// project lifecycle notifications. URL empty disables NATS entirely; no
// code path requires a connection to function.
type NatsConfig struct {
	URL string `koanf:"url"`
}

// ServerConfig holds HTTP server configuration. The HTTP surface itself is
// out of scope; only the listener settings an embedding application needs
// are kept here.
type ServerConfig struct {
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool   `koanf:"enable_telemetry"`
	ServiceName     string `koanf:"service_name"`
	OTLPEndpoint    string `koanf:"otlp_endpoint"`
	OTLPInsecure    bool   `koanf:"otlp_insecure"`
}

// KnowledgeBaseConfig holds the options named in the hybrid-retrieval
// configuration table: ingestion sources, caching, worker pool sizing,
// chunking, and search-mode selection.
type KnowledgeBaseConfig struct {
	// KnowledgeDirs are the directories ingestion walks for source documents.
	KnowledgeDirs []string `koanf:"knowledge_dirs"`

	// CacheFile is the path to the repository's JSON snapshot file.
	CacheFile string `koanf:"cache_file"`

	// MaxCacheSize is the per-project query cache capacity.
	MaxCacheSize int `koanf:"max_cache_size"`

	// HeartbeatInterval is the background health tick period. Must be >= 10s.
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`

	// MaxWorkers bounds ingestion parallelism. Defaults to host CPU count.
	MaxWorkers int `koanf:"max_workers"`

	// EmbeddingModel identifies the embedding model used for new projects.
	EmbeddingModel string `koanf:"embedding_model"`

	// VectorSearchMode is one of "vector", "keyword", "hybrid".
	VectorSearchMode string `koanf:"vector_search_mode"`

	// ChunkSize and ChunkOverlap control document chunking at ingestion.
	// ChunkOverlap must be < ChunkSize and >= 0.
	ChunkSize    int `koanf:"chunk_size"`
	ChunkOverlap int `koanf:"chunk_overlap"`

	// ChunkingStrategy is one of "semantic", "recursive", "markdown", "code", "auto".
	ChunkingStrategy string `koanf:"chunking_strategy"`

	// UseVectorSearch is a master switch; when false, only keyword search runs.
	UseVectorSearch bool `koanf:"use_vector_search"`

	// FileExtensions lists the file extensions discovery considers. Default: [".md"].
	FileExtensions []string `koanf:"file_extensions"`

	// HybridAlpha is the default Reciprocal Rank Fusion weight toward the
	// vector ranking (0 = keyword only, 1 = vector only).
	HybridAlpha float64 `koanf:"hybrid_alpha"`
}

// ProjectStoreConfig holds the metadata store location for ProjectManager.
type ProjectStoreConfig struct {
	// DSN is the SQLite data source name, e.g. "file:/data/kbase/projects.db".
	DSN string `koanf:"dsn"`
}

// RepositoryConfig holds document-discovery exclusion configuration.
type RepositoryConfig struct {
	// IgnoreFiles lists ignore-file names to parse from each knowledge
	// directory's root; patterns found there replace FallbackExcludes.
	IgnoreFiles []string `koanf:"ignore_files"`

	// FallbackExcludes are glob patterns excluded from discovery in a
	// knowledge directory that has none of IgnoreFiles.
	FallbackExcludes []string `koanf:"fallback_excludes"`
}

// VectorStoreConfig holds vectorstore provider configuration.
type VectorStoreConfig struct {
	Provider string        `koanf:"provider"` // "chromem" or "qdrant" (default: "chromem")
	Chromem  ChromemConfig `koanf:"chromem"`
}

// Validate validates VectorStoreConfig.
func (c *VectorStoreConfig) Validate() error {
	switch c.Provider {
	case "chromem":
		return c.Chromem.Validate()
	case "qdrant":
		return nil
	default:
		return fmt.Errorf("unsupported provider: %s (supported: chromem, qdrant)", c.Provider)
	}
}

// ChromemConfig holds chromem-go embedded vector database configuration.
type ChromemConfig struct {
	Path              string `koanf:"path"`
	Compress          bool   `koanf:"compress"`
	DefaultCollection string `koanf:"default_collection"`
	VectorSize        int    `koanf:"vector_size"`
}

// Validate validates ChromemConfig.
func (c *ChromemConfig) Validate() error {
	if c.VectorSize <= 0 {
		return fmt.Errorf("vector_size must be positive, got %d", c.VectorSize)
	}
	return nil
}

// QdrantConfig holds Qdrant vector database configuration.
type QdrantConfig struct {
	Host           string `koanf:"host"`
	Port           int    `koanf:"port"`
	CollectionName string `koanf:"collection_name"`
	VectorSize     uint64 `koanf:"vector_size"`
}

// EmbeddingsConfig holds embeddings provider configuration.
type EmbeddingsConfig struct {
	Provider string `koanf:"provider"` // "fastembed" (local ONNX) or "tei"
	BaseURL  string `koanf:"base_url"`
	Model    string `koanf:"model"`
	CacheDir string `koanf:"cache_dir"`
}

// Load loads configuration from environment variables with defaults. Prefer
// LoadWithFile for YAML-plus-environment layering; Load is the
// environment-only path used by tests and simple embeddings.
func Load() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvInt("KB_SERVER_HTTP_PORT", 9090),
			ShutdownTimeout: getEnvDuration("KB_SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Observability: ObservabilityConfig{
			EnableTelemetry: getEnvBool("KB_OTEL_ENABLE", false),
			ServiceName:     getEnvString("KB_OTEL_SERVICE_NAME", "kbase"),
		},
	}

	cfg.KnowledgeBase = KnowledgeBaseConfig{
		KnowledgeDirs:     getEnvStringSlice("KB_KNOWLEDGE_DIRS", nil),
		CacheFile:         getEnvString("KB_CACHE_FILE", "~/.config/kbase/cache.json"),
		MaxCacheSize:      getEnvInt("KB_MAX_CACHE_SIZE", 1000),
		HeartbeatInterval: getEnvDuration("KB_HEARTBEAT_INTERVAL", 30*time.Second),
		MaxWorkers:        getEnvInt("KB_MAX_WORKERS", runtime.NumCPU()),
		EmbeddingModel:    getEnvString("KB_EMBEDDING_MODEL", "BAAI/bge-small-en-v1.5"),
		VectorSearchMode:  getEnvString("KB_VECTOR_SEARCH_MODE", "hybrid"),
		ChunkSize:         getEnvInt("KB_CHUNK_SIZE", 1000),
		ChunkOverlap:      getEnvInt("KB_CHUNK_OVERLAP", 200),
		ChunkingStrategy:  getEnvString("KB_CHUNKING_STRATEGY", "recursive"),
		UseVectorSearch:   getEnvBool("KB_USE_VECTOR_SEARCH", true),
		FileExtensions:    getEnvStringSlice("KB_FILE_EXTENSIONS", []string{".md"}),
		HybridAlpha:       getEnvFloat("KB_HYBRID_ALPHA", 0.7),
	}

	cfg.Project = ProjectStoreConfig{
		DSN: getEnvString("KB_PROJECT_DSN", "~/.config/kbase/projects.db"),
	}

	cfg.Qdrant = QdrantConfig{
		Host:           getEnvString("KB_QDRANT_HOST", "localhost"),
		Port:           getEnvInt("KB_QDRANT_PORT", 6334),
		CollectionName: getEnvString("KB_QDRANT_COLLECTION", "kb_default"),
		VectorSize:     uint64(getEnvInt("KB_QDRANT_VECTOR_SIZE", 384)),
	}

	cfg.Embeddings = EmbeddingsConfig{
		Provider: getEnvString("KB_EMBEDDINGS_PROVIDER", "fastembed"),
		BaseURL:  getEnvString("KB_EMBEDDINGS_BASE_URL", ""),
		Model:    getEnvString("KB_EMBEDDINGS_MODEL", "BAAI/bge-small-en-v1.5"),
		CacheDir: getEnvString("KB_EMBEDDINGS_CACHE_DIR", ""),
	}

	cfg.Repository = RepositoryConfig{
		IgnoreFiles: getEnvStringSlice("KB_IGNORE_FILES", []string{
			".gitignore", ".kbaseignore",
		}),
		FallbackExcludes: getEnvStringSlice("KB_FALLBACK_EXCLUDES", []string{
			".git/**", "node_modules/**", "vendor/**", "__pycache__/**",
		}),
	}

	cfg.VectorStore = VectorStoreConfig{
		Provider: getEnvString("KB_VECTORSTORE_PROVIDER", "chromem"),
		Chromem: ChromemConfig{
			Path:              getEnvString("KB_VECTORSTORE_CHROMEM_PATH", "~/.config/kbase/vectorstore"),
			Compress:          getEnvBool("KB_VECTORSTORE_CHROMEM_COMPRESS", false),
			DefaultCollection: getEnvString("KB_VECTORSTORE_CHROMEM_COLLECTION", "kb_default"),
			VectorSize:        getEnvInt("KB_VECTORSTORE_CHROMEM_VECTOR_SIZE", 384),
		},
	}

	cfg.Nats = NatsConfig{
		URL: getEnvString("KB_NATS_URL", ""),
	}

	return cfg
}

// Validate validates the configuration, matching the recognized-options
// table: invalid values fail with a wrapped kberrors.ErrConfigError at the
// call site, not here — Validate only reports the violation.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}

	if c.KnowledgeBase.HeartbeatInterval < 10*time.Second {
		return fmt.Errorf("heartbeat_interval must be >= 10s, got %s", c.KnowledgeBase.HeartbeatInterval)
	}
	if c.KnowledgeBase.MaxWorkers < 1 {
		return fmt.Errorf("max_workers must be >= 1, got %d", c.KnowledgeBase.MaxWorkers)
	}
	if c.KnowledgeBase.MaxCacheSize < 1 {
		return fmt.Errorf("max_cache_size must be positive, got %d", c.KnowledgeBase.MaxCacheSize)
	}
	if c.KnowledgeBase.ChunkOverlap < 0 {
		return fmt.Errorf("chunk_overlap must be >= 0, got %d", c.KnowledgeBase.ChunkOverlap)
	}
	if c.KnowledgeBase.ChunkOverlap >= c.KnowledgeBase.ChunkSize {
		return fmt.Errorf("chunk_overlap (%d) must be < chunk_size (%d)", c.KnowledgeBase.ChunkOverlap, c.KnowledgeBase.ChunkSize)
	}
	switch c.KnowledgeBase.VectorSearchMode {
	case "vector", "keyword", "hybrid":
	default:
		return fmt.Errorf("invalid vector_search_mode: %q (must be vector, keyword, or hybrid)", c.KnowledgeBase.VectorSearchMode)
	}
	switch c.KnowledgeBase.ChunkingStrategy {
	case "semantic", "recursive", "markdown", "code", "auto":
	default:
		return fmt.Errorf("invalid chunking_strategy: %q", c.KnowledgeBase.ChunkingStrategy)
	}
	if c.KnowledgeBase.HybridAlpha < 0 || c.KnowledgeBase.HybridAlpha > 1 {
		return fmt.Errorf("hybrid_alpha must be in [0,1], got %f", c.KnowledgeBase.HybridAlpha)
	}

	if err := validateHostname(c.Qdrant.Host); err != nil {
		return fmt.Errorf("invalid KB_QDRANT_HOST: %w", err)
	}
	if err := validatePath(c.VectorStore.Chromem.Path); err != nil {
		return fmt.Errorf("invalid KB_VECTORSTORE_CHROMEM_PATH: %w", err)
	}
	if c.Embeddings.CacheDir != "" {
		if err := validatePath(c.Embeddings.CacheDir); err != nil {
			return fmt.Errorf("invalid KB_EMBEDDINGS_CACHE_DIR: %w", err)
		}
	}
	if c.Embeddings.BaseURL != "" {
		if err := validateURL(c.Embeddings.BaseURL); err != nil {
			return fmt.Errorf("invalid KB_EMBEDDINGS_BASE_URL: %w", err)
		}
	}
	if err := c.VectorStore.Validate(); err != nil {
		return fmt.Errorf("invalid vectorstore config: %w", err)
	}
	if c.Nats.URL != "" {
		if err := validateNatsURL(c.Nats.URL); err != nil {
			return fmt.Errorf("invalid KB_NATS_URL: %w", err)
		}
	}

	return nil
}

// Helper functions for environment variable parsing.

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := make([]string, 0)
		for _, part := range splitAndTrim(value, ",") {
			if part != "" {
				parts = append(parts, part)
			}
		}
		if len(parts) > 0 {
			return parts
		}
	}
	return defaultValue
}

func splitAndTrim(s, sep string) []string {
	var result []string
	for _, part := range strings.Split(s, sep) {
		result = append(result, strings.TrimSpace(part))
	}
	return result
}

// validateHostname checks if a hostname is safe (no command injection attempts).
func validateHostname(host string) error {
	if host == "" {
		return nil
	}
	if net.ParseIP(host) != nil {
		return nil
	}
	hostnameRegex := regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)
	if !hostnameRegex.MatchString(host) {
		return fmt.Errorf("invalid hostname format: %s", host)
	}
	invalidChars := []string{";", "\n", "\r", "$", "`", "|", "&", "<", ">", "(", ")"}
	for _, char := range invalidChars {
		if strings.Contains(host, char) {
			return fmt.Errorf("invalid hostname: contains forbidden character %q", char)
		}
	}
	return nil
}

// validatePath checks if a path is safe (no path traversal).
func validatePath(path string) error {
	if strings.Contains(path, "..") {
		return fmt.Errorf("path contains traversal sequence: %s", path)
	}
	if filepath.IsAbs(path) {
		clean := filepath.Clean(path)
		origDepth := strings.Count(path, string(filepath.Separator))
		cleanDepth := strings.Count(clean, string(filepath.Separator))
		if cleanDepth < origDepth-1 {
			return fmt.Errorf("path traversal detected: %s (resolves to %s)", path, clean)
		}
	}
	return nil
}

// validateURL checks if a URL uses allowed schemes (http/https only).
func validateURL(urlStr string) error {
	if !strings.HasPrefix(urlStr, "http://") && !strings.HasPrefix(urlStr, "https://") {
		return fmt.Errorf("URL must use http:// or https:// scheme, got: %s", urlStr)
	}
	return nil
}

func validateNatsURL(urlStr string) error {
	if !strings.HasPrefix(urlStr, "nats://") && !strings.HasPrefix(urlStr, "tls://") {
		return fmt.Errorf("URL must use nats:// or tls:// scheme, got: %s", urlStr)
	}
	return nil
}
