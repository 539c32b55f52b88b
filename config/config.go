package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"docqa/internal/domain"
)

// Config holds all configuration for the document QA service.
type Config struct {
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Store      StoreConfig      `yaml:"store"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Worker     WorkerConfig     `yaml:"worker"`
	Resilience ResilienceConfig `yaml:"resilience"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ChunkingConfig struct {
	SizeWords    int `yaml:"size_words"`
	OverlapWords int `yaml:"overlap_words"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider    string        `yaml:"provider"` // "upstage", "openai", "compatible", "gemini", "mock"
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	APIKeyEnv   string        `yaml:"api_key_env"`
	Dimension   int           `yaml:"dimension"` // 0 = known model default
	BatchSize   int           `yaml:"batch_size"`
	Concurrency int           `yaml:"concurrency"`
	Timeout     time.Duration `yaml:"timeout"`
}

type GenerationConfig struct {
	Provider    string        `yaml:"provider"` // "upstage", "openai", "deepseek", "local", "gemini", "mock"
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	APIKeyEnv   string        `yaml:"api_key_env"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

type RetrievalConfig struct {
	TopK      int           `yaml:"top_k"`
	CacheSize int           `yaml:"cache_size"` // 0 disables the answer cache
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

type StoreConfig struct {
	Backend string `yaml:"backend"` // "bolt", "sqlite", "file", "memory"
	Path    string `yaml:"path"`    // relative paths resolve against the project dir
}

// IngestConfig controls which files are picked up and how text is extracted.
type IngestConfig struct {
	Includes      []string `yaml:"includes"`
	Excludes      []string `yaml:"excludes"`
	PopplerBinary string   `yaml:"poppler_binary"`
}

type WorkerConfig struct {
	Concurrency  int           `yaml:"concurrency"`
	QueueSize    int           `yaml:"queue_size"`
	Queue        string        `yaml:"queue"` // "local" or "asynq"
	RedisAddr    string        `yaml:"redis_addr"`
	MaxRetry     int           `yaml:"max_retry"`
	TaskTimeout  time.Duration `yaml:"task_timeout"`
	JobRetention time.Duration `yaml:"job_retention"` // finished local jobs stay queryable this long
}

type ResilienceConfig struct {
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	Burst             int           `yaml:"burst"`
	MaxRequests       uint32        `yaml:"max_requests"`
	Interval          time.Duration `yaml:"interval"`
	OpenTimeout       time.Duration `yaml:"open_timeout"`
	MinRequests       uint32        `yaml:"min_requests"`
	FailureRatio      float64       `yaml:"failure_ratio"`
}

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MaxFileSize int64  `yaml:"max_file_size"`
	UploadDir   string `yaml:"upload_dir"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Chunking: ChunkingConfig{
			SizeWords:    1000,
			OverlapWords: 200,
		},
		Embedding: EmbeddingConfig{
			Provider:    "upstage",
			Model:       "solar-embedding-1-large",
			APIKeyEnv:   "UPSTAGE_API_KEY",
			BatchSize:   100,
			Concurrency: 4,
			Timeout:     60 * time.Second,
		},
		Generation: GenerationConfig{
			Provider:    "upstage",
			Model:       "solar-1-mini-chat",
			APIKeyEnv:   "UPSTAGE_API_KEY",
			MaxTokens:   4000,
			Temperature: 0.1,
			Timeout:     120 * time.Second,
		},
		Retrieval: RetrievalConfig{
			TopK:      5,
			CacheSize: 256,
			CacheTTL:  10 * time.Minute,
		},
		Store: StoreConfig{
			Backend: "bolt",
			Path:    filepath.Join(".docqa", "indexes.db"),
		},
		Ingest: IngestConfig{
			Includes:      []string{"**/*.pdf", "**/*.PDF"},
			Excludes:      []string{"**/.docqa/**", "**/.git/**"},
			PopplerBinary: "pdftotext",
		},
		Worker: WorkerConfig{
			Concurrency:  2,
			QueueSize:    64,
			Queue:        "local",
			RedisAddr:    "localhost:6379",
			MaxRetry:     3,
			TaskTimeout:  10 * time.Minute,
			JobRetention: time.Hour,
		},
		Resilience: ResilienceConfig{
			RequestsPerMinute: 600,
			Burst:             10,
			MaxRequests:       5,
			Interval:          10 * time.Second,
			OpenTimeout:       60 * time.Second,
			MinRequests:       3,
			FailureRatio:      0.6,
		},
		Server: ServerConfig{
			Addr:        ":8080",
			MaxFileSize: 50 << 20,
			UploadDir:   filepath.Join(".docqa", "uploads"),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for docqa.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "docqa.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".docqa", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// LoadEnv loads dir/.env into the process environment if present. Variables
// already set are not overridden.
func LoadEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("error loading .env file: %w", err)
	}
	return nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate rejects settings the pipeline cannot run with. Nothing is corrected.
func (c *Config) Validate() error {
	switch {
	case c.Chunking.SizeWords <= 0:
		return &domain.ConfigurationError{Field: "chunking.size_words", Reason: "must be positive"}
	case c.Chunking.OverlapWords < 0:
		return &domain.ConfigurationError{Field: "chunking.overlap_words", Reason: "must not be negative"}
	case c.Chunking.OverlapWords >= c.Chunking.SizeWords:
		return &domain.ConfigurationError{
			Field:  "chunking.overlap_words",
			Reason: fmt.Sprintf("%d must be smaller than size_words %d", c.Chunking.OverlapWords, c.Chunking.SizeWords),
		}
	case c.Retrieval.TopK <= 0:
		return &domain.ConfigurationError{Field: "retrieval.top_k", Reason: "must be positive"}
	case c.Generation.MaxTokens < 0:
		return &domain.ConfigurationError{Field: "generation.max_tokens", Reason: "must not be negative"}
	case c.Embedding.Model == "" && c.Embedding.Provider != "mock":
		return &domain.ConfigurationError{Field: "embedding.model", Reason: "required"}
	case c.Generation.Model == "" && c.Generation.Provider != "mock":
		return &domain.ConfigurationError{Field: "generation.model", Reason: "required"}
	}

	switch c.Store.Backend {
	case "bolt", "sqlite", "file", "memory":
	default:
		return &domain.ConfigurationError{Field: "store.backend", Reason: fmt.Sprintf("unknown backend %q", c.Store.Backend)}
	}

	switch c.Worker.Queue {
	case "local", "asynq":
	default:
		return &domain.ConfigurationError{Field: "worker.queue", Reason: fmt.Sprintf("unknown queue %q", c.Worker.Queue)}
	}
	return nil
}

// StorePath returns the store location, resolving relative paths against dir.
func (c *Config) StorePath(dir string) string {
	return resolve(dir, c.Store.Path)
}

func (c *Config) UploadDir(dir string) string {
	return resolve(dir, c.Server.UploadDir)
}

func resolve(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// DataDir returns the path to the .docqa directory.
func DataDir(dir string) string {
	return filepath.Join(dir, ".docqa")
}

// EnsureDataDir ensures the .docqa directory exists.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(DataDir(dir), 0755)
}
