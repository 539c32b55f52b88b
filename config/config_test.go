package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"docqa/internal/domain"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Chunking.SizeWords != 1000 {
		t.Errorf("expected SizeWords=1000, got %d", cfg.Chunking.SizeWords)
	}
	if cfg.Chunking.OverlapWords != 200 {
		t.Errorf("expected OverlapWords=200, got %d", cfg.Chunking.OverlapWords)
	}
	if cfg.Retrieval.TopK != 5 {
		t.Errorf("expected TopK=5, got %d", cfg.Retrieval.TopK)
	}
	if cfg.Generation.MaxTokens != 4000 {
		t.Errorf("expected MaxTokens=4000, got %d", cfg.Generation.MaxTokens)
	}
	if cfg.Generation.Temperature != 0.1 {
		t.Errorf("expected Temperature=0.1, got %f", cfg.Generation.Temperature)
	}
	if cfg.Server.MaxFileSize != 50<<20 {
		t.Errorf("expected MaxFileSize=50MB, got %d", cfg.Server.MaxFileSize)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Errorf("expected no error for non-existent file, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "docqa.yaml")

	content := `
chunking:
  size_words: 500
  overlap_words: 50
retrieval:
  top_k: 3
  cache_ttl: 30s
store:
  backend: sqlite
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Chunking.SizeWords != 500 {
		t.Errorf("expected SizeWords=500, got %d", cfg.Chunking.SizeWords)
	}
	if cfg.Retrieval.TopK != 3 {
		t.Errorf("expected TopK=3, got %d", cfg.Retrieval.TopK)
	}
	if cfg.Retrieval.CacheTTL != 30*time.Second {
		t.Errorf("expected CacheTTL=30s, got %v", cfg.Retrieval.CacheTTL)
	}
	if cfg.Store.Backend != "sqlite" {
		t.Errorf("expected backend sqlite, got %s", cfg.Store.Backend)
	}
	// Untouched sections keep their defaults.
	if cfg.Generation.MaxTokens != 4000 {
		t.Errorf("expected MaxTokens=4000, got %d", cfg.Generation.MaxTokens)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docqa.yaml")
	if err := os.WriteFile(path, []byte("chunking: [nope"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	if err := EnsureDataDir(tmpDir); err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(DataDir(tmpDir), "config.yaml")

	content := `
generation:
  max_tokens: 1000
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Generation.MaxTokens != 1000 {
		t.Errorf("expected MaxTokens=1000, got %d", cfg.Generation.MaxTokens)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docqa.yaml")
	cfg := DefaultConfig()
	cfg.Chunking.SizeWords = 300
	cfg.Worker.TaskTimeout = 90 * time.Second

	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Chunking.SizeWords != 300 {
		t.Errorf("expected SizeWords=300, got %d", loaded.Chunking.SizeWords)
	}
	if loaded.Worker.TaskTimeout != 90*time.Second {
		t.Errorf("expected TaskTimeout=90s, got %v", loaded.Worker.TaskTimeout)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"overlap equals size", func(c *Config) { c.Chunking.OverlapWords = c.Chunking.SizeWords }, "chunking.overlap_words"},
		{"overlap exceeds size", func(c *Config) { c.Chunking.OverlapWords = 5000 }, "chunking.overlap_words"},
		{"negative overlap", func(c *Config) { c.Chunking.OverlapWords = -1 }, "chunking.overlap_words"},
		{"zero size", func(c *Config) { c.Chunking.SizeWords = 0 }, "chunking.size_words"},
		{"zero top k", func(c *Config) { c.Retrieval.TopK = 0 }, "retrieval.top_k"},
		{"unknown backend", func(c *Config) { c.Store.Backend = "redis" }, "store.backend"},
		{"unknown queue", func(c *Config) { c.Worker.Queue = "kafka" }, "worker.queue"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			var cfgErr *domain.ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("expected field %s, got %s", tt.field, cfgErr.Field)
			}
		})
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("DOCQA_TEST_ENV_KEY=from-file\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DOCQA_TEST_ENV_KEY", "")
	os.Unsetenv("DOCQA_TEST_ENV_KEY")

	if err := LoadEnv(dir); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("DOCQA_TEST_ENV_KEY"); got != "from-file" {
		t.Errorf("expected from-file, got %q", got)
	}

	if err := LoadEnv(t.TempDir()); err != nil {
		t.Errorf("missing .env should not fail: %v", err)
	}
}

func TestStorePath(t *testing.T) {
	cfg := DefaultConfig()
	path := cfg.StorePath("/home/user/papers")
	expected := filepath.Join("/home/user/papers", ".docqa", "indexes.db")
	if path != expected {
		t.Errorf("expected %s, got %s", expected, path)
	}

	cfg.Store.Path = "/var/lib/docqa/idx.db"
	if got := cfg.StorePath("/home/user/papers"); got != "/var/lib/docqa/idx.db" {
		t.Errorf("absolute path should be kept, got %s", got)
	}
}
