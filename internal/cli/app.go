package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"docqa/config"
	"docqa/internal/adapter/cache"
	"docqa/internal/adapter/chunker"
	"docqa/internal/adapter/embedding"
	"docqa/internal/adapter/extractor"
	"docqa/internal/adapter/llm"
	"docqa/internal/adapter/resilience"
	"docqa/internal/adapter/store"
	"docqa/internal/port"
	"docqa/internal/usecase"
)

// app holds the dependencies built once per command from config.
type app struct {
	cfg     *config.Config
	dir     string
	logger  *slog.Logger
	store   port.IndexStore
	cache   *cache.AnswerCache
	service *usecase.Service
	closers []io.Closer
}

// appOptions names the remote services a command needs. Commands that only
// read or delete stored indexes run without API keys.
type appOptions struct {
	embed    bool
	generate bool
	rebuild  bool
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg := GetConfig()
	dir := GetRootDir()
	a := &app{cfg: cfg, dir: dir, logger: appLog}

	st, err := openStore(cfg, dir)
	if err != nil {
		return nil, err
	}
	a.store = st
	a.closers = append(a.closers, st)

	if err := a.checkSchema(opts.rebuild); err != nil {
		a.Close()
		return nil, err
	}

	var embedder port.Embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimension)
	if opts.embed {
		embedder, err = a.newEmbedder(ctx)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
	}

	var generator port.LLM = llm.NewMockLLM("")
	if opts.generate {
		generator, err = a.newLLM(ctx)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create llm client: %w", err)
		}
	}

	chk, err := chunker.NewWordChunker(cfg.Chunking.SizeWords, cfg.Chunking.OverlapWords)
	if err != nil {
		a.Close()
		return nil, err
	}

	indexerOpts := []usecase.IndexerOption{usecase.WithIndexerLogger(a.logger)}
	composerOpts := []usecase.ComposerOption{usecase.WithComposerLogger(a.logger)}
	if cfg.Retrieval.CacheSize > 0 {
		a.cache = cache.NewAnswerCache(cfg.Retrieval.CacheSize, cfg.Retrieval.CacheTTL)
		indexerOpts = append(indexerOpts, usecase.WithInvalidator(a.cache))
		composerOpts = append(composerOpts, usecase.WithAnswerCache(a.cache))
	}

	indexer := usecase.NewIndexer(st, embedder, extractor.Default(a.logger, cfg.Ingest.PopplerBinary), chk, indexerOpts...)
	composer := usecase.NewComposer(st, embedder, generator, usecase.ComposerConfig{
		TopK:        cfg.Retrieval.TopK,
		MaxTokens:   cfg.Generation.MaxTokens,
		Temperature: cfg.Generation.Temperature,
	}, composerOpts...)

	a.service = &usecase.Service{Indexer: indexer, Composer: composer, Store: st}
	return a, nil
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// checkSchema records the schema version of a bolt store and refuses to mix
// vectors from a different embedding configuration unless rebuild is set.
func (a *app) checkSchema(rebuild bool) error {
	bolt, ok := a.store.(*store.BoltStore)
	if !ok {
		return nil
	}

	result, err := bolt.CheckMigration(a.cfg)
	if err != nil {
		return fmt.Errorf("failed to check migration: %w", err)
	}

	switch {
	case result.NeedsRebuild && rebuild:
		a.logger.Warn("clearing project indexes", "reason", result.Reason)
		if err := bolt.Clear(); err != nil {
			return fmt.Errorf("failed to clear indexes: %w", err)
		}
	case result.NeedsRebuild:
		return fmt.Errorf("index rebuild required (%s): rerun 'docqa index --rebuild'", result.Reason)
	case !result.NeedsMigration:
		return nil
	default:
		a.logger.Info("running schema migration", "reason", result.Reason)
	}
	return bolt.Migrate(a.cfg)
}

func openStore(cfg *config.Config, dir string) (port.IndexStore, error) {
	path := cfg.StorePath(dir)
	if cfg.Store.Backend != "memory" {
		target := filepath.Dir(path)
		if cfg.Store.Backend == "file" {
			target = path
		}
		if err := os.MkdirAll(target, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	st, err := store.Open(cfg.Store.Backend, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index store: %w", err)
	}
	return st, nil
}

func (a *app) newEmbedder(ctx context.Context) (port.Embedder, error) {
	ec := a.cfg.Embedding
	oc := embedding.OpenAIConfig{
		APIKeyEnv:   ec.APIKeyEnv,
		Model:       ec.Model,
		BaseURL:     ec.BaseURL,
		Dimension:   ec.Dimension,
		BatchSize:   ec.BatchSize,
		Concurrency: ec.Concurrency,
		Timeout:     ec.Timeout,
	}

	var (
		embedder port.Embedder
		err      error
	)
	switch ec.Provider {
	case "upstage":
		embedder, err = embedding.NewUpstageEmbedder(oc)
	case "openai":
		embedder, err = embedding.NewOpenAIEmbedder(oc)
	case "compatible":
		embedder, err = embedding.NewOpenAICompatibleEmbedder(oc)
	case "gemini":
		embedder, err = embedding.NewGeminiEmbedder(ctx, embedding.GeminiConfig{
			APIKeyEnv:   ec.APIKeyEnv,
			Model:       ec.Model,
			Dimension:   ec.Dimension,
			BatchSize:   ec.BatchSize,
			Concurrency: ec.Concurrency,
			Timeout:     ec.Timeout,
		})
	case "mock":
		return embedding.NewMockEmbedder(ec.Dimension), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", ec.Provider)
	}
	if err != nil {
		return nil, err
	}
	if c, ok := embedder.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
	return resilience.WrapEmbedder(embedder, resilienceSettings(a.cfg), a.logger), nil
}

func (a *app) newLLM(ctx context.Context) (port.LLM, error) {
	gc := a.cfg.Generation

	var (
		generator port.LLM
		err       error
	)
	switch gc.Provider {
	case "gemini":
		generator, err = llm.NewGeminiClient(ctx, llm.GeminiConfig{
			Model:     gc.Model,
			APIKeyEnv: gc.APIKeyEnv,
			Timeout:   gc.Timeout,
		})
	case "mock":
		return llm.NewMockLLM("(mock answer)"), nil
	default:
		generator, err = llm.NewChatClient(llm.ChatConfig{
			Provider:  gc.Provider,
			Model:     gc.Model,
			BaseURL:   gc.BaseURL,
			APIKeyEnv: gc.APIKeyEnv,
			Timeout:   gc.Timeout,
		})
	}
	if err != nil {
		return nil, err
	}
	if c, ok := generator.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
	return resilience.WrapLLM(generator, resilienceSettings(a.cfg), a.logger), nil
}

func resilienceSettings(cfg *config.Config) resilience.Settings {
	r := cfg.Resilience
	return resilience.Settings{
		RequestsPerMinute: r.RequestsPerMinute,
		Burst:             r.Burst,
		MaxRequests:       r.MaxRequests,
		Interval:          r.Interval,
		OpenTimeout:       r.OpenTimeout,
		MinRequests:       r.MinRequests,
		FailureRatio:      r.FailureRatio,
	}
}
