package usecase

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"docqa/internal/domain"
	"docqa/internal/port"
)

// DefaultTopK is the number of chunks handed to the generation service.
const DefaultTopK = 5

const NoDocumentsAnswer = "No documents found in this project. Please upload some PDF files first."

const (
	SummaryQuestion    = "Please provide a comprehensive summary of all the papers in this project. Include the main topics, key findings, methodologies used, and any important insights. Organize the summary in a clear and structured way."
	ComparisonQuestion = "Please compare and contrast the papers in this project. Highlight similarities and differences in methodologies, findings, and approaches. Identify any gaps or areas where the papers complement each other."
)

//go:embed templates/*.txt
var promptTemplates embed.FS

var (
	systemPrompt   = mustReadTemplate("templates/system_prompt.txt")
	answerTemplate = template.Must(template.New("answer").Funcs(template.FuncMap{
		"inc": func(i int) int { return i + 1 },
	}).Parse(mustReadTemplate("templates/answer_prompt.txt")))
)

func mustReadTemplate(name string) string {
	data, err := promptTemplates.ReadFile(name)
	if err != nil {
		panic(fmt.Sprintf("missing prompt template %s: %v", name, err))
	}
	return string(data)
}

// AnswerCache stores composed answers per project.
type AnswerCache interface {
	Get(projectID int64, question string, topK int) (domain.Answer, bool)
	Generation(projectID int64) uint64
	Put(projectID int64, question string, topK int, gen uint64, answer domain.Answer)
}

type ComposerConfig struct {
	TopK        int
	MaxTokens   int
	Temperature float64
}

// Composer answers questions from a project's index with cited sources.
type Composer struct {
	store    port.IndexStore
	embedder port.Embedder
	llm      port.LLM
	cache    AnswerCache
	cfg      ComposerConfig
	logger   *slog.Logger
}

type ComposerOption func(*Composer)

func WithAnswerCache(c AnswerCache) ComposerOption {
	return func(u *Composer) { u.cache = c }
}

func WithComposerLogger(l *slog.Logger) ComposerOption {
	return func(u *Composer) { u.logger = l }
}

func NewComposer(store port.IndexStore, embedder port.Embedder, llm port.LLM, cfg ComposerConfig, opts ...ComposerOption) *Composer {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	u := &Composer{
		store:    store,
		embedder: embedder,
		llm:      llm,
		cfg:      cfg,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Answer retrieves the top-K chunks for the question and asks the generation
// service for a grounded answer. Sources come from the retrieved chunks'
// stored metadata, not from the generated text. A project without an index
// gets NoDocumentsAnswer and no remote service is called.
func (u *Composer) Answer(ctx context.Context, question string, projectID int64) (ans domain.Answer, err error) {
	ctx, span := tracer.Start(ctx, "composer.Answer", trace.WithAttributes(
		attribute.Int64("project.id", projectID),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	question = strings.TrimSpace(question)
	if question == "" {
		return domain.Answer{}, domain.ErrEmptyQuestion
	}

	var gen uint64
	if u.cache != nil {
		if cached, ok := u.cache.Get(projectID, question, u.cfg.TopK); ok {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return cached, nil
		}
		gen = u.cache.Generation(projectID)
	}

	ix, err := u.store.Load(ctx, projectID)
	if errors.Is(err, domain.ErrIndexNotFound) || (err == nil && ix.Len() == 0) {
		return domain.Answer{Answer: NoDocumentsAnswer, Sources: []domain.Source{}}, nil
	}
	if err != nil {
		return domain.Answer{}, err
	}

	vectors, err := u.embedder.Embed(ctx, []string{question})
	if err != nil {
		var embErr *domain.EmbeddingServiceError
		if errors.As(err, &embErr) {
			return domain.Answer{}, err
		}
		return domain.Answer{}, &domain.EmbeddingServiceError{Model: u.embedder.ModelName(), Err: err}
	}
	if len(vectors) != 1 {
		return domain.Answer{}, &domain.EmbeddingServiceError{
			Model: u.embedder.ModelName(),
			Err:   fmt.Errorf("expected 1 query vector, got %d", len(vectors)),
		}
	}

	hits, err := ix.Search(vectors[0], u.cfg.TopK)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("search project %d: %w", projectID, err)
	}
	sources := sourcesFrom(hits)

	prompt, err := renderAnswerPrompt(question, sources)
	if err != nil {
		return domain.Answer{}, err
	}

	text, err := u.llm.Generate(ctx, port.GenerateRequest{
		System:      systemPrompt,
		Prompt:      prompt,
		MaxTokens:   u.cfg.MaxTokens,
		Temperature: u.cfg.Temperature,
	})
	if err != nil {
		var genErr *domain.GenerationServiceError
		if errors.As(err, &genErr) {
			return domain.Answer{}, err
		}
		return domain.Answer{}, &domain.GenerationServiceError{Model: u.llm.ModelName(), Err: err}
	}

	ans = domain.Answer{Answer: text, Sources: sources}
	if u.cache != nil {
		u.cache.Put(projectID, question, u.cfg.TopK, gen, ans)
	}

	u.logger.Debug("answered question",
		"project_id", projectID,
		"sources", len(sources),
		"index_entries", ix.Len(),
	)
	return ans, nil
}

func (u *Composer) Summarize(ctx context.Context, projectID int64) (domain.Answer, error) {
	return u.Answer(ctx, SummaryQuestion, projectID)
}

func (u *Composer) Compare(ctx context.Context, projectID int64) (domain.Answer, error) {
	return u.Answer(ctx, ComparisonQuestion, projectID)
}

func sourcesFrom(hits []domain.ScoredEntry) []domain.Source {
	sources := make([]domain.Source, len(hits))
	for i, h := range hits {
		sources[i] = domain.Source{
			Content:    h.Entry.Text,
			Page:       h.Entry.EstimatedPage,
			FileID:     h.Entry.FileID,
			ChunkIndex: h.Entry.ChunkIndex,
			Score:      h.Score,
		}
	}
	return sources
}

func renderAnswerPrompt(question string, sources []domain.Source) (string, error) {
	var buf bytes.Buffer
	err := answerTemplate.Execute(&buf, struct {
		Question string
		Sources  []domain.Source
	}{question, sources})
	if err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return buf.String(), nil
}
