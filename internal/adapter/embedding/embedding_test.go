package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"docqa/internal/domain"
)

// fakeEmbeddingServer answers /embeddings with vectors [len(input), index, 1]
// and returns the data in reverse order to exercise index alignment.
func fakeEmbeddingServer(t *testing.T, fail func(inputs []string) bool) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var requests atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if fail != nil && fail(req.Input) {
			http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
			return
		}

		var resp embeddingResponse
		for i := len(req.Input) - 1; i >= 0; i-- {
			resp.Data = append(resp.Data, embeddingData{
				Index:     i,
				Embedding: []float32{float32(len(req.Input[i])), float32(i), 1},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func newTestEmbedder(t *testing.T, baseURL string, batchSize, concurrency int) *OpenAIEmbedder {
	t.Helper()
	t.Setenv("DOCQA_TEST_KEY", "test-key")
	e, err := NewOpenAICompatibleEmbedder(OpenAIConfig{
		APIKeyEnv:   "DOCQA_TEST_KEY",
		Model:       "test-model",
		BaseURL:     baseURL,
		Dimension:   3,
		BatchSize:   batchSize,
		Concurrency: concurrency,
	})
	require.NoError(t, err)
	return e
}

func TestOpenAIEmbedderAlignsWithInput(t *testing.T) {
	srv, requests := fakeEmbeddingServer(t, nil)
	e := newTestEmbedder(t, srv.URL, 2, 3)

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vectors, err := e.Embed(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))

	for i, text := range texts {
		assert.Equal(t, float32(len(text)), vectors[i][0], "vector %d out of order", i)
	}
	assert.Equal(t, int64(3), requests.Load())
	assert.Equal(t, 3, e.Dimension())
	assert.Equal(t, "test-model", e.ModelName())
}

func TestOpenAIEmbedderAllOrNothing(t *testing.T) {
	srv, _ := fakeEmbeddingServer(t, func(inputs []string) bool {
		return inputs[0] == "ccc"
	})
	e := newTestEmbedder(t, srv.URL, 2, 1)

	vectors, err := e.Embed(context.Background(), []string{"a", "bb", "ccc", "dddd"})
	assert.Nil(t, vectors)

	var svcErr *domain.EmbeddingServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "test-model", svcErr.Model)
	assert.Contains(t, err.Error(), "503")
}

func TestOpenAIEmbedderEmptyInput(t *testing.T) {
	srv, requests := fakeEmbeddingServer(t, nil)
	e := newTestEmbedder(t, srv.URL, 10, 1)

	vectors, err := e.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.Equal(t, int64(0), requests.Load())
}

func TestOpenAIEmbedderMissingKey(t *testing.T) {
	t.Setenv("DOCQA_EMPTY_KEY", "")
	_, err := NewOpenAICompatibleEmbedder(OpenAIConfig{APIKeyEnv: "DOCQA_EMPTY_KEY", Model: "m"})
	assert.Error(t, err)
}

func TestUpstageDefaults(t *testing.T) {
	t.Setenv("UPSTAGE_API_KEY", "k")
	e, err := NewUpstageEmbedder(OpenAIConfig{Model: "solar-embedding-1-large"})
	require.NoError(t, err)
	assert.Equal(t, UpstageBaseURL, e.baseURL)
	assert.Equal(t, 4096, e.Dimension())
	assert.Equal(t, DefaultBatchSize, e.batchSize)
}

func TestEmbedBatchesRespectsConcurrencyLimit(t *testing.T) {
	var mu sync.Mutex
	inFlight, peak := 0, 0

	fn := func(ctx context.Context, texts []string) ([][]float32, error) {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()

		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = []float32{1, 2}
		}

		mu.Lock()
		inFlight--
		mu.Unlock()
		return out, nil
	}

	texts := make([]string, 25)
	vectors, err := embedBatches(context.Background(), texts, 3, 2, fn)
	require.NoError(t, err)
	assert.Len(t, vectors, 25)
	assert.LessOrEqual(t, peak, 2)
}

func TestEmbedBatchesRejectsShortBatch(t *testing.T) {
	fn := func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1}}, nil
	}
	_, err := embedBatches(context.Background(), []string{"a", "b"}, 10, 1, fn)
	assert.Error(t, err)
}

func TestEmbedBatchesRejectsMixedDimensions(t *testing.T) {
	call := 0
	fn := func(ctx context.Context, texts []string) ([][]float32, error) {
		call++
		if call == 1 {
			return [][]float32{{1, 2}}, nil
		}
		return [][]float32{{1, 2, 3}}, nil
	}
	_, err := embedBatches(context.Background(), []string{"a", "b"}, 1, 1, fn)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestWrapServiceErrorDoesNotDoubleWrap(t *testing.T) {
	inner := &domain.EmbeddingServiceError{Model: "inner", Err: errors.New("x")}
	err := wrapServiceError("outer", inner)

	var svcErr *domain.EmbeddingServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "inner", svcErr.Model)
}

func TestMockEmbedderSimilarity(t *testing.T) {
	e := NewMockEmbedder(32)
	vectors, err := e.Embed(context.Background(), []string{"Solar panels", "solar, PANELS!", "unrelated words"})
	require.NoError(t, err)

	assert.Equal(t, vectors[0], vectors[1])
	assert.NotEqual(t, vectors[0], vectors[2])
	assert.Equal(t, int64(1), e.Calls())
	assert.Equal(t, 32, e.Dimension())
}

// stalledTransport never answers; requests end only when their context does.
type stalledTransport struct{}

func (stalledTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	<-r.Context().Done()
	return nil, r.Context().Err()
}

func TestGeminiEmbedderTimesOut(t *testing.T) {
	t.Setenv("DOCQA_GEMINI_KEY", "secret")
	e, err := NewGeminiEmbedder(context.Background(), GeminiConfig{
		APIKeyEnv:     "DOCQA_GEMINI_KEY",
		Timeout:       50 * time.Millisecond,
		ClientOptions: []option.ClientOption{option.WithHTTPClient(&http.Client{Transport: stalledTransport{}})},
	})
	require.NoError(t, err)
	defer e.Close()

	start := time.Now()
	vectors, err := e.Embed(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.Nil(t, vectors)

	var embErr *domain.EmbeddingServiceError
	assert.ErrorAs(t, err, &embErr)
	assert.Less(t, time.Since(start), 5*time.Second)
}
