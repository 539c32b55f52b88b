package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"docqa/internal/domain"
	"docqa/internal/port"
)

func TestChatClientGenerate(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"**Answer** [Page 1]"}}]}`))
	}))
	defer srv.Close()

	t.Setenv("DOCQA_LLM_KEY", "secret")
	c, err := NewChatClient(ChatConfig{Provider: "custom", Model: "solar-1-mini-chat", BaseURL: srv.URL, APIKeyEnv: "DOCQA_LLM_KEY"})
	require.NoError(t, err)

	out, err := c.Generate(context.Background(), port.GenerateRequest{
		System:      "be precise",
		Prompt:      "what?",
		MaxTokens:   4000,
		Temperature: 0.1,
	})
	require.NoError(t, err)
	assert.Equal(t, "**Answer** [Page 1]", out)

	assert.Equal(t, "solar-1-mini-chat", got.Model)
	assert.Equal(t, 4000, got.MaxTokens)
	assert.InDelta(t, 0.1, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "what?", got.Messages[1].Content)

	assert.Equal(t, 1, c.Stats().TotalCalls)
}

func TestChatClientServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, err := NewChatClient(ChatConfig{Provider: "local", Model: "m", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), port.GenerateRequest{Prompt: "q"})
	var genErr *domain.GenerationServiceError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, "m", genErr.Model)
}

func TestChatClientEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c, err := NewChatClient(ChatConfig{Provider: "local", Model: "m", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), port.GenerateRequest{Prompt: "q"})
	assert.Error(t, err)
}

func TestChatClientUnknownProvider(t *testing.T) {
	_, err := NewChatClient(ChatConfig{Provider: "nope", Model: "m"})
	assert.Error(t, err)
}

func TestChatClientMissingKey(t *testing.T) {
	t.Setenv("UPSTAGE_API_KEY", "")
	_, err := NewChatClient(ChatConfig{Provider: "upstage", Model: "solar-1-mini-chat"})
	assert.Error(t, err)
}

func TestMockLLMRecordsRequests(t *testing.T) {
	m := NewMockLLM("ok")
	out, err := m.Generate(context.Background(), port.GenerateRequest{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	require.Len(t, m.Requests(), 1)
	assert.Equal(t, "p", m.Requests()[0].Prompt)
}

// stalledTransport never answers; requests end only when their context does.
type stalledTransport struct{}

func (stalledTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	<-r.Context().Done()
	return nil, r.Context().Err()
}

func TestGeminiClientGenerateTimesOut(t *testing.T) {
	t.Setenv("DOCQA_GEMINI_KEY", "secret")
	c, err := NewGeminiClient(context.Background(), GeminiConfig{
		APIKeyEnv:     "DOCQA_GEMINI_KEY",
		Timeout:       50 * time.Millisecond,
		ClientOptions: []option.ClientOption{option.WithHTTPClient(&http.Client{Transport: stalledTransport{}})},
	})
	require.NoError(t, err)
	defer c.Close()

	start := time.Now()
	_, err = c.Generate(context.Background(), port.GenerateRequest{Prompt: "hello"})
	require.Error(t, err)

	var genErr *domain.GenerationServiceError
	assert.ErrorAs(t, err, &genErr)
	assert.Less(t, time.Since(start), 5*time.Second)
}
