// Package llm holds generation clients for answering questions over retrieved chunks.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"docqa/internal/domain"
	"docqa/internal/port"
)

// ChatClient is a generic OpenAI-compatible chat completions client.
type ChatClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client

	mu    sync.Mutex
	stats Stats
}

var _ port.LLM = (*ChatClient)(nil)

// Stats tracks usage across calls.
type Stats struct {
	TotalCalls       int
	TotalInputChars  int
	TotalOutputChars int
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

var providers = map[string]struct {
	baseURL   string
	keyEnvVar string
}{
	"upstage":  {"https://api.upstage.ai/v1/solar", "UPSTAGE_API_KEY"},
	"openai":   {"https://api.openai.com/v1", "OPENAI_API_KEY"},
	"deepseek": {"https://api.deepseek.com/v1", "DEEPSEEK_API_KEY"},
	"local":    {"http://localhost:11434/v1", ""},
}

type ChatConfig struct {
	Provider  string
	Model     string
	BaseURL   string
	APIKeyEnv string
	Timeout   time.Duration
}

func NewChatClient(cfg ChatConfig) (*ChatClient, error) {
	p, ok := providers[cfg.Provider]
	if !ok && cfg.BaseURL == "" {
		return nil, fmt.Errorf("unknown provider: %s (set generation.base_url for custom endpoints)", cfg.Provider)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = p.baseURL
	}

	keyEnv := cfg.APIKeyEnv
	if keyEnv == "" {
		keyEnv = p.keyEnvVar
	}
	var apiKey string
	if keyEnv != "" {
		apiKey = os.Getenv(keyEnv)
		if apiKey == "" {
			return nil, fmt.Errorf("API key not found. Set %s environment variable", keyEnv)
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	return &ChatClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   cfg.Model,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (c *ChatClient) Generate(ctx context.Context, req port.GenerateRequest) (string, error) {
	var messages []ChatMessage
	if req.System != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, ChatMessage{Role: "user", Content: req.Prompt})

	out, err := c.chat(ctx, messages, req.Temperature, req.MaxTokens)
	if err != nil {
		return "", &domain.GenerationServiceError{Model: c.model, Err: err}
	}
	return out, nil
}

func (c *ChatClient) chat(ctx context.Context, messages []ChatMessage, temperature float64, maxTokens int) (string, error) {
	inputChars := 0
	for _, msg := range messages {
		inputChars += len(msg.Content)
	}

	jsonData, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("API error: %s", chatResp.Error.Message)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no response from LLM")
	}

	output := chatResp.Choices[0].Message.Content

	c.mu.Lock()
	c.stats.TotalCalls++
	c.stats.TotalInputChars += inputChars
	c.stats.TotalOutputChars += len(output)
	c.mu.Unlock()

	return output, nil
}

func (c *ChatClient) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *ChatClient) ModelName() string {
	return c.model
}
