package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"story-app/internal/apperr"
	"story-app/internal/config"
	"story-app/internal/logger"

	"github.com/sirupsen/logrus"
)

const defaultRetryAfter = 30 * time.Second

// OpenRouterProvider implements LLMProvider using direct OpenRouter API calls
type OpenRouterProvider struct {
	config *config.LLMConfig
	client *http.Client
}

// NewOpenRouterProvider creates a new OpenRouter provider with config
func NewOpenRouterProvider(llmConfig *config.LLMConfig) *OpenRouterProvider {
	return &OpenRouterProvider{
		config: llmConfig,
		client: &http.Client{Timeout: llmConfig.RequestTimeout},
	}
}

type openRouterRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type openRouterResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage *ResponseUsage `json:"usage,omitempty"`
}

// Name identifies the provider
func (p *OpenRouterProvider) Name() string {
	return "openrouter"
}

// GetDefaultModel returns the configured OpenRouter model
func (p *OpenRouterProvider) GetDefaultModel() string {
	return p.config.OpenRouterModel
}

func (p *OpenRouterProvider) chatURL() string {
	return strings.TrimSuffix(p.config.OpenRouterBaseURL, "/") + "/chat/completions"
}

// Generate sends a chat completion request and returns the full response
func (p *OpenRouterProvider) Generate(ctx context.Context, req GenerationRequest) (*Generation, error) {
	apiKey := p.config.OpenRouterAPIKey
	if apiKey == "" {
		return nil, apperr.NotConfigured("OPENROUTER_API_KEY")
	}

	model := req.Model
	if model == "" {
		model = p.GetDefaultModel()
	}

	logger.Log.WithFields(logrus.Fields{
		"model":         model,
		"max_tokens":    req.MaxTokens,
		"message_count": len(req.Messages),
	}).Info("Calling OpenRouter API")

	reqBody := openRouterRequest{
		Model:       model,
		Messages:    withSystemPrompt(req.SystemPrompt, req.Messages),
		Stream:      false,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.chatURL(), bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	httpReq.Header.Set("X-Title", "Aidanna Story API")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: error sending request: %v", apperr.ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: error reading response body: %v", apperr.ErrUpstream, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &apperr.RateLimitError{
			Provider:   p.Name(),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body)),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: API returned status %d: %s", apperr.ErrUpstream, resp.StatusCode, string(body))
	}

	logger.Log.WithField("response_length", len(body)).Debug("Received raw response")

	var chatResp openRouterResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("%w: error decoding response: %v", apperr.ErrUpstream, err)
	}

	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no response from API", apperr.ErrUpstream)
	}

	if chatResp.Model != "" {
		model = chatResp.Model
	}

	choice := chatResp.Choices[0]
	logger.Log.WithFields(logrus.Fields{
		"content_length": len(choice.Message.Content),
		"finish_reason":  choice.FinishReason,
	}).Debug("Extracted content from response")

	return &Generation{
		ID:           chatResp.ID,
		Content:      choice.Message.Content,
		Model:        model,
		FinishReason: choice.FinishReason,
		Usage:        chatResp.Usage,
	}, nil
}

func parseRetryAfter(value string) time.Duration {
	return apperr.ParseRetryAfter(value, defaultRetryAfter)
}
