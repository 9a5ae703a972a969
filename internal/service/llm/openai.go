package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"

	"story-app/internal/apperr"
	"story-app/internal/config"
	"story-app/internal/logger"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

// OpenAIProvider implements LLMProvider on the OpenAI chat completions API
type OpenAIProvider struct {
	config *config.LLMConfig
	client *openai.Client
}

// NewOpenAIClient builds a go-openai client honouring OPENAI_BASE_URL.
// Returns nil when no API key is configured.
func NewOpenAIClient(llmConfig *config.LLMConfig) *openai.Client {
	if llmConfig.OpenAIAPIKey == "" {
		return nil
	}
	clientConfig := openai.DefaultConfig(llmConfig.OpenAIAPIKey)
	if llmConfig.OpenAIBaseURL != "" {
		clientConfig.BaseURL = llmConfig.OpenAIBaseURL
	}
	if llmConfig.RequestTimeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: llmConfig.RequestTimeout}
	}
	return openai.NewClientWithConfig(clientConfig)
}

// NewOpenAIProvider creates a provider; a nil client makes every call fail as not configured
func NewOpenAIProvider(llmConfig *config.LLMConfig, client *openai.Client) *OpenAIProvider {
	return &OpenAIProvider{
		config: llmConfig,
		client: client,
	}
}

// Name identifies the provider
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// GetDefaultModel returns the configured OpenAI model
func (p *OpenAIProvider) GetDefaultModel() string {
	return p.config.OpenAIModel
}

// Generate sends a chat completion request and returns the first choice
func (p *OpenAIProvider) Generate(ctx context.Context, req GenerationRequest) (*Generation, error) {
	if p.client == nil {
		return nil, apperr.NotConfigured("OPENAI_API_KEY")
	}

	model := req.Model
	if model == "" {
		model = p.GetDefaultModel()
	}

	messages := withSystemPrompt(req.SystemPrompt, req.Messages)
	chatMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	completionReq := openai.ChatCompletionRequest{
		Model:     model,
		Messages:  chatMessages,
		MaxTokens: req.MaxTokens,
	}
	if req.Temperature != nil {
		completionReq.Temperature = float32(*req.Temperature)
		// go-openai omits a zero temperature, which the API reads as its default of 1
		if completionReq.Temperature == 0 {
			completionReq.Temperature = math.SmallestNonzeroFloat32
		}
	}

	logger.Log.WithFields(logrus.Fields{
		"model":         model,
		"max_tokens":    req.MaxTokens,
		"message_count": len(chatMessages),
	}).Info("Calling OpenAI API")

	resp, err := p.client.CreateChatCompletion(ctx, completionReq)
	if err != nil {
		return nil, p.classifyError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no response from API", apperr.ErrUpstream)
	}

	choice := resp.Choices[0]
	logger.Log.WithFields(logrus.Fields{
		"content_length": len(choice.Message.Content),
		"finish_reason":  choice.FinishReason,
		"total_tokens":   resp.Usage.TotalTokens,
	}).Debug("Extracted content from response")

	if resp.Model != "" {
		model = resp.Model
	}

	return &Generation{
		ID:           resp.ID,
		Content:      choice.Message.Content,
		Model:        model,
		FinishReason: string(choice.FinishReason),
		Usage: &ResponseUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// classifyError maps go-openai errors onto the shared taxonomy
func (p *OpenAIProvider) classifyError(err error) error {
	return ClassifyOpenAIError(p.Name(), err)
}

// ClassifyOpenAIError maps a go-openai error: 429 becomes a rate limit, the rest upstream failures
func ClassifyOpenAIError(provider string, err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	if status == http.StatusTooManyRequests {
		return &apperr.RateLimitError{Provider: provider, RetryAfter: defaultRetryAfter, Err: err}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", apperr.ErrUpstream, provider, err)
}
