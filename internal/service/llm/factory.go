package llm

import (
	"fmt"

	"story-app/internal/config"
	"story-app/internal/logger"

	"github.com/sashabaranov/go-openai"
)

// ProviderType represents the type of LLM provider
type ProviderType string

const (
	ProviderOpenAI     ProviderType = "openai"
	ProviderOpenRouter ProviderType = "openrouter"
)

// ParseProviderType parses a string into a ProviderType
func ParseProviderType(s string) (ProviderType, error) {
	switch s {
	case "openai", "":
		return ProviderOpenAI, nil
	case "openrouter":
		return ProviderOpenRouter, nil
	default:
		return "", fmt.Errorf("unknown provider type: %s", s)
	}
}

// NewLLMProvider creates the provider named by the configuration.
// openaiClient may be nil when OPENAI_API_KEY is unset.
func NewLLMProvider(llmConfig *config.LLMConfig, openaiClient *openai.Client) (LLMProvider, error) {
	providerType, err := ParseProviderType(llmConfig.Provider)
	if err != nil {
		return nil, err
	}

	switch providerType {
	case ProviderOpenRouter:
		logger.Log.WithField("model", llmConfig.OpenRouterModel).Info("Creating OpenRouter provider")
		return NewOpenRouterProvider(llmConfig), nil
	default:
		logger.Log.WithField("model", llmConfig.OpenAIModel).Info("Creating OpenAI provider")
		return NewOpenAIProvider(llmConfig, openaiClient), nil
	}
}
