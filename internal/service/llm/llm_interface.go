package llm

import "context"

// Message roles sent to providers
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// FinishReasonLength signals the output was cut off by max_tokens
const FinishReasonLength = "length"

// Message is one turn of the conversation sent to a provider
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationRequest is a provider-agnostic completion request
type GenerationRequest struct {
	SystemPrompt string
	Messages     []Message
	Model        string
	Temperature  *float64
	MaxTokens    int
}

// ResponseUsage holds token counts reported by the provider
type ResponseUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Generation is the provider's reply
type Generation struct {
	ID           string
	Content      string
	Model        string
	FinishReason string
	Usage        *ResponseUsage
}

// Truncated reports whether the provider stopped because of the token limit
func (g *Generation) Truncated() bool {
	return g.FinishReason == FinishReasonLength
}

// LLMProvider defines the interface for generative-text providers (OpenAI, OpenRouter)
type LLMProvider interface {
	// Generate sends the system prompt and conversation and returns the full reply
	Generate(ctx context.Context, req GenerationRequest) (*Generation, error)

	// Name identifies the provider in logs and stored messages
	Name() string

	// GetDefaultModel returns the model used when a request names none
	GetDefaultModel() string
}

// withSystemPrompt prepends the system message to the conversation
func withSystemPrompt(systemPrompt string, messages []Message) []Message {
	if systemPrompt == "" {
		return messages
	}
	return append([]Message{{Role: RoleSystem, Content: systemPrompt}}, messages...)
}
