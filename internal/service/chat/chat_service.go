package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"story-app/internal/app"
	"story-app/internal/apperr"
	"story-app/internal/config"
	"story-app/internal/logger"
	"story-app/internal/repository/db"
	"story-app/internal/service/format"
	"story-app/internal/service/intent"
	"story-app/internal/service/llm"
	"story-app/internal/service/usage"
	"story-app/internal/service/voice"
	"story-app/pkg/validation"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Personalization describes the learner so stories can be tailored
type Personalization struct {
	Name         string
	Age          int
	Level        string
	Interests    []string
	LearningGoal string
}

// GenerateRequest contains all the parameters needed to generate a reply
type GenerateRequest struct {
	Prompt          string
	Mode            string
	Personalization *Personalization
	Temperature     *float64
	MaxTokens       *int
	ConversationID  string
	UserID          string // Resolved by the handler from token or body
	Language        string
	IncludeAudio    bool
	Voice           string
}

// Metadata describes how a reply was produced
type Metadata struct {
	Intent       intent.Intent
	ShortCircuit bool
	Model        string
	Provider     string
	FinishReason string
	Truncated    bool
	Language     string
	Tokens       *llm.ResponseUsage
	Audio        []byte
	AudioFormat  string
	AudioError   string
}

// UsageInfo reports the caller's quota after this request
type UsageInfo struct {
	usage.Result
	Tier string
}

// GenerateResponse contains the reply and its bookkeeping
type GenerateResponse struct {
	ID             string
	ConversationID string
	Mode           string
	Response       string
	Metadata       Metadata
	Usage          UsageInfo
}

// ChatService handles the business logic for story generation
type ChatService struct {
	db          db.Database
	config      *app.Config
	llmProvider llm.LLMProvider
	speaker     voice.Speaker
	limiter     *usage.Limiter
	validator   *validation.GenerateRequestValidator
}

// NewChatService creates a new ChatService. speaker may be nil when audio is unavailable.
func NewChatService(database db.Database, config *app.Config, llmProvider llm.LLMProvider, speaker voice.Speaker, limiter *usage.Limiter) *ChatService {
	return &ChatService{
		db:          database,
		config:      config,
		llmProvider: llmProvider,
		speaker:     speaker,
		limiter:     limiter,
		validator:   validation.NewGenerateRequestValidator(config.ModesConfig().IsValidMode, voice.IsValidVoice),
	}
}

// Generate gates, classifies and answers one user prompt, persisting both turns
func (s *ChatService) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if err := s.validator.ValidateGenerateRequest(req.Prompt, req.Mode, req.Temperature, req.MaxTokens, req.Language, req.Voice); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}
	if req.UserID == "" {
		return nil, fmt.Errorf("%w: userId is required", apperr.ErrUnauthorized)
	}

	mode := s.resolveMode(req.Mode)

	tier, exempt, err := s.limiter.ResolveTier(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	quota, err := s.limiter.CheckAndConsume(ctx, req.UserID, exempt)
	if err != nil {
		return nil, err
	}
	if !quota.Allowed {
		return nil, &apperr.QuotaError{Limit: quota.Limit, Used: quota.Used}
	}

	conversation, err := s.getOrCreateConversation(ctx, req, mode.ID)
	if err != nil {
		return nil, err
	}

	history, err := s.getConversationHistory(ctx, conversation.ID)
	if err != nil {
		return nil, err
	}

	classified := intent.Classify(req.Prompt)
	metadata := Metadata{
		Intent:   classified,
		Language: req.Language,
	}

	logger.Log.WithFields(logrus.Fields{
		"conversation_id": conversation.ID,
		"user_id":         req.UserID,
		"mode":            mode.ID,
		"intent":          classified,
		"history_count":   len(history),
	}).Debug("Prepared generation")

	var reply string
	if intent.ShortCircuits(classified) {
		reply = intent.Reply(classified, mode.ID)
		metadata.ShortCircuit = true
	} else {
		outbound, err := s.outboundPrompt(ctx, conversation.ID, req.Prompt, classified)
		if err != nil {
			return nil, err
		}

		generation, err := s.llmProvider.Generate(ctx, llm.GenerationRequest{
			SystemPrompt: s.buildSystemPrompt(mode, req.Personalization, req.Language),
			Messages:     append(history, llm.Message{Role: llm.RoleUser, Content: outbound}),
			Temperature:  s.temperature(req.Temperature),
			MaxTokens:    s.maxTokens(req.MaxTokens),
		})
		if err != nil {
			return nil, fmt.Errorf("LLM error: %w", err)
		}

		reply = generation.Content
		metadata.Model = generation.Model
		metadata.Provider = s.llmProvider.Name()
		metadata.FinishReason = generation.FinishReason
		metadata.Truncated = generation.Truncated()
		metadata.Tokens = generation.Usage
	}

	reply = format.Format(reply, mode.ID)

	if req.IncludeAudio {
		s.attachAudio(ctx, reply, req.Voice, &metadata)
	}

	assistantMsg, err := s.saveTurn(ctx, conversation.ID, req.Prompt, reply, &metadata)
	if err != nil {
		return nil, err
	}

	return &GenerateResponse{
		ID:             assistantMsg.ID,
		ConversationID: conversation.ID,
		Mode:           mode.ID,
		Response:       reply,
		Metadata:       metadata,
		Usage:          UsageInfo{Result: quota, Tier: tier},
	}, nil
}

func (s *ChatService) resolveMode(id string) config.Mode {
	modes := s.config.ModesConfig()
	if mode, ok := modes.GetMode(id); ok {
		return mode
	}
	return modes.GetDefaultMode()
}

// getOrCreateConversation returns the caller's conversation, creating one when the
// id is empty, malformed, unknown or owned by someone else
func (s *ChatService) getOrCreateConversation(ctx context.Context, req GenerateRequest, mode string) (*db.Conversation, error) {
	if req.ConversationID != "" {
		if _, err := uuid.Parse(req.ConversationID); err == nil {
			conversation, err := s.db.GetConversation(ctx, req.ConversationID)
			switch {
			case err == nil && conversation.UserID == req.UserID:
				return s.retitleIfUntitled(ctx, conversation, req.Prompt)
			case err == nil:
				logger.Log.WithFields(logrus.Fields{
					"conversation_id": req.ConversationID,
					"user_id":         req.UserID,
				}).Warn("Conversation owned by another user, starting a new one")
			case !errors.Is(err, db.ErrNotFound):
				return nil, apperr.Storage("read conversation", err)
			}
		}
	}

	conversation, err := s.db.CreateConversation(ctx, req.UserID, mode, format.Title(req.Prompt))
	if err != nil {
		return nil, apperr.Storage("create conversation", err)
	}
	return conversation, nil
}

// retitleIfUntitled names an empty conversation after its first user message
func (s *ChatService) retitleIfUntitled(ctx context.Context, conversation *db.Conversation, prompt string) (*db.Conversation, error) {
	if conversation.Title != db.DefaultConversationTitle {
		return conversation, nil
	}

	count, err := s.db.CountMessages(ctx, conversation.ID)
	if err != nil {
		return nil, apperr.Storage("count messages", err)
	}
	if count > 0 {
		return conversation, nil
	}

	title := format.Title(prompt)
	if err := s.db.UpdateConversationTitle(ctx, conversation.ID, title); err != nil {
		return nil, apperr.Storage("update conversation title", err)
	}
	conversation.Title = title
	return conversation, nil
}

// getConversationHistory returns the first HistoryLimit messages, oldest first
func (s *ChatService) getConversationHistory(ctx context.Context, conversationID string) ([]llm.Message, error) {
	messages, err := s.db.GetConversationMessages(ctx, conversationID, s.config.AppConfig.Usage.HistoryLimit)
	if err != nil {
		return nil, apperr.Storage("read history", err)
	}

	history := make([]llm.Message, 0, len(messages)+1)
	for _, msg := range messages {
		history = append(history, llm.Message{Role: msg.Role, Content: msg.Content})
	}
	return history, nil
}

// outboundPrompt rewrites continuation requests to reference the last reply
func (s *ChatService) outboundPrompt(ctx context.Context, conversationID, prompt string, classified intent.Intent) (string, error) {
	if classified != intent.Continue {
		return prompt, nil
	}

	last, err := s.db.GetLatestMessageByRole(ctx, conversationID, db.RoleAssistant)
	if errors.Is(err, db.ErrNotFound) {
		return prompt, nil
	}
	if err != nil {
		return "", apperr.Storage("read last reply", err)
	}
	return intent.ContinuationPrompt(last.Content), nil
}

// buildSystemPrompt combines the mode prompt with the learner profile and language
func (s *ChatService) buildSystemPrompt(mode config.Mode, p *Personalization, language string) string {
	var b strings.Builder
	b.WriteString(mode.SystemPrompt)

	if profile := describeLearner(p); profile != "" {
		b.WriteString("\n\nLearner profile:\n")
		b.WriteString(profile)
		b.WriteString("Tailor examples, vocabulary and pacing to this learner.")
	}

	if language = strings.TrimSpace(language); language != "" {
		b.WriteString("\n\nRespond in ")
		b.WriteString(language)
		b.WriteString(".")
	}

	return b.String()
}

func describeLearner(p *Personalization) string {
	if p == nil {
		return ""
	}

	var b strings.Builder
	if p.Name != "" {
		b.WriteString("- Name: " + p.Name + "\n")
	}
	if p.Age > 0 {
		b.WriteString("- Age: " + strconv.Itoa(p.Age) + "\n")
	}
	if p.Level != "" {
		b.WriteString("- Level: " + p.Level + "\n")
	}
	if len(p.Interests) > 0 {
		b.WriteString("- Interests: " + strings.Join(p.Interests, ", ") + "\n")
	}
	if p.LearningGoal != "" {
		b.WriteString("- Learning goal: " + p.LearningGoal + "\n")
	}
	return b.String()
}

func (s *ChatService) temperature(requested *float64) *float64 {
	if requested != nil {
		return requested
	}
	t := s.config.AppConfig.LLM.DefaultTemperature
	return &t
}

func (s *ChatService) maxTokens(requested *int) int {
	if requested != nil {
		return *requested
	}
	return s.config.AppConfig.LLM.DefaultMaxTokens
}

// attachAudio synthesises the reply; a failure is reported in metadata only
func (s *ChatService) attachAudio(ctx context.Context, reply, voiceID string, metadata *Metadata) {
	if s.speaker == nil {
		metadata.AudioError = "speech synthesis is not configured"
		return
	}

	audio, err := s.speaker.Synthesize(ctx, reply, voiceID, 1.0)
	if err != nil {
		logger.Log.WithError(err).Warn("Speech synthesis failed, returning text only")
		metadata.AudioError = err.Error()
		return
	}

	metadata.Audio = audio
	metadata.AudioFormat = voice.AudioFormat
}

// saveTurn persists the user prompt and the assistant reply
func (s *ChatService) saveTurn(ctx context.Context, conversationID, prompt, reply string, metadata *Metadata) (*db.Message, error) {
	if _, err := s.db.AddMessage(ctx, &db.Message{
		ConversationID: conversationID,
		Role:           db.RoleUser,
		Content:        prompt,
		Intent:         string(metadata.Intent),
	}); err != nil {
		return nil, apperr.Storage("save user message", err)
	}

	assistant := &db.Message{
		ConversationID: conversationID,
		Role:           db.RoleAssistant,
		Content:        reply,
		Audio:          metadata.Audio,
		AudioFormat:    metadata.AudioFormat,
		Model:          metadata.Model,
		Provider:       metadata.Provider,
		FinishReason:   metadata.FinishReason,
	}
	if tokens := metadata.Tokens; tokens != nil {
		assistant.PromptTokens = &tokens.PromptTokens
		assistant.CompletionTokens = &tokens.CompletionTokens
		assistant.TotalTokens = &tokens.TotalTokens
	}

	saved, err := s.db.AddMessage(ctx, assistant)
	if err != nil {
		return nil, apperr.Storage("save assistant message", err)
	}
	return saved, nil
}
