package handlers

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"story-app/internal/logger"
	chatService "story-app/internal/service/chat"
	"story-app/internal/service/llm"
	"story-app/internal/service/usage"

	"github.com/sirupsen/logrus"
)

// Request/Response types

type PersonalizationData struct {
	Name         string   `json:"name,omitempty"`
	Age          int      `json:"age,omitempty"`
	Level        string   `json:"level,omitempty"`
	Interests    []string `json:"interests,omitempty"`
	LearningGoal string   `json:"learning_goal,omitempty"`
}

type GenerateRequest struct {
	Prompt          string               `json:"prompt"`
	Mode            string               `json:"mode,omitempty"`
	Personalization *PersonalizationData `json:"personalization,omitempty"`
	Temperature     *float64             `json:"temperature,omitempty"`
	MaxTokens       *int                 `json:"max_tokens,omitempty"`
	ConversationID  string               `json:"conversationId,omitempty"`
	UserID          string               `json:"userId,omitempty"`
	Language        string               `json:"language,omitempty"`
	IncludeAudio    bool                 `json:"include_audio,omitempty"`
	Voice           string               `json:"voice,omitempty"`
}

type GenerateMetadata struct {
	Intent       string             `json:"intent"`
	ShortCircuit bool               `json:"short_circuit"`
	Model        string             `json:"model,omitempty"`
	Provider     string             `json:"provider,omitempty"`
	FinishReason string             `json:"finish_reason,omitempty"`
	Truncated    bool               `json:"truncated"`
	Language     string             `json:"language,omitempty"`
	Tokens       *llm.ResponseUsage `json:"tokens,omitempty"`
	Audio        string             `json:"audio,omitempty"`
	AudioFormat  string             `json:"audio_format,omitempty"`
	AudioError   string             `json:"audio_error,omitempty"`
}

type UsageData struct {
	Used      int    `json:"used"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
	Unlimited bool   `json:"unlimited"`
	Tier      string `json:"tier"`
}

type GenerateResponse struct {
	ID             string           `json:"id"`
	ConversationID string           `json:"conversation_id"`
	Mode           string           `json:"mode"`
	Response       string           `json:"response"`
	Metadata       GenerateMetadata `json:"metadata"`
	Usage          UsageData        `json:"usage"`
}

// GenerateHandler answers one story prompt
func (h *Handlers) GenerateHandler(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	userID, err := h.resolveUser(r, req.UserID)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}

	logger.Log.WithFields(logrus.Fields{
		"user_id": userID,
		"mode":    req.Mode,
	}).Info("Generate request received")

	resp, err := h.chatService.Generate(r.Context(), chatService.GenerateRequest{
		Prompt:          req.Prompt,
		Mode:            req.Mode,
		Personalization: req.Personalization.toService(),
		Temperature:     req.Temperature,
		MaxTokens:       req.MaxTokens,
		ConversationID:  req.ConversationID,
		UserID:          userID,
		Language:        req.Language,
		IncludeAudio:    req.IncludeAudio,
		Voice:           req.Voice,
	})
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}

	metadata := GenerateMetadata{
		Intent:       string(resp.Metadata.Intent),
		ShortCircuit: resp.Metadata.ShortCircuit,
		Model:        resp.Metadata.Model,
		Provider:     resp.Metadata.Provider,
		FinishReason: resp.Metadata.FinishReason,
		Truncated:    resp.Metadata.Truncated,
		Language:     resp.Metadata.Language,
		Tokens:       resp.Metadata.Tokens,
		AudioFormat:  resp.Metadata.AudioFormat,
		AudioError:   resp.Metadata.AudioError,
	}
	if len(resp.Metadata.Audio) > 0 {
		metadata.Audio = base64.StdEncoding.EncodeToString(resp.Metadata.Audio)
	}

	h.sendJSON(w, http.StatusOK, GenerateResponse{
		ID:             resp.ID,
		ConversationID: resp.ConversationID,
		Mode:           resp.Mode,
		Response:       resp.Response,
		Metadata:       metadata,
		Usage:          toUsageData(resp.Usage.Result, resp.Usage.Tier),
	})
}

// UsageHandler reports today's usage without consuming a request
func (h *Handlers) UsageHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := h.resolveUser(r, r.URL.Query().Get("userId"))
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}

	tier, exempt, err := h.limiter.ResolveTier(r.Context(), userID)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}

	result, err := h.limiter.Peek(r.Context(), userID, exempt)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}

	h.sendJSON(w, http.StatusOK, toUsageData(result, tier))
}

func toUsageData(result usage.Result, tier string) UsageData {
	return UsageData{
		Used:      result.Used,
		Limit:     result.Limit,
		Remaining: result.Remaining,
		Unlimited: result.Unlimited,
		Tier:      tier,
	}
}

func (p *PersonalizationData) toService() *chatService.Personalization {
	if p == nil {
		return nil
	}
	return &chatService.Personalization{
		Name:         p.Name,
		Age:          p.Age,
		Level:        p.Level,
		Interests:    p.Interests,
		LearningGoal: p.LearningGoal,
	}
}
