package handlers

import (
	"net/http"
	"time"
)

type ConversationInfo struct {
	ID           string `json:"id"`
	Mode         string `json:"mode"`
	Title        string `json:"title"`
	MessageCount int    `json:"message_count"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

type ConversationsResponse struct {
	Conversations []ConversationInfo `json:"conversations"`
}

type MessageData struct {
	ID               string `json:"id"`
	Role             string `json:"role"`
	Content          string `json:"content"`
	Intent           string `json:"intent,omitempty"`
	HasAudio         bool   `json:"has_audio"`
	Model            string `json:"model,omitempty"`
	FinishReason     string `json:"finish_reason,omitempty"`
	PromptTokens     *int   `json:"prompt_tokens,omitempty"`
	CompletionTokens *int   `json:"completion_tokens,omitempty"`
	TotalTokens      *int   `json:"total_tokens,omitempty"`
	CreatedAt        string `json:"created_at"`
}

type MessagesResponse struct {
	Messages []MessageData `json:"messages"`
}

type DeleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// GetConversationsHandler lists the caller's conversations
func (h *Handlers) GetConversationsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := h.resolveUser(r, r.URL.Query().Get("userId"))
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}

	conversations, err := h.conversationService.GetUserConversations(r.Context(), userID)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}

	result := make([]ConversationInfo, 0, len(conversations))
	for _, conv := range conversations {
		result = append(result, ConversationInfo{
			ID:           conv.ID,
			Mode:         conv.Mode,
			Title:        conv.Title,
			MessageCount: conv.MessageCount,
			CreatedAt:    conv.CreatedAt.Format(time.RFC3339),
			UpdatedAt:    conv.UpdatedAt.Format(time.RFC3339),
		})
	}

	h.sendJSON(w, http.StatusOK, ConversationsResponse{Conversations: result})
}

// GetConversationMessagesHandler lists the messages of one of the caller's conversations
func (h *Handlers) GetConversationMessagesHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := h.resolveUser(r, r.URL.Query().Get("userId"))
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}

	messages, err := h.conversationService.GetConversationMessages(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}

	result := make([]MessageData, 0, len(messages))
	for _, msg := range messages {
		result = append(result, MessageData{
			ID:               msg.ID,
			Role:             msg.Role,
			Content:          msg.Content,
			Intent:           msg.Intent,
			HasAudio:         msg.HasAudio(),
			Model:            msg.Model,
			FinishReason:     msg.FinishReason,
			PromptTokens:     msg.PromptTokens,
			CompletionTokens: msg.CompletionTokens,
			TotalTokens:      msg.TotalTokens,
			CreatedAt:        msg.CreatedAt.Format(time.RFC3339),
		})
	}

	h.sendJSON(w, http.StatusOK, MessagesResponse{Messages: result})
}

// DeleteConversationHandler deletes one of the caller's conversations
func (h *Handlers) DeleteConversationHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := h.resolveUser(r, r.URL.Query().Get("userId"))
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}

	if err := h.conversationService.DeleteConversation(r.Context(), r.PathValue("id"), userID); err != nil {
		h.sendServiceError(w, r, err)
		return
	}

	h.sendJSON(w, http.StatusOK, DeleteResponse{
		Success: true,
		Message: "Conversation deleted successfully",
	})
}
