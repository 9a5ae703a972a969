package handlers

import (
	"context"
	"net/http"
	"time"
)

const healthPingTimeout = 2 * time.Second

type RootResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Database  string `json:"database"`
	Provider  string `json:"provider"`
}

type ModeInfo struct {
	Label       string `json:"label"`
	Description string `json:"description"`
}

func (h *Handlers) RootHandler(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, http.StatusOK, RootResponse{
		Message: "Aidanna API is running",
		Status:  "healthy",
	})
}

// HealthHandler reports liveness; an unreachable database degrades but does not fail the check
func (h *Handlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   h.config.AppConfig.Server.Version,
		Database:  "ok",
		Provider:  h.providerName,
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
	defer cancel()
	if err := h.config.DB.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Database = "unavailable"
	}

	h.sendJSON(w, http.StatusOK, resp)
}

// ModesHandler lists the story modes keyed by id
func (h *Handlers) ModesHandler(w http.ResponseWriter, r *http.Request) {
	modes := h.config.ModesConfig().GetModes()
	result := make(map[string]ModeInfo, len(modes))
	for _, mode := range modes {
		result[mode.ID] = ModeInfo{Label: mode.Label, Description: mode.Description}
	}
	h.sendJSON(w, http.StatusOK, result)
}
