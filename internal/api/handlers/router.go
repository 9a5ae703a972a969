package handlers

import (
	"net/http"
	"time"

	"story-app/internal/logger"

	"github.com/sirupsen/logrus"
)

const slowRequestThreshold = 2 * time.Second

// NewRouter registers every route on a ServeMux and wraps it with CORS and request logging
func NewRouter(h *Handlers) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", h.RootHandler)
	mux.HandleFunc("GET /health", h.HealthHandler)
	mux.HandleFunc("GET /modes", h.ModesHandler)

	mux.HandleFunc("POST /generate", h.GenerateHandler)
	mux.HandleFunc("GET /usage", h.UsageHandler)

	mux.HandleFunc("GET /conversations", h.GetConversationsHandler)
	mux.HandleFunc("GET /conversations/{id}/messages", h.GetConversationMessagesHandler)
	mux.HandleFunc("DELETE /conversations/{id}", h.DeleteConversationHandler)

	mux.HandleFunc("POST /voice/tts", h.SpeechHandler)
	mux.HandleFunc("POST /voice/stt", h.TranscriptionHandler)
	mux.HandleFunc("GET /voice/voices", h.VoicesHandler)

	mux.HandleFunc("POST /payment", h.CheckoutHandler)
	mux.HandleFunc("GET /payment", h.VerifyHandler)
	mux.HandleFunc("POST /payment/webhook", h.WebhookHandler)

	return logRequests(enableCORS(mux))
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		// A bare "*" does not cover Authorization, so echo what the preflight asks for
		allowHeaders := r.Header.Get("Access-Control-Request-Headers")
		if allowHeaders == "" {
			allowHeaders = "*"
		}
		w.Header().Set("Access-Control-Allow-Headers", allowHeaders)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		duration := time.Since(start)
		entry := logger.Log.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      recorder.status,
			"duration_ms": duration.Milliseconds(),
		})
		if duration > slowRequestThreshold {
			entry.Warn("Slow request")
			return
		}
		entry.Debug("Request handled")
	})
}
