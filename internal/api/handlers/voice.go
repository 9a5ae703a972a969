package handlers

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"story-app/internal/apperr"
	"story-app/internal/service/voice"
)

// maxAudioUpload bounds speech-to-text uploads
const maxAudioUpload = 25 << 20

type SpeechRequest struct {
	Text  string  `json:"text"`
	Voice string  `json:"voice,omitempty"`
	Speed float64 `json:"speed,omitempty"`
}

type SpeechResponse struct {
	Audio  string `json:"audio"`
	Format string `json:"format"`
	Voice  string `json:"voice"`
}

type TranscriptionRequest struct {
	Audio    string `json:"audio"`
	Filename string `json:"filename,omitempty"`
	Language string `json:"language,omitempty"`
}

type TranscriptionResponse struct {
	Text string `json:"text"`
}

type VoicesResponse struct {
	Voices  []voice.Voice `json:"voices"`
	Default string        `json:"default"`
}

// SpeechHandler converts text to base64 mp3 audio
func (h *Handlers) SpeechHandler(w http.ResponseWriter, r *http.Request) {
	var req SpeechRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.validator.ValidateSpeechRequest(req.Text, req.Voice); err != nil {
		h.sendError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	voiceID := req.Voice
	if voiceID == "" {
		voiceID = h.config.AppConfig.Voice.DefaultVoice
	}

	audio, err := h.speaker.Synthesize(r.Context(), req.Text, voiceID, req.Speed)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}

	h.sendJSON(w, http.StatusOK, SpeechResponse{
		Audio:  base64.StdEncoding.EncodeToString(audio),
		Format: voice.AudioFormat,
		Voice:  voiceID,
	})
}

// TranscriptionHandler accepts a multipart "audio" file or a JSON body with base64 audio
func (h *Handlers) TranscriptionHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAudioUpload)

	audio, filename, language, err := readAudioUpload(r)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid audio upload", err)
		return
	}

	if err := h.validator.ValidateLanguage(language); err != nil {
		h.sendError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	text, err := h.speaker.Transcribe(r.Context(), audio, filename, language)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}

	h.sendJSON(w, http.StatusOK, TranscriptionResponse{Text: text})
}

// VoicesHandler lists the synthesis voices
func (h *Handlers) VoicesHandler(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, http.StatusOK, VoicesResponse{
		Voices:  voice.Voices(),
		Default: h.config.AppConfig.Voice.DefaultVoice,
	})
}

func readAudioUpload(r *http.Request) (io.Reader, string, string, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, err := r.FormFile("audio")
		if err != nil {
			return nil, "", "", err
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return nil, "", "", err
		}
		if len(data) == 0 {
			return nil, "", "", apperr.Validation("audio file is empty")
		}
		return bytes.NewReader(data), header.Filename, r.FormValue("language"), nil
	}

	var req TranscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, "", "", err
	}
	data, err := base64.StdEncoding.DecodeString(req.Audio)
	if err != nil {
		return nil, "", "", apperr.Validation("audio must be base64 encoded")
	}
	if len(data) == 0 {
		return nil, "", "", apperr.Validation("audio is required")
	}
	return bytes.NewReader(data), req.Filename, req.Language, nil
}
