package voice

import (
	"context"
	"fmt"
	"io"
	"strings"

	"story-app/internal/apperr"
	"story-app/internal/config"
	"story-app/internal/logger"
	"story-app/internal/service/llm"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

// AudioFormat is the container returned by Synthesize
const AudioFormat = "mp3"

const (
	minSpeed = 0.25
	maxSpeed = 4.0
)

// Voice describes one synthesis voice offered to clients
type Voice struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

var voices = []Voice{
	{ID: string(openai.VoiceAlloy), Label: "Alloy", Description: "Neutral and balanced"},
	{ID: string(openai.VoiceEcho), Label: "Echo", Description: "Warm and steady"},
	{ID: string(openai.VoiceFable), Label: "Fable", Description: "Expressive storyteller"},
	{ID: string(openai.VoiceOnyx), Label: "Onyx", Description: "Deep and calm"},
	{ID: string(openai.VoiceNova), Label: "Nova", Description: "Bright and friendly"},
	{ID: string(openai.VoiceShimmer), Label: "Shimmer", Description: "Soft and gentle"},
}

// Voices returns the synthesis voice catalogue
func Voices() []Voice {
	out := make([]Voice, len(voices))
	copy(out, voices)
	return out
}

// IsValidVoice reports whether id names a catalogue voice
func IsValidVoice(id string) bool {
	for _, v := range voices {
		if v.ID == id {
			return true
		}
	}
	return false
}

// Speaker synthesises and transcribes speech
type Speaker interface {
	Synthesize(ctx context.Context, text, voice string, speed float64) ([]byte, error)
	Transcribe(ctx context.Context, audio io.Reader, filename, language string) (string, error)
}

// OpenAISpeaker implements Speaker on the OpenAI audio endpoints
type OpenAISpeaker struct {
	client *openai.Client
	config config.VoiceConfig
}

// NewOpenAISpeaker creates a speaker; a nil client makes every call fail as not configured
func NewOpenAISpeaker(client *openai.Client, voiceConfig config.VoiceConfig) *OpenAISpeaker {
	return &OpenAISpeaker{
		client: client,
		config: voiceConfig,
	}
}

// Synthesize converts text to mp3 audio
func (s *OpenAISpeaker) Synthesize(ctx context.Context, text, voice string, speed float64) ([]byte, error) {
	if s.client == nil {
		return nil, apperr.NotConfigured("OPENAI_API_KEY")
	}
	if strings.TrimSpace(text) == "" {
		return nil, apperr.Validation("text is required")
	}
	if voice == "" {
		voice = s.config.DefaultVoice
	}
	if speed == 0 {
		speed = 1.0
	}
	if speed < minSpeed || speed > maxSpeed {
		return nil, apperr.Validation("speed must be between %.2f and %.1f", minSpeed, maxSpeed)
	}

	logger.Log.WithFields(logrus.Fields{
		"voice":       voice,
		"text_length": len(text),
	}).Debug("Synthesizing speech")

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.config.TTSModel),
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
		Speed:          speed,
	})
	if err != nil {
		return nil, llm.ClassifyOpenAIError("openai-tts", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: reading speech: %v", apperr.ErrUpstream, err)
	}
	return audio, nil
}

// Transcribe converts recorded audio to text.
// filename carries the extension the API uses to detect the format.
func (s *OpenAISpeaker) Transcribe(ctx context.Context, audio io.Reader, filename, language string) (string, error) {
	if s.client == nil {
		return "", apperr.NotConfigured("OPENAI_API_KEY")
	}
	if filename == "" {
		filename = "audio.webm"
	}

	resp, err := s.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    s.config.STTModel,
		Reader:   audio,
		FilePath: filename,
		Language: language,
	})
	if err != nil {
		return "", llm.ClassifyOpenAIError("openai-stt", err)
	}

	logger.Log.WithField("text_length", len(resp.Text)).Debug("Transcribed audio")
	return resp.Text, nil
}
