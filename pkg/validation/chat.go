package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MaxTokensLimit    = 4000
	MaxLanguageLength = 32
	MaxPromptLength   = 8000
)

// GenerateRequestValidator validates story generation requests
type GenerateRequestValidator struct {
	isValidMode  func(string) bool
	isValidVoice func(string) bool
}

// NewGenerateRequestValidator creates a validator backed by the mode and voice catalogues
func NewGenerateRequestValidator(isValidMode, isValidVoice func(string) bool) *GenerateRequestValidator {
	return &GenerateRequestValidator{
		isValidMode:  isValidMode,
		isValidVoice: isValidVoice,
	}
}

// ValidatePrompt validates the user prompt
func (v *GenerateRequestValidator) ValidatePrompt(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return errors.New("prompt cannot be empty")
	}
	if n := utf8.RuneCountInString(prompt); n > MaxPromptLength {
		return fmt.Errorf("prompt must be at most %d characters long, got %d", MaxPromptLength, n)
	}
	return nil
}

// ValidateMode validates the story mode
func (v *GenerateRequestValidator) ValidateMode(mode string) error {
	if mode == "" {
		return nil // Mode is optional, defaults to narrative
	}
	if v.isValidMode != nil && !v.isValidMode(mode) {
		return fmt.Errorf("unsupported mode: %s", mode)
	}
	return nil
}

// ValidateTemperature validates the temperature parameter
func (v *GenerateRequestValidator) ValidateTemperature(temperature *float64) error {
	if temperature == nil {
		return nil // Temperature is optional
	}

	if *temperature < 0 || *temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %.2f", *temperature)
	}
	return nil
}

// ValidateMaxTokens validates the max_tokens parameter
func (v *GenerateRequestValidator) ValidateMaxTokens(maxTokens *int) error {
	if maxTokens == nil {
		return nil
	}

	if *maxTokens < 1 || *maxTokens > MaxTokensLimit {
		return fmt.Errorf("max_tokens must be between 1 and %d, got %d", MaxTokensLimit, *maxTokens)
	}
	return nil
}

// ValidateLanguage validates the response language
func (v *GenerateRequestValidator) ValidateLanguage(language string) error {
	if utf8.RuneCountInString(language) > MaxLanguageLength {
		return fmt.Errorf("language must be at most %d characters long", MaxLanguageLength)
	}
	return nil
}

// ValidateVoice validates an optional synthesis voice
func (v *GenerateRequestValidator) ValidateVoice(voice string) error {
	if voice == "" {
		return nil
	}
	if v.isValidVoice != nil && !v.isValidVoice(voice) {
		return fmt.Errorf("unsupported voice: %s", voice)
	}
	return nil
}

// ValidateGenerateRequest validates a complete generation request
func (v *GenerateRequestValidator) ValidateGenerateRequest(prompt, mode string, temperature *float64, maxTokens *int, language, voice string) error {
	if err := v.ValidatePrompt(prompt); err != nil {
		return err
	}

	if err := v.ValidateMode(mode); err != nil {
		return err
	}

	if err := v.ValidateTemperature(temperature); err != nil {
		return err
	}

	if err := v.ValidateMaxTokens(maxTokens); err != nil {
		return err
	}

	if err := v.ValidateLanguage(language); err != nil {
		return err
	}

	return v.ValidateVoice(voice)
}

// ValidateSpeechRequest validates a text-to-speech request
func (v *GenerateRequestValidator) ValidateSpeechRequest(text, voice string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("text cannot be empty")
	}
	return v.ValidateVoice(voice)
}
