package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// DefaultModeID is used when a request does not name a mode
const DefaultModeID = "narrative"

// Mode represents a presentation style for generated content
type Mode struct {
	ID           string `json:"id"`
	Label        string `json:"label"`
	Description  string `json:"description"`
	SystemPrompt string `json:"system_prompt"`
}

// ModesConfig holds the ordered catalogue of supported modes
type ModesConfig struct {
	modes []Mode
}

// DefaultModes returns the built-in catalogue
func DefaultModes() []Mode {
	return []Mode{
		{
			ID:           "narrative",
			Label:        "Narrative",
			Description:  "Single storyline with characters and scenes",
			SystemPrompt: "You are Aidanna, a warm learning companion who creates captivating narrative stories to teach concepts.",
		},
		{
			ID:           "dialogue",
			Label:        "Dialogue",
			Description:  "A conversational play between characters",
			SystemPrompt: "You are Aidanna, a creative learning companion who teaches through dialogue between characters. Write each line as 'Name: line'.",
		},
		{
			ID:           "case-study",
			Label:        "Case Study",
			Description:  "Real-world scenario breakdown",
			SystemPrompt: "You are Aidanna, an insightful learning companion. Produce real-world case studies with analysis and takeaways.",
		},
		{
			ID:           "interactive",
			Label:        "Interactive",
			Description:  "Choose-your-own-adventure style",
			SystemPrompt: "You are Aidanna, an interactive learning companion. Present scenarios with clear choices and consequences.",
		},
	}
}

// NewModesConfig creates a modes catalogue from the given list
func NewModesConfig(modes []Mode) *ModesConfig {
	return &ModesConfig{modes: modes}
}

// LoadModesConfig loads the catalogue from a JSON file, or the defaults when path is empty
func LoadModesConfig(configPath string) (*ModesConfig, error) {
	if configPath == "" {
		return NewModesConfig(DefaultModes()), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	var modes []Mode
	if err := json.Unmarshal(data, &modes); err != nil {
		return nil, err
	}
	if len(modes) == 0 {
		return nil, fmt.Errorf("modes config %s is empty", configPath)
	}
	for _, mode := range modes {
		if mode.ID == "" {
			return nil, fmt.Errorf("modes config %s contains a mode without id", configPath)
		}
	}

	return NewModesConfig(modes), nil
}

// GetModes returns the catalogue in declaration order
func (mc *ModesConfig) GetModes() []Mode {
	return mc.modes
}

// GetMode looks up a mode by id
func (mc *ModesConfig) GetMode(id string) (Mode, bool) {
	for _, mode := range mc.modes {
		if mode.ID == id {
			return mode, true
		}
	}
	return Mode{}, false
}

// IsValidMode checks if a mode id is in the catalogue
func (mc *ModesConfig) IsValidMode(id string) bool {
	_, ok := mc.GetMode(id)
	return ok
}

// GetDefaultMode returns the narrative mode, or the first configured one
func (mc *ModesConfig) GetDefaultMode() Mode {
	if mode, ok := mc.GetMode(DefaultModeID); ok {
		return mode
	}
	if len(mc.modes) > 0 {
		return mc.modes[0]
	}
	return DefaultModes()[0]
}
