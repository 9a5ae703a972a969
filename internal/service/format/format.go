// Package format tidies generated replies for display and derives conversation titles.
package format

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"story-app/internal/repository/db"
)

const (
	// ShortThreshold is the longest reply (in characters) returned untouched
	ShortThreshold = 200

	// TitleMaxLength is the number of characters kept from the first message
	TitleMaxLength = 50

	dialogueMode = "dialogue"
)

var (
	excessNewlines = regexp.MustCompile(`\n{3,}`)
	sentenceBreak  = regexp.MustCompile(`([.!?])[ \t]+([A-Z])`)
	speakerLine    = regexp.MustCompile(`^([A-Z][\w'.-]*(?: [\w'.-]+){0,3}):[ \t]+(.*)$`)
	boldSpeaker    = regexp.MustCompile(`^\*\*[^*]+:\*\*`)
)

// Format prepares a reply for display according to the story mode.
// Replies of ShortThreshold characters or fewer are returned unchanged.
func Format(text, mode string) string {
	if utf8.RuneCountInString(text) <= ShortThreshold {
		return text
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = excessNewlines.ReplaceAllString(text, "\n\n")

	if mode == dialogueMode {
		text = formatDialogue(text)
	} else {
		// Sentence splitting can still fire on abbreviations such as "Dr. Smith"
		text = sentenceBreak.ReplaceAllString(text, "$1\n\n$2")
	}

	text = excessNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// formatDialogue bolds speaker names and separates each speaker's turn with a blank line
func formatDialogue(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines)*2)

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		isSpeaker := boldSpeaker.MatchString(trimmed)
		if !isSpeaker {
			if m := speakerLine.FindStringSubmatch(trimmed); m != nil {
				trimmed = "**" + m[1] + ":** " + m[2]
				isSpeaker = true
			}
		}

		if isSpeaker && len(out) > 0 && out[len(out)-1] != "" {
			out = append(out, "")
		}
		if isSpeaker {
			out = append(out, trimmed)
		} else {
			out = append(out, line)
		}
	}

	return strings.Join(out, "\n")
}

// Title derives a conversation title from the first user message
func Title(message string) string {
	message = strings.TrimSpace(message)
	if message == "" {
		return db.DefaultConversationTitle
	}

	runes := []rune(message)
	if len(runes) > TitleMaxLength {
		return string(runes[:TitleMaxLength]) + "..."
	}
	return message
}
