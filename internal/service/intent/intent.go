// Package intent classifies short user utterances so that conversational
// filler can be answered without a generation call.
package intent

import (
	"regexp"
	"strings"
)

// Intent is the classification of a user message
type Intent string

const (
	Greeting     Intent = "GREETING"
	Ack          Intent = "ACK"
	Continue     Intent = "CONTINUE"
	Clarify      Intent = "CLARIFY"
	StoryRequest Intent = "STORY_REQUEST"
	Question     Intent = "QUESTION"
)

// clarifyMaxTokens is the longest message still treated as too vague to answer
const clarifyMaxTokens = 3

var (
	greetingPattern = regexp.MustCompile(`(?i)^(hi|hello|hey|hiya|howdy|greetings|yo|good (morning|afternoon|evening))( there| aidanna)?[\s!.,]*$`)
	ackPattern      = regexp.MustCompile(`(?i)^(ok|okay|k|thanks|thank you|thx|got it|cool|sure|alright|all right|great|nice|awesome|perfect|understood|i see|makes sense)(,? thanks)?[\s!.,]*$`)
	continuePattern = regexp.MustCompile(`(?i)^(continue|go on|more|keep going|carry on|next|tell me more|what happens next|and then)[\s!.?,]*$`)
	storyPattern    = regexp.MustCompile(`(?i)\b(tell|write|create|make|give|generate|narrate|show)\s+((me|us)\s+)?((a|an|the|another|one)\s+)?((short|new|fun|quick)\s+)?(story|stories|narrative|dialogue|scene)\b`)
	questionPattern = regexp.MustCompile(`(?i)\?|\b(explain|teach|help|how|why|what|when|where|who|which|describe|define)\b`)
)

// Rule pairs a predicate with the intent it yields
type Rule struct {
	Name   string
	Intent Intent
	Match  func(text string) bool
}

// Rules are evaluated in order; the first match wins
var Rules = []Rule{
	{Name: "greeting", Intent: Greeting, Match: greetingPattern.MatchString},
	{Name: "acknowledgement", Intent: Ack, Match: ackPattern.MatchString},
	{Name: "continuation", Intent: Continue, Match: continuePattern.MatchString},
	{Name: "too-short", Intent: Clarify, Match: isTooShort},
	{Name: "story-cue", Intent: StoryRequest, Match: storyPattern.MatchString},
	{Name: "question-cue", Intent: Question, Match: questionPattern.MatchString},
}

func isTooShort(text string) bool {
	return len(strings.Fields(text)) <= clarifyMaxTokens && !strings.Contains(text, "?")
}

// Classify returns the intent of text. It never fails: unmatched text is a Question.
func Classify(text string) Intent {
	text = strings.TrimSpace(text)
	for _, rule := range Rules {
		if rule.Match(text) {
			return rule.Intent
		}
	}
	return Question
}

// ShortCircuits reports whether the intent is answered with a canned reply
func ShortCircuits(i Intent) bool {
	switch i {
	case Greeting, Ack, Clarify:
		return true
	default:
		return false
	}
}

// Reply returns the canned reply for a short-circuit intent in the given mode.
// Returns "" for intents that need generation.
func Reply(i Intent, mode string) string {
	switch i {
	case Greeting:
		return "Hello! I'm Aidanna. Tell me what you'd like to learn and I'll turn it into a " + modeNoun(mode) + "."
	case Ack:
		return "Glad that helped! Say \"continue\" to keep going, or ask me about something new."
	case Clarify:
		return "Could you tell me a little more? For example: \"Tell me a story about how bees make honey\" or \"Explain photosynthesis\"."
	default:
		return ""
	}
}

// ContinuationPrompt rewrites a continuation request to point at the previous reply
func ContinuationPrompt(lastReply string) string {
	return "Continue from where you left off. Your previous response was:\n\n" + lastReply + "\n\nPick up the story naturally from its last moment."
}

func modeNoun(mode string) string {
	switch mode {
	case "dialogue":
		return "dialogue"
	case "case-study":
		return "case study"
	case "interactive":
		return "interactive adventure"
	default:
		return "story"
	}
}
