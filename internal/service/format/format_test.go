package format

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// padding pushes a reply over ShortThreshold
var padding = strings.Repeat("The hive hums quietly through the warm afternoon air ", 5)

func TestFormat_ShortTextIsIdentity(t *testing.T) {
	inputs := []string{
		"",
		"Hello! I'm Aidanna.",
		"Alice: hi\n\n\n\nBob: hello",
		strings.Repeat("a", ShortThreshold),
	}

	for _, in := range inputs {
		assert.Equal(t, in, Format(in, "dialogue"))
		assert.Equal(t, in, Format(in, "narrative"))
	}
}

func TestFormat_CollapsesNewlines(t *testing.T) {
	text := "Alice: " + padding + "\n\n\n\n\nBob: Tell me more about the queen.\n\n\nAlice: She lays the eggs."

	got := Format(text, "dialogue")

	assert.NotContains(t, got, "\n\n\n")
	assert.Equal(t, "**Alice:** "+strings.TrimSpace(padding)+"\n\n**Bob:** Tell me more about the queen.\n\n**Alice:** She lays the eggs.", got)
}

func TestFormat_DialogueAddsBlankLineBetweenSpeakers(t *testing.T) {
	text := "Narrator: " + padding + "\nMs Bee: Welcome to the hive.\nYoung Drone: What do we do here?"

	got := Format(text, "dialogue")

	assert.True(t, strings.HasPrefix(got, "**Narrator:** "))
	assert.Contains(t, got, "\n\n**Ms Bee:** Welcome to the hive.\n\n**Young Drone:** What do we do here?")
}

func TestFormat_DialogueIsIdempotent(t *testing.T) {
	text := "Alice: " + padding + "\nBob: Really?\n\n\n\nAlice: Yes."

	once := Format(text, "dialogue")
	assert.Equal(t, once, Format(once, "dialogue"))
}

func TestFormat_NarrativeParagraphs(t *testing.T) {
	text := strings.TrimSpace(padding) + ". The queen rested. Workers gathered nectar! Would winter come?  Nobody knew."

	got := Format(text, "narrative")

	assert.Contains(t, got, "The queen rested.\n\nWorkers gathered nectar!\n\nWould winter come?\n\nNobody knew.")
	assert.Equal(t, got, Format(got, "narrative"))
}

func TestFormat_NormalisesCRLF(t *testing.T) {
	text := padding + "\r\n\r\n\r\n\r\nthe end"

	got := Format(text, "case-study")

	assert.NotContains(t, got, "\r")
	assert.NotContains(t, got, "\n\n\n")
}

func TestTitle(t *testing.T) {
	sixty := strings.Repeat("abcdefghij", 6)
	thirty := strings.Repeat("abcdefghij", 3)

	assert.Equal(t, sixty[:50]+"...", Title(sixty))
	assert.Equal(t, thirty, Title(thirty))
	assert.Equal(t, strings.Repeat("x", 50), Title(strings.Repeat("x", 50)))
	assert.Equal(t, "New story", Title("   "))
	assert.Equal(t, "How do bees make honey?", Title("  How do bees make honey?  "))

	// Titles count characters, not bytes
	accented := strings.Repeat("é", 55)
	assert.Equal(t, strings.Repeat("é", 50)+"...", Title(accented))
}
