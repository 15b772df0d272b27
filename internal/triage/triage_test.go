package triage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		expected Outcome
	}{
		{"empty", "", Clarify},
		{"whitespace", "   ", Clarify},
		{"bare greeting", "hello", Clarify},
		{"two word greeting", "good morning", Clarify},
		{"thanks", "thank you", Clarify},
		{"greeting with intent proceeds", "hello what are your hours", Proceed},
		{"keyboard mash", "asdf", Clarify},
		{"longer keyboard mash", "asdfghjkl", Clarify},
		{"number run", "12345", Clarify},
		{"keyboard run inside sentence proceeds", "my code is asdf1234 valid", Proceed},
		{"too short", "ok?", Clarify},
		{"three letters", "why", Clarify},
		{"four letters proceeds", "cost", Proceed},
		{"repeated single rune", "aaaaaaaa", Clarify},
		{"two distinct runes", "ababababab", Clarify},
		{"real question", "what are your opening hours", Proceed},
		{"short but real", "menu", Proceed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.in))
		})
	}
}
