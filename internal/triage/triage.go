// Package triage gates input before any retrieval work begins. Classify is a
// pure string predicate: it performs no I/O and consumes no provider budget.
package triage

import (
	"strings"
	"unicode"
)

// Outcome is the triage result for one normalized query.
type Outcome string

const (
	// Proceed hands the query to the retrieval pipeline.
	Proceed Outcome = "proceed"
	// Clarify short-circuits the pipeline; the caller asks the customer to
	// rephrase. Terminal for the request.
	Clarify Outcome = "clarify"
)

// minEffectiveLen is the minimum count of letter/digit runes left after junk
// stripping for a query to be worth retrieving against.
const minEffectiveLen = 4

// bare greetings carry no retrievable intent on their own.
var greetings = map[string]struct{}{
	"hi": {}, "hello": {}, "hey": {}, "yo": {}, "hiya": {},
	"good morning": {}, "good afternoon": {}, "good evening": {},
	"thanks": {}, "thank you": {}, "ok": {}, "okay": {},
}

// keyboard runs that show up as test/noise input.
var keyboardRuns = []string{"asdf", "qwer", "zxcv", "hjkl", "jkl", "sdf", "1234"}

// Classify decides whether a normalized query proceeds to retrieval.
func Classify(normalized string) Outcome {
	trimmed := strings.TrimSpace(normalized)
	if trimmed == "" {
		return Clarify
	}

	if _, ok := greetings[trimmed]; ok {
		return Clarify
	}

	// Single-token keyboard mashes ("asdf", "asdfgh") never match anything
	// useful; catch them before they cost an embedding call.
	if !strings.ContainsRune(trimmed, ' ') {
		for _, run := range keyboardRuns {
			if strings.Contains(trimmed, run) {
				return Clarify
			}
		}
	}

	effective := 0
	distinct := map[rune]struct{}{}
	for _, r := range trimmed {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			effective++
			distinct[r] = struct{}{}
		}
	}
	if effective < minEffectiveLen {
		return Clarify
	}
	// "aaaaaa" style keyboard noise: enough runes but no variety.
	if len(distinct) < 3 {
		return Clarify
	}

	return Proceed
}
