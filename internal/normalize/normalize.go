// Package normalize rewrites raw customer input into the canonical form used
// by every matching stage and as the result-cache key. Normalize is pure and
// total; identical input always yields identical output.
package normalize

import (
	"strings"
	"unicode"
)

// slang maps chat shorthand onto full words. Applied token-by-token after
// case folding, so keys are lowercase.
var slang = map[string]string{
	"u":     "you",
	"ur":    "your",
	"r":     "are",
	"pls":   "please",
	"plz":   "please",
	"thx":   "thanks",
	"ty":    "thanks",
	"2day":  "today",
	"2moro": "tomorrow",
	"tmrw":  "tomorrow",
	"b4":    "before",
	"msg":   "message",
	"appt":  "appointment",
	"asap":  "as soon as possible",
	"hrs":   "hours",
	"min":   "minutes",
	"mins":  "minutes",
	"info":  "information",
	"abt":   "about",
	"bc":    "because",
	"cuz":   "because",
	"rn":    "right now",
}

// contractions that do not follow the generic suffix rules.
var contractions = map[string]string{
	"won't":   "will not",
	"can't":   "can not",
	"cannot":  "can not",
	"shan't":  "shall not",
	"ain't":   "is not",
	"let's":   "let us",
	"i'm":     "i am",
	"it's":    "it is",
	"that's":  "that is",
	"what's":  "what is",
	"who's":   "who is",
	"here's":  "here is",
	"there's": "there is",
}

type suffixRule struct {
	suffix      string
	replacement string
}

// Ordered: longer suffixes first so "n't" wins over "'t".
var suffixRules = []suffixRule{
	{"n't", " not"},
	{"'ll", " will"},
	{"'re", " are"},
	{"'ve", " have"},
	{"'d", " would"},
	{"'s", " is"},
}

// Normalize applies, in order: Unicode case folding, punctuation stripping at
// token boundaries, slang substitution, contraction expansion, and whitespace
// collapsing. It is idempotent: Normalize(Normalize(q)) == Normalize(q).
func Normalize(raw string) string {
	folded := strings.ToLower(raw)

	var out []string
	for _, token := range strings.Fields(folded) {
		token = trimBoundaryPunct(token)
		if token == "" {
			continue
		}
		if repl, ok := slang[token]; ok {
			token = repl
		}
		token = expandContraction(token)
		// Anything the contraction pass left behind (stray apostrophes,
		// embedded punctuation) is dropped so the output is a stable
		// fixed point.
		token = stripInnerPunct(token)
		if token == "" {
			continue
		}
		out = append(out, token)
	}

	return strings.Join(out, " ")
}

func trimBoundaryPunct(token string) string {
	return strings.TrimFunc(token, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
}

func expandContraction(token string) string {
	if repl, ok := contractions[token]; ok {
		return repl
	}
	if !strings.Contains(token, "'") {
		return token
	}
	for _, rule := range suffixRules {
		if base, ok := strings.CutSuffix(token, rule.suffix); ok && base != "" {
			return base + rule.replacement
		}
	}
	return token
}

func stripInnerPunct(token string) string {
	var b strings.Builder
	for _, r := range token {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
