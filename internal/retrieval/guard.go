package retrieval

import (
	"strings"

	"github.com/faqline/faqline/internal/domain"
)

// WrongService reports whether the normalized query lexically matches a
// service the tenant explicitly does not offer. The guard runs independently
// of candidate scores: a plumbing question scoring high against an
// electrician's items is exactly the spurious match it exists to catch.
func WrongService(tenant *domain.Tenant, normalized string) bool {
	if tenant == nil || len(tenant.BlockedServices) == 0 {
		return false
	}

	queryTokens := tokenSet(normalized)
	if len(queryTokens) == 0 {
		return false
	}

	for _, service := range tenant.BlockedServices {
		if matchesBlockedService(queryTokens, normalized, service) {
			return true
		}
	}
	return false
}

// matchesBlockedService requires every token of the blocked term to appear
// in the query. Single-word terms match on token identity, never substring,
// so "do" in the query cannot trip a "door repair" block.
func matchesBlockedService(queryTokens map[string]struct{}, normalized, service string) bool {
	serviceTokens := strings.Fields(strings.ToLower(strings.TrimSpace(service)))
	if len(serviceTokens) == 0 {
		return false
	}
	if len(serviceTokens) > 1 {
		return strings.Contains(" "+normalized+" ", " "+strings.Join(serviceTokens, " ")+" ")
	}
	token := serviceTokens[0]
	if _, ok := queryTokens[token]; ok {
		return true
	}
	// Plural/singular drift: "plumbing" vs "plumb", "repairs" vs "repair".
	for qt := range queryTokens {
		if stem(qt) == stem(token) {
			return true
		}
	}
	return false
}

func tokenSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range strings.Fields(s) {
		out[tok] = struct{}{}
	}
	return out
}

// stem strips the common English suffixes that show up in service names.
// Deliberately crude; the blocklist is curated, not free text.
func stem(token string) string {
	for _, suffix := range []string{"ing", "ers", "er", "s"} {
		if trimmed, ok := strings.CutSuffix(token, suffix); ok && len(trimmed) >= 4 {
			return trimmed
		}
	}
	return token
}
