package domain

import (
	"strings"
	"time"
)

// MaxVariantsPerItem caps the number of alternate phrasings stored per item.
// The offline authoring pipeline expands variants; the cap keeps the lexical
// index bounded.
const MaxVariantsPerItem = 24

// FAQItem is one tenant-scoped question/answer unit. Items are written by the
// offline publishing pipeline and are read-only at query time.
type FAQItem struct {
	ID                string
	TenantID          string
	CanonicalQuestion string
	Answer            string
	Variants          []string
	Embedding         []float32
	Enabled           bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Validate enforces the publish-time invariants: every enabled item carries a
// non-empty answer and at least one variant (the canonical question counts).
func (f *FAQItem) Validate() error {
	if strings.TrimSpace(f.TenantID) == "" {
		return ErrMissingRequiredField
	}
	if strings.TrimSpace(f.CanonicalQuestion) == "" {
		return ErrMissingRequiredField
	}
	if !f.Enabled {
		return nil
	}
	if strings.TrimSpace(f.Answer) == "" {
		return ErrItemMissingAnswer
	}
	if len(f.AllVariants()) == 0 {
		return ErrItemMissingVariants
	}
	if len(f.Variants) > MaxVariantsPerItem {
		return ErrTooManyVariants
	}
	return nil
}

// AllVariants returns the canonical question plus variants, deduplicated,
// preserving insertion order. Every matching channel indexes this set.
func (f *FAQItem) AllVariants() []string {
	seen := make(map[string]struct{}, len(f.Variants)+1)
	out := make([]string, 0, len(f.Variants)+1)
	add := func(v string) {
		v = strings.TrimSpace(v)
		if v == "" {
			return
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	add(f.CanonicalQuestion)
	for _, v := range f.Variants {
		add(v)
	}
	return out
}

// Tenant is one independent business account. BlockedServices is the
// capability-guard blocklist: services the tenant explicitly does not offer.
type Tenant struct {
	ID              string
	Name            string
	BlockedServices []string
	CreatedAt       time.Time
}
