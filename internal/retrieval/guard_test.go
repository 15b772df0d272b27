package retrieval

import (
	"testing"

	"github.com/faqline/faqline/internal/domain"
	"github.com/stretchr/testify/assert"
)

func blockedTenant(services ...string) *domain.Tenant {
	return &domain.Tenant{ID: "tenant-1", Name: "Acme", BlockedServices: services}
}

func TestWrongService(t *testing.T) {
	tests := []struct {
		name     string
		tenant   *domain.Tenant
		query    string
		expected bool
	}{
		{"nil tenant", nil, "do you do plumbing", false},
		{"no blocklist", blockedTenant(), "do you do plumbing", false},
		{"exact token match", blockedTenant("plumbing"), "do you do plumbing", true},
		{"stem match plural", blockedTenant("repair"), "do you do repairs", true},
		{"stem match gerund", blockedTenant("plumb"), "any plumbing work", true},
		{"no match", blockedTenant("plumbing"), "what are your opening hours", false},
		{"substring does not trip", blockedTenant("door repair"), "what do you charge", false},
		{"short token not stemmed into match", blockedTenant("gas"), "tell me about your gastronomy menu", false},
		{"multi word phrase present", blockedTenant("door repair"), "how much is a door repair visit", true},
		{"multi word phrase split apart", blockedTenant("door repair"), "can you repair my garage door opener", false},
		{"second entry matches", blockedTenant("roofing", "plumbing"), "emergency plumbing please", true},
		{"empty blocklist entry", blockedTenant("  "), "anything at all", false},
		{"empty query", blockedTenant("plumbing"), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, WrongService(tt.tenant, tt.query))
		})
	}
}

func TestStem(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"plumbing", "plumb"},
		{"repairs", "repair"},
		{"repairers", "repair"},
		{"cleaner", "clean"},
		{"gas", "gas"},   // too short to strip
		{"wing", "wing"}, // stripping would leave a stub
		{"repair", "repair"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, stem(tt.in), "stem(%q)", tt.in)
	}
}
