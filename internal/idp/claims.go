package idp

import (
	"github.com/go-orgauth/orgauth/internal/models"
)

// defaultOrganizationClaimKeys lists the claim names checked, in order, for
// the user's organization membership list. Providers differ on the exact key.
var defaultOrganizationClaimKeys = []string{
	"organizations",
	"https://scalekit.com/organizations",
	"scalekit:organizations",
}

// organizationIDClaimKeys lists the claim names checked, in order, for the
// organization the current token is scoped to.
var organizationIDClaimKeys = []string{"oid", "org_id", "organization_id"}

// OrganizationIDFromClaims extracts the active organization id from token
// claims. Returns "" when no known claim carries one.
func OrganizationIDFromClaims(claims map[string]any) string {
	for _, key := range organizationIDClaimKeys {
		if s, ok := claims[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// OrganizationsFromClaims extracts the membership list from token claims,
// trying each candidate key in order and stopping at the first non-empty list.
func OrganizationsFromClaims(claims map[string]any, claimKeys []string) []models.OrganizationSummary {
	if len(claimKeys) == 0 {
		claimKeys = defaultOrganizationClaimKeys
	}
	for _, key := range claimKeys {
		raw, ok := claims[key].([]any)
		if !ok || len(raw) == 0 {
			continue
		}
		if orgs := organizationsFromList(raw); len(orgs) > 0 {
			return orgs
		}
	}
	return nil
}

func organizationsFromList(items []any) []models.OrganizationSummary {
	orgs := make([]models.OrganizationSummary, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case map[string]any:
			id := stringField(v, "id", "organization_id")
			if id == "" {
				continue
			}
			name := stringField(v, "display_name", "name")
			if name == "" {
				name = id
			}
			orgs = append(orgs, models.OrganizationSummary{ID: id, DisplayName: name})
		case string:
			if v != "" {
				orgs = append(orgs, models.OrganizationSummary{ID: v, DisplayName: v})
			}
		}
	}
	return orgs
}

// stringField returns the first non-empty string value among the given keys.
func stringField(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
