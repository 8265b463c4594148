// Package connectors exposes the static integration catalog and the
// provider-backed connected-account operations on top of it.
package connectors

import "github.com/go-orgauth/orgauth/internal/models"

// ConnectionNames maps catalog keys to provider-side connection identifiers,
// which are set per environment in the provider dashboard.
type ConnectionNames struct {
	GitHub    string
	Slack     string
	GoogleAds string
}

// Catalog is the ordered set of supported connectors. The order is the display
// order and is stable across requests.
type Catalog struct {
	entries []models.ConnectorDescriptor
	byKey   map[string]models.ConnectorDescriptor
}

// NewCatalog builds the catalog. Empty connection names fall back to the
// catalog key.
func NewCatalog(names ConnectionNames) *Catalog {
	entries := []models.ConnectorDescriptor{
		{
			Key:            "github",
			ConnectionName: orKey(names.GitHub, "github"),
			DisplayName:    "GitHub",
			Description:    "Connect your GitHub account to access repositories and issues.",
			Icon:           "github",
		},
		{
			Key:            "slack",
			ConnectionName: orKey(names.Slack, "slack"),
			DisplayName:    "Slack",
			Description:    "Connect your Slack workspace to send notifications.",
			Icon:           "slack",
		},
		{
			Key:            "google_ads",
			ConnectionName: orKey(names.GoogleAds, "google_ads"),
			DisplayName:    "Google Ads",
			Description:    "Connect your Google Ads account to manage campaigns.",
			Icon:           "google-ads",
		},
	}

	byKey := make(map[string]models.ConnectorDescriptor, len(entries))
	for _, e := range entries {
		byKey[e.Key] = e
	}
	return &Catalog{entries: entries, byKey: byKey}
}

// Entries returns the descriptors in display order.
func (c *Catalog) Entries() []models.ConnectorDescriptor {
	return c.entries
}

// Lookup finds a descriptor by catalog key.
func (c *Catalog) Lookup(key string) (models.ConnectorDescriptor, bool) {
	d, ok := c.byKey[key]
	return d, ok
}

func orKey(name, key string) string {
	if name != "" {
		return name
	}
	return key
}
