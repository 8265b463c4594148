package models

// ConnectorDescriptor is a static catalog entry for a supported integration.
// ConnectionName is the provider-side connection identifier and is not exposed
// to API clients.
type ConnectorDescriptor struct {
	Key            string `json:"key"`
	ConnectionName string `json:"-"`
	DisplayName    string `json:"display_name"`
	Description    string `json:"description"`
	Icon           string `json:"icon"`
}

// ConnectedAccount is the provider-side grant record for one user and one
// connector.
type ConnectedAccount struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Connected-account provider statuses.
const (
	AccountStatusActive  = "ACTIVE"
	AccountStatusPending = "PENDING"
	AccountStatusError   = "ERROR"
)

// ConnectedAccountStatus is the per-request view of one connector's grant.
// It is derived from a provider round-trip and never cached.
type ConnectedAccountStatus struct {
	Connector   string `json:"connector"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	AccountID   string `json:"account_id,omitempty"`
	Status      string `json:"status"`
	Connected   bool   `json:"connected"`
	Error       string `json:"error,omitempty"`
}
