package models

import "time"

// DefaultExpiresIn is used when the provider's token response omits expires_in.
const DefaultExpiresIn = 3600

// TokenBundle holds the access/refresh/ID token triple issued by the identity
// provider plus its locally computed expiry. A bundle is created on code
// exchange or refresh and replaced wholesale; it is never partially mutated.
type TokenBundle struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	ExpiresIn    int       `json:"expires_in"`
}

// NewTokenBundle builds a bundle with ExpiresAt derived from the local clock,
// never from the provider's clock. A non-positive expiresIn falls back to
// DefaultExpiresIn.
func NewTokenBundle(accessToken, refreshToken, idToken string, expiresIn int, now time.Time) TokenBundle {
	if expiresIn <= 0 {
		expiresIn = DefaultExpiresIn
	}
	return TokenBundle{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		IDToken:      idToken,
		ExpiresAt:    now.Add(time.Duration(expiresIn) * time.Second),
		ExpiresIn:    expiresIn,
	}
}

// ExpiresWithin reports whether the bundle expires within buffer of now,
// i.e. now + buffer >= ExpiresAt.
func (t TokenBundle) ExpiresWithin(buffer time.Duration, now time.Time) bool {
	return !now.Add(buffer).Before(t.ExpiresAt)
}

// SessionRecord is the authenticated-user record stored in the session. It is
// created at callback, its token is replaced by the refresh path, and its
// current organization only changes through a fresh callback.
type SessionRecord struct {
	SubjectID             string         `json:"sub"`
	Email                 string         `json:"email"`
	Name                  string         `json:"name"`
	GivenName             string         `json:"given_name,omitempty"`
	FamilyName            string         `json:"family_name,omitempty"`
	PreferredUsername     string         `json:"preferred_username,omitempty"`
	Claims                map[string]any `json:"claims,omitempty"`
	CurrentOrganizationID string         `json:"current_organization_id,omitempty"`
	Token                 TokenBundle    `json:"token"`
}

// OrganizationSummary is derived per query and never stored.
type OrganizationSummary struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	IsCurrent   bool   `json:"is_current"`
}

// MarkCurrent sets IsCurrent on the entry whose ID matches currentID. Zero
// matches is valid: the current organization may be unknown to the
// provider-side membership list.
func MarkCurrent(orgs []OrganizationSummary, currentID string) {
	for i := range orgs {
		orgs[i].IsCurrent = currentID != "" && orgs[i].ID == currentID
	}
}
