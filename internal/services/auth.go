package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/go-orgauth/orgauth/internal/idp"
	"github.com/go-orgauth/orgauth/internal/metrics"
	"github.com/go-orgauth/orgauth/internal/models"
	"github.com/go-orgauth/orgauth/internal/session"
	"github.com/go-orgauth/orgauth/internal/util"
)

// stateEntropyBytes is the entropy behind the one-time OAuth state.
const stateEntropyBytes = 32

// AuthService implements the login, callback, organization and logout flows
// on top of the provider gateway and the session store.
type AuthService struct {
	gateway *idp.Gateway
	admin   *idp.AdminClient
	metrics metrics.Recorder
}

// NewAuthService builds the auth service.
func NewAuthService(gateway *idp.Gateway, admin *idp.AdminClient, recorder metrics.Recorder) *AuthService {
	if recorder == nil {
		recorder = metrics.NewNoopMetrics()
	}
	return &AuthService{gateway: gateway, admin: admin, metrics: recorder}
}

// BeginLogin stores a fresh one-time state in the session and returns the
// provider authorization URL together with the state. organizationID and
// prompt are optional.
func (s *AuthService) BeginLogin(c *gin.Context, organizationID, prompt string) (string, string, error) {
	state, err := util.RandomState(stateEntropyBytes)
	if err != nil {
		s.metrics.RecordAuthURLIssued(false)
		return "", "", fmt.Errorf("generating state: %w", err)
	}
	if err := session.SetState(c, state); err != nil {
		s.metrics.RecordAuthURLIssued(false)
		return "", "", fmt.Errorf("storing state: %w", err)
	}

	url := s.gateway.AuthorizationURL(state, idp.AuthURLOptions{
		OrganizationID: organizationID,
		Prompt:         prompt,
	})
	s.metrics.RecordAuthURLIssued(true)
	return url, state, nil
}

// CompleteLogin consumes the one-time state, redeems the code and establishes
// the session. The state is cleared before comparison so a replayed callback
// can never match twice. providerError is the provider's error parameter,
// checked only after the state holds up.
func (s *AuthService) CompleteLogin(c *gin.Context, code, state, providerError string) (*models.SessionRecord, error) {
	expected, err := session.ConsumeState(c)
	if err != nil {
		s.metrics.RecordOAuthCallback(false)
		return nil, fmt.Errorf("consuming state: %w", err)
	}
	if !session.StateEqual(expected, state) {
		s.metrics.RecordOAuthCallback(false)
		s.metrics.RecordLogin(false)
		return nil, ErrInvalidState
	}
	if providerError != "" {
		s.metrics.RecordOAuthCallback(false)
		s.metrics.RecordLogin(false)
		return nil, fmt.Errorf("%w: %s", ErrProvider, providerError)
	}
	if code == "" {
		s.metrics.RecordOAuthCallback(false)
		s.metrics.RecordLogin(false)
		return nil, ErrMissingCode
	}

	result, err := s.gateway.Exchange(c.Request.Context(), code)
	if err != nil {
		s.metrics.RecordOAuthCallback(false)
		s.metrics.RecordLogin(false)
		return nil, err
	}

	// The organization scope lives in the access token's claims, so those are
	// what the session keeps.
	claims, err := s.gateway.ValidateToken(c.Request.Context(), result.Bundle.AccessToken)
	if err != nil {
		s.metrics.RecordOAuthCallback(false)
		s.metrics.RecordLogin(false)
		return nil, err
	}

	record := buildSessionRecord(result, claims)
	if err := session.SetUser(c, record); err != nil {
		s.metrics.RecordOAuthCallback(false)
		s.metrics.RecordLogin(false)
		return nil, fmt.Errorf("storing session: %w", err)
	}

	s.metrics.RecordOAuthCallback(true)
	s.metrics.RecordLogin(true)
	return record, nil
}

// Organizations lists the user's memberships from the admin API, with the
// session's current organization flagged. Falls back to the ID token's
// membership claims when the admin API yields nothing.
func (s *AuthService) Organizations(ctx context.Context, record *models.SessionRecord) ([]models.OrganizationSummary, error) {
	orgs, err := s.admin.UserOrganizations(ctx, record.SubjectID)
	if err != nil {
		return nil, err
	}
	if len(orgs) == 0 {
		orgs = idp.OrganizationsFromClaims(record.Claims, s.gateway.OrgClaimKeys())
	}
	models.MarkCurrent(orgs, record.CurrentOrganizationID)
	return orgs, nil
}

// ClaimOrganizations lists memberships from the session's ID token claims,
// with the current organization flagged. Used right after callback, where the
// fresh claims are authoritative and a second provider round trip buys
// nothing.
func (s *AuthService) ClaimOrganizations(record *models.SessionRecord) []models.OrganizationSummary {
	orgs := idp.OrganizationsFromClaims(record.Claims, s.gateway.OrgClaimKeys())
	models.MarkCurrent(orgs, record.CurrentOrganizationID)
	return orgs
}

// SwitchOrganization starts a fresh authorization flow scoped to the target
// organization. The session's current organization only changes once the
// callback for this flow completes; asking the provider to prompt prevents a
// silent re-auth into the old organization.
func (s *AuthService) SwitchOrganization(c *gin.Context, organizationID string) (string, string, error) {
	if organizationID == "" {
		s.metrics.RecordOrgSwitch(false)
		return "", "", fmt.Errorf("%w: organization_id", ErrMissingParameter)
	}
	url, state, err := s.BeginLogin(c, organizationID, "select_account")
	s.metrics.RecordOrgSwitch(err == nil)
	return url, state, err
}

// Logout clears the session and returns the provider logout URL. The session
// flush is unconditional; the URL is only built when the session actually
// holds a token bundle, so a token-less logout succeeds with an empty URL.
func (s *AuthService) Logout(c *gin.Context) (string, error) {
	var logoutURL string
	if record, err := session.User(c); err == nil && record.Token.AccessToken != "" {
		logoutURL = s.gateway.LogoutURL(record.Token.IDToken)
	}

	err := session.Clear(c)
	s.metrics.RecordLogout()
	return logoutURL, err
}

// buildSessionRecord merges the token response's user object (camelCase
// fields) with the validated access token claims. The user object wins for
// identity fields; the claims carry the organization scope.
func buildSessionRecord(result *idp.ExchangeResult, claims map[string]any) *models.SessionRecord {
	user := result.User

	record := &models.SessionRecord{
		SubjectID:             firstNonEmpty(stringClaim(user, "id"), stringClaim(claims, "sub")),
		Email:                 firstNonEmpty(stringClaim(user, "email"), stringClaim(claims, "email")),
		GivenName:             firstNonEmpty(stringClaim(user, "givenName"), stringClaim(claims, "given_name")),
		FamilyName:            firstNonEmpty(stringClaim(user, "familyName"), stringClaim(claims, "family_name")),
		PreferredUsername:     firstNonEmpty(stringClaim(user, "username"), stringClaim(claims, "preferred_username")),
		Claims:                claims,
		CurrentOrganizationID: idp.OrganizationIDFromClaims(claims),
		Token:                 result.Bundle,
	}
	record.Name = deriveDisplayName(record, user)
	return record
}

// deriveDisplayName picks the friendliest available name. The provider's user
// object wins over ID token claims, and email is the last resort.
func deriveDisplayName(record *models.SessionRecord, user map[string]any) string {
	if name := stringClaim(user, "name"); name != "" {
		return name
	}
	if username := stringClaim(user, "username"); username != "" {
		return username
	}
	if full := strings.TrimSpace(record.GivenName + " " + record.FamilyName); full != "" {
		return full
	}
	if name := stringClaim(record.Claims, "name"); name != "" {
		return name
	}
	if record.PreferredUsername != "" {
		return record.PreferredUsername
	}
	return record.Email
}

func stringClaim(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
