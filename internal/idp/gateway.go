package idp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/go-orgauth/orgauth/internal/metrics"
	"github.com/go-orgauth/orgauth/internal/models"
)

// Config carries everything the gateway needs to talk to one OIDC provider.
type Config struct {
	IssuerURL             string
	ClientID              string
	ClientSecret          string
	RedirectURI           string
	Scopes                []string
	PostLogoutRedirectURI string

	// OrgClaimKeys overrides the default organization-list claim names.
	OrgClaimKeys []string

	// HTTPClient is used for discovery, token endpoint calls and JWKS fetches.
	// Defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// AuthURLOptions are the per-request knobs on the authorization URL.
type AuthURLOptions struct {
	// OrganizationID scopes the login to one organization.
	OrganizationID string
	// Prompt is passed through as the OIDC prompt parameter
	// (e.g. "select_account" when switching organizations).
	Prompt string
}

// ExchangeResult is the outcome of redeeming an authorization code.
type ExchangeResult struct {
	Bundle models.TokenBundle
	// Claims are the verified ID token claims.
	Claims map[string]any
	// User is the provider's optional user object from the token response.
	User map[string]any
}

// Gateway wraps the provider's OIDC surface: authorization URLs, code
// exchange, refresh, access token validation and the logout URL.
type Gateway struct {
	cfg                Config
	oauth              *oauth2.Config
	idVerifier         *oidc.IDTokenVerifier
	accessVerifier     *oidc.IDTokenVerifier
	endSessionEndpoint string
	orgClaimKeys       []string
	metrics            metrics.Recorder
}

// New discovers the provider's endpoints and builds a gateway. Discovery
// failure is fatal; the caller should treat it as a startup error.
func New(ctx context.Context, cfg Config, recorder metrics.Recorder) (*Gateway, error) {
	if cfg.IssuerURL == "" {
		return nil, errors.New("idp: issuer URL is required")
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("idp: client credentials are required")
	}
	if recorder == nil {
		recorder = metrics.NewNoopMetrics()
	}

	if cfg.HTTPClient != nil {
		ctx = oidc.ClientContext(ctx, cfg.HTTPClient)
	}
	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("idp: discovery failed for %s: %w", cfg.IssuerURL, err)
	}

	// end_session_endpoint is optional in discovery metadata; fall back to
	// the issuer's conventional logout path.
	var extra struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}
	_ = provider.Claims(&extra)
	endSession := extra.EndSessionEndpoint
	if endSession == "" {
		endSession = strings.TrimSuffix(cfg.IssuerURL, "/") + "/oidc/logout"
	}

	orgClaimKeys := cfg.OrgClaimKeys
	if len(orgClaimKeys) == 0 {
		orgClaimKeys = defaultOrganizationClaimKeys
	}

	return &Gateway{
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
		},
		idVerifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		// Access tokens carry the resource audience, not the client id.
		accessVerifier:     provider.Verifier(&oidc.Config{SkipClientIDCheck: true}),
		endSessionEndpoint: endSession,
		orgClaimKeys:       orgClaimKeys,
		metrics:            recorder,
	}, nil
}

// TokenEndpoint exposes the discovered token URL for service-credential use.
func (g *Gateway) TokenEndpoint() string {
	return g.oauth.Endpoint.TokenURL
}

// OrgClaimKeys returns the organization-list claim names in lookup order.
func (g *Gateway) OrgClaimKeys() []string {
	return g.orgClaimKeys
}

// AuthorizationURL builds the provider authorization URL for the given
// one-time state.
func (g *Gateway) AuthorizationURL(state string, opts AuthURLOptions) string {
	params := []oauth2.AuthCodeOption{}
	if opts.OrganizationID != "" {
		params = append(params, oauth2.SetAuthURLParam("organization_id", opts.OrganizationID))
	}
	if opts.Prompt != "" {
		params = append(params, oauth2.SetAuthURLParam("prompt", opts.Prompt))
	}
	return g.oauth.AuthCodeURL(state, params...)
}

// Exchange redeems an authorization code for tokens and verifies the ID token.
func (g *Gateway) Exchange(ctx context.Context, code string) (*ExchangeResult, error) {
	start := time.Now()
	tok, err := g.oauth.Exchange(g.clientContext(ctx), code)
	g.metrics.RecordProviderRequest("exchange", time.Since(start), err == nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodeExchange, err)
	}

	bundle := bundleFromToken(tok, "", time.Now())
	if bundle.IDToken == "" {
		return nil, fmt.Errorf("%w: token response has no id_token", ErrCodeExchange)
	}

	idToken, err := g.idVerifier.Verify(ctx, bundle.IDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: id token rejected: %v", ErrCodeExchange, err)
	}
	claims := map[string]any{}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: id token claims: %v", ErrCodeExchange, err)
	}

	user, _ := tok.Extra("user").(map[string]any)

	return &ExchangeResult{Bundle: bundle, Claims: claims, User: user}, nil
}

// Refresh exchanges the refresh token in the bundle for fresh tokens. The
// provider may omit the refresh token or id token from the response when it
// does not rotate them; in that case the previous values carry over.
func (g *Gateway) Refresh(ctx context.Context, bundle models.TokenBundle) (models.TokenBundle, error) {
	if bundle.RefreshToken == "" {
		return models.TokenBundle{}, fmt.Errorf("%w: no refresh token", ErrTokenRefresh)
	}

	src := g.oauth.TokenSource(g.clientContext(ctx), &oauth2.Token{
		RefreshToken: bundle.RefreshToken,
		// Force the token source to refresh rather than reuse.
		Expiry: time.Now().Add(-time.Minute),
	})
	start := time.Now()
	tok, err := src.Token()
	g.metrics.RecordProviderRequest("refresh", time.Since(start), err == nil)
	g.metrics.RecordTokenRefresh(err == nil)
	if err != nil {
		return models.TokenBundle{}, fmt.Errorf("%w: %v", ErrTokenRefresh, err)
	}

	next := bundleFromToken(tok, bundle.IDToken, time.Now())
	if next.RefreshToken == "" {
		next.RefreshToken = bundle.RefreshToken
	}
	return next, nil
}

// ValidateToken verifies the access token's signature and expiry against the
// provider's JWKS and returns its claims.
func (g *Gateway) ValidateToken(ctx context.Context, accessToken string) (map[string]any, error) {
	start := time.Now()
	tok, err := g.accessVerifier.Verify(ctx, accessToken)
	duration := time.Since(start)
	if err != nil {
		g.metrics.RecordTokenValidation("invalid", duration)
		return nil, fmt.Errorf("%w: %v", ErrTokenValidation, err)
	}
	claims := map[string]any{}
	if err := tok.Claims(&claims); err != nil {
		g.metrics.RecordTokenValidation("invalid", duration)
		return nil, fmt.Errorf("%w: claims: %v", ErrTokenValidation, err)
	}
	g.metrics.RecordTokenValidation("valid", duration)
	return claims, nil
}

// LogoutURL builds the provider logout URL. The id token hint and post-logout
// redirect are both optional at the provider, but passing them gives the
// cleanest sign-out round trip.
func (g *Gateway) LogoutURL(idTokenHint string) string {
	q := url.Values{}
	if idTokenHint != "" {
		q.Set("id_token_hint", idTokenHint)
	}
	if g.cfg.PostLogoutRedirectURI != "" {
		q.Set("post_logout_redirect_uri", g.cfg.PostLogoutRedirectURI)
	}
	if len(q) == 0 {
		return g.endSessionEndpoint
	}
	return g.endSessionEndpoint + "?" + q.Encode()
}

func (g *Gateway) clientContext(ctx context.Context) context.Context {
	if g.cfg.HTTPClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, g.cfg.HTTPClient)
	}
	return ctx
}

// bundleFromToken maps an oauth2 token response into a TokenBundle. The
// fallback id token is used when the response does not carry one.
func bundleFromToken(tok *oauth2.Token, fallbackIDToken string, now time.Time) models.TokenBundle {
	idToken, _ := tok.Extra("id_token").(string)
	if idToken == "" {
		idToken = fallbackIDToken
	}
	return models.NewTokenBundle(tok.AccessToken, tok.RefreshToken, idToken, expiresIn(tok, now), now)
}

// expiresIn recovers the expires_in seconds from the token response,
// tolerating the numeric types different JSON decoders produce.
func expiresIn(tok *oauth2.Token, now time.Time) int {
	switch v := tok.Extra("expires_in").(type) {
	case float64:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	}
	if !tok.Expiry.IsZero() {
		if secs := int(tok.Expiry.Sub(now).Seconds()); secs > 0 {
			return secs
		}
	}
	return 0
}
