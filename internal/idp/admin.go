package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/go-orgauth/orgauth/internal/metrics"
	"github.com/go-orgauth/orgauth/internal/models"
	"github.com/go-orgauth/orgauth/internal/retry"
)

// AdminConfig configures the service-credential client for the provider's
// admin API.
type AdminConfig struct {
	// BaseURL of the admin API. Defaults to the issuer URL.
	BaseURL string

	MaxRetries    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration

	// HTTPClient used for both token acquisition and API calls.
	HTTPClient *http.Client
}

// AdminClient calls the provider's admin API with client-credential tokens.
// Reads go through the retrying client; mutations are single-attempt because
// the provider does not guarantee they are idempotent.
type AdminClient struct {
	baseURL string
	reads   *retry.Client
	http    *http.Client
	tokens  oauth2.TokenSource
	metrics metrics.Recorder
}

// NewAdminClient builds an admin client against the gateway's provider.
func NewAdminClient(g *Gateway, cfg AdminConfig, recorder metrics.Recorder) *AdminClient {
	if recorder == nil {
		recorder = metrics.NewNoopMetrics()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = g.cfg.IssuerURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	creds := &clientcredentials.Config{
		ClientID:     g.cfg.ClientID,
		ClientSecret: g.cfg.ClientSecret,
		TokenURL:     g.TokenEndpoint(),
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)

	retryOpts := []retry.Option{retry.WithHTTPClient(httpClient)}
	if cfg.MaxRetries > 0 {
		retryOpts = append(retryOpts, retry.WithMaxRetries(cfg.MaxRetries))
	}
	if cfg.RetryDelay > 0 {
		retryOpts = append(retryOpts, retry.WithInitialRetryDelay(cfg.RetryDelay))
	}
	if cfg.MaxRetryDelay > 0 {
		retryOpts = append(retryOpts, retry.WithMaxRetryDelay(cfg.MaxRetryDelay))
	}

	return &AdminClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		reads:   retry.NewClient(retryOpts...),
		http:    httpClient,
		tokens:  creds.TokenSource(tokenCtx),
		metrics: recorder,
	}
}

// User fetches the raw user record by provider user id.
func (a *AdminClient) User(ctx context.Context, userID string) (map[string]any, error) {
	body, err := a.get(ctx, "user", "/api/v1/users/"+url.PathEscape(userID))
	if err != nil {
		return nil, err
	}
	return unwrap(body, "user"), nil
}

// Organization fetches one organization and maps it to a summary.
func (a *AdminClient) Organization(ctx context.Context, orgID string) (models.OrganizationSummary, error) {
	body, err := a.get(ctx, "organization", "/api/v1/organizations/"+url.PathEscape(orgID))
	if err != nil {
		return models.OrganizationSummary{}, err
	}
	org := unwrap(body, "organization")
	name := stringField(org, "display_name", "name")
	if name == "" {
		name = orgID
	}
	id := stringField(org, "id")
	if id == "" {
		id = orgID
	}
	return models.OrganizationSummary{ID: id, DisplayName: name}, nil
}

// UserOrganizations resolves the user's organization list from the admin API.
// Membership records are preferred; a plain organizations array on the user
// record is the fallback. Per-organization detail lookups are best effort, so
// one slow or failing organization does not sink the whole list.
func (a *AdminClient) UserOrganizations(ctx context.Context, userID string) ([]models.OrganizationSummary, error) {
	user, err := a.User(ctx, userID)
	if err != nil {
		return nil, err
	}

	orgs := a.organizationsFromMemberships(ctx, user)
	if len(orgs) > 0 {
		return orgs, nil
	}
	return a.organizationsFromUserRecord(ctx, user), nil
}

func (a *AdminClient) organizationsFromMemberships(ctx context.Context, user map[string]any) []models.OrganizationSummary {
	memberships, ok := user["organization_memberships"].([]any)
	if !ok || len(memberships) == 0 {
		memberships, _ = user["memberships"].([]any)
	}

	var orgs []models.OrganizationSummary
	for _, item := range memberships {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		orgID := stringField(m, "organization_id", "org_id")
		if orgID == "" {
			continue
		}
		if org, err := a.Organization(ctx, orgID); err == nil {
			orgs = append(orgs, org)
			continue
		}
		name := stringField(m, "organization_name")
		if name == "" {
			name = orgID
		}
		orgs = append(orgs, models.OrganizationSummary{ID: orgID, DisplayName: name})
	}
	return orgs
}

func (a *AdminClient) organizationsFromUserRecord(ctx context.Context, user map[string]any) []models.OrganizationSummary {
	raw, _ := user["organizations"].([]any)

	var orgs []models.OrganizationSummary
	for _, item := range raw {
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
			if v == "" {
				continue
			}
			if org, err := a.Organization(ctx, v); err == nil {
				orgs = append(orgs, org)
			} else {
				orgs = append(orgs, models.OrganizationSummary{ID: v, DisplayName: v})
			}
		}
	}
	return orgs
}

// GetOrCreateConnectedAccount returns the user's account on the given
// connection, creating a pending one if none exists yet. The provider treats
// this POST as get-or-create keyed on the identifier.
func (a *AdminClient) GetOrCreateConnectedAccount(ctx context.Context, connectionName, identifier string) (*models.ConnectedAccount, error) {
	path := "/api/v1/connections/" + url.PathEscape(connectionName) + "/accounts"
	body, err := a.mutate(ctx, "connected_account_create", http.MethodPost, path, map[string]any{
		"identifier": identifier,
	})
	if err != nil {
		return nil, err
	}
	acct := unwrap(body, "connected_account")
	return &models.ConnectedAccount{
		ID:     stringField(acct, "id"),
		Status: stringField(acct, "status"),
	}, nil
}

// ConnectedAccountLink requests a one-time authorization link for the user to
// grant the connection. redirectURL is optional.
func (a *AdminClient) ConnectedAccountLink(ctx context.Context, connectionName, identifier, redirectURL string) (string, error) {
	path := "/api/v1/connections/" + url.PathEscape(connectionName) +
		"/accounts/" + url.PathEscape(identifier) + "/authorize"
	payload := map[string]any{}
	if redirectURL != "" {
		payload["redirect_uri"] = redirectURL
	}
	body, err := a.mutate(ctx, "connected_account_authorize", http.MethodPost, path, payload)
	if err != nil {
		return "", err
	}
	link := stringField(body, "link")
	if link == "" {
		return "", fmt.Errorf("%w: authorize response has no link", ErrAdminAPI)
	}
	return link, nil
}

// DeleteConnectedAccount revokes the user's account on the connection.
func (a *AdminClient) DeleteConnectedAccount(ctx context.Context, connectionName, identifier string) error {
	path := "/api/v1/connections/" + url.PathEscape(connectionName) +
		"/accounts/" + url.PathEscape(identifier)
	_, err := a.mutate(ctx, "connected_account_delete", http.MethodDelete, path, nil)
	return err
}

func (a *AdminClient) get(ctx context.Context, operation, path string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAdminAPI, err)
	}
	if err := a.authorize(req); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := a.reads.Do(ctx, req)
	a.metrics.RecordProviderRequest(operation, time.Since(start), err == nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAdminAPI, err)
	}
	return decodeResponse(resp)
}

func (a *AdminClient) mutate(ctx context.Context, operation, method, path string, payload any) (map[string]any, error) {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAdminAPI, err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAdminAPI, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := a.authorize(req); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := a.http.Do(req)
	a.metrics.RecordProviderRequest(operation, time.Since(start), err == nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAdminAPI, err)
	}
	return decodeResponse(resp)
}

func (a *AdminClient) authorize(req *http.Request) error {
	tok, err := a.tokens.Token()
	if err != nil {
		return fmt.Errorf("%w: service token: %v", ErrAdminAPI, err)
	}
	tok.SetAuthHeader(req)
	return nil
}

func decodeResponse(resp *http.Response) (map[string]any, error) {
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrAdminAPI, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrAdminAPI, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	body := map[string]any{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrAdminAPI, err)
	}
	return body, nil
}

// unwrap returns the nested object under key when present, otherwise the
// object itself. The admin API wraps singular resources inconsistently.
func unwrap(body map[string]any, key string) map[string]any {
	if nested, ok := body[key].(map[string]any); ok {
		return nested
	}
	return body
}
