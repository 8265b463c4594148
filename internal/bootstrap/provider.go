package bootstrap

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/appleboy/go-httpclient"

	"github.com/go-orgauth/orgauth/internal/config"
	"github.com/go-orgauth/orgauth/internal/connectors"
	"github.com/go-orgauth/orgauth/internal/idp"
	"github.com/go-orgauth/orgauth/internal/metrics"
)

// initializeProviderClients discovers the identity provider and builds the
// user-facing gateway plus the service-credential admin client. These calls
// sit on the request path, so the shared client gets a pooled transport and a
// hard timeout.
func initializeProviderClients(cfg *config.Config, recorder metrics.Recorder) (*idp.Gateway, *idp.AdminClient, error) {
	httpClient := createProviderHTTPClient(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	gateway, err := idp.New(ctx, idp.Config{
		IssuerURL:             cfg.IdPIssuerURL,
		ClientID:              cfg.IdPClientID,
		ClientSecret:          cfg.IdPClientSecret,
		RedirectURI:           cfg.IdPRedirectURI,
		Scopes:                cfg.IdPScopes,
		PostLogoutRedirectURI: cfg.PostLogoutRedirectURI(),
		OrgClaimKeys:          cfg.IdPOrgClaimKeys,
		HTTPClient:            httpClient,
	}, recorder)
	if err != nil {
		return nil, nil, fmt.Errorf("identity provider initialization failed: %w", err)
	}
	log.Printf("Identity provider discovered: issuer=%s", cfg.IdPIssuerURL)

	admin := idp.NewAdminClient(gateway, idp.AdminConfig{
		MaxRetries:    cfg.IdPAdminMaxRetries,
		RetryDelay:    cfg.IdPAdminRetryDelay,
		MaxRetryDelay: cfg.IdPAdminMaxRetryDelay,
		HTTPClient:    httpClient,
	}, recorder)

	return gateway, admin, nil
}

// initializeConnectorService builds the connector catalog and service
func initializeConnectorService(cfg *config.Config, admin *idp.AdminClient, recorder metrics.Recorder) *connectors.Service {
	catalog := connectors.NewCatalog(connectors.ConnectionNames{
		GitHub:    cfg.ConnectorGitHubConnection,
		Slack:     cfg.ConnectorSlackConnection,
		GoogleAds: cfg.ConnectorGoogleAdsConnection,
	})
	return connectors.NewService(catalog, admin, recorder)
}

// createProviderHTTPClient creates the HTTP client for provider requests with
// an optimized connection pool
func createProviderHTTPClient(cfg *config.Config) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	client, err := httpclient.NewClient(
		httpclient.WithTimeout(cfg.IdPTimeout),
		httpclient.WithTransport(transport),
	)
	if err != nil {
		log.Fatalf("Failed to create provider HTTP client: %v", err)
	}
	return client
}
