package connectors

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-orgauth/orgauth/internal/idp"
	"github.com/go-orgauth/orgauth/internal/metrics"
	"github.com/go-orgauth/orgauth/internal/models"
)

// Service performs connected-account operations against the provider's admin
// API. The identifier is the session user's subject id; accounts are scoped to
// the user, not the organization.
type Service struct {
	catalog *Catalog
	admin   *idp.AdminClient
	metrics metrics.Recorder
}

// NewService builds the connector service.
func NewService(catalog *Catalog, admin *idp.AdminClient, recorder metrics.Recorder) *Service {
	if recorder == nil {
		recorder = metrics.NewNoopMetrics()
	}
	return &Service{catalog: catalog, admin: admin, metrics: recorder}
}

// Catalog returns the underlying descriptor catalog.
func (s *Service) Catalog() *Catalog {
	return s.catalog
}

// AuthorizationLink returns a one-time URL where the user grants the
// connector. The account is created in pending state first when absent.
func (s *Service) AuthorizationLink(ctx context.Context, key, identifier, redirectURL string) (string, error) {
	desc, ok := s.catalog.Lookup(key)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedConnector, key)
	}
	if _, err := s.admin.GetOrCreateConnectedAccount(ctx, desc.ConnectionName, identifier); err != nil {
		return "", err
	}
	return s.admin.ConnectedAccountLink(ctx, desc.ConnectionName, identifier, redirectURL)
}

// Status reports one connector's state for the user. Provider failures are
// folded into the result rather than returned, so a status listing degrades
// per connector instead of failing whole.
func (s *Service) Status(ctx context.Context, key, identifier string) (models.ConnectedAccountStatus, error) {
	desc, ok := s.catalog.Lookup(key)
	if !ok {
		return models.ConnectedAccountStatus{}, fmt.Errorf("%w: %s", ErrUnsupportedConnector, key)
	}
	return s.statusFor(ctx, desc, identifier), nil
}

// ListStatuses reports every catalog connector's state for the user, in
// catalog order. Lookups fan out concurrently; each failure degrades only its
// own entry.
func (s *Service) ListStatuses(ctx context.Context, identifier string) []models.ConnectedAccountStatus {
	entries := s.catalog.Entries()
	statuses := make([]models.ConnectedAccountStatus, len(entries))

	var wg sync.WaitGroup
	for i, desc := range entries {
		wg.Add(1)
		go func(i int, desc models.ConnectorDescriptor) {
			defer wg.Done()
			statuses[i] = s.statusFor(ctx, desc, identifier)
		}(i, desc)
	}
	wg.Wait()
	return statuses
}

// Disconnect revokes the user's account on the connector. Unlike status
// checks, failures here propagate: the caller must not report a grant as
// revoked when the provider still holds it.
func (s *Service) Disconnect(ctx context.Context, key, identifier string) error {
	desc, ok := s.catalog.Lookup(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedConnector, key)
	}
	err := s.admin.DeleteConnectedAccount(ctx, desc.ConnectionName, identifier)
	s.metrics.RecordConnectorDisconnect(key, err == nil)
	return err
}

func (s *Service) statusFor(ctx context.Context, desc models.ConnectorDescriptor, identifier string) models.ConnectedAccountStatus {
	status := models.ConnectedAccountStatus{
		Connector:   desc.Key,
		DisplayName: desc.DisplayName,
		Description: desc.Description,
	}

	acct, err := s.admin.GetOrCreateConnectedAccount(ctx, desc.ConnectionName, identifier)
	if err != nil {
		status.Status = models.AccountStatusError
		status.Error = err.Error()
		s.metrics.RecordConnectorStatus(desc.Key, false)
		return status
	}

	status.AccountID = acct.ID
	status.Status = acct.Status
	status.Connected = acct.Status == models.AccountStatusActive
	s.metrics.RecordConnectorStatus(desc.Key, status.Connected)
	return status
}
