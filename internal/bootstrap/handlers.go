package bootstrap

import (
	"github.com/go-orgauth/orgauth/internal/config"
	"github.com/go-orgauth/orgauth/internal/connectors"
	"github.com/go-orgauth/orgauth/internal/handlers"
	"github.com/go-orgauth/orgauth/internal/services"
)

// handlerSet groups the HTTP handlers for route registration
type handlerSet struct {
	Auth      *handlers.AuthHandler
	Connector *handlers.ConnectorHandler
}

// initializeHandlers creates all HTTP handlers
func initializeHandlers(
	cfg *config.Config,
	authService *services.AuthService,
	connectorService *connectors.Service,
) handlerSet {
	return handlerSet{
		Auth:      handlers.NewAuthHandler(authService),
		Connector: handlers.NewConnectorHandler(connectorService, cfg.BaseURL),
	}
}
