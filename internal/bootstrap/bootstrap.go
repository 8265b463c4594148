// Package bootstrap wires configuration, infrastructure, services and the
// HTTP layer together in phases, so a misconfigured process dies at startup
// instead of on the first request.
package bootstrap

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/go-orgauth/orgauth/internal/config"
	"github.com/go-orgauth/orgauth/internal/connectors"
	"github.com/go-orgauth/orgauth/internal/idp"
	"github.com/go-orgauth/orgauth/internal/metrics"
	"github.com/go-orgauth/orgauth/internal/services"
)

// Application holds all initialized components
type Application struct {
	Config *config.Config

	// Core infrastructure
	MetricsRecorder      metrics.Recorder
	RateLimitRedisClient *redis.Client

	// Provider clients
	Gateway     *idp.Gateway
	AdminClient *idp.AdminClient

	// Services
	AuthService      *services.AuthService
	TokenLifecycle   *services.TokenLifecycle
	ConnectorService *connectors.Service

	// HTTP
	HandlerSet handlerSet
	Router     *gin.Engine
	Server     *http.Server
}

// Run initializes and starts the application
func Run(cfg *config.Config) error {
	app := &Application{Config: cfg}

	// Phase 1: Validate configuration
	validateConfiguration(cfg)

	// Phase 2: Initialize infrastructure
	if err := app.initializeInfrastructure(); err != nil {
		return err
	}

	// Phase 3: Initialize provider clients and services
	if err := app.initializeBusinessLayer(); err != nil {
		return err
	}

	// Phase 4: Initialize HTTP layer
	app.initializeHTTPLayer()

	// Phase 5: Start server with graceful shutdown
	app.startWithGracefulShutdown()

	return nil
}

// initializeInfrastructure sets up metrics and Redis
func (app *Application) initializeInfrastructure() error {
	app.MetricsRecorder = initializeMetrics(app.Config)

	var err error
	app.RateLimitRedisClient, err = initializeRateLimitRedisClient(app.Config)
	if err != nil {
		return err
	}

	return nil
}

// initializeBusinessLayer sets up the provider gateway and services. The
// gateway runs OIDC discovery, so this phase needs the provider reachable.
func (app *Application) initializeBusinessLayer() error {
	var err error
	app.Gateway, app.AdminClient, err = initializeProviderClients(app.Config, app.MetricsRecorder)
	if err != nil {
		return err
	}

	app.AuthService = services.NewAuthService(app.Gateway, app.AdminClient, app.MetricsRecorder)
	app.TokenLifecycle = services.NewTokenLifecycle(app.Gateway, app.MetricsRecorder)
	app.ConnectorService = initializeConnectorService(app.Config, app.AdminClient, app.MetricsRecorder)

	return nil
}

// initializeHTTPLayer sets up handlers, router, and server
func (app *Application) initializeHTTPLayer() {
	app.HandlerSet = initializeHandlers(app.Config, app.AuthService, app.ConnectorService)

	app.Router = setupRouter(
		app.Config,
		app.HandlerSet,
		app.TokenLifecycle,
		app.MetricsRecorder,
		app.RateLimitRedisClient,
	)

	app.Server = createHTTPServer(app.Config, app.Router)
}

// startWithGracefulShutdown starts the server and handles graceful shutdown
func (app *Application) startWithGracefulShutdown() {
	m := newGracefulManager()

	addServerRunningJob(m, app.Server)
	addServerShutdownJob(m, app.Server)
	addRedisClientShutdownJob(m, app.RateLimitRedisClient)

	<-m.Done()
}
