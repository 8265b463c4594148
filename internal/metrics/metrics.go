package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is the metrics recording interface used across services
type Recorder interface {
	RecordAuthURLIssued(success bool)
	RecordOAuthCallback(success bool)
	RecordTokenRefresh(success bool)
	RecordTokenValidation(result string, duration time.Duration)
	RecordLogin(success bool)
	RecordLogout()
	RecordOrgSwitch(success bool)
	RecordProviderRequest(operation string, duration time.Duration, success bool)
	RecordConnectorStatus(connector string, connected bool)
	RecordConnectorDisconnect(connector string, success bool)
}

// Ensure Metrics implements Recorder interface at compile time
var _ Recorder = (*Metrics)(nil)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Authentication metrics
	AuthURLsIssuedTotal *prometheus.CounterVec
	OAuthCallbackTotal  *prometheus.CounterVec
	AuthLoginTotal      *prometheus.CounterVec
	AuthLogoutTotal     prometheus.Counter
	OrgSwitchTotal      *prometheus.CounterVec

	// Token metrics
	TokensRefreshedTotal    *prometheus.CounterVec
	TokenValidationTotal    *prometheus.CounterVec
	TokenValidationDuration prometheus.Histogram

	// Session metrics
	SessionsActive       prometheus.Gauge
	SessionsCreatedTotal prometheus.Counter

	// Identity provider metrics
	ProviderRequestsTotal   *prometheus.CounterVec
	ProviderRequestDuration *prometheus.HistogramVec

	// Connector metrics
	ConnectorStatusTotal     *prometheus.CounterVec
	ConnectorDisconnectTotal *prometheus.CounterVec

	// HTTP request metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Init initializes metrics based on enabled flag
// If enabled=true, returns Prometheus-based Metrics
// If enabled=false, returns NoopMetrics (zero overhead)
// Uses sync.Once to ensure Prometheus metrics are only registered once
func Init(enabled bool) Recorder {
	if !enabled {
		return NewNoopMetrics()
	}

	once.Do(func() {
		defaultMetrics = initMetrics()
	})
	return defaultMetrics
}

// initMetrics creates and registers all Prometheus metrics
func initMetrics() *Metrics {
	return &Metrics{
		AuthURLsIssuedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_urls_issued_total",
				Help: "Total number of authorization URLs issued",
			},
			[]string{"result"}, // success, error
		),
		OAuthCallbackTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_oauth_callback_total",
				Help: "Total number of OAuth callback completions",
			},
			[]string{"result"}, // success, error
		),
		AuthLoginTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_login_total",
				Help: "Total number of login completions",
			},
			[]string{"result"}, // success, failure
		),
		AuthLogoutTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "auth_logout_total",
				Help: "Total number of logouts",
			},
		),
		OrgSwitchTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_org_switch_total",
				Help: "Total number of organization switch initiations",
			},
			[]string{"result"}, // success, error
		),
		TokensRefreshedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_tokens_refreshed_total",
				Help: "Total number of token refresh attempts",
			},
			[]string{"result"}, // success, error
		),
		TokenValidationTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_token_validation_total",
				Help: "Total number of token validations",
			},
			[]string{"result"}, // valid, invalid
		),
		TokenValidationDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "auth_token_validation_duration_seconds",
				Help:    "Time taken to validate tokens",
				Buckets: prometheus.DefBuckets,
			},
		),
		SessionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "auth_sessions_active",
				Help: "Current number of active sessions",
			},
		),
		SessionsCreatedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "auth_sessions_created_total",
				Help: "Total number of sessions created",
			},
		),
		ProviderRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "idp_requests_total",
				Help: "Total number of identity provider requests",
			},
			[]string{"operation", "result"},
		),
		ProviderRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "idp_request_duration_seconds",
				Help:    "Identity provider request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		ConnectorStatusTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "connector_status_checks_total",
				Help: "Total number of connector status checks",
			},
			[]string{"connector", "connected"},
		),
		ConnectorDisconnectTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "connector_disconnects_total",
				Help: "Total number of connector disconnect attempts",
			},
			[]string{"connector", "result"},
		),
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Current number of in-flight HTTP requests",
			},
		),
	}
}

const (
	resultSuccess = "success"
	resultError   = "error"
	resultFailure = "failure"
)

func successResult(success bool) string {
	if success {
		return resultSuccess
	}
	return resultError
}

// RecordAuthURLIssued records an authorization URL issuance
func (m *Metrics) RecordAuthURLIssued(success bool) {
	m.AuthURLsIssuedTotal.WithLabelValues(successResult(success)).Inc()
}

// RecordOAuthCallback records an OAuth callback completion
func (m *Metrics) RecordOAuthCallback(success bool) {
	m.OAuthCallbackTotal.WithLabelValues(successResult(success)).Inc()
}

// RecordLogin records a login completion
func (m *Metrics) RecordLogin(success bool) {
	result := resultSuccess
	if !success {
		result = resultFailure
	}
	m.AuthLoginTotal.WithLabelValues(result).Inc()

	if success {
		m.SessionsCreatedTotal.Inc()
		m.SessionsActive.Inc()
	}
}

// RecordLogout records a logout
func (m *Metrics) RecordLogout() {
	m.AuthLogoutTotal.Inc()
	m.SessionsActive.Dec()
}

// RecordOrgSwitch records an organization switch initiation
func (m *Metrics) RecordOrgSwitch(success bool) {
	m.OrgSwitchTotal.WithLabelValues(successResult(success)).Inc()
}

// RecordTokenRefresh records a token refresh attempt
func (m *Metrics) RecordTokenRefresh(success bool) {
	m.TokensRefreshedTotal.WithLabelValues(successResult(success)).Inc()
}

// RecordTokenValidation records a token validation
func (m *Metrics) RecordTokenValidation(result string, duration time.Duration) {
	// result: valid, invalid
	m.TokenValidationTotal.WithLabelValues(result).Inc()
	m.TokenValidationDuration.Observe(duration.Seconds())
}

// RecordProviderRequest records an outbound identity provider call
func (m *Metrics) RecordProviderRequest(operation string, duration time.Duration, success bool) {
	m.ProviderRequestsTotal.WithLabelValues(operation, successResult(success)).Inc()
	m.ProviderRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordConnectorStatus records a connector status check
func (m *Metrics) RecordConnectorStatus(connector string, connected bool) {
	label := "false"
	if connected {
		label = "true"
	}
	m.ConnectorStatusTotal.WithLabelValues(connector, label).Inc()
}

// RecordConnectorDisconnect records a connector disconnect attempt
func (m *Metrics) RecordConnectorDisconnect(connector string, success bool) {
	m.ConnectorDisconnectTotal.WithLabelValues(connector, successResult(success)).Inc()
}
