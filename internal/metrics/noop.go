package metrics

import "time"

// NoopMetrics is a no-operation implementation of Recorder
// All methods are empty and do nothing, providing zero overhead when metrics are disabled
type NoopMetrics struct{}

// Ensure NoopMetrics implements Recorder interface at compile time
var _ Recorder = (*NoopMetrics)(nil)

// NewNoopMetrics creates a new no-operation metrics recorder
func NewNoopMetrics() Recorder {
	return &NoopMetrics{}
}

func (n *NoopMetrics) RecordAuthURLIssued(success bool)                          {}
func (n *NoopMetrics) RecordOAuthCallback(success bool)                          {}
func (n *NoopMetrics) RecordTokenRefresh(success bool)                           {}
func (n *NoopMetrics) RecordTokenValidation(result string, d time.Duration)      {}
func (n *NoopMetrics) RecordLogin(success bool)                                  {}
func (n *NoopMetrics) RecordLogout()                                             {}
func (n *NoopMetrics) RecordOrgSwitch(success bool)                              {}
func (n *NoopMetrics) RecordConnectorStatus(connector string, connected bool)    {}
func (n *NoopMetrics) RecordConnectorDisconnect(connector string, success bool)  {}
func (n *NoopMetrics) RecordProviderRequest(op string, d time.Duration, ok bool) {}
