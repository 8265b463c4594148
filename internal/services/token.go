package services

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/go-orgauth/orgauth/internal/idp"
	"github.com/go-orgauth/orgauth/internal/metrics"
	"github.com/go-orgauth/orgauth/internal/models"
	"github.com/go-orgauth/orgauth/internal/session"
)

// RefreshBuffer is how far ahead of expiry a token is refreshed, absorbing
// clock skew and request latency to the provider.
const RefreshBuffer = time.Minute

// TokenLifecycle keeps session token bundles fresh. Refresh is attempted once
// per request and failure is silent: the stale bundle stays in place and the
// provider rejects it downstream, which surfaces as a 401 on the next
// protected call.
type TokenLifecycle struct {
	gateway *idp.Gateway
	locks   *session.KeyedMutex
	metrics metrics.Recorder
	now     func() time.Time
}

// NewTokenLifecycle builds the lifecycle manager.
func NewTokenLifecycle(gateway *idp.Gateway, recorder metrics.Recorder) *TokenLifecycle {
	if recorder == nil {
		recorder = metrics.NewNoopMetrics()
	}
	return &TokenLifecycle{
		gateway: gateway,
		locks:   session.NewKeyedMutex(),
		metrics: recorder,
		now:     time.Now,
	}
}

// EnsureFresh refreshes the record's token bundle when it expires within
// RefreshBuffer, writing the new bundle back to both the record and the
// session. Concurrent requests for one subject serialize on a per-subject
// lock so provider calls do not overlap; each request still decides from its
// own session snapshot, so concurrent stale requests each refresh and the
// last write wins.
//
// The returned error is advisory; callers proceed with the existing bundle
// either way.
func (t *TokenLifecycle) EnsureFresh(c *gin.Context, record *models.SessionRecord) (bool, error) {
	if !record.Token.ExpiresWithin(RefreshBuffer, t.now()) {
		return false, nil
	}
	if record.Token.RefreshToken == "" {
		return false, nil
	}

	t.locks.Lock(record.SubjectID)
	defer t.locks.Unlock(record.SubjectID)

	bundle, err := t.gateway.Refresh(c.Request.Context(), record.Token)
	if err != nil {
		return false, err
	}

	record.Token = bundle
	if err := session.SetUser(c, record); err != nil {
		return false, err
	}
	return true, nil
}
