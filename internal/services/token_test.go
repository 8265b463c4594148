package services

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-orgauth/orgauth/internal/models"
	"github.com/go-orgauth/orgauth/internal/session"
)

// bundleExpiringIn builds a bundle that expires the given duration from now.
func bundleExpiringIn(d time.Duration) models.TokenBundle {
	return models.NewTokenBundle("stale-access", "refresh-1", "id-token-1", int(d.Seconds()), time.Now())
}

func runEnsureFresh(t *testing.T, env *authTestEnv, lifecycle *TokenLifecycle, bundle models.TokenBundle) (*models.SessionRecord, bool, error) {
	t.Helper()

	var (
		record    *models.SessionRecord
		refreshed bool
		ensureErr error
	)
	env.router.GET("/refresh", func(c *gin.Context) {
		record = &models.SessionRecord{SubjectID: "usr_1", Token: bundle}
		require.NoError(t, session.SetUser(c, record))
		refreshed, ensureErr = lifecycle.EnsureFresh(c, record)
		c.Status(http.StatusOK)
	})
	env.router.GET("/stored", func(c *gin.Context) {
		stored, err := session.User(c)
		require.NoError(t, err)
		c.String(http.StatusOK, stored.Token.AccessToken)
	})

	w := env.do("/refresh", nil)
	require.Equal(t, http.StatusOK, w.Code)

	stored := env.do("/stored", w)
	t.Logf("stored access token after refresh pass: %s", stored.Body.String())

	return record, refreshed, ensureErr
}

func TestEnsureFreshSkipsDistantExpiry(t *testing.T) {
	env := newAuthTestEnv(t)
	lifecycle := NewTokenLifecycle(env.gateway, nil)

	record, refreshed, err := runEnsureFresh(t, env, lifecycle, bundleExpiringIn(2*time.Hour))
	require.NoError(t, err)

	assert.False(t, refreshed)
	assert.Equal(t, "stale-access", record.Token.AccessToken)
	assert.Empty(t, env.srv.TokenRequests)
}

func TestEnsureFreshRefreshesNearExpiry(t *testing.T) {
	env := newAuthTestEnv(t)
	lifecycle := NewTokenLifecycle(env.gateway, nil)

	record, refreshed, err := runEnsureFresh(t, env, lifecycle, bundleExpiringIn(30*time.Second))
	require.NoError(t, err)

	assert.True(t, refreshed)
	assert.Equal(t, "refreshed-access-token", record.Token.AccessToken)
	// Unrotated tokens carry over.
	assert.Equal(t, "refresh-1", record.Token.RefreshToken)
	assert.Equal(t, "id-token-1", record.Token.IDToken)
	require.Len(t, env.srv.TokenRequests, 1)
	assert.Equal(t, "refresh_token", env.srv.TokenRequests[0].Get("grant_type"))
}

func TestEnsureFreshRefreshesAtBufferBoundary(t *testing.T) {
	env := newAuthTestEnv(t)
	lifecycle := NewTokenLifecycle(env.gateway, nil)

	// Expiring in exactly the buffer window still triggers a refresh.
	_, refreshed, err := runEnsureFresh(t, env, lifecycle, bundleExpiringIn(RefreshBuffer))
	require.NoError(t, err)
	assert.True(t, refreshed)
}

func TestEnsureFreshSilentFailureKeepsBundle(t *testing.T) {
	env := newAuthTestEnv(t)
	env.srv.RefreshStatus = http.StatusBadRequest
	lifecycle := NewTokenLifecycle(env.gateway, nil)

	record, refreshed, err := runEnsureFresh(t, env, lifecycle, bundleExpiringIn(30*time.Second))

	assert.Error(t, err)
	assert.False(t, refreshed)
	// The stale bundle stays; the session is not evicted.
	assert.Equal(t, "stale-access", record.Token.AccessToken)
	assert.Equal(t, "refresh-1", record.Token.RefreshToken)
}

func TestEnsureFreshSkipsWithoutRefreshToken(t *testing.T) {
	env := newAuthTestEnv(t)
	lifecycle := NewTokenLifecycle(env.gateway, nil)

	bundle := models.NewTokenBundle("stale-access", "", "", 30, time.Now())
	_, refreshed, err := runEnsureFresh(t, env, lifecycle, bundle)
	require.NoError(t, err)

	assert.False(t, refreshed)
	assert.Empty(t, env.srv.TokenRequests)
}

func TestEnsureFreshRefreshesOnceAcrossRequests(t *testing.T) {
	env := newAuthTestEnv(t)
	lifecycle := NewTokenLifecycle(env.gateway, nil)

	env.router.GET("/login", func(c *gin.Context) {
		require.NoError(t, session.SetUser(c, &models.SessionRecord{
			SubjectID: "usr_1",
			Token:     bundleExpiringIn(30 * time.Second),
		}))
		c.Status(http.StatusOK)
	})
	env.router.GET("/refresh", func(c *gin.Context) {
		record, err := session.User(c)
		require.NoError(t, err)
		_, _ = lifecycle.EnsureFresh(c, record)
		c.Status(http.StatusOK)
	})

	login := env.do("/login", nil)
	first := env.do("/refresh", login)

	// The second request carries the refreshed session, so the lifecycle
	// finds a fresh bundle and stays home.
	env.do("/refresh", first)
	assert.Len(t, env.srv.TokenRequests, 1)
}

func TestEnsureFreshConcurrentSameSubject(t *testing.T) {
	env := newAuthTestEnv(t)
	lifecycle := NewTokenLifecycle(env.gateway, nil)

	env.router.GET("/refresh", func(c *gin.Context) {
		record := &models.SessionRecord{SubjectID: "usr_1", Token: bundleExpiringIn(30 * time.Second)}
		require.NoError(t, session.SetUser(c, record))
		_, err := lifecycle.EnsureFresh(c, record)
		require.NoError(t, err)
		c.Status(http.StatusOK)
	})

	done := make(chan struct{}, 4)
	for i := 0; i < 4; i++ {
		go func() {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodGet, "/refresh", nil)
			env.router.ServeHTTP(w, req)
			done <- struct{}{}
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}
	// Each request carries its own cookie session, so each sees a stale
	// bundle; the keyed mutex only serializes them. All four refresh.
	assert.Len(t, env.srv.TokenRequests, 4)
}
