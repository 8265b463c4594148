package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-orgauth/orgauth/internal/idp"
	"github.com/go-orgauth/orgauth/internal/idp/idptest"
	"github.com/go-orgauth/orgauth/internal/models"
	"github.com/go-orgauth/orgauth/internal/services"
	"github.com/go-orgauth/orgauth/internal/session"
)

type refreshTestEnv struct {
	srv    *idptest.Server
	router *gin.Engine
}

func newRefreshTestEnv(t *testing.T) *refreshTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv := idptest.New(t)
	g, err := idp.New(context.Background(), idp.Config{
		IssuerURL:    srv.IssuerURL(),
		ClientID:     idptest.ClientID,
		ClientSecret: idptest.ClientSecret,
		RedirectURI:  "http://localhost:3000/auth/callback",
	}, nil)
	require.NoError(t, err)

	lifecycle := services.NewTokenLifecycle(g, nil)

	r := gin.New()
	r.Use(sessions.Sessions("test_session", cookie.NewStore([]byte("test-secret"))))

	r.GET("/login", func(c *gin.Context) {
		require.NoError(t, session.SetUser(c, &models.SessionRecord{
			SubjectID: "usr_1",
			Token:     models.NewTokenBundle("stale-access", "refresh-1", "", 30, time.Now()),
		}))
		c.Status(http.StatusOK)
	})

	r.Use(TokenRefresh(lifecycle))
	handler := func(c *gin.Context) { c.Status(http.StatusOK) }
	r.POST("/auth/url", handler)
	r.POST("/auth/callback", handler)
	r.POST("/auth/logout", handler)
	r.GET("/auth/user", handler)
	r.GET("/connectors", handler)

	return &refreshTestEnv{srv: srv, router: r}
}

func (env *refreshTestEnv) do(method, path string, prev *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, nil)
	if prev != nil {
		replayCookies(req, prev)
	}
	env.router.ServeHTTP(w, req)
	return w
}

func TestTokenRefreshSkipsExemptPaths(t *testing.T) {
	env := newRefreshTestEnv(t)
	login := env.do(http.MethodGet, "/login", nil)

	for _, path := range []string{"/auth/url", "/auth/callback", "/auth/logout"} {
		w := env.do(http.MethodPost, path, login)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
	assert.Empty(t, env.srv.TokenRequests)
}

func TestTokenRefreshRefreshesOnProtectedPaths(t *testing.T) {
	env := newRefreshTestEnv(t)
	login := env.do(http.MethodGet, "/login", nil)

	w := env.do(http.MethodGet, "/auth/user", login)
	assert.Equal(t, http.StatusOK, w.Code)

	require.Len(t, env.srv.TokenRequests, 1)
	assert.Equal(t, "refresh_token", env.srv.TokenRequests[0].Get("grant_type"))
}

func TestTokenRefreshPassesThroughUnauthenticated(t *testing.T) {
	env := newRefreshTestEnv(t)

	w := env.do(http.MethodGet, "/connectors", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, env.srv.TokenRequests)
}

func TestTokenRefreshFailureIsNotFatal(t *testing.T) {
	env := newRefreshTestEnv(t)
	env.srv.RefreshStatus = http.StatusBadRequest

	login := env.do(http.MethodGet, "/login", nil)
	w := env.do(http.MethodGet, "/auth/user", login)

	// The request proceeds with the stale token.
	assert.Equal(t, http.StatusOK, w.Code)
}
