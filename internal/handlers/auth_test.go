package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-orgauth/orgauth/internal/connectors"
	"github.com/go-orgauth/orgauth/internal/idp"
	"github.com/go-orgauth/orgauth/internal/idp/idptest"
	"github.com/go-orgauth/orgauth/internal/middleware"
	"github.com/go-orgauth/orgauth/internal/services"
)

type handlerTestEnv struct {
	srv    *idptest.Server
	router *gin.Engine
}

// newHandlerTestEnv wires the full API surface against the fake provider,
// mirroring the production route layout.
func newHandlerTestEnv(t *testing.T) *handlerTestEnv {
	t.Helper()

	srv := idptest.New(t)
	gateway, err := idp.New(context.Background(), idp.Config{
		IssuerURL:             srv.IssuerURL(),
		ClientID:              idptest.ClientID,
		ClientSecret:          idptest.ClientSecret,
		RedirectURI:           "http://localhost:3000/auth/callback",
		Scopes:                []string{"openid", "profile", "email", "offline_access"},
		PostLogoutRedirectURI: "http://localhost:3000",
	}, nil)
	require.NoError(t, err)

	admin := idp.NewAdminClient(gateway, idp.AdminConfig{
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
	}, nil)

	authSvc := services.NewAuthService(gateway, admin, nil)
	connectorSvc := connectors.NewService(connectors.NewCatalog(connectors.ConnectionNames{}), admin, nil)

	authHandler := NewAuthHandler(authSvc)
	connectorHandler := NewConnectorHandler(connectorSvc, "http://localhost:3000")

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(sessions.Sessions("test_session", cookie.NewStore([]byte("test-secret"))))

	auth := router.Group("/auth")
	{
		auth.POST("/url", authHandler.AuthURL)
		auth.POST("/callback", authHandler.Callback)
		auth.GET("/user", middleware.RequireSession(), authHandler.UserInfo)
		auth.POST("/logout", middleware.RequireSession(), authHandler.Logout)
		auth.POST("/switch-org", middleware.RequireSession(), authHandler.SwitchOrg)
	}
	conns := router.Group("/connectors", middleware.RequireSession())
	{
		conns.GET("", connectorHandler.List)
		conns.POST("/connect", connectorHandler.Connect)
		conns.GET("/:key/status", connectorHandler.Status)
		conns.POST("/:key/disconnect", connectorHandler.Disconnect)
	}

	return &handlerTestEnv{srv: srv, router: router}
}

func (e *handlerTestEnv) do(method, path string, body any, prev *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if prev != nil {
		// Like a browser's cookie jar, keep only the last Set-Cookie per name.
		jar := map[string]*http.Cookie{}
		var names []string
		for _, c := range prev.Result().Cookies() {
			if _, seen := jar[c.Name]; !seen {
				names = append(names, c.Name)
			}
			jar[c.Name] = c
		}
		for _, name := range names {
			req.AddCookie(jar[name])
		}
	}
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func (e *handlerTestEnv) primeTokenResponse(t *testing.T) {
	t.Helper()
	e.srv.TokenResponse = map[string]any{
		"access_token": e.srv.MintToken(t, jwt.MapClaims{
			"sub": "usr_1",
			"oid": "org_1",
			"organizations": []any{
				map[string]any{"id": "org_1", "display_name": "Acme"},
				map[string]any{"id": "org_2", "display_name": "Beta"},
			},
		}),
		"refresh_token": "refresh-1",
		"id_token":      e.srv.MintIDToken(t, jwt.MapClaims{"sub": "usr_1"}),
		"token_type":    "Bearer",
		"expires_in":    3600,
		"user": map[string]any{
			"id":       "usr_1",
			"email":    "jane@example.test",
			"username": "jdoe",
		},
	}
}

// login runs the auth-url/callback dance and returns the recorder carrying the
// session cookie.
func (e *handlerTestEnv) login(t *testing.T) *httptest.ResponseRecorder {
	t.Helper()
	e.primeTokenResponse(t)

	begin := e.do(http.MethodPost, "/auth/url", nil, nil)
	require.Equal(t, http.StatusOK, begin.Code)
	state := decodeBody(t, begin)["state"].(string)

	cb := e.do(http.MethodPost, "/auth/callback", gin.H{"code": "code-1", "state": state}, begin)
	require.Equal(t, http.StatusOK, cb.Code)
	return cb
}

func TestAuthURLEndpoint(t *testing.T) {
	env := newHandlerTestEnv(t)

	w := env.do(http.MethodPost, "/auth/url", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	authURL, _ := body["auth_url"].(string)
	state, _ := body["state"].(string)
	require.NotEmpty(t, authURL)
	require.NotEmpty(t, state)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	assert.Equal(t, state, u.Query().Get("state"))
	assert.Equal(t, idptest.ClientID, u.Query().Get("client_id"))
	assert.Empty(t, u.Query().Get("organization_id"))
}

func TestAuthURLEndpointWithOrganization(t *testing.T) {
	env := newHandlerTestEnv(t)

	w := env.do(http.MethodPost, "/auth/url", gin.H{
		"organization_id": "org_2",
		"prompt":          "select_account",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	u, err := url.Parse(decodeBody(t, w)["auth_url"].(string))
	require.NoError(t, err)
	assert.Equal(t, "org_2", u.Query().Get("organization_id"))
	assert.Equal(t, "select_account", u.Query().Get("prompt"))
}

func TestCallbackEndpoint(t *testing.T) {
	env := newHandlerTestEnv(t)
	env.primeTokenResponse(t)

	begin := env.do(http.MethodPost, "/auth/url", nil, nil)
	state := decodeBody(t, begin)["state"].(string)

	w := env.do(http.MethodPost, "/auth/callback", gin.H{"code": "code-1", "state": state}, begin)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])

	user := body["user"].(map[string]any)
	assert.Equal(t, "usr_1", user["id"])
	assert.Equal(t, "jane@example.test", user["email"])
	assert.Equal(t, "jdoe", user["name"])
	assert.Equal(t, "org_1", user["current_organization_id"])

	orgs := body["organizations"].([]any)
	require.Len(t, orgs, 2)
	first := orgs[0].(map[string]any)
	assert.Equal(t, "Acme", first["display_name"])
	assert.Equal(t, true, first["is_current"])
}

func TestCallbackEndpointInvalidState(t *testing.T) {
	env := newHandlerTestEnv(t)
	env.primeTokenResponse(t)

	begin := env.do(http.MethodPost, "/auth/url", nil, nil)

	w := env.do(http.MethodPost, "/auth/callback", gin.H{"code": "code-1", "state": "forged"}, begin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid state parameter")
	assert.Empty(t, env.srv.TokenRequests)
}

func TestCallbackEndpointProviderError(t *testing.T) {
	env := newHandlerTestEnv(t)

	begin := env.do(http.MethodPost, "/auth/url", nil, nil)
	state := decodeBody(t, begin)["state"].(string)

	w := env.do(http.MethodPost, "/auth/callback", gin.H{"state": state, "error": "access_denied"}, begin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Authentication failed")
}

func TestCallbackEndpointMissingCode(t *testing.T) {
	env := newHandlerTestEnv(t)

	begin := env.do(http.MethodPost, "/auth/url", nil, nil)
	state := decodeBody(t, begin)["state"].(string)

	w := env.do(http.MethodPost, "/auth/callback", gin.H{"state": state}, begin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "No authorization code received")
}

func TestCallbackEndpointMalformedBody(t *testing.T) {
	env := newHandlerTestEnv(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/auth/callback", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid request body")
}

func TestUserInfoEndpoint(t *testing.T) {
	env := newHandlerTestEnv(t)
	env.srv.Users["usr_1"] = map[string]any{
		"id": "usr_1",
		"organization_memberships": []any{
			map[string]any{"organization_id": "org_1"},
		},
	}
	env.srv.Orgs["org_1"] = map[string]any{"id": "org_1", "display_name": "Acme"}

	login := env.login(t)
	w := env.do(http.MethodGet, "/auth/user", nil, login)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, true, body["authenticated"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "usr_1", user["id"])

	orgs := body["organizations"].([]any)
	require.Len(t, orgs, 1)
	assert.Equal(t, "Acme", orgs[0].(map[string]any)["display_name"])
}

func TestUserInfoRequiresSession(t *testing.T) {
	env := newHandlerTestEnv(t)

	w := env.do(http.MethodGet, "/auth/user", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Authentication required","authenticated":false}`, w.Body.String())
}

func TestSwitchOrgEndpoint(t *testing.T) {
	env := newHandlerTestEnv(t)
	login := env.login(t)

	w := env.do(http.MethodPost, "/auth/switch-org", gin.H{"organization_id": "org_2"}, login)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	u, err := url.Parse(body["auth_url"].(string))
	require.NoError(t, err)
	assert.Equal(t, "org_2", u.Query().Get("organization_id"))
	assert.Equal(t, "select_account", u.Query().Get("prompt"))
	assert.Equal(t, body["state"], u.Query().Get("state"))
}

func TestSwitchOrgEndpointRequiresOrganizationID(t *testing.T) {
	env := newHandlerTestEnv(t)
	login := env.login(t)

	w := env.do(http.MethodPost, "/auth/switch-org", gin.H{}, login)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "organization_id is required")
}

func TestLogoutEndpoint(t *testing.T) {
	env := newHandlerTestEnv(t)
	login := env.login(t)

	w := env.do(http.MethodPost, "/auth/logout", nil, login)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])

	u, err := url.Parse(body["logout_url"].(string))
	require.NoError(t, err)
	assert.Equal(t, "/oidc/logout", u.Path)
	assert.NotEmpty(t, u.Query().Get("id_token_hint"))
	assert.Equal(t, "http://localhost:3000", u.Query().Get("post_logout_redirect_uri"))

	// The session is gone; the user endpoint rejects the old cookie.
	after := env.do(http.MethodGet, "/auth/user", nil, w)
	assert.Equal(t, http.StatusUnauthorized, after.Code)
}
