// Package idptest runs a fake OIDC provider over httptest for exercising the
// gateway, admin client and the flows built on them. It serves discovery,
// JWKS, the token endpoint for all three grant types, and a minimal admin
// API.
package idptest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ClientID is the OAuth client every test server accepts.
const ClientID = "test-client"

// ClientSecret pairs with ClientID.
const ClientSecret = "test-secret"

// Server is a fake identity provider.
type Server struct {
	*httptest.Server

	Key   *rsa.PrivateKey
	KeyID string

	mu sync.Mutex

	// Admin API fixtures, keyed by resource id.
	Users map[string]map[string]any
	Orgs  map[string]map[string]any

	// Connected accounts keyed by connection name. A missing entry gets a
	// fresh ACTIVE account on first use.
	Accounts map[string]map[string]any

	// AccountFailures maps connection names to an HTTP status to fail with.
	AccountFailures map[string]int

	// TokenResponse overrides the authorization_code grant response.
	TokenResponse map[string]any

	// RefreshResponse overrides the refresh_token grant response.
	RefreshResponse map[string]any

	// RefreshStatus, when non-zero, fails refresh_token grants.
	RefreshStatus int

	// TokenRequests records every form posted to the token endpoint.
	TokenRequests []url.Values

	// DeletedAccounts records connection names whose accounts were revoked.
	DeletedAccounts []string
}

// New starts a fake provider and registers cleanup with t.
func New(t *testing.T) *Server {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating RSA key: %v", err)
	}

	s := &Server{
		Key:             key,
		KeyID:           uuid.NewString(),
		Users:           map[string]map[string]any{},
		Orgs:            map[string]map[string]any{},
		Accounts:        map[string]map[string]any{},
		AccountFailures: map[string]int{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// IssuerURL is the provider issuer, equal to the server base URL.
func (s *Server) IssuerURL() string {
	return s.URL
}

// MintToken signs an RS256 JWT with the server's key. iss, iat and exp are
// filled in unless the caller set them.
func (s *Server) MintToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()

	if _, ok := claims["iss"]; !ok {
		claims["iss"] = s.URL
	}
	now := time.Now()
	if _, ok := claims["iat"]; !ok {
		claims["iat"] = now.Unix()
	}
	if _, ok := claims["exp"]; !ok {
		claims["exp"] = now.Add(time.Hour).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.KeyID
	signed, err := token.SignedString(s.Key)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

// MintIDToken mints an ID token addressed to the test client.
func (s *Server) MintIDToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	if _, ok := claims["aud"]; !ok {
		claims["aud"] = ClientID
	}
	return s.MintToken(t, claims)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case r.URL.Path == "/.well-known/openid-configuration":
		s.handleDiscovery(w)
	case r.URL.Path == "/keys":
		s.handleJWKS(w)
	case r.URL.Path == "/oauth/token":
		s.handleToken(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/users/"):
		s.handleUser(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/organizations/"):
		s.handleOrganization(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/connections/"):
		s.handleConnections(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleDiscovery(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                 s.URL,
		"authorization_endpoint": s.URL + "/oauth/authorize",
		"token_endpoint":         s.URL + "/oauth/token",
		"jwks_uri":               s.URL + "/keys",
		"end_session_endpoint":   s.URL + "/oidc/logout",
		"response_types_supported": []string{
			"code",
		},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{"RS256"},
	})
}

func (s *Server) handleJWKS(w http.ResponseWriter) {
	pub := s.Key.Public().(*rsa.PublicKey)
	writeJSON(w, http.StatusOK, map[string]any{
		"keys": []map[string]any{{
			"kty": "RSA",
			"alg": "RS256",
			"use": "sig",
			"kid": s.KeyID,
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	})
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_request"})
		return
	}
	form := r.PostForm
	if form.Get("client_id") == "" {
		// Credentials may arrive via basic auth instead of the form.
		if id, secret, ok := r.BasicAuth(); ok {
			form.Set("client_id", id)
			form.Set("client_secret", secret)
		}
	}
	s.TokenRequests = append(s.TokenRequests, form)

	switch form.Get("grant_type") {
	case "authorization_code":
		if s.TokenResponse != nil {
			writeJSON(w, http.StatusOK, s.TokenResponse)
			return
		}
		writeJSON(w, http.StatusOK, s.defaultCodeResponse())
	case "refresh_token":
		if s.RefreshStatus != 0 {
			writeJSON(w, s.RefreshStatus, map[string]any{"error": "invalid_grant"})
			return
		}
		if s.RefreshResponse != nil {
			writeJSON(w, http.StatusOK, s.RefreshResponse)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "refreshed-access-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	case "client_credentials":
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "admin-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unsupported_grant_type"})
	}
}

// defaultCodeResponse is only used when the test did not set TokenResponse.
// Tests that need verified tokens mint them explicitly.
func (s *Server) defaultCodeResponse() map[string]any {
	return map[string]any{
		"access_token":  "opaque-access-token",
		"refresh_token": "refresh-token-1",
		"token_type":    "Bearer",
		"expires_in":    3600,
	}
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/users/")
	user, ok := s.Users[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "user not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (s *Server) handleOrganization(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/organizations/")
	org, ok := s.Orgs[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "organization not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"organization": org})
}

// handleConnections serves:
//
//	POST   /api/v1/connections/{name}/accounts
//	POST   /api/v1/connections/{name}/accounts/{id}/authorize
//	DELETE /api/v1/connections/{name}/accounts/{id}
func (s *Server) handleConnections(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/connections/")
	parts := strings.Split(rest, "/")
	if len(parts) < 2 || parts[1] != "accounts" {
		http.NotFound(w, r)
		return
	}
	name := parts[0]

	if status, ok := s.AccountFailures[name]; ok {
		writeJSON(w, status, map[string]any{"error": "connection unavailable"})
		return
	}

	switch {
	case len(parts) == 2 && r.Method == http.MethodPost:
		account, ok := s.Accounts[name]
		if !ok {
			account = map[string]any{
				"id":     "ca_" + uuid.NewString(),
				"status": "ACTIVE",
			}
			s.Accounts[name] = account
		}
		writeJSON(w, http.StatusOK, map[string]any{"connected_account": account})
	case len(parts) == 4 && parts[3] == "authorize" && r.Method == http.MethodPost:
		writeJSON(w, http.StatusOK, map[string]any{
			"link": "https://connect.example.test/" + name,
		})
	case len(parts) == 3 && r.Method == http.MethodDelete:
		delete(s.Accounts, name)
		s.DeletedAccounts = append(s.DeletedAccounts, name)
		writeJSON(w, http.StatusOK, map[string]any{})
	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
