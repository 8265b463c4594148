// Package handlers exposes the JSON API over the auth and connector services.
package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/go-orgauth/orgauth/internal/middleware"
	"github.com/go-orgauth/orgauth/internal/services"
)

// AuthHandler serves the login, callback, user, organization-switch and
// logout endpoints.
type AuthHandler struct {
	auth *services.AuthService
}

// NewAuthHandler creates the auth handler.
func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type authURLRequest struct {
	OrganizationID string `json:"organization_id"`
	Prompt         string `json:"prompt"`
}

// AuthURL handles POST /auth/url. Body fields are optional; an absent body
// starts a plain login.
func (h *AuthHandler) AuthURL(c *gin.Context) {
	var req authURLRequest
	// An empty body is a plain login request, not an error.
	_ = c.ShouldBindJSON(&req)

	authURL, state, err := h.auth.BeginLogin(c, req.OrganizationID, req.Prompt)
	if err != nil {
		log.Printf("Error generating auth URL: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate auth URL"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"auth_url": authURL,
		"state":    state,
	})
}

type callbackRequest struct {
	Code  string `json:"code"`
	State string `json:"state"`
	Error string `json:"error"`
}

// Callback handles POST /auth/callback.
func (h *AuthHandler) Callback(c *gin.Context) {
	var req callbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	record, err := h.auth.CompleteLogin(c, req.Code, req.State, req.Error)
	if err != nil {
		log.Printf("Callback error: %v", err)
		switch {
		case errors.Is(err, services.ErrInvalidState):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid state parameter"})
		case errors.Is(err, services.ErrProvider):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Authentication failed"})
		case errors.Is(err, services.ErrMissingCode):
			c.JSON(http.StatusBadRequest, gin.H{"error": "No authorization code received"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Authentication failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user": gin.H{
			"id":                      record.SubjectID,
			"email":                   record.Email,
			"name":                    record.Name,
			"current_organization_id": record.CurrentOrganizationID,
		},
		"organizations": h.auth.ClaimOrganizations(record),
	})
}

// UserInfo handles GET /auth/user. The organization list is fetched live on
// every call rather than cached in the session.
func (h *AuthHandler) UserInfo(c *gin.Context) {
	record := middleware.SessionUser(c)
	if record == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required", "authenticated": false})
		return
	}

	orgs, err := h.auth.Organizations(c.Request.Context(), record)
	if err != nil {
		log.Printf("Error getting user info: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get user info"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user": gin.H{
			"id":                      record.SubjectID,
			"email":                   record.Email,
			"name":                    record.Name,
			"current_organization_id": record.CurrentOrganizationID,
		},
		"organizations": orgs,
		"authenticated": true,
	})
}

type switchOrgRequest struct {
	OrganizationID string `json:"organization_id"`
}

// SwitchOrg handles POST /auth/switch-org.
func (h *AuthHandler) SwitchOrg(c *gin.Context) {
	var req switchOrgRequest
	_ = c.ShouldBindJSON(&req)

	authURL, state, err := h.auth.SwitchOrganization(c, req.OrganizationID)
	if err != nil {
		if errors.Is(err, services.ErrMissingParameter) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "organization_id is required"})
			return
		}
		log.Printf("Error switching organization: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to switch organization"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"auth_url": authURL,
		"state":    state,
	})
}

// Logout handles POST /auth/logout. The local session is always cleared; the
// provider logout URL is handed back for the client to follow.
func (h *AuthHandler) Logout(c *gin.Context) {
	logoutURL, err := h.auth.Logout(c)
	if err != nil {
		log.Printf("Error clearing session on logout: %v", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"logout_url": logoutURL,
	})
}
