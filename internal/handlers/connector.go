package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/go-orgauth/orgauth/internal/connectors"
	"github.com/go-orgauth/orgauth/internal/middleware"
	"github.com/go-orgauth/orgauth/internal/models"
	"github.com/go-orgauth/orgauth/internal/util"
)

// ConnectorHandler serves the connected-account endpoints. All of them
// require a session; the connected account is keyed to the session user.
type ConnectorHandler struct {
	connectors *connectors.Service
	baseURL    string
}

// NewConnectorHandler creates the connector handler. baseURL anchors the
// redirect-safety check on connect requests.
func NewConnectorHandler(svc *connectors.Service, baseURL string) *ConnectorHandler {
	return &ConnectorHandler{connectors: svc, baseURL: baseURL}
}

// List handles GET /connectors: the status of every catalog connector for the
// session user, in catalog order.
func (h *ConnectorHandler) List(c *gin.Context) {
	record := middleware.SessionUser(c)
	if record == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required", "authenticated": false})
		return
	}

	statuses := h.connectors.ListStatuses(c.Request.Context(), connectorIdentifier(record))
	c.JSON(http.StatusOK, gin.H{"connectors": statuses})
}

type connectRequest struct {
	Connector   string `json:"connector"`
	RedirectURL string `json:"redirect_url"`
}

// Connect handles POST /connectors/connect: returns the one-time link where
// the user grants the connector.
func (h *ConnectorHandler) Connect(c *gin.Context) {
	record := middleware.SessionUser(c)
	if record == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required", "authenticated": false})
		return
	}

	var req connectRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Connector == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "connector is required"})
		return
	}
	if req.RedirectURL != "" && !util.IsRedirectSafe(req.RedirectURL, h.baseURL) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid redirect_url"})
		return
	}

	link, err := h.connectors.AuthorizationLink(c.Request.Context(), req.Connector, connectorIdentifier(record), req.RedirectURL)
	if err != nil {
		if errors.Is(err, connectors.ErrUnsupportedConnector) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported connector"})
			return
		}
		log.Printf("Error generating authorization link for %s: %v", req.Connector, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate authorization link"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"connector": req.Connector,
		"link":      link,
	})
}

// Status handles GET /connectors/:key/status.
func (h *ConnectorHandler) Status(c *gin.Context) {
	record := middleware.SessionUser(c)
	if record == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required", "authenticated": false})
		return
	}

	key := c.Param("key")
	status, err := h.connectors.Status(c.Request.Context(), key, connectorIdentifier(record))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported connector"})
		return
	}

	c.JSON(http.StatusOK, status)
}

// Disconnect handles POST /connectors/:key/disconnect. Provider failures
// propagate as errors so a live grant is never reported as revoked.
func (h *ConnectorHandler) Disconnect(c *gin.Context) {
	record := middleware.SessionUser(c)
	if record == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required", "authenticated": false})
		return
	}

	key := c.Param("key")
	if err := h.connectors.Disconnect(c.Request.Context(), key, connectorIdentifier(record)); err != nil {
		if errors.Is(err, connectors.ErrUnsupportedConnector) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported connector"})
			return
		}
		log.Printf("Error disconnecting %s: %v", key, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to disconnect"})
		return
	}

	desc, _ := h.connectors.Catalog().Lookup(key)
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"connector": key,
		"message":   desc.DisplayName + " disconnected successfully",
	})
}

// connectorIdentifier is the provider-side identifier for the user's
// connected accounts. Email is preferred for dashboard legibility; the
// subject id is the fallback.
func connectorIdentifier(record *models.SessionRecord) string {
	if record.Email != "" {
		return record.Email
	}
	return record.SubjectID
}
