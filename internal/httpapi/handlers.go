package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"crm-interactions/internal/audit"
	"crm-interactions/internal/auth"
	"crm-interactions/internal/calls"
	"crm-interactions/internal/events"
	"crm-interactions/internal/lifecycle"
	"crm-interactions/internal/messages"
	"crm-interactions/internal/rbac"
	"crm-interactions/internal/reporting"
	"crm-interactions/internal/templates"
	"crm-interactions/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth      *auth.Manager
	Messages  *messages.Service
	Calls     *calls.Service
	Templates *templates.Service
	Reports   *reporting.Service
	Audit     *audit.Service
	Hub       *events.Hub

	// DevTokens enables POST /auth/token without credentials. Mock mode only.
	DevTokens bool
}

// writeError maps service errors onto status codes. Server-side failures are
// logged with the request logger; client errors are not.
func writeError(c *gin.Context, err error) {
	status := lifecycle.HTTPStatus(err)
	if errors.Is(err, reporting.ErrInvalidRequest) {
		status = http.StatusBadRequest
	}
	if status >= http.StatusInternalServerError {
		logger.FromGin(c).Error("request failed", "err", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func actor(c *gin.Context) string {
	uid, _ := auth.UserID(c.Request.Context())
	return uid
}

func queryInt(c *gin.Context, key string, def int) (int, bool) {
	v := c.Query(key)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// --- Auth ---

type tokenRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// IssueToken issues a JWT token pair for an arbitrary identity.
//
// NOTE: only mounted in mock mode. Real deployments get tokens from the CRM login.
func (h Handlers) IssueToken(c *gin.Context) {
	if h.Auth == nil || !h.DevTokens {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || !rbac.Valid(req.Role) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id and a valid role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RefreshToken exchanges a refresh token for a new token pair.
func (h Handlers) RefreshToken(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "refresh_token required"})
		return
	}
	pair, err := h.Auth.Refresh(time.Now(), req.RefreshToken)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Audit ---

func (h Handlers) History(c *gin.Context) {
	if h.Audit == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "audit not configured"})
		return
	}
	out, err := h.Audit.History(c.Request.Context(), c.Param("entity"), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": out})
}

// --- Reports ---

func (h Handlers) ReportSummary(c *gin.Context) {
	if h.Reports == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reports not configured"})
		return
	}
	to := time.Now().UTC()
	from := to.Add(-24 * time.Hour)
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
			return
		}
		from = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339"})
			return
		}
		to = t
	}
	out, err := h.Reports.Summary(c.Request.Context(), reporting.TimeRange{From: from, To: to})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// --- Status stream ---

// Stream upgrades to a websocket and pushes status changes matching the
// entity, room and id query parameters.
func (h Handlers) Stream(c *gin.Context) {
	if h.Hub == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "stream not configured"})
		return
	}
	f := events.Filter{
		Entity:   events.Entity(c.Query("entity")),
		Room:     c.Query("room"),
		EntityID: c.Query("id"),
	}
	if err := h.Hub.Serve(c.Writer, c.Request, f); err != nil {
		logger.FromGin(c).Warn("ws upgrade failed", "err", err)
	}
}
