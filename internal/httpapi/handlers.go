package httpapi

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"callbridge/internal/audit"
	"callbridge/internal/auth"
	"callbridge/internal/bridge"
	"callbridge/internal/cdr"
	"callbridge/internal/routing"
	"callbridge/internal/telephony"
	"callbridge/pkg/logger"
	"callbridge/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const defaultPinTTL = 15 * time.Minute

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth     *auth.Manager
	Bridge   *bridge.Orchestrator
	CDRs     *cdr.Service
	Audit    *audit.Service
	AuditLog audit.Lister
	Pins     *routing.MemoryPinStore

	// Controller carries API-started calls. Inbound calls arrive on their
	// own socket and never pass through here.
	Controller telephony.Controller

	// DB is only probed by Health; nil means memory-backed storage.
	DB *sql.DB

	// Operator credentials accepted by the token endpoint.
	OperatorName     string
	OperatorPassword string

	// DefaultCustomerURI is dialed when a call request names no target.
	DefaultCustomerURI string
}

// --- Health ---

func (h Handlers) Health(c *gin.Context) {
	if h.Controller != nil {
		select {
		case <-h.Controller.Done():
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "switch": "disconnected"})
			return
		default:
		}
	}
	if h.DB != nil {
		if err := utils.HealthCheck(c.Request.Context(), h.DB, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "storage": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// --- Auth ---

type tokenRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// IssueToken exchanges operator credentials for an admin access token.
func (h Handlers) IssueToken(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Name == "" || req.Password == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "name, password required"})
		return
	}

	nameOK := subtle.ConstantTimeCompare([]byte(req.Name), []byte(h.OperatorName)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.OperatorPassword)) == 1
	if !nameOK || !passOK {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	tok, err := h.Auth.Issue(time.Now(), req.Name, auth.RoleAdmin)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": tok})
}

// --- Sessions ---

func (h Handlers) ListSessions(c *gin.Context) {
	if h.Bridge == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "bridge not configured"})
		return
	}
	views := make([]bridge.View, 0)
	for _, s := range h.Bridge.Registry.List() {
		views = append(views, s.View())
	}
	c.JSON(http.StatusOK, gin.H{"sessions": views})
}

func (h Handlers) GetSession(c *gin.Context) {
	if h.Bridge == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "bridge not configured"})
		return
	}
	s, ok := h.Bridge.Registry.Get(c.Param("id"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, s.View())
}

// --- Calls ---

type startCallRequest struct {
	CustomerURI string `json:"customer_uri"`
}

// StartCall kicks off the outbound bridge scenario and returns right away
// with the session id. Progress is visible via GET /v1/sessions/:id.
func (h Handlers) StartCall(c *gin.Context) {
	if h.Bridge == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "bridge not configured"})
		return
	}
	if h.Controller == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "switch connection not available"})
		return
	}

	var req startCallRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	uri := req.CustomerURI
	if uri == "" {
		uri = h.DefaultCustomerURI
	}
	if uri == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "customer_uri required"})
		return
	}

	s := h.Bridge.NewOutboundSession(h.Controller)

	// The scenario outlives the request. Carry the caller's IP so audit
	// entries written along the way can attribute it.
	runCtx := audit.WithClientIP(context.Background(), c.ClientIP())
	go func() { _ = h.Bridge.Run(runCtx, s, uri) }()

	h.logOperator(c, "call started", s.ID(), uri)
	c.JSON(http.StatusAccepted, gin.H{"session_id": s.ID()})
}

// HangupSession kills both legs of a session. The running scenario sees
// the hangups and finishes its own teardown.
func (h Handlers) HangupSession(c *gin.Context) {
	if h.Bridge == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "bridge not configured"})
		return
	}
	id := c.Param("id")
	err := h.Bridge.HangupSession(c.Request.Context(), id)
	if errors.Is(err, bridge.ErrSessionNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "hangup failed"})
		return
	}
	h.logOperator(c, "session hangup requested", id, "")
	c.JSON(http.StatusAccepted, gin.H{"status": "hangup requested"})
}

// --- Call records ---

func (h Handlers) ListCallRecords(c *gin.Context) {
	if h.CDRs == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "cdr storage not configured"})
		return
	}
	limit, ok := limitQuery(c)
	if !ok {
		return
	}
	recs, err := h.CDRs.List(c.Request.Context(), limit)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "record lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": recs})
}

func (h Handlers) Stats(c *gin.Context) {
	if h.CDRs == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "cdr storage not configured"})
		return
	}
	sum, err := h.CDRs.Summarize(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "stats lookup failed"})
		return
	}
	c.JSON(http.StatusOK, sum)
}

// --- Audit ---

func (h Handlers) ListAudit(c *gin.Context) {
	if h.AuditLog == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "audit storage not configured"})
		return
	}
	limit, ok := limitQuery(c)
	if !ok {
		return
	}
	if limit <= 0 {
		limit = 50
	}
	events, err := h.AuditLog.List(c.Request.Context(), limit)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "audit lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// --- Agent pinning ---

type pinRequest struct {
	AgentURI string `json:"agent_uri"`
	TTL      string `json:"ttl,omitempty"`
	Note     string `json:"note,omitempty"`
}

// PinAgent forces the next bridges onto one agent until the pin expires.
// The pin is silent: session views never reveal it. Applications are
// audit-logged by the routing layer.
func (h Handlers) PinAgent(c *gin.Context) {
	if h.Pins == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "pinning not configured"})
		return
	}
	var req pinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.AgentURI == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "agent_uri required"})
		return
	}
	ttl := defaultPinTTL
	if req.TTL != "" {
		d, err := time.ParseDuration(req.TTL)
		if err != nil || d <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "ttl must be a positive duration like 15m"})
			return
		}
		ttl = d
	}

	pin := routing.Pin{
		ID:        uuid.NewString(),
		AgentURI:  req.AgentURI,
		ExpiresAt: time.Now().Add(ttl),
		Note:      req.Note,
	}
	h.Pins.Set(pin)

	h.logOperator(c, "agent pinned", "", req.AgentURI)
	c.JSON(http.StatusOK, gin.H{"pin_id": pin.ID, "expires_at": pin.ExpiresAt})
}

func (h Handlers) UnpinAgent(c *gin.Context) {
	if h.Pins == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "pinning not configured"})
		return
	}
	h.Pins.Clear()
	h.logOperator(c, "agent pin cleared", "", "")
	c.Status(http.StatusNoContent)
}

// --- helpers ---

func limitQuery(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
		return 0, false
	}
	return n, true
}

// logOperator records an admin action. Best effort; failures only log.
func (h Handlers) logOperator(c *gin.Context, message, sessionID, metadata string) {
	if h.Audit == nil {
		return
	}
	actor, _ := auth.Operator(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	if err := h.Audit.LogOperatorAction(c.Request.Context(), actor, role, c.ClientIP(), message, sessionID, metadata); err != nil {
		logger.FromGin(c).Error("audit append failed", "err", err)
	}
}
