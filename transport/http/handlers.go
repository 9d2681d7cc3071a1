// Package http exposes the authentication and ingestion surfaces over
// gin, plus the websocket mount point.
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/herald/core"
	"github.com/layer-3/herald/service"
)

// Handlers contains the HTTP handlers for the auth and ingestion
// endpoints.
type Handlers struct {
	auth     *service.AuthService
	delivery *service.DeliveryService
}

// NewHandlers creates the handler set.
func NewHandlers(auth *service.AuthService, delivery *service.DeliveryService) *Handlers {
	return &Handlers{auth: auth, delivery: delivery}
}

// Nonce issues a fresh challenge nonce as plain text. It always
// overwrites any prior nonce on the caller's session.
func (h *Handlers) Nonce(c *gin.Context) {
	sid, session := sessionFrom(c)

	nonce, _, err := h.auth.IssueNonce(c.Request.Context(), sid, session)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue nonce"})
		return
	}

	c.String(http.StatusOK, nonce)
}

// Login verifies the signed message and promotes the session. An invalid
// signature is NOT an error: the response is the unchanged prior session,
// with nothing revealing which check failed.
func (h *Handlers) Login(c *gin.Context) {
	var req struct {
		Message   string `json:"message" binding:"required"`
		Signature string `json:"signature" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	sid, session := sessionFrom(c)

	session, err := h.auth.Login(c.Request.Context(), sid, session, req.Message, req.Signature)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	c.JSON(http.StatusOK, session)
}

// Verify returns a bare validity verdict without touching the session.
func (h *Handlers) Verify(c *gin.Context) {
	var req struct {
		Message   string `json:"message" binding:"required"`
		Signature string `json:"signature" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	_, session := sessionFrom(c)

	c.JSON(http.StatusOK, gin.H{"valid": h.auth.VerifyOnly(session, req.Message, req.Signature)})
}

// Session returns the current session, default-shaped when anonymous.
func (h *Handlers) Session(c *gin.Context) {
	_, session := sessionFrom(c)
	c.JSON(http.StatusOK, session)
}

// Logout destroys the session and returns the reset default.
func (h *Handlers) Logout(c *gin.Context) {
	sid, session := sessionFrom(c)

	session, err := h.auth.Logout(c.Request.Context(), sid, session)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
		return
	}

	c.JSON(http.StatusOK, session)
}

// Ticket mints a realtime handshake ticket for an authenticated session.
func (h *Handlers) Ticket(c *gin.Context) {
	_, session := sessionFrom(c)

	ticket, err := h.auth.Ticket(session)
	if err != nil {
		if errors.Is(err, core.ErrNotAuthenticated) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue ticket"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ticket": ticket})
}

// IngestNotifications accepts an ordered batch from a producer. Every
// notification is durably appended before any live fan-out, so a 200
// means the batch is persisted.
func (h *Handlers) IngestNotifications(c *gin.Context) {
	var batch []core.Incoming
	if err := c.ShouldBindJSON(&batch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.delivery.Ingest(c.Request.Context(), batch); err != nil {
		if core.KindOf(err) == core.FaultValidation {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to ingest notifications"})
		return
	}

	c.String(http.StatusOK, "ok")
}
