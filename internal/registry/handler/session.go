package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/provenant-id/provenant/internal/identity"
	"github.com/provenant-id/provenant/pkg/credsig"
	"github.com/provenant-id/provenant/pkg/ethid"
)

// SessionHandler issues session tokens to callers that prove control of an
// address by signing a timestamped login challenge.
type SessionHandler struct {
	sessions *identity.SessionIssuer
	ledgerID ethid.Address
	logger   *zap.Logger
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(sessions *identity.SessionIssuer, ledgerID ethid.Address, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, ledgerID: ledgerID, logger: logger}
}

// Register mounts the session routes on the given router group.
func (h *SessionHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/sessions", h.Create)
}

// CreateSessionRequest is the payload for POST /sessions. The signature is
// over identity.LoginDigest(ledgerID, timestamp).
type CreateSessionRequest struct {
	Address   string    `json:"address" binding:"required"`
	Timestamp time.Time `json:"timestamp" binding:"required"`
	Signature string    `json:"signature" binding:"required"`
}

// Create handles POST /sessions.
func (h *SessionHandler) Create(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	addr, err := ethid.ParseAddress(req.Address)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address: " + err.Error()})
		return
	}
	sig, err := credsig.ParseSignature(req.Signature)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature encoding"})
		return
	}

	if d := time.Since(req.Timestamp); d > identity.LoginWindow || d < -identity.LoginWindow {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "login challenge expired"})
		return
	}

	signer, err := credsig.Recover(identity.LoginDigest(h.ledgerID, req.Timestamp), sig)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed login signature"})
		return
	}
	if signer != addr {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "signature does not match address"})
		return
	}

	token, err := h.sessions.Issue(addr)
	if err != nil {
		h.logger.Error("session issue failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue session"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"token":   token,
		"address": addr.String(),
	})
}
