package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/provenant-id/provenant/internal/identity"
	"github.com/provenant-id/provenant/internal/registry/model"
	"github.com/provenant-id/provenant/internal/registry/service"
	"github.com/provenant-id/provenant/pkg/credsig"
	"github.com/provenant-id/provenant/pkg/ethid"
)

// CredentialHandler exposes the ledger's write surface and queries over HTTP.
//
// Issue and update are authorised by the signature inside the request body —
// no session is needed, the signature IS the authorisation. Revoke acts on
// the caller's session identity instead, so it sits behind RequireSession.
type CredentialHandler struct {
	svc      *service.CredentialService
	sessions *identity.SessionIssuer // nil = revoke endpoint disabled
	logger   *zap.Logger
}

// NewCredentialHandler creates a CredentialHandler.
func NewCredentialHandler(svc *service.CredentialService, sessions *identity.SessionIssuer, logger *zap.Logger) *CredentialHandler {
	return &CredentialHandler{svc: svc, sessions: sessions, logger: logger}
}

// Register mounts the credential routes on the given router group.
func (h *CredentialHandler) Register(rg *gin.RouterGroup) {
	creds := rg.Group("/credentials")
	{
		creds.POST("", h.Issue)
		creds.PATCH("/:subject/:category", h.Update)
		if h.sessions != nil {
			creds.DELETE("/:subject/:category", identity.RequireSession(h.sessions), h.Revoke)
		}
		creds.GET("/:subject/:category", h.Latest)
		creds.GET("/:subject/:category/history", h.History)
		creds.GET("/:subject/:category/versions/:index", h.VersionAt)
		creds.GET("/:subject/:category/validity", h.IsValid)
		creds.GET("/:subject/:category/revocation", h.RevocationInfo)
		creds.GET("/:subject/:category/verify-hash", h.VerifyHash)
	}
	rg.GET("/subjects/:subject/categories", h.SubjectCategories)
}

// statusFor maps ledger errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound), errors.Is(err, model.ErrVersionOutOfRange):
		return http.StatusNotFound
	case errors.Is(err, model.ErrAlreadyExists),
		errors.Is(err, model.ErrAlreadyRevoked),
		errors.Is(err, model.ErrRevoked):
		return http.StatusConflict
	case errors.Is(err, model.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, model.ErrInvalidSignature), errors.Is(err, model.ErrCategoryUnassigned):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// categoryID resolves a request category: a 32-byte hex id, or a plain name
// that is keccak-hashed the way issuers derive category ids.
func categoryID(s string) (ethid.Hash, error) {
	if h, err := ethid.ParseHash(s); err == nil {
		return h, nil
	}
	if s == "" {
		return ethid.Hash{}, errors.New("category is required")
	}
	return credsig.CategoryID(s), nil
}

func (h *CredentialHandler) pathKey(c *gin.Context) (ethid.Address, ethid.Hash, bool) {
	subject, err := ethid.ParseAddress(c.Param("subject"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subject: " + err.Error()})
		return ethid.Address{}, ethid.Hash{}, false
	}
	category, err := categoryID(c.Param("category"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid category: " + err.Error()})
		return ethid.Address{}, ethid.Hash{}, false
	}
	return subject, category, true
}

// IssueRequest is the payload for POST /credentials. Category may be given
// as a 32-byte hex id or a plain name (e.g. "PERSONAL").
type IssueRequest struct {
	Subject     string `json:"subject" binding:"required"`
	Category    string `json:"category" binding:"required"`
	PayloadHash string `json:"payload_hash" binding:"required"`
	StorageRef  string `json:"storage_ref" binding:"required"`
	Signature   string `json:"signature" binding:"required"`
}

// Issue handles POST /credentials.
func (h *CredentialHandler) Issue(c *gin.Context) {
	var req IssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	subject, err := ethid.ParseAddress(req.Subject)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subject: " + err.Error()})
		return
	}
	category, err := categoryID(req.Category)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid category: " + err.Error()})
		return
	}
	payloadHash, err := ethid.ParseHash(req.PayloadHash)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload_hash: " + err.Error()})
		return
	}
	sig, err := credsig.ParseSignature(req.Signature)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature encoding"})
		return
	}

	rec, err := h.svc.Issue(c.Request.Context(), subject, category, payloadHash, req.StorageRef, sig)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	RecordLedgerEvent(string(model.ActionIssued))
	c.JSON(http.StatusCreated, rec)
}

// UpdateRequest is the payload for PATCH /credentials/:subject/:category.
type UpdateRequest struct {
	PayloadHash string `json:"payload_hash" binding:"required"`
	StorageRef  string `json:"storage_ref" binding:"required"`
	Signature   string `json:"signature" binding:"required"`
}

// Update handles PATCH /credentials/:subject/:category.
func (h *CredentialHandler) Update(c *gin.Context) {
	subject, category, ok := h.pathKey(c)
	if !ok {
		return
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	payloadHash, err := ethid.ParseHash(req.PayloadHash)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload_hash: " + err.Error()})
		return
	}
	sig, err := credsig.ParseSignature(req.Signature)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature encoding"})
		return
	}

	rec, err := h.svc.Update(c.Request.Context(), subject, category, payloadHash, req.StorageRef, sig)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	RecordLedgerEvent(string(model.ActionUpdated))
	c.JSON(http.StatusOK, rec)
}

// RevokeRequest is the payload for DELETE /credentials/:subject/:category.
type RevokeRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// Revoke handles DELETE /credentials/:subject/:category. The acting identity
// is the authenticated session's address.
func (h *CredentialHandler) Revoke(c *gin.Context) {
	subject, category, ok := h.pathKey(c)
	if !ok {
		return
	}

	var req RevokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	caller := identity.CallerFromCtx(c)
	if err := h.svc.Revoke(c.Request.Context(), subject, category, req.Reason, caller); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	RecordLedgerEvent(string(model.ActionRevoked))
	c.JSON(http.StatusOK, gin.H{"revoked": true})
}

// Latest handles GET /credentials/:subject/:category.
func (h *CredentialHandler) Latest(c *gin.Context) {
	subject, category, ok := h.pathKey(c)
	if !ok {
		return
	}
	res, err := h.svc.Latest(c.Request.Context(), subject, category)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

// History handles GET /credentials/:subject/:category/history.
func (h *CredentialHandler) History(c *gin.Context) {
	subject, category, ok := h.pathKey(c)
	if !ok {
		return
	}
	versions, err := h.svc.History(c.Request.Context(), subject, category)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": versions, "count": len(versions)})
}

// VersionAt handles GET /credentials/:subject/:category/versions/:index.
// The index is zero-based; display ordinals are index+1.
func (h *CredentialHandler) VersionAt(c *gin.Context) {
	subject, category, ok := h.pathKey(c)
	if !ok {
		return
	}
	idx, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "index must be an integer"})
		return
	}
	v, err := h.svc.VersionAt(c.Request.Context(), subject, category, idx)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"version": v, "ordinal": idx + 1})
}

// IsValid handles GET /credentials/:subject/:category/validity.
func (h *CredentialHandler) IsValid(c *gin.Context) {
	subject, category, ok := h.pathKey(c)
	if !ok {
		return
	}
	valid, err := h.svc.IsValid(c.Request.Context(), subject, category)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": valid})
}

// RevocationInfo handles GET /credentials/:subject/:category/revocation.
func (h *CredentialHandler) RevocationInfo(c *gin.Context) {
	subject, category, ok := h.pathKey(c)
	if !ok {
		return
	}
	info, err := h.svc.RevocationInfo(c.Request.Context(), subject, category)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, info)
}

// VerifyHash handles GET /credentials/:subject/:category/verify-hash?hash=0x…
func (h *CredentialHandler) VerifyHash(c *gin.Context) {
	subject, category, ok := h.pathKey(c)
	if !ok {
		return
	}
	candidate, err := ethid.ParseHash(c.Query("hash"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid hash: " + err.Error()})
		return
	}
	match, err := h.svc.VerifyHash(c.Request.Context(), subject, category, candidate)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"match": match})
}

// SubjectCategories handles GET /subjects/:subject/categories.
func (h *CredentialHandler) SubjectCategories(c *gin.Context) {
	subject, err := ethid.ParseAddress(c.Param("subject"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subject: " + err.Error()})
		return
	}
	cats, err := h.svc.SubjectCategories(c.Request.Context(), subject)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]string, len(cats))
	for i, cat := range cats {
		out[i] = cat.String()
	}
	c.JSON(http.StatusOK, gin.H{"subject": subject.String(), "categories": out})
}
