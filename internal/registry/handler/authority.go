package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/provenant-id/provenant/internal/identity"
	"github.com/provenant-id/provenant/internal/registry/service"
	"github.com/provenant-id/provenant/pkg/credsig"
	"github.com/provenant-id/provenant/pkg/ethid"
)

// AuthorityHandler exposes the authority assignment table. Assignment is a
// root-only operation; the root check happens in the service against the
// session caller.
type AuthorityHandler struct {
	svc      *service.AuthorityService
	sessions *identity.SessionIssuer // nil = assignment endpoint disabled
	logger   *zap.Logger
}

// NewAuthorityHandler creates an AuthorityHandler.
func NewAuthorityHandler(svc *service.AuthorityService, sessions *identity.SessionIssuer, logger *zap.Logger) *AuthorityHandler {
	return &AuthorityHandler{svc: svc, sessions: sessions, logger: logger}
}

// Register mounts the authority routes on the given router group.
func (h *AuthorityHandler) Register(rg *gin.RouterGroup) {
	auths := rg.Group("/authorities")
	{
		if h.sessions != nil {
			auths.PUT("/:category", identity.RequireSession(h.sessions), h.Set)
		}
		auths.GET("/:category", h.Get)
	}
	rg.GET("/categories/:name", h.CategoryID)
}

// SetAuthorityRequest is the payload for PUT /authorities/:category.
type SetAuthorityRequest struct {
	Authority string `json:"authority" binding:"required"`
}

// Set handles PUT /authorities/:category — root only.
func (h *AuthorityHandler) Set(c *gin.Context) {
	category, err := categoryID(c.Param("category"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid category: " + err.Error()})
		return
	}

	var req SetAuthorityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	authority, err := ethid.ParseAddress(req.Authority)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid authority: " + err.Error()})
		return
	}

	caller := identity.CallerFromCtx(c)
	if err := h.svc.SetAuthority(c.Request.Context(), caller, category, authority); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"category":  category.String(),
		"authority": authority.String(),
	})
}

// Get handles GET /authorities/:category.
func (h *AuthorityHandler) Get(c *gin.Context) {
	category, err := categoryID(c.Param("category"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid category: " + err.Error()})
		return
	}
	authority, err := h.svc.GetAuthority(c.Request.Context(), category)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"category":  category.String(),
		"authority": authority.String(),
		"assigned":  !authority.IsZero(),
	})
}

// CategoryID handles GET /categories/:name — returns the keccak-derived
// category id for a display name, e.g. "PERSONAL".
func (h *AuthorityHandler) CategoryID(c *gin.Context) {
	name := c.Param("name")
	c.JSON(http.StatusOK, gin.H{
		"name":     name,
		"category": credsig.CategoryID(name).String(),
	})
}
