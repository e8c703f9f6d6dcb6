package identity

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/provenant-id/provenant/pkg/ethid"
)

const ctxCallerAddress = "provenant_caller_address"

// RequireSession returns a Gin middleware that enforces a valid Bearer
// session token. On success it injects the caller address into the context.
func RequireSession(sessions *SessionIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Bearer session token required",
			})
			return
		}

		addr, err := sessions.Verify(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid session token: " + err.Error(),
			})
			return
		}

		c.Set(ctxCallerAddress, addr)
		c.Next()
	}
}

// CallerFromCtx retrieves the authenticated caller address injected by
// RequireSession. The zero address means no authenticated session.
func CallerFromCtx(c *gin.Context) ethid.Address {
	v, _ := c.Get(ctxCallerAddress)
	addr, _ := v.(ethid.Address)
	return addr
}
