package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// authMiddleware requires a dashboard token when sign-in is configured.
func (h *Handler) authMiddleware(c *gin.Context) {
	if h.auth == nil || !h.auth.Enabled() {
		c.Next()
		return
	}

	header := c.GetHeader("Authorization")
	if header == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "missing Authorization header",
		})
		return
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "invalid Authorization header format",
		})
		return
	}

	if err := h.auth.ParseToken(parts[1]); err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "invalid or expired token",
		})
		return
	}
	c.Next()
}
