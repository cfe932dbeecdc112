package handlers

import (
	"errors"
	"net/http"

	"domo/internal/service"

	"github.com/gin-gonic/gin"
)

type signInInput struct {
	Password string `json:"password" binding:"required"`
}

// @Summary      Sign in to the dashboard
// @Description  Exchanges the dashboard password for a bearer token used by the mutating routes.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input  body      signInInput  true  "Dashboard password"
// @Success      200    {object}  map[string]string  "token"
// @Failure      400    {object}  map[string]string
// @Failure      401    {object}  map[string]string
// @Failure      404    {object}  map[string]string
// @Router       /auth/sign-in [post]
func (h *Handler) signIn(c *gin.Context) {
	if h.auth == nil || !h.auth.Enabled() {
		c.JSON(http.StatusNotFound, gin.H{"error": "sign-in is not configured"})
		return
	}
	var input signInInput
	if !h.bindJSONOrBadRequest(c, &input) {
		return
	}
	token, err := h.auth.GenerateToken(input.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidPassword) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid password"})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to issue token", "sign_in_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}
