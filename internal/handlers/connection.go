package handlers

import (
	"errors"
	"net/http"

	"domo/internal/service"

	"github.com/gin-gonic/gin"
)

type credentialInput struct {
	Credential string `json:"credential"`
}

type tabInput struct {
	Tab string `json:"tab" binding:"required"`
}

// @Summary      Connection status
// @Tags         connection
// @Produce      json
// @Success      200  {object}  models.ConnectionStatus
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/status [get]
func (h *Handler) getStatus(c *gin.Context) {
	st, err := h.client.Status(c.Request.Context())
	if err != nil {
		h.clientError(c, "status unavailable", "status_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Set the controller credential
// @Description  Stores the credential and reconnects with it. Submitting the current credential does nothing.
// @Tags         connection
// @Accept       json
// @Param        input  body  credentialInput  true  "Credential"
// @Success      204
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/credential [put]
// @Security     BearerAuth
func (h *Handler) setCredential(c *gin.Context) {
	var input credentialInput
	if !h.bindJSONOrBadRequest(c, &input) {
		return
	}
	if err := h.client.SetCredential(c.Request.Context(), input.Credential); err != nil {
		if errors.Is(err, service.ErrEmptyCredential) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.clientError(c, "failed to set credential", "set_credential_failed", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary      Selected dashboard tab
// @Tags         preferences
// @Produce      json
// @Success      200  {object}  map[string]string  "tab"
// @Router       /api/v1/preferences/tab [get]
func (h *Handler) getTab(c *gin.Context) {
	tab, err := h.client.Tab(c.Request.Context())
	if err != nil {
		h.clientError(c, "failed to load preference", "tab_load_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tab": tab})
}

// @Summary      Remember the selected dashboard tab
// @Tags         preferences
// @Accept       json
// @Param        input  body  tabInput  true  "Tab"
// @Success      204
// @Failure      400  {object}  map[string]string
// @Router       /api/v1/preferences/tab [put]
// @Security     BearerAuth
func (h *Handler) setTab(c *gin.Context) {
	var input tabInput
	if !h.bindJSONOrBadRequest(c, &input) {
		return
	}
	if err := h.client.SetTab(c.Request.Context(), input.Tab); err != nil {
		h.clientError(c, "failed to save preference", "tab_save_failed", err, "tab", input.Tab)
		return
	}
	c.Status(http.StatusNoContent)
}
