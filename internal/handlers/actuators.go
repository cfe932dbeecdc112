package handlers

import (
	"errors"
	"net/http"

	"domo/internal/service"

	"github.com/gin-gonic/gin"
)

type actuatorEditInput struct {
	Attribute string `json:"attribute" binding:"required"`
	Value     any    `json:"value"`
}

// @Summary      Actuator state
// @Description  Stored attributes of every actuator, as last agreed with the controller.
// @Tags         actuators
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/actuators [get]
func (h *Handler) listActuators(c *gin.Context) {
	st, err := h.client.Actuators(c.Request.Context())
	if err != nil {
		h.clientError(c, "actuators unavailable", "actuators_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"actuators": st})
}

// @Summary      Actuator widget values
// @Description  Attribute values converted for display (hours, minutes, local time of day).
// @Tags         actuators
// @Produce      json
// @Param        name  path  string  true  "Actuator name"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/actuators/{name}/inputs [get]
func (h *Handler) getActuatorInputs(c *gin.Context) {
	name := c.Param("name")
	attrs, err := h.client.ActuatorInputs(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, service.ErrUnknownActuator) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown actuator"})
			return
		}
		h.clientError(c, "actuator unavailable", "actuator_inputs_failed", err, "name", name)
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name, "inputs": attrs})
}

// @Summary      Edit an actuator attribute
// @Description  Converts the widget value to its stored form, saves it and forwards it to the controller when connected.
// @Tags         actuators
// @Accept       json
// @Produce      json
// @Param        name   path  string             true  "Actuator name"
// @Param        input  body  actuatorEditInput  true  "Attribute and widget value"
// @Success      200  {object}  map[string]bool  "changed, sent"
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/actuators/{name} [post]
// @Security     BearerAuth
func (h *Handler) editActuator(c *gin.Context) {
	name := c.Param("name")
	var input actuatorEditInput
	if !h.bindJSONOrBadRequest(c, &input) {
		return
	}
	if input.Value == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "value is required"})
		return
	}
	res, err := h.client.EditActuator(c.Request.Context(), name, input.Attribute, input.Value)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownActuator):
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown actuator"})
		case service.IsValueError(err):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.clientError(c, "failed to edit actuator", "actuator_edit_failed", err,
				"name", name, "attribute", input.Attribute)
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"changed": res.Changed, "sent": res.Sent})
}
