package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"domo/internal/graph"
	"domo/internal/models"
	"domo/internal/service"

	"github.com/gin-gonic/gin"
)

// sensorSummary is one dashboard tile.
type sensorSummary struct {
	Key          string   `json:"key"`
	HumanName    string   `json:"human_name"`
	Kind         string   `json:"type"`
	Unit         string   `json:"unit"`
	DesiredValue *float64 `json:"desired_value,omitempty"`
	LastTime     int64    `json:"last_time"`
	LastValue    *float64 `json:"last_value,omitempty"`
	Points       int      `json:"points"`
	Revision     uint64   `json:"revision"`
}

func (h *Handler) summarize(v service.SensorView) sensorSummary {
	rec := v.Record
	s := sensorSummary{
		Key:          v.Key,
		HumanName:    rec.HumanName,
		Kind:         rec.Kind,
		Unit:         h.client.Unit(rec.Kind),
		DesiredValue: rec.DesiredValue,
		LastTime:     rec.LastTime(),
		Points:       len(rec.Log),
		Revision:     v.Revision,
	}
	if n := len(rec.Log); n > 0 {
		last := rec.Log[n-1].Value
		s.LastValue = &last
	}
	return s
}

// @Summary      List sensors
// @Description  Cached sensors in display order.
// @Tags         sensors
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, sensors"
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/sensors [get]
func (h *Handler) listSensors(c *gin.Context) {
	views, err := h.client.Sensors(c.Request.Context())
	if err != nil {
		h.clientError(c, "sensors unavailable", "sensors_list_failed", err)
		return
	}
	out := make([]sensorSummary, 0, len(views))
	for _, v := range views {
		out = append(out, h.summarize(v))
	}
	c.JSON(http.StatusOK, gin.H{
		"count":   len(out),
		"sensors": out,
	})
}

// @Summary      Sensor history
// @Tags         sensors
// @Produce      json
// @Param        key  path      string  true  "Sensor key"
// @Success      200  {object}  map[string]interface{}  "sensor, log"
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/sensors/{key} [get]
func (h *Handler) getSensor(c *gin.Context) {
	v, ok := h.sensorOr404(c)
	if !ok {
		return
	}
	log := v.Record.Log
	if log == nil {
		log = []models.LogPoint{}
	}
	c.JSON(http.StatusOK, gin.H{
		"sensor": h.summarize(v),
		"log":    log,
	})
}

// @Summary      Graph layout
// @Description  Geometry of the 24h graph for a viewport: axis ranges, gridlines and the curve split into connected and dotted runs.
// @Tags         sensors
// @Produce      json
// @Param        key     path   string  true   "Sensor key"
// @Param        width   query  number  false  "Viewport width in CSS pixels"
// @Param        height  query  number  false  "Viewport height in CSS pixels"
// @Param        dpr     query  number  false  "Device pixel ratio"
// @Success      200  {object}  graph.Layout
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/sensors/{key}/layout [get]
func (h *Handler) getLayout(c *gin.Context) {
	l, ok := h.layout(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, l)
}

// @Summary      Graph image
// @Tags         sensors
// @Produce      image/svg+xml
// @Param        key     path   string  true   "Sensor key"
// @Param        width   query  number  false  "Viewport width in CSS pixels"
// @Param        height  query  number  false  "Viewport height in CSS pixels"
// @Param        dpr     query  number  false  "Device pixel ratio"
// @Success      200
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/sensors/{key}/graph.svg [get]
func (h *Handler) getGraphSVG(c *gin.Context) {
	l, ok := h.layout(c)
	if !ok {
		return
	}
	c.Data(http.StatusOK, "image/svg+xml; charset=utf-8", []byte(graph.RenderSVG(l)))
}

func (h *Handler) sensorOr404(c *gin.Context) (service.SensorView, bool) {
	key := c.Param("key")
	v, err := h.client.Sensor(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, service.ErrUnknownSensor) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown sensor"})
			return service.SensorView{}, false
		}
		h.clientError(c, "sensor unavailable", "sensor_get_failed", err, "key", key)
		return service.SensorView{}, false
	}
	return v, true
}

// layout answers the viewport query with the memoized layout of a sensor.
func (h *Handler) layout(c *gin.Context) (*graph.Layout, bool) {
	width, err := floatQuery(c, "width", h.graph.Width)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	height, err := floatQuery(c, "height", h.graph.Height)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	dpr, err := floatQuery(c, "dpr", h.graph.DevicePixelRatio)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}

	v, ok := h.sensorOr404(c)
	if !ok {
		return nil, false
	}
	rec := v.Record
	l, _, err := h.hub.Memo().Layout(v.Key, v.Revision, graph.Input{
		Key:              v.Key,
		Name:             rec.HumanName,
		Unit:             h.client.Unit(rec.Kind),
		Log:              rec.Log,
		Desired:          rec.DesiredValue,
		Width:            width,
		Height:           height,
		DevicePixelRatio: dpr,
		Now:              h.clock.Now(),
		Location:         h.graph.Location,
	})
	switch {
	case err == nil:
		return l, true
	case errors.Is(err, graph.ErrInvalidViewport):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to lay out graph", "graph_layout_failed", err, "key", v.Key)
	}
	return nil, false
}

func floatQuery(c *gin.Context, name string, def float64) (float64, error) {
	qs := c.Query(name)
	if qs == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(qs, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %q: must be a number", name)
	}
	return f, nil
}
