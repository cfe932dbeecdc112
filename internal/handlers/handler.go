package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	_ "domo/docs"
	"domo/internal/clock"
	"domo/internal/logger"
	"domo/internal/metrics"
	"domo/internal/models"
	"domo/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Client is the client core the dashboard drives.
type Client interface {
	Status(ctx context.Context) (models.ConnectionStatus, error)
	SetCredential(ctx context.Context, credential string) error
	Sensors(ctx context.Context) ([]service.SensorView, error)
	Sensor(ctx context.Context, key string) (service.SensorView, error)
	Unit(kind string) string
	Actuators(ctx context.Context) (models.ActuatorState, error)
	ActuatorInputs(ctx context.Context, name string) (models.Attributes, error)
	EditActuator(ctx context.Context, name, attribute string, value any) (service.EditResult, error)
	ConnectionLog(ctx context.Context, f service.JournalFilter) ([]models.ConnectionEvent, error)
	Tab(ctx context.Context) (string, error)
	SetTab(ctx context.Context, tab string) error
}

// Authorization issues and checks dashboard tokens.
type Authorization interface {
	Enabled() bool
	GenerateToken(password string) (string, error)
	ParseToken(accessToken string) error
}

// GraphOptions are the defaults for graph requests without a viewport.
type GraphOptions struct {
	Width            float64
	Height           float64
	DevicePixelRatio float64
	Location         *time.Location
}

// Deps are the collaborators of the HTTP layer. Auth, Metrics and Clock
// may be nil.
type Deps struct {
	Client  Client
	Auth    Authorization
	Hub     *Hub
	Metrics *metrics.Metrics
	Graph   GraphOptions
	Clock   clock.Clock
	Log     *logger.Logger
}

// Handler wires HTTP layer to the client core and logging.
type Handler struct {
	client  Client
	auth    Authorization
	hub     *Hub
	metrics *metrics.Metrics
	graph   GraphOptions
	clock   clock.Clock
	log     *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(d Deps) *Handler {
	if d.Hub == nil {
		d.Hub = NewHub(nil, d.Log)
	}
	if d.Clock == nil {
		d.Clock = clock.Real()
	}
	if d.Graph.Location == nil {
		d.Graph.Location = time.Local
	}
	return &Handler{
		client:  d.Client,
		auth:    d.Auth,
		hub:     d.Hub,
		metrics: d.Metrics,
		graph:   d.Graph,
		clock:   d.Clock,
		log:     d.Log,
	}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", h.health)
	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.metrics.Registry, promhttp.HandlerOpts{})))
	}

	// Push channel for status, sensor and actuator changes
	router.GET("/ws", h.wsConnect)

	h.registerAuthRoutes(router)
	h.registerAPIRoutes(router)
	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.GET("/status", h.getStatus)
		api.GET("/logs", h.getLogs)
		api.GET("/preferences/tab", h.getTab)
		h.registerSensorRoutes(api)
		h.registerActuatorRoutes(api)
	}

	protected := api.Group("", h.authMiddleware)
	{
		protected.PUT("/credential", h.setCredential)
		protected.PUT("/preferences/tab", h.setTab)
		// Body example: {"attribute":"hour","value":7}
		protected.POST("/actuators/:name", h.editActuator)
	}
}

func (h *Handler) registerSensorRoutes(api *gin.RouterGroup) {
	sensors := api.Group("/sensors")
	{
		sensors.GET("", h.listSensors)
		sensors.GET("/:key", h.getSensor)
		sensors.GET("/:key/layout", h.getLayout)
		sensors.GET("/:key/graph.svg", h.getGraphSVG)
	}
}

func (h *Handler) registerActuatorRoutes(api *gin.RouterGroup) {
	actuators := api.Group("/actuators")
	{
		actuators.GET("", h.listActuators)
		actuators.GET("/:name/inputs", h.getActuatorInputs)
	}
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// clientError answers a failed call into the client core.
func (h *Handler) clientError(c *gin.Context, userMsg, logKey string, err error, kv ...interface{}) {
	code := http.StatusInternalServerError
	if errors.Is(err, service.ErrStopped) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		code = http.StatusServiceUnavailable
	}
	h.logAndJSONError(c, code, userMsg, logKey, err, kv...)
}

// bindJSONOrBadRequest binds the request body into dst and writes a 400 on failure.
func (h *Handler) bindJSONOrBadRequest(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		if h.log != nil {
			h.log.Infow("bad_request_body", "path", c.FullPath(), "err", err)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}
