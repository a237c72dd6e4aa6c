package handlers

import (
	"net/http"

	_ "cooling_control/docs"
	"cooling_control/internal/logger"
	"cooling_control/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
	metrics  http.Handler
	hub      *StreamHub
}

type Option func(*Handler)

// WithMetrics serves the given handler on /metrics.
func WithMetrics(m http.Handler) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithStreamHub pushes control events to /ws clients as they happen.
func WithStreamHub(hub *StreamHub) Option {
	return func(h *Handler) { h.hub = hub }
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger, opts ...Option) *Handler {
	h := &Handler{services: services, log: log}
	for _, o := range opts {
		o(h)
	}
	return h
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", h.health)
	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics))
	}

	h.registerAuthRoutes(router)
	h.registerAPIRoutes(router)

	// State stream on the same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		// Reading the state is open; everything that changes it is not.
		api.GET("/control/state", h.getState)

		protected := api.Group("", h.operatorMiddleware)
		h.registerControlRoutes(protected)
		h.registerDiagRoutes(protected)
		h.registerLogRoutes(protected)
	}
}

func (h *Handler) registerControlRoutes(api *gin.RouterGroup) {
	ctl := api.Group("/control")
	{
		ctl.POST("/start", h.startLoop)
		ctl.POST("/stop", h.stopLoop)
		// Body example: {"setpoint":35.5}
		ctl.POST("/setpoint", h.setSetpoint)
		ctl.POST("/mode", h.setMode)
		ctl.POST("/manual", h.setManual)
		ctl.POST("/alarm", h.setAlarm)
		ctl.POST("/gains", h.setGains)
		ctl.POST("/swap", h.setSwap)
		ctl.POST("/postrun", h.setPostrun)
		ctl.POST("/actuator/min", h.setActuatorMin)
		ctl.POST("/smoothing", h.setSmoothing)
		ctl.POST("/thermocouple", h.setThermocouple)
	}
}

func (h *Handler) registerDiagRoutes(api *gin.RouterGroup) {
	diag := api.Group("/diag")
	{
		diag.GET("/scan", h.diagScan)
		diag.GET("/read", h.diagRead)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("/", h.getLogs)
	}
}
