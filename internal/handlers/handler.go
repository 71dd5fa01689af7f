package handlers

import (
	"monotub_dashboard/internal/logger"
	"monotub_dashboard/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/", h.index)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", h.health)

	h.registerAuthRoutes(router)
	h.registerAPIRoutes(router)

	// Live view updates; read-only, so not behind auth.
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
	api := r.Group("/api/v1", h.userIdMiddleware)
	{
		h.registerDashboardRoutes(api)
		h.registerControlRoutes(api)
		h.registerLogRoutes(api)
	}
}

func (h *Handler) registerDashboardRoutes(api *gin.RouterGroup) {
	dashboard := api.Group("/dashboard")
	{
		dashboard.GET("", h.getView)
		dashboard.POST("/status/refresh", h.refreshStatus)
		dashboard.POST("/charts/refresh", h.refreshCharts)
		// Body example: {"range":"week"}
		dashboard.POST("/charts/:chart/range", h.changeRange)
	}
}

func (h *Handler) registerControlRoutes(api *gin.RouterGroup) {
	fan := api.Group("/fan")
	{
		// Body example: {"duration":5,"interval":4}
		fan.POST("/settings", h.configureFan)
		fan.POST("/:action", h.fanAction)
	}
	api.POST("/setpoint", h.setSetpoint)
	api.POST("/storage/interval", h.setStorageInterval)
	api.POST("/data/delete", h.deleteData)
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("/", h.getLogs)
	}
}
