package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/partline/internal/auth"
	"github.com/zulandar/partline/internal/db"
	"github.com/zulandar/partline/internal/models"
)

// registerRoutes sets up all API routes on the Gin router.
func (s *Server) registerRoutes(router *gin.Engine) {
	router.GET("/health", s.handleHealth)

	anyRole := auth.RequireRole(models.Roles...)
	staff := auth.RequireRole(models.RoleSupervisor, models.RoleAdmin)
	admin := auth.RequireRole(models.RoleAdmin)

	api := router.Group("/api")
	api.POST("/auth/login", s.handleLogin)

	authed := api.Group("", auth.RequireAuth(s.auth))
	authed.GET("/auth/me", s.handleMe)
	authed.POST("/auth/register", admin, s.handleRegister)

	users := authed.Group("/users", admin)
	users.GET("", s.handleListUsers)
	users.GET("/:id", s.handleGetUser)
	users.PATCH("/:id", s.handleUpdateUser)
	users.DELETE("/:id", s.handleDeactivateUser)

	stations := authed.Group("/stations")
	stations.GET("", staff, s.handleListStations)
	stations.GET("/:id", staff, s.handleGetStation)
	stations.POST("", admin, s.handleCreateStation)
	stations.PUT("/:id", admin, s.handleUpdateStation)
	stations.PATCH("/:id", admin, s.handleUpdateStation)
	stations.DELETE("/:id", admin, s.handleDeleteStation)

	parts := authed.Group("/parts", staff)
	parts.GET("", s.handleListParts)
	parts.POST("", s.handleCreatePart)
	parts.GET("/:id", s.handleGetPart)
	parts.PATCH("/:id", s.handleUpdatePart)
	parts.GET("/:id/history", s.handlePartHistory)
	parts.GET("/:id/verify", s.handleVerifyPart)

	events := authed.Group("/trace-events")
	events.POST("", anyRole, s.handleRecordEvent)
	events.GET("", staff, s.handleListEvents)
	events.GET("/stream", staff, s.handleEventStream)
	events.GET("/:id", staff, s.handleGetEvent)

	metrics := authed.Group("/metrics", staff)
	metrics.GET("/parts-by-status", s.handlePartsByStatus)
	metrics.GET("/throughput", s.handleThroughput)
	metrics.GET("/station-cycle-time", s.handleStationCycleTime)
	metrics.GET("/scrap-rate", s.handleScrapRate)
	metrics.GET("/overview", s.handleOverview)
	metrics.GET("/station-load", s.handleStationLoad)
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := db.Ping(s.db.WithContext(c.Request.Context())); err != nil {
		s.log.Error("health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
