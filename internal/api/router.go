package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/rrekapalli/Hi-Doc-sub002/internal/auth"
	"github.com/rrekapalli/Hi-Doc-sub002/internal/config"
	"github.com/rrekapalli/Hi-Doc-sub002/internal/handlers"
	"github.com/rrekapalli/Hi-Doc-sub002/internal/reminder"
	"github.com/rrekapalli/Hi-Doc-sub002/internal/store"
	"github.com/rrekapalli/Hi-Doc-sub002/internal/websocket"
)

func SetupRouter(st *store.Store, coord *reminder.Coordinator, hub *websocket.Hub, cfg *config.Config, log zerolog.Logger) *gin.Engine {
	router := gin.Default()

	// Custom CORS middleware
	router.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// Check if origin is allowed
		allowed := false
		for _, allowedOrigin := range cfg.CORS.AllowedOrigins {
			if origin == allowedOrigin {
				allowed = true
				break
			}
		}

		if allowed {
			c.Header("Access-Control-Allow-Origin", origin)
		}
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Length, Content-Type, Authorization")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(cfg.JWT)

	// Initialize handlers
	medicationHandler := handlers.NewMedicationHandler(st, coord, hub)
	scheduleHandler := handlers.NewScheduleHandler(st, coord, hub)
	doseTimeHandler := handlers.NewDoseTimeHandler(st, coord, hub)
	intakeHandler := handlers.NewIntakeHandler(st, hub)
	regimenHandler := handlers.NewRegimenHandler(st, coord, hub, log)
	wsHandler := handlers.NewWebSocketHandler(hub)

	// All API routes require a valid token; identity is minted elsewhere.
	protected := router.Group("/api")
	protected.Use(auth.JWTMiddleware(jwtManager))
	{
		// Medication routes
		medications := protected.Group("/medications")
		{
			medications.GET("", medicationHandler.GetMedications)
			medications.POST("", medicationHandler.CreateMedication)
			medications.GET("/:id", medicationHandler.GetMedication)
			medications.PUT("/:id", medicationHandler.UpdateMedication)
			medications.DELETE("/:id", medicationHandler.DeleteMedication)

			// Nested schedules and the intake ledger
			medications.GET("/:id/schedules", scheduleHandler.GetSchedules)
			medications.POST("/:id/schedules", scheduleHandler.CreateSchedule)
			medications.GET("/:id/intakes", intakeHandler.GetIntakeLogs)
		}

		// Schedule routes
		schedules := protected.Group("/schedules")
		{
			schedules.GET("/:id", scheduleHandler.GetSchedule)
			schedules.PUT("/:id", scheduleHandler.UpdateSchedule)
			schedules.DELETE("/:id", scheduleHandler.DeleteSchedule)

			schedules.GET("/:id/times", doseTimeHandler.GetDoseTimes)
			schedules.POST("/:id/times", doseTimeHandler.CreateDoseTime)
		}

		// Dose time routes
		times := protected.Group("/times")
		{
			times.GET("/:id", doseTimeHandler.GetDoseTime)
			times.PUT("/:id", doseTimeHandler.UpdateDoseTime)
			times.DELETE("/:id", doseTimeHandler.DeleteDoseTime)

			times.POST("/:id/intakes", intakeHandler.LogIntake)
		}

		// Whole-prescription import
		protected.POST("/regimens", regimenHandler.ImportRegimen)

		// Live updates
		protected.GET("/ws", wsHandler.HandleWebSocket)
		protected.GET("/ws/status", wsHandler.GetStatus)
	}

	return router
}
