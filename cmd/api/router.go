package main

import (
	"context"
	"net/http"
	"time"

	"library-backend/internal/shared/middleware"
	"library-backend/pkg/container"
	"library-backend/pkg/jwt"

	"github.com/gin-gonic/gin"
)

func SetupRouter(c *container.Container) *gin.Engine {
	router := gin.New()

	// Global middlewares
	router.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.CORS(c.Config.App.AllowedOrigins),
	)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthCheckHandler(c))

		setupLendingRoutes(v1, c)
	}

	return router
}

// ========================================
// LENDING ROUTES
// ========================================
// Circulation desk only: every route needs a librarian or admin token
func setupLendingRoutes(v1 *gin.RouterGroup, c *container.Container) {
	h := c.LendingHandler

	desk := v1.Group("")
	desk.Use(
		middleware.AuthMiddleware(c.JWTManager),
		middleware.RequireRoles(jwt.RoleLibrarian, jwt.RoleAdmin),
	)

	desk.GET("/eligibility", h.CheckEligibility)

	loans := desk.Group("/loans")
	{
		loans.POST("", h.IssueLoan)
		loans.GET("", h.ListLoans)
		loans.GET("/active", h.ListActiveLoans)
		loans.GET("/:id", h.GetLoan)
		loans.POST("/:id/return", h.ReturnLoan)
	}

	fines := desk.Group("/fines")
	{
		fines.GET("", h.ListFines)
		fines.GET("/export", h.ExportFines)
		fines.GET("/:id", h.GetFine)
		fines.POST("/:id/pay", h.PayFine)
	}

	desk.GET("/readers/:id/balance", h.GetReaderBalance)
	desk.GET("/books/available", h.ListAvailableBooks)
	desk.GET("/dashboard/stats", h.GetDashboardStats)
	desk.GET("/dashboard/overdue", h.GetOverdueSummary)
}

// ========================================
// HEALTH CHECK HANDLER
// ========================================
// The store decides liveness; a missing cache only degrades the report
func healthCheckHandler(appCtx *container.Container) gin.HandlerFunc {
	return func(c *gin.Context) {
		health := gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
			"version":   appCtx.Config.App.Version,
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		// Check store
		storeStatus := "ok"
		if err := appCtx.LendingStore.Ping(ctx); err != nil {
			storeStatus = "error: " + err.Error()
			health["status"] = "degraded"
		}
		services := gin.H{
			"store": gin.H{"driver": appCtx.Config.Store.Driver, "status": storeStatus},
		}
		if appCtx.DB != nil {
			if stats, err := appCtx.DB.Stats(); err == nil {
				services["database_pool"] = stats
			}
		}

		// Check redis
		redisStatus := "ok"
		if appCtx.Cache == nil {
			redisStatus = "disconnected"
		} else if err := appCtx.Cache.Ping(ctx); err != nil {
			redisStatus = "error: " + err.Error()
		}
		services["redis"] = redisStatus
		health["services"] = services

		statusCode := http.StatusOK
		if storeStatus != "ok" {
			statusCode = http.StatusServiceUnavailable
		}

		c.JSON(statusCode, health)
	}
}
