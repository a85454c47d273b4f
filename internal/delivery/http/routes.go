package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gut-puncture/list-to-cart/config"
	"github.com/gut-puncture/list-to-cart/internal/pkg/logger"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, log *logger.Logger) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware())
	router.Use(RequestIDMiddleware())
	router.Use(LoggerMiddleware(log))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check and metrics endpoints
	router.GET("/health", handler.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.POST("/images", handler.SubmitImage)
		v1.PUT("/grocery-list", handler.UpdateGroceryList)
		v1.POST("/recommendations/:name/retry", handler.RetryRecommendations)
		v1.GET("/state", handler.GetState)
		v1.GET("/streams/:stream", handler.Stream)

		cart := v1.Group("/cart")
		{
			cart.GET("", handler.GetCart)
			cart.POST("/items", handler.AddCartItem)
			cart.PATCH("/items/:id", handler.UpdateCartItem)
			cart.DELETE("/items/:id", handler.RemoveCartItem)
		}
	}

	return router
}
