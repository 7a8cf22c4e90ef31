package router

import (
	"log/slog"
	"net/http"

	"github.com/fabseal/fabseal/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware(deps.AllowedOrigins))

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		if deps.HealthCheck != nil {
			if err := deps.HealthCheck(c.Request.Context()); err != nil {
				deps.Logger.Warn("Health check failed", slog.Any("error", err))
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unhealthy",
					"service": "fabseal-api",
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "fabseal-api",
		})
	})

	createHandler := handler.NewCreateHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		create := v1.Group("/create")
		{
			// POST /api/v1/create/new - Start a new request
			create.POST("/new", createHandler.New)

			// POST /api/v1/create/upload - Upload the source image
			create.POST("/upload", createHandler.Upload)

			// POST /api/v1/create/start - Queue the conversion
			create.POST("/start", createHandler.Start)

			// GET /api/v1/create/result - Fetch the model or height map
			create.GET("/result", createHandler.Result)
		}
	}

	return r
}
