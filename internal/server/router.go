package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/CleanExpo/ATO-sub007/internal/handlers"
)

type RouterConfig struct {
	AnalysisHandler *handlers.AnalysisHandler
	AllowOrigins    []string
	ServiceName     string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "ato-analysis"
	}
	router.Use(otelgin.Middleware(serviceName))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		api.POST("/analysis/start", cfg.AnalysisHandler.StartAnalysis)
		api.POST("/analysis/batch", cfg.AnalysisHandler.AnalyzeBatch)
		api.GET("/analysis/status", cfg.AnalysisHandler.GetStatus)
	}

	return router
}
