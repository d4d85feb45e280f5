package apihandlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// NewRouter wires every route of the HTTP API onto a gin engine.
func NewRouter(h *APIHandler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	v1 := router.Group("/api/v1")
	{
		v1.POST("/classify", h.ClassifyHandler)
		v1.GET("/categories", h.CategoriesHandler)

		runGroup := v1.Group("/runs")
		{
			runGroup.GET("", h.ListRunsHandler)
			runGroup.GET("/:id", h.GetRunHandler)
		}
		v1.GET("/jobs", h.ListJobsHandler)

		usageGroup := v1.Group("/usage")
		{
			usageGroup.GET("", h.ListUsageHandler)
			usageGroup.GET("/summary", h.UsageSummaryHandler)
		}
	}

	router.GET("/health", h.HealthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return router
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("http request")
	}
}
