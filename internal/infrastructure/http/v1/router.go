package v1

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pissang/little-big-city/internal/infrastructure/http/v1/handler"
	"github.com/pissang/little-big-city/pkg/logger"
	"github.com/pissang/little-big-city/pkg/telemetry"
)

func NewRouter(handler *handler.Handler, l logger.Logger, telemetryEnabled bool) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())

	if telemetryEnabled {
		r.Use(telemetry.GinMiddleware())
	}

	r.Use(ginZapLogger(l))

	api := r.Group("/api")
	v1 := api.Group("/v1")

	v1.GET("/healthz", handler.Healthz)

	v1.GET("/view", handler.GetView)
	v1.POST("/view", handler.SetView)

	v1.GET("/config", handler.GetConfig)
	v1.PATCH("/config", handler.UpdateConfig)

	v1.GET("/scene", handler.Scene)
	v1.GET("/scene/:node/*key", handler.Mesh)

	v1.GET("/tile/:z/:x/:y", handler.Tile)
	v1.GET("/cache", handler.Cache)

	return r
}

func ginZapLogger(l logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("logger", l)

		if c.Request.URL.Path == "/api/v1/healthz" {
			c.Next()
			return
		}

		start := time.Now()

		c.Next()

		l.Info("request",
			"status", c.Writer.Status(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"ip", c.ClientIP(),
			"latency", time.Since(start),
			"size", c.Writer.Size(),
		)
	}
}
