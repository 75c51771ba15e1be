package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/pissang/little-big-city/internal/pipeline"
	"github.com/pissang/little-big-city/internal/repository/cache"
	"github.com/pissang/little-big-city/internal/scene"
	"github.com/pissang/little-big-city/pkg/logger"
)

const (
	internalServerErrorText = "the server encountered an error and could not process your request"
)

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type Engine interface {
	Schedule(ctx context.Context, v pipeline.View) error
	Configure(ctx context.Context, u pipeline.Update) (pipeline.Settings, error)
	View() pipeline.View
	Stats() pipeline.Stats
	Settings() pipeline.Settings
}

type SceneReader interface {
	Snapshot() []scene.Summary
	Entry(node scene.Node, key string) (scene.Entry, bool)
}

type TileReader interface {
	GetCachedTile(ctx context.Context, x, y, z int) ([]byte, bool, error)
}

type CacheStatter interface {
	Stats() cache.FeatureCacheStats
}

type Handler struct {
	validate *validator.Validate
	engine   Engine
	scene    SceneReader
	tiles    TileReader
	features CacheStatter
}

func NewHandler(v *validator.Validate, e Engine, s SceneReader, t TileReader, f CacheStatter) *Handler {
	return &Handler{
		validate: v,
		engine:   e,
		scene:    s,
		tiles:    t,
		features: f,
	}
}

func (h *Handler) RespondWithInternalServerError(c *gin.Context) {
	h.RespondWithJSON(c, http.StatusInternalServerError, internalServerErrorText, nil)
}

func (h *Handler) RespondWithJSON(c *gin.Context, code int, message string, data any) {
	success := code < 400

	r := response{
		Success: success,
		Message: message,
		Data:    data,
	}

	c.JSON(code, r)
}

// requestLogger returns the logger set by the router middleware.
func requestLogger(c *gin.Context) logger.Logger {
	if v, ok := c.Get("logger"); ok {
		if l, ok := v.(logger.Logger); ok {
			return l
		}
	}
	return logger.FromContext(c.Request.Context())
}
