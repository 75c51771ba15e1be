package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pissang/little-big-city/internal/infrastructure/http/v1/dto"
	"github.com/pissang/little-big-city/internal/pipeline"
)

func (h *Handler) GetConfig(c *gin.Context) {
	h.RespondWithJSON(c, http.StatusOK, "current settings", h.engine.Settings())
}

// UpdateConfig applies the posted settings on the pipeline. Radius and
// curveness changes rebuild the earth and start a new pass.
func (h *Handler) UpdateConfig(c *gin.Context) {
	l := requestLogger(c)

	var req dto.ConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Debug("bad config request", "error", err)
		h.RespondWithJSON(c, http.StatusBadRequest, ErrFailedToDecodeRequestBody.Error(), nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	settings, err := h.engine.Configure(c.Request.Context(), req.Update())
	switch {
	case errors.Is(err, pipeline.ErrInvalidUpdate):
		h.RespondWithJSON(c, http.StatusBadRequest, err.Error(), nil)
		return
	case errors.Is(err, pipeline.ErrStopped):
		h.RespondWithJSON(c, http.StatusServiceUnavailable, ErrEngineStopped.Error(), nil)
		return
	case err != nil:
		l.Error("failed to update settings", "error", err)
		h.RespondWithInternalServerError(c)
		return
	}

	h.RespondWithJSON(c, http.StatusOK, "settings updated", settings)
}
