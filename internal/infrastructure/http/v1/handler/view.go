package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pissang/little-big-city/internal/infrastructure/http/v1/dto"
	"github.com/pissang/little-big-city/internal/pipeline"
)

// SetView schedules a debounced regeneration around the posted center.
func (h *Handler) SetView(c *gin.Context) {
	l := requestLogger(c)

	var req dto.ViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Debug("bad view request", "error", err)
		h.RespondWithJSON(c, http.StatusBadRequest, ErrFailedToDecodeRequestBody.Error(), nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	v := req.View()
	if err := h.engine.Schedule(c.Request.Context(), v); err != nil {
		if errors.Is(err, pipeline.ErrStopped) {
			h.RespondWithJSON(c, http.StatusServiceUnavailable, ErrEngineStopped.Error(), nil)
			return
		}
		l.Error("failed to schedule regeneration", "error", err)
		h.RespondWithInternalServerError(c)
		return
	}

	h.RespondWithJSON(c, http.StatusAccepted, "regeneration scheduled", v)
}

func (h *Handler) GetView(c *gin.Context) {
	h.RespondWithJSON(c, http.StatusOK, "current view", dto.ViewResponse{
		View:  h.engine.View(),
		Stats: h.engine.Stats(),
	})
}
