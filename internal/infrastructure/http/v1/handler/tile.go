package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func (h *Handler) Tile(c *gin.Context) {
	l := requestLogger(c)

	strX := c.Param("x")
	strY := c.Param("y")
	strZ := c.Param("z")

	x, err := strconv.Atoi(strX)
	if err != nil {
		l.Warn("invalid x parameter", "x", strX, "error", err)
		h.RespondWithJSON(c, http.StatusBadRequest, "x should be integer", nil)
		return
	}

	y, err := strconv.Atoi(strY)
	if err != nil {
		l.Warn("invalid y parameter", "y", strY, "error", err)
		h.RespondWithJSON(c, http.StatusBadRequest, "y should be integer", nil)
		return
	}

	z, err := strconv.Atoi(strZ)
	if err != nil {
		l.Warn("invalid z parameter", "z", strZ, "error", err)
		h.RespondWithJSON(c, http.StatusBadRequest, "z should be integer", nil)
		return
	}

	data, exists, err := h.tiles.GetCachedTile(c.Request.Context(), x, y, z)
	if err != nil {
		l.Error("failed to read cached tile", "z", z, "x", x, "y", y, "error", err)
		h.RespondWithInternalServerError(c)
		return
	}
	if !exists {
		h.RespondWithJSON(c, http.StatusNotFound, "tile not cached", nil)
		return
	}

	c.Data(http.StatusOK, "application/vnd.mapbox-vector-tile", data)
}
