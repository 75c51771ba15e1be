package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pissang/little-big-city/internal/infrastructure/http/v1/dto"
	"github.com/pissang/little-big-city/internal/scene"
)

func (h *Handler) Scene(c *gin.Context) {
	h.RespondWithJSON(c, http.StatusOK, "scene snapshot", dto.SceneResponse{
		Entries: h.scene.Snapshot(),
	})
}

func (h *Handler) Mesh(c *gin.Context) {
	node, err := scene.ParseNode(c.Param("node"))
	if err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	// Tile keys contain slashes, so the route captures the rest of the path.
	key := c.Param("key")
	if len(key) > 0 && key[0] == '/' {
		key = key[1:]
	}

	e, ok := h.scene.Entry(node, key)
	if !ok {
		h.RespondWithJSON(c, http.StatusNotFound, "mesh not found", nil)
		return
	}

	h.RespondWithJSON(c, http.StatusOK, "mesh", dto.NewMeshResponse(e))
}

func (h *Handler) Cache(c *gin.Context) {
	h.RespondWithJSON(c, http.StatusOK, "feature cache", h.features.Stats())
}
