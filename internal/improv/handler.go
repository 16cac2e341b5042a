package improv

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"collabwiki/internal/apperr"
)

type Handler struct {
	Game *Game
}

func NewHandler(g *Game) *Handler {
	return &Handler{Game: g}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/improv", h.play)
}

func (h *Handler) play(c *gin.Context) {
	var t Turn
	if err := c.ShouldBindJSON(&t); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	reply, err := h.Game.Play(c.Request.Context(), t)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": apperr.Message(err)})
		return
	}
	c.JSON(http.StatusOK, reply)
}
