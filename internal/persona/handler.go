package persona

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"collabwiki/internal/apperr"
)

type Handler struct {
	Service *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Service: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/personas", h.list)
	rg.POST("/ask/:persona", h.ask)

	// Older clients call fixed paths and expect the bare answer object.
	rg.POST("/respond-to-chat", h.legacy("relationship"))
	rg.POST("/ask-ai", h.legacy("assistant"))
}

func (h *Handler) list(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": h.Service.Personas()})
}

func (h *Handler) ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	res, err := h.Service.Ask(c.Request.Context(), c.Param("persona"), req)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": apperr.Message(err)})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) legacy(personaID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}

		res, err := h.Service.Ask(c.Request.Context(), personaID, req)
		if err != nil {
			c.JSON(apperr.HTTPStatus(err), gin.H{"error": apperr.Message(err)})
			return
		}
		c.JSON(http.StatusOK, res.Answer)
	}
}
