package article

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"collabwiki/internal/apperr"
	"collabwiki/internal/auth"
)

type Handler struct {
	Service  *Service
	Tokens   auth.TokenService
	Versions auth.TokenVersions
}

func NewHandler(svc *Service, tokens auth.TokenService, versions auth.TokenVersions) *Handler {
	return &Handler{Service: svc, Tokens: tokens, Versions: versions}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	optional := auth.Optional(h.Tokens, h.Versions)

	rg.POST("/contributions", optional, h.merge)
	rg.POST("/contributions/summary", optional, h.summarize)

	rg.GET("/articles", h.listArticles)
	rg.POST("/articles", optional, h.createArticle)
	rg.GET("/articles/:id/sections/:section/history", h.sectionHistory)
}

func (h *Handler) merge(c *gin.Context) {
	var req MergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	req.Contributor = auth.Contributor(c, req.Contributor)

	res, err := h.Service.Merge(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) summarize(c *gin.Context) {
	var req SummaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	req.Contributor = auth.Contributor(c, req.Contributor)

	res, err := h.Service.Summarize(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /api/articles
// GET /api/articles?title=Guide
func (h *Handler) listArticles(c *gin.Context) {
	if title, ok := c.GetQuery("title"); ok {
		a, err := h.Service.GetByTitle(c.Request.Context(), title)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, a)
		return
	}

	items, err := h.Service.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func (h *Handler) createArticle(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if claims := auth.MustGetClaims(c); claims != nil && strings.TrimSpace(req.Author.Name) == "" {
		req.Author.Name = claims.Name
	}

	a, err := h.Service.Create(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

type historyResponse struct {
	*SectionHistory
	CurrentContentHTML string `json:"current_content_html,omitempty"`
}

// GET /api/articles/:id/sections/:section/history?render=html
func (h *Handler) sectionHistory(c *gin.Context) {
	hist, err := h.Service.History(c.Request.Context(), c.Param("id"), c.Param("section"))
	if err != nil {
		writeError(c, err)
		return
	}

	resp := historyResponse{SectionHistory: hist}
	if c.Query("render") == "html" {
		html, err := RenderHTML(hist.CurrentContent)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "render failed"})
			return
		}
		resp.CurrentContentHTML = html
	}
	c.JSON(http.StatusOK, resp)
}

func writeError(c *gin.Context, err error) {
	c.JSON(apperr.HTTPStatus(err), gin.H{"error": apperr.Message(err)})
}
