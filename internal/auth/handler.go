package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"collabwiki/internal/apperr"
)

// Handler serves contributor account routes.
type Handler struct {
	Accounts *Accounts
}

func NewHandler(accounts *Accounts) *Handler {
	return &Handler{Accounts: accounts}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	required := Required(h.Accounts.tokens, h.Accounts.store)

	rg.POST("/register", h.register)
	rg.POST("/login", h.login)
	rg.GET("/me", required, h.me)
	rg.POST("/change-password", required, h.changePassword)
	rg.POST("/logout", required, h.logout)
}

func (h *Handler) register(c *gin.Context) {
	var req Registration
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	sess, err := h.Accounts.Register(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

func (h *Handler) login(c *gin.Context) {
	var req Credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	sess, err := h.Accounts.Login(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *Handler) me(c *gin.Context) {
	p, err := h.Accounts.Profile(c.Request.Context(), MustGetClaims(c).AccountID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) changePassword(c *gin.Context) {
	var req PasswordChange
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := h.Accounts.ChangePassword(c.Request.Context(), MustGetClaims(c).AccountID, req); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "password updated"})
}

func (h *Handler) logout(c *gin.Context) {
	if err := h.Accounts.Logout(c.Request.Context(), MustGetClaims(c).AccountID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

func writeError(c *gin.Context, err error) {
	c.JSON(apperr.HTTPStatus(err), gin.H{"error": apperr.Message(err)})
}
