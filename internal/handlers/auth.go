package handlers

import (
	"net/http"
	"strings"
	"time"

	"chantier-tracker/internal/auth"
	"chantier-tracker/internal/middleware"
	"chantier-tracker/internal/models"
	"chantier-tracker/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	Responder
	users  *services.UserService
	tokens *auth.TokenIssuer
}

func NewAuthHandler(r Responder, users *services.UserService, tokens *auth.TokenIssuer) *AuthHandler {
	return &AuthHandler{Responder: r, users: users, tokens: tokens}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// Login returns a bearer token and also opens a cookie session for
// browser clients.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email and password are required", nil)
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.log.Info("login refused", "email", maskEmail(req.Email), "error", err)
		h.fail(c, err)
		return
	}

	token, expires, err := h.tokens.Issue(user)
	if err != nil {
		h.fail(c, err)
		return
	}

	sess := sessions.Default(c)
	sess.Set(middleware.SessionUserKey, user.ID)
	if err := sess.Save(); err != nil {
		h.log.Warn("failed to save session", "user_id", user.ID, "error", err)
	}

	c.JSON(http.StatusOK, loginResponse{Token: token, ExpiresAt: expires, User: user})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	sess := sessions.Default(c)
	sess.Clear()
	sess.Options(sessions.Options{Path: "/", MaxAge: -1})
	_ = sess.Save()
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	c.JSON(http.StatusOK, user)
}

// maskEmail keeps the first two characters of the local part for logs.
func maskEmail(email string) string {
	local, domain, found := strings.Cut(strings.TrimSpace(email), "@")
	if !found || local == "" {
		return "***"
	}
	runes := []rune(local)
	if len(runes) <= 2 {
		return local + "***@" + domain
	}
	return string(runes[:2]) + "***@" + domain
}
