package handlers

import (
	"net/http"

	"chantier-tracker/internal/middleware"
	"chantier-tracker/internal/models"
	"chantier-tracker/internal/services"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	Responder
	users *services.UserService
}

func NewUserHandler(r Responder, users *services.UserService) *UserHandler {
	return &UserHandler{Responder: r, users: users}
}

func (h *UserHandler) List(c *gin.Context) {
	f := services.UserFilter{Role: models.UserRole(c.Query("role"))}
	if !queryBool(c, "active", &f.Active) {
		return
	}
	users, err := h.users.List(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": users})
}

func (h *UserHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	u, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *UserHandler) Create(c *gin.Context) {
	var in services.UserInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}
	u, err := h.users.Create(c.Request.Context(), middleware.ActorFrom(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (h *UserHandler) Patch(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var patch services.UserPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}
	u, err := h.users.Update(c.Request.Context(), middleware.ActorFrom(c), id, patch)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

type passwordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// ChangePassword acts on the logged-in user only.
func (h *UserHandler) ChangePassword(c *gin.Context) {
	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "current_password and new_password are required", nil)
		return
	}
	actor := middleware.ActorFrom(c)
	if err := h.users.ChangePassword(c.Request.Context(), actor.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
