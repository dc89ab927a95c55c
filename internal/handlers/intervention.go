package handlers

import (
	"net/http"

	"chantier-tracker/internal/middleware"
	"chantier-tracker/internal/models"
	"chantier-tracker/internal/services"

	"github.com/gin-gonic/gin"
)

type InterventionHandler struct {
	Responder
	interventions *services.InterventionService
}

func NewInterventionHandler(r Responder, interventions *services.InterventionService) *InterventionHandler {
	return &InterventionHandler{Responder: r, interventions: interventions}
}

func (h *InterventionHandler) List(c *gin.Context) {
	f := services.InterventionFilter{Status: models.InterventionStatus(c.Query("status"))}
	if !queryUint(c, "chantier_id", &f.ChantierID) ||
		!queryUint(c, "technicien_id", &f.TechnicienID) ||
		!queryDate(c, "from", &f.From) ||
		!queryDate(c, "to", &f.To) ||
		!queryInt(c, "limit", &f.Limit) ||
		!queryInt(c, "offset", &f.Offset) {
		return
	}
	page, err := h.interventions.List(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *InterventionHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	iv, err := h.interventions.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, iv)
}

func (h *InterventionHandler) Create(c *gin.Context) {
	var in services.InterventionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}
	iv, err := h.interventions.Create(c.Request.Context(), middleware.ActorFrom(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, iv)
}

func (h *InterventionHandler) Patch(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var patch services.InterventionPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}
	iv, err := h.interventions.Update(c.Request.Context(), middleware.ActorFrom(c), id, patch)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, iv)
}

func (h *InterventionHandler) Delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.interventions.Delete(c.Request.Context(), middleware.ActorFrom(c), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
