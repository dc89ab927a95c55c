package handlers

import (
	"fmt"
	"net/http"
	"time"

	"chantier-tracker/internal/middleware"
	"chantier-tracker/internal/models"
	"chantier-tracker/internal/progression"
	"chantier-tracker/internal/report"
	"chantier-tracker/internal/services"

	"github.com/gin-gonic/gin"
)

type ChantierHandler struct {
	Responder
	chantiers *services.ChantierService
	audit     *services.AuditLogger
	importer  *services.Importer
}

func NewChantierHandler(r Responder, chantiers *services.ChantierService, audit *services.AuditLogger, importer *services.Importer) *ChantierHandler {
	return &ChantierHandler{Responder: r, chantiers: chantiers, audit: audit, importer: importer}
}

// chantierView adds the derived dashboard bucket to a stored chantier.
type chantierView struct {
	models.Chantier
	DisplayStatus progression.DisplayBucket `json:"display_status"`
}

func viewOf(c models.Chantier, now time.Time) chantierView {
	return chantierView{Chantier: c, DisplayStatus: progression.DisplayStatus(c, now)}
}

func viewsOf(list []models.Chantier, now time.Time) []chantierView {
	out := make([]chantierView, len(list))
	for i, c := range list {
		out[i] = viewOf(c, now)
	}
	return out
}

func (h *ChantierHandler) List(c *gin.Context) {
	f := services.ChantierFilter{
		Status:   models.ChantierStatus(c.Query("status")),
		Priority: models.ChantierPriority(c.Query("priority")),
		Bucket:   progression.DisplayBucket(c.Query("display_status")),
		Query:    c.Query("q"),
	}
	if !queryUint(c, "client_id", &f.ClientID) ||
		!queryUint(c, "responsable_id", &f.ResponsableID) ||
		!queryInt(c, "limit", &f.Limit) ||
		!queryInt(c, "offset", &f.Offset) {
		return
	}

	page, err := h.chantiers.List(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items":  viewsOf(page.Items, h.chantiers.Now()),
		"total":  page.Total,
		"limit":  page.Limit,
		"offset": page.Offset,
	})
}

func (h *ChantierHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ch, err := h.chantiers.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(*ch, h.chantiers.Now()))
}

func (h *ChantierHandler) Create(c *gin.Context) {
	var in services.ChantierInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}
	ch, err := h.chantiers.Create(c.Request.Context(), middleware.ActorFrom(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewOf(*ch, h.chantiers.Now()))
}

func (h *ChantierHandler) Update(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var in services.ChantierInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}
	ch, err := h.chantiers.Update(c.Request.Context(), middleware.ActorFrom(c), id, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(*ch, h.chantiers.Now()))
}

func (h *ChantierHandler) Delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	removed, err := h.chantiers.Delete(c.Request.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "interventions_removed": removed})
}

func (h *ChantierHandler) History(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if _, err := h.chantiers.Get(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	logs, err := h.audit.History(c.Request.Context(), services.EntityChantier, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": logs})
}

func (h *ChantierHandler) Report(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ch, err := h.chantiers.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	pdf, err := report.ChantierPDF(*ch, h.chantiers.Now())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"chantier-%d.pdf\"", id))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func (h *ChantierHandler) Dashboard(c *gin.Context) {
	d, err := h.chantiers.Dashboard(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	now := h.chantiers.Now()
	buckets := make(map[progression.DisplayBucket][]chantierView, len(d.Buckets))
	for b, list := range d.Buckets {
		buckets[b] = viewsOf(list, now)
	}
	c.JSON(http.StatusOK, gin.H{
		"buckets":             buckets,
		"counts":              d.Counts,
		"total":               d.Total,
		"average_progression": d.AverageProgression,
	})
}

func (h *ChantierHandler) Import(c *gin.Context) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		badRequest(c, "missing file upload", err)
		return
	}
	defer file.Close()

	res, err := h.importer.ImportChantiers(c.Request.Context(), middleware.ActorFrom(c), file)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
