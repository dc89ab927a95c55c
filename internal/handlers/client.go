package handlers

import (
	"net/http"

	"chantier-tracker/internal/middleware"
	"chantier-tracker/internal/services"

	"github.com/gin-gonic/gin"
)

type ClientHandler struct {
	Responder
	clients  *services.ClientService
	importer *services.Importer
}

func NewClientHandler(r Responder, clients *services.ClientService, importer *services.Importer) *ClientHandler {
	return &ClientHandler{Responder: r, clients: clients, importer: importer}
}

func (h *ClientHandler) List(c *gin.Context) {
	var limit, offset int
	if !queryInt(c, "limit", &limit) || !queryInt(c, "offset", &offset) {
		return
	}
	page, err := h.clients.List(c.Request.Context(), c.Query("q"), limit, offset)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *ClientHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	client, err := h.clients.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

func (h *ClientHandler) Create(c *gin.Context) {
	var in services.ClientInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}
	client, err := h.clients.Create(c.Request.Context(), middleware.ActorFrom(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, client)
}

func (h *ClientHandler) Update(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var in services.ClientInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}
	client, err := h.clients.Update(c.Request.Context(), middleware.ActorFrom(c), id, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

func (h *ClientHandler) Delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.clients.Delete(c.Request.Context(), middleware.ActorFrom(c), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ClientHandler) Import(c *gin.Context) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		badRequest(c, "missing file upload", err)
		return
	}
	defer file.Close()

	res, err := h.importer.ImportClients(c.Request.Context(), middleware.ActorFrom(c), file)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
