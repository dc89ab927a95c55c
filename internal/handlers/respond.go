package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"chantier-tracker/internal/middleware"
	"chantier-tracker/internal/services"

	"github.com/gin-gonic/gin"
)

// Responder turns service errors into JSON responses. Internal error text
// is only sent back when exposeErrors is set (outside production).
type Responder struct {
	log          *slog.Logger
	exposeErrors bool
}

func NewResponder(log *slog.Logger, exposeErrors bool) Responder {
	return Responder{log: log, exposeErrors: exposeErrors}
}

func (r Responder) fail(c *gin.Context, err error) {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "details": ve.Fields})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidCredentials), errors.Is(err, services.ErrInactiveUser):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		r.log.Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"request_id", middleware.RequestIDFrom(c),
			"error", err)
		body := gin.H{"error": "internal server error"}
		if r.exposeErrors {
			body["details"] = err.Error()
		}
		c.JSON(http.StatusInternalServerError, body)
	}
}

func badRequest(c *gin.Context, msg string, err error) {
	body := gin.H{"error": msg}
	if err != nil {
		body["details"] = err.Error()
	}
	c.JSON(http.StatusBadRequest, body)
}

// idParam reads a positive numeric path parameter or answers 400.
func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "invalid "+name, nil)
		return 0, false
	}
	return uint(id), true
}

// query helpers leave the destination untouched when the key is absent.

func queryUint(c *gin.Context, key string, dst *uint) bool {
	v := c.Query(key)
	if v == "" {
		return true
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		badRequest(c, "invalid query parameter "+key, nil)
		return false
	}
	*dst = uint(n)
	return true
}

func queryInt(c *gin.Context, key string, dst *int) bool {
	v := c.Query(key)
	if v == "" {
		return true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		badRequest(c, "invalid query parameter "+key, nil)
		return false
	}
	*dst = n
	return true
}

func queryBool(c *gin.Context, key string, dst **bool) bool {
	v := c.Query(key)
	if v == "" {
		return true
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		badRequest(c, "invalid query parameter "+key, nil)
		return false
	}
	*dst = &b
	return true
}

// queryDate accepts 2006-01-02 or RFC 3339.
func queryDate(c *gin.Context, key string, dst **time.Time) bool {
	v := c.Query(key)
	if v == "" {
		return true
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		t, err = time.Parse(time.RFC3339, v)
	}
	if err != nil {
		badRequest(c, "invalid query parameter "+key, nil)
		return false
	}
	*dst = &t
	return true
}
