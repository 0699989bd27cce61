package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dataherd/dataherd/internal/types"
)

// renderError maps the domain error taxonomy onto HTTP statuses. Anything
// outside the taxonomy is a 500 with a generic body; the detail goes to the
// log, not the client.
func (s *Server) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, types.ErrValidation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, types.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, types.ErrConflict), errors.Is(err, types.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, types.ErrTranslationUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		s.log.Error("internal error", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// badRequest covers malformed request bodies and parameters before any
// domain logic runs.
func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
