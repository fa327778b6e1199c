package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"deepdive/internal/application"
	"deepdive/internal/coach"
	"deepdive/internal/storage"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, application.ErrInvalidInput),
		errors.Is(err, coach.ErrInvalidTone),
		errors.Is(err, coach.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrAuthRequired):
		return http.StatusUnauthorized
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, storage.ErrNoSparring),
		errors.Is(err, coach.ErrPersonNotFound),
		errors.Is(err, application.ErrNoAdoptedDraft):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// fail writes {"error": ...}. Internal errors are logged and their details
// withheld from the client.
func (s *Server) fail(c *gin.Context, err error, what string) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.log.Error(what, zap.String("path", c.FullPath()), zap.Error(err))
		msg = what
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func (s *Server) badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
}
