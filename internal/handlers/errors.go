package handlers

import (
	"errors"
	"net/http"

	"fundwatch/internal/models"

	"github.com/gin-gonic/gin"
)

// statusFor is the only place error kinds become HTTP status codes.
func statusFor(kind models.ErrorKind) int {
	switch kind {
	case models.KindValidation:
		return http.StatusBadRequest
	case models.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	detail := "internal error"

	var appErr *models.Error
	if errors.As(err, &appErr) {
		status = statusFor(appErr.Kind)
		detail = appErr.Detail()
	}

	if status >= http.StatusInternalServerError {
		h.log.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	} else {
		h.log.Warnf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"code": status, "detail": detail})
}
