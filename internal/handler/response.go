package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/deadline-tracker/pkg/errors"
)

// OK writes a success envelope.
func OK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"status": "success", "data": data})
}

// Error maps application error kinds to HTTP status codes.
func Error(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.IsCode(err, errors.ErrValidation):
		status = http.StatusBadRequest
	case errors.IsCode(err, errors.ErrNotFound):
		status = http.StatusNotFound
	case errors.IsCode(err, errors.ErrConflict):
		status = http.StatusConflict
	case errors.IsCode(err, errors.ErrUnauthorized):
		status = http.StatusUnauthorized
	}
	c.JSON(status, gin.H{"status": "error", "message": err.Error()})
}
