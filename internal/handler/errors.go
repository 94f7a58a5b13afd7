package handler

import (
	"errors"
	"net/http"

	"adgrid/internal/service"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrSignature):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// details exposes the raw cause only for server errors in development.
func details(err error, status int, expose bool) string {
	if !expose || status < http.StatusInternalServerError {
		return ""
	}
	return err.Error()
}
