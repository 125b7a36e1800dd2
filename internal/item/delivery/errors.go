package delivery

import (
	"errors"
	"net/http"

	"triage-backend/internal/item/capture"
	"triage-backend/internal/item/domain"
	"triage-backend/internal/item/session"
	"triage-backend/internal/item/usecase"

	"github.com/gin-gonic/gin"
)

// StatusFor maps a domain error onto an HTTP status and a client message
func StatusFor(err error) (int, string) {
	var (
		validation     *domain.ValidationError
		classification *domain.ClassificationError
		store          *domain.StoreError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, validation.Error()
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, session.ErrSessionClosed):
		return http.StatusNotFound, "Session not found"
	case errors.Is(err, domain.ErrItemNotFound):
		return http.StatusNotFound, "Item not found"
	case errors.Is(err, capture.ErrCaptureInFlight):
		return http.StatusConflict, err.Error()
	case errors.As(err, &classification):
		return http.StatusBadGateway, "Classification failed"
	case errors.As(err, &store):
		return http.StatusServiceUnavailable, "Store unavailable"
	case errors.Is(err, usecase.ErrSemanticUnavailable):
		return http.StatusServiceUnavailable, err.Error()
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func respondError(c *gin.Context, err error) {
	status, msg := StatusFor(err)
	c.JSON(status, gin.H{"error": msg})
}
