package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bhulekhchain/bridge/internal/anchor"
	"github.com/bhulekhchain/bridge/internal/fabric"
	"github.com/bhulekhchain/bridge/internal/registry/repository"
	"github.com/bhulekhchain/bridge/internal/registry/service"
)

// respondError maps a service error onto a structured JSON error body:
// {"error": <message>, "kind": <taxonomy kind>, "id": <entity id>}.
// Internal detail never leaks; unknown errors become a generic 500.
func respondError(c *gin.Context, err error, entityID string) {
	kind, status := classify(err)

	body := gin.H{"kind": kind}
	if entityID != "" {
		body["id"] = entityID
	}
	if status == http.StatusInternalServerError {
		body["error"] = "internal error"
	} else {
		body["error"] = err.Error()
	}
	c.JSON(status, body)
}

func classify(err error) (string, int) {
	switch {
	case errors.Is(err, service.ErrValidation):
		return "VALIDATION_ERROR", http.StatusBadRequest
	case errors.Is(err, repository.ErrPropertyNotFound),
		errors.Is(err, repository.ErrEncumbranceNotFound),
		errors.Is(err, repository.ErrInstitutionNotFound),
		errors.Is(err, anchor.ErrNotFound):
		return "NOT_FOUND", http.StatusNotFound
	case errors.Is(err, repository.ErrInstitutionExists):
		return "VALIDATION_ERROR", http.StatusConflict
	case errors.Is(err, service.ErrInvalidStateTransition):
		return "INVALID_STATE_TRANSITION", http.StatusConflict
	case errors.Is(err, service.ErrPropertyFrozen):
		return "LAND_FROZEN", http.StatusConflict
	case errors.Is(err, anchor.ErrAlreadyAnchored):
		return "ALREADY_ANCHORED", http.StatusConflict
	case errors.Is(err, fabric.ErrUnavailable):
		return "LEDGER_UNAVAILABLE", http.StatusServiceUnavailable
	case errors.Is(err, anchor.ErrConfirmationTimeout):
		return "CONFIRMATION_TIMEOUT", http.StatusGatewayTimeout
	case errors.Is(err, anchor.ErrInsufficientBalance):
		return "INSUFFICIENT_BALANCE", http.StatusServiceUnavailable
	case errors.Is(err, service.ErrBadCredentials):
		return "UNAUTHORIZED", http.StatusUnauthorized
	default:
		return "INTERNAL", http.StatusInternalServerError
	}
}
