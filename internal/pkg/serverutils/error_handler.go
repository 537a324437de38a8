package serverutils

import (
	"errors"

	"sales-offers-billing/internal/pkg/apperror"

	"github.com/gofiber/fiber/v2"
)

// StatusFor maps domain errors onto HTTP status codes.
func StatusFor(err error) int {
	var quotaErr *apperror.QuotaExceededError
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	case errors.Is(err, apperror.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, apperror.ErrConflict),
		errors.Is(err, apperror.ErrRejectedByGateway),
		errors.Is(err, apperror.ErrSignatureInvalid),
		errors.Is(err, apperror.ErrPlanNotConfigured),
		errors.Is(err, apperror.ErrInvalidInput):
		return fiber.StatusBadRequest
	case errors.As(err, &quotaErr):
		return fiber.StatusForbidden
	case errors.Is(err, apperror.ErrGatewayUnavailable):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler is installed as fiber.Config.ErrorHandler.
func ErrorHandler(ctx *fiber.Ctx, err error) error {
	code := StatusFor(err)
	message := err.Error()
	if code == fiber.StatusInternalServerError {
		message = "Internal server error"
	}
	return ctx.Status(code).JSON(ErrorResponse(code, message))
}
