package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/geopoly/internal/core/domain"
	"github.com/samirrijal/geopoly/internal/pkg/logging"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // Error code: bad_request, not_found, internal_error, etc.
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusNotFound, "not_found", msg)
}

// errInternal returns a 500 error. The message must not leak internals.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

// errUnavailable returns a 503 error.
func errUnavailable(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusServiceUnavailable, "unavailable", msg)
}

// writeDomainError maps a usecase error onto the error envelope. Validation
// errors are returned to the client as 400; anything else is logged with the
// request logger and answered with the generic msg.
func writeDomainError(c *fiber.Ctx, err error, msg string) error {
	if domain.IsValidation(err) {
		return errBadRequest(c, err.Error())
	}
	logging.FromContext(c.UserContext()).Error(msg, "error", err)
	return errInternal(c, msg)
}

// publicError is writeDomainError for GraphQL resolvers.
func publicError(ctx context.Context, err error, msg string) error {
	if domain.IsValidation(err) {
		return err
	}
	logging.FromContext(ctx).Error(msg, "error", err)
	return errors.New(msg)
}
