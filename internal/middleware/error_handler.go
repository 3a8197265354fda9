package middleware

import (
	"log/slog"
	"time"

	"chatcore/internal/errors"

	"github.com/gofiber/fiber/v2"
)

// ErrorResponse is the JSON body returned by the fiber error handler for
// the small HTTP surface chat-core exposes (health, status) alongside the
// WebSocket endpoint.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Code      int       `json:"code"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// ErrorHandler is a centralized error handler middleware for chat-core's
// fiber-served HTTP surface.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		requestID, _ := c.Locals("requestID").(string)
		if requestID == "" {
			requestID = c.Get("X-Request-ID")
		}

		slog.Error("request failed",
			"error", err,
			"method", c.Method(),
			"path", c.Path(),
			"request_id", requestID,
		)

		if appErr, ok := errors.IsAppError(err); ok {
			return c.Status(appErr.StatusCode()).JSON(ErrorResponse{
				Error:     string(appErr.Code),
				Message:   appErr.Message,
				Code:      appErr.StatusCode(),
				Timestamp: appErr.Timestamp,
				RequestID: requestID,
			})
		}

		if fiberErr, ok := err.(*fiber.Error); ok {
			code := errors.ErrInternalServer
			switch fiberErr.Code {
			case fiber.StatusBadRequest:
				code = errors.ErrBadRequest
			case fiber.StatusNotFound:
				code = errors.ErrNotFound
			case fiber.StatusServiceUnavailable:
				code = errors.ErrServiceNotInitialized
			}

			return c.Status(fiberErr.Code).JSON(ErrorResponse{
				Error:     string(code),
				Message:   fiberErr.Message,
				Code:      fiberErr.Code,
				Timestamp: time.Now(),
				RequestID: requestID,
			})
		}

		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:     string(errors.ErrInternalServer),
			Message:   "An unexpected error occurred",
			Code:      fiber.StatusInternalServerError,
			Timestamp: time.Now(),
			RequestID: requestID,
		})
	}
}
