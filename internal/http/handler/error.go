package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"captionapi/internal/http/middleware"
	"captionapi/internal/service"
	"captionapi/internal/storage"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response.
//
// Parameters:
// - status: HTTP status code to return
// - code: machine-readable short error code (e.g., "INVALID_ID", "NOT_FOUND", "INTERNAL_ERROR")
// - message: human-readable message
func writeError(c *fiber.Ctx, status int, code, message string) error {
	res := errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	}
	return c.Status(status).JSON(res)
}

// mapServiceError resolves the status and code of errors the service
// reports for bad input or missing resources.
func mapServiceError(err error) (status int, code, message string, ok bool) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return fiber.StatusNotFound, "NOT_FOUND", "caption not found", true
	case errors.Is(err, service.ErrLanguageRequired):
		return fiber.StatusBadRequest, "LANGUAGE_REQUIRED", "language is required", true
	case errors.Is(err, service.ErrUnsupportedLanguage):
		return fiber.StatusBadRequest, "UNSUPPORTED_LANGUAGE", err.Error(), true
	case errors.Is(err, service.ErrReaderNil):
		return fiber.StatusBadRequest, "IMAGE_REQUIRED", "No image uploaded", true
	case errors.Is(err, service.ErrInvalidImage):
		return fiber.StatusBadRequest, "INVALID_IMAGE", err.Error(), true
	case errors.Is(err, service.ErrImageTooLarge):
		return fiber.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", err.Error(), true
	case errors.Is(err, service.ErrInvalidArtifact):
		return fiber.StatusBadRequest, "INVALID_ARTIFACT", "unknown artifact kind", true
	case errors.Is(err, storage.ErrPresignUnsupported):
		return fiber.StatusNotImplemented, "NOT_IMPLEMENTED", err.Error(), true
	}
	return 0, "", "", false
}

// writeServiceError writes mapped service errors and hides everything else
// behind a generic 500.
func writeServiceError(c *fiber.Ctx, err error) error {
	if status, code, msg, ok := mapServiceError(err); ok {
		return writeError(c, status, code, msg)
	}
	return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
}

// writePipelineError is writeServiceError for POST /process, where a failed
// model or storage call is reported with its own message.
func writePipelineError(c *fiber.Ctx, err error) error {
	if status, code, msg, ok := mapServiceError(err); ok {
		return writeError(c, status, code, msg)
	}
	return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var e *fiber.Error
		if errors.As(err, &e) {
			status = e.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "PAYLOAD_TOO_LARGE", "request body too large")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
