package utils

import (
	appErrors "stakeoption/internal/errors"

	"github.com/gofiber/fiber/v2"
)

// Respond sends a JSON response with the specified status code.
func Respond(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(data)
}

// Success sends a successful JSON response.
func Success(c *fiber.Ctx, data interface{}) error {
	return Respond(c, fiber.StatusOK, data)
}

func Created(c *fiber.Ctx, data interface{}) error {
	return Respond(c, fiber.StatusCreated, data)
}

// BadRequest sends a JSON error response with status 400.
func BadRequest(c *fiber.Ctx, message string) error {
	return Respond(c, fiber.StatusBadRequest, fiber.Map{"error": message, "code": "VALIDATION_ERROR"})
}

// Unauthorized sends a JSON error response with status 401.
func Unauthorized(c *fiber.Ctx, message string) error {
	return Respond(c, fiber.StatusUnauthorized, fiber.Map{"error": message, "code": "UNAUTHORIZED"})
}

// Forbidden sends a JSON error response with status 403.
func Forbidden(c *fiber.Ctx, message string) error {
	return Respond(c, fiber.StatusForbidden, fiber.Map{"error": message, "code": "FORBIDDEN"})
}

// Error maps a domain error to its status and code. Anything else becomes a
// 500 without leaking the internal message.
func Error(c *fiber.Ctx, err error) error {
	status, code := appErrors.HTTPStatus(err)
	message := err.Error()
	if status == fiber.StatusInternalServerError {
		message = "internal server error"
	}
	return Respond(c, status, fiber.Map{"error": message, "code": code})
}

// ValidationFailed reports per-field input errors with status 400.
func ValidationFailed(c *fiber.Ctx, fields map[string]string) error {
	return Respond(c, fiber.StatusBadRequest, fiber.Map{
		"error":  "validation failed",
		"code":   "VALIDATION_ERROR",
		"fields": fields,
	})
}
