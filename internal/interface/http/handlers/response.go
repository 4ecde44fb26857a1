// Package handlers contains the REST handlers, middleware and response
// helpers of the compliance API.
package handlers

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/nursetrack/clinical-hours/internal/domain/shared"
	"github.com/nursetrack/clinical-hours/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE ENVELOPE
// Every response is {code, status, message, data|errors}.
// ══════════════════════════════════════════════════════════════════════════════

// Success writes a 200 response.
func Success(c *fiber.Ctx, message string, data interface{}) error {
	return SuccessWithCode(c, fiber.StatusOK, message, data)
}

// SuccessWithCode writes a success response with a custom status code.
func SuccessWithCode(c *fiber.Ctx, code int, message string, data interface{}) error {
	return c.Status(code).JSON(fiber.Map{
		"code":    code,
		"status":  "success",
		"message": message,
		"data":    data,
	})
}

// Error writes an error response without details.
func Error(c *fiber.Ctx, code int, message string) error {
	return c.Status(code).JSON(fiber.Map{
		"code":    code,
		"status":  "error",
		"message": message,
	})
}

// ErrorWithDetails writes an error response carrying per-field details.
func ErrorWithDetails(c *fiber.Ctx, code int, message string, details interface{}) error {
	return c.Status(code).JSON(fiber.Map{
		"code":    code,
		"status":  "error",
		"message": message,
		"errors":  details,
	})
}

// FromError maps an application error to its response:
// validation 400, not found 404, conflict 409, balance 422, anything else 500.
func FromError(c *fiber.Ctx, err error) error {
	var (
		ve   *shared.ValidationError
		be   *shared.BalanceError
		vErr validator.ValidationErrors
		fErr *fiber.Error
	)

	switch {
	case errors.As(err, &ve):
		return ErrorWithDetails(c, fiber.StatusBadRequest, "validation failed", ve.Violations)
	case errors.As(err, &vErr):
		fields := make(map[string]string, len(vErr))
		for _, fe := range vErr {
			fields[fe.Field()] = fe.Tag()
		}
		return ErrorWithDetails(c, fiber.StatusBadRequest, "validation failed", fields)
	case errors.As(err, &be):
		return ErrorWithDetails(c, fiber.StatusUnprocessableEntity, be.Error(), fiber.Map{
			"record_id": be.RecordID,
			"requested": be.Requested,
			"remaining": be.Remaining,
		})
	case shared.IsValidation(err):
		return Error(c, fiber.StatusBadRequest, err.Error())
	case shared.IsNotFound(err):
		return Error(c, fiber.StatusNotFound, err.Error())
	case shared.IsConflict(err), shared.IsAlreadyExists(err):
		return Error(c, fiber.StatusConflict, err.Error())
	case shared.IsBalance(err):
		return Error(c, fiber.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &fErr):
		return Error(c, fErr.Code, fErr.Message)
	}

	logger.FromContext(c.UserContext()).Error("request failed",
		logger.String("method", c.Method()),
		logger.String("path", c.Path()),
		logger.Err(err),
	)
	return Error(c, fiber.StatusInternalServerError, "internal server error")
}

// ErrorHandler is the fiber.Config error handler.
func ErrorHandler(c *fiber.Ctx, err error) error {
	return FromError(c, err)
}
