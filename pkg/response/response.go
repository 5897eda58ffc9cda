package response

import "github.com/gofiber/fiber/v2"

// Error codes
const (
	CodeValidationError     = "VALIDATION_ERROR"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeNotFound            = "NOT_FOUND"
	CodeNoPlayableSource    = "NO_PLAYABLE_SOURCE"
	CodeInsufficientCredits = "INSUFFICIENT_CREDITS"
	CodeJobInFlight         = "JOB_IN_FLIGHT"
	CodeJobFailed           = "JOB_FAILED"
	CodeJobTimeout          = "JOB_TIMEOUT"
	CodeServiceError        = "SERVICE_ERROR"
)

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func Error(c *fiber.Ctx, status int, code, message string, details interface{}) error {
	return c.Status(status).JSON(ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func ValidationError(c *fiber.Ctx, message string, details interface{}) error {
	return Error(c, fiber.StatusBadRequest, CodeValidationError, message, details)
}

func Unauthorized(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusUnauthorized, CodeUnauthorized, message, nil)
}

func NotFound(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusNotFound, CodeNotFound, message, nil)
}

func NoPlayableSource(c *fiber.Ctx) error {
	return Error(c, fiber.StatusUnprocessableEntity, CodeNoPlayableSource,
		"Selected media has no playable source", nil)
}

func InsufficientCredits(c *fiber.Ctx, required, available int) error {
	return Error(c, fiber.StatusPaymentRequired, CodeInsufficientCredits,
		"Not enough credits for clip generation", fiber.Map{
			"required":  required,
			"available": available,
		})
}

func JobInFlight(c *fiber.Ctx) error {
	return Error(c, fiber.StatusConflict, CodeJobInFlight,
		"A generation job is already in flight", nil)
}

func ServiceError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, CodeServiceError, message, nil)
}

func OK(c *fiber.Ctx, data interface{}) error {
	return c.JSON(data)
}

func Accepted(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusAccepted).JSON(data)
}
