package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/clipforge/api/internal/ledger"
	"github.com/clipforge/api/internal/middleware"
	"github.com/clipforge/api/internal/model"
	"github.com/clipforge/api/internal/orchestrator"
	"github.com/clipforge/api/internal/service"
	"github.com/clipforge/api/pkg/response"
)

type GenerateHandler struct {
	facade    *orchestrator.Facade
	validator *validator.Validate
}

func NewGenerateHandler(facade *orchestrator.Facade, v *validator.Validate) *GenerateHandler {
	return &GenerateHandler{
		facade:    facade,
		validator: v,
	}
}

// Intake handles GET /api/clips/intake/:mediaId
func (h *GenerateHandler) Intake(c *fiber.Ctx) error {
	mediaID := c.Params("mediaId")
	if mediaID == "" {
		return response.ValidationError(c, "Media ID is required", nil)
	}

	view := h.facade.Intake(c.Context(), middleware.GetAccountID(c), mediaID)
	return response.OK(c, view)
}

// Generate handles POST /api/clips/generate
func (h *GenerateHandler) Generate(c *fiber.Ctx) error {
	var req model.GenerateClipsRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.facade.Start(c.Context(), middleware.GetAccountID(c), req.MediaID)
	if err != nil {
		var insufficient *ledger.InsufficientError
		switch {
		case errors.As(err, &insufficient):
			return response.InsufficientCredits(c, insufficient.Required, insufficient.Available)
		case errors.Is(err, orchestrator.ErrNoPlayableSource):
			return response.NoPlayableSource(c)
		case errors.Is(err, service.ErrJobActive):
			return response.JobInFlight(c)
		default:
			return response.ServiceError(c, err.Error())
		}
	}

	return response.Accepted(c, result)
}

// Status handles GET /api/clips/generate/:jobId
func (h *GenerateHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	view, err := h.facade.Processing(c.Context(), middleware.GetAccountID(c), jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, view)
}

// Cancel handles POST /api/clips/generate/:jobId/cancel
func (h *GenerateHandler) Cancel(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.facade.Cancel(c.Context(), middleware.GetAccountID(c), jobID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrJobNotFound):
			return response.NotFound(c, "Job not found")
		case errors.Is(err, service.ErrJobFinished):
			return response.ValidationError(c, "Job already finished", nil)
		default:
			return response.ServiceError(c, err.Error())
		}
	}

	return response.OK(c, result)
}

// Gallery handles GET /api/clips/gallery
func (h *GenerateHandler) Gallery(c *fiber.Ctx) error {
	jobID := c.Query("jobId")

	view, err := h.facade.Gallery(c.Context(), jobID)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, view)
}

// formatValidationErrors formats validator errors for response
func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
