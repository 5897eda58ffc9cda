package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/clipforge/api/internal/ledger"
	"github.com/clipforge/api/internal/middleware"
	"github.com/clipforge/api/pkg/response"
)

type CreditsHandler struct {
	guard     *ledger.Guard
	validator *validator.Validate
}

type grantRequest struct {
	Units int `json:"units" validate:"required,min=1,max=100000"`
}

type balanceResponse struct {
	Balance int `json:"balance"`
}

func NewCreditsHandler(guard *ledger.Guard, v *validator.Validate) *CreditsHandler {
	return &CreditsHandler{
		guard:     guard,
		validator: v,
	}
}

// Balance handles GET /api/credits
func (h *CreditsHandler) Balance(c *fiber.Ctx) error {
	balance, err := h.guard.Balance(c.Context(), middleware.GetAccountID(c))
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, balanceResponse{Balance: balance})
}

// Grant handles POST /api/credits/grant
func (h *CreditsHandler) Grant(c *fiber.Ctx) error {
	var req grantRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	balance, err := h.guard.Grant(c.Context(), middleware.GetAccountID(c), req.Units)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, balanceResponse{Balance: balance})
}
