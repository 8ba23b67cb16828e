package otp

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/cash-flow/cash_flow/internal/money"
)

// Handler exposes the public OTP endpoints.
type Handler struct {
	svc *Service
}

// NewHandler constructs an OTP handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type sendRequest struct {
	Phone string `json:"phone"`
}

// Send requests a verification code for a phone number.
func (h *Handler) Send(c *fiber.Ctx) error {
	var req sendRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Send(c.UserContext(), req.Phone); err != nil {
		if errors.Is(err, ErrBadPhone) {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, "failed to send code")
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "sent"})
}

type verifyRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

// Verify redeems a code for a token pair, creating the account on first use.
func (h *Handler) Verify(c *fiber.Ctx) error {
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	acct, pair, err := h.svc.Verify(c.UserContext(), req.Phone, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, ErrBadPhone):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrNoCode), errors.Is(err, ErrCodeMismatch):
			return fiber.NewError(http.StatusUnauthorized, "invalid or expired code")
		default:
			return fiber.NewError(http.StatusInternalServerError, "verification failed")
		}
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"expires_in":    pair.ExpiresIn,
		"account": fiber.Map{
			"account_id": acct.ID,
			"phone":      acct.Phone,
			"name":       acct.DisplayName,
			"birthdate":  acct.Birthdate,
			"balance":    money.Format(acct.Balance),
		},
	})
}
