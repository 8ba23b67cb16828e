package account

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/cash-flow/cash_flow/internal/money"
)

// Handler exposes account HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds an account HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Wallet returns the caller's balance.
func (h *Handler) Wallet(c *fiber.Ctx) error {
	uid, _ := c.Locals("account_id").(string)
	bal, err := h.service.Balance(c.UserContext(), uid)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "account not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"balance":       money.Format(bal.Amount),
		"balance_minor": bal.Amount,
		"as_of":         bal.AsOf,
	})
}

// Lookup resolves a phone number to a recipient name before sending money.
func (h *Handler) Lookup(c *fiber.Ctx) error {
	phone := c.Query("phone")
	if phone == "" {
		return fiber.NewError(http.StatusBadRequest, "phone is required")
	}
	acct, err := h.service.Lookup(c.UserContext(), phone)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "user not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"name":  acct.DisplayName,
		"phone": acct.Phone,
	})
}

type profileResponse struct {
	AccountID string `json:"account_id"`
	Phone     string `json:"phone"`
	Name      string `json:"name,omitempty"`
	Birthdate string `json:"birthdate,omitempty"`
	Balance   string `json:"balance"`
	CreatedAt string `json:"created_at"`
}

func toProfile(acct Account) profileResponse {
	return profileResponse{
		AccountID: acct.ID,
		Phone:     acct.Phone,
		Name:      acct.DisplayName,
		Birthdate: acct.Birthdate,
		Balance:   money.Format(acct.Balance),
		CreatedAt: acct.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// Me returns the caller's profile.
func (h *Handler) Me(c *fiber.Ctx) error {
	uid, _ := c.Locals("account_id").(string)
	acct, err := h.service.Get(c.UserContext(), uid)
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, "account not found")
	}
	return c.Status(http.StatusOK).JSON(toProfile(acct))
}

type updateProfileRequest struct {
	Name      string `json:"name"`
	Birthdate string `json:"birthdate"`
}

// UpdateMe completes the caller's profile.
func (h *Handler) UpdateMe(c *fiber.Ctx) error {
	var req updateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("account_id").(string)
	acct, err := h.service.UpdateProfile(c.UserContext(), uid, req.Name, req.Birthdate)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "account not found")
		}
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusOK).JSON(toProfile(acct))
}
