package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes token refresh and logout endpoints.
type Handler struct {
	svc *Service
}

// NewHandler constructs the auth handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh issues a new access token using a valid refresh token.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	token, exp, err := h.svc.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, "invalid refresh token")
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"access_token": token, "expires_in": exp})
}

// Logout invalidates the caller's outstanding tokens.
func (h *Handler) Logout(c *fiber.Ctx) error {
	uid, _ := c.Locals("account_id").(string)
	if uid == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthenticated")
	}
	if err := h.svc.Logout(c.UserContext(), uid); err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "logged_out"})
}
