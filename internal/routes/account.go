package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cash-flow/cash_flow/internal/account"
)

// RegisterAccountRoutes wires balance, lookup and profile endpoints.
func RegisterAccountRoutes(r fiber.Router, h *account.Handler) {
	r.Get("/wallet", h.Wallet)
	r.Get("/users/lookup", h.Lookup)
	r.Get("/me", h.Me)
	r.Put("/me", h.UpdateMe)
}
