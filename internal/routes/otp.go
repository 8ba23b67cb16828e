package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cash-flow/cash_flow/internal/otp"
)

// RegisterOTPRoutes wires the public phone verification endpoints.
func RegisterOTPRoutes(r fiber.Router, h *otp.Handler, rateLimit fiber.Handler) {
	r.Post("/otp/send", rateLimit, h.Send)
	r.Post("/otp/verify", h.Verify)
}
