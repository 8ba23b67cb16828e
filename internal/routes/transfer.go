package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cash-flow/cash_flow/internal/ledger"
	"github.com/cash-flow/cash_flow/internal/transfer"
)

// RegisterTransferRoutes wires the transfer engine and history endpoints.
func RegisterTransferRoutes(r fiber.Router, h *transfer.Handler, history *ledger.Handler) {
	r.Post("/transfer", h.Execute)
	r.Post("/deposit", h.Deposit)
	r.Get("/transactions", history.History)
}
