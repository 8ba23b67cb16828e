package ledger

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/cash-flow/cash_flow/internal/money"
)

// Handler serves the transaction history read path. It queries the ledger
// directly; the transfer engine is not involved in reads.
type Handler struct {
	ledger Ledger
}

// NewHandler builds a ledger HTTP handler.
func NewHandler(led Ledger) *Handler {
	return &Handler{ledger: led}
}

type entryResponse struct {
	ID           string `json:"id"`
	Kind         string `json:"kind"`
	Type         string `json:"type"`
	Amount       string `json:"amount"`
	AmountMinor  int64  `json:"amount_minor"`
	Counterparty string `json:"counterparty,omitempty"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
}

// History lists the caller's ledger entries newest first with keyset
// pagination.
func (h *Handler) History(c *fiber.Ctx) error {
	uid, _ := c.Locals("account_id").(string)
	cursor := c.Query("cursor")
	limit := c.QueryInt("limit", 20)
	if limit > 100 {
		limit = 100
	}

	entries, next, err := h.ledger.ListByAccount(c.UserContext(), uid, cursor, limit)
	if err != nil {
		if errors.Is(err, ErrInvalidEntry) {
			return fiber.NewError(http.StatusBadRequest, "invalid cursor")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryResponse{
			ID:           e.ID,
			Kind:         string(e.Kind),
			Type:         string(e.Type),
			Amount:       money.Format(e.Amount),
			AmountMinor:  e.Amount,
			Counterparty: e.Counterparty,
			Status:       string(e.Status),
			CreatedAt:    e.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"transactions": out,
		"next_cursor":  next,
	})
}
