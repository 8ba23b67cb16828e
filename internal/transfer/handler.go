package transfer

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/cash-flow/cash_flow/internal/money"
)

// Handler exposes the transfer and deposit endpoints.
type Handler struct {
	engine *Engine
}

// NewHandler constructs a transfer handler.
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

type transferRequest struct {
	RecipientPhone string          `json:"recipient_phone"`
	Amount         json.RawMessage `json:"amount"`
}

type depositRequest struct {
	Amount json.RawMessage `json:"amount"`
}

// parseAmount accepts either a JSON string ("30.50") or a bare number and
// converts it to minor units without rounding.
func parseAmount(raw json.RawMessage) (int64, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, money.ErrMalformed
	}
	if strings.HasPrefix(s, `"`) {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return 0, money.ErrMalformed
		}
		s = unquoted
	}
	return money.Parse(s)
}

func rejected(c *fiber.Ctx, reason Reason) error {
	return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{
		"status": "rejected",
		"reason": string(reason),
	})
}

// Execute moves funds from the authenticated caller to the account behind
// recipient_phone.
func (h *Handler) Execute(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("account_id").(string)

	amount, err := parseAmount(req.Amount)
	if err != nil {
		return rejected(c, ReasonInvalidAmount)
	}

	res, err := h.engine.Execute(c.UserContext(), uid, req.RecipientPhone, amount)
	if err != nil {
		var rej *RejectedError
		if errors.As(err, &rej) {
			return rejected(c, rej.Reason)
		}
		return c.Status(http.StatusBadGateway).JSON(fiber.Map{
			"status": "failed",
			"reason": "transfer_failed",
		})
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"status":             "completed",
		"transfer_id":        res.TransferID,
		"new_sender_balance": money.Format(res.NewBalance),
		"completed_at":       res.CompletedAt,
	})
}

// Deposit credits the authenticated caller's account.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	var req depositRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("account_id").(string)

	amount, err := parseAmount(req.Amount)
	if err != nil {
		return rejected(c, ReasonInvalidAmount)
	}

	res, err := h.engine.Deposit(c.UserContext(), uid, amount)
	if err != nil {
		var rej *RejectedError
		if errors.As(err, &rej) {
			return rejected(c, rej.Reason)
		}
		return c.Status(http.StatusBadGateway).JSON(fiber.Map{
			"status": "failed",
			"reason": "transfer_failed",
		})
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"status":       "completed",
		"deposit_id":   res.TransferID,
		"new_balance":  money.Format(res.NewBalance),
		"completed_at": res.CompletedAt,
	})
}
