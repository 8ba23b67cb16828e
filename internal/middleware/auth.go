package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/cash-flow/cash_flow/internal/auth"
)

// Auth is the session gate: it resolves the bearer credential to an account
// id before any protected handler runs, and fails closed on anything it
// cannot verify.
func Auth(tokens *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		tokenStr := strings.TrimSpace(authz[len("Bearer "):])

		acct, err := tokens.Resolve(c.UserContext(), tokenStr)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}

		c.Locals("account_id", acct.ID)
		c.Locals("account_phone", acct.Phone)
		return c.Next()
	}
}
