package middleware

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/cash-flow/cash_flow/internal/account"
	"github.com/cash-flow/cash_flow/internal/auth"
	"github.com/cash-flow/cash_flow/internal/config"
)

func setupAuthApp(t *testing.T) (*fiber.App, *auth.Service, account.Account) {
	t.Helper()

	cfg := config.Config{
		JWTSecret:       "test-secret",
		RefreshSecret:   "test-refresh-secret",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
	}
	store := account.NewMemoryStore()
	acct := account.Account{ID: uuid.NewString(), Phone: "+15550001", CreatedAt: time.Now().UTC()}
	if err := store.Create(context.Background(), acct); err != nil {
		t.Fatalf("create account: %v", err)
	}
	tokens := auth.NewService(cfg, store)

	app := fiber.New()
	app.Use(Auth(tokens))
	app.Get("/whoami", func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("account_id").(string))
	})

	return app, tokens, acct
}

func TestAuthRejectsMissingToken(t *testing.T) {
	app, _, _ := setupAuthApp(t)

	for _, header := range []string{"", "Basic abc", "Bearer"} {
		req := httptest.NewRequest(fiber.MethodGet, "/whoami", nil)
		if header != "" {
			req.Header.Set(fiber.HeaderAuthorization, header)
		}
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		if resp.StatusCode != fiber.StatusUnauthorized {
			t.Fatalf("header %q: expected %d got %d", header, fiber.StatusUnauthorized, resp.StatusCode)
		}
	}
}

func TestAuthResolvesAccount(t *testing.T) {
	app, tokens, acct := setupAuthApp(t)

	pair, err := tokens.Issue(acct)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	req := httptest.NewRequest(fiber.MethodGet, "/whoami", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+pair.AccessToken)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected %d got %d", fiber.StatusOK, resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != acct.ID {
		t.Fatalf("resolved id %q, want %q", body, acct.ID)
	}
}

func TestAuthRejectsAfterLogout(t *testing.T) {
	app, tokens, acct := setupAuthApp(t)

	pair, err := tokens.Issue(acct)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := tokens.Logout(context.Background(), acct.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}

	req := httptest.NewRequest(fiber.MethodGet, "/whoami", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+pair.AccessToken)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected %d got %d", fiber.StatusUnauthorized, resp.StatusCode)
	}
}
