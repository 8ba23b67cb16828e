package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/cash-flow/cash_flow/internal/account"
	"github.com/cash-flow/cash_flow/internal/auth"
	"github.com/cash-flow/cash_flow/internal/config"
	"github.com/cash-flow/cash_flow/internal/ledger"
	"github.com/cash-flow/cash_flow/internal/middleware"
	"github.com/cash-flow/cash_flow/internal/notification"
	"github.com/cash-flow/cash_flow/internal/otp"
	"github.com/cash-flow/cash_flow/internal/storage"
	"github.com/cash-flow/cash_flow/internal/transfer"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.Cfg.IsDev() {
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	} else {
		app.Use(middleware.Audit(d.Logger))
	}

	// Health
	RegisterHealthRoutes(app, d)

	// Storage backends
	var (
		accounts      account.Store
		ledgerBackend ledger.Ledger
		scope         storage.TxScope
	)
	if d.DB != nil {
		accounts = account.NewPostgresStore(d.DB)
		ledgerBackend = ledger.NewPostgresLedger(d.DB)
		scope = storage.NewPostgresScope(d.DB)
	} else {
		accounts = account.NewMemoryStore()
		ledgerBackend = ledger.NewInMemory()
		scope = storage.NewMemoryScope()
	}

	// Services and handlers
	notifier := notification.NewLoggerNotifier(d.Logger)
	accountSvc := account.NewService(accounts)
	tokenSvc := auth.NewService(d.Cfg, accounts)
	engine := transfer.NewEngine(accounts, ledgerBackend, scope, notifier, d.Cfg.TransferMax)

	var codes otp.CodeStore
	if d.Cache != nil {
		codes = otp.NewRedisStore(d.Cache)
	} else {
		codes = otp.NewMemoryStore()
	}
	otpSvc := otp.NewService(codes, accountSvc, tokenSvc, notifier, d.Cfg.OTPTTL)

	accountHandler := account.NewHandler(accountSvc)
	authHandler := auth.NewHandler(tokenSvc)
	otpHandler := otp.NewHandler(otpSvc)
	transferHandler := transfer.NewHandler(engine)
	historyHandler := ledger.NewHandler(ledgerBackend)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	RegisterOTPRoutes(api, otpHandler, middleware.OTPRateLimit(d.Cache, d.Cfg.OTPPerMinute))
	api.Post("/auth/refresh", authHandler.Refresh)

	// Protected routes
	protected := api.Group("", middleware.Auth(tokenSvc))
	if d.Cache != nil {
		protected.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	RegisterAccountRoutes(protected, accountHandler)
	RegisterTransferRoutes(protected, transferHandler, historyHandler)
	protected.Post("/auth/logout", authHandler.Logout)

	return nil
}
