// Package routes defines the API routing configuration.
package routes

import (
	"net/http"

	"stakeoption/internal/handlers"
	"stakeoption/internal/middleware"
	"stakeoption/internal/services/payment/mpesa"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

// Handlers bundles everything SetupRoutes mounts.
type Handlers struct {
	Auth    *middleware.AuthMiddleware
	Health  *handlers.HealthHandler
	Market  *handlers.MarketHandler
	Wallet  *handlers.WalletHandler
	Trade   *handlers.TradeHandler
	Payment *handlers.PaymentHandler
	Metrics http.Handler
}

// SetupRoutes configures all application routes.
func SetupRoutes(app *fiber.App, h Handlers) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Welcome to StakeOption API",
			"version": "1.0.0",
			"docs":    "/api",
		})
	})
	if h.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(h.Metrics))
	}

	// Provider callbacks carry no user token and are registered ahead of
	// the authenticated /api/mpesa group.
	app.Post(mpesa.STKCallbackPath, h.Payment.STKCallback)
	app.Post(mpesa.B2CResultPath, h.Payment.B2CResult)
	app.Post(mpesa.B2CTimeoutPath, h.Payment.B2CTimeout)

	api := app.Group("/api")
	api.Get("/health", h.Health.HealthCheck)

	// Public market data
	market := api.Group("/market")
	market.Get("/assets", h.Market.ListAssets)
	market.Get("/prices", h.Market.GetPrices)
	market.Get("/prices/:symbol", h.Market.GetPrice)
	market.Get("/candles/:symbol", h.Market.GetCandles)

	setupUserRoutes(api, h)

	admin := api.Group("/admin", h.Auth.Handler, middleware.AdminAuthMiddleware)
	admin.Post("/withdrawals/:id/execute", h.Payment.ExecuteWithdrawal)
}

func setupUserRoutes(router fiber.Router, h Handlers) {
	wallet := router.Group("/wallet", h.Auth.Handler)
	wallet.Get("/", h.Wallet.GetWallet)
	wallet.Get("/transactions", h.Wallet.ListTransactions)

	trades := router.Group("/trades", h.Auth.Handler)
	trades.Post("/", h.Trade.PlaceTrade)
	trades.Get("/active", h.Trade.GetActiveTrades)
	trades.Get("/history", h.Trade.GetTradeHistory)
	trades.Post("/demo/reset", h.Trade.ResetDemo)
	trades.Get("/:id", h.Trade.GetTrade)

	payments := router.Group("/mpesa", h.Auth.Handler)
	payments.Post("/deposit", h.Payment.Deposit)
	payments.Get("/deposit/:id", h.Payment.DepositStatus)
	payments.Post("/withdraw", h.Payment.Withdraw)
}
