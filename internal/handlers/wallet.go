package handlers

import (
	"stakeoption/internal/services/ledger"
	"stakeoption/internal/utils"

	"github.com/gofiber/fiber/v2"
)

type WalletHandler struct {
	wallets WalletService
	users   UserReader
}

func NewWalletHandler(wallets WalletService, users UserReader) *WalletHandler {
	return &WalletHandler{wallets: wallets, users: users}
}

// GetWallet returns the real wallet alongside the demo balance.
func (h *WalletHandler) GetWallet(c *fiber.Ctx) error {
	userID, err := utils.GetUserID(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	wallet, err := h.wallets.GetWallet(c.Context(), userID)
	if err != nil {
		return utils.Error(c, err)
	}
	user, err := h.users.GetByID(c.Context(), userID)
	if err != nil {
		return utils.Error(c, err)
	}

	return utils.Success(c, fiber.Map{
		"wallet":       wallet,
		"demo_balance": user.DemoBalance,
	})
}

func (h *WalletHandler) ListTransactions(c *fiber.Ctx) error {
	userID, err := utils.GetUserID(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	page := utils.PageFromQuery(c)
	txs, total, err := h.wallets.ListTransactions(c.Context(), userID, ledger.TransactionFilter{
		Type:   c.Query("type"),
		Status: c.Query("status"),
		Offset: page.Offset(),
		Limit:  page.Size,
	})
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Success(c, utils.NewListing(txs, page, total))
}
