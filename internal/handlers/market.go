package handlers

import (
	"strings"

	"stakeoption/internal/utils"

	"github.com/gofiber/fiber/v2"
)

type MarketHandler struct {
	market MarketService
}

func NewMarketHandler(market MarketService) *MarketHandler {
	return &MarketHandler{market: market}
}

func (h *MarketHandler) ListAssets(c *fiber.Ctx) error {
	assets, err := h.market.ListAssets(c.Context(), c.Query("category"))
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Success(c, fiber.Map{"assets": assets})
}

func (h *MarketHandler) GetPrices(c *fiber.Ctx) error {
	raw := c.Query("symbols")
	if raw == "" {
		return utils.BadRequest(c, "symbols is required")
	}
	prices, err := h.market.GetPrices(c.Context(), strings.Split(raw, ","))
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Success(c, fiber.Map{"prices": prices})
}

func (h *MarketHandler) GetPrice(c *fiber.Ctx) error {
	tick, err := h.market.GetPrice(c.Context(), strings.ToUpper(c.Params("symbol")))
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Success(c, tick)
}

func (h *MarketHandler) GetCandles(c *fiber.Ctx) error {
	symbol := strings.ToUpper(c.Params("symbol"))
	interval := c.Query("interval", "1min")
	candles, err := h.market.GetCandles(c.Context(), symbol, interval, c.QueryInt("limit", 100))
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Success(c, fiber.Map{
		"symbol":   symbol,
		"interval": interval,
		"candles":  candles,
	})
}
