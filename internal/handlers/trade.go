package handlers

import (
	"strconv"
	"strings"

	"stakeoption/internal/models"
	"stakeoption/internal/repositories"
	"stakeoption/internal/services/trade"
	"stakeoption/internal/utils"
	"stakeoption/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TradeHandler struct {
	trades TradeService
}

func NewTradeHandler(trades TradeService) *TradeHandler {
	return &TradeHandler{trades: trades}
}

type placeTradeInput struct {
	AssetID   uuid.UUID       `json:"asset_id"`
	Direction string          `json:"direction"`
	Amount    decimal.Decimal `json:"amount"`
	Timeframe int             `json:"timeframe"`
	IsDemo    bool            `json:"is_demo"`
}

func (h *TradeHandler) PlaceTrade(c *fiber.Ctx) error {
	userID, err := utils.GetUserID(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	var input placeTradeInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "invalid request format")
	}
	direction := strings.ToUpper(strings.TrimSpace(input.Direction))

	v := validation.New()
	v.RequiredID("asset_id", input.AssetID)
	v.OneOf("direction", direction, models.DirectionUp, models.DirectionDown)
	v.Money("amount", input.Amount)
	v.PositiveInt("timeframe", input.Timeframe)
	if !v.Valid() {
		return utils.ValidationFailed(c, v.Errors)
	}

	res, err := h.trades.PlaceTrade(c.Context(), trade.PlaceRequest{
		UserID:           userID,
		InstrumentID:     input.AssetID,
		Direction:        direction,
		Amount:           input.Amount,
		TimeframeSeconds: input.Timeframe,
		IsDemo:           input.IsDemo,
	})
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Created(c, res)
}

func (h *TradeHandler) GetActiveTrades(c *fiber.Ctx) error {
	userID, err := utils.GetUserID(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	trades, err := h.trades.GetActiveTrades(c.Context(), userID, c.QueryBool("demo", false))
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Success(c, fiber.Map{"trades": trades})
}

func (h *TradeHandler) GetTradeHistory(c *fiber.Ctx) error {
	userID, err := utils.GetUserID(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	page := utils.PageFromQuery(c)
	filter := repositories.TradeFilter{Offset: page.Offset(), Limit: page.Size}
	if raw := c.Query("demo"); raw != "" {
		demo, err := strconv.ParseBool(raw)
		if err != nil {
			return utils.BadRequest(c, "demo must be true or false")
		}
		filter.IsDemo = &demo
	}
	switch result := c.Query("result"); result {
	case "", models.TradeResultWin, models.TradeResultLoss, models.TradeResultDraw:
		filter.Result = result
	default:
		return utils.BadRequest(c, "result must be win, loss or draw")
	}
	if raw := c.Query("asset_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return utils.BadRequest(c, "invalid asset_id")
		}
		filter.InstrumentID = &id
	}

	trades, total, err := h.trades.GetTradeHistory(c.Context(), userID, filter)
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Success(c, utils.NewListing(trades, page, total))
}

func (h *TradeHandler) GetTrade(c *fiber.Ctx) error {
	userID, err := utils.GetUserID(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "invalid trade id")
	}
	t, err := h.trades.GetTrade(c.Context(), userID, id)
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Success(c, t)
}

func (h *TradeHandler) ResetDemo(c *fiber.Ctx) error {
	userID, err := utils.GetUserID(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	balance, err := h.trades.ResetDemo(c.Context(), userID)
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Success(c, fiber.Map{"demo_balance": balance})
}
