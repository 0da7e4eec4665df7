package handlers

import (
	"context"
	"time"

	"stakeoption/internal/utils"
	"stakeoption/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const callbackTimeout = 30 * time.Second

type PaymentHandler struct {
	payments PaymentService
	log      *zap.Logger
	// async runs callback processing after the provider has its reply.
	async func(func())
}

func NewPaymentHandler(payments PaymentService, log *zap.Logger) *PaymentHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &PaymentHandler{
		payments: payments,
		log:      log.Named("mpesa_http"),
		async:    func(fn func()) { go fn() },
	}
}

type moneyInput struct {
	Amount decimal.Decimal `json:"amount"`
	Phone  string          `json:"phone"`
}

// validate checks presence only; limits and phone format belong to the service.
func (in moneyInput) validate() map[string]string {
	v := validation.New()
	v.Money("amount", in.Amount)
	v.Required("phone", in.Phone)
	if v.Valid() {
		return nil
	}
	return v.Errors
}

func (h *PaymentHandler) Deposit(c *fiber.Ctx) error {
	userID, err := utils.GetUserID(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	var input moneyInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "invalid request format")
	}
	if fields := input.validate(); fields != nil {
		return utils.ValidationFailed(c, fields)
	}

	res, err := h.payments.InitiateDeposit(c.Context(), userID, input.Amount, input.Phone)
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Success(c, res)
}

// DepositStatus returns the stored state, or the provider's view when
// ?refresh=true.
func (h *PaymentHandler) DepositStatus(c *fiber.Ctx) error {
	userID, err := utils.GetUserID(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "invalid request id")
	}

	if c.QueryBool("refresh", false) {
		res, err := h.payments.QueryDeposit(c.Context(), userID, id)
		if err != nil {
			return utils.Error(c, err)
		}
		return utils.Success(c, res)
	}

	status, err := h.payments.DepositStatus(c.Context(), userID, id)
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Success(c, status)
}

func (h *PaymentHandler) Withdraw(c *fiber.Ctx) error {
	userID, err := utils.GetUserID(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	var input moneyInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "invalid request format")
	}
	if fields := input.validate(); fields != nil {
		return utils.ValidationFailed(c, fields)
	}

	res, err := h.payments.InitiateWithdrawal(c.Context(), userID, input.Amount, input.Phone)
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Success(c, res)
}

// ExecuteWithdrawal is the admin approval step that sends the payout.
func (h *PaymentHandler) ExecuteWithdrawal(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "invalid withdrawal id")
	}
	res, err := h.payments.ExecuteWithdrawal(c.Context(), id)
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Success(c, fiber.Map{
		"withdrawal_id":   id,
		"conversation_id": res.ConversationID,
		"status":          "pending",
	})
}

func (h *PaymentHandler) STKCallback(c *fiber.Ctx) error {
	return h.accept(c, "stk", h.payments.HandleSTKCallback)
}

func (h *PaymentHandler) B2CResult(c *fiber.Ctx) error {
	return h.accept(c, "b2c_result", h.payments.HandleB2CResult)
}

func (h *PaymentHandler) B2CTimeout(c *fiber.Ctx) error {
	return h.accept(c, "b2c_timeout", h.payments.HandleB2CTimeout)
}

// accept acknowledges a provider callback before any processing so the
// provider never retries because of our latency. The body is copied since
// fiber reuses the request buffer once the handler returns.
func (h *PaymentHandler) accept(c *fiber.Ctx, kind string, process func(context.Context, []byte) error) error {
	body := append([]byte(nil), c.Body()...)

	h.async(func() {
		ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
		defer cancel()
		if err := process(ctx, body); err != nil {
			h.log.Error("callback processing failed", zap.String("kind", kind), zap.Error(err))
		}
	})

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ResultCode": 0, "ResultDesc": "Accepted"})
}
