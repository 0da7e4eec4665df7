package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stakeoption/internal/config"
	appErrors "stakeoption/internal/errors"
	"stakeoption/internal/logger"
	"stakeoption/internal/models"
	"stakeoption/internal/services/ledger"
	"stakeoption/internal/services/payment/mpesa"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Events published to the paying user.
const (
	EventDepositConfirmed    = "deposit:confirmed"
	EventDepositFailed       = "deposit:failed"
	EventWithdrawalCompleted = "withdrawal:completed"
	EventWithdrawalFailed    = "withdrawal:failed"
)

const (
	accountReference = "StakeOption"
	pendingTTL       = 120 * time.Second
	lockTTL          = 60 * time.Second

	// StatusIndeterminate is reported for deposits still pending after the
	// callback window closed. The provider stays the source of truth.
	StatusIndeterminate = "indeterminate"
)

func pendingKey(checkoutRequestID string) string {
	return "mpesa:pending:" + checkoutRequestID
}

func lockKey(correlationID string) string {
	return "mpesa:lock:" + correlationID
}

type pendingDeposit struct {
	UserID    uuid.UUID       `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	RequestID uuid.UUID       `json:"request_id"`
}

type DepositResult struct {
	RequestID         uuid.UUID       `json:"request_id"`
	CheckoutRequestID string          `json:"checkout_request_id"`
	MerchantRequestID string          `json:"merchant_request_id"`
	Amount            decimal.Decimal `json:"amount"`
	Status            string          `json:"status"`
	CustomerMessage   string          `json:"customer_message,omitempty"`
}

type DepositStatus struct {
	RequestID  uuid.UUID       `json:"request_id"`
	Status     string          `json:"status"`
	Amount     decimal.Decimal `json:"amount"`
	Receipt    string          `json:"mpesa_receipt,omitempty"`
	ResultDesc string          `json:"result_desc,omitempty"`
}

type WithdrawalResult struct {
	WithdrawalID  uuid.UUID       `json:"withdrawal_id"`
	TransactionID uuid.UUID       `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	NewBalance    decimal.Decimal `json:"new_balance"`
	Status        string          `json:"status"`
}

type Service struct {
	gateway   Gateway
	ledger    Ledger
	requests  Requests
	cache     Cache
	publisher Publisher
	limits    config.Mpesa
	log       *zap.Logger
	metrics   MetricsCollector
}

// NewService creates a new payment service
func NewService(
	gateway Gateway,
	ledger Ledger,
	requests Requests,
	cache Cache,
	publisher Publisher,
	limits config.Mpesa,
	log *zap.Logger,
	metrics MetricsCollector,
) *Service {
	if gateway == nil || ledger == nil || requests == nil || cache == nil {
		panic("payment service dependencies are required")
	}
	if metrics == nil {
		metrics = &NoopMetricsCollector{}
	}
	return &Service{
		gateway:   gateway,
		ledger:    ledger,
		requests:  requests,
		cache:     cache,
		publisher: publisher,
		limits:    limits,
		log:       logger.OrNop(log).Named("payment"),
		metrics:   metrics,
	}
}

func inRange(amount, min, max decimal.Decimal) bool {
	return amount.IsPositive() && !amount.LessThan(min) && !amount.GreaterThan(max)
}

// InitiateDeposit sends an STK push to phone. The wallet is credited later by
// HandleSTKCallback.
func (s *Service) InitiateDeposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, phone string) (*DepositResult, error) {
	msisdn, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}
	if !inRange(amount, s.limits.MinDeposit, s.limits.MaxDeposit) {
		return nil, appErrors.ErrAmountOutOfRange
	}

	req := &models.PaymentRequest{
		UserID: userID,
		Type:   models.PaymentTypeSTKPush,
		Phone:  msisdn,
		Amount: amount,
		Status: models.PaymentStatusInitiated,
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, err
	}

	res, err := s.gateway.STKPush(ctx, msisdn, amount, accountReference)
	if err != nil {
		if _, terr := s.requests.Transition(ctx, req.ID, []string{models.PaymentStatusInitiated}, map[string]interface{}{
			"status":      models.PaymentStatusFailed,
			"result_desc": err.Error(),
		}); terr != nil {
			s.log.Error("failed to mark deposit failed", zap.String("request_id", req.ID.String()), zap.Error(terr))
		}
		s.log.Warn("stk push rejected", zap.String("request_id", req.ID.String()), zap.Error(err))
		return nil, err
	}

	if _, err := s.requests.Transition(ctx, req.ID, []string{models.PaymentStatusInitiated}, map[string]interface{}{
		"status":              models.PaymentStatusPending,
		"merchant_request_id": res.MerchantRequestID,
		"checkout_request_id": res.CheckoutRequestID,
	}); err != nil {
		return nil, err
	}

	if err := s.cache.SetWithTTL(ctx, pendingKey(res.CheckoutRequestID), pendingDeposit{
		UserID:    userID,
		Amount:    amount,
		RequestID: req.ID,
	}, pendingTTL); err != nil {
		s.log.Warn("failed to track pending deposit", zap.String("checkout_request_id", res.CheckoutRequestID), zap.Error(err))
	}

	s.log.Info("stk push initiated",
		zap.String("user_id", userID.String()),
		zap.String("amount", amount.String()),
		zap.String("checkout_request_id", res.CheckoutRequestID),
	)
	return &DepositResult{
		RequestID:         req.ID,
		CheckoutRequestID: res.CheckoutRequestID,
		MerchantRequestID: res.MerchantRequestID,
		Amount:            amount,
		Status:            models.PaymentStatusPending,
		CustomerMessage:   res.CustomerMessage,
	}, nil
}

// HandleSTKCallback applies a deposit result. Repeated deliveries for a request
// that is already terminal do nothing.
func (s *Service) HandleSTKCallback(ctx context.Context, payload []byte) error {
	cb, err := mpesa.ParseSTKCallback(payload)
	if err != nil {
		s.metrics.RecordCallback("stk", "invalid")
		return err
	}

	req, err := s.requests.GetByCheckoutRequestID(ctx, cb.CheckoutRequestID)
	if err != nil {
		s.metrics.RecordCallback("stk", "unknown")
		return err
	}
	if req.IsTerminal() {
		s.metrics.RecordCallback("stk", "duplicate")
		return nil
	}

	key := lockKey(cb.CheckoutRequestID)
	token, acquired, err := s.cache.AcquireLock(ctx, key, lockTTL)
	if err != nil {
		return err
	}
	if !acquired {
		s.metrics.RecordCallback("stk", "locked")
		return nil
	}
	defer func() {
		if err := s.cache.ReleaseLock(context.WithoutCancel(ctx), key, token); err != nil {
			s.log.Warn("failed to release callback lock", zap.String("key", key), zap.Error(err))
		}
	}()

	// Another delivery may have finished between the first read and the lock.
	req, err = s.requests.GetByCheckoutRequestID(ctx, cb.CheckoutRequestID)
	if err != nil {
		return err
	}
	if req.IsTerminal() {
		s.metrics.RecordCallback("stk", "duplicate")
		return nil
	}

	if !cb.Success() {
		return s.failDeposit(ctx, req, cb)
	}
	return s.completeDeposit(ctx, req, cb)
}

func (s *Service) completeDeposit(ctx context.Context, req *models.PaymentRequest, cb *mpesa.STKCallback) error {
	amount := cb.Amount
	if !amount.IsPositive() {
		amount = req.Amount
	}
	var receipt *string
	if cb.Receipt != "" {
		receipt = &cb.Receipt
	}

	credit, err := s.ledger.Credit(ctx, ledger.CreditRequest{
		UserID:            req.UserID,
		Amount:            amount,
		Type:              models.TransactionTypeDeposit,
		Reference:         ledger.DepositReference(cb.CheckoutRequestID),
		ExternalReference: receipt,
		Metadata: map[string]interface{}{
			"mpesa_request_id":    req.ID.String(),
			"checkout_request_id": cb.CheckoutRequestID,
		},
	})
	if err != nil {
		s.metrics.RecordCallback("stk", "error")
		return fmt.Errorf("failed to credit deposit %s: %w", req.ID, err)
	}
	if credit.Replayed {
		// A previous delivery credited the wallet but did not finish the request.
		s.log.Info("deposit already credited, completing request",
			zap.String("request_id", req.ID.String()),
			zap.String("transaction_id", credit.Transaction.ID.String()),
		)
	}

	changed, err := s.requests.Transition(ctx, req.ID, []string{models.PaymentStatusInitiated, models.PaymentStatusPending}, map[string]interface{}{
		"status":               models.PaymentStatusCompleted,
		"result_code":          cb.ResultCode,
		"result_desc":          cb.ResultDesc,
		"mpesa_receipt_number": cb.Receipt,
		"transaction_id":       credit.Transaction.ID,
		"callback_payload":     models.JSON(cb.Raw),
	})
	if err != nil {
		return err
	}
	s.clearPending(ctx, cb.CheckoutRequestID)
	if !changed {
		s.metrics.RecordCallback("stk", "duplicate")
		if !credit.Replayed {
			s.log.Error("deposit credited but request was already closed",
				zap.String("request_id", req.ID.String()),
				zap.String("transaction_id", credit.Transaction.ID.String()),
			)
		}
		return nil
	}

	s.metrics.RecordCallback("stk", "completed")
	s.log.Info("deposit completed",
		zap.String("user_id", req.UserID.String()),
		zap.String("amount", amount.String()),
		zap.String("receipt", cb.Receipt),
	)
	s.publish(ctx, req.UserID, EventDepositConfirmed, map[string]interface{}{
		"request_id":    req.ID,
		"amount":        amount,
		"mpesa_receipt": cb.Receipt,
		"new_balance":   credit.Balance,
	})
	return nil
}

func (s *Service) failDeposit(ctx context.Context, req *models.PaymentRequest, cb *mpesa.STKCallback) error {
	changed, err := s.requests.Transition(ctx, req.ID, []string{models.PaymentStatusInitiated, models.PaymentStatusPending}, map[string]interface{}{
		"status":           models.PaymentStatusFailed,
		"result_code":      cb.ResultCode,
		"result_desc":      cb.ResultDesc,
		"callback_payload": models.JSON(cb.Raw),
	})
	if err != nil {
		return err
	}
	s.clearPending(ctx, cb.CheckoutRequestID)
	if !changed {
		return nil
	}

	s.metrics.RecordCallback("stk", "failed")
	s.log.Info("deposit failed",
		zap.String("user_id", req.UserID.String()),
		zap.Int("result_code", cb.ResultCode),
		zap.String("result_desc", cb.ResultDesc),
	)
	reason := cb.ResultDesc
	if reason == "" {
		reason = "Payment was not completed"
	}
	s.publish(ctx, req.UserID, EventDepositFailed, map[string]interface{}{
		"request_id": req.ID,
		"amount":     req.Amount,
		"reason":     reason,
	})
	return nil
}

// DepositStatus reports the request state. A pending request whose callback
// window has closed is reported indeterminate.
func (s *Service) DepositStatus(ctx context.Context, userID, requestID uuid.UUID) (*DepositStatus, error) {
	req, err := s.ownedRequest(ctx, userID, requestID, models.PaymentTypeSTKPush)
	if err != nil {
		return nil, err
	}
	status := req.Status
	if status == models.PaymentStatusPending {
		live, err := s.cache.Exists(ctx, pendingKey(req.CheckoutRequestID))
		if err != nil {
			return nil, err
		}
		if !live {
			status = StatusIndeterminate
		}
	}
	return &DepositStatus{
		RequestID:  req.ID,
		Status:     status,
		Amount:     req.Amount,
		Receipt:    req.MpesaReceiptNumber,
		ResultDesc: req.ResultDesc,
	}, nil
}

// QueryDeposit asks the provider directly about a deposit.
func (s *Service) QueryDeposit(ctx context.Context, userID, requestID uuid.UUID) (*mpesa.STKQueryResponse, error) {
	req, err := s.ownedRequest(ctx, userID, requestID, models.PaymentTypeSTKPush)
	if err != nil {
		return nil, err
	}
	if req.CheckoutRequestID == "" {
		return nil, appErrors.ErrPaymentNotFound
	}
	return s.gateway.STKQuery(ctx, req.CheckoutRequestID)
}

// InitiateWithdrawal holds the funds with a processing debit and records a
// payout request awaiting approval.
func (s *Service) InitiateWithdrawal(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, phone string) (*WithdrawalResult, error) {
	msisdn, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}
	if !inRange(amount, s.limits.MinWithdrawal, s.limits.MaxWithdrawal) {
		return nil, appErrors.ErrAmountOutOfRange
	}

	debit, err := s.ledger.Debit(ctx, ledger.DebitRequest{
		UserID:   userID,
		Amount:   amount,
		Type:     models.TransactionTypeWithdrawal,
		Status:   models.TransactionStatusProcessing,
		Metadata: map[string]interface{}{"phone": msisdn},
	})
	if err != nil {
		return nil, err
	}

	txID := debit.Transaction.ID
	req := &models.PaymentRequest{
		UserID:        userID,
		TransactionID: &txID,
		Type:          models.PaymentTypeB2C,
		Phone:         msisdn,
		Amount:        amount,
		Status:        models.PaymentStatusInitiated,
	}
	if err := s.requests.Create(ctx, req); err != nil {
		if _, rerr := s.ledger.ReverseDebit(context.WithoutCancel(ctx), userID, txID); rerr != nil {
			s.log.Error("failed to reverse withdrawal hold", zap.String("transaction_id", txID.String()), zap.Error(rerr))
		}
		return nil, err
	}

	s.log.Info("withdrawal requested",
		zap.String("user_id", userID.String()),
		zap.String("amount", amount.String()),
		zap.String("request_id", req.ID.String()),
	)
	return &WithdrawalResult{
		WithdrawalID:  req.ID,
		TransactionID: txID,
		Amount:        amount,
		NewBalance:    debit.Balance,
		Status:        "pending_approval",
	}, nil
}

// ExecuteWithdrawal sends an approved payout to the provider.
func (s *Service) ExecuteWithdrawal(ctx context.Context, requestID uuid.UUID) (*mpesa.B2CResponse, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Type != models.PaymentTypeB2C {
		return nil, appErrors.ErrPaymentNotFound
	}

	// Claiming the request first keeps two approvals from paying twice.
	claimed, err := s.requests.Transition(ctx, req.ID, []string{models.PaymentStatusInitiated}, map[string]interface{}{
		"status":                     models.PaymentStatusPending,
		"originator_conversation_id": req.ID.String(),
	})
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, appErrors.ErrPaymentProcessed
	}
	req.Status = models.PaymentStatusPending

	res, err := s.gateway.B2C(ctx, req.ID.String(), req.Phone, req.Amount)
	if err != nil {
		s.log.Warn("b2c rejected", zap.String("request_id", req.ID.String()), zap.Error(err))
		if ferr := s.failWithdrawal(context.WithoutCancel(ctx), req, -1, err.Error(), nil); ferr != nil {
			s.log.Error("failed to fail withdrawal", zap.String("request_id", req.ID.String()), zap.Error(ferr))
		}
		return nil, err
	}

	if _, err := s.requests.Transition(ctx, req.ID, []string{models.PaymentStatusPending}, map[string]interface{}{
		"conversation_id":            res.ConversationID,
		"originator_conversation_id": firstNonEmpty(res.OriginatorConversationID, req.ID.String()),
	}); err != nil {
		return nil, err
	}

	s.log.Info("b2c sent", zap.String("request_id", req.ID.String()), zap.String("conversation_id", res.ConversationID))
	return res, nil
}

// HandleB2CResult settles a payout. Success confirms the held debit; failure
// reverses it.
func (s *Service) HandleB2CResult(ctx context.Context, payload []byte) error {
	res, err := mpesa.ParseB2CResult(payload)
	if err != nil {
		s.metrics.RecordCallback("b2c_result", "invalid")
		return err
	}
	req, err := s.lookupWithdrawal(ctx, res)
	if err != nil {
		s.metrics.RecordCallback("b2c_result", "unknown")
		return err
	}
	if req.IsTerminal() {
		s.metrics.RecordCallback("b2c_result", "duplicate")
		return nil
	}

	key := lockKey(req.ID.String())
	token, acquired, err := s.cache.AcquireLock(ctx, key, lockTTL)
	if err != nil {
		return err
	}
	if !acquired {
		s.metrics.RecordCallback("b2c_result", "locked")
		return nil
	}
	defer func() {
		if err := s.cache.ReleaseLock(context.WithoutCancel(ctx), key, token); err != nil {
			s.log.Warn("failed to release callback lock", zap.String("key", key), zap.Error(err))
		}
	}()

	if !res.Success() {
		s.metrics.RecordCallback("b2c_result", "failed")
		return s.failWithdrawal(ctx, req, res.ResultCode, res.ResultDesc, res.Raw)
	}

	if req.TransactionID != nil {
		done, err := s.ledger.CompleteWithdrawal(ctx, *req.TransactionID, res.Receipt)
		if errors.Is(err, appErrors.ErrNotProcessing) {
			// The provider paid out money the ledger no longer holds. Leave the
			// request open for an operator instead of closing it as completed.
			s.metrics.RecordCallback("b2c_result", "conflict")
			s.log.Error("withdrawal paid out but debit is not held",
				zap.String("request_id", req.ID.String()),
				zap.String("transaction_id", req.TransactionID.String()),
				zap.String("receipt", res.Receipt),
			)
			return nil
		}
		if err != nil {
			return err
		}
		if !done {
			s.log.Info("withdrawal entry already completed", zap.String("request_id", req.ID.String()))
		}
	}
	changed, err := s.requests.Transition(ctx, req.ID, []string{models.PaymentStatusInitiated, models.PaymentStatusPending}, map[string]interface{}{
		"status":               models.PaymentStatusCompleted,
		"result_code":          res.ResultCode,
		"result_desc":          res.ResultDesc,
		"mpesa_receipt_number": res.Receipt,
		"callback_payload":     models.JSON(res.Raw),
	})
	if err != nil || !changed {
		return err
	}

	s.metrics.RecordCallback("b2c_result", "completed")
	s.log.Info("withdrawal completed",
		zap.String("user_id", req.UserID.String()),
		zap.String("amount", req.Amount.String()),
		zap.String("receipt", res.Receipt),
	)
	s.publish(ctx, req.UserID, EventWithdrawalCompleted, map[string]interface{}{
		"withdrawal_id": req.ID,
		"amount":        req.Amount,
		"receipt":       res.Receipt,
	})
	return nil
}

// HandleB2CTimeout fails a payout the provider could not process in time.
func (s *Service) HandleB2CTimeout(ctx context.Context, payload []byte) error {
	res, err := mpesa.ParseB2CResult(payload)
	if err != nil {
		s.metrics.RecordCallback("b2c_timeout", "invalid")
		return err
	}
	req, err := s.lookupWithdrawal(ctx, res)
	if err != nil {
		s.metrics.RecordCallback("b2c_timeout", "unknown")
		return err
	}
	if req.Status != models.PaymentStatusPending {
		s.metrics.RecordCallback("b2c_timeout", "duplicate")
		return nil
	}

	key := lockKey(req.ID.String())
	token, acquired, err := s.cache.AcquireLock(ctx, key, lockTTL)
	if err != nil {
		return err
	}
	if !acquired {
		s.metrics.RecordCallback("b2c_timeout", "locked")
		return nil
	}
	defer func() {
		if err := s.cache.ReleaseLock(context.WithoutCancel(ctx), key, token); err != nil {
			s.log.Warn("failed to release callback lock", zap.String("key", key), zap.Error(err))
		}
	}()

	s.metrics.RecordCallback("b2c_timeout", "failed")
	return s.failWithdrawal(ctx, req, res.ResultCode, "Transaction timed out", res.Raw)
}

// failWithdrawal restores the held funds and marks the request failed. A
// debit that was already reversed is not an error.
func (s *Service) failWithdrawal(ctx context.Context, req *models.PaymentRequest, code int, desc string, raw map[string]interface{}) error {
	var newBalance *decimal.Decimal
	if req.TransactionID != nil {
		res, err := s.ledger.ReverseDebit(ctx, req.UserID, *req.TransactionID)
		switch {
		case err == nil:
			newBalance = &res.Balance
		case errors.Is(err, appErrors.ErrNotReversible):
			s.log.Info("withdrawal already reversed", zap.String("request_id", req.ID.String()))
		default:
			return fmt.Errorf("failed to reverse withdrawal %s: %w", req.ID, err)
		}
	}

	fields := map[string]interface{}{
		"status":      models.PaymentStatusFailed,
		"result_code": code,
		"result_desc": desc,
	}
	if raw != nil {
		fields["callback_payload"] = models.JSON(raw)
	}
	changed, err := s.requests.Transition(ctx, req.ID, []string{models.PaymentStatusInitiated, models.PaymentStatusPending}, fields)
	if err != nil || !changed {
		return err
	}

	s.log.Info("withdrawal failed, debit reversed",
		zap.String("user_id", req.UserID.String()),
		zap.Int("result_code", code),
		zap.String("result_desc", desc),
	)
	data := map[string]interface{}{
		"withdrawal_id": req.ID,
		"amount":        req.Amount,
		"reason":        desc,
	}
	if newBalance != nil {
		data["new_balance"] = *newBalance
	}
	s.publish(ctx, req.UserID, EventWithdrawalFailed, data)
	return nil
}

func (s *Service) lookupWithdrawal(ctx context.Context, res *mpesa.B2CResult) (*models.PaymentRequest, error) {
	id := res.ConversationID
	if id == "" {
		id = res.OriginatorConversationID
	}
	req, err := s.requests.GetByConversationID(ctx, id)
	if errors.Is(err, appErrors.ErrPaymentNotFound) && res.OriginatorConversationID != "" && res.OriginatorConversationID != id {
		req, err = s.requests.GetByConversationID(ctx, res.OriginatorConversationID)
	}
	if err != nil {
		return nil, err
	}
	if req.Type != models.PaymentTypeB2C {
		return nil, appErrors.ErrPaymentNotFound
	}
	return req, nil
}

func (s *Service) ownedRequest(ctx context.Context, userID, requestID uuid.UUID, kind string) (*models.PaymentRequest, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.UserID != userID || req.Type != kind {
		return nil, appErrors.ErrPaymentNotFound
	}
	return req, nil
}

func (s *Service) clearPending(ctx context.Context, checkoutRequestID string) {
	if err := s.cache.Delete(ctx, pendingKey(checkoutRequestID)); err != nil {
		s.log.Warn("failed to clear pending deposit", zap.String("checkout_request_id", checkoutRequestID), zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, userID uuid.UUID, event string, data interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishToUser(ctx, userID, event, data); err != nil {
		s.log.Warn("failed to publish payment event", zap.String("event", event), zap.Error(err))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

