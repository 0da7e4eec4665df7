package trade

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stakeoption/internal/config"
	appErrors "stakeoption/internal/errors"
	"stakeoption/internal/logger"
	"stakeoption/internal/models"
	"stakeoption/internal/repositories"
	"stakeoption/internal/services/ledger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EventTradeSettled is published to the trade owner after commit.
const EventTradeSettled = "trade:settled"

type PriceReader interface {
	GetTick(ctx context.Context, symbol string) (*models.PriceTick, error)
}

type InstrumentReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Instrument, error)
}

// DueQueue registers a trade for settlement at its expiry.
type DueQueue interface {
	Schedule(ctx context.Context, id string, due time.Time) error
}

type Publisher interface {
	PublishToUser(ctx context.Context, userID uuid.UUID, event string, data interface{}) error
}

type PlaceRequest struct {
	UserID           uuid.UUID
	InstrumentID     uuid.UUID
	Direction        string
	Amount           decimal.Decimal
	TimeframeSeconds int
	IsDemo           bool
}

type PlaceResult struct {
	Trade      *models.Trade   `json:"trade"`
	NewBalance decimal.Decimal `json:"new_balance"`
}

// SettledEvent is the payload of EventTradeSettled.
type SettledEvent struct {
	TradeID    uuid.UUID       `json:"trade_id"`
	Symbol     string          `json:"asset_symbol"`
	Direction  string          `json:"direction"`
	Amount     decimal.Decimal `json:"amount"`
	IsDemo     bool            `json:"is_demo"`
	Result     string          `json:"result"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	ExitPrice  decimal.Decimal `json:"exit_price"`
	Profit     decimal.Decimal `json:"profit"`
	NewBalance decimal.Decimal `json:"new_balance"`

	userID uuid.UUID
}

type Service struct {
	db          *gorm.DB
	trades      repositories.TradeRepository
	instruments InstrumentReader
	prices      PriceReader
	queue       DueQueue
	publisher   Publisher
	config      config.Trading
	log         *zap.Logger
	metrics     MetricsCollector
	now         func() time.Time
}

// NewService creates a new trade service
func NewService(
	db *gorm.DB,
	trades repositories.TradeRepository,
	instruments InstrumentReader,
	prices PriceReader,
	queue DueQueue,
	publisher Publisher,
	cfg config.Trading,
	log *zap.Logger,
	metrics MetricsCollector,
) *Service {
	if db == nil || trades == nil || instruments == nil || prices == nil || queue == nil {
		panic("trade service dependencies are required")
	}
	if cfg.MaxConcurrentTrades <= 0 {
		cfg.MaxConcurrentTrades = 10
	}
	if metrics == nil {
		metrics = &NoopMetricsCollector{}
	}
	return &Service{
		db:          db,
		trades:      trades,
		instruments: instruments,
		prices:      prices,
		queue:       queue,
		publisher:   publisher,
		config:      cfg,
		log:         logger.OrNop(log).Named("trade"),
		metrics:     metrics,
		now:         time.Now,
	}
}

// PlaceTrade stakes amount on the instrument moving in direction. The debit and
// the trade row commit together; a failed debit leaves no trade behind.
func (s *Service) PlaceTrade(ctx context.Context, req PlaceRequest) (*PlaceResult, error) {
	res, err := s.placeTrade(ctx, req)
	if err != nil {
		var de *appErrors.DomainError
		if errors.As(err, &de) {
			s.metrics.RecordTradeRejected(de.Code)
		}
		return nil, err
	}
	return res, nil
}

func (s *Service) placeTrade(ctx context.Context, req PlaceRequest) (*PlaceResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	inst, err := s.instruments.GetByID(ctx, req.InstrumentID)
	if err != nil {
		return nil, err
	}
	if !inst.IsActive {
		return nil, appErrors.ErrAssetNotFound
	}
	if err := validateStake(inst, req.Amount); err != nil {
		return nil, err
	}

	tick, err := s.prices.GetTick(ctx, inst.Symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to read price: %w", err)
	}
	if tick == nil {
		return nil, appErrors.ErrPriceUnavailable
	}

	trade := buildTrade(req, inst, tick, s.now())

	var balance decimal.Decimal
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The debit locks the wallet (or user row for demo), which serializes
		// the concurrency check below per user and mode.
		if req.IsDemo {
			b, err := ledger.DemoDebitTx(tx, req.UserID, req.Amount)
			if err != nil {
				return err
			}
			balance = b
		} else {
			res, err := ledger.DebitTx(tx, ledger.DebitRequest{
				UserID:    req.UserID,
				Amount:    req.Amount,
				Type:      models.TransactionTypeTradeDebit,
				Reference: ledger.NewReference(ledger.RefTradeDebit),
				Metadata: map[string]interface{}{
					"trade_id":     trade.ID.String(),
					"asset_symbol": inst.Symbol,
					"direction":    req.Direction,
					"timeframe":    req.TimeframeSeconds,
				},
			})
			if err != nil {
				return err
			}
			trade.TransactionDebitID = &res.Transaction.ID
			balance = res.Balance
		}

		var active int64
		if err := tx.Model(&models.Trade{}).
			Where("user_id = ? AND status = ? AND is_demo = ?", req.UserID, models.TradeStatusActive, req.IsDemo).
			Count(&active).Error; err != nil {
			return fmt.Errorf("failed to count active trades: %w", err)
		}
		if active >= int64(s.config.MaxConcurrentTrades) {
			return appErrors.ErrTooManyActiveTrades
		}

		if err := tx.Create(trade).Error; err != nil {
			return fmt.Errorf("failed to create trade: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// A failed enqueue is repaired by the startup reconciliation.
	if err := s.queue.Schedule(ctx, trade.ID.String(), trade.ExpiresAt); err != nil {
		s.log.Error("failed to enqueue trade", zap.String("trade_id", trade.ID.String()), zap.Error(err))
	}

	s.metrics.RecordTradePlaced(inst.Symbol, req.IsDemo)
	s.log.Info("trade placed",
		zap.String("trade_id", trade.ID.String()),
		zap.String("symbol", inst.Symbol),
		zap.String("direction", req.Direction),
		zap.String("amount", req.Amount.String()),
		zap.Bool("demo", req.IsDemo),
	)
	return &PlaceResult{Trade: trade, NewBalance: balance}, nil
}

// SettleTrade closes an expired trade. A trade that is no longer active is a
// no-op. A missing price returns ErrPriceUnavailable without side effects so
// the caller can retry later.
func (s *Service) SettleTrade(ctx context.Context, id uuid.UUID) error {
	var event *SettledEvent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t models.Trade
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND status = ?", id, models.TradeStatusActive).
			First(&t).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to lock trade: %w", err)
		}

		tick, err := s.prices.GetTick(ctx, t.Symbol)
		if err != nil {
			return fmt.Errorf("failed to read price: %w", err)
		}
		if tick == nil {
			return appErrors.ErrPriceUnavailable
		}

		exit := exitPrice(t.Direction, tick)
		out := Decide(t.Direction, t.EntryPrice, exit, t.Amount, t.PayoutRate)

		balance, creditID, err := s.payout(tx, &t, out)
		if err != nil {
			return err
		}

		now := s.now()
		if err := tx.Model(&models.Trade{}).Where("id = ?", t.ID).Updates(map[string]interface{}{
			"exit_price":            exit,
			"result":                out.Result,
			"profit":                out.Profit,
			"status":                models.TradeStatusSettled,
			"settled_at":            now,
			"transaction_credit_id": creditID,
		}).Error; err != nil {
			return fmt.Errorf("failed to settle trade: %w", err)
		}

		event = &SettledEvent{
			TradeID:    t.ID,
			Symbol:     t.Symbol,
			Direction:  t.Direction,
			Amount:     t.Amount,
			IsDemo:     t.IsDemo,
			Result:     out.Result,
			EntryPrice: t.EntryPrice,
			ExitPrice:  exit,
			Profit:     out.Profit,
			NewBalance: balance,
			userID:     t.UserID,
		}
		return nil
	})
	if err != nil || event == nil {
		return err
	}

	s.metrics.RecordTradeSettled(event.Symbol, event.Result, event.IsDemo)
	s.log.Info("trade settled",
		zap.String("trade_id", event.TradeID.String()),
		zap.String("symbol", event.Symbol),
		zap.String("result", event.Result),
		zap.String("profit", event.Profit.String()),
		zap.Bool("demo", event.IsDemo),
	)
	if s.publisher != nil {
		if err := s.publisher.PublishToUser(ctx, event.userID, EventTradeSettled, event); err != nil {
			s.log.Warn("failed to publish settlement", zap.String("trade_id", event.TradeID.String()), zap.Error(err))
		}
	}
	return nil
}

// payout moves the settlement money and returns the resulting balance.
func (s *Service) payout(tx *gorm.DB, t *models.Trade, out Outcome) (decimal.Decimal, *uuid.UUID, error) {
	if t.IsDemo {
		if out.Payout.IsPositive() {
			b, err := ledger.DemoCreditTx(tx, t.UserID, out.Payout)
			return b, nil, err
		}
		b, err := ledger.DemoBalanceTx(tx, t.UserID)
		return b, nil, err
	}

	if !out.Payout.IsPositive() {
		b, err := ledger.BalanceTx(tx, t.UserID)
		return b, nil, err
	}

	prefix := ledger.RefTradeCredit
	if out.Result == models.TradeResultDraw {
		prefix = ledger.RefTradeRefund
	}
	res, err := ledger.CreditTx(tx, ledger.CreditRequest{
		UserID:    t.UserID,
		Amount:    out.Payout,
		Type:      models.TransactionTypeTradeCredit,
		Reference: ledger.NewReference(prefix),
		Metadata: map[string]interface{}{
			"trade_id":    t.ID.String(),
			"result":      out.Result,
			"payout_rate": t.PayoutRate.String(),
		},
	})
	if err != nil {
		return decimal.Zero, nil, err
	}
	return res.Balance, &res.Transaction.ID, nil
}

func (s *Service) GetActiveTrades(ctx context.Context, userID uuid.UUID, isDemo bool) ([]models.Trade, error) {
	return s.trades.ListActive(ctx, userID, &isDemo)
}

func (s *Service) GetTradeHistory(ctx context.Context, userID uuid.UUID, filter repositories.TradeFilter) ([]models.Trade, int64, error) {
	return s.trades.History(ctx, userID, filter)
}

func (s *Service) GetTrade(ctx context.Context, userID, id uuid.UUID) (*models.Trade, error) {
	return s.trades.GetForUser(ctx, userID, id)
}

// ResetDemo tops the virtual balance back up to the configured starting value.
func (s *Service) ResetDemo(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := ledger.ResetDemoTx(tx, userID, s.config.DemoInitialBalance)
		balance = b
		return err
	})
	return balance, err
}

func validateRequest(req PlaceRequest) error {
	if req.Direction != models.DirectionUp && req.Direction != models.DirectionDown {
		return appErrors.ErrInvalidDirection
	}
	if !validTimeframe(req.TimeframeSeconds) {
		return appErrors.ErrInvalidTimeframe
	}
	if !ledger.ValidAmount(req.Amount) {
		return appErrors.ErrInvalidAmount
	}
	return nil
}

func buildTrade(req PlaceRequest, inst *models.Instrument, tick *models.PriceTick, now time.Time) *models.Trade {
	return &models.Trade{
		ID:               uuid.New(),
		UserID:           req.UserID,
		InstrumentID:     inst.ID,
		Symbol:           inst.Symbol,
		IsDemo:           req.IsDemo,
		Direction:        req.Direction,
		Amount:           req.Amount,
		PayoutRate:       inst.PayoutRate,
		EntryPrice:       entryPrice(req.Direction, tick),
		TimeframeSeconds: req.TimeframeSeconds,
		ExpiresAt:        now.Add(time.Duration(req.TimeframeSeconds) * time.Second),
		Status:           models.TradeStatusActive,
	}
}
