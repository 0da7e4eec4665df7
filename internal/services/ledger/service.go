package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	appErrors "stakeoption/internal/errors"
	"stakeoption/internal/logger"
	"stakeoption/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreditRequest adds money to a wallet. Reference is generated when empty.
type CreditRequest struct {
	UserID            uuid.UUID
	Amount            decimal.Decimal
	Type              string
	Reference         string
	ExternalReference *string
	Metadata          map[string]interface{}
}

// DebitRequest removes money from a wallet. Status defaults to completed;
// withdrawals pass processing until the provider confirms.
type DebitRequest struct {
	UserID    uuid.UUID
	Amount    decimal.Decimal
	Type      string
	Status    string
	Reference string
	Metadata  map[string]interface{}
}

// Result is the journal entry written and the wallet balance after it.
// Replayed is set when a credit reference was already posted; Transaction is
// then the original entry and Balance the current one.
type Result struct {
	Transaction *models.Transaction
	Balance     decimal.Decimal
	Replayed    bool
}

// TransactionFilter narrows ListTransactions. Empty strings match everything.
type TransactionFilter struct {
	Type   string
	Status string
	Offset int
	Limit  int
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	metrics MetricsCollector
}

// NewService creates a new ledger service
func NewService(db *gorm.DB, log *zap.Logger, metrics MetricsCollector) *Service {
	if db == nil {
		panic("db is required")
	}
	if metrics == nil {
		metrics = &NoopMetricsCollector{}
	}
	return &Service{db: db, log: logger.OrNop(log), metrics: metrics}
}

// DB exposes the handle so callers can open a transaction spanning ledger and
// their own rows.
func (s *Service) DB() *gorm.DB {
	return s.db
}

func (s *Service) Credit(ctx context.Context, req CreditRequest) (*Result, error) {
	var res *Result
	err := s.run(ctx, "credit", func(tx *gorm.DB) error {
		var err error
		res, err = CreditTx(tx, req)
		return err
	})
	return res, err
}

func (s *Service) Debit(ctx context.Context, req DebitRequest) (*Result, error) {
	var res *Result
	err := s.run(ctx, "debit", func(tx *gorm.DB) error {
		var err error
		res, err = DebitTx(tx, req)
		return err
	})
	return res, err
}

// ReverseDebit restores a processing withdrawal. The original entry becomes
// reversed and a completed deposit entry carries the money back.
func (s *Service) ReverseDebit(ctx context.Context, userID, transactionID uuid.UUID) (*Result, error) {
	var res *Result
	err := s.run(ctx, "reverse", func(tx *gorm.DB) error {
		wallet, err := lockWallet(tx, userID)
		if err != nil {
			return err
		}

		var original models.Transaction
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND user_id = ?", transactionID, userID).
			First(&original).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return appErrors.ErrNotReversible
		}
		if err != nil {
			return fmt.Errorf("failed to load transaction: %w", err)
		}

		mv, err := planReversal(wallet, &original)
		if err != nil {
			return err
		}

		if err := tx.Model(&models.Transaction{}).
			Where("id = ?", original.ID).
			Update("status", models.TransactionStatusReversed).Error; err != nil {
			return fmt.Errorf("failed to mark transaction reversed: %w", err)
		}

		entry, err := apply(tx, wallet, mv, journalLine{
			txType:    models.TransactionTypeDeposit,
			status:    models.TransactionStatusCompleted,
			reference: NewReference(RefReversal),
			metadata: map[string]interface{}{
				"reversed_transaction_id": original.ID.String(),
				"reversed_reference":      original.Reference,
			},
		})
		if err != nil {
			return err
		}
		res = &Result{Transaction: entry, Balance: mv.After}
		return nil
	})
	return res, err
}

// CompleteWithdrawal moves a processing withdrawal to completed and records the
// provider receipt. It reports false for an entry that is already completed and
// returns ErrNotProcessing for one that was reversed, failed or never existed.
func (s *Service) CompleteWithdrawal(ctx context.Context, transactionID uuid.UUID, receipt string) (bool, error) {
	var changed bool
	err := s.run(ctx, "complete", func(tx *gorm.DB) error {
		var entry models.Transaction
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND type = ?", transactionID, models.TransactionTypeWithdrawal).
			First(&entry).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return appErrors.ErrNotProcessing
		}
		if err != nil {
			return fmt.Errorf("failed to load withdrawal: %w", err)
		}

		switch entry.Status {
		case models.TransactionStatusCompleted:
			return nil
		case models.TransactionStatusProcessing:
		default:
			return appErrors.ErrNotProcessing
		}

		update := map[string]interface{}{"status": models.TransactionStatusCompleted}
		if receipt != "" {
			update["external_reference"] = receipt
		}
		if err := tx.Model(&models.Transaction{}).Where("id = ?", entry.ID).Updates(update).Error; err != nil {
			return fmt.Errorf("failed to complete withdrawal: %w", err)
		}
		changed = true
		return nil
	})
	return changed, err
}

func (s *Service) GetWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND currency = ?", userID, models.DefaultCurrency).
		First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, appErrors.ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &wallet, nil
}

// CreateWallet is idempotent per user and currency.
func (s *Service) CreateWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	wallet := &models.Wallet{UserID: userID, Currency: models.DefaultCurrency}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(wallet).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}
	return s.GetWallet(ctx, userID)
}

// ListTransactions returns the newest entries first and the total match count.
func (s *Service) ListTransactions(ctx context.Context, userID uuid.UUID, f TransactionFilter) ([]models.Transaction, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Transaction{}).Where("user_id = ?", userID)
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var txs []models.Transaction
	if err := q.Order("created_at DESC").Offset(f.Offset).Limit(limit).Find(&txs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, total, nil
}

// CreditTx runs a credit on an open transaction. A caller supplied reference
// is posted at most once: repeating it returns the original entry unchanged.
func CreditTx(tx *gorm.DB, req CreditRequest) (*Result, error) {
	if !ValidAmount(req.Amount) {
		return nil, appErrors.ErrInvalidAmount
	}
	wallet, err := lockWallet(tx, req.UserID)
	if err != nil {
		return nil, err
	}
	if req.Reference != "" {
		existing, err := findByReference(tx, req.Reference)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			if existing.UserID != req.UserID || existing.Type != req.Type || !existing.Amount.Equal(req.Amount) {
				return nil, appErrors.ErrDuplicateReference
			}
			return &Result{Transaction: existing, Balance: wallet.Balance, Replayed: true}, nil
		}
	}
	mv, err := planCredit(wallet, req.Amount)
	if err != nil {
		return nil, err
	}
	ref := req.Reference
	if ref == "" {
		ref = NewReference(defaultPrefix(req.Type))
	}
	entry, err := apply(tx, wallet, mv, journalLine{
		txType:      req.Type,
		status:      models.TransactionStatusCompleted,
		reference:   ref,
		externalRef: req.ExternalReference,
		metadata:    req.Metadata,
	})
	if err != nil {
		return nil, err
	}
	return &Result{Transaction: entry, Balance: mv.After}, nil
}

// DebitTx runs a debit on an open transaction.
func DebitTx(tx *gorm.DB, req DebitRequest) (*Result, error) {
	if !ValidAmount(req.Amount) {
		return nil, appErrors.ErrInvalidAmount
	}
	wallet, err := lockWallet(tx, req.UserID)
	if err != nil {
		return nil, err
	}
	mv, err := planDebit(wallet, req.Amount)
	if err != nil {
		return nil, err
	}
	status := req.Status
	if status == "" {
		status = models.TransactionStatusCompleted
	}
	ref := req.Reference
	if ref == "" {
		ref = NewReference(debitPrefix(req.Type))
	}
	entry, err := apply(tx, wallet, mv, journalLine{
		txType:    req.Type,
		status:    status,
		reference: ref,
		metadata:  req.Metadata,
	})
	if err != nil {
		return nil, err
	}
	return &Result{Transaction: entry, Balance: mv.After}, nil
}

func (s *Service) run(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	start := time.Now()
	err := s.db.WithContext(ctx).Transaction(fn)
	result := "ok"
	if err != nil {
		result = "error"
		var de *appErrors.DomainError
		if errors.As(err, &de) {
			result = de.Code
		} else {
			s.log.Error("ledger operation failed", zap.String("operation", op), zap.Error(err))
		}
	}
	s.metrics.RecordLedgerOperation(op, result, time.Since(start))
	return err
}

// BalanceTx reads the wallet balance on an open transaction.
func BalanceTx(tx *gorm.DB, userID uuid.UUID) (decimal.Decimal, error) {
	var wallet models.Wallet
	err := tx.Select("balance").
		Where("user_id = ? AND currency = ?", userID, models.DefaultCurrency).
		First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, appErrors.ErrWalletNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read balance: %w", err)
	}
	return wallet.Balance, nil
}

func lockWallet(tx *gorm.DB, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND currency = ?", userID, models.DefaultCurrency).
		First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, appErrors.ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock wallet: %w", err)
	}
	return &wallet, nil
}

func findByReference(tx *gorm.DB, reference string) (*models.Transaction, error) {
	var entry models.Transaction
	err := tx.Where("reference = ?", reference).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up reference: %w", err)
	}
	return &entry, nil
}

type journalLine struct {
	txType      string
	status      string
	reference   string
	externalRef *string
	metadata    map[string]interface{}
}

// apply writes the new balance and the journal entry for one movement.
func apply(tx *gorm.DB, wallet *models.Wallet, mv movement, line journalLine) (*models.Transaction, error) {
	if err := tx.Model(&models.Wallet{}).
		Where("id = ?", wallet.ID).
		Update("balance", mv.After).Error; err != nil {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}

	entry := &models.Transaction{
		UserID:            wallet.UserID,
		WalletID:          wallet.ID,
		Type:              line.txType,
		Amount:            mv.Amount,
		BalanceBefore:     mv.Before,
		BalanceAfter:      mv.After,
		Status:            line.status,
		Reference:         line.reference,
		ExternalReference: line.externalRef,
		Metadata:          models.JSON(line.metadata),
	}
	if err := tx.Create(entry).Error; err != nil {
		return nil, fmt.Errorf("failed to append journal entry: %w", err)
	}
	wallet.Balance = mv.After
	return entry, nil
}

func debitPrefix(txType string) string {
	switch txType {
	case models.TransactionTypeWithdrawal:
		return RefWithdrawal
	case models.TransactionTypeTradeDebit:
		return RefTradeDebit
	default:
		return RefDebit
	}
}
