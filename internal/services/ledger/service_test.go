package ledger

import (
	"context"
	"strings"
	"testing"

	appErrors "stakeoption/internal/errors"
	"stakeoption/internal/models"
	"stakeoption/internal/repositories/testdb"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type ledgerFixture struct {
	db   *gorm.DB
	svc  *Service
	user uuid.UUID
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	db := testdb.New(t)
	user := &models.User{Phone: "254712345678"}
	require.NoError(t, db.Create(user).Error)

	svc := NewService(db, nil, nil)
	_, err := svc.CreateWallet(context.Background(), user.ID)
	require.NoError(t, err)
	return &ledgerFixture{db: db, svc: svc, user: user.ID}
}

func (f *ledgerFixture) balance(t *testing.T) decimal.Decimal {
	t.Helper()
	w, err := f.svc.GetWallet(context.Background(), f.user)
	require.NoError(t, err)
	return w.Balance
}

func (f *ledgerFixture) journal(t *testing.T) []models.Transaction {
	t.Helper()
	var txs []models.Transaction
	require.NoError(t, f.db.Where("user_id = ?", f.user).Order("created_at ASC").Find(&txs).Error)
	return txs
}

func (f *ledgerFixture) fund(t *testing.T, amount string) {
	t.Helper()
	_, err := f.svc.Credit(context.Background(), CreditRequest{
		UserID: f.user, Amount: dec(amount), Type: models.TransactionTypeDeposit,
	})
	require.NoError(t, err)
}

func TestCreateWalletIsIdempotent(t *testing.T) {
	f := newLedgerFixture(t)
	again, err := f.svc.CreateWallet(context.Background(), f.user)
	require.NoError(t, err)

	var count int64
	require.NoError(t, f.db.Model(&models.Wallet{}).Where("user_id = ?", f.user).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	assert.True(t, again.Balance.IsZero())
}

func TestCreditAndDebitWriteJournal(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)

	credit, err := f.svc.Credit(ctx, CreditRequest{UserID: f.user, Amount: dec("1000"), Type: models.TransactionTypeDeposit})
	require.NoError(t, err)
	assert.True(t, credit.Balance.Equal(dec("1000")))
	assert.False(t, credit.Replayed)

	debit, err := f.svc.Debit(ctx, DebitRequest{UserID: f.user, Amount: dec("250.50"), Type: models.TransactionTypeTradeDebit})
	require.NoError(t, err)
	assert.True(t, debit.Balance.Equal(dec("749.50")))
	assert.Equal(t, models.TransactionStatusCompleted, debit.Transaction.Status)

	assert.True(t, f.balance(t).Equal(dec("749.50")))
	journal := f.journal(t)
	require.Len(t, journal, 2)
	for _, e := range journal {
		assert.True(t, e.BalanceBefore.Add(e.Amount).Equal(e.BalanceAfter), "entry %s", e.Reference)
	}
	assert.True(t, strings.HasPrefix(debit.Transaction.Reference, RefTradeDebit+"-"))
}

func TestDebitRejectionLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	f.fund(t, "100")

	for _, amount := range []string{"100.01", "50.005", "0"} {
		_, err := f.svc.Debit(ctx, DebitRequest{UserID: f.user, Amount: dec(amount), Type: models.TransactionTypeWithdrawal})
		assert.Error(t, err, amount)
	}
	_, err := f.svc.Debit(ctx, DebitRequest{UserID: f.user, Amount: dec("100.01"), Type: models.TransactionTypeWithdrawal})
	assert.ErrorIs(t, err, appErrors.ErrInsufficientBalance)

	assert.True(t, f.balance(t).Equal(dec("100")))
	assert.Len(t, f.journal(t), 1)
}

func TestDebitUnknownWallet(t *testing.T) {
	f := newLedgerFixture(t)
	_, err := f.svc.Debit(context.Background(), DebitRequest{UserID: uuid.New(), Amount: dec("1"), Type: models.TransactionTypeWithdrawal})
	assert.ErrorIs(t, err, appErrors.ErrWalletNotFound)
}

func TestCreditReferencePostsOnce(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	req := CreditRequest{
		UserID:    f.user,
		Amount:    dec("500"),
		Type:      models.TransactionTypeDeposit,
		Reference: DepositReference("ws_CO_1"),
	}

	first, err := f.svc.Credit(ctx, req)
	require.NoError(t, err)
	second, err := f.svc.Credit(ctx, req)
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.Transaction.ID, second.Transaction.ID)
	assert.True(t, second.Balance.Equal(dec("500")))
	assert.True(t, f.balance(t).Equal(dec("500")))
	assert.Len(t, f.journal(t), 1)

	req.Amount = dec("700")
	_, err = f.svc.Credit(ctx, req)
	assert.ErrorIs(t, err, appErrors.ErrDuplicateReference)
	assert.True(t, f.balance(t).Equal(dec("500")))
}

func TestReverseDebitRestoresOnce(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	f.fund(t, "1000")

	hold, err := f.svc.Debit(ctx, DebitRequest{
		UserID: f.user, Amount: dec("600"), Type: models.TransactionTypeWithdrawal,
		Status: models.TransactionStatusProcessing,
	})
	require.NoError(t, err)
	assert.True(t, f.balance(t).Equal(dec("400")))

	rev, err := f.svc.ReverseDebit(ctx, f.user, hold.Transaction.ID)
	require.NoError(t, err)
	assert.True(t, rev.Balance.Equal(dec("1000")))
	assert.Equal(t, hold.Transaction.Reference, rev.Transaction.Metadata["reversed_reference"])

	_, err = f.svc.ReverseDebit(ctx, f.user, hold.Transaction.ID)
	assert.ErrorIs(t, err, appErrors.ErrNotReversible)
	assert.True(t, f.balance(t).Equal(dec("1000")))

	journal := f.journal(t)
	require.Len(t, journal, 3)
	var original models.Transaction
	require.NoError(t, f.db.First(&original, "id = ?", hold.Transaction.ID).Error)
	assert.Equal(t, models.TransactionStatusReversed, original.Status)

	_, err = f.svc.ReverseDebit(ctx, uuid.New(), hold.Transaction.ID)
	assert.ErrorIs(t, err, appErrors.ErrWalletNotFound)
	_, err = f.svc.ReverseDebit(ctx, f.user, uuid.New())
	assert.ErrorIs(t, err, appErrors.ErrNotReversible)
}

func TestCompleteWithdrawal(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	f.fund(t, "1000")

	hold := func() uuid.UUID {
		res, err := f.svc.Debit(ctx, DebitRequest{
			UserID: f.user, Amount: dec("100"), Type: models.TransactionTypeWithdrawal,
			Status: models.TransactionStatusProcessing,
		})
		require.NoError(t, err)
		return res.Transaction.ID
	}

	paid := hold()
	done, err := f.svc.CompleteWithdrawal(ctx, paid, "RKT1")
	require.NoError(t, err)
	assert.True(t, done)
	var entry models.Transaction
	require.NoError(t, f.db.First(&entry, "id = ?", paid).Error)
	assert.Equal(t, models.TransactionStatusCompleted, entry.Status)
	require.NotNil(t, entry.ExternalReference)
	assert.Equal(t, "RKT1", *entry.ExternalReference)

	done, err = f.svc.CompleteWithdrawal(ctx, paid, "RKT1")
	require.NoError(t, err)
	assert.False(t, done)

	refunded := hold()
	_, err = f.svc.ReverseDebit(ctx, f.user, refunded)
	require.NoError(t, err)
	_, err = f.svc.CompleteWithdrawal(ctx, refunded, "RKT2")
	assert.ErrorIs(t, err, appErrors.ErrNotProcessing)

	_, err = f.svc.CompleteWithdrawal(ctx, uuid.New(), "")
	assert.ErrorIs(t, err, appErrors.ErrNotProcessing)
	assert.True(t, f.balance(t).Equal(dec("900")))
}

func TestListTransactionsFilters(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	f.fund(t, "1000")
	_, err := f.svc.Debit(ctx, DebitRequest{UserID: f.user, Amount: dec("10"), Type: models.TransactionTypeTradeDebit})
	require.NoError(t, err)
	_, err = f.svc.Debit(ctx, DebitRequest{UserID: f.user, Amount: dec("20"), Type: models.TransactionTypeTradeDebit})
	require.NoError(t, err)

	txs, total, err := f.svc.ListTransactions(ctx, f.user, TransactionFilter{Type: models.TransactionTypeTradeDebit, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, txs, 1)

	_, total, err = f.svc.ListTransactions(ctx, uuid.New(), TransactionFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestDemoBalance(t *testing.T) {
	f := newLedgerFixture(t)

	err := f.db.Transaction(func(tx *gorm.DB) error {
		b, err := DemoDebitTx(tx, f.user, dec("50"))
		require.NoError(t, err)
		assert.True(t, b.Equal(dec("9950")))

		b, err = DemoCreditTx(tx, f.user, dec("92.50"))
		require.NoError(t, err)
		assert.True(t, b.Equal(dec("10042.50")))
		return nil
	})
	require.NoError(t, err)

	err = f.db.Transaction(func(tx *gorm.DB) error {
		_, err := DemoDebitTx(tx, f.user, dec("20000"))
		return err
	})
	assert.ErrorIs(t, err, appErrors.ErrInsufficientBalance)

	err = f.db.Transaction(func(tx *gorm.DB) error {
		_, err := DemoCreditTx(tx, f.user, dec("0.005"))
		return err
	})
	assert.ErrorIs(t, err, appErrors.ErrInvalidAmount)

	b, err := DemoBalanceTx(f.db, f.user)
	require.NoError(t, err)
	assert.True(t, b.Equal(dec("10042.50")))

	// Demo movements never touch the real wallet or its journal.
	assert.True(t, f.balance(t).IsZero())
	assert.Empty(t, f.journal(t))
}
