package ledger

import (
	"strings"
	"testing"

	appErrors "stakeoption/internal/errors"
	"stakeoption/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPlanDebit(t *testing.T) {
	tests := []struct {
		name    string
		wallet  models.Wallet
		amount  string
		wantErr error
		after   string
	}{
		{name: "exact balance", wallet: models.Wallet{Balance: dec("500")}, amount: "500", after: "0"},
		{name: "partial", wallet: models.Wallet{Balance: dec("1000.50")}, amount: "0.50", after: "1000"},
		{name: "insufficient", wallet: models.Wallet{Balance: dec("100")}, amount: "100.01", wantErr: appErrors.ErrInsufficientBalance},
		{name: "locked", wallet: models.Wallet{Balance: dec("100"), IsLocked: true}, amount: "1", wantErr: appErrors.ErrWalletLocked},
		{name: "zero", wallet: models.Wallet{Balance: dec("100")}, amount: "0", wantErr: appErrors.ErrInvalidAmount},
		{name: "negative", wallet: models.Wallet{Balance: dec("100")}, amount: "-5", wantErr: appErrors.ErrInvalidAmount},
		{name: "sub-cent", wallet: models.Wallet{Balance: dec("100.00")}, amount: "50.005", wantErr: appErrors.ErrInvalidAmount},
		{name: "trailing zeros", wallet: models.Wallet{Balance: dec("100")}, amount: "25.5000", after: "74.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mv, err := planDebit(&tt.wallet, dec(tt.amount))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, mv.After.Equal(dec(tt.after)), "after = %s", mv.After)
			assert.True(t, mv.Amount.Equal(dec(tt.amount).Neg()))
			assert.True(t, mv.Before.Add(mv.Amount).Equal(mv.After))
		})
	}
}

func TestPlanCreditAllowedOnLockedWallet(t *testing.T) {
	mv, err := planCredit(&models.Wallet{Balance: dec("10"), IsLocked: true}, dec("15.25"))
	require.NoError(t, err)
	assert.True(t, mv.After.Equal(dec("25.25")))
	assert.True(t, mv.Amount.Equal(dec("15.25")))
}

func TestValidAmount(t *testing.T) {
	assert.True(t, ValidAmount(dec("0.01")))
	assert.True(t, ValidAmount(dec("150000")))
	assert.True(t, ValidAmount(dec("12.300")))
	assert.False(t, ValidAmount(dec("0.001")))
	assert.False(t, ValidAmount(dec("50.005")))
	assert.False(t, ValidAmount(decimal.Zero))

	_, err := planCredit(&models.Wallet{Balance: dec("10")}, dec("1.999"))
	assert.ErrorIs(t, err, appErrors.ErrInvalidAmount)
}

func TestPlanReversal(t *testing.T) {
	wallet := &models.Wallet{ID: uuid.New(), Balance: dec("400")}
	processing := &models.Transaction{
		WalletID: wallet.ID,
		Type:     models.TransactionTypeWithdrawal,
		Status:   models.TransactionStatusProcessing,
		Amount:   dec("-600"),
	}

	mv, err := planReversal(wallet, processing)
	require.NoError(t, err)
	assert.True(t, mv.After.Equal(dec("1000")))
	assert.True(t, mv.Amount.Equal(dec("600")))

	t.Run("rejects anything but a processing withdrawal", func(t *testing.T) {
		cases := []*models.Transaction{
			nil,
			{WalletID: wallet.ID, Type: models.TransactionTypeWithdrawal, Status: models.TransactionStatusReversed, Amount: dec("-600")},
			{WalletID: wallet.ID, Type: models.TransactionTypeWithdrawal, Status: models.TransactionStatusCompleted, Amount: dec("-600")},
			{WalletID: wallet.ID, Type: models.TransactionTypeTradeDebit, Status: models.TransactionStatusProcessing, Amount: dec("-600")},
			{WalletID: uuid.New(), Type: models.TransactionTypeWithdrawal, Status: models.TransactionStatusProcessing, Amount: dec("-600")},
		}
		for _, c := range cases {
			_, err := planReversal(wallet, c)
			assert.ErrorIs(t, err, appErrors.ErrNotReversible)
		}
	})
}

// Replaying a sequence of movements must chain before/after exactly and end on
// the running balance.
func TestMovementsConserveBalance(t *testing.T) {
	wallet := &models.Wallet{ID: uuid.New(), Balance: decimal.Zero}
	var journal []movement

	step := func(mv movement, err error) {
		require.NoError(t, err)
		journal = append(journal, mv)
		wallet.Balance = mv.After
	}

	step(planCredit(wallet, dec("1000")))
	step(planDebit(wallet, dec("500")))
	step(planCredit(wallet, dec("925.00")))
	step(planDebit(wallet, dec("333.33")))
	withdrawal := &models.Transaction{
		WalletID: wallet.ID,
		Type:     models.TransactionTypeWithdrawal,
		Status:   models.TransactionStatusProcessing,
		Amount:   dec("-333.33"),
	}
	step(planReversal(wallet, withdrawal))

	_, err := planDebit(wallet, dec("100000"))
	assert.ErrorIs(t, err, appErrors.ErrInsufficientBalance)

	replayed := decimal.Zero
	for i, mv := range journal {
		assert.True(t, mv.Before.Equal(replayed), "entry %d before %s want %s", i, mv.Before, replayed)
		assert.True(t, mv.Before.Add(mv.Amount).Equal(mv.After), "entry %d", i)
		replayed = mv.After
	}
	assert.True(t, replayed.Equal(wallet.Balance))
	assert.True(t, replayed.Equal(dec("1425")))
}

func TestReferences(t *testing.T) {
	ref := NewReference(RefTradeDebit)
	assert.True(t, strings.HasPrefix(ref, "TD-"))
	assert.Len(t, ref, len("TD-")+26)
	assert.NotEqual(t, ref, NewReference(RefTradeDebit))

	assert.Equal(t, "DEP-ws_CO_123", DepositReference("ws_CO_123"))
	assert.Equal(t, RefWithdrawal, debitPrefix(models.TransactionTypeWithdrawal))
	assert.Equal(t, RefTradeCredit, defaultPrefix(models.TransactionTypeTradeCredit))
	assert.Equal(t, RefCredit, defaultPrefix(models.TransactionTypeBonus))
}
