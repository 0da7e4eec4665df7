/*
Package ledger owns every change to a wallet balance.

Each operation runs inside one database transaction that locks the wallet row,
reads the balance, writes the new balance and appends a journal entry. For every
wallet, replaying its transactions in creation order reproduces the balance:

	balance_after[n] == balance_before[n+1]
	balance_after[n] == balance_before[n] + amount[n]

Amounts are signed; debits are stored negative.

Usage:

	svc := ledger.NewService(db, log, metrics)

	res, err := svc.Credit(ctx, ledger.CreditRequest{
	    UserID: userID,
	    Amount: decimal.RequireFromString("250.00"),
	    Type:   models.TransactionTypeDeposit,
	})

Callers that need the debit inside a larger transaction (trade placement) use
DebitTx and CreditTx with their own *gorm.DB handle.

Withdrawals are debited with status processing. ReverseDebit restores the funds
exactly once; a second call fails with NOT_REVERSIBLE.
*/
package ledger
