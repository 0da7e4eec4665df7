package ledger

import (
	"stakeoption/internal/models"

	"github.com/oklog/ulid/v2"
)

// Reference prefixes identify the journal entry type at a glance.
const (
	RefDeposit     = "DEP"
	RefWithdrawal  = "WD"
	RefTradeDebit  = "TD"
	RefTradeCredit = "TC"
	RefTradeRefund = "TR"
	RefReversal    = "REV"
	RefCredit      = "CR"
	RefDebit       = "DB"
)

// NewReference returns PREFIX-<ulid>. ULIDs sort by creation time.
func NewReference(prefix string) string {
	return prefix + "-" + ulid.Make().String()
}

// DepositReference is deterministic so a replayed provider callback collides
// on the unique reference index instead of crediting twice.
func DepositReference(checkoutRequestID string) string {
	return RefDeposit + "-" + checkoutRequestID
}

func defaultPrefix(txType string) string {
	switch txType {
	case models.TransactionTypeDeposit:
		return RefDeposit
	case models.TransactionTypeWithdrawal:
		return RefWithdrawal
	case models.TransactionTypeTradeDebit:
		return RefTradeDebit
	case models.TransactionTypeTradeCredit:
		return RefTradeCredit
	default:
		return RefCredit
	}
}
