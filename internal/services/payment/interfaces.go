package payment

import (
	"context"
	"time"

	"stakeoption/internal/models"
	"stakeoption/internal/services/ledger"
	"stakeoption/internal/services/payment/mpesa"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Gateway is the external mobile-money provider.
type Gateway interface {
	STKPush(ctx context.Context, phone string, amount decimal.Decimal, accountRef string) (*mpesa.STKPushResponse, error)
	STKQuery(ctx context.Context, checkoutRequestID string) (*mpesa.STKQueryResponse, error)
	B2C(ctx context.Context, originatorID, phone string, amount decimal.Decimal) (*mpesa.B2CResponse, error)
}

// Ledger is the subset of the wallet ledger payments move money through.
type Ledger interface {
	Credit(ctx context.Context, req ledger.CreditRequest) (*ledger.Result, error)
	Debit(ctx context.Context, req ledger.DebitRequest) (*ledger.Result, error)
	ReverseDebit(ctx context.Context, userID, transactionID uuid.UUID) (*ledger.Result, error)
	CompleteWithdrawal(ctx context.Context, transactionID uuid.UUID, receipt string) (bool, error)
}

// Requests stores PaymentRequest rows.
type Requests interface {
	Create(ctx context.Context, req *models.PaymentRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.PaymentRequest, error)
	GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.PaymentRequest, error)
	GetByConversationID(ctx context.Context, conversationID string) (*models.PaymentRequest, error)
	Transition(ctx context.Context, id uuid.UUID, from []string, fields map[string]interface{}) (bool, error)
}

// Cache holds callback locks and pending-deposit markers.
type Cache interface {
	// AcquireLock returns a token that must be passed back to ReleaseLock.
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
	SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, keys ...string) error
}

type Publisher interface {
	PublishToUser(ctx context.Context, userID uuid.UUID, event string, data interface{}) error
}

// MetricsCollector counts provider callbacks by kind and outcome.
type MetricsCollector interface {
	RecordCallback(kind, outcome string)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector
type NoopMetricsCollector struct{}

func (n *NoopMetricsCollector) RecordCallback(string, string) {}
