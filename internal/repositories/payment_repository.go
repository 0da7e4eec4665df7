package repositories

import (
	"context"

	"stakeoption/internal/models"

	"github.com/google/uuid"
)

// PaymentRequestRepository stores M-Pesa attempts.
type PaymentRequestRepository interface {
	Create(ctx context.Context, req *models.PaymentRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.PaymentRequest, error)
	GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.PaymentRequest, error)
	GetByConversationID(ctx context.Context, conversationID string) (*models.PaymentRequest, error)

	// Transition applies fields only while the row is in one of from. It
	// reports whether the row changed.
	Transition(ctx context.Context, id uuid.UUID, from []string, fields map[string]interface{}) (bool, error)
}
