package repositories

import (
	"context"
	"errors"
	"fmt"

	appErrors "stakeoption/internal/errors"
	"stakeoption/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type paymentRequestRepository struct {
	db *gorm.DB
}

func NewPaymentRequestRepository(db *gorm.DB) PaymentRequestRepository {
	return &paymentRequestRepository{db: db}
}

func (r *paymentRequestRepository) Create(ctx context.Context, req *models.PaymentRequest) error {
	if err := r.db.WithContext(ctx).Create(req).Error; err != nil {
		return fmt.Errorf("failed to create payment request: %w", err)
	}
	return nil
}

func (r *paymentRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.PaymentRequest, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *paymentRequestRepository) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.PaymentRequest, error) {
	return r.first(ctx, "checkout_request_id = ?", checkoutRequestID)
}

func (r *paymentRequestRepository) GetByConversationID(ctx context.Context, conversationID string) (*models.PaymentRequest, error) {
	return r.first(ctx, "conversation_id = ? OR originator_conversation_id = ?", conversationID, conversationID)
}

func (r *paymentRequestRepository) Transition(ctx context.Context, id uuid.UUID, from []string, fields map[string]interface{}) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.PaymentRequest{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(fields)
	if res.Error != nil {
		return false, fmt.Errorf("failed to update payment request: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *paymentRequestRepository) first(ctx context.Context, query string, args ...interface{}) (*models.PaymentRequest, error) {
	var req models.PaymentRequest
	err := r.db.WithContext(ctx).Where(query, args...).First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, appErrors.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment request: %w", err)
	}
	return &req, nil
}
