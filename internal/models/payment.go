package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	PaymentTypeSTKPush = "stk_push"
	PaymentTypeB2C     = "b2c"
)

// PaymentRequest lifecycle: initiated -> pending -> completed | failed.
const (
	PaymentStatusInitiated = "initiated"
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

// PaymentRequest is one M-Pesa attempt. Terminal once completed or failed.
type PaymentRequest struct {
	ID                       uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID                   uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	TransactionID            *uuid.UUID      `gorm:"type:uuid" json:"transaction_id"`
	Type                     string          `gorm:"size:20;not null" json:"type"`
	Phone                    string          `gorm:"size:15;not null" json:"phone"`
	Amount                   decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"amount"`
	MerchantRequestID        string          `gorm:"size:100" json:"merchant_request_id,omitempty"`
	CheckoutRequestID        string          `gorm:"size:100;index" json:"checkout_request_id,omitempty"`
	ConversationID           string          `gorm:"size:100;index" json:"conversation_id,omitempty"`
	OriginatorConversationID string          `gorm:"size:100" json:"originator_conversation_id,omitempty"`
	ResultCode               *int            `json:"result_code,omitempty"`
	ResultDesc               string          `gorm:"type:text" json:"result_desc,omitempty"`
	MpesaReceiptNumber       string          `gorm:"size:50" json:"mpesa_receipt_number,omitempty"`
	Status                   string          `gorm:"size:20;not null;default:'initiated';index" json:"status"`
	CallbackPayload          JSON            `gorm:"type:jsonb" json:"-"`
	CreatedAt                time.Time       `json:"created_at"`
	UpdatedAt                time.Time       `json:"updated_at"`
}

func (PaymentRequest) TableName() string {
	return "mpesa_requests"
}

func (p *PaymentRequest) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// IsTerminal reports whether later callbacks must be ignored.
func (p *PaymentRequest) IsTerminal() bool {
	return p.Status == PaymentStatusCompleted || p.Status == PaymentStatusFailed
}
