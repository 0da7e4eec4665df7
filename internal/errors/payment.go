package errors

import "net/http"

var (
	ErrInvalidPhone = &DomainError{
		Code:    "INVALID_PHONE",
		Message: "phone must be a Kenyan mobile number",
		Status:  http.StatusBadRequest,
	}
	ErrAmountOutOfRange = &DomainError{
		Code:    "AMOUNT_OUT_OF_RANGE",
		Message: "amount is outside the allowed range",
		Status:  http.StatusBadRequest,
	}
	ErrPaymentNotFound = &DomainError{
		Code:    "PAYMENT_NOT_FOUND",
		Message: "payment request not found",
		Status:  http.StatusNotFound,
	}
	ErrPaymentProcessed = &DomainError{
		Code:    "PAYMENT_PROCESSED",
		Message: "payment request already processed",
		Status:  http.StatusConflict,
	}
	ErrMpesaAuthFailed = &DomainError{
		Code:    "MPESA_AUTH_FAILED",
		Message: "M-Pesa authentication failed",
		Status:  http.StatusBadGateway,
	}
	ErrSTKPushFailed = &DomainError{
		Code:    "STK_PUSH_FAILED",
		Message: "failed to initiate M-Pesa payment",
		Status:  http.StatusBadGateway,
	}
	ErrB2CFailed = &DomainError{
		Code:    "B2C_FAILED",
		Message: "B2C payment failed",
		Status:  http.StatusBadGateway,
	}
)
