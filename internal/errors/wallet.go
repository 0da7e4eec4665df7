package errors

import "net/http"

var (
	ErrInsufficientBalance = &DomainError{
		Code:    "INSUFFICIENT_BALANCE",
		Message: "insufficient balance",
		Status:  http.StatusBadRequest,
	}
	ErrInvalidAmount = &DomainError{
		Code:    "INVALID_AMOUNT",
		Message: "amount must be positive with at most 2 decimal places",
		Status:  http.StatusBadRequest,
	}
	ErrWalletNotFound = &DomainError{
		Code:    "WALLET_NOT_FOUND",
		Message: "wallet not found",
		Status:  http.StatusNotFound,
	}
	ErrWalletLocked = &DomainError{
		Code:    "WALLET_LOCKED",
		Message: "wallet is temporarily locked",
		Status:  http.StatusLocked,
	}
	ErrNotReversible = &DomainError{
		Code:    "NOT_REVERSIBLE",
		Message: "transaction not found or not reversible",
		Status:  http.StatusConflict,
	}
	ErrNotProcessing = &DomainError{
		Code:    "NOT_PROCESSING",
		Message: "withdrawal is not awaiting completion",
		Status:  http.StatusConflict,
	}
	ErrDuplicateReference = &DomainError{
		Code:    "DUPLICATE_REFERENCE",
		Message: "reference already used by another entry",
		Status:  http.StatusConflict,
	}
	ErrUserNotFound = &DomainError{
		Code:    "USER_NOT_FOUND",
		Message: "user not found",
		Status:  http.StatusNotFound,
	}
)
