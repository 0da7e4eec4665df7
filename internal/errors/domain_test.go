package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"direct", ErrWalletLocked, http.StatusLocked, "WALLET_LOCKED"},
		{"wrapped", fmt.Errorf("debit: %w", ErrInsufficientBalance), http.StatusBadRequest, "INSUFFICIENT_BALANCE"},
		{"zero status", &DomainError{Code: "X", Message: "x"}, http.StatusBadRequest, "X"},
		{"plain error", fmt.Errorf("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := HTTPStatus(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}
