package errors

import "net/http"

var (
	ErrAssetNotFound = &DomainError{
		Code:    "ASSET_NOT_FOUND",
		Message: "asset not found or inactive",
		Status:  http.StatusNotFound,
	}
	ErrBelowMinTrade = &DomainError{
		Code:    "BELOW_MIN_TRADE",
		Message: "amount is below the minimum trade",
		Status:  http.StatusBadRequest,
	}
	ErrAboveMaxTrade = &DomainError{
		Code:    "ABOVE_MAX_TRADE",
		Message: "amount is above the maximum trade",
		Status:  http.StatusBadRequest,
	}
	ErrInvalidTimeframe = &DomainError{
		Code:    "INVALID_TIMEFRAME",
		Message: "unsupported timeframe",
		Status:  http.StatusBadRequest,
	}
	ErrInvalidDirection = &DomainError{
		Code:    "INVALID_DIRECTION",
		Message: "direction must be UP or DOWN",
		Status:  http.StatusBadRequest,
	}
	ErrTooManyActiveTrades = &DomainError{
		Code:    "MAX_CONCURRENT_TRADES",
		Message: "maximum concurrent trades reached",
		Status:  http.StatusBadRequest,
	}
	ErrPriceUnavailable = &DomainError{
		Code:    "PRICE_UNAVAILABLE",
		Message: "price unavailable for this asset",
		Status:  http.StatusServiceUnavailable,
	}
	ErrTradeNotFound = &DomainError{
		Code:    "TRADE_NOT_FOUND",
		Message: "trade not found",
		Status:  http.StatusNotFound,
	}
)
