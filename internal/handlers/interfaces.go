package handlers

import (
	"context"

	"stakeoption/internal/models"
	"stakeoption/internal/repositories"
	"stakeoption/internal/services/ledger"
	"stakeoption/internal/services/market"
	"stakeoption/internal/services/payment"
	"stakeoption/internal/services/payment/mpesa"
	"stakeoption/internal/services/trade"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type MarketService interface {
	ListAssets(ctx context.Context, category string) ([]market.Asset, error)
	GetPrice(ctx context.Context, symbol string) (*models.PriceTick, error)
	GetPrices(ctx context.Context, symbols []string) (map[string]models.PriceTick, error)
	GetCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error)
}

type WalletService interface {
	GetWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, filter ledger.TransactionFilter) ([]models.Transaction, int64, error)
}

type UserReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type TradeService interface {
	PlaceTrade(ctx context.Context, req trade.PlaceRequest) (*trade.PlaceResult, error)
	GetActiveTrades(ctx context.Context, userID uuid.UUID, isDemo bool) ([]models.Trade, error)
	GetTradeHistory(ctx context.Context, userID uuid.UUID, filter repositories.TradeFilter) ([]models.Trade, int64, error)
	GetTrade(ctx context.Context, userID, id uuid.UUID) (*models.Trade, error)
	ResetDemo(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
}

type PaymentService interface {
	InitiateDeposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, phone string) (*payment.DepositResult, error)
	DepositStatus(ctx context.Context, userID, requestID uuid.UUID) (*payment.DepositStatus, error)
	QueryDeposit(ctx context.Context, userID, requestID uuid.UUID) (*mpesa.STKQueryResponse, error)
	InitiateWithdrawal(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, phone string) (*payment.WithdrawalResult, error)
	ExecuteWithdrawal(ctx context.Context, requestID uuid.UUID) (*mpesa.B2CResponse, error)
	HandleSTKCallback(ctx context.Context, payload []byte) error
	HandleB2CResult(ctx context.Context, payload []byte) error
	HandleB2CTimeout(ctx context.Context, payload []byte) error
}
