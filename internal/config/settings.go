package config

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trading holds the platform-wide trading limits.
type Trading struct {
	MaxConcurrentTrades int
	DemoInitialBalance  decimal.Decimal
}

// Pricing controls the synthetic price engine.
type Pricing struct {
	TickInterval     time.Duration
	PriceTTL         time.Duration
	SnapshotInterval time.Duration
	InstrumentsFile  string
}

// Settlement controls the due-queue worker.
type Settlement struct {
	Interval   time.Duration
	BatchSize  int
	RetryDelay time.Duration
}

// Mpesa holds the Daraja credentials and payment limits.
type Mpesa struct {
	Environment        string
	ConsumerKey        string
	ConsumerSecret     string
	Passkey            string
	ShortCode          string
	B2CShortCode       string
	InitiatorName      string
	SecurityCredential string
	CallbackBaseURL    string
	MinDeposit         decimal.Decimal
	MaxDeposit         decimal.Decimal
	MinWithdrawal      decimal.Decimal
	MaxWithdrawal      decimal.Decimal
}

// BaseURL returns the Daraja host for the configured environment.
func (m Mpesa) BaseURL() string {
	if m.Environment == "production" {
		return "https://api.safaricom.co.ke"
	}
	return "https://sandbox.safaricom.co.ke"
}

func LoadTrading() Trading {
	return Trading{
		MaxConcurrentTrades: GetIntEnv("MAX_CONCURRENT_TRADES", 10),
		DemoInitialBalance:  GetDecimalEnv("DEMO_INITIAL_BALANCE", decimal.NewFromInt(10000)),
	}
}

func LoadPricing() Pricing {
	return Pricing{
		TickInterval:     GetDurationEnv("PRICE_TICK_INTERVAL", time.Second),
		PriceTTL:         GetDurationEnv("PRICE_TTL", 60*time.Second),
		SnapshotInterval: GetDurationEnv("PRICE_SNAPSHOT_INTERVAL", 10*time.Second),
		InstrumentsFile:  GetEnv("INSTRUMENTS_FILE", ""),
	}
}

func LoadSettlement() Settlement {
	return Settlement{
		Interval:   GetDurationEnv("SETTLEMENT_INTERVAL", 500*time.Millisecond),
		BatchSize:  GetIntEnv("SETTLEMENT_BATCH_SIZE", 50),
		RetryDelay: GetDurationEnv("SETTLEMENT_RETRY_DELAY", 2*time.Second),
	}
}

func LoadMpesa() Mpesa {
	return Mpesa{
		Environment:        GetEnv("MPESA_ENV", "sandbox"),
		ConsumerKey:        GetEnv("MPESA_CONSUMER_KEY", ""),
		ConsumerSecret:     GetEnv("MPESA_CONSUMER_SECRET", ""),
		Passkey:            GetEnv("MPESA_PASSKEY", ""),
		ShortCode:          GetEnv("MPESA_SHORTCODE", "174379"),
		B2CShortCode:       GetEnv("MPESA_B2C_SHORTCODE", "600000"),
		InitiatorName:      GetEnv("MPESA_INITIATOR_NAME", "StakeOptionAdmin"),
		SecurityCredential: GetEnv("MPESA_SECURITY_CREDENTIAL", ""),
		CallbackBaseURL:    GetEnv("MPESA_CALLBACK_BASE_URL", "http://localhost:3000"),
		MinDeposit:         GetDecimalEnv("MIN_DEPOSIT", decimal.NewFromInt(100)),
		MaxDeposit:         GetDecimalEnv("MAX_DEPOSIT", decimal.NewFromInt(300000)),
		MinWithdrawal:      GetDecimalEnv("MIN_WITHDRAWAL", decimal.NewFromInt(100)),
		MaxWithdrawal:      GetDecimalEnv("MAX_WITHDRAWAL", decimal.NewFromInt(150000)),
	}
}

// Server holds the listener and integration settings of cmd/server.
type Server struct {
	Port              string
	WSPort            string
	ClientURL         string
	JWTSecret         string
	KafkaBrokers      []string
	KafkaTopic        string
	SnapshotRetention time.Duration
	ShutdownTimeout   time.Duration
}

func LoadServer() Server {
	return Server{
		Port:              GetEnv("PORT", "3000"),
		WSPort:            GetEnv("WS_PORT", "3001"),
		ClientURL:         GetEnv("CLIENT_URL", "http://localhost:5173"),
		JWTSecret:         GetEnv("JWT_SECRET", ""),
		KafkaBrokers:      GetListEnv("KAFKA_BROKERS"),
		KafkaTopic:        GetEnv("KAFKA_TOPIC", "stakeoption.user-events"),
		SnapshotRetention: GetDurationEnv("PRICE_SNAPSHOT_RETENTION", 72*time.Hour),
		ShutdownTimeout:   GetDurationEnv("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}
