// Command seed syncs the instrument catalog and provisions a trader and an
// admin account for local development, printing an access token for each.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"stakeoption/internal/config"
	applogger "stakeoption/internal/logger"
	"stakeoption/internal/models"
	"stakeoption/internal/repositories"
	"stakeoption/internal/services/ledger"
	"stakeoption/internal/services/payment"
	"stakeoption/internal/services/pricing"
	"stakeoption/internal/utils"

	"go.uber.org/zap"
)

func main() {
	config.LoadEnv()

	log, err := applogger.New(config.GetEnv("ENV", "development"))
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if err := seed(context.Background(), log); err != nil {
		log.Fatal("seed failed", zap.Error(err))
	}
}

func seed(ctx context.Context, log *zap.Logger) error {
	secret := config.GetEnv("JWT_SECRET", "")
	if secret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	ttl := config.GetDurationEnv("SEED_TOKEN_TTL", 24*time.Hour)

	if err := repositories.InitDB(); err != nil {
		return err
	}
	defer func() {
		if err := repositories.Close(); err != nil {
			log.Warn("failed to close database connection", zap.Error(err))
		}
	}()

	catalog, err := pricing.LoadCatalog(config.LoadPricing().InstrumentsFile)
	if err != nil {
		return err
	}
	rows := make([]models.Instrument, 0, len(catalog))
	for _, c := range catalog {
		rows = append(rows, c.ToInstrument())
	}
	if err := repositories.NewInstrumentRepository(repositories.DB).Sync(ctx, rows); err != nil {
		return err
	}
	log.Info("instrument catalog synced", zap.Int("instruments", len(rows)))

	users := repositories.NewUserRepository(repositories.DB)
	wallets := ledger.NewService(repositories.DB, log, nil)
	demo := config.LoadTrading().DemoInitialBalance

	accounts := []struct {
		phone string
		role  string
	}{
		{config.GetEnv("SEED_USER_PHONE", "0712345678"), models.RoleUser},
		{config.GetEnv("ADMIN_PHONE", "0700000000"), models.RoleAdmin},
	}
	for _, a := range accounts {
		phone, err := payment.NormalizePhone(a.phone)
		if err != nil {
			return fmt.Errorf("%s phone: %w", a.role, err)
		}
		user, err := users.Create(ctx, &models.User{Phone: phone, Role: a.role, IsActive: true, DemoBalance: demo})
		if err != nil {
			return err
		}
		if _, err := wallets.CreateWallet(ctx, user.ID); err != nil {
			return err
		}
		token, err := utils.GenerateToken(user.ID, user.Role, secret, ttl)
		if err != nil {
			return err
		}
		log.Info("account ready", zap.String("role", user.Role), zap.String("user_id", user.ID.String()), zap.String("phone", user.Phone))
		fmt.Fprintf(os.Stdout, "%s\t%s\t%s\n", user.Role, user.ID, token)
	}
	return nil
}
