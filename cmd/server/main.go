// Package main is the entry point for the trading API.
// It wires storage, the price engine, settlement, payments and the
// realtime gateway, then serves HTTP and websocket traffic until signalled.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stakeoption/internal/config"
	"stakeoption/internal/events"
	"stakeoption/internal/handlers"
	applogger "stakeoption/internal/logger"
	"stakeoption/internal/metrics"
	"stakeoption/internal/middleware"
	"stakeoption/internal/models"
	"stakeoption/internal/repositories"
	"stakeoption/internal/repositories/cache"
	"stakeoption/internal/routes"
	"stakeoption/internal/services/ledger"
	"stakeoption/internal/services/market"
	"stakeoption/internal/services/payment"
	"stakeoption/internal/services/payment/mpesa"
	"stakeoption/internal/services/pricing"
	"stakeoption/internal/services/settlement"
	"stakeoption/internal/services/trade"
	"stakeoption/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const retentionInterval = time.Hour

func main() {
	config.LoadEnv()

	log, err := applogger.New(config.GetEnv("ENV", "development"))
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if err := run(log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(log *zap.Logger) error {
	srv := config.LoadServer()
	if srv.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	pricingCfg := config.LoadPricing()
	mpesaCfg := config.LoadMpesa()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize databases (PostgreSQL + Redis)
	if err := repositories.InitDB(); err != nil {
		return err
	}
	defer func() {
		if err := repositories.Close(); err != nil {
			log.Warn("failed to close database connection", zap.Error(err))
		}
	}()
	sqlDB, err := repositories.DB.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return err
	}
	log.Info("connected to database")

	rdb := cache.NewRedisClient(cache.LoadRedisConfig())
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn("failed to close redis connection", zap.Error(err))
		}
	}()
	if err := cache.Ping(ctx, rdb); err != nil {
		return err
	}
	log.Info("connected to redis")

	catalog, err := pricing.LoadCatalog(pricingCfg.InstrumentsFile)
	if err != nil {
		return err
	}
	instruments := repositories.NewInstrumentRepository(repositories.DB)
	rows := make([]models.Instrument, 0, len(catalog))
	for _, c := range catalog {
		rows = append(rows, c.ToInstrument())
	}
	if err := instruments.Sync(ctx, rows); err != nil {
		return err
	}
	log.Info("instrument catalog synced", zap.Int("instruments", len(rows)))

	collector := metrics.New()
	prices := cache.NewPriceCache(rdb, pricingCfg.PriceTTL)
	queue := cache.NewDueQueue(rdb)
	store := cache.NewCacheService(rdb, 10*time.Minute)
	snapshots := repositories.NewPriceSnapshotRepository(repositories.DB)
	trades := repositories.NewTradeRepository(repositories.DB)
	users := repositories.NewUserRepository(repositories.DB)

	var publisher events.Publisher = events.NewRedisPublisher(rdb)
	var kafka *events.KafkaPublisher
	if len(srv.KafkaBrokers) > 0 {
		kafka = events.NewKafkaPublisher(srv.KafkaBrokers, srv.KafkaTopic, log)
		defer func() {
			if err := kafka.Close(); err != nil {
				log.Warn("failed to close kafka writer", zap.Error(err))
			}
		}()
		publisher = events.Fanout{publisher, kafka}
		log.Info("mirroring user events to kafka", zap.Strings("brokers", srv.KafkaBrokers), zap.String("topic", srv.KafkaTopic))
	}

	engine, err := pricing.NewEngine(catalog, prices, snapshots, pricing.EngineConfig{
		TickInterval:     pricingCfg.TickInterval,
		SnapshotInterval: pricingCfg.SnapshotInterval,
	}, log, collector)
	if err != nil {
		return err
	}

	wallets := ledger.NewService(repositories.DB, log, collector)
	tradeSvc := trade.NewService(repositories.DB, trades, instruments, prices, queue, publisher, config.LoadTrading(), log, collector)
	scheduler := settlement.NewScheduler(queue, tradeSvc, config.LoadSettlement(), log, collector)
	gateway := mpesa.NewClient(mpesaCfg, store, log)
	paymentSvc := payment.NewService(gateway, wallets, repositories.NewPaymentRequestRepository(repositories.DB), store, publisher, mpesaCfg, log, collector)
	marketSvc := market.NewService(instruments, prices, snapshots, catalog, log)

	registry := events.NewRegistry()
	wsCfg := events.DefaultServerConfig()
	wsCfg.AllowedOrigins = []string{srv.ClientURL}
	gatewayWS := events.NewServer(registry, prices, utils.TokenUserParser(srv.JWTSecret), wsCfg, log, collector)
	relay := events.NewRelay(rdb, registry, log, collector)

	engine.Warm(ctx)
	if n, err := scheduler.Reconcile(ctx, trades); err != nil {
		log.Warn("settlement reconcile failed", zap.Error(err))
	} else {
		log.Info("settlement queue reconciled", zap.Int("registered", n))
	}

	app := fiber.New()

	// CORS middleware
	app.Use(cors.New(cors.Config{
		AllowOrigins:     srv.ClientURL,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET,POST,HEAD,PUT,DELETE,PATCH",
		AllowCredentials: true,
	}))

	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	app.Use("/api/trades", rateLimit(60))
	app.Use("/api/mpesa/deposit", rateLimit(10))
	app.Use("/api/mpesa/withdraw", rateLimit(5))

	pingRedis := func(ctx context.Context) error { return cache.Ping(ctx, rdb) }
	health := handlers.NewHealthHandler(map[string]handlers.Check{
		"database": sqlDB.PingContext,
		"redis":    pingRedis,
	})

	routes.SetupRoutes(app, routes.Handlers{
		Auth:    middleware.NewAuthMiddleware(srv.JWTSecret, log),
		Health:  health,
		Market:  handlers.NewMarketHandler(marketSvc),
		Wallet:  handlers.NewWalletHandler(wallets, users),
		Trade:   handlers.NewTradeHandler(tradeSvc),
		Payment: handlers.NewPaymentHandler(paymentSvc, log),
		Metrics: collector.Handler(),
	})

	mux := http.NewServeMux()
	mux.Handle("/ws", gatewayWS)
	wsHTTP := &http.Server{
		Addr:              ":" + srv.WSPort,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return engine.Run(gctx) })
	g.Go(func() error { return scheduler.Run(gctx) })
	g.Go(func() error { return relay.Run(gctx) })
	if kafka != nil {
		g.Go(func() error { return kafka.Run(gctx) })
	}
	g.Go(func() error { return marketSvc.RunRetention(gctx, retentionInterval, srv.SnapshotRetention) })
	g.Go(func() error {
		poolStats(gctx, log, sqlDB)
		return nil
	})
	g.Go(func() error {
		log.Info("websocket gateway listening", zap.String("addr", wsHTTP.Addr))
		if err := wsHTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("http api listening", zap.String("port", srv.Port))
		return app.Listen(":" + srv.Port)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), srv.ShutdownTimeout)
		defer cancel()
		if err := wsHTTP.Shutdown(shutdownCtx); err != nil {
			log.Warn("websocket shutdown", zap.Error(err))
		}
		return app.ShutdownWithTimeout(srv.ShutdownTimeout)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func rateLimit(limit int) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        limit,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests. Please try again later.",
				"code":  "RATE_LIMITED",
			})
		},
	})
}
