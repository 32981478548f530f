package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"tutorly/config"
	"tutorly/internal/database"
	"tutorly/internal/domain"
	"tutorly/internal/lock"
	"tutorly/internal/middleware"
	"tutorly/internal/obs"
	"tutorly/internal/repository"
	"tutorly/internal/router"
	"tutorly/internal/service"
	"tutorly/internal/worker"
	"tutorly/pkg/mq"
	"tutorly/pkg/payment"
)

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// buildGateways registers every configured gateway. Stubs that move no real
// money are only registered outside production.
func buildGateways(ctx context.Context, cfg *config.Config) (payment.Registry, payment.PayoutRouter) {
	gateways := payment.Registry{}
	payouts := payment.PayoutRouter{}
	if !cfg.Production() {
		gateways["stub"] = &payment.StubProvider{}
		payouts[domain.PayoutMethodBank] = &payment.StubPayoutGateway{}
	}
	if cfg.LiberecMpesa.Enabled() {
		mpesa := payment.NewLiberecMpesaProvider(cfg.LiberecMpesa.BaseURL, cfg.LiberecMpesa.Email, cfg.LiberecMpesa.Password,
			cfg.LiberecMpesa.WebhookBaseURL, cfg.Payment.CallbackSecret)
		gateways["mpesa"] = mpesa
		payouts[domain.PayoutMethodMpesa] = mpesa
	}
	if cfg.Midtrans.ServerKey != "" {
		gateways["midtrans"] = payment.NewMidtransProvider(cfg.Midtrans.ServerKey, cfg.Midtrans.Production)
	}
	if cfg.PayPal.ClientID != "" {
		payouts[domain.PayoutMethodPayPal] = payment.NewPayPalPayouts(ctx, cfg.PayPal.BaseURL, cfg.PayPal.ClientID, cfg.PayPal.ClientSecret)
	}
	return gateways, payouts
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	if err := database.SeedPlatformAccount(db, cfg); err != nil {
		log.Fatalf("seed: %v", err)
	}
	store := repository.NewStore(db, cfg.Database.TxRetries)
	if err := store.Settings.SeedDefaults(map[string]string{
		domain.SettingCommissionRate: cfg.Escrow.DefaultCommissionRate,
		domain.SettingPayoutMinimum:  strconv.FormatInt(cfg.Payout.MinimumCents, 10),
	}); err != nil {
		log.Fatalf("seed settings: %v", err)
	}

	shutdownTracer, err := obs.InitTracer(ctx, cfg.Otel.Endpoint, cfg.Otel.ServiceName, cfg.Server.Env)
	if err != nil {
		log.Fatalf("tracer: %v", err)
	}

	var publisher service.EventPublisher = mq.NopPublisher{}
	var closePublisher func() error
	if cfg.Rabbit.URL != "" {
		p, err := mq.NewPublisher(cfg.Rabbit.URL, cfg.Rabbit.Exchange)
		if err != nil {
			log.Fatalf("rabbitmq: %v", err)
		}
		publisher, closePublisher = p, p.Close
	}

	var locker lock.Locker
	var limiter middleware.Limiter
	if cfg.Redis.URL != "" {
		rdb, err := lock.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer rdb.Close()
		locker = lock.NewRedisLocker(rdb)
		limiter = middleware.NewRedisRateLimiter(rdb, 100, time.Minute)
	} else {
		locker = lock.NewLocalLocker()
		mem := middleware.NewInMemoryRateLimiter(100, time.Minute)
		go mem.Cleanup(ctx)
		limiter = mem
	}

	gateways, payouts := buildGateways(ctx, cfg)

	eng := service.New(service.Deps{
		Store:     store,
		Config:    cfg,
		Gateways:  gateways,
		Payouts:   payouts,
		Publisher: publisher,
		Logger:    logger,
	})

	var sweeper *worker.Sweeper
	if cfg.Sweep.Enabled {
		sweeper = worker.NewSweeper(eng.Sweeps, locker, cfg.Sweep, logger)
		if err := sweeper.Start(); err != nil {
			log.Fatalf("sweeper: %v", err)
		}
	}

	engine := router.Setup(cfg, store, eng, limiter, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Info("server listening", "port", cfg.Server.Port, "gateways", len(gateways))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "err", err)
	}
	if sweeper != nil {
		sweeper.Stop(shutdownCtx)
	}
	if closePublisher != nil {
		if err := closePublisher(); err != nil {
			logger.Warn("close publisher", "err", err)
		}
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		logger.Warn("tracer shutdown", "err", err)
	}
	logger.Info("server stopped")
}
