package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/Skotchmaster/shop_payments/pkg/authclient"
	pkgdb "github.com/Skotchmaster/shop_payments/pkg/db"
	"github.com/Skotchmaster/shop_payments/pkg/es"
	"github.com/Skotchmaster/shop_payments/pkg/logging"
	loggingmw "github.com/Skotchmaster/shop_payments/pkg/middleware/logging"
	"github.com/Skotchmaster/shop_payments/pkg/mykafka"
	"github.com/Skotchmaster/shop_payments/services/payment/internal/config"
	"github.com/Skotchmaster/shop_payments/services/payment/internal/gateway"
	"github.com/Skotchmaster/shop_payments/services/payment/internal/httpserver"
	"github.com/Skotchmaster/shop_payments/services/payment/internal/intent"
	"github.com/Skotchmaster/shop_payments/services/payment/internal/migrations"
	"github.com/Skotchmaster/shop_payments/services/payment/internal/pricing"
	"github.com/Skotchmaster/shop_payments/services/payment/internal/repo"
	"github.com/Skotchmaster/shop_payments/services/payment/internal/search"
	"github.com/Skotchmaster/shop_payments/services/payment/internal/service"
)

func main() {
	// a missing .env is fine, the environment may already be set
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.ServiceName)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("payment_service_error", "error", err)
		os.Exit(1)
	}
	logger.Info("payment service stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	db, err := pkgdb.Open(initCtx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db init: %w", err)
	}
	defer func() { _ = pkgdb.Close(db) }()

	if err := migrations.Up(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	store := &repo.GormRepo{DB: db}
	readyChecks := []func(context.Context) error{
		func(ctx context.Context) error { return pkgdb.Ping(ctx, db) },
	}

	var intents intent.Store
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(initCtx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		intents = intent.NewRedisStore(rdb)
		readyChecks = append(readyChecks, func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	} else {
		logger.Warn("intent_store_in_memory", "reason", "REDIS_ADDR not set, intents are lost on restart")
		intents = intent.NewMemoryStore()
	}

	zarinpal := gateway.NewZarinpalClient(gateway.Config{
		MerchantID: cfg.MerchantID,
		BaseURL:    cfg.GatewayBaseURL,
		Timeout:    cfg.GatewayTimeout,
	})

	deps := service.Deps{
		Pricer: pricing.NewValidator(store),
		Gateway: gateway.NewBreakerClient(zarinpal, gateway.BreakerConfig{
			ConsecutiveFailures: uint32(max(cfg.BreakerFailures, 1)),
			OpenTimeout:         cfg.BreakerOpenTimeout,
		}, logger),
		Intents: intents,
		Orders:  store,
	}

	if len(cfg.KafkaBrokers) > 0 {
		producer := mykafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		deps.Events = producer
	}

	handler := &httpserver.PaymentHTTP{}
	if cfg.ESURL != "" {
		esClient, err := es.NewClient(initCtx, es.Config{URL: cfg.ESURL, User: cfg.ESUser, Password: cfg.ESPassword})
		if err != nil {
			return fmt.Errorf("elasticsearch: %w", err)
		}
		index := search.NewOrderIndex(esClient, cfg.OrderIndex)
		deps.Index = index
		handler.Search = index
	}

	handler.Svc = service.NewPaymentService(service.Config{
		CallbackURL:    cfg.CallbackURL,
		IntentTTL:      cfg.IntentTTL,
		StoreID:        cfg.StoreID,
		GatewayTimeout: cfg.GatewayTimeout,
	}, deps)

	var authClient *authclient.Client
	if cfg.AuthHTTPURL != "" {
		authClient = authclient.NewClient(cfg.AuthHTTPURL)
	}

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), loggingmw.RequestLogger(logger))

	httpserver.Register(e, &httpserver.Deps{
		PaymentHandler: handler,
		JWTSecret:      cfg.JWTAccessSecret,
		AuthClient:     authClient,
		Ready: func(ctx context.Context) error {
			for _, check := range readyChecks {
				if err := check(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	})

	reaper := intent.NewReaper(intents, cfg.IntentSweepInterval, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + strconv.Itoa(cfg.ServerPort)
		logger.Info("starting payment service", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("echo start: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return reaper.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
