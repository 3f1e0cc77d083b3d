package main // Entry point package

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/study-hall-booking/internal/config"
	"github.com/iliyamo/study-hall-booking/internal/database"
	"github.com/iliyamo/study-hall-booking/internal/handler"
	"github.com/iliyamo/study-hall-booking/internal/logger"
	"github.com/iliyamo/study-hall-booking/internal/middleware"
	"github.com/iliyamo/study-hall-booking/internal/queue"
	"github.com/iliyamo/study-hall-booking/internal/repository"
	"github.com/iliyamo/study-hall-booking/internal/router"
	"github.com/iliyamo/study-hall-booking/internal/service"
)

// stores groups the persistence ports of the selected backend.
type stores struct {
	halls    repository.HallStore
	seats    repository.SeatStore
	bookings repository.BookingStore
	users    repository.UserStore
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	health := map[string]handler.Pinger{}
	st, closeStore, err := openStores(ctx, cfg, log, health)
	if err != nil {
		return err
	}
	defer closeStore()

	// Redis is optional: without it the cache and the rate limiter pass through.
	rdb, err := config.NewRedisClient(ctx, config.LoadRedisConfig())
	if err != nil {
		log.Warn("redis unavailable; cache and rate limit disabled", zap.Error(err))
		rdb = nil
	} else {
		defer func() { _ = rdb.Close() }()
		health["redis"] = handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}
	cacheCfg := config.LoadCacheConfig()
	events := eventPublisher(ctx, cfg, rdb, cacheCfg, log)

	locks := service.NewSeatLocks()
	ledger := service.NewLedger(st.seats, st.bookings, locks, log.Named("ledger"), cfg.StrictInvariants)
	resolver := service.NewResolver(st.halls, st.seats, st.bookings, cfg.MaintenanceOpenHorizon)
	registry := service.NewRegistry(st.halls, st.seats, st.bookings, locks, events, log.Named("registry"))
	bookings := service.NewBookingService(st.halls, st.seats, st.users, ledger, resolver, service.HallRatePricer{}, events, log.Named("booking"))
	reporter := service.NewReporter(registry, ledger, cfg.ReportLocation, cfg.ReportDayHours)

	seatHandler := handler.NewSeatHandler(registry, resolver, log)
	e := router.New(log, middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log))
	router.RegisterRoutes(e, handler.Health(health))
	router.RegisterAuth(e, handler.NewAuthHandler(st.users, cfg.JWTSecret, time.Duration(cfg.AccessTTLMin)*time.Minute, cfg.BcryptCost, log))
	router.RegisterPublic(e, seatHandler, middleware.NewRedisCache(cacheCfg, rdb, log))
	router.RegisterCustomer(e, handler.NewBookingHandler(bookings, log), cfg.JWTSecret)
	router.RegisterOwner(e, seatHandler, handler.NewHallHandler(registry, reporter, log), cfg.JWTSecret)

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("store", cfg.Store))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// openStores selects the persistence backend.  The returned func releases it.
func openStores(ctx context.Context, cfg config.Config, log *zap.Logger, health map[string]handler.Pinger) (stores, func(), error) {
	if cfg.Store == "memory" {
		log.Warn("using the in-memory store; data is lost on restart")
		m := repository.NewMemoryStore()
		return stores{halls: m, seats: m, bookings: m, users: m}, func() {}, nil
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return stores{}, nil, fmt.Errorf("mysql: %w", err)
	}
	if err := database.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return stores{}, nil, err
	}
	health["mysql"] = db
	return stores{
		halls:    repository.NewHallRepo(db),
		seats:    repository.NewSeatRepo(db),
		bookings: repository.NewBookingRepo(db),
		users:    repository.NewUserRepo(db),
	}, func() { _ = db.Close() }, nil
}

// eventPublisher returns the RabbitMQ publisher and starts the consumer
// when events are enabled.  Otherwise events are applied in-process so the
// seat map cache is still invalidated.
func eventPublisher(ctx context.Context, cfg config.Config, rdb *redis.Client, cacheCfg config.CacheConfig, log *zap.Logger) service.EventPublisher {
	consumerLog := log.Named("seat-events")
	if !cfg.EventsEnabled {
		if rdb == nil {
			return service.NopPublisher{}
		}
		return queue.NewSeatEventConsumer("", rdb, cacheCfg, consumerLog)
	}
	go func() {
		err := queue.StartSeatEventConsumer(ctx, cfg.RabbitMQURL, rdb, cacheCfg, consumerLog)
		if err != nil && !errors.Is(err, context.Canceled) {
			consumerLog.Error("consumer stopped", zap.Error(err))
		}
	}()
	return service.NewAMQPPublisher(cfg.RabbitMQURL, log.Named("publisher"))
}
