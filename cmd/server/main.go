package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/equipment-lending/internal/config"
	"github.com/iliyamo/equipment-lending/internal/database"
	"github.com/iliyamo/equipment-lending/internal/handler"
	"github.com/iliyamo/equipment-lending/internal/lock"
	"github.com/iliyamo/equipment-lending/internal/queue"
	"github.com/iliyamo/equipment-lending/internal/repository"
	"github.com/iliyamo/equipment-lending/internal/router"
	"github.com/iliyamo/equipment-lending/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		boot, _ := zap.NewProduction()
		boot.Fatal("invalid configuration", zap.Error(err))
	}

	log := newLogger(cfg)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, ping, closeStore := openStore(ctx, cfg, log)
	defer closeStore()

	if cfg.SeedDemo {
		if err := database.Seed(ctx, store, cfg.BcryptCost, log); err != nil {
			log.Fatal("seed demo data", zap.Error(err))
		}
	}

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb == nil {
		log.Warn("redis unreachable; rate limiting and caching disabled")
	} else {
		defer func() { _ = rdb.Close() }()
	}
	locker := newLocker(cfg, rdb, log)

	var events service.EventPublisher = queue.NopPublisher{}
	if cfg.EventsEnabled {
		events = queue.NewPublisher(cfg.RabbitURL, cfg.EventsQueue, log)
		consumer := queue.NewConsumer(cfg.RabbitURL, cfg.EventsQueue, cfg.EventsLogPath, log)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("event consumer stopped", zap.Error(err))
			}
		}()
	}

	ledger := service.NewLedger(store)
	reservations := service.NewReservationService(store, ledger, locker, events, log)
	catalog := service.NewCatalogService(store, ledger, locker, log)

	e := router.New(router.Deps{
		Cfg:          cfg,
		RateLimit:    config.LoadRateLimitConfig(),
		Cache:        config.LoadCacheConfig(),
		Redis:        rdb,
		Log:          log,
		Ping:         ping,
		Auth:         handler.NewAuthHandler(cfg, store.Users(), log),
		Items:        handler.NewItemHandler(catalog, log),
		Reservations: handler.NewReservationHandler(reservations, log),
	})

	addr := ":" + cfg.Port
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env),
			zap.String("storage", cfg.StorageDriver), zap.String("lock", cfg.LockBackend))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
}

func newLogger(cfg config.Config) *zap.Logger {
	var (
		log *zap.Logger
		err error
	)
	if cfg.IsDev() {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return log
}

// openStore returns the configured backend, a health probe and a closer.
func openStore(ctx context.Context, cfg config.Config, log *zap.Logger) (repository.Store, func(context.Context) error, func()) {
	if cfg.StorageDriver == config.StorageMemory {
		log.Warn("using in-memory storage; data is lost on restart")
		return repository.NewMemoryStore(), nil, func() {}
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal("open database", zap.Error(err))
	}
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}
	return repository.NewMySQLStore(db), db.PingContext, func() { _ = db.Close() }
}

// newLocker picks the per-item lock. The Redis lock only works across
// replicas when Redis is reachable, so an unreachable server falls back
// to the in-process lock.
func newLocker(cfg config.Config, rdb *redis.Client, log *zap.Logger) lock.Locker {
	if cfg.LockBackend == config.LockRedis {
		if rdb != nil {
			return lock.NewRedisLocker(rdb, lock.RedisOptions{
				Prefix:     "lending:lock",
				TTL:        cfg.LockTTL,
				Attempts:   cfg.LockRetryAttempts,
				RetryDelay: cfg.LockRetryDelay,
			}, log)
		}
		log.Warn("LOCK_BACKEND=redis but redis is unreachable; using in-process lock")
	}
	return lock.NewLocalLocker()
}
