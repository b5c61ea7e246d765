package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eaglebank/registry/internal/command"
	"github.com/eaglebank/registry/internal/db/migrate"
	"github.com/eaglebank/registry/internal/handler"
	"github.com/eaglebank/registry/internal/query"
	"github.com/eaglebank/registry/internal/repository"
	"github.com/eaglebank/registry/internal/server"
	"github.com/eaglebank/registry/shared/config"
	"github.com/eaglebank/registry/shared/events"
	"github.com/eaglebank/registry/shared/logger"
	"github.com/eaglebank/registry/shared/metrics"
	redisClient "github.com/eaglebank/registry/shared/redis"
	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("registry stopped", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	uow, closeStore, err := openStore(ctx, cfg, log, m)
	if err != nil {
		return err
	}
	defer closeStore()

	// Redis (read model cache + event streaming) is optional.
	var redis *redisClient.Client
	if cfg.RedisEnabled() {
		redis, err = redisClient.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer redis.Close()
		log.Info("redis connected", "addr", cfg.RedisAddr)
	} else {
		log.Warn("REDIS_ADDR not set; view cache and events disabled")
	}

	// --- CQRS wiring ---
	readRepo := repository.NewReadRepository(uow, redis.Raw(), cfg.ViewCacheTTL, log, m)
	deps := command.Deps{
		UnitOfWork: uow,
		ReadRepo:   readRepo,
		Publisher:  events.NewPublisher(redis.Raw()),
		Metrics:    m,
		Logger:     log,
	}
	userCommands := command.NewUserCommandService(deps)
	accountCommands := command.NewAccountCommandService(deps)

	handlers := server.Handlers{
		Users:    handler.NewUserHandler(userCommands, query.NewUserQueryService(uow, readRepo, log)),
		Accounts: handler.NewAccountHandler(accountCommands, query.NewAccountQueryService(uow, readRepo, log)),
		Metrics:  handler.NewMetricsHandler(query.NewMetricsQueryService(uow, log)),
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.NewRouter(handlers, log, m),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("registry starting", "port", cfg.Port, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if redis != nil {
		host, _ := os.Hostname()
		subscribers := []events.SubscriberConfig{
			{
				Group:    "registry-user-views",
				Consumer: "user-views-" + host,
				Stream:   events.AccountEventsStream,
				Handler:  userCommands.HandleAccountEvent,
				Logger:   log,
			},
			{
				Group:    "registry-account-views",
				Consumer: "account-views-" + host,
				Stream:   events.UserEventsStream,
				Handler:  accountCommands.HandleUserEvent,
				Logger:   log,
			},
		}
		for _, sc := range subscribers {
			sub := events.NewSubscriber(redis.Client, sc)
			g.Go(func() error { return sub.Start(ctx) })
		}
	}

	return g.Wait()
}

// openStore selects the persistence backend. The returned func releases it.
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger, m *metrics.Metrics) (repository.UnitOfWork, func(), error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		log.Warn("using in-memory store; data is lost on restart")
		return repository.NewMemoryUnitOfWork(m), func() {}, nil
	}

	if cfg.MigrateOnStart {
		if err := migrate.Run(cfg.DatabaseURL, migrate.Up); err != nil {
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	return repository.NewPostgresUnitOfWork(db, cfg.TxTimeout, m), func() { _ = db.Close() }, nil
}
