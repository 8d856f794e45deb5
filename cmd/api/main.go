package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/baharkarakas/coinmatch/internal/api"
	"github.com/baharkarakas/coinmatch/internal/auth"
	"github.com/baharkarakas/coinmatch/internal/config"
	"github.com/baharkarakas/coinmatch/internal/db"
	"github.com/baharkarakas/coinmatch/internal/events"
	"github.com/baharkarakas/coinmatch/internal/keylock"
	"github.com/baharkarakas/coinmatch/internal/logger"
	"github.com/baharkarakas/coinmatch/internal/metrics"
	repo "github.com/baharkarakas/coinmatch/internal/repository"
	"github.com/baharkarakas/coinmatch/internal/repository/memory"
	"github.com/baharkarakas/coinmatch/internal/repository/postgres"
	"github.com/baharkarakas/coinmatch/internal/services"
	"github.com/baharkarakas/coinmatch/internal/worker"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env, cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	repos, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer repos.Close()

	metrics.Init()
	wp := worker.NewPool(cfg.Workers)
	defer wp.Stop()

	hub := events.NewHub()
	if cfg.RedisURL != "" {
		rdb, err := events.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer drainThenClose(wp, rdb, log)
		hub.Attach(events.NewRedisBridge(rdb, wp, cfg.BalanceChannelPrefix, log))
		log.Info("balance changes published to redis", "prefix", cfg.BalanceChannelPrefix)
	}

	locks := keylock.New()
	ledger := services.NewLedgerService(repos, locks, hub, services.MockGateway{}, log)
	notify := services.NewNotificationService(repos.Notifications)
	matches := services.NewMatchService(repos, ledger, notify, locks, services.MatchConfig{
		Fee:              cfg.Match.Fee,
		MinMessageLength: cfg.Match.MinMessageLength,
		RequestTTL:       cfg.Match.RequestTTL,
		RefundOnExpiry:   cfg.Match.RefundOnExpiry,
	}, log)
	settlement := services.NewSettlementService(repos, ledger, notify, locks, log)
	users := services.NewUserService(repos, ledger, cfg.SignupBonus)
	tokens := auth.NewTokenManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.JWTIssuer, 15*time.Minute, 7*24*time.Hour)

	if cfg.Match.ExpirySweep > 0 {
		go sweepExpired(ctx, matches, cfg.Match.ExpirySweep, log)
	}

	srv := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: api.NewRouter(api.RouterDeps{
			Cfg:           cfg,
			Log:           log,
			Tokens:        tokens,
			Users:         users,
			Ledger:        ledger,
			Matches:       matches,
			Settlement:    settlement,
			Notifications: notify,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.HTTPPort, "store", cfg.StoreBackend, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		return err
	}
	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (repo.Repositories, error) {
	switch cfg.StoreBackend {
	case "memory":
		log.Warn("using in-memory store; data is lost on restart")
		return memory.NewRepositories(), nil
	case "postgres":
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
		if err != nil {
			return repo.Repositories{}, fmt.Errorf("db connect: %w", err)
		}
		if cfg.Migrate {
			if err := db.RunMigrations(ctx, pool); err != nil {
				pool.Close()
				return repo.Repositories{}, fmt.Errorf("migrations: %w", err)
			}
		}
		return postgres.NewRepositories(pool), nil
	}
	return repo.Repositories{}, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
}

// sweepExpired expires overdue requests on a ticker so refunds (when
// enabled) do not wait for somebody to read the request.
func sweepExpired(ctx context.Context, matches *services.MatchService, every time.Duration, log *slog.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := matches.ExpireDue(ctx, now.UTC())
			if err != nil {
				log.Error("expiry sweep", "err", err, "expired", n)
				continue
			}
			if n > 0 {
				log.Info("expiry sweep", "expired", n)
			}
		}
	}
}

// drainThenClose stops the pool, letting queued publishes finish, before
// the client they publish through is closed.
func drainThenClose(pool interface{ Stop() }, client io.Closer, log *slog.Logger) {
	pool.Stop()
	if err := client.Close(); err != nil {
		log.Warn("redis close", "err", err)
	}
}
