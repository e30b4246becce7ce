// Command adminauth serves invite-gated registration, JWT authentication and
// account administration over HTTP.
//
// @title                       Admin Auth API
// @version                     1.0
// @description                 Invite-gated registration, JWT authentication and account administration.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/99minutos/admin-auth/docs"
	"github.com/99minutos/admin-auth/internal/api"
	"github.com/99minutos/admin-auth/internal/api/handler"
	"github.com/99minutos/admin-auth/internal/api/middleware"
	"github.com/99minutos/admin-auth/internal/core/domain"
	"github.com/99minutos/admin-auth/internal/core/ports"
	"github.com/99minutos/admin-auth/internal/core/service"
	mongostore "github.com/99minutos/admin-auth/internal/infrastructure/db/mongo"
	redisstore "github.com/99minutos/admin-auth/internal/infrastructure/db/redis"
	"github.com/99minutos/admin-auth/internal/infrastructure/db/sqlstore"
	"github.com/99minutos/admin-auth/internal/infrastructure/queue"
	"github.com/99minutos/admin-auth/internal/pkg/config"
	"github.com/99minutos/admin-auth/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// store is implemented by both the SQL and the MongoDB backends.
type store interface {
	Accounts() ports.AccountRepository
	Invites() ports.InviteRepository
	Activity() ports.ActivityRepository
	Registrar() ports.Registrar
	EnsureSchema(ctx context.Context) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "adminauth: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	log := logger.New(logger.Options{
		Level:   cfg.LogLevel,
		Format:  logFormat(cfg),
		Service: "adminauth",
	})

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := st.Close(closeCtx); err != nil {
			log.Error().Err(err).Msg("store close failed")
		}
	}()

	if err := st.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	log.Info().Str("driver", cfg.Store.Driver).Msg("store ready")

	hasher := service.NewPasswordHasher(cfg.BcryptCost)

	if cfg.Seed.Enabled {
		seeder := service.NewSeeder(st.Accounts(), st.Invites(), hasher, logger.Component(log, "seeder"))
		if err := seeder.Seed(ctx, service.SeedConfig{
			AdminEmail:    cfg.Seed.AdminEmail,
			AdminPassword: cfg.Seed.AdminPassword,
			AdminName:     cfg.Seed.AdminName,
			Invites:       service.DefaultSeedInvites,
		}); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}

	tokens, err := service.NewTokenIssuer(service.TokenConfig{
		AccessSecret:  cfg.JWT.Secret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessTTL:     cfg.JWT.Expiration,
		RefreshTTL:    cfg.JWT.RefreshExpiration,
		Issuer:        cfg.JWT.Issuer,
	})
	if err != nil {
		return err
	}

	dispatcher := queue.NewDispatcher(cfg.Audit.Workers, st.Activity(), logger.Component(log, "audit"))
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	guard := service.NewBruteForceGuard(st.Accounts(), domain.DefaultLockoutPolicy, logger.Component(log, "guard"))
	authSvc := service.NewAuthService(
		st.Accounts(), st.Invites(), st.Registrar(),
		hasher, tokens, guard, dispatcher,
		logger.Component(log, "auth"),
	)
	adminSvc := service.NewAdminService(st.Accounts(), st.Invites(), st.Activity(), dispatcher, logger.Component(log, "admin"))

	health := map[string]handler.Pinger{"store": st}
	var limiter middleware.Limiter = middleware.NewLocalLimiter(cfg.Limit.Requests, cfg.Limit.Window)
	if cfg.Redis.Addr != "" {
		rdb, err := redisstore.Connect(ctx, redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer rdb.Close()
		limiter = redisstore.NewWindowLimiter(rdb, "auth", cfg.Limit.Requests, cfg.Limit.Window)
		health["redis"] = redisstore.NewChecker(rdb)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("redis rate limiter enabled")
	}

	proxies, err := cfg.ProxyRanges()
	if err != nil {
		return err
	}

	e := api.NewRouter(api.Dependencies{
		Auth:           authSvc,
		Admin:          adminSvc,
		Verifier:       tokens,
		Limiter:        limiter,
		Health:         health,
		TrustedProxies: proxies,
		Log:            logger.Component(log, "http"),
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("http server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	log.Info().Msg("http server stopped; draining audit queue")
	return nil
}

func logFormat(cfg *config.Config) string {
	if cfg.LogFormat != "" {
		return cfg.LogFormat
	}
	if cfg.IsDevelopment() {
		return logger.FormatConsole
	}
	return logger.FormatJSON
}

func openStore(ctx context.Context, cfg *config.Config) (store, error) {
	switch cfg.Store.Driver {
	case config.StoreMongo:
		client, db, err := mongostore.Connect(ctx, mongostore.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, err
		}
		return mongostore.NewStore(client, db), nil
	case config.StorePostgres, config.StoreSQLite:
		db, err := sqlstore.Open(ctx, sqlstore.Config{Driver: cfg.Store.Driver, DSN: cfg.Store.DSN})
		if err != nil {
			return nil, err
		}
		return sqlstore.NewStore(db), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
