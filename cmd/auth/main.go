package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Jitendra7073/HSM-backend-sub001/internal/adapter/cache"
	"github.com/Jitendra7073/HSM-backend-sub001/internal/bootstrap"
	"github.com/Jitendra7073/HSM-backend-sub001/internal/config"
	httptransport "github.com/Jitendra7073/HSM-backend-sub001/internal/http"
	"github.com/Jitendra7073/HSM-backend-sub001/internal/http/handler"
	httpmiddleware "github.com/Jitendra7073/HSM-backend-sub001/internal/http/middleware"
	"github.com/Jitendra7073/HSM-backend-sub001/internal/notify"
	"github.com/Jitendra7073/HSM-backend-sub001/internal/repository"
	"github.com/Jitendra7073/HSM-backend-sub001/internal/server"
	"github.com/Jitendra7073/HSM-backend-sub001/internal/service"
	"github.com/Jitendra7073/HSM-backend-sub001/internal/telemetry"
	"github.com/Jitendra7073/HSM-backend-sub001/internal/token"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newSnowflake,
			newPGXPool,
			newUserRepository,
			newRefreshTokenRepository,
			newRedisClient,
			newResetTokenRepository,
			newTokenCodec,
			newMailer,
			newDispatcher,
			service.NewAuthService,
			newAuthGate,
			handler.NewAuthHandler,
			newRateLimiter,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, bootstrap.EnsureAdmin, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func newUserRepository(pool *pgxpool.Pool) repository.UserRepository {
	return repository.NewPostgresUserRepo(pool)
}

func newRefreshTokenRepository(pool *pgxpool.Pool) repository.RefreshTokenRepository {
	return repository.NewPostgresRefreshTokenRepo(pool)
}

func newRedisClient(lc fx.Lifecycle, cfg config.Config) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func newResetTokenRepository(client redis.UniversalClient) repository.ResetTokenRepository {
	return cache.NewRedisResetStore(client)
}

func newTokenCodec(cfg config.Config) *token.Codec {
	return token.NewCodec([]byte(cfg.JWTSecretKey), cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
}

func newMailer(cfg config.Config) notify.Mailer {
	if cfg.SMTPHost == "" {
		return notify.NopMailer{}
	}
	return &notify.SMTPMailer{
		Addr:     cfg.SMTPHost + ":" + cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}
}

func newDispatcher(lc fx.Lifecycle, mailer notify.Mailer, logger *zap.Logger) *notify.Dispatcher {
	dispatcher := notify.NewDispatcher(mailer, logger, 256)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return dispatcher.Close(ctx)
		},
	})
	return dispatcher
}

func newAuthGate(svc *service.AuthService, cfg config.Config, logger *zap.Logger) *httpmiddleware.Auth {
	return httpmiddleware.NewAuth(svc, cfg, logger)
}

func newRateLimiter(cfg config.Config) *httpmiddleware.RateLimiter {
	return httpmiddleware.NewRateLimiter(cfg.RateLimitRPM)
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
