package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/nourabuild/advisory-service/internal/app"
	"github.com/nourabuild/advisory-service/internal/config"
	"github.com/nourabuild/advisory-service/internal/sdk/sqldb"
	"github.com/nourabuild/advisory-service/internal/services/auth"
	"github.com/nourabuild/advisory-service/internal/services/hash"
	"github.com/nourabuild/advisory-service/internal/services/jwt"
	"github.com/nourabuild/advisory-service/internal/services/loans"
	"github.com/nourabuild/advisory-service/internal/services/mailtrap"
	"github.com/nourabuild/advisory-service/internal/services/minio"
	"github.com/nourabuild/advisory-service/internal/services/oauth"
	"github.com/nourabuild/advisory-service/internal/services/otp"
	"github.com/nourabuild/advisory-service/internal/services/sentry"
	"github.com/nourabuild/advisory-service/internal/services/sweeper"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	otpWindow      = time.Hour
	otpMaxInWindow = 5
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application failed: %v", err)
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("GOMAXPROCS", zap.Int("cpu", runtime.GOMAXPROCS(0)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Initialize Database
	dbService, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := dbService.Close(); err != nil {
			logger.Error("closing database", zap.Error(err))
		}
	}()
	logger.Info("storage ready", zap.String("driver", cfg.Storage))

	if n, err := app.SeedBlogPosts(ctx, dbService); err != nil {
		logger.Warn("seeding blog posts failed", zap.Error(err))
	} else if n > 0 {
		logger.Info("seeded blog posts", zap.Int("count", n))
	}

	// 2. Initialize Services
	sentryService := sentry.NewSentryService(cfg.Sentry, cfg.Environment, logger)
	defer sentryService.Flush(2 * time.Second)

	authService := auth.NewService(dbService)

	var docs loans.DocumentStore
	if cfg.Minio.Endpoint != "" {
		minioService, err := minio.NewMinioService(cfg.Minio)
		if err != nil {
			return fmt.Errorf("connecting to object storage: %w", err)
		}
		if err := minioService.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("ensuring bucket: %w", err)
		}
		docs = minioService
	} else {
		logger.Info("MINIO_ENDPOINT not set, document uploads disabled")
	}
	loanService := loans.NewService(dbService, docs)

	otpProvider, closeRedis, err := newOTPProvider(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	var mailer app.ConsultationMailer
	if mailtrapService := mailtrap.NewMailtrapService(cfg.Mailtrap); mailtrapService.Enabled() {
		mailer = mailtrapService
	} else {
		logger.Info("MAILTRAP_API_KEY not set, confirmation emails disabled")
	}

	registry := oauth.NewRegistry(cfg.OAuth)
	logger.Info("oauth providers", zap.Strings("enabled", registry.Names()))

	// 3. Initialize App
	application := app.NewApp(app.Deps{
		DB:     dbService,
		Auth:   authService,
		Loans:  loanService,
		OTP:    otpProvider,
		OAuth:  registry,
		State:  jwt.NewStateSigner(cfg.OAuth.StateSecret, cfg.OAuth.StateTTL),
		Mailer: mailer,
		Sentry: sentryService,
		Log:    logger,
	}, app.Options{
		FrontendURL: cfg.FrontendURL,
		CORSOrigins: cfg.CORSOrigins,
		AdminAPIKey: cfg.AdminAPIKey,
	})

	// 4. Configure Server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      application.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// 5. Run server and sweeper until a signal arrives
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return sweeper.New(authService, cfg.SessionSweepInterval, logger).Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down gracefully, press Ctrl+C again to force")
		stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server forced to shutdown", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

func openDatabase(ctx context.Context, cfg config.Config) (sqldb.Service, error) {
	if cfg.Storage == config.StorageMemory {
		return sqldb.NewMemory(), nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	db, err := sqldb.NewPostgres(connectCtx, cfg.Database.DSN(), cfg.Database.Name)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return db, nil
}

// newOTPProvider picks the code store and limiter (Redis when configured) and
// the delivery backend. The returned func closes the Redis client.
func newOTPProvider(ctx context.Context, cfg config.Config, logger *zap.Logger) (otp.Provider, func(), error) {
	var (
		store   otp.CodeStore
		limiter otp.Limiter
		closeFn = func() {}
	)

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connecting to redis: %w", err)
		}
		store = otp.NewRedisStore(client)
		limiter = otp.NewRedisLimiter(client, otp.Cooldown, otpWindow, otpMaxInWindow)
		closeFn = func() { _ = client.Close() }
	} else {
		logger.Info("REDIS_ADDR not set, OTP state kept in memory")
		store = otp.NewMemoryStore()
		limiter = otp.NewMemoryLimiter(otp.Cooldown)
	}

	switch cfg.OTPProvider {
	case config.OTPTwilio:
		return otp.NewTwilioProvider(
			cfg.Twilio.AccountSID,
			cfg.Twilio.AuthToken,
			cfg.Twilio.ServiceSID,
			cfg.Twilio.CountryCode,
			limiter,
			logger,
		), closeFn, nil
	default:
		if cfg.IsProduction() {
			logger.Warn("console OTP provider in production, codes are only logged")
		}
		return otp.NewLocalProvider(store, limiter, otp.ConsoleSender{Log: logger}, hash.NewHashService()), closeFn, nil
	}
}
