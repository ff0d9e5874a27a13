// Command humanizer-server starts the HTTP API and the gRPC ops listener.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/maazshahbaz/ai-humanizer/internal/config"
	pkgcrypto "github.com/maazshahbaz/ai-humanizer/internal/crypto"
	"github.com/maazshahbaz/ai-humanizer/internal/humanizer"
	"github.com/maazshahbaz/ai-humanizer/internal/limiter"
	"github.com/maazshahbaz/ai-humanizer/internal/metrics"
	"github.com/maazshahbaz/ai-humanizer/internal/migrate"
	"github.com/maazshahbaz/ai-humanizer/internal/repository/postgres"
	"github.com/maazshahbaz/ai-humanizer/internal/repository/redisstore"
	grpcserver "github.com/maazshahbaz/ai-humanizer/internal/server/grpc"
	"github.com/maazshahbaz/ai-humanizer/internal/server/httpapi"
	"github.com/maazshahbaz/ai-humanizer/internal/service"
	"github.com/maazshahbaz/ai-humanizer/internal/telemetry"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	cfgPath := flag.String("config", "", "path to config.yaml (optional)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("env", cfg.App.Environment),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:     cfg.Otel.Enabled,
		Endpoint:    cfg.Otel.Endpoint,
		Insecure:    cfg.Otel.Insecure,
		SampleRate:  cfg.Otel.SampleRate,
		ServiceName: cfg.Otel.ServiceName,
		Version:     version,
		Environment: cfg.App.Environment,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(sctx); err != nil {
			logger.Warn("telemetry shutdown", zap.Error(err))
		}
	}()

	if cfg.Database.Migrate {
		if err := migrate.Up(ctx, cfg.Database.URL, logger); err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
	}

	// Storage
	db, err := postgres.New(ctx, cfg.Database.URL, postgres.PoolConfig{
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer db.Close()

	rdb, err := redisstore.Connect(ctx, redisstore.Options{
		URL:          cfg.Redis.URL,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	})
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer func() { _ = rdb.Close() }()

	// Repositories
	users := postgres.NewUserRepo(db)
	credits := postgres.NewCreditRepo(db)
	rewrites := postgres.NewRewriteRepo(db)
	plans := postgres.NewPlanRepo(db)
	guests := redisstore.NewGuestStore(rdb, cfg.Guest.TTL)

	m := metrics.New()

	provider := humanizer.New(humanizer.Config{
		APIKey:         cfg.Provider.APIKey,
		BaseURL:        cfg.Provider.BaseURL,
		Model:          cfg.Provider.Model,
		PollInterval:   cfg.Provider.PollInterval,
		MaxAttempts:    cfg.Provider.MaxAttempts,
		RequestTimeout: cfg.Provider.RequestTimeout,
		Logger:         logger.Named("provider"),
		Observer:       m,
	})
	if !provider.HasCredentials() {
		logger.Warn("provider api key is not set, humanize requests will fail")
	}

	// Services
	authSvc := service.NewAuthService(service.AuthDeps{
		Users:    users,
		Rewrites: rewrites,
		Guests:   guests,
		Limiter:  limiter.NewPG(db.Pool, limiter.DefaultPolicy),
		Revoker:  redisstore.NewTokenDenylist(rdb),
		Hasher:   pkgcrypto.NewHasher(pkgcrypto.DefaultParams),
		Log:      logger.Named("auth"),
	}, []byte(cfg.JWT.SigningKey), cfg.JWT.AccessTokenExpire)

	health := httpapi.NewHealth(map[string]httpapi.Checker{
		"postgres": db,
		"redis":    redisstore.NewChecker(rdb),
	})

	router := httpapi.NewRouter(httpapi.Deps{
		Auth:     authSvc,
		Gate:     service.NewGateService(provider, credits, guests, m, logger.Named("gate")),
		History:  service.NewHistoryService(rewrites, guests),
		Plans:    service.NewPlanService(plans, logger),
		Sessions: service.NewSessionManager(credits, guests),
		Limiter: httpapi.NewRateLimiter(rdb, redis_rate.Limit{
			Rate:   cfg.RateLimit.Requests,
			Burst:  cfg.RateLimit.Burst,
			Period: cfg.RateLimit.Window,
		}, logger),
		Health:  health,
		Metrics: m,
		CORS: httpapi.CORSConfig{
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           cfg.CORS.MaxAge,
		},
		Log: logger.Named("http"),
	})

	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}

	ops := grpcserver.New(health, grpcserver.Options{
		Reflection:    cfg.GRPC.Reflection,
		ProbeInterval: cfg.GRPC.ProbeInterval,
	}, logger.Named("grpc"))
	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTP.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()
	go func() {
		logger.Info("grpc ops listening", zap.String("addr", cfg.GRPC.Addr))
		if err := ops.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc: %w", err)
		}
	}()
	go ops.Probe(ctx)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	// graceful shutdown
	health.SetShutdown(true)
	sctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(sctx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	ops.Stop(cfg.HTTP.ShutdownTimeout)
	return runErr
}

func newLogger(c config.LogConfig) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if c.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}
