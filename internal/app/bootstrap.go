package app

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"moviecatalog/internal/auth"
	"moviecatalog/internal/comment"
	"moviecatalog/internal/db"
	"moviecatalog/internal/email"
	"moviecatalog/internal/favorite"
	"moviecatalog/internal/httpx"
	"moviecatalog/internal/maintenance"
	"moviecatalog/internal/movie"
	"moviecatalog/internal/observability"
)

type Options struct {
	LoadDotEnv    bool
	RunMigrations bool
}

type Runtime struct {
	Handler http.Handler
	// Sweeper is nil when CLEANUP_INTERVAL_MINUTES is 0.
	Sweeper *maintenance.Sweeper
	Logger  *observability.Logger
	Config  Config
	Close   func() error
}

func Build(options Options) (*Runtime, error) {
	cfg, err := LoadConfig(options.LoadDotEnv)
	if err != nil {
		return nil, err
	}

	logger := observability.NewLoggerTo(os.Stdout, observability.ParseLevel(cfg.LogLevel))

	if err := observability.InitSentry(cfg.SentryDSN, cfg.AppEnv); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	ctx := context.Background()
	pool, err := db.Open(ctx, cfg.DatabaseURL, cfg.DB)
	if err != nil {
		return nil, err
	}

	if options.RunMigrations {
		if err := db.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	clientIP, err := httpx.NewClientIPResolver(cfg.TrustedProxies)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	authRepo := auth.NewRepository(pool)
	blacklist := auth.NewBlacklist(authRepo, logger)
	tokens := auth.NewTokenService(auth.TokenConfig{
		Secret:   cfg.JWTSecret,
		TTL:      cfg.JWTTTL,
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
	}, blacklist)
	attempts := auth.NewAttemptTracker(authRepo, auth.LockoutPolicy{
		MaxAttempts:  cfg.LoginMaxAttempts,
		LockDuration: cfg.LoginLockDuration,
		Window:       cfg.LoginAttemptWindow,
	}, logger).WithRetention(cfg.LoginAttemptRetention)
	resets := auth.NewResetTokens(authRepo)

	authService := auth.NewService(authRepo, auth.NewBcryptHasher(cfg.BcryptCost), tokens, attempts, resets, logger)
	if cfg.MailEnabled() {
		sender, err := email.NewSMTPSender(cfg.SMTP)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("init smtp: %w", err)
		}
		authService.WithMailer(sender, cfg.FrontendURL)
	} else {
		logger.Warn("smtp_not_configured", map[string]any{"effect": "forgot-password answers 503 for every email"})
	}

	cleaner := maintenance.NewCleaner(blacklist, resets, attempts, logger)
	var sweeper *maintenance.Sweeper
	if cfg.CleanupInterval > 0 {
		sweeper = maintenance.NewSweeper(cleaner, cfg.CleanupInterval, logger)
	}

	handler := newRouter(routes{
		logger:          logger,
		clientIP:        clientIP,
		verifier:        tokens,
		users:           auth.NewHandler(authService, logger),
		movies:          movie.NewHandler(movie.NewRepository(pool), logger),
		comments:        comment.NewHandler(comment.NewRepository(pool), logger),
		favorites:       favorite.NewHandler(favorite.NewRepository(pool), logger),
		maintenance:     maintenance.NewHandler(cleaner, authRepo, logger, cfg.CronSecret),
		database:        pool,
		corsOrigins:     cfg.CORSAllowedOrigins,
		rateLimitMax:    cfg.LoginRateLimitMax,
		rateLimitWindow: cfg.LoginRateLimitWindow,
	})

	return &Runtime{
		Handler: handler,
		Sweeper: sweeper,
		Logger:  logger,
		Config:  cfg,
		Close: func() error {
			observability.FlushSentry()
			pool.Close()
			return nil
		},
	}, nil
}
