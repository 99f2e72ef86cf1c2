package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/carepoint/clinic/internal/config"
	"github.com/carepoint/clinic/internal/domain/antenatal"
	"github.com/carepoint/clinic/internal/domain/triage"
	"github.com/carepoint/clinic/internal/platform/auth"
	"github.com/carepoint/clinic/internal/platform/cdshooks"
	"github.com/carepoint/clinic/internal/platform/db"
	"github.com/carepoint/clinic/internal/platform/middleware"
)

const version = "0.1.0"

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return err
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	store, closeStore := newCacheStore(ctx, cfg, logger)
	defer closeStore()

	e := newServer(cfg, logger, pool, store)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("version", version).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("server error")
			stop()
		}
	}()

	<-ctx.Done()

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newCacheStore prefers Redis when REDIS_URL is set and falls back to an
// in-process store when it is unset or unreachable.
func newCacheStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (middleware.CacheStore, func()) {
	if cfg.RedisURL != "" {
		rs, err := middleware.NewRedisCacheStore(cfg.RedisURL, "clinic:cache:", logger)
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err = rs.Ping(pingCtx)
			cancel()
			if err == nil {
				logger.Info().Msg("response cache: redis")
				return rs, func() { _ = rs.Close() }
			}
			_ = rs.Close()
		}
		logger.Warn().Err(err).Msg("redis unavailable, using in-memory response cache")
	}
	ms := middleware.NewInMemoryCacheStore()
	ms.StartCleanup(ctx, time.Minute)
	return ms, func() {}
}

func authMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	jwtCfg := auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		JWKSURL:    cfg.AuthJWKSURL,
		SigningKey: []byte(cfg.AuthSigningKey),
	}
	if cfg.IsDev() {
		return auth.DevAuthMiddleware(jwtCfg)
	}
	return auth.JWTMiddleware(jwtCfg)
}

// newServer wires middleware, domain handlers and CDS services onto a fresh
// echo instance.
func newServer(cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool, store middleware.CacheStore) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Tenant-ID"},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool, func() db.PoolStats { return db.GetPoolStats(pool) }))

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}

	apiV1 := e.Group("/api/v1",
		authMiddleware(cfg),
		db.TenantMiddleware(pool, cfg.DefaultTenant),
		middleware.RateLimit(rateLimitCfg),
	)

	// Triage
	triageSvc := triage.NewService(triage.NewVitalSignsRepoPG(pool))
	triage.NewHandler(triageSvc).RegisterRoutes(apiV1)

	// Antenatal care
	ancSvc := antenatal.NewService(
		antenatal.NewEnrollmentRepoPG(pool),
		antenatal.NewVisitRepoPG(pool),
		antenatal.NewPatientDirectoryPG(pool),
	)
	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	etag := middleware.DefaultCacheConfig()
	etag.MaxAge = cfg.CacheTTLSeconds
	antenatal.NewHandler(ancSvc).
		WithReferenceCache(
			middleware.ETagMiddleware(etag),
			middleware.ResponseCacheMiddleware(middleware.ResponseCacheConfig{Store: store, TTL: ttl, Shared: true}),
		).
		RegisterRoutes(apiV1)

	// CDS Hooks
	cds := cdshooks.NewRegistry(logger)
	triageSvc.RegisterCDS(cds)
	ancSvc.RegisterCDS(cds)
	cds.RegisterRoutes(apiV1)

	return e
}
