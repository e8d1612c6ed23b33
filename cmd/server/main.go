package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	_ "github.com/lib/pq"

	"github.com/adshield/fraudguard/internal/cache"
	"github.com/adshield/fraudguard/internal/client"
	"github.com/adshield/fraudguard/internal/config"
	"github.com/adshield/fraudguard/internal/handler"
	"github.com/adshield/fraudguard/internal/metrics"
	"github.com/adshield/fraudguard/internal/middleware"
	"github.com/adshield/fraudguard/internal/models"
	"github.com/adshield/fraudguard/internal/repository"
	"github.com/adshield/fraudguard/internal/service"
	"github.com/adshield/fraudguard/internal/telemetry"
	"github.com/adshield/fraudguard/internal/util/logger"
)

var version = "development"

func main() {
	configPath := "config/app-config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		configPath = v
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		panic(fmt.Errorf("failed to load config: %w", err))
	}

	logger.ReplaceGlobal(&logger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Encoding,
	})
	defer logger.Sync()

	if err := config.ResolveSecrets(cfg); err != nil {
		logger.Fatalf("Secret resolution failed: %v", err)
	}

	// DB (overrides + audit trail). Optional in dev: without it the
	// engine still classifies, it just skips override lists and audit rows.
	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("DB open error: %v", err)
		}
		defer db.Close()
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	// Redis backs the override read-through cache and the distributed
	// rate limiter.
	var rcli *client.RedisClient
	if cfg.RedisURL != "" {
		rcfg, err := client.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatalf("Invalid redis_url: %v", err)
		}
		rcfg.PoolSize = 200
		rcfg.MinIdleConns = 50
		rcli, err = client.NewRedisClient(context.Background(), rcfg)
		if err != nil {
			logger.Fatalf("Redis init failed: %v", err)
		}
		defer rcli.Close()
	}

	m := metrics.New()

	repCache := cache.New[models.IPReputation](cfg.Reputation.CacheSize, cfg.Reputation.CacheTTL)
	resolver := service.NewResolver(cfg.Reputation, repCache)
	resolver.SetMetrics(m)

	var overrideRepo repository.OverrideRepository
	var auditRepo repository.AuditRepository
	if db != nil {
		overrideRepo = repository.NewPostgresOverrideRepository(db, rcli, 5*time.Minute)
		auditRepo = repository.NewPostgresAuditRepository(db)
	}

	var shipper *telemetry.KafkaAuditShipper
	var publisher service.AuditPublisher
	if cfg.Telemetry.Kafka.Enabled {
		shipper, err = telemetry.NewKafkaAuditShipper(cfg.Telemetry.Kafka)
		if err != nil {
			logger.Fatalf("Kafka audit shipper init failed: %v", err)
		}
		shipper.SetDropHook(m.AuditDrop)
		shipper.Start()
		publisher = shipper
	}

	engine := service.NewEngine(resolver, overrideRepo, auditRepo, publisher)

	checkHandler := handler.NewCheckHandler(engine, m, cfg.Engine.Deadline)
	adminHandler := handler.NewAdminHandler(overrideRepo, auditRepo, resolver)
	healthHandler := handler.NewHealthHandler(cfg.Env,
		&handler.DatabaseHealthChecker{DB: db},
		&handler.RedisHealthChecker{Client: rcli},
	)

	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.Recoverer, chimw.Timeout(15*time.Second))
	r.Use(middleware.ClientIP)
	r.Use(chimw.Logger)

	r.Handle("/health", healthHandler)
	r.HandleFunc("/ready", healthHandler.ReadinessHandler)
	r.HandleFunc("/live", healthHandler.LivenessHandler)
	r.Handle("/metrics", m.Handler())

	// Public check endpoint, called from ad tags in the browser.
	r.Route("/v1", func(rt chi.Router) {
		rt.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			AllowedMethods: []string{"POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         300,
		}))
		if cfg.RateLimit.Enabled {
			limiter := middleware.NewRateLimiter(middleware.LimiterConfig{
				RatePerInterval: cfg.RateLimit.RatePerInterval,
				Interval:        cfg.RateLimit.Interval,
				Burst:           cfg.RateLimit.Burst,
				Redis:           rcli,
				KeyPrefix:       cfg.RateLimit.KeyPrefix,
				BucketTTL:       cfg.RateLimit.BucketTTL,
			})
			rt.Use(limiter.Handler)
		}
		rt.Post("/check", checkHandler.Check)
	})

	r.Route("/admin", func(rt chi.Router) {
		rt.Use(middleware.AdminAuth(cfg.AdminJWTKey))

		rt.Post("/overrides", adminHandler.AddOverride)
		rt.Delete("/overrides/{ip}", adminHandler.RemoveOverride)
		rt.Get("/overrides", adminHandler.ListOverrides)
		rt.Get("/cache/stats", adminHandler.CacheStats)
		rt.Post("/cache/cleanup", adminHandler.CacheCleanup)
		rt.Get("/stats/daily", adminHandler.DailyStats)
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Periodic sweep keeps expired reputation entries from occupying
	// slots between lookups, and refreshes the cache gauges.
	go func() {
		ticker := time.NewTicker(cfg.Reputation.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed := resolver.CleanupCache()
				stats := resolver.CacheStats()
				m.CacheSize.Set(float64(stats.Size))
				m.CacheHitRate.Set(stats.HitRate)
				if removed > 0 {
					logger.Debugf("Reputation cache sweep removed %d entries", removed)
				}
			}
		}
	}()

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	logger.Infof("Starting fraudguard %s on %s (env=%s)", version, addr, cfg.Env)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()

	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server shutdown error: %v", err)
	}
	if shipper != nil {
		shipper.Stop(shutdownCtx)
	}

	logger.Info("Shutdown complete")
}
