package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/Hung6066/IVF-sub008/audit"
	"github.com/Hung6066/IVF-sub008/biometric"
	"github.com/Hung6066/IVF-sub008/config"
	"github.com/Hung6066/IVF-sub008/handlers"
	"github.com/Hung6066/IVF-sub008/middleware"
	"github.com/Hung6066/IVF-sub008/monitoring"
	"github.com/Hung6066/IVF-sub008/pipeline"
	"github.com/Hung6066/IVF-sub008/pkg/database"
	"github.com/Hung6066/IVF-sub008/policy"
	"github.com/Hung6066/IVF-sub008/risk"
	"github.com/Hung6066/IVF-sub008/sessions"
	"github.com/Hung6066/IVF-sub008/trust"
)

func main() {
	// Load .env file if it exists (optional - fails silently if not found)
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{AddSource: true}))
	slog.SetDefault(logger)

	slog.Info("Starting trust core initialization")

	cfg := config.Load()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		if cfg.Environment != "development" {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		slog.Warn("Database unreachable, falling back to in-memory SQLite", "error", err)
		db, err = database.ConnectSQLite()
		if err != nil {
			slog.Error("Failed to open SQLite fallback", "error", err)
			os.Exit(1)
		}
	}

	if err := monitoring.Initialize(monitoring.DefaultConfig("trust-core")); err != nil {
		slog.Warn("Metrics not initialized", "error", err)
	}

	recorder := audit.NewGormRecorder(db)
	policyStore := policy.NewGormStore(db)

	// Redis backs the velocity window, principal history and session registry
	// when configured; otherwise everything stays in process memory.
	var (
		failures     risk.FailureWindow
		history      risk.PrincipalHistory
		sessionStore sessions.Store
	)
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			slog.Error("Failed to connect to Redis", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		failures = risk.NewRedisWindow(client, cfg.BruteForceWindow)
		history = risk.NewRedisHistory(client)
		sessionStore = sessions.NewRedisStore(client)
		slog.Info("Redis stores enabled", "addr", cfg.RedisAddr)
	} else {
		failures = risk.NewMemoryWindow(cfg.BruteForceWindow)
		history = risk.NewMemoryHistory()
		sessionStore = sessions.NewMemoryStore()
		slog.Info("Using in-memory stores")
	}

	var geo risk.GeoResolver = risk.NoopResolver{}
	if cfg.GeoIPDatabasePath != "" {
		resolver, err := risk.NewGeoIP2Resolver(cfg.GeoIPDatabasePath)
		if err != nil {
			slog.Error("Failed to open GeoIP database", "path", cfg.GeoIPDatabasePath, "error", err)
			os.Exit(1)
		}
		defer resolver.Close()
		geo = resolver
		slog.Info("GeoIP resolver enabled", "path", cfg.GeoIPDatabasePath)
	}

	intel := risk.NewStaticIntel(
		splitEnvList("KNOWN_BAD_IPS"),
		splitEnvList("VPN_TOR_RANGES"),
	)

	evaluator := risk.NewEvaluator(geo, intel, failures, history, recorder, cfg.BruteForceThreshold)

	if cfg.SessionSecret == "" {
		slog.Warn("SESSION_SECRET is empty; all requests will be treated as unauthenticated")
	}
	verifier := sessions.NewTokenVerifier(cfg.SessionSecret, cfg.SessionFreshWindow)
	builder := trust.NewBuilder(verifier, sessionStore, evaluator, evaluator)

	matchers := make([]biometric.Matcher, 0, len(cfg.BiometricShardURLs))
	for i, url := range cfg.BiometricShardURLs {
		matchers = append(matchers, biometric.NewHTTPMatcher(shardName(i), url, cfg.BiometricTimeout))
	}
	aggregator := biometric.NewAggregator(matchers, cfg.BiometricTimeout, recorder)

	breakGlass := pipeline.NewSecretVerifier(cfg.BreakGlassSecret)
	pipe := pipeline.New(policyStore, evaluator, recorder, breakGlass)

	server := handlers.NewServer(policyStore, pipe, recorder, evaluator, sessionStore, aggregator)
	mux := server.Routes()

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitMaxRequests, cfg.RateLimitWindow)
	handler := middleware.SecurityHeaders(
		rateLimiter.Limit(
			middleware.TrustContext(builder)(mux)))

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("Trust core listening", "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down trust core...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Trust core exited")
}

func splitEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func shardName(i int) string {
	return fmt.Sprintf("shard-%d", i)
}
