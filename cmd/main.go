// refer-ify feed-service
//
// Tier-gated live distribution feed for paid job listings, plus the
// AI match-scoring engine behind candidate suggestions.
//
//   - GET /feed streams each viewer's tier-filtered listing feed over SSE,
//     fed by Redis change events with full resync on any channel gap.
//   - POST /listings/{id}/suggestions scores candidates against a listing
//     via Gemini and atomically replaces the stored suggestion set.
//
// Publishes EVENT_LISTING_CHANGED to Redis on every listing mutation.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tom2tomtomtom/refer-ify-sub000/internal/config"
	"github.com/tom2tomtomtom/refer-ify-sub000/internal/db"
	"github.com/tom2tomtomtom/refer-ify-sub000/internal/feed"
	"github.com/tom2tomtomtom/refer-ify-sub000/internal/httpapi"
	"github.com/tom2tomtomtom/refer-ify-sub000/internal/listing"
	"github.com/tom2tomtomtom/refer-ify-sub000/internal/metrics"
	"github.com/tom2tomtomtom/refer-ify-sub000/internal/scheduler"
	"github.com/tom2tomtomtom/refer-ify-sub000/internal/scoring"
	"github.com/tom2tomtomtom/refer-ify-sub000/internal/suggestion"

	"github.com/prometheus/client_golang/prometheus"
)

const version = "1.0.0"

func main() {
	// ── Config ──────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[feed-service] Config error: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── PostgreSQL ───────────────────────────────────────────────────────────
	log.Println("[feed-service] Connecting to PostgreSQL…")
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[feed-service] PostgreSQL: %v", err)
	}
	defer pool.Close()
	log.Println("[feed-service] PostgreSQL connected ✓")

	// ── Redis ────────────────────────────────────────────────────────────────
	log.Println("[feed-service] Connecting to Redis…")
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("[feed-service] Redis: %v", err)
	}
	defer rdb.Close()
	log.Println("[feed-service] Redis connected ✓")

	// ── Gemini ───────────────────────────────────────────────────────────────
	generator, err := scoring.NewGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		log.Fatalf("[feed-service] Gemini: %v", err)
	}
	log.Printf("[feed-service] Gemini ready (model %s)", generator.Model())

	// ── Wiring ───────────────────────────────────────────────────────────────
	stats := metrics.NewCollector(prometheus.DefaultRegisterer)

	listings := listing.NewStore(pool, rdb, logger, stats)
	suggestions := suggestion.NewStore(pool, logger)
	scorer := scoring.NewScorer(generator, cfg.ScorerRateLimit, logger, stats)
	stream := feed.NewRedisStream(rdb, logger)
	hub := feed.NewHub()

	sched := scheduler.New(suggestions, logger, cfg.PruneSpec)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("[feed-service] Scheduler: %v", err)
	}
	defer sched.Stop()

	// ── HTTP server ──────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/metrics", metrics.Handler())

	h := httpapi.NewHandler(listings, suggestions, scorer, stream, hub, logger, stats)
	h.RegisterRoutes(mux)

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: /feed holds long-lived SSE streams.
	}

	go func() {
		log.Printf("[feed-service] v%s listening on :%s", version, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[feed-service] HTTP server error: %v", err)
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[feed-service] Shutting down…")
	cancel() // releases every feed subscription

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[feed-service] Shutdown error: %v", err)
	}
	log.Println("[feed-service] Stopped.")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"service": "feed-service",
		"version": version,
	})
}
