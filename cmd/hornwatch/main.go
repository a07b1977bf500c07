// Command hornwatch runs the Horn of Africa news intelligence service: the
// periodic ingestion pipeline, the weekly Risk Delta digest, and the HTTP API
// serving the cached feed, all in one process.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/robfig/cron/v3"

	"github.com/juba-labs/hornwatch/internal/cache"
	"github.com/juba-labs/hornwatch/internal/config"
	"github.com/juba-labs/hornwatch/internal/db"
	"github.com/juba-labs/hornwatch/internal/digest"
	"github.com/juba-labs/hornwatch/internal/extract"
	"github.com/juba-labs/hornwatch/internal/handlers"
	"github.com/juba-labs/hornwatch/internal/images"
	"github.com/juba-labs/hornwatch/internal/ingest"
	"github.com/juba-labs/hornwatch/internal/mailer"
	"github.com/juba-labs/hornwatch/internal/middleware"
	"github.com/juba-labs/hornwatch/internal/models"
	"github.com/juba-labs/hornwatch/internal/pipeline"
	"github.com/juba-labs/hornwatch/internal/resolve"
	"github.com/juba-labs/hornwatch/internal/sources"
)

func main() {
	// Structured JSON logging.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("hornwatch: starting")

	cfg := config.Load()

	// Root context, cancelled on shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Open the database and bring the schema up to date.
	conn, err := db.Open(ctx, cfg.DB)
	if err != nil {
		slog.Error("hornwatch: database open failed", "err", err)
		os.Exit(1)
	}
	defer conn.Close()

	// Stores.
	eventStore := models.NewEventStore(conn)
	quarantineStore := models.NewQuarantineStore(conn)
	unsubscribeStore := models.NewUnsubscribeStore(conn)

	// Pipeline stages.
	feedCache := cache.New()
	pipe := pipeline.New(pipeline.Deps{
		Sources:   sources.List(),
		Fetcher:   ingest.NewFetcher(),
		Resolver:  resolve.NewResolver(),
		Images:    images.NewEnricher(),
		Extractor: extract.New(cfg.OpenAI, eventStore, quarantineStore),
		Events:    eventStore,
		Cache:     feedCache,
	})

	digestBuilder := digest.NewBuilder(eventStore)
	digestMailer := mailer.New(cfg.SMTP, cfg.Digest.BaseURL, unsubscribeStore)

	if !cfg.OpenAI.Enabled() {
		slog.Warn("hornwatch: no OpenAI key configured, event extraction disabled")
	}
	if !digestMailer.Enabled() {
		slog.Warn("hornwatch: no SMTP host configured, digest email disabled")
	}

	// Track in-flight jobs for graceful shutdown.
	var wg sync.WaitGroup

	// Set up cron scheduler (standard 5-field cron expressions).
	c := cron.New()

	// Ingestion cycle: every 15 minutes.
	_, err = c.AddFunc("*/15 * * * *", func() {
		wg.Add(1)
		defer wg.Done()

		jobCtx, jobCancel := context.WithTimeout(ctx, 10*time.Minute)
		defer jobCancel()

		slog.Info("cron: ingestion cycle triggered")
		pipe.RunCycle(jobCtx)
	})
	if err != nil {
		slog.Error("hornwatch: add ingestion cron", "err", err)
		os.Exit(1)
	}

	// Weekly digest: Mondays at 07:00 server time. A restart before 07:00 on
	// a Monday still fires the same day; a missed fire waits for next week.
	_, err = c.AddFunc("0 7 * * 1", func() {
		wg.Add(1)
		defer wg.Done()

		jobCtx, jobCancel := context.WithTimeout(ctx, 10*time.Minute)
		defer jobCancel()

		slog.Info("cron: weekly digest triggered")
		runWeeklyDigest(jobCtx, digestBuilder, feedCache, digestMailer, cfg.Digest.Recipients)
	})
	if err != nil {
		slog.Error("hornwatch: add digest cron", "err", err)
		os.Exit(1)
	}

	c.Start()
	slog.Info("hornwatch: cron scheduler started", "jobs", len(c.Entries()))

	// Run an initial cycle on startup so the feed isn't empty for 15 minutes.
	wg.Add(1)
	go func() {
		defer wg.Done()

		// Small delay to let everything settle.
		select {
		case <-time.After(5 * time.Second):
		case <-ctx.Done():
			return
		}

		jobCtx, jobCancel := context.WithTimeout(ctx, 10*time.Minute)
		defer jobCancel()

		slog.Info("hornwatch: running initial ingestion cycle")
		pipe.RunCycle(jobCtx)
	}()

	// Handlers.
	feedHandler := &handlers.FeedHandler{Cache: feedCache}
	eventsHandler := &handlers.EventsHandler{Events: eventStore}
	unsubscribeHandler := &handlers.UnsubscribeHandler{Unsubs: unsubscribeStore}
	adminHandler := &handlers.AdminHandler{
		Events:   eventStore,
		Pipeline: pipe,
		Digest:   digestBuilder,
		Cache:    feedCache,
	}

	// Router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public routes.
	r.Get("/api/health", handlers.Health)
	r.Get("/api/feed", feedHandler.ServeFeed)
	r.Get("/api/events/{hash}", eventsHandler.GetByHash)
	r.Get("/api/unsubscribe", unsubscribeHandler.Unsubscribe)
	r.Post("/api/unsubscribe", unsubscribeHandler.UnsubscribeByEmail)

	// Admin routes.
	r.Group(func(r chi.Router) {
		r.Use(middleware.AdminAuth(cfg.Digest.AdminToken))
		r.Get("/api/admin/quality", adminHandler.Quality)
		r.Post("/api/admin/ingest", adminHandler.TriggerIngest)
		r.Get("/api/admin/digest/preview", adminHandler.DigestPreview)
	})

	// Start server.
	addr := cfg.Server.Addr()
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("hornwatch: server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("hornwatch: server error", "err", err)
			os.Exit(1)
		}
	}()

	// ── Graceful Shutdown ──────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	slog.Info("hornwatch: received shutdown signal", "signal", sig.String())

	// Stop accepting new cron jobs.
	slog.Info("hornwatch: stopping cron scheduler")
	cronCtx := c.Stop()

	// Cancel the root context to signal all in-flight jobs to stop.
	cancel()

	// Wait for the cron scheduler to finish its currently running jobs.
	select {
	case <-cronCtx.Done():
		slog.Info("hornwatch: cron scheduler stopped")
	case <-time.After(30 * time.Second):
		slog.Warn("hornwatch: cron scheduler stop timed out")
	}

	// Wait for all in-flight goroutines.
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("hornwatch: all in-flight jobs complete")
	case <-time.After(60 * time.Second):
		slog.Warn("hornwatch: timed out waiting for in-flight jobs")
	}

	// Stop serving requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("hornwatch: server shutdown", "err", err)
	}

	conn.Close()
	slog.Info("hornwatch: shutdown complete")
}

// runWeeklyDigest builds the Risk Delta for the week ending now, caches it
// for the preview endpoint, and dispatches it. With SMTP unconfigured the
// build and cache still happen; only the send is skipped.
func runWeeklyDigest(ctx context.Context, builder *digest.Builder, c *cache.Cache, m *mailer.Mailer, recipients []string) {
	d, err := builder.Build(ctx, time.Now().UTC())
	if err != nil {
		slog.Error("digest: build", "err", err)
		return
	}

	c.SetDigest(d)
	slog.Info("digest: built",
		"week", d.WeekNumber,
		"events_this_week", d.Topline.TotalThisWeek,
		"events_last_week", d.Topline.TotalLastWeek,
		"high_severity", d.HighSeverityCount,
		"baseline_weak", d.BaselineWeak,
	)

	m.SendDigest(ctx, d, recipients)
}
