package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/crypto/bcrypt"

	"course-calendar/calendar"
	"course-calendar/config"
	"course-calendar/db"
	"course-calendar/handlers"
	"course-calendar/registration"
	"course-calendar/session"
)

func main() {
	configPath := flag.String("config", "config.yaml", "YAML config file (optional)")
	addr := flag.String("addr", "", "listen address, overrides the config")
	dsn := flag.String("dsn", "", "SQLite DSN, overrides the config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *dsn != "" {
		cfg.DSN = *dsn
	}

	// Setup structured logging
	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	clk := clock.WallClock
	store, err := db.NewDB(cfg.DSN, db.WithClock(clk))
	if err != nil {
		slog.Error("failed to connect to db", "error", err)
		os.Exit(1)
	}

	// Short timeout for schema init so a locked database fails the boot fast.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := store.InitSchema(ctx); err != nil {
		slog.Error("failed to initialize schema", "error", err)
		os.Exit(1)
	}
	slog.Info("database schema initialized")

	handler, err := newHandler(cfg, store, clk, prometheus.NewRegistry(), logger)
	if err != nil {
		slog.Error("failed to set up handlers", "error", err)
		os.Exit(1)
	}

	// Configure Server with Timeouts
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful Shutdown Setup
	go func() {
		slog.Info("server starting", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	// 5 seconds to finish in-flight requests
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(ctxShutdown); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	// Close DB connection last
	if err := store.Close(); err != nil {
		slog.Error("failed to close db", "error", err)
	}

	slog.Info("server exited cleanly")
}

// newHandler wires the pages, the metrics endpoint and the global
// middlewares around them.
func newHandler(cfg config.Config, store *db.DB, clk clock.Clock, reg *prometheus.Registry, logger *slog.Logger) (http.Handler, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	creds, err := session.NewCredentials(cfg.AdminAccount, cfg.AdminPassword, bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	h := &handlers.Handlers{
		Courses:   store,
		Registrar: registration.NewService(store, registration.NewMetrics(reg), logger),
		Calendar:  calendar.NewProjector(store, clk, loc),
		Sessions:  session.NewManager(session.NewStore(clk, cfg.SessionTTL), creds, cfg.SecureCookies),
		Clock:     clk,
		Logger:    logger,
	}

	// Standard Library Router
	mux := http.NewServeMux()
	h.Routes(mux)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	// Apply Global Middlewares
	var handler http.Handler = mux
	handler = RateLimitMiddleware(cfg.RateLimit, cfg.RateBurst, clk)(handler)
	handler = LoggingMiddleware(handler)
	handler = RecoveryMiddleware(handler)
	return handler, nil
}
