package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/teleatencion/platform/internal/adapters/allocation"
	"github.com/teleatencion/platform/internal/audit"
	"github.com/teleatencion/platform/internal/helpdesk"
	"github.com/teleatencion/platform/internal/imaging"
	rosterapi "github.com/teleatencion/platform/internal/roster/api"
	rosterinfra "github.com/teleatencion/platform/internal/roster/infrastructure"
	"github.com/teleatencion/platform/internal/shared/auth"
	"github.com/teleatencion/platform/internal/shared/config"
	"github.com/teleatencion/platform/internal/shared/database"
	"github.com/teleatencion/platform/internal/shared/events"
	"github.com/teleatencion/platform/internal/shared/logging"
	"github.com/teleatencion/platform/internal/shared/metrics"
	secmiddleware "github.com/teleatencion/platform/internal/shared/middleware"
)

// App holds all application dependencies
type App struct {
	Config    *config.Config
	DB        *database.DB
	Bus       events.EventBus
	Redis     *redis.Client
	Allocator *allocation.Adapter
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logging.Init("teleatencion-console", cfg.Logging)

	app := &App{Config: cfg}

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		log.Warn().Err(err).Msg("database not available, running in limited mode")
	} else {
		app.DB = db
		defer db.Close()

		if err := database.Migrate(ctx, db.Pool); err != nil {
			log.Warn().Err(err).Msg("migration failed")
		}
	}

	bus, err := events.NewEventBus(ctx, cfg.KurrentDB)
	if err != nil {
		log.Warn().Err(err).Msg("event store not available, running without event streaming")
	} else {
		app.Bus = bus
		defer bus.Close()
		log.Info().Msg("event bus initialized")
	}

	app.Redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer app.Redis.Close()

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(secmiddleware.InputSanitizer)
	r.Use(metrics.Middleware)
	r.Use(secmiddleware.CORS(secmiddleware.DefaultCORSConfig()))

	// Health checks (unauthenticated)
	r.Get("/health", healthHandler(app))
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())

	// API info
	r.Get("/", infoHandler)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Auth))
		if cfg.Server.Env == "production" {
			r.Use(secmiddleware.RateLimiter(20, 40))
		}

		if app.DB != nil {
			rosterRepo := rosterinfra.NewPostgresRepository(app.DB.Pool)
			rosterHandler := rosterapi.NewHandler(rosterRepo, app.Bus)
			r.Mount("/roster", rosterHandler.Routes())

			imagingRepo := imaging.NewRepository(app.DB.Pool)
			summaryCache := imaging.NewSummaryCache(app.Redis, cfg.Redis.SummaryTTL)
			imagingHandler := imaging.NewHandler(imagingRepo, summaryCache, app.Bus)
			r.Mount("/imaging", imagingHandler.Routes())

			// Activity trail, fed from the event bus
			auditRepo := audit.NewRepository(app.DB.Pool)
			r.Mount("/audit", audit.NewHandler(auditRepo).Routes())
			if app.Bus != nil {
				auditSubscriber := audit.NewSubscriber(auditRepo, app.Bus)
				if err := auditSubscriber.Start(ctx); err != nil {
					log.Warn().Err(err).Msg("activity trail subscriber failed to start")
				} else {
					log.Info().Msg("activity trail subscriber started")
				}
			}

			// Allocation feed from the legacy hospital system
			if cfg.Allocation.Enabled {
				app.Allocator = allocation.New(allocation.DefaultConfig(cfg.Allocation))
				if err := app.Allocator.Start(ctx); err != nil {
					log.Warn().Err(err).Msg("allocation feed failed to start")
					app.Allocator = nil
				} else {
					ingestor := allocation.NewIngestor(rosterRepo, imagingRepo, app.Bus)
					app.Allocator.SubscribeAssignments(ctx, ingestor.IngestAssignment)
					app.Allocator.SubscribeImages(ctx, ingestor.IngestImage)
					log.Info().Dur("poll_interval", cfg.Allocation.PollInterval).Msg("allocation feed started")
				}
			}
		}

		if cfg.Helpdesk.Enabled {
			helpdeskHandler := helpdesk.NewHandler(helpdesk.New(cfg.Helpdesk))
			r.Mount("/helpdesk", helpdeskHandler.Routes())
			log.Info().Str("url", cfg.Helpdesk.URL).Msg("help-desk module enabled")
		}
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if app.Allocator != nil {
			if err := app.Allocator.Stop(ctx); err != nil {
				log.Warn().Err(err).Msg("allocation feed shutdown error")
			}
		}

		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
		}
		close(done)
	}()

	log.Info().
		Str("env", cfg.Server.Env).
		Int("port", cfg.Server.Port).
		Str("kurrentdb", fmt.Sprintf("%s:%d", cfg.KurrentDB.Host, cfg.KurrentDB.Port)).
		Bool("allocation_feed", cfg.Allocation.Enabled).
		Msg("clinical attention console started")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}

	<-done
	log.Info().Msg("server stopped")
}

func infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"name":    "Teleatención Clinical Attention Console",
		"version": "0.1.0",
		"docs":    "/api/v1",
	})
}

func healthHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
		})
	}
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"server": "ready",
		}

		if app.DB != nil {
			if err := app.DB.Health(r.Context()); err != nil {
				checks["database"] = "not ready: " + err.Error()
			} else {
				checks["database"] = "ready"
			}
		} else {
			checks["database"] = "not configured"
		}

		if app.Bus != nil {
			if err := app.Bus.Health(); err != nil {
				checks["kurrentdb"] = "not ready: " + err.Error()
			} else {
				checks["kurrentdb"] = "ready"
			}
		} else {
			checks["kurrentdb"] = "not configured"
		}

		if err := app.Redis.Ping(r.Context()).Err(); err != nil {
			checks["redis"] = "not ready: " + err.Error()
		} else {
			checks["redis"] = "ready"
		}

		if app.Allocator != nil {
			if err := app.Allocator.Health(r.Context()); err != nil {
				checks["allocation_feed"] = "not ready: " + err.Error()
			} else {
				checks["allocation_feed"] = "ready"
			}
		} else {
			checks["allocation_feed"] = "not configured"
		}

		allReady := true
		for _, status := range checks {
			if status != "ready" && status != "not configured" {
				allReady = false
				break
			}
		}

		status := http.StatusOK
		if !allReady {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"status": map[bool]string{true: "ready", false: "not ready"}[allReady],
			"checks": checks,
		})
	}
}
