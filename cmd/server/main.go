package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rollcall/internal/apikey"
	"rollcall/internal/attendance/handler"
	"rollcall/internal/attendance/importer"
	"rollcall/internal/attendance/metrics"
	"rollcall/internal/attendance/resolver"
	"rollcall/internal/attendance/service"
	"rollcall/internal/attendance/store"
	memorystore "rollcall/internal/attendance/store/memory"
	pgstore "rollcall/internal/attendance/store/postgres"
	"rollcall/internal/directory"
	"rollcall/internal/platform/config"
	"rollcall/internal/platform/httpserver"
	"rollcall/internal/platform/logger"
	"rollcall/internal/platform/middleware"
	"rollcall/internal/platform/postgres"
	platformredis "rollcall/internal/platform/redis"
	id "rollcall/pkg/domain"
)

// main wires dependencies and owns the server lifecycle. Business logic
// lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	var (
		st       store.Store
		keys     apikey.Store
		programs directory.Programs
		persons  directory.Persons
	)
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("postgres connection failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		st = pgstore.New(db)
		keys = apikey.NewPostgresStore(db)
		programs = directory.NewPostgresPrograms(db)
		persons = directory.NewPostgresPersons(db)
		log.Info("using postgres store")
	} else {
		memStore := memorystore.New()
		memKeys := apikey.NewMemoryStore()
		if cfg.DevAPIKey != "" {
			memKeys.Seed(apikey.Client{
				Key:       id.APIKeyID(cfg.DevAPIKey),
				Name:      "dev",
				Scope:     apikey.ScopeWrite,
				Active:    true,
				CreatedAt: time.Now(),
			})
		}
		st = memStore
		keys = memKeys
		programs = directory.NewMemoryPrograms()
		persons = directory.NewMemoryPersons()
		log.Warn("no database configured, using in-memory store")
	}

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	resolverOpts := []resolver.Option{resolver.WithLogger(log)}
	if redisClient != nil {
		resolverOpts = append(resolverOpts, resolver.WithCache(redisClient.Client, cfg.BadgeCacheTTL))
		log.Info("badge resolution cache enabled", "ttl", cfg.BadgeCacheTTL)
	}
	badgeResolver, err := resolver.New(st.Bindings(), resolverOpts...)
	if err != nil {
		log.Error("resolver setup failed", "error", err)
		os.Exit(1)
	}

	m := metrics.New()

	svc, err := service.New(st, programs, persons, badgeResolver,
		service.WithLogger(log),
		service.WithMetrics(m),
	)
	if err != nil {
		log.Error("service setup failed", "error", err)
		os.Exit(1)
	}

	imp, err := importer.New(st, persons,
		importer.WithLogger(log),
		importer.WithMetrics(m),
	)
	if err != nil {
		log.Error("importer setup failed", "error", err)
		os.Exit(1)
	}

	h := handler.New(svc, imp, log, cfg.SessionListLimit)

	router := chi.NewRouter()
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.RequestID)
	router.Use(chimiddleware.Recoverer)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			if err := redisClient.Health(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	h.Register(router,
		apikey.Require(keys, apikey.ScopeRead, log),
		apikey.Require(keys, apikey.ScopeWrite, log),
	)

	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
