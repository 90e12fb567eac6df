package main

import (
	"context"
	"expvar"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zull0910/tunos/internal/config"
	"github.com/zull0910/tunos/internal/control"
	"github.com/zull0910/tunos/internal/httpapi"
	"github.com/zull0910/tunos/internal/hub"
	"github.com/zull0910/tunos/internal/relay"
	"github.com/zull0910/tunos/internal/store"
	"github.com/zull0910/tunos/internal/store/postgres"
	"github.com/zull0910/tunos/internal/telemetry"
	"github.com/zull0910/tunos/internal/voice"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var version = "dev"

func main() {
	cfg := config.Load()
	shutdownTelemetry := telemetry.Setup("tunos-relay", version)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	ctx, stopRecorder := context.WithCancel(context.Background())
	var audit store.AuditStore
	var recorder *store.Recorder
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db connect: %v", err)
		}
		defer pool.Close()

		pgStore := postgres.NewStore(pool)
		schemaCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := pgStore.EnsureSchema(schemaCtx); err != nil {
			cancel()
			log.Fatalf("audit schema: %v", err)
		}
		cancel()
		audit = pgStore
		recorder = store.NewRecorder(pgStore, cfg.AuditBuffer)
		recorder.Start(ctx)
	} else {
		log.Printf("audit disabled: DB_DSN not set")
	}

	h := hub.New()
	rel := relay.New(h, recorder, relay.Options{
		Channel:      cfg.Channel,
		ClientBuffer: cfg.ClientBuffer,
		MaxMalformed: cfg.MaxMalformed,
	})

	var hooks []control.Hook
	if cfg.Voice.Enabled {
		announcer := voice.NewAnnouncer(
			voice.NewSynthesizer(cfg.Voice.Provider, cfg.Voice.Command, cfg.Voice.URL),
			voice.Config{
				Preferred: cfg.Voice.Preferred,
				Lang:      cfg.Voice.Lang,
				Template:  cfg.Voice.Template,
				Timeout:   cfg.Voice.Timeout,
			},
		)
		hooks = append(hooks, announcer.Announce)
	}
	ctrl := control.New(rel.ControlPublisher("relay-control"), control.Options{
		Rooms: cfg.Rooms,
		Hooks: hooks,
	})

	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute: cfg.RateLimitPerMinute,
		IPBurst:     cfg.RateLimitBurst,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", expvar.Handler())
	httpapi.NewHandler(ctrl, httpapi.Options{Channel: cfg.Channel, Audit: audit}).Register(mux)
	mux.Handle(rel.Prefix()+"/", rel.Handler())

	otelHandler := otelhttp.NewHandler(httpapi.LoggingMiddleware(limiter.Middleware(mux)), "tunos-relay")
	server := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     otelHandler,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("tunos-relay listening on %s channel=%s", server.Addr, cfg.Channel)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	stopRecorder()
	recorder.Wait()
}
