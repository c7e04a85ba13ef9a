package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskhive.org/internal/audit"
	"taskhive.org/internal/auth"
	"taskhive.org/internal/authz"
	"taskhive.org/internal/config"
	"taskhive.org/internal/httpapi"
	"taskhive.org/internal/obs"
	"taskhive.org/internal/store/pg"
	"taskhive.org/internal/task"
)

var version = "0.3.1"

func main() {
	obs.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	store, err := pg.Open(cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}

	engine, err := authz.NewEngine(cfg.Policy())
	if err != nil {
		log.Fatalf("authz: %v", err)
	}

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		AccessSecret:  cfg.AccessSecret,
		RefreshSecret: cfg.RefreshSecret,
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
		Issuer:        cfg.TokenIssuer,
	})
	if err != nil {
		log.Fatalf("tokens: %v", err)
	}

	trail, err := audit.NewRecorder(store, engine, cfg.AuditPageSize)
	if err != nil {
		log.Fatalf("audit: %v", err)
	}

	identity, err := auth.NewIdentity(store, tokens, engine, trail)
	if err != nil {
		log.Fatalf("identity: %v", err)
	}

	tasks, err := task.NewService(store, store, engine, trail)
	if err != nil {
		log.Fatalf("tasks: %v", err)
	}

	api := httpapi.New(identity, tasks, trail, httpapi.ReadyProbe{DB: store.DB()}, version, httpapi.Options{
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
		MaxBodyBytes:       cfg.MaxBodyBytes,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting taskhive-api %s on %s", version, srv.Addr)

	// graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = store.Close()
	log.Println("Stopped")
}
