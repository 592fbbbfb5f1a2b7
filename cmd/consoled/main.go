package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"adminconsole.org/internal/config"
	"adminconsole.org/internal/directory"
	"adminconsole.org/internal/httpapi"
	"adminconsole.org/internal/obs"
	"adminconsole.org/internal/sessionsvc"
)

var version = "0.3.1"

func main() {
	obs.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	obs.SetMinLevel(obs.ParseLevel(cfg.LogLevel))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Users directory: Postgres when configured, seeded memory otherwise.
	var (
		dir directory.Store
		db  *sql.DB
	)
	if cfg.PGDSN != "" {
		pg, err := directory.Open(cfg.PGDSN)
		if err != nil {
			log.Fatalf("open directory db: %v", err)
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Fatalf("ensure schema: %v", err)
		}
		if err := directory.SeedDefaults(ctx, pg); err != nil {
			log.Fatalf("seed directory: %v", err)
		}
		dir = pg
		db = pg.DB()
	} else {
		dir = directory.NewSeededMemory()
	}

	// Refresh revocation: Redis when configured, in-memory otherwise.
	var revoked sessionsvc.RevocationStore
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis ping: %v", err)
		}
		defer rdb.Close()
		revoked = sessionsvc.NewRedisRevocations(rdb)
	} else {
		revoked = sessionsvc.NewMemoryRevocations()
	}

	sessions, err := sessionsvc.NewService(dir, revoked, cfg.AuthJWTSecret)
	if err != nil {
		log.Fatalf("session service: %v", err)
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, sessions, dir, sessionsvc.Cookies{Secure: cfg.Production})
	api.SetAuthRateLimit(cfg.AuthRateBurst, cfg.AuthRatePerSec)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting consoled %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	log.Println("Stopped")
}
