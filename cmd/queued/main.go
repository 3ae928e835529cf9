package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/spf13/pflag"
	"golang.org/x/time/rate"

	"queue-ticket-backend/config"
	"queue-ticket-backend/internal/api"
	"queue-ticket-backend/internal/auth"
	"queue-ticket-backend/internal/backup"
	"queue-ticket-backend/internal/db"
	"queue-ticket-backend/internal/history"
	"queue-ticket-backend/internal/mw"
	"queue-ticket-backend/internal/notification"
	"queue-ticket-backend/internal/queue"
	"queue-ticket-backend/internal/store"
)

func main() {
	logger := log.New(os.Stdout, "queue-backend ", log.LstdFlags)

	configPath := pflag.StringP("config", "c", "", "path to the YAML config file (default $CONFIG_PATH or ./config/config.yaml)")
	pflag.Parse()
	if *configPath == "" {
		*configPath = os.Getenv("CONFIG_PATH")
	}
	if *configPath == "" {
		*configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", *configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", *configPath)

	loc, err := time.LoadLocation(cfg.Server.Timezone)
	if err != nil {
		logger.Fatalf("invalid timezone %q: %v", cfg.Server.Timezone, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb, err := db.NewRedis(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatalf("failed to connect to redis: %v", err)
	}
	defer rdb.Close()
	logger.Println("redis connected")

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	authenticator := auth.NewSharedSecret(map[auth.Role]string{
		auth.RoleAdmin:       cfg.Auth.AdminSecret,
		auth.RoleDestructive: cfg.Auth.DestructiveSecret,
	})

	calls := history.New(gormDB)
	opts := []queue.Option{queue.WithListener(calls), queue.WithLocation(loc)}

	var webpushOptions *webpush.Options
	if cfg.Push.Enabled {
		if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
			logger.Fatalf("push is enabled but VAPID keys are missing. Please generate them and add them to your config file.")
		}
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		workers := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, webpushOptions)
		workers.Start(ctx)
		opts = append(opts, queue.WithListener(workers))
	} else {
		logger.Println("push notifications disabled")
	}

	svc := queue.NewService(store.NewRedisStore(rdb, cfg.Redis.KeyPrefix), authenticator, opts...)

	go backup.NewService(cfg.Backup, svc).Run(ctx)

	limiter := mw.NewIPRateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst)
	go limiter.RunSweeper(ctx, 10*time.Minute)

	handler := api.NewHandler(svc, calls, gormDB, webpushOptions)
	router := api.NewRouter(cfg.Server, handler, authenticator, limiter)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}
	cancel()

	logger.Println("Server gracefully stopped")
}
