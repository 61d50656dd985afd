package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/feedad/kilusi-bill-sub007/internal/config"
	"github.com/feedad/kilusi-bill-sub007/internal/httpapi"
	"github.com/feedad/kilusi-bill-sub007/internal/notify"
	"github.com/feedad/kilusi-bill-sub007/internal/store/postgres"
	"github.com/feedad/kilusi-bill-sub007/internal/telemetry"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg := config.Load()
	shutdownTelemetry := telemetry.Setup("customer-auth-service")
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	store := postgres.NewStore(pool)
	handler := httpapi.NewHandler(store, cfg.PhoneLoginSecret)
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute:    cfg.RateLimitPerMinute,
		IPBurst:        cfg.RateLimitBurst,
		PhonePerMinute: cfg.PhoneRateLimitPerMinute,
		PhoneBurst:     cfg.PhoneRateLimitBurst,
	})

	worker := notify.New(store, notify.Config{
		BatchSize:   cfg.OTPBatchSize,
		MaxAttempts: cfg.OTPMaxAttempts,
		Provider:    cfg.OTPProvider,
		Template:    cfg.OTPTemplate,
	})
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go notify.Start(workerCtx, cfg.OTPPollInterval, worker)

	otelHandler := otelhttp.NewHandler(httpapi.LoggingMiddleware(limiter.Middleware(handler.Routes())), "customer-auth-service")
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("customer-auth-service listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	workerCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
