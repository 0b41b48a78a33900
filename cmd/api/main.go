package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-bookstore-admin/internal/config"
	"github.com/go-bookstore-admin/internal/infrastructure/dynamo"
	"github.com/go-bookstore-admin/internal/infrastructure/smtp"
	"github.com/go-bookstore-admin/internal/infrastructure/sns"
	"github.com/go-bookstore-admin/internal/ratelimit"
	"github.com/go-bookstore-admin/internal/session"
	transporthttp "github.com/go-bookstore-admin/internal/transport/http"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables)

	// Rate-limit counters: shared redis when configured, in-process otherwise.
	var limiterStore ratelimit.Store
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("redis unreachable at %s: %v", cfg.RedisAddr, err)
		}
		limiterStore = ratelimit.NewRedisStore(rdb)
	} else {
		log.Println("WARN: REDIS_ADDR not set, using in-memory rate limit store")
		limiterStore = ratelimit.NewMemoryStore()
	}

	// SMTP mailer.
	mailer := smtp.NewMailer(cfg)

	// SNS SMS sender (optional, graceful fallback).
	var smsSender sns.SMSSender
	if sender, err := sns.NewSender(cfg); err == nil {
		smsSender = sender
	} else {
		log.Printf("WARN: SNS sender not available: %v", err)
	}

	deps := &transporthttp.Deps{
		UserRepo:         dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users),
		OtpRepo:          dynamo.NewOtpRepo(dynamoClient, cfg.DynamoTables.Otps),
		AuthSessionRepo:  dynamo.NewAuthSessionRepo(dynamoClient, cfg.DynamoTables.AuthSessions),
		LoginSessionRepo: dynamo.NewLoginSessionRepo(dynamoClient, cfg.DynamoTables.LoginSessions),
		InviteRepo:       dynamo.NewInviteRepo(dynamoClient, cfg.DynamoTables.Invites),
		BookRepo:         dynamo.NewBookRepo(dynamoClient, cfg.DynamoTables.Books),
		Mailer:           mailer,
		SMSSender:        smsSender,
		Limiter:          ratelimit.New(limiterStore),
		SessionManager:   session.NewManager(cfg),
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
