package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"savory-auth/internal/clock"
	"savory-auth/internal/config"
	"savory-auth/internal/db"
	"savory-auth/internal/email"
	apihttp "savory-auth/internal/http"
	"savory-auth/internal/repository"
	"savory-auth/internal/service"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	userRepo := repository.NewPgUserRepository(pool)
	storeRepo := repository.NewPgStoreRepository(pool)

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	var (
		sessionStore service.SessionStore
		resetLimiter service.ResetRateLimiter
		redisClient  *redis.Client
	)
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			sessionStore = service.NewRedisSessionStore(redisClient)
			resetLimiter = service.NewRedisResetRateLimiter(redisClient, 10*time.Minute, 3)
		}
		cancel()
	}

	clk := clock.System()
	hasher := service.NewBcryptHasher()
	sessionSvc := service.NewSessionService(
		cfg.SessionSecret,
		time.Duration(cfg.SessionTTLMinutes)*time.Minute,
		sessionStore,
		clk,
	)
	authSvc := service.NewAuthService(logger, userRepo, hasher, sessionSvc, clk)
	resetSvc := service.NewResetService(logger, userRepo, hasher, authSvc, resetLimiter, clk)
	storeSvc := service.NewStoreService(logger, storeRepo, clk)

	authHandler := apihttp.NewAuthHandler(logger, authSvc, resetSvc, emailSender, cfg.BaseURL)
	storeHandler := apihttp.NewStoreHandler(logger, storeSvc)
	router := apihttp.NewRouter(logger, sessionSvc, authHandler, storeHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
