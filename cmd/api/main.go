package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/novadental/chairside/cmd/mainconfig"
	"github.com/novadental/chairside/internal/admin"
	"github.com/novadental/chairside/internal/api/router"
	"github.com/novadental/chairside/internal/calendar"
	"github.com/novadental/chairside/internal/clinic"
	appconfig "github.com/novadental/chairside/internal/config"
	"github.com/novadental/chairside/internal/conversation"
	"github.com/novadental/chairside/internal/notify"
	"github.com/novadental/chairside/internal/scheduling"
	"github.com/novadental/chairside/pkg/logging"
)

func main() {
	// Local development convenience; missing .env is fine.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting chairside API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"llm_provider", cfg.LLMProvider,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("database unreachable", "error", err)
		os.Exit(1)
	}

	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() { _ = redisClient.Close() }()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	settingsStore := clinic.NewStore(pool, logger)
	repo := scheduling.NewPgRepository(pool)
	calendarClient := calendar.NewClient(logger)

	emailSender := buildEmailSender(cfg, awsCfg, logger)
	notifier := notify.NewService(emailSender, settingsStore, logger)

	engine := scheduling.NewService(repo, settingsStore, calendarClient, notifier, logger)

	llm, err := buildLLMClient(ctx, cfg, awsCfg)
	if err != nil {
		logger.Error("failed to build LLM client", "error", err)
		os.Exit(1)
	}
	llm = conversation.WithRequestTimeout(llm, cfg.LLMRequestTimeout)

	chatService := conversation.NewService(engine, llm, redisClient, conversation.Config{
		ModelID:           modelID(cfg),
		Provider:          cfg.LLMProvider,
		MaxTokens:         int32(cfg.LLMMaxTokens),
		MaxDispatchRounds: cfg.DispatchMaxRounds,
		QuickReplyOff:     cfg.QuickReplyDisabled,
	}, logger)
	chatHandler := conversation.NewHandler(chatService, logger)
	adminHandler := admin.NewHandler(repo, settingsStore, calendarClient, logger)

	reminders := notify.NewReminderWorker(repo, notifier, cfg.ReminderInterval, cfg.ReminderLeadTime, logger)
	go reminders.Run(ctx)

	r := router.New(&router.Config{
		Logger:              logger,
		ConversationHandler: chatHandler,
		AdminHandler:        adminHandler,
		AdminAuthSecret:     cfg.AdminJWTSecret,
		MetricsHandler:      promhttp.Handler(),
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // model round-trips can be slow
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func modelID(cfg *appconfig.Config) string {
	if cfg.LLMProvider == "gemini" {
		return cfg.GeminiModelID
	}
	return cfg.BedrockModelID
}

func buildLLMClient(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config) (conversation.LLMClient, error) {
	switch cfg.LLMProvider {
	case "gemini":
		return conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
	default:
		return conversation.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg)), nil
	}
}

func buildEmailSender(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) notify.EmailSender {
	switch cfg.EmailProvider {
	case "sendgrid":
		if sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sender != nil {
			return sender
		}
		logger.Warn("sendgrid selected but not configured, falling back to stub sender")
	case "ses":
		if sender := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SESFromName,
		}, logger); sender != nil {
			return sender
		}
		logger.Warn("ses selected but not configured, falling back to stub sender")
	}
	return notify.NewStubEmailSender(logger)
}
