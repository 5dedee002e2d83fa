package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port        string
	Env         string
	LogLevel    string
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// LLM provider selection: "bedrock" or "gemini".
	LLMProvider        string
	BedrockModelID     string
	GeminiAPIKey       string
	GeminiModelID      string
	LLMMaxTokens       int
	LLMRequestTimeout  time.Duration
	DispatchMaxRounds  int
	QuickReplyDisabled bool

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Email delivery. Provider "sendgrid", "ses", or "stub".
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
	SESFromName       string

	// Reminder dispatch worker.
	ReminderInterval time.Duration
	ReminderLeadTime time.Duration

	AdminJWTSecret     string
	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		LLMProvider:        strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "bedrock"))),
		BedrockModelID:     getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:      getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		LLMMaxTokens:       getEnvAsInt("LLM_MAX_TOKENS", 1024),
		LLMRequestTimeout:  getEnvAsDuration("LLM_REQUEST_TIMEOUT", 30*time.Second),
		DispatchMaxRounds:  getEnvAsInt("DISPATCH_MAX_ROUNDS", 8),
		QuickReplyDisabled: getEnvAsBool("QUICK_REPLY_DISABLED", false),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "stub"))),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Chairside"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		SESFromName:       getEnv("SES_FROM_NAME", "Chairside"),

		ReminderInterval: getEnvAsDuration("REMINDER_INTERVAL", 15*time.Minute),
		ReminderLeadTime: getEnvAsDuration("REMINDER_LEAD_TIME", 24*time.Hour),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
