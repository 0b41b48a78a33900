package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort    string
	AppEnv     string
	AppBaseURL string // used in invite links sent by email

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string

	DynamoTables DynamoTables

	// RedisAddr selects the shared rate-limit store. When empty the service
	// falls back to the process-local in-memory store, which is only correct
	// for a single instance.
	RedisAddr     string
	RedisPassword string

	SessionSecret     string
	SessionCookieName string
	SessionTTLDays    int

	OTPTTLMinutes int
	InviteTTLDays int

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	SNSRegion string

	AllowedOrigins []string
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users         string
	Otps          string
	AuthSessions  string
	LoginSessions string
	Invites       string
	Books         string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:    getEnv("APP_PORT", "3000"),
		AppEnv:     getEnv("APP_ENV", "development"),
		AppBaseURL: getEnv("APP_BASE_URL", "http://localhost:3000"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),

		DynamoTables: DynamoTables{
			Users:         getEnv("DYNAMO_TABLE_USERS", "users"),
			Otps:          getEnv("DYNAMO_TABLE_OTPS", "otps"),
			AuthSessions:  getEnv("DYNAMO_TABLE_AUTH_SESSIONS", "auth_sessions"),
			LoginSessions: getEnv("DYNAMO_TABLE_LOGIN_SESSIONS", "login_sessions"),
			Invites:       getEnv("DYNAMO_TABLE_INVITES", "invites"),
			Books:         getEnv("DYNAMO_TABLE_BOOKS", "books"),
		},

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		SessionSecret:     getEnv("SESSION_SECRET", "dev-only-secret-change-me"),
		SessionCookieName: getEnv("SESSION_COOKIE_NAME", "bookstore_admin_session"),
		SessionTTLDays:    getEnvInt("SESSION_TTL_DAYS", 7),

		OTPTTLMinutes: getEnvInt("OTP_TTL_MINUTES", 10),
		InviteTTLDays: getEnvInt("INVITE_TTL_DAYS", 7),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		SNSRegion: getEnv("SNS_REGION", "us-east-1"),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

// IsProduction reports whether the service runs with production hardening
// (Secure cookies, real AWS endpoints).
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
