package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration.
type Config struct {
	// Server
	ServerAddr string
	ServerPort int

	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Tokens. MFATokenSecret falls back to JWTSecret only when explicitly
	// left empty; separate secrets limit the blast radius of a leak.
	JWTSecret                 string
	JWTIssuer                 string
	MFATokenSecret            string
	AccessTokenTTL            time.Duration
	RefreshTokenTTL           time.Duration
	RememberMeRefreshTokenTTL time.Duration

	// Passwords
	BcryptCost             int
	PasswordMinLength      int
	PasswordRequireUpper   bool
	PasswordRequireLower   bool
	PasswordRequireNumber  bool
	PasswordRequireSpecial bool

	// MFA
	MFAIssuer          string
	MFAEncryptionKey   string // 64-char hex, 32 bytes
	MFATempTokenTTL    time.Duration
	MFAMaxAttempts     int
	MFALockoutDuration time.Duration

	// Login throttle
	CaptchaThreshold int
	ThrottleDelay    time.Duration
	ThrottleWindow   time.Duration

	// Verification / reset
	AppBaseURL           string
	EmailVerificationTTL time.Duration
	PasswordResetTTL     time.Duration

	// SMTP (optional)
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string

	// Maintenance
	CleanupInterval time.Duration
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		ServerAddr: getEnv("SERVER_ADDR", "0.0.0.0"),
		ServerPort: getEnvInt("SERVER_PORT", 8080),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "authcore"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTSecret:                 getEnv("JWT_SECRET", ""),
		JWTIssuer:                 getEnv("JWT_ISSUER", "authcore"),
		MFATokenSecret:            getEnv("MFA_TOKEN_SECRET", ""),
		AccessTokenTTL:            getEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:           getEnvDuration("REFRESH_TOKEN_TTL", 24*time.Hour),
		RememberMeRefreshTokenTTL: getEnvDuration("REMEMBER_ME_REFRESH_TOKEN_TTL", 30*24*time.Hour),

		BcryptCost:             getEnvInt("BCRYPT_COST", 12),
		PasswordMinLength:      getEnvInt("PASSWORD_MIN_LENGTH", 8),
		PasswordRequireUpper:   getEnvBool("PASSWORD_REQUIRE_UPPER", true),
		PasswordRequireLower:   getEnvBool("PASSWORD_REQUIRE_LOWER", true),
		PasswordRequireNumber:  getEnvBool("PASSWORD_REQUIRE_NUMBER", true),
		PasswordRequireSpecial: getEnvBool("PASSWORD_REQUIRE_SPECIAL", false),

		MFAIssuer:          getEnv("MFA_ISSUER", "Backoffice"),
		MFAEncryptionKey:   getEnv("MFA_ENCRYPTION_KEY", ""),
		MFATempTokenTTL:    getEnvDuration("MFA_TEMP_TOKEN_TTL", 300*time.Second),
		MFAMaxAttempts:     getEnvInt("MFA_MAX_ATTEMPTS", 5),
		MFALockoutDuration: getEnvDuration("MFA_LOCKOUT_DURATION", 900*time.Second),

		CaptchaThreshold: getEnvInt("CAPTCHA_THRESHOLD", 2),
		ThrottleDelay:    getEnvDuration("THROTTLE_DELAY", 10*time.Second),
		ThrottleWindow:   getEnvDuration("THROTTLE_WINDOW", 15*time.Minute),

		AppBaseURL:           getEnv("APP_BASE_URL", "http://localhost:8080"),
		EmailVerificationTTL: getEnvDuration("EMAIL_VERIFICATION_TTL", 24*time.Hour),
		PasswordResetTTL:     getEnvDuration("PASSWORD_RESET_TTL", time.Hour),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", ""),
		SMTPFromName: getEnv("SMTP_FROM_NAME", "Backoffice"),

		CleanupInterval: getEnvDuration("CLEANUP_INTERVAL", time.Hour),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.MFATokenSecret == "" {
		// Intentional fallback seam: a dedicated secret is preferred but
		// not required.
		cfg.MFATokenSecret = cfg.JWTSecret
	}

	return cfg, nil
}

// HasSMTP returns true if outbound email is configured.
func (c *Config) HasSMTP() bool {
	return c.SMTPHost != "" && c.SMTPFrom != ""
}

// HasMFA returns true if the MFA encryption key is configured.
func (c *Config) HasMFA() bool {
	return c.MFAEncryptionKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
