package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"moviecatalog/internal/db"
	"moviecatalog/internal/email"
)

const minJWTSecretLength = 32

type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	SentryDSN   string
	LogLevel    string

	JWTSecret   string
	JWTTTL      time.Duration
	JWTIssuer   string
	JWTAudience string
	BcryptCost  int

	LoginMaxAttempts      int
	LoginLockDuration     time.Duration
	LoginAttemptWindow    time.Duration
	LoginAttemptRetention time.Duration
	LoginRateLimitMax     int
	LoginRateLimitWindow  time.Duration

	// CleanupInterval of zero disables the in-process sweeper.
	CleanupInterval time.Duration
	CronSecret      string

	FrontendURL        string
	CORSAllowedOrigins []string
	TrustedProxies     []string

	SMTP email.SMTPConfig
	DB   db.PoolOptions
}

// settings resolves keys from the environment first and then from the
// optional YAML file named by CONFIG_FILE.
type settings struct {
	file map[string]string
}

// LoadConfig reads configuration from the environment, optionally seeded by
// a .env file and a flat YAML file of the same keys.
func LoadConfig(loadDotEnv bool) (Config, error) {
	if loadDotEnv {
		_ = godotenv.Load()
	}

	s, err := loadSettings(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return Config{}, err
	}
	return s.config()
}

func loadSettings(path string) (settings, error) {
	s := settings{file: map[string]string{}}
	path = strings.TrimSpace(path)
	if path == "" {
		return s, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("read config file: %w", err)
	}

	values := map[string]any{}
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return s, fmt.Errorf("parse config file: %w", err)
	}
	for key, value := range values {
		if value == nil {
			continue
		}
		s.file[strings.ToUpper(key)] = fmt.Sprint(value)
	}
	return s, nil
}

func (s settings) config() (Config, error) {
	cfg := Config{
		AppEnv:      s.stringOr("APP_ENV", "development"),
		Port:        s.stringOr("PORT", "8080"),
		DatabaseURL: s.get("DATABASE_URL"),
		SentryDSN:   s.get("SENTRY_DSN"),
		LogLevel:    s.stringOr("LOG_LEVEL", "info"),

		JWTSecret:   s.get("JWT_SECRET"),
		JWTTTL:      s.minutesOr("JWT_TTL_MINUTES", 120),
		JWTIssuer:   s.stringOr("JWT_ISSUER", "movie-platform-app"),
		JWTAudience: s.stringOr("JWT_AUDIENCE", "movie-platform-users"),
		BcryptCost:  s.intOr("BCRYPT_COST", 12),

		LoginMaxAttempts:      s.intOr("LOGIN_MAX_ATTEMPTS", 10),
		LoginLockDuration:     s.minutesOr("LOGIN_LOCK_MINUTES", 10),
		LoginAttemptWindow:    s.minutesOr("LOGIN_ATTEMPT_WINDOW_MINUTES", 10),
		LoginAttemptRetention: s.hoursOr("LOGIN_ATTEMPT_RETENTION_HOURS", 24),
		LoginRateLimitMax:     s.intOr("LOGIN_RATE_LIMIT_MAX", 30),
		LoginRateLimitWindow:  s.secondsOr("LOGIN_RATE_LIMIT_WINDOW_SECONDS", 60),

		CleanupInterval: time.Duration(s.nonNegativeIntOr("CLEANUP_INTERVAL_MINUTES", 60)) * time.Minute,
		CronSecret:      s.get("CRON_SECRET"),

		FrontendURL:        s.stringOr("FRONTEND_URL", "http://localhost:5173"),
		CORSAllowedOrigins: s.listOr("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000"),
		TrustedProxies:     s.list("TRUSTED_PROXIES"),

		SMTP: email.SMTPConfig{
			Host:     s.get("SMTP_HOST"),
			Port:     s.intOr("SMTP_PORT", 587),
			Username: s.get("SMTP_USERNAME"),
			Password: s.get("SMTP_PASSWORD"),
			From:     s.get("SMTP_FROM"),
		},
		DB: db.PoolOptions{
			MaxConns:        int32(s.intOr("DB_MAX_CONNS", 10)),
			MinConns:        int32(s.nonNegativeIntOr("DB_MIN_CONNS", 0)),
			MaxConnLifetime: s.minutesOr("DB_CONN_MAX_LIFETIME_MINUTES", 30),
			MaxConnIdleTime: s.minutesOr("DB_CONN_MAX_IDLE_TIME_MINUTES", 10),
		},
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("missing required env: DATABASE_URL"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("missing required env: JWT_SECRET"))
	} else if len(c.JWTSecret) < minJWTSecretLength {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLength))
	}
	return errors.Join(errs...)
}

// MailEnabled reports whether enough SMTP settings exist to send mail.
func (c Config) MailEnabled() bool {
	return c.SMTP.Host != "" && (c.SMTP.From != "" || c.SMTP.Username != "")
}

func (s settings) get(name string) string {
	if value := strings.TrimSpace(os.Getenv(name)); value != "" {
		return value
	}
	return strings.TrimSpace(s.file[name])
}

func (s settings) stringOr(name, fallback string) string {
	if value := s.get(name); value != "" {
		return value
	}
	return fallback
}

func (s settings) intOr(name string, fallback int) int {
	parsed, err := strconv.Atoi(s.get(name))
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func (s settings) nonNegativeIntOr(name string, fallback int) int {
	parsed, err := strconv.Atoi(s.get(name))
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func (s settings) minutesOr(name string, fallback int) time.Duration {
	return time.Duration(s.intOr(name, fallback)) * time.Minute
}

func (s settings) hoursOr(name string, fallback int) time.Duration {
	return time.Duration(s.intOr(name, fallback)) * time.Hour
}

func (s settings) secondsOr(name string, fallback int) time.Duration {
	return time.Duration(s.intOr(name, fallback)) * time.Second
}

func (s settings) listOr(name, fallback string) []string {
	return splitList(s.stringOr(name, fallback))
}

func (s settings) list(name string) []string {
	return splitList(s.get(name))
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if item := strings.TrimRight(strings.TrimSpace(part), "/"); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func EnvBoolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if value == "" {
		return fallback
	}

	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
