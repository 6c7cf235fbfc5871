package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Email providers understood by the mailer wiring.
const (
	EmailProviderConsole  = "console"
	EmailProviderSendGrid = "sendgrid"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	Cache       CacheConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	Rollbar     RollbarConfig
	Enrollment  EnrollmentConfig
	Email       EmailConfig
	Geocoding   GeocodingConfig
	Documents   DocumentsConfig
	SideEffects SideEffectsConfig
	Admin       AdminConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig governs the catalog cache.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
	Issuer            string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// RollbarConfig enables error reporting when a token is present.
type RollbarConfig struct {
	Token       string
	CodeVersion string
	ServerHost  string
}

// EnrollmentConfig tunes the enrollment request lifecycle.
type EnrollmentConfig struct {
	RequestTTL    time.Duration
	SweepInterval time.Duration
}

// EmailConfig selects and configures the outbound mail provider.
type EmailConfig struct {
	Provider        string
	SendGridAPIKey  string
	FromName        string
	FromAddress     string
	SubjectPrefix   string
	FrontendBaseURL string
}

// GeocodingConfig configures the address lookup collaborator.
type GeocodingConfig struct {
	Enabled       bool
	BaseURL       string
	UserAgent     string
	Timeout       time.Duration
	MinImportance float64
}

// DocumentsConfig controls document storage & validation.
type DocumentsConfig struct {
	StorageDir       string
	SignedURLSecret  string
	SignedURLTTL     time.Duration
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
	PhotoMaxEdge     int
}

// SideEffectsConfig sizes the post-commit notification queue.
type SideEffectsConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// AdminConfig holds the bootstrap administrator applied by cmd/ensure-admin.
type AdminConfig struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_CACHE"),
		TTL:     parseDuration(v.GetString("CACHE_TTL"), 5*time.Minute),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
		Issuer:            v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Rollbar = RollbarConfig{
		Token:       v.GetString("ROLLBAR_TOKEN"),
		CodeVersion: v.GetString("BUILD_VERSION"),
		ServerHost:  v.GetString("SERVER_HOST"),
	}

	cfg.Enrollment = EnrollmentConfig{
		RequestTTL:    parseDuration(v.GetString("ENROLLMENT_REQUEST_TTL"), 24*time.Hour),
		SweepInterval: parseDuration(v.GetString("ENROLLMENT_SWEEP_INTERVAL"), 0),
	}

	cfg.Email = EmailConfig{
		Provider:        strings.ToLower(v.GetString("EMAIL_PROVIDER")),
		SendGridAPIKey:  v.GetString("SENDGRID_API_KEY"),
		FromName:        v.GetString("EMAIL_FROM_NAME"),
		FromAddress:     v.GetString("EMAIL_FROM_ADDRESS"),
		SubjectPrefix:   v.GetString("EMAIL_SUBJECT_PREFIX"),
		FrontendBaseURL: v.GetString("FRONTEND_BASE_URL"),
	}

	cfg.Geocoding = GeocodingConfig{
		Enabled:       v.GetBool("ENABLE_GEOCODING"),
		BaseURL:       v.GetString("GEOCODING_BASE_URL"),
		UserAgent:     v.GetString("GEOCODING_USER_AGENT"),
		Timeout:       parseDuration(v.GetString("GEOCODING_TIMEOUT"), 4*time.Second),
		MinImportance: v.GetFloat64("GEOCODING_MIN_IMPORTANCE"),
	}

	maxDocumentSize := v.GetInt64("DOCUMENTS_MAX_FILE_SIZE")
	if maxDocumentSize <= 0 {
		maxDocumentSize = 5 * 1024 * 1024
	}
	cfg.Documents = DocumentsConfig{
		StorageDir:       v.GetString("DOCUMENTS_STORAGE_DIR"),
		SignedURLSecret:  v.GetString("DOCUMENTS_SIGNED_URL_SECRET"),
		SignedURLTTL:     parseDuration(v.GetString("DOCUMENTS_SIGNED_URL_TTL"), 15*time.Minute),
		MaxFileSizeBytes: maxDocumentSize,
		AllowedMIMEs:     splitAndTrim(v.GetString("DOCUMENTS_ALLOWED_MIME_TYPES")),
		PhotoMaxEdge:     v.GetInt("DOCUMENTS_PHOTO_MAX_EDGE"),
	}

	cfg.SideEffects = SideEffectsConfig{
		Workers:    v.GetInt("SIDE_EFFECT_WORKERS"),
		BufferSize: v.GetInt("SIDE_EFFECT_BUFFER"),
		MaxRetries: v.GetInt("SIDE_EFFECT_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("SIDE_EFFECT_RETRY_DELAY"), 2*time.Second),
	}

	cfg.Admin = AdminConfig{
		Email:     strings.TrimSpace(v.GetString("ADMIN_EMAIL")),
		Password:  v.GetString("ADMIN_PASSWORD"),
		FirstName: v.GetString("ADMIN_FIRST_NAME"),
		LastName:  v.GetString("ADMIN_LAST_NAME"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "matrischol")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", false)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("CACHE_TTL", "5m")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")
	v.SetDefault("JWT_ISSUER", "matrischol")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ROLLBAR_TOKEN", "")
	v.SetDefault("BUILD_VERSION", "dev")
	v.SetDefault("SERVER_HOST", "")

	v.SetDefault("ENROLLMENT_REQUEST_TTL", "24h")
	v.SetDefault("ENROLLMENT_SWEEP_INTERVAL", "0")

	v.SetDefault("EMAIL_PROVIDER", EmailProviderConsole)
	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("EMAIL_FROM_NAME", "Matrischol")
	v.SetDefault("EMAIL_FROM_ADDRESS", "no-reply@matrischol.local")
	v.SetDefault("EMAIL_SUBJECT_PREFIX", "[Matrischol] ")
	v.SetDefault("FRONTEND_BASE_URL", "http://localhost:3000")

	v.SetDefault("ENABLE_GEOCODING", false)
	v.SetDefault("GEOCODING_BASE_URL", "https://nominatim.openstreetmap.org")
	v.SetDefault("GEOCODING_USER_AGENT", "matrischol/1.0 (admin@matrischol.local)")
	v.SetDefault("GEOCODING_TIMEOUT", "4s")
	v.SetDefault("GEOCODING_MIN_IMPORTANCE", 0.2)

	v.SetDefault("DOCUMENTS_STORAGE_DIR", "./media")
	v.SetDefault("DOCUMENTS_SIGNED_URL_SECRET", "dev_documents_secret")
	v.SetDefault("DOCUMENTS_SIGNED_URL_TTL", "15m")
	v.SetDefault("DOCUMENTS_MAX_FILE_SIZE", 5*1024*1024)
	v.SetDefault("DOCUMENTS_ALLOWED_MIME_TYPES", "application/pdf,image/jpeg,image/png")
	v.SetDefault("DOCUMENTS_PHOTO_MAX_EDGE", 800)

	v.SetDefault("SIDE_EFFECT_WORKERS", 2)
	v.SetDefault("SIDE_EFFECT_BUFFER", 64)
	v.SetDefault("SIDE_EFFECT_MAX_RETRIES", 3)
	v.SetDefault("SIDE_EFFECT_RETRY_DELAY", "2s")

	v.SetDefault("ADMIN_EMAIL", "")
	v.SetDefault("ADMIN_PASSWORD", "")
	v.SetDefault("ADMIN_FIRST_NAME", "Admin")
	v.SetDefault("ADMIN_LAST_NAME", "User")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
