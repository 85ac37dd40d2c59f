package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/jobfill/jobfill/internal/crypto"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Browser drivers
const (
	DriverPlaywright = "playwright"
	DriverRod        = "rod"
)

// Mapping sources
const (
	MappingEmbedded = "embedded"
	MappingFile     = "file"
	MappingS3       = "s3"
)

// Profile store backends
const (
	StoreFile     = "file"
	StoreSQLite   = "sqlite"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreS3       = "s3"
)

// Config is the whole process configuration, read from the environment
type Config struct {
	Env      Environment `envconfig:"ENV" default:"development"`
	LogLevel string      `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool        `envconfig:"DEBUG" default:"false"`

	App        AppConfig
	Server     ServerConfig
	Browser    BrowserConfig
	Mapping    MappingConfig
	Store      StoreConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	S3         S3Config
	RateLimits RateLimitConfig
	Security   SecurityConfig
}

// AppConfig holds application metadata
type AppConfig struct {
	Name    string `envconfig:"APP_NAME" default:"jobfill"`
	Version string `envconfig:"APP_VERSION" default:"1.0.0"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"90s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	MaxRequestSize  int64         `envconfig:"SERVER_MAX_REQUEST_SIZE" default:"10485760"` // 10MB
}

// Addr returns the listen address
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// BrowserConfig holds live page driver settings
type BrowserConfig struct {
	Driver       string        `envconfig:"BROWSER_DRIVER" default:"playwright"` // playwright, rod
	Headless     bool          `envconfig:"BROWSER_HEADLESS" default:"true"`
	Timeout      time.Duration `envconfig:"BROWSER_TIMEOUT" default:"30s"`
	RemoteURL    string        `envconfig:"BROWSER_REMOTE_URL" default:""`
	Stealth      bool          `envconfig:"BROWSER_STEALTH" default:"false"`
	RetryDelay   time.Duration `envconfig:"BROWSER_RETRY_DELAY" default:"100ms"`
	ToastSuccess time.Duration `envconfig:"BROWSER_TOAST_SUCCESS" default:"4s"`
	ToastFailure time.Duration `envconfig:"BROWSER_TOAST_FAILURE" default:"3s"`
}

// MappingConfig selects where the field mapping table is loaded from
type MappingConfig struct {
	Source string `envconfig:"MAPPING_SOURCE" default:"embedded"` // embedded, file, s3
	Path   string `envconfig:"MAPPING_PATH" default:""`
	Object string `envconfig:"MAPPING_OBJECT" default:"field-mappings.json"`
}

// StoreConfig selects the profile store backend
type StoreConfig struct {
	Backend      string `envconfig:"STORE_BACKEND" default:"file"` // file, sqlite, redis, postgres, s3
	FilePath     string `envconfig:"STORE_FILE_PATH" default:"jobfill-profile.json"`
	SQLitePath   string `envconfig:"STORE_SQLITE_PATH" default:"jobfill.db"`
	Key          string `envconfig:"STORE_KEY" default:"userProfile"`
	ObjectPrefix string `envconfig:"STORE_OBJECT_PREFIX" default:"profiles"`

	// 32-byte key, base64 or raw. Empty stores records unencrypted.
	EncryptionKey string `envconfig:"STORE_ENCRYPTION_KEY" default:""`

	// Circuit breaker in front of the redis, postgres and s3 backends
	BreakerFailures int           `envconfig:"STORE_BREAKER_FAILURES" default:"5"`
	BreakerCooldown time.Duration `envconfig:"STORE_BREAKER_COOLDOWN" default:"30s"`
}

// DatabaseConfig holds PostgreSQL settings
type DatabaseConfig struct {
	Host            string        `envconfig:"DB_HOST" default:"localhost"`
	Port            int           `envconfig:"DB_PORT" default:"5432"`
	User            string        `envconfig:"DB_USER" default:"jobfill"`
	Password        string        `envconfig:"DB_PASSWORD" default:""`
	Database        string        `envconfig:"DB_NAME" default:"jobfill"`
	SSLMode         string        `envconfig:"DB_SSL_MODE" default:"disable"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"5m"`
	ConnMaxIdleTime time.Duration `envconfig:"DB_CONN_MAX_IDLE_TIME" default:"1m"`
}

// DSN returns the PostgreSQL connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisConfig holds Redis settings
type RedisConfig struct {
	Host         string        `envconfig:"REDIS_HOST" default:"localhost"`
	Port         int           `envconfig:"REDIS_PORT" default:"6379"`
	Password     string        `envconfig:"REDIS_PASSWORD" default:""`
	DB           int           `envconfig:"REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"REDIS_WRITE_TIMEOUT" default:"3s"`
}

// Addr returns Redis address
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// S3Config holds S3/MinIO settings
type S3Config struct {
	Endpoint        string `envconfig:"S3_ENDPOINT" default:"localhost:9000"`
	AccessKeyID     string `envconfig:"S3_ACCESS_KEY_ID" default:"minioadmin"`
	SecretAccessKey string `envconfig:"S3_SECRET_ACCESS_KEY" default:"minioadmin"`
	Bucket          string `envconfig:"S3_BUCKET" default:"jobfill"`
	Region          string `envconfig:"S3_REGION" default:"us-east-1"`
	UseSSL          bool   `envconfig:"S3_USE_SSL" default:"false"`
}

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	Enabled        bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerMin int  `envconfig:"RATE_LIMIT_REQUESTS_PER_MIN" default:"60"`
	BurstSize      int  `envconfig:"RATE_LIMIT_BURST_SIZE" default:"10"`
}

// SecurityConfig holds security settings
type SecurityConfig struct {
	// API Keys
	APIKey       string `envconfig:"SECURITY_API_KEY" default:""`
	APIKeyHeader string `envconfig:"SECURITY_API_KEY_HEADER" default:"X-API-Key"`

	// CORS
	CORSEnabled        bool     `envconfig:"CORS_ENABLED" default:"true"`
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	// TLS
	TLSEnabled  bool   `envconfig:"TLS_ENABLED" default:"false"`
	TLSCertFile string `envconfig:"TLS_CERT_FILE" default:""`
	TLSKeyFile  string `envconfig:"TLS_KEY_FILE" default:""`
}

// Load reads and validates the configuration
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("processing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// LoadWithDefaults reads the configuration leniently for the CLI. Values that
// fail to parse keep their zero value and nothing is validated.
func LoadWithDefaults() (*Config, error) {
	var cfg Config
	_ = envconfig.Process("", &cfg)

	if cfg.Store.Key == "" {
		cfg.Store.Key = "userProfile"
	}

	return &cfg, nil
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var errors []string

	if !slices.Contains([]string{DriverPlaywright, DriverRod}, c.Browser.Driver) {
		errors = append(errors, fmt.Sprintf("BROWSER_DRIVER %q must be playwright or rod", c.Browser.Driver))
	}

	switch c.Mapping.Source {
	case MappingEmbedded, MappingS3:
	case MappingFile:
		if c.Mapping.Path == "" {
			errors = append(errors, "MAPPING_PATH is required when MAPPING_SOURCE is file")
		}
	default:
		errors = append(errors, fmt.Sprintf("MAPPING_SOURCE %q must be embedded, file or s3", c.Mapping.Source))
	}

	if !slices.Contains([]string{StoreFile, StoreSQLite, StoreRedis, StorePostgres, StoreS3}, c.Store.Backend) {
		errors = append(errors, fmt.Sprintf("STORE_BACKEND %q is not supported", c.Store.Backend))
	}

	if c.Store.EncryptionKey != "" {
		if _, err := crypto.ParseKey(c.Store.EncryptionKey); err != nil {
			errors = append(errors, fmt.Sprintf("STORE_ENCRYPTION_KEY: %v", err))
		}
	}

	if c.Env != EnvDevelopment && c.Store.Backend == StorePostgres && c.Database.Password == "" {
		errors = append(errors, "DB_PASSWORD is required outside development")
	}
	if c.Security.TLSEnabled && (c.Security.TLSCertFile == "" || c.Security.TLSKeyFile == "") {
		errors = append(errors, "TLS_CERT_FILE and TLS_KEY_FILE are required when TLS is enabled")
	}
	if c.Env == EnvProduction && c.Security.APIKey == "" {
		errors = append(errors, "SECURITY_API_KEY is required in production")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errors, "; "))
	}
	return nil
}

// GetLogLevel returns the appropriate zap log level
func (c *Config) GetLogLevel() string {
	if c.Debug {
		return "debug"
	}
	return c.LogLevel
}
