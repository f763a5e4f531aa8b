package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"library-backend/internal/domains/lending/model"
	"library-backend/internal/infrastructure/database"

	"github.com/shopspring/decimal"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Store drivers
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds the whole application configuration, populated from environment variables
type Config struct {
	App      AppConfig
	Database *database.DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	MinIO    MinIOConfig
	Lending  LendingConfig
	Store    StoreConfig
	Jobs     JobConfig
	Cache    CacheConfig
}

type AppConfig struct {
	Name           string
	Environment    string // development, staging, production
	Port           string
	Version        string
	AllowedOrigins []string
}

type RedisConfig struct {
	Host     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	AccessTokenExpiry int // minutes
}

type MinIOConfig struct {
	Endpoint  string // localhost:9000
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool // false for local
}

// LendingConfig is the circulation policy
type LendingConfig struct {
	LoanPeriodDays    int
	MaxActiveLoans    int
	FinePerDay        decimal.Decimal
	ConflictRetries   int
	ConflictBaseDelay time.Duration
}

type StoreConfig struct {
	Driver      string // postgres | memory
	SeedFile    string // JSON catalog and roster for the memory driver
	AutoMigrate bool
}

type JobConfig struct {
	OverdueScanCron string
	FinesReportCron string
	Concurrency     int
}

type CacheConfig struct {
	DashboardTTL time.Duration
}

// Load reads config from environment variables
func Load() (*Config, error) {
	finePerDay, err := decimal.NewFromString(getEnv("LENDING_FINE_PER_DAY", model.DefaultFinePerDay.String()))
	if err != nil {
		return nil, fmt.Errorf("invalid LENDING_FINE_PER_DAY: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:           getEnv("APP_NAME", "Library API"),
			Environment:    getEnv("APP_ENV", "development"),
			Port:           getEnv("APP_PORT", "8080"),
			Version:        getEnv("APP_VERSION", "1.0.0"),
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", defaultJWTSecret),
			AccessTokenExpiry: getEnvInt("JWT_ACCESS_EXPIRY", 720), // 12 hours, one desk shift
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey: getEnv("MINIO_SECRET_KEY", "minioadmin"),
			Bucket:    getEnv("MINIO_BUCKET", "library-reports"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Lending: LendingConfig{
			LoanPeriodDays:    getEnvInt("LENDING_LOAN_PERIOD_DAYS", model.DefaultLoanPeriodDays),
			MaxActiveLoans:    getEnvInt("LENDING_MAX_ACTIVE_LOANS", model.DefaultMaxActiveLoans),
			FinePerDay:        finePerDay,
			ConflictRetries:   getEnvInt("LENDING_CONFLICT_RETRIES", model.DefaultConflictRetries),
			ConflictBaseDelay: getEnvDuration("LENDING_CONFLICT_BASE_DELAY", model.DefaultConflictBaseDelay),
		},
		Store: StoreConfig{
			Driver:      getEnv("STORE_DRIVER", StorePostgres),
			SeedFile:    getEnv("SEED_FILE", ""),
			AutoMigrate: getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Jobs: JobConfig{
			OverdueScanCron: getEnv("JOB_OVERDUE_SCAN_CRON", "0 1 * * *"),   // daily at 1 AM UTC
			FinesReportCron: getEnv("JOB_FINES_REPORT_CRON", "30 1 * * *"), // after the overdue scan
			Concurrency:     getEnvInt("WORKER_CONCURRENCY", 10),
		},
		Cache: CacheConfig{
			DashboardTTL: getEnvDuration("CACHE_DASHBOARD_TTL", 30*time.Second),
		},
	}

	if cfg.Store.Driver == StorePostgres {
		if cfg.Database, err = LoadDatabaseConfig(); err != nil {
			return nil, err
		}
	}

	// Validate critical config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the config is usable
func (c *Config) Validate() error {
	if err := c.Lending.Policy().Validate(); err != nil {
		return fmt.Errorf("lending policy: %w", err)
	}

	switch c.Store.Driver {
	case StorePostgres:
		if c.Database == nil {
			return fmt.Errorf("database config is required for the postgres store")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}

	// Production environment must not run on defaults
	if c.App.Environment == "production" {
		if c.JWT.Secret == defaultJWTSecret {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
		if c.Store.Driver == StoreMemory {
			return fmt.Errorf("the memory store is not allowed in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD must be set in production")
		}
	}

	return nil
}

// Policy converts the lending section into the engine policy
func (l LendingConfig) Policy() model.Policy {
	return model.Policy{
		LoanPeriodDays:    l.LoanPeriodDays,
		MaxActiveLoans:    l.MaxActiveLoans,
		FinePerDay:        l.FinePerDay,
		ConflictRetries:   l.ConflictRetries,
		ConflictBaseDelay: l.ConflictBaseDelay,
	}
}

// IsProduction reports whether APP_ENV is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// Helper functions
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
