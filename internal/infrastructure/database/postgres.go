package database

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"library-backend/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DBConfig holds everything needed to open the PostgreSQL pool
type DBConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	DBName   string
	SSLMode  string

	// Pool
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration

	// Retry
	MaxRetries     int
	RetryDelay     time.Duration
	ConnectTimeout time.Duration
}

// ConnectionString renders the config as a postgres:// URL
func (c *DBConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     c.DBName,
		RawQuery: "sslmode=" + sslMode,
	}
	return u.String()
}

// PostgresDB owns the connection pool
type PostgresDB struct {
	Pool   *pgxpool.Pool
	Config *DBConfig
}

func NewPostgresDB(config *DBConfig) *PostgresDB {
	return &PostgresDB{Config: config}
}

func (db *PostgresDB) configurePool() (*pgxpool.Config, error) {
	config, err := pgxpool.ParseConfig(db.Config.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	if db.Config.MaxConns > 0 {
		config.MaxConns = db.Config.MaxConns
	}
	if db.Config.MinConns > 0 {
		config.MinConns = db.Config.MinConns
	}
	if db.Config.MaxConnLifetime > 0 {
		config.MaxConnLifetime = db.Config.MaxConnLifetime
	}
	if db.Config.MaxConnIdleTime > 0 {
		config.MaxConnIdleTime = db.Config.MaxConnIdleTime
	}
	if db.Config.HealthCheckPeriod > 0 {
		config.HealthCheckPeriod = db.Config.HealthCheckPeriod
	}
	if db.Config.ConnectTimeout > 0 {
		config.ConnConfig.ConnectTimeout = db.Config.ConnectTimeout
	}

	return config, nil
}

// connectWithRetry backs off as RetryDelay * 2^(attempt-1)
func (db *PostgresDB) connectWithRetry(ctx context.Context, config *pgxpool.Config) (*pgxpool.Pool, error) {
	maxRetries := db.Config.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		logger.Info("database connection attempt", map[string]interface{}{
			"attempt":     attempt,
			"max_retries": maxRetries,
		})

		connectCtx, cancel := context.WithTimeout(ctx, db.connectTimeout())
		pool, err := pgxpool.NewWithConfig(connectCtx, config)
		if err == nil {
			err = pool.Ping(connectCtx)
			if err != nil {
				pool.Close()
			}
		}
		cancel()

		if err == nil {
			logger.Info("database connected", map[string]interface{}{"attempt": attempt})
			return pool, nil
		}
		lastErr = err
		logger.Error("database connection attempt failed", err)

		if attempt < maxRetries {
			delay := db.Config.RetryDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, fmt.Errorf("connection cancelled: %w", ctx.Err())
			}
		}
	}

	return nil, fmt.Errorf("failed to connect after %d attempts: %w", maxRetries, lastErr)
}

func (db *PostgresDB) connectTimeout() time.Duration {
	if db.Config.ConnectTimeout > 0 {
		return db.Config.ConnectTimeout
	}
	return 10 * time.Second
}

// Connect configures the pool and connects with retry
func (db *PostgresDB) Connect(ctx context.Context) error {
	config, err := db.configurePool()
	if err != nil {
		return fmt.Errorf("pool configuration failed: %w", err)
	}

	pool, err := db.connectWithRetry(ctx, config)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}

	db.Pool = pool
	return nil
}

// Ping checks the pool with a 5s timeout
func (db *PostgresDB) Ping(ctx context.Context) error {
	if db.Pool == nil {
		return fmt.Errorf("database pool is not initialized")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.Pool.Ping(pingCtx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// PoolStats is a snapshot of pool usage for the health endpoint
type PoolStats struct {
	TotalConns    int32 `json:"total_conns"`
	IdleConns     int32 `json:"idle_conns"`
	AcquiredConns int32 `json:"acquired_conns"`
	MaxConns      int32 `json:"max_conns"`
}

func (db *PostgresDB) Stats() (*PoolStats, error) {
	if db.Pool == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}
	s := db.Pool.Stat()
	return &PoolStats{
		TotalConns:    s.TotalConns(),
		IdleConns:     s.IdleConns(),
		AcquiredConns: s.AcquiredConns(),
		MaxConns:      s.MaxConns(),
	}, nil
}

// Close is safe to call more than once
func (db *PostgresDB) Close() {
	if db.Pool == nil {
		return
	}
	db.Pool.Close()
	db.Pool = nil
	logger.Info("database pool closed", nil)
}
