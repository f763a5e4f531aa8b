package container

import (
	"context"
	"fmt"
	"time"

	"library-backend/internal/config"
	lendingHandler "library-backend/internal/domains/lending/handler"
	lendingRepo "library-backend/internal/domains/lending/repository"
	lendingService "library-backend/internal/domains/lending/service"
	infraCache "library-backend/internal/infrastructure/cache"
	"library-backend/internal/infrastructure/database"
	"library-backend/internal/infrastructure/queue"
	"library-backend/pkg/cache"
	"library-backend/pkg/jwt"
	"library-backend/pkg/logger"

	"github.com/hibiken/asynq"
)

// ========================================
// CONTAINER STRUCT
// ========================================

// Container holds the dependency graph shared by the API and the worker.
// Every field is a singleton for the process lifetime.
type Container struct {
	// ========================================
	// INFRASTRUCTURE LAYER
	// ========================================
	Config      *config.Config
	DB          *database.PostgresDB // nil with the memory store
	Cache       cache.Cache          // nil when Redis is unreachable
	JWTManager  *jwt.Manager
	AsynqClient *asynq.Client

	redis *infraCache.RedisCache

	// ========================================
	// REPOSITORY LAYER
	// ========================================
	LendingStore lendingRepo.Store

	// ========================================
	// SERVICE LAYER
	// ========================================
	Publisher        lendingService.EventPublisher
	LendingService   lendingService.LendingService
	FineService      lendingService.FineService
	DashboardService lendingService.DashboardService

	// ========================================
	// HANDLER LAYER
	// ========================================
	LendingHandler *lendingHandler.Handler
}

// NewContainer builds the graph in dependency order:
// config, infrastructure, store, services, handlers
func NewContainer() (*Container, error) {
	logger.Info("initializing container", nil)

	c := &Container{}

	// ========================================
	// STEP 1: CONFIGURATION
	// ========================================
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	c.Config = cfg
	logger.Info("config loaded", map[string]interface{}{
		"environment": cfg.App.Environment,
		"store":       cfg.Store.Driver,
	})

	// ========================================
	// STEP 2: STORE
	// ========================================
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.initStore(ctx); err != nil {
		c.Cleanup()
		return nil, err
	}

	// ========================================
	// STEP 3: CACHE AND QUEUE
	// ========================================
	c.initRedis(ctx)
	c.JWTManager = jwt.NewManager(cfg.JWT.Secret, time.Duration(cfg.JWT.AccessTokenExpiry)*time.Minute)

	// ========================================
	// STEP 4: SERVICES
	// ========================================
	c.initServices()

	// ========================================
	// STEP 5: HANDLERS
	// ========================================
	c.LendingHandler = lendingHandler.NewHandler(c.LendingService, c.FineService, c.DashboardService, time.Now)

	logger.Info("container initialized", nil)
	return c, nil
}

func (c *Container) initStore(ctx context.Context) error {
	switch c.Config.Store.Driver {
	case config.StoreMemory:
		mem := lendingRepo.NewMemoryStore()
		if path := c.Config.Store.SeedFile; path != "" {
			if err := mem.LoadSeedFile(path); err != nil {
				return fmt.Errorf("failed to load seed file: %w", err)
			}
			logger.Info("memory store seeded", map[string]interface{}{"file": path})
		}
		c.LendingStore = mem
		return nil

	default:
		dbConfig := c.Config.Database
		db := database.NewPostgresDB(dbConfig)
		if err := db.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.Ping(ctx); err != nil {
			db.Close()
			return fmt.Errorf("database health check failed: %w", err)
		}

		if c.Config.Store.AutoMigrate {
			if err := database.Migrate(dbConfig.ConnectionString()); err != nil {
				db.Close()
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			logger.Info("migrations applied", nil)
		}

		c.DB = db
		c.LendingStore = lendingRepo.NewPostgresStore(db.Pool)
		logger.Info("database connected", map[string]interface{}{
			"host": dbConfig.Host,
			"name": dbConfig.DBName,
		})
		return nil
	}
}

// initRedis connects the cache and the task client. Redis is optional:
// without it the dashboard recomputes on every read and events are dropped.
func (c *Container) initRedis(ctx context.Context) {
	rc := infraCache.NewRedisCache(c.Config.Redis.Host, c.Config.Redis.Password, c.Config.Redis.DB)
	if err := rc.Connect(ctx); err != nil {
		logger.Warn("redis unavailable, running without cache and events", map[string]interface{}{
			"addr":  c.Config.Redis.Host,
			"error": err.Error(),
		})
		_ = rc.Close()
		return
	}

	c.redis = rc
	c.Cache = rc
	c.AsynqClient = asynq.NewClient(c.RedisClientOpt())
	logger.Info("redis connected", map[string]interface{}{"addr": c.Config.Redis.Host})
}

func (c *Container) initServices() {
	policy := c.Config.Lending.Policy()

	c.Publisher = lendingService.NoopPublisher{}
	if c.AsynqClient != nil {
		c.Publisher = queue.NewEventPublisher(c.AsynqClient)
	}

	gate := lendingService.NewEligibilityGate(c.LendingStore, policy.MaxActiveLoans)
	calculator := lendingService.NewFineCalculator(policy.FinePerDay)

	c.LendingService = lendingService.NewLendingService(c.LendingStore, gate, calculator, c.Publisher, policy, time.Now)
	c.FineService = lendingService.NewFineService(c.LendingStore, c.Publisher, time.Now)

	c.DashboardService = lendingService.NewDashboardService(c.LendingStore, c.Cache, c.Config.Cache.DashboardTTL, time.Now)
}

// RedisClientOpt is the asynq connection for the configured Redis
func (c *Container) RedisClientOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     c.Config.Redis.Host,
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	}
}

// Cleanup closes every connection the container opened
func (c *Container) Cleanup() {
	if c.AsynqClient != nil {
		if err := c.AsynqClient.Close(); err != nil {
			logger.Error("failed to close asynq client", err)
		}
	}

	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			logger.Error("failed to close redis", err)
		}
	}

	if c.DB != nil {
		c.DB.Close()
		logger.Info("database connections closed", nil)
	}
}
