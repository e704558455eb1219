package container

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"returns-backend/internal/config"
	infraCache "returns-backend/internal/infrastructure/cache"
	"returns-backend/internal/infrastructure/database"
	"returns-backend/pkg/cache"
	"returns-backend/pkg/jwt"

	orderRepo "returns-backend/internal/domains/order/repository"
	returnsHandler "returns-backend/internal/domains/returns/handler"
	returnsRepo "returns-backend/internal/domains/returns/repository"
	returnsService "returns-backend/internal/domains/returns/service"
)

// ========================================
// CONTAINER STRUCT
// ========================================

// Container is the root of the dependency graph. Everything in it is a
// singleton living for the whole process.
type Container struct {
	// Infrastructure layer, shared across all domains
	Config      *config.Config
	DB          *database.PostgresDB
	Cache       cache.Cache
	JWTManager  *jwt.Manager
	AsynqClient *asynq.Client

	// Repository layer
	ReturnRepo  returnsRepo.ReturnRepository
	OrderReader orderRepo.OrderReader

	// Service layer
	ReturnService returnsService.ReturnService
	OtpService    returnsService.OtpService

	// Handler layer
	ReturnHandler *returnsHandler.ReturnHandler
}

// ========================================
// CONSTRUCTOR: BUILD CONTAINER
// ========================================

// NewContainer builds the full dependency graph in order:
// config, infrastructure, repositories, services, handlers.
func NewContainer() (*Container, error) {
	log.Println("Initializing DI Container...")

	c := &Container{}

	// ----------------------------------------
	// 1. Configuration
	// ----------------------------------------
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	c.Config = cfg
	log.Printf("Config loaded (Environment: %s)", cfg.App.Environment)

	// ----------------------------------------
	// 2. Database
	// ----------------------------------------
	dbConfig, err := config.LoadDatabaseConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load database config: %w", err)
	}

	db := database.NewPostgresDB(dbConfig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.HealthCheck(context.Background()); err != nil {
		return nil, fmt.Errorf("database health check failed: %w", err)
	}

	c.DB = db
	log.Println("Database connected")

	// ----------------------------------------
	// 3. Cache
	// ----------------------------------------
	redisCache := infraCache.NewRedisCache(
		cfg.Redis.Host,
		cfg.Redis.Password,
		cfg.Redis.DB,
	)
	if err := redisCache.Connect(context.Background()); err != nil {
		// Redis failure is not critical: the order snapshot cache degrades
		// to direct reads
		log.Printf("Redis connection failed (non-critical): %v", err)
	} else {
		log.Println("Redis connected")
	}
	c.Cache = redisCache

	c.JWTManager = jwt.NewManager(cfg.JWT.Secret)

	// ----------------------------------------
	// 4. Task queue client
	// ----------------------------------------
	c.AsynqClient = asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Host,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// ----------------------------------------
	// 5. Repositories
	// ----------------------------------------
	c.ReturnRepo = returnsRepo.NewPostgresReturnRepository(db.Pool)
	c.OrderReader = orderRepo.NewPostgresOrderReader(db.Pool, c.Cache)

	// ----------------------------------------
	// 6. Services
	// ----------------------------------------
	c.ReturnService = returnsService.NewReturnService(
		c.ReturnRepo,
		c.OrderReader,
		c.AsynqClient,
		cfg.Returns.DeliveryRefundable,
	)
	c.OtpService = returnsService.NewOtpService(c.ReturnRepo, c.AsynqClient)

	// ----------------------------------------
	// 7. Handlers
	// ----------------------------------------
	c.ReturnHandler = returnsHandler.NewReturnHandler(c.ReturnService, c.OtpService, c.ReturnRepo)

	log.Println("DI Container initialized successfully")
	return c, nil
}

// Cleanup releases container resources; call it during graceful shutdown
func (c *Container) Cleanup() {
	log.Println("Cleaning up container resources...")

	if c.AsynqClient != nil {
		if err := c.AsynqClient.Close(); err != nil {
			log.Printf("Failed to close asynq client: %v", err)
		}
	}

	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			log.Printf("Failed to close database: %v", err)
		}
	}

	if c.Cache != nil {
		if rc, ok := c.Cache.(*infraCache.RedisCache); ok {
			if err := rc.Close(); err != nil {
				log.Printf("Failed to close Redis: %v", err)
			} else {
				log.Println("Redis connections closed")
			}
		}
	}

	log.Println("Container cleanup completed")
}
