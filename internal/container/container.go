package container

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	database "github.com/FACorreiaa/munchmate-api/app/db"
	"github.com/FACorreiaa/munchmate-api/config"
	"github.com/FACorreiaa/munchmate-api/internal/api/auth"
	"github.com/FACorreiaa/munchmate-api/internal/api/chatbot"
	"github.com/FACorreiaa/munchmate-api/internal/api/clicks"
	generativeAI "github.com/FACorreiaa/munchmate-api/internal/api/generative_ai"
	"github.com/FACorreiaa/munchmate-api/internal/api/preferences"
	"github.com/FACorreiaa/munchmate-api/internal/api/recommendation"
	"github.com/FACorreiaa/munchmate-api/internal/api/restaurant"
	"github.com/FACorreiaa/munchmate-api/internal/api/yelp"
	"github.com/FACorreiaa/munchmate-api/internal/types"
)

// Container holds all application dependencies
type Container struct {
	Config *config.Config
	Logger *slog.Logger
	Pool   *pgxpool.Pool

	RestaurantService *restaurant.ServiceImpl
	ClickService      *clicks.ServiceImpl

	AuthHandler           *auth.HandlerImpl
	RestaurantHandler     *restaurant.HandlerImpl
	ClickHandler          *clicks.HandlerImpl
	RecommendationHandler *recommendation.HandlerImpl
	PreferencesHandler    *preferences.HandlerImpl
	ChatbotHandler        *chatbot.HandlerImpl
}

type repositories struct {
	restaurants restaurant.Repository
	clicks      clicks.Repository
	preferences preferences.Repository
	chat        chatbot.Repository
	users       auth.Repository
}

// NewContainer wires repositories, clients, services and handlers. With the
// postgres driver it also applies migrations and opens the pool.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger}

	var repos repositories
	if strings.EqualFold(cfg.Repositories.Driver, restaurant.DriverMemory) {
		logger.Warn("Using in-memory repositories; data will not survive a restart")
		repos = memoryRepositories(logger)
	} else {
		pool, err := openPool(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		c.Pool = pool
		repos = postgresRepositories(pool, logger)
	}

	ai, err := generativeAI.NewAIClient(ctx, cfg.Providers.Gemini)
	if err != nil {
		c.Close()
		return nil, err
	}
	if !ai.Enabled() {
		logger.Warn("GEMINI_API_KEY not set; chat endpoints will report the assistant as unavailable")
	}
	if cfg.Providers.Yelp.APIKey == "" {
		logger.Warn("YELP_API_KEY not set; lookups will rely on cached records")
	}

	exposeDetails := cfg.IsDevelopment()

	restaurantService := restaurant.NewServiceImpl(repos.restaurants, yelp.NewClient(cfg.Providers.Yelp, logger), logger,
		restaurant.WithFreshness(cfg.Cache.Freshness),
		restaurant.WithBackgroundTimeout(cfg.Cache.BackgroundTimeout),
	)
	clickService := clicks.NewServiceImpl(repos.clicks, restaurantService, logger,
		clicks.WithGuardTTL(cfg.Cache.EnrichmentGuardTTL),
		clicks.WithBackgroundTimeout(cfg.Cache.BackgroundTimeout),
	)
	recommendationService := recommendation.NewServiceImpl(clickService, logger)
	preferencesService := preferences.NewServiceImpl(repos.preferences, logger)
	chatService := chatbot.NewServiceImpl(repos.chat, ai, preferencesService, clickService, logger)
	authService := auth.NewServiceImpl(repos.users, cfg.JWT, logger)

	c.RestaurantService = restaurantService
	c.ClickService = clickService
	c.AuthHandler = auth.NewHandlerImpl(authService, logger)
	c.RestaurantHandler = restaurant.NewHandlerImpl(restaurantService, logger, exposeDetails)
	c.ClickHandler = clicks.NewHandlerImpl(clickService, logger, exposeDetails)
	c.RecommendationHandler = recommendation.NewHandlerImpl(recommendationService, logger)
	c.PreferencesHandler = preferences.NewHandlerImpl(preferencesService, logger)
	c.ChatbotHandler = chatbot.NewHandlerImpl(chatService, logger, exposeDetails, cfg.CORS.AllowedOrigins)

	return c, nil
}

func openPool(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	dbConfig, err := database.NewDatabaseConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	pool, err := database.Init(ctx, dbConfig, logger)
	if err != nil {
		return nil, err
	}
	if !database.WaitForDB(ctx, pool, logger) {
		pool.Close()
		return nil, errors.New("database not ready after retries")
	}
	if err := database.RunMigrations(dbConfig.ConnectionURL, logger); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func postgresRepositories(pool *pgxpool.Pool, logger *slog.Logger) repositories {
	return repositories{
		restaurants: restaurant.NewStore(restaurant.DriverPostgres, pool, logger),
		clicks:      clicks.NewRepository(pool, logger),
		preferences: preferences.NewRepository(pool, logger),
		chat:        chatbot.NewRepository(pool, logger),
		users:       auth.NewRepository(pool, logger),
	}
}

func memoryRepositories(logger *slog.Logger) repositories {
	prefs := preferences.NewMemoryRepository()
	return repositories{
		restaurants: restaurant.NewStore(restaurant.DriverMemory, nil, logger),
		clicks:      clicks.NewMemoryRepository(),
		preferences: prefs,
		chat:        chatbot.NewMemoryRepository(),
		users: auth.NewMemoryRepository(func(ctx context.Context, p types.UserPreferences) error {
			if _, err := prefs.Upsert(ctx, p); err != nil {
				return fmt.Errorf("failed to store initial preferences: %w", err)
			}
			return nil
		}),
	}
}

// Drain waits for best-effort cache writes and enrichments started by requests.
func (c *Container) Drain(ctx context.Context) error {
	var errs []error
	if c.RestaurantService != nil {
		errs = append(errs, c.RestaurantService.Wait(ctx))
	}
	if c.ClickService != nil {
		errs = append(errs, c.ClickService.Wait(ctx))
	}
	return errors.Join(errs...)
}

// Close releases all resources held by the container
func (c *Container) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
}
