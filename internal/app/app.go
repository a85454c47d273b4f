package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/gut-puncture/list-to-cart/config"
	httpDelivery "github.com/gut-puncture/list-to-cart/internal/delivery/http"
	"github.com/gut-puncture/list-to-cart/internal/domain"
	"github.com/gut-puncture/list-to-cart/internal/infrastructure/cache"
	"github.com/gut-puncture/list-to-cart/internal/infrastructure/grocery"
	"github.com/gut-puncture/list-to-cart/internal/pkg/logger"
	"github.com/gut-puncture/list-to-cart/internal/usecase"
)

// Core is the engine together with the infrastructure it owns
type Core struct {
	Engine  *usecase.Engine
	Client  *grocery.Client
	closers []func() error
}

// NewCore wires the remote client, the recommendation cache and the engine
func NewCore(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Core, error) {
	client := grocery.NewClient(cfg.Remote.BaseURL, grocery.ClientConfig{
		Timeout:           cfg.Remote.Timeout,
		MaxRetries:        cfg.Remote.MaxRetries,
		RequestsPerSecond: cfg.Remote.RequestsPerSecond,
		Burst:             cfg.Remote.Burst,
	}, log)

	// Enable debug mode in development environment
	if cfg.Server.Environment == "development" {
		client.SetDebug(true)
	}

	core := &Core{Client: client}

	recommender, err := core.wireRecommender(ctx, cfg, client, log)
	if err != nil {
		return nil, err
	}

	core.Engine = usecase.NewEngine(client, recommender, usecase.NewCartService(log), usecase.EngineConfig{
		Fanout: usecase.FanoutConfig{
			MaxConcurrency: cfg.Fanout.MaxConcurrency,
			FetchTimeout:   cfg.Fanout.FetchTimeout,
			MinSimilarity:  cfg.Fanout.MinSimilarity,
		},
		NotificationBuffer: cfg.Broadcast.NotificationBuffer,
	}, log)

	return core, nil
}

func (c *Core) wireRecommender(ctx context.Context, cfg *config.Config, client *grocery.Client, log *logger.Logger) (domain.Recommender, error) {
	var store domain.RecommendationCache
	switch cfg.Cache.Type {
	case config.CacheNone:
		log.Info("recommendation cache disabled")
		return client, nil
	case config.CacheRedis:
		rc, err := cache.NewRedisCache(ctx, cfg.Cache.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("init redis cache: %w", err)
		}
		c.closers = append(c.closers, rc.Close)
		store = rc
	default:
		mc := cache.NewMemoryCache()
		c.closers = append(c.closers, mc.Close)
		store = mc
	}

	log.Info("recommendation cache enabled", "type", cfg.Cache.Type, "ttl", cfg.Cache.TTL)
	return usecase.NewCachingRecommender(client, store, cfg.Cache.TTL, log), nil
}

// Close stops the engine and releases infrastructure
func (c *Core) Close() error {
	if c.Engine != nil {
		c.Engine.Close()
	}
	var errs []error
	for _, closeFn := range c.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// App is the HTTP server application
type App struct {
	*Core
	Log    *logger.Logger
	Cfg    *config.Config
	Router *gin.Engine
}

// New wires the full application
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	core, err := NewCore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	handler := httpDelivery.NewHandler(core.Engine, log)
	router := httpDelivery.SetupRouter(cfg, handler, log)

	return &App{
		Core:   core,
		Log:    log,
		Cfg:    cfg,
		Router: router,
	}, nil
}
