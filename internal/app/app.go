package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"liaptui/internal/cache"
	"liaptui/internal/config"
	"liaptui/internal/events"
	"liaptui/internal/log"
	"liaptui/internal/realtime"
	"liaptui/internal/repository"
	"liaptui/internal/service"
)

// App is the wired dependency graph shared by the server and tooling.
type App struct {
	UnitOfWork   repository.UnitOfWork
	Registry     *realtime.Registry
	Events       events.Fanout
	HealthCache  *cache.HealthCache
	Auth         *service.AuthService
	Queues       *service.MessageQueueService
	Reconnection *service.ReconnectionService
	Dispatcher   *service.Dispatcher
	Rooms        *service.RoomService
	Sweeper      *service.Sweeper

	closers []func() error
}

// New connects the configured backends and builds every service.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Registry: realtime.NewRegistry()}

	if err := a.openStorage(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}

	a.Events = events.Fanout{a.Registry}
	if cfg.Nats.URL != "" {
		natsPub, err := events.NewNatsPublisher(cfg.Nats.URL, cfg.Nats.SubjectPrefix)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		a.closers = append(a.closers, natsPub.Close)
		a.Events = append(a.Events, natsPub)
		log.Info("publishing domain events to NATS at %s", cfg.Nats.URL)
	} else {
		a.Events = append(a.Events, events.LogPublisher{})
	}

	healthCache, err := cache.NewHealthCache(10_000, cfg.Connection.HealthCacheTTL)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.HealthCache = healthCache
	a.closers = append(a.closers, func() error { healthCache.Close(); return nil })

	locks := service.NewRoomLocks()
	a.Auth = service.NewAuthService(cfg.Jwt.Secret, cfg.Jwt.TTL)
	a.Queues = service.NewMessageQueueService(a.UnitOfWork, a.Events, locks, cfg.Queue.MaxSize)
	a.Reconnection = service.NewReconnectionService(a.UnitOfWork, a.Events, locks, a.Queues, cfg.Connection.StaleAfter).
		WithHealthCache(healthCache)
	a.Dispatcher = service.NewDispatcher(a.UnitOfWork, locks, a.Registry, a.Queues)
	a.Rooms = service.NewRoomService(a.UnitOfWork, locks, a.Auth, a.Dispatcher, a.Registry)
	a.Sweeper = service.NewSweeper(a.UnitOfWork, a.Reconnection, a.Queues,
		cfg.Sweeper.Interval, cfg.Queue.MessageMaxAge, cfg.Connection.DisconnectTimeout)
	return a, nil
}

func (a *App) openStorage(ctx context.Context, cfg *config.Config) error {
	if cfg.Storage.Driver == config.DriverMemory {
		log.Warn("using in-memory storage, state is lost on restart")
		a.UnitOfWork = repository.NewMemoryStore()
		return nil
	}

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return fmt.Errorf("connect mongo: %w", err)
	}
	a.closers = append(a.closers, func() error { return mongoClient.Disconnect(context.Background()) })

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		return fmt.Errorf("ping mongo: %w", err)
	}
	log.Info("connected to MongoDB")

	db := mongoClient.Database(cfg.Mongo.Database)
	if err := repository.EnsureIndexes(ctx, db); err != nil {
		return fmt.Errorf("mongo indexes: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	a.closers = append(a.closers, rdb.Close)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	log.Info("connected to Redis")

	queues := cache.NewMessageQueueCache(rdb, cfg.Redis.QueueTTL)
	a.UnitOfWork = repository.NewMongoUnitOfWork(mongoClient, db, queues)
	return nil
}

// Close releases backends in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
