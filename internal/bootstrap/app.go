package bootstrap

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"opinion-engine/internal/ai"
	"opinion-engine/internal/app"
	"opinion-engine/internal/cache"
	"opinion-engine/internal/config"
	mysqlClient "opinion-engine/internal/platform/mysql"
	rabbitmqClient "opinion-engine/internal/platform/rabbitmq"
	redisClient "opinion-engine/internal/platform/redis"
	sqliteClient "opinion-engine/internal/platform/sqlite"
	"opinion-engine/internal/repository"
	"opinion-engine/internal/worker"
)

// Services are the request-facing engine services.
type Services struct {
	Embedding *app.EmbeddingService
	Search    *app.SearchService
	Cluster   *app.ClusterService
}

type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	DB       *gorm.DB
	Redis    *redis.Client
	MQConn   *amqp.Connection
	Services *Services

	EmbeddingWorker *worker.EmbeddingJobWorker

	StartedAt time.Time
}

// NewServices wires repositories and services over db. queryCache and
// publisher may be nil, which disables query vector caching and async jobs.
func NewServices(
	db *gorm.DB,
	provider ai.EmbeddingProvider,
	queryCache app.QueryVectorCache,
	publisher app.EmbeddingJobPublisher,
	cfg *config.Config,
	log *zap.Logger,
) *Services {
	themes := repository.NewThemeRepository(db)
	questions := repository.NewQuestionRepository(db)
	opinions := repository.NewOpinionRepository(db)
	embeddings := repository.NewEmbeddingRepository(db)
	clusterCache := repository.NewClusterCacheRepository(db)

	resolver := app.NewScopeResolver(themes, questions)
	store := app.NewEmbeddingStore(provider, embeddings, cfg.Embedding.Concurrency, log)

	return &Services{
		Embedding: app.NewEmbeddingService(resolver, opinions, store, publisher, log),
		Search:    app.NewSearchService(resolver, embeddings, opinions, store, queryCache, log),
		Cluster:   app.NewClusterService(resolver, embeddings, opinions, clusterCache, cfg.Cluster.DefaultNClusters, log),
	}
}

func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: log, StartedAt: time.Now()}

	db, err := openDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.DB = db
	if err := repository.AutoMigrate(db); err != nil {
		_ = a.Close()
		return nil, err
	}

	provider, err := ai.NewOpenAICompatibleClient(ai.EmbeddingConfig{
		BaseURL:           cfg.Embedding.BaseURL,
		APIKey:            cfg.Embedding.APIKey,
		Model:             cfg.Embedding.Model,
		Dimensions:        cfg.Embedding.Dimensions,
		Timeout:           time.Duration(cfg.Embedding.TimeoutSeconds) * time.Second,
		RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
	})
	if err != nil {
		_ = a.Close()
		return nil, errors.Wrap(err, "create embedding client failed")
	}

	var queryCache app.QueryVectorCache
	if cfg.Redis.Addr != "" {
		redisCli, err := redisClient.New(ctx, redisClient.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		})
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.Redis = redisCli
		queryCache = cache.NewQueryEmbeddingCache(redisCli, time.Duration(cfg.Redis.QueryEmbeddingTTLSeconds)*time.Second)
	} else {
		log.Info("redis disabled, query vectors are not cached")
	}

	var publisher app.EmbeddingJobPublisher
	if cfg.RabbitMQ.URL != "" {
		mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.MQConn = mqConn
		publisher = rabbitmqClient.NewEmbeddingJobPublisher(mqConn, cfg.RabbitMQ.EmbeddingJobQueue)
	} else {
		log.Info("rabbitmq disabled, async generation unavailable")
	}

	a.Services = NewServices(db, provider, queryCache, publisher, cfg, log)

	if a.MQConn != nil {
		a.EmbeddingWorker = worker.NewEmbeddingJobWorker(a.MQConn, a.Services.Embedding, cfg.RabbitMQ.EmbeddingJobQueue, log)
		if err := a.EmbeddingWorker.Start(ctx); err != nil {
			_ = a.Close()
			return nil, errors.Wrap(err, "start embedding worker failed")
		}
	}

	return a, nil
}

func openDB(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	if cfg.Database.Driver == "sqlite" {
		return sqliteClient.New(ctx, cfg.Database.SQLitePath)
	}
	return mysqlClient.New(ctx, cfg.MySQLDSN(), mysqlClient.Pool{
		MaxOpenConns:    cfg.MySQL.MaxOpenConns,
		MaxIdleConns:    cfg.MySQL.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.MySQL.ConnMaxLifetimeSeconds) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.MySQL.ConnMaxIdleTimeSeconds) * time.Second,
	})
}

func (a *App) Close() error {
	var closeErr error
	if a.EmbeddingWorker != nil {
		a.EmbeddingWorker.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = errors.CombineErrors(closeErr, err)
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = errors.CombineErrors(closeErr, err)
		}
	}
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = errors.CombineErrors(closeErr, err)
			}
		}
	}
	return closeErr
}
