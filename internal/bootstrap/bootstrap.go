// Package bootstrap opens the infrastructure shared by the api, worker and
// runner processes.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"skillswap/internal/config"
	"skillswap/pkg/db"
	"skillswap/pkg/logger"
	"skillswap/pkg/mq"
	redisclient "skillswap/pkg/redis"
	"skillswap/pkg/util"
)

// Infra holds the long-lived connections of a process.
type Infra struct {
	Config *config.Config
	Logger *zap.Logger
	DB     *pgxpool.Pool
	Redis  *redis.Client
}

// Open loads config from dir and connects to postgres and redis.
func Open(ctx context.Context, dir, service string) (*Infra, error) {
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.NewLogger(cfg.LogLevel).With(zap.String("service", service), zap.String("env", cfg.Env))

	pool, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	rdb, err := redisclient.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &Infra{Config: cfg, Logger: log, DB: pool, Redis: rdb}, nil
}

func (i *Infra) Close() {
	_ = i.Redis.Close()
	i.DB.Close()
	_ = i.Logger.Sync()
}

func (i *Infra) asynqOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     i.Config.Redis.Addr,
		Password: i.Config.Redis.Password,
		DB:       i.Config.Redis.DB,
	}
}

// Enqueuer opens the publisher for the configured queue driver.
func (i *Infra) Enqueuer() (mq.Enqueuer, func(), error) {
	switch i.Config.MQ.Driver {
	case "asynq":
		p := mq.NewAsynqPublisher(i.asynqOpt(), int(i.Config.MQ.MaxRetries))
		return p, func() { _ = p.Close() }, nil
	default:
		p, err := mq.NewPublisher(i.Config.MQ.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect rabbitmq: %w", err)
		}
		return p, p.Close, nil
	}
}

// Runner builds the consumer side for the configured queue driver. The
// rabbitmq runner dead-letters a message after MQ.MaxRetries redeliveries;
// asynq applies its own retry limit set at publish time.
func (i *Infra) Runner() mq.Runner {
	switch i.Config.MQ.Driver {
	case "asynq":
		return mq.NewAsynqRunner(i.asynqOpt(), i.Config.Worker.Concurrency, i.Logger)
	default:
		budget := util.NewRetryCounter(i.Redis, i.Config.Worker.DedupTTL)
		return mq.NewRabbitRunner(i.Config.MQ.URL, budget, i.Config.MQ.MaxRetries, i.Logger).
			WithPrefetch(i.Config.MQ.Prefetch)
	}
}
