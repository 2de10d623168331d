package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"skillswap/internal/bootstrap"
	"skillswap/internal/handler"
	"skillswap/internal/httpserver"
	"skillswap/internal/realtime"
	"skillswap/internal/repository"
	"skillswap/internal/service/chat"
	"skillswap/internal/service/negotiation"
	"skillswap/internal/service/penalty"
	"skillswap/internal/service/project"
	"skillswap/pkg/config"
	"skillswap/pkg/db"
	"skillswap/pkg/outbox"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	infra, err := bootstrap.Open(ctx, config.GetEnv("CONFIG_DIR", "config"), "api")
	if err != nil {
		panic(err)
	}
	defer infra.Close()
	cfg, log := infra.Config, infra.Logger

	if err := db.ApplyMigrations(ctx, infra.DB, cfg.Migrations, log); err != nil {
		log.Fatal("Failed to apply migrations", zap.Error(err))
	}

	enqueuer, closeQueue, err := infra.Enqueuer()
	if err != nil {
		log.Fatal("Failed to init queue publisher", zap.Error(err))
	}
	defer closeQueue()

	store := repository.NewStore(infra.DB)
	rooms := realtime.NewRooms(infra.Redis, log)
	hub := realtime.NewHub(log)

	engine := negotiation.NewEngine(store.Negotiation(), store.Views(), log)
	projects := project.NewService(store.Projects(), store.Project(), log)
	chats := chat.NewService(store.Offers(), rooms, store.Chat(), enqueuer, log)
	penalties := penalty.NewService(store.Penalty(), log)

	// Jobs written inside negotiation transactions are published from here.
	dispatcher := outbox.NewDispatcher(store.Outbox(), enqueuer, log).
		WithInterval(cfg.Outbox.Interval).
		WithBatchSize(cfg.Outbox.BatchSize).
		WithMaxRetries(cfg.Outbox.MaxRetries)
	go dispatcher.Start(ctx)

	// Room events may come from any process; forward them to local sockets.
	go func() {
		if err := rooms.Listen(ctx, hub.Deliver); err != nil && ctx.Err() == nil {
			log.Error("Room listener stopped", zap.Error(err))
		}
	}()

	limiter := httpserver.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	go limiter.Run(ctx.Done(), time.Minute)

	// asynq has no long-lived connection to report on
	broker, _ := enqueuer.(httpserver.Broker)

	router := httpserver.NewRouter(httpserver.Deps{
		Offers:         handler.NewOfferHandler(engine, log),
		Projects:       handler.NewProjectHandler(projects, log),
		Chat:           handler.NewChatHandler(chats, log),
		Admin:          handler.NewAdminHandler(engine, outbox.NewReplayService(store.Outbox(), enqueuer), penalties, log),
		WS:             handler.NewWSHandler(ctx, hub, rooms, cfg.Realtime.AllowedOrigins, log),
		Users:          store.Users(),
		Limiter:        limiter,
		DB:             infra.DB,
		Queue:          broker,
		JWTSecret:      cfg.JWT.Secret,
		AllowedOrigins: cfg.Realtime.AllowedOrigins,
		Logger:         log,
	})

	if err := httpserver.NewServer(cfg.Server.Port, router, log).Run(ctx); err != nil {
		log.Fatal("HTTP server failed", zap.Error(err))
	}
	log.Info("API stopped")
}
