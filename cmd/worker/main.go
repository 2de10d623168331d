package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"skillswap/internal/bootstrap"
	"skillswap/internal/mqhandler"
	"skillswap/internal/notify"
	"skillswap/internal/realtime"
	"skillswap/internal/repository"
	"skillswap/internal/service/chat"
	"skillswap/internal/service/penalty"
	"skillswap/internal/service/project"
	"skillswap/pkg/circuitbreaker"
	"skillswap/pkg/config"
	"skillswap/pkg/util"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	infra, err := bootstrap.Open(ctx, config.GetEnv("CONFIG_DIR", "config"), "worker")
	if err != nil {
		panic(err)
	}
	defer infra.Close()
	cfg, log := infra.Config, infra.Logger

	var sender notify.Sender
	if notify.Configured(cfg.SMTP) {
		smtpSender, err := notify.NewSMTPSender(cfg.SMTP, circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig()), log)
		if err != nil {
			log.Fatal("Failed to init SMTP sender", zap.Error(err))
		}
		sender = smtpSender
	} else {
		log.Warn("SMTP not configured, notifications are only logged")
		sender = notify.NewLogSender(log)
	}

	store := repository.NewStore(infra.DB)
	rooms := realtime.NewRooms(infra.Redis, log)

	handlers := mqhandler.New(mqhandler.Deps{
		Users:    store.Users(),
		Offers:   store.Offers(),
		Rooms:    rooms,
		Sender:   sender,
		Dedup:    util.NewDeduper(infra.Redis, cfg.Worker.DedupTTL, log),
		Projects: project.NewService(store.Projects(), store.Project(), log),
		// Store never publishes, so the chat service needs no queue here.
		Chat:      chat.NewService(store.Offers(), rooms, store.Chat(), nil, log),
		Penalties: penalty.NewService(store.Penalty(), log),
		Logger:    log,
	})

	runner := infra.Runner()
	if err := handlers.Register(runner); err != nil {
		log.Fatal("Failed to register handlers", zap.Error(err))
	}

	log.Info("Worker started", zap.String("driver", cfg.MQ.Driver))
	runErr := runner.Start(ctx)
	runner.Stop()
	if runErr != nil {
		// exit non-zero so the supervisor restarts the worker
		infra.Close()
		log.Fatal("Worker stopped with error", zap.Error(runErr))
	}
	log.Info("Worker stopped")
}
