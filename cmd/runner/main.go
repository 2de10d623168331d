package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"skillswap/internal/bootstrap"
	"skillswap/internal/repository"
	"skillswap/internal/scheduler"
	"skillswap/internal/service/project"
	"skillswap/pkg/config"
	"skillswap/pkg/outbox"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	infra, err := bootstrap.Open(ctx, config.GetEnv("CONFIG_DIR", "config"), "runner")
	if err != nil {
		panic(err)
	}
	defer infra.Close()
	cfg, log := infra.Config, infra.Logger

	enqueuer, closeQueue, err := infra.Enqueuer()
	if err != nil {
		log.Fatal("Failed to init queue publisher", zap.Error(err))
	}
	defer closeQueue()

	store := repository.NewStore(infra.DB)
	projects := project.NewService(store.Projects(), store.Project(), log)

	// missed_deadline jobs are written to the outbox by the scan.
	dispatcher := outbox.NewDispatcher(store.Outbox(), enqueuer, log).
		WithInterval(cfg.Outbox.Interval).
		WithBatchSize(cfg.Outbox.BatchSize).
		WithMaxRetries(cfg.Outbox.MaxRetries)
	go dispatcher.Start(ctx)

	sched, err := scheduler.New(projects, cfg.Scheduler.DeadlineScan, cfg.Scheduler.Timeout, log)
	if err != nil {
		log.Fatal("Failed to init scheduler", zap.Error(err))
	}

	// Catch up on deadlines that passed while the runner was down.
	sched.RunOnce(ctx)
	sched.Start()

	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sched.Stop(stopCtx)
	log.Info("Runner stopped")
}
