// Package scheduler runs the periodic deadline scan.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"skillswap/pkg/trace"
)

// DefaultSpec runs the scan at the top of every hour.
const DefaultSpec = "0 * * * *"

type Scanner interface {
	ScanMissedDeadlines(ctx context.Context) (int, error)
}

type Scheduler struct {
	cron    *cron.Cron
	scanner Scanner
	timeout time.Duration
	logger  *zap.Logger
}

// New registers the scan under spec, a standard five-field cron expression.
// Runs never overlap: a tick that fires while a scan is in flight is skipped.
func New(scanner Scanner, spec string, timeout time.Duration, logger *zap.Logger) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSpec
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	cl := cronLogger{logger.Sugar()}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		scanner: scanner,
		timeout: timeout,
		logger:  logger,
	}
	if _, err := s.cron.AddFunc(spec, func() { s.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Deadline scheduler started")
}

// Stop prevents new runs and waits for a running scan to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
	s.logger.Info("Deadline scheduler stopped")
}

// RunOnce performs a single scan and returns the number of projects closed.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	ctx, traceID := trace.Ensure(ctx)
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	log := s.logger.With(zap.String("trace_id", traceID))

	start := time.Now()
	closed, err := s.scanner.ScanMissedDeadlines(ctx)
	if err != nil {
		log.Error("Deadline scan failed", zap.Error(err))
		return 0
	}
	log.Info("Deadline scan completed",
		zap.Int("closed", closed),
		zap.Duration("duration", time.Since(start)),
	)
	return closed
}

type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
