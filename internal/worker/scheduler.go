package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"hamyon/internal/log"
	"hamyon/internal/services"
)

// Reconciler is the job run on the reconciliation schedule.
type Reconciler interface {
	Run(ctx context.Context) (services.ReconcileReport, error)
}

// Scheduler runs periodic jobs. A run still in progress makes the next
// tick a no-op.
type Scheduler struct {
	cron   *cron.Cron
	logger *log.Logger
}

func NewScheduler(logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentReconcile)
	cl := cronLogger{logger}
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		logger: logger,
	}
}

// AddReconcile schedules r with a standard cron spec such as "@hourly" or
// "*/15 * * * *". Each run gets its own timeout derived from ctx.
func (s *Scheduler) AddReconcile(ctx context.Context, spec string, timeout time.Duration, r Reconciler) error {
	_, err := s.cron.AddFunc(spec, func() {
		runCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		report, err := r.Run(runCtx)
		if err != nil {
			s.logger.ErrorContext(runCtx, "Reconciliation failed", log.FieldError, err)
			return
		}
		if len(report.Drifts) > 0 {
			s.logger.WarnContext(runCtx, "Reconciliation found drift",
				"checked", report.Checked,
				"drifted", len(report.Drifts))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule reconciliation %q: %w", spec, err)
	}
	s.logger.Info("Reconciliation scheduled", "schedule", spec)
	return nil
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop prevents new runs and waits for a running job or ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts log.Logger to cron.Logger.
type cronLogger struct{ l *log.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, append(keysAndValues, log.FieldError, err)...)
}
