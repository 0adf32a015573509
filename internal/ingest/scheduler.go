package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Scheduler re-imports the configured dataset files on a cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	chain    cron.Chain
	importer *Importer
	files    Files
	spec     string
	logger   *slog.Logger
	onRun    func([]Report, error)
	// initial tracks the import started by Start outside the cron loop.
	initial sync.WaitGroup
}

// NewScheduler creates a Scheduler running importer over files whenever spec
// ("@every 24h", "0 3 * * *", ...) fires. Overlapping runs are skipped.
func NewScheduler(importer *Importer, files Files, spec string) *Scheduler {
	logger := slog.Default()
	cl := cronLogger{logger}
	return &Scheduler{
		cron:     cron.New(cron.WithLogger(cl)),
		chain:    cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		importer: importer,
		files:    files,
		spec:     spec,
		logger:   logger,
	}
}

// OnRun registers fn to be called after every import with its reports.
// It must be set before Start.
func (s *Scheduler) OnRun(fn func([]Report, error)) {
	s.onRun = fn
}

// Start registers the import job, starts the scheduler and runs one import
// immediately in the background. The immediate run and the scheduled runs
// share one job, so they never overlap.
func (s *Scheduler) Start(ctx context.Context) error {
	job := s.chain.Then(cron.FuncJob(func() { s.RunOnce(ctx) }))
	if _, err := s.cron.AddJob(s.spec, job); err != nil {
		return fmt.Errorf("scheduling import %q: %w", s.spec, err)
	}
	s.cron.Start()
	s.logger.Info("import scheduler started", "spec", s.spec)

	s.initial.Add(1)
	go func() {
		defer s.initial.Done()
		job.Run()
	}()
	return nil
}

// Stop halts the scheduler and waits for any running import to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.initial.Wait()
	s.logger.Info("import scheduler stopped")
}

// RunOnce imports every configured file once.
func (s *Scheduler) RunOnce(ctx context.Context) ([]Report, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	reports, err := s.importer.ImportFiles(ctx, s.files)
	if err != nil {
		s.logger.Error("scheduled import failed", "error", err)
	}
	for _, r := range reports {
		s.logger.Info("dataset imported", "dataset", r.Dataset, "imported", r.Imported, "skipped", r.Skipped)
	}
	if s.onRun != nil {
		s.onRun(reports, err)
	}
	return reports, err
}

// cronLogger routes cron's logging through slog.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
