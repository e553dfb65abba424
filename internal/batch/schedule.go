package batch

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/helixir/pubmed-search/internal/observability"
)

// DefaultSchedule runs once a day at 09:00.
const DefaultSchedule = "0 9 * * *"

// Scheduler runs the topics into the daily folders on a cron schedule.
type Scheduler struct {
	cron   *cron.Cron
	runner *Runner
	root   string
	topics []Topic
	logger zerolog.Logger

	// ctx is the context passed to Run; jobs stop when it ends.
	ctx context.Context
}

// NewScheduler registers one job for the cron expression. Overlapping runs are skipped.
func NewScheduler(expr string, runner *Runner, root string, topics []Topic, logger zerolog.Logger) (*Scheduler, error) {
	cronLogger := observability.NewCronLogger(logger)
	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		runner: runner,
		root:   root,
		topics: topics,
		logger: logger.With().Str("component", "scheduler").Logger(),
		ctx:    context.Background(),
	}
	if _, err := s.cron.AddFunc(expr, func() { s.runOnce(s.ctx) }); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return s, nil
}

// Run starts the scheduler and blocks until ctx is done, then waits for a
// running job to finish. Jobs run with ctx, so a job in progress stops at
// its next topic or request boundary.
func (s *Scheduler) Run(ctx context.Context) {
	s.ctx = ctx
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.logger.Info().Time("next", e.Next).Int("topics", len(s.topics)).Msg("scheduler started")
	}
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("scheduler stopped")
}

func (s *Scheduler) runOnce(ctx context.Context) {
	s.logger.Info().Msg("running scheduled topic searches")
	results := s.runner.Run(ctx, s.root, s.topics, true)
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	s.logger.Info().Int("topics", len(results)).Int("failed", failed).Msg("scheduled run completed")
}
