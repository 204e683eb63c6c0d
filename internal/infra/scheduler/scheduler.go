package scheduler

import (
	"context"
	"log"
	"time"

	"trainee_notification_service/internal/app"

	"github.com/robfig/cron/v3"
)

// Sweeper is the recurring job the scheduler drives.
type Sweeper interface {
	SweepDue(ctx context.Context) (bool, []app.EnqueueFailure, error)
}

// OutboxScheduler drives the recurring outbox sweep. Every running instance
// triggers on the same spec; the sweep's cluster-wide lock decides which
// one actually runs it. Within one process, a sweep that outlasts the cron
// interval would re-acquire its own lock, so overlapping firings are
// skipped instead of run concurrently.
type OutboxScheduler struct {
	cronEngine    *cron.Cron
	outboxService Sweeper
	logger        *log.Logger
	cronSpecSweep string
}

func NewOutboxScheduler(
	outboxService Sweeper,
	logger *log.Logger,
	cronSpecSweep string, // e.g., "* * * * *" (every minute)
) *OutboxScheduler {
	return &OutboxScheduler{
		cronEngine: cron.New(
			cron.WithLocation(time.Local),
			cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(logger))),
		),
		outboxService: outboxService,
		logger:        logger,
		cronSpecSweep: cronSpecSweep,
	}
}

func (s *OutboxScheduler) Start() {
	s.logger.Println("INFO: Starting outbox scheduler...")

	_, err := s.cronEngine.AddFunc(s.cronSpecSweep, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		ran, failures, err := s.outboxService.SweepDue(ctx)
		if err != nil {
			s.logger.Printf("ERROR: Outbox sweep failed: %v", err)
			return
		}
		if ran && len(failures) > 0 {
			s.logger.Printf("WARN: Outbox sweep completed with %d enqueue failure(s); they stay SCHEDULED for the next sweep.", len(failures))
		}
	})
	if err != nil {
		s.logger.Fatalf("FATAL: Could not add outbox sweep cron job: %v", err)
	}

	s.cronEngine.Start()
	s.logger.Println("INFO: Outbox scheduler started.")
}

func (s *OutboxScheduler) Stop() {
	s.logger.Println("INFO: Stopping outbox scheduler...")
	ctx := s.cronEngine.Stop() // waits for running jobs
	<-ctx.Done()
	s.logger.Println("INFO: Outbox scheduler gracefully stopped.")
}
