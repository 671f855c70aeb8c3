// Package worker bootstraps the River job queue and the periodic onboarding
// expiry sweep.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
)

// Sweeper flips overdue onboarding sessions to expired. Satisfied by
// onboarding.Service.
type Sweeper interface {
	MarkExpiredSessions(ctx context.Context) (int64, error)
}

// ExpireSessionsArgs is the periodic job that runs the expiry sweep.
type ExpireSessionsArgs struct{}

// Kind returns the unique job type identifier for expiry sweep jobs.
func (ExpireSessionsArgs) Kind() string { return "expire_onboarding_sessions" }

type expireSessionsWorker struct {
	river.WorkerDefaults[ExpireSessionsArgs]
	sweeper Sweeper
	log     *slog.Logger
}

func (w *expireSessionsWorker) Work(ctx context.Context, _ *river.Job[ExpireSessionsArgs]) error {
	n, err := w.sweeper.MarkExpiredSessions(ctx)
	if err != nil {
		return fmt.Errorf("expiry sweep: %w", err)
	}
	w.log.Debug("expiry sweep job executed", "expired", n)
	return nil
}

// Queue is the interface exposed by both the real River client and tickQueue.
type Queue interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Client wraps river.Client and exposes a Start/Stop lifecycle.
type Client struct {
	client *river.Client[pgx.Tx]
	log    *slog.Logger
}

// Start begins processing queued jobs.
func (c *Client) Start(ctx context.Context) error { return c.client.Start(ctx) }

// Stop gracefully shuts down the worker client.
func (c *Client) Stop(ctx context.Context) error { return c.client.Stop(ctx) }

// tickQueue is used when River is unavailable (e.g. DB_DRIVER=sqlite): a
// plain ticker drives the expiry sweep so session expiry still works without
// postgres.
type tickQueue struct {
	sweeper Sweeper
	period  time.Duration
	log     *slog.Logger
	cancel  context.CancelFunc
	done    chan struct{}
}

func (t *tickQueue) Start(ctx context.Context) error {
	t.log.Info("job queue disabled (sqlite driver — River requires postgres); using in-process sweep ticker")
	ctx, t.cancel = context.WithCancel(context.WithoutCancel(ctx))
	t.done = make(chan struct{})
	go func() {
		defer close(t.done)
		ticker := time.NewTicker(t.period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := t.sweeper.MarkExpiredSessions(ctx); err != nil {
					t.log.Error("expiry sweep", "err", err)
				}
			}
		}
	}()
	return nil
}

func (t *tickQueue) Stop(_ context.Context) error {
	if t.cancel != nil {
		t.cancel()
		<-t.done
	}
	return nil
}

// New creates a queue implementation appropriate for the given driver.
//   - "postgres": a River client backed by pool, with the expiry sweep
//     registered as a periodic job that also runs once at startup.
//   - anything else: an in-process ticker running the sweep directly.
//
// pool may be nil when driver != "postgres".
func New(ctx context.Context, pool *pgxpool.Pool, driver string, sweeper Sweeper, sweepPeriod time.Duration, concurrency int, log *slog.Logger) (Queue, error) {
	if driver != "postgres" {
		return &tickQueue{sweeper: sweeper, period: sweepPeriod, log: log}, nil
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, &expireSessionsWorker{sweeper: sweeper, log: log})

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: concurrency},
		},
		Workers: workers,
		Logger:  log,
		PeriodicJobs: []*river.PeriodicJob{
			river.NewPeriodicJob(
				river.PeriodicInterval(sweepPeriod),
				func() (river.JobArgs, *river.InsertOpts) {
					return ExpireSessionsArgs{}, nil
				},
				&river.PeriodicJobOpts{RunOnStart: true},
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create river client: %w", err)
	}
	return &Client{client: client, log: log}, nil
}

// MigrateRiver runs River's built-in schema migrations against the given pool.
// Only call this when DB_DRIVER=postgres.
func MigrateRiver(ctx context.Context, db *pgxpool.Pool) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(db), nil)
	if err != nil {
		return fmt.Errorf("create river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return fmt.Errorf("run river migrations: %w", err)
	}
	return nil
}
