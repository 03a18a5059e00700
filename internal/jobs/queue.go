package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// Queue is a Postgres-backed at-least-once job queue for monitoring imports.
// The payload is only the import identifier; the worker re-reads state from
// the database, so it may run in a different process than the enqueuer.
type Queue struct {
	pool *pgxpool.Pool
}

func NewQueue(pool *pgxpool.Pool) *Queue {
	return &Queue{pool: pool}
}

// Enqueue records a job for the import. Visible to any worker polling the
// table once the caller's surrounding work is durable.
func (q *Queue) Enqueue(ctx context.Context, importID uuid.UUID) error {
	_, err := q.pool.Exec(
		ctx,
		`INSERT INTO import_jobs (id, import_id, status, attempts, created_at)
		 VALUES ($1, $2, 'queued', 0, now())`,
		uuid.New(),
		importID,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue import job: %w", err)
	}
	return nil
}

// Handler processes one claimed job. A nil return marks the job done; an
// error requeues it until the attempt budget runs out.
type Handler func(ctx context.Context, importID uuid.UUID) error

// WorkerOptions tune the polling worker.
type WorkerOptions struct {
	PollInterval time.Duration
	MaxAttempts  int
}

func (o *WorkerOptions) setDefaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = 2 * time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
}

// Worker polls the job table and runs the handler for each claimed job.
// Claims use FOR UPDATE SKIP LOCKED so multiple workers never double-claim a
// queued job, though a crash mid-run can still replay one (at-least-once).
type Worker struct {
	pool    *pgxpool.Pool
	handler Handler
	opts    WorkerOptions
	log     *logrus.Logger
}

func NewWorker(pool *pgxpool.Pool, handler Handler, opts WorkerOptions, log *logrus.Logger) *Worker {
	opts.setDefaults()
	return &Worker{pool: pool, handler: handler, opts: opts, log: log}
}

// Run polls until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		claimed, err := w.runOne(ctx)
		if err != nil {
			w.log.WithError(err).Warn("import job claim failed")
		}
		if claimed {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.opts.PollInterval):
		}
	}
}

type claimedJob struct {
	id       uuid.UUID
	importID uuid.UUID
	attempts int
}

// runOne claims and executes at most one job. Returns whether a job was claimed.
func (w *Worker) runOne(ctx context.Context) (bool, error) {
	job, err := w.claim(ctx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	log := w.log.WithFields(logrus.Fields{
		"job_id":    job.id,
		"import_id": job.importID,
		"attempt":   job.attempts,
	})

	if handlerErr := w.handler(ctx, job.importID); handlerErr != nil {
		status := "queued"
		if job.attempts >= w.opts.MaxAttempts {
			status = "failed"
		}
		log.WithError(handlerErr).WithField("status", status).Warn("import job failed")
		if err := w.setStatus(ctx, job.id, status, handlerErr.Error()); err != nil {
			return true, err
		}
		return true, nil
	}

	log.Info("import job done")
	return true, w.setStatus(ctx, job.id, "done", "")
}

func (w *Worker) claim(ctx context.Context) (claimedJob, error) {
	var job claimedJob
	err := pgx.BeginFunc(ctx, w.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(
			ctx,
			`SELECT id, import_id, attempts
			 FROM import_jobs
			 WHERE status = 'queued'
			 ORDER BY created_at
			 FOR UPDATE SKIP LOCKED
			 LIMIT 1`,
		)
		if err := row.Scan(&job.id, &job.importID, &job.attempts); err != nil {
			return err
		}
		job.attempts++
		_, err := tx.Exec(
			ctx,
			`UPDATE import_jobs
			 SET status = 'running', attempts = $2, started_at = now()
			 WHERE id = $1`,
			job.id,
			job.attempts,
		)
		return err
	})
	return job, err
}

func (w *Worker) setStatus(ctx context.Context, jobID uuid.UUID, status, lastError string) error {
	_, err := w.pool.Exec(
		ctx,
		`UPDATE import_jobs
		 SET status = $2, last_error = nullif($3, ''), finished_at = now()
		 WHERE id = $1`,
		jobID,
		status,
		lastError,
	)
	if err != nil {
		return fmt.Errorf("failed to update import job %s: %w", jobID, err)
	}
	return nil
}
