package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const maxErrorLength = 1000

const jobColumns = `id, job_name, status, last_run, next_run, locked_by, locked_until, last_error, updated_at`

// Store persists notification job records. All mutations of a claimed row are
// guarded by the claim token written at claim time.
type Store struct {
	db    *sqlx.DB
	lease time.Duration
}

type Option func(*Store)

// WithLease makes running rows reclaimable once they have been held for longer than d.
// Zero disables reclaiming.
func WithLease(d time.Duration) Option {
	return func(s *Store) {
		s.lease = d
	}
}

func New(db *sqlx.DB, options ...Option) *Store {
	s := &Store{db: db}
	for _, option := range options {
		option(s)
	}
	return s
}

// EnsureJobExists creates the job row in pending state unless it already exists.
// It reports whether a row was created.
func (s *Store) EnsureJobExists(ctx context.Context, jobName string, nextRun time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO notification_jobs (id, job_name, status, next_run, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (job_name) DO NOTHING`),
		uuid.NewString(),
		jobName,
		StatusPending,
		dbTime(nextRun),
		dbTime(time.Now()),
	)
	if err != nil {
		return false, fmt.Errorf("failed to ensure job %s: %w", jobName, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to ensure job %s: %w", jobName, err)
	}
	return affected > 0, nil
}

// ClaimIfDue atomically moves the job to running if it is pending and due. An initial
// run skips the next_run check. It returns nil when nothing was claimed.
func (s *Store) ClaimIfDue(ctx context.Context, jobName string, now time.Time, initialRun bool) (*JobRecord, error) {
	now = dbTime(now)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim transaction: %w", err)
	}
	defer tx.Rollback()

	query, args := s.claimQuery(jobName, now, initialRun)

	var rec JobRecord
	if err := tx.GetContext(ctx, &rec, tx.Rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to select job %s: %w", jobName, err)
	}

	runID := uuid.NewString()
	var lockedUntil any
	if s.lease > 0 {
		lockedUntil = now.Add(s.lease)
	}

	res, err := tx.ExecContext(ctx, tx.Rebind(`
		UPDATE notification_jobs
		SET status = ?, locked_by = ?, locked_until = ?, updated_at = ?
		WHERE id = ? AND status = ? AND COALESCE(locked_by, '') = ?`),
		StatusRunning,
		runID,
		lockedUntil,
		now,
		rec.ID,
		rec.Status,
		rec.RunID(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to claim job %s: %w", jobName, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to claim job %s: %w", jobName, err)
	}
	if affected == 0 {
		return nil, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim of job %s: %w", jobName, err)
	}

	rec.Status = StatusRunning
	rec.LockedBy = &runID
	rec.LockedUntil = nil
	if t, ok := lockedUntil.(time.Time); ok {
		rec.LockedUntil = &t
	}
	rec.UpdatedAt = now
	return &rec, nil
}

func (s *Store) claimQuery(jobName string, now time.Time, initialRun bool) (string, []any) {
	args := []any{jobName, StatusPending}

	due := "status = ?"
	if !initialRun {
		due += " AND next_run <= ?"
		args = append(args, now)
	}

	where := "(" + due + ")"
	if s.lease > 0 {
		where += " OR (status = ? AND locked_until IS NOT NULL AND locked_until <= ?)"
		args = append(args, StatusRunning, now)
	}

	query := "SELECT " + jobColumns + " FROM notification_jobs WHERE job_name = ? AND (" + where + ")"
	if s.db.DriverName() == DriverPostgres {
		query += " FOR UPDATE"
	}
	return query, args
}

// MarkSucceeded returns a claimed job to pending with its next fire time.
func (s *Store) MarkSucceeded(ctx context.Context, rec *JobRecord, now, nextRun time.Time) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE notification_jobs
		SET status = ?, last_run = ?, next_run = ?, locked_by = NULL, locked_until = NULL,
			last_error = NULL, updated_at = ?
		WHERE id = ? AND status = ? AND locked_by = ?`),
		StatusPending,
		dbTime(now),
		dbTime(nextRun),
		dbTime(now),
		rec.ID,
		StatusRunning,
		rec.RunID(),
	)
	if err != nil {
		return fmt.Errorf("failed to mark job %s succeeded: %w", rec.JobName, err)
	}
	return checkClaimHeld(res, rec)
}

// MarkFailed parks a claimed job in failed state. next_run is left untouched and
// nothing moves the job out of failed except Reset.
func (s *Store) MarkFailed(ctx context.Context, rec *JobRecord, now time.Time, cause error) error {
	var lastError any
	if cause != nil {
		lastError = truncateError(cause.Error())
	}

	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE notification_jobs
		SET status = ?, locked_by = NULL, locked_until = NULL, last_error = ?, updated_at = ?
		WHERE id = ? AND status = ? AND locked_by = ?`),
		StatusFailed,
		lastError,
		dbTime(now),
		rec.ID,
		StatusRunning,
		rec.RunID(),
	)
	if err != nil {
		return fmt.Errorf("failed to mark job %s failed: %w", rec.JobName, err)
	}
	return checkClaimHeld(res, rec)
}

// Reset puts a failed or stuck running job back to pending.
func (s *Store) Reset(ctx context.Context, jobName string, nextRun, now time.Time) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE notification_jobs
		SET status = ?, next_run = ?, locked_by = NULL, locked_until = NULL, updated_at = ?
		WHERE job_name = ? AND status <> ?`),
		StatusPending,
		dbTime(nextRun),
		dbTime(now),
		jobName,
		StatusPending,
	)
	if err != nil {
		return fmt.Errorf("failed to reset job %s: %w", jobName, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to reset job %s: %w", jobName, err)
	}
	if affected > 0 {
		return nil
	}

	if _, err := s.Get(ctx, jobName); err != nil {
		return err
	}
	return ErrNotResettable
}

func (s *Store) Get(ctx context.Context, jobName string) (*JobRecord, error) {
	var rec JobRecord
	err := s.db.GetContext(ctx, &rec,
		s.db.Rebind("SELECT "+jobColumns+" FROM notification_jobs WHERE job_name = ?"),
		jobName,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
		}
		return nil, fmt.Errorf("failed to get job %s: %w", jobName, err)
	}
	return &rec, nil
}

func (s *Store) List(ctx context.Context) ([]JobRecord, error) {
	records := make([]JobRecord, 0)
	if err := s.db.SelectContext(ctx, &records,
		"SELECT "+jobColumns+" FROM notification_jobs ORDER BY job_name",
	); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return records, nil
}

func checkClaimHeld(res sql.Result, rec *JobRecord) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", rec.JobName, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s (run %s)", ErrClaimLost, rec.JobName, rec.RunID())
	}
	return nil
}

// truncateError caps msg at maxErrorLength bytes without splitting a rune, and
// replaces invalid UTF-8 since postgres rejects it in text columns.
func truncateError(msg string) string {
	msg = strings.ToValidUTF8(msg, "\uFFFD")
	if len(msg) <= maxErrorLength {
		return msg
	}
	cut := maxErrorLength
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}

// dbTime normalises timestamps so SQLite's textual comparison matches time order.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
