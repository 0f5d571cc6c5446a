// Package repository implements the email job store for PostgreSQL, MySQL and in-process memory.
// Every implementation honors the same claim contract: a queued job is handed to at most one caller.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/mailqueue/internal/database"
	apperrors "github.com/allisson/mailqueue/internal/errors"
	mailDomain "github.com/allisson/mailqueue/internal/mail/domain"
)

const postgresEmailJobColumns = `id, recipient, subject, body, status, retry_count, last_error, created_at, updated_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// PostgreSQLEmailJobRepository implements EmailJob persistence for PostgreSQL databases.
type PostgreSQLEmailJobRepository struct {
	db *sql.DB
}

// CreateBatch inserts all jobs with a single multi-row statement.
func (p *PostgreSQLEmailJobRepository) CreateBatch(ctx context.Context, jobs []*mailDomain.EmailJob) error {
	if len(jobs) == 0 {
		return nil
	}

	querier := database.GetTx(ctx, p.db)

	var sb strings.Builder
	sb.WriteString(`INSERT INTO email_jobs (` + postgresEmailJobColumns + `) VALUES `)

	args := make([]any, 0, len(jobs)*9)
	for i, job := range jobs {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 9
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9)
		args = append(args,
			job.ID,
			job.Recipient,
			job.Subject,
			job.Body,
			string(job.Status),
			job.RetryCount,
			job.LastError,
			job.CreatedAt,
			job.UpdatedAt,
		)
	}

	if _, err := querier.ExecContext(ctx, sb.String(), args...); err != nil {
		return apperrors.Wrap(err, "failed to create email jobs")
	}
	return nil
}

// ClaimQueued flips up to limit queued jobs to processing in one statement.
// FOR UPDATE SKIP LOCKED keeps concurrent claimers off the same rows and the outer
// status predicate makes the update a compare-and-swap.
func (p *PostgreSQLEmailJobRepository) ClaimQueued(
	ctx context.Context,
	limit int,
) ([]*mailDomain.EmailJob, error) {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE email_jobs
			  SET status = 'processing', updated_at = $2
			  WHERE id IN (
				  SELECT id FROM email_jobs
				  WHERE status = 'queued'
				  ORDER BY created_at, id
				  LIMIT $1
				  FOR UPDATE SKIP LOCKED
			  ) AND status = 'queued'
			  RETURNING ` + postgresEmailJobColumns

	rows, err := querier.QueryContext(ctx, query, limit, time.Now().UTC())
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to claim queued email jobs")
	}
	defer func() {
		_ = rows.Close()
	}()

	jobs := make([]*mailDomain.EmailJob, 0, limit)
	for rows.Next() {
		job, err := scanPostgresEmailJob(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan claimed email job")
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate claimed email jobs")
	}

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})

	return jobs, nil
}

// UpdateStatus sets the status of a job unconditionally.
func (p *PostgreSQLEmailJobRepository) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status mailDomain.EmailJobStatus,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE email_jobs SET status = $1, updated_at = $2 WHERE id = $3`

	result, err := querier.ExecContext(ctx, query, string(status), time.Now().UTC(), id)
	if err != nil {
		return apperrors.Wrap(err, "failed to update email job status")
	}
	return requireAffected(result)
}

// ApplyRetry puts a job back in the queue with the given retry count.
func (p *PostgreSQLEmailJobRepository) ApplyRetry(
	ctx context.Context,
	id uuid.UUID,
	retryCount int,
	lastError string,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE email_jobs
			  SET status = 'queued', retry_count = $1, last_error = $2, updated_at = $3
			  WHERE id = $4`

	result, err := querier.ExecContext(ctx, query, retryCount, lastError, time.Now().UTC(), id)
	if err != nil {
		return apperrors.Wrap(err, "failed to requeue email job for retry")
	}
	return requireAffected(result)
}

// MarkDead moves a job to the dead state, keeping its retry count.
func (p *PostgreSQLEmailJobRepository) MarkDead(ctx context.Context, id uuid.UUID, lastError string) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE email_jobs SET status = 'dead', last_error = $1, updated_at = $2 WHERE id = $3`

	result, err := querier.ExecContext(ctx, query, lastError, time.Now().UTC(), id)
	if err != nil {
		return apperrors.Wrap(err, "failed to dead-letter email job")
	}
	return requireAffected(result)
}

// Get retrieves a job by ID.
func (p *PostgreSQLEmailJobRepository) Get(ctx context.Context, id uuid.UUID) (*mailDomain.EmailJob, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + postgresEmailJobColumns + ` FROM email_jobs WHERE id = $1`

	job, err := scanPostgresEmailJob(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, mailDomain.ErrEmailJobNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get email job")
	}
	return job, nil
}

// List retrieves a page of jobs, optionally filtered by status.
func (p *PostgreSQLEmailJobRepository) List(
	ctx context.Context,
	filter mailDomain.ListFilter,
) ([]*mailDomain.EmailJob, error) {
	querier := database.GetTx(ctx, p.db)
	filter = filter.Normalize()

	var (
		query string
		args  []any
	)
	// OrderBy and Order are whitelisted by Normalize.
	orderClause := fmt.Sprintf(" ORDER BY %s %s, id %s", filter.OrderBy, filter.Order, filter.Order)
	if filter.Status != nil {
		query = `SELECT ` + postgresEmailJobColumns + ` FROM email_jobs WHERE status = $1` +
			orderClause + ` LIMIT $2 OFFSET $3`
		args = []any{string(*filter.Status), filter.Limit, filter.Offset}
	} else {
		query = `SELECT ` + postgresEmailJobColumns + ` FROM email_jobs` +
			orderClause + ` LIMIT $1 OFFSET $2`
		args = []any{filter.Limit, filter.Offset}
	}

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list email jobs")
	}
	defer func() {
		_ = rows.Close()
	}()

	jobs := make([]*mailDomain.EmailJob, 0)
	for rows.Next() {
		job, err := scanPostgresEmailJob(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan email job")
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate email jobs")
	}

	return jobs, nil
}

// Count returns the number of jobs, optionally restricted to one status.
func (p *PostgreSQLEmailJobRepository) Count(
	ctx context.Context,
	status *mailDomain.EmailJobStatus,
) (int, error) {
	querier := database.GetTx(ctx, p.db)

	var (
		count int
		err   error
	)
	if status != nil {
		err = querier.QueryRowContext(ctx, `SELECT COUNT(*) FROM email_jobs WHERE status = $1`, string(*status)).
			Scan(&count)
	} else {
		err = querier.QueryRowContext(ctx, `SELECT COUNT(*) FROM email_jobs`).Scan(&count)
	}
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to count email jobs")
	}
	return count, nil
}

// CountByStatus returns the number of jobs in every status, including empty ones.
func (p *PostgreSQLEmailJobRepository) CountByStatus(
	ctx context.Context,
) (map[mailDomain.EmailJobStatus]int, error) {
	querier := database.GetTx(ctx, p.db)

	rows, err := querier.QueryContext(ctx, `SELECT status, COUNT(*) FROM email_jobs GROUP BY status`)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to count email jobs by status")
	}
	defer func() {
		_ = rows.Close()
	}()

	return collectStatusCounts(rows)
}

// Requeue moves a failed or dead job back to queued.
func (p *PostgreSQLEmailJobRepository) Requeue(
	ctx context.Context,
	id uuid.UUID,
	resetRetryCount bool,
) (*mailDomain.EmailJob, error) {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE email_jobs
			  SET status = 'queued',
				  retry_count = CASE WHEN $2 THEN 0 ELSE retry_count END,
				  updated_at = $3
			  WHERE id = $1 AND status IN ('failed', 'dead')
			  RETURNING ` + postgresEmailJobColumns

	job, err := scanPostgresEmailJob(querier.QueryRowContext(ctx, query, id, resetRetryCount, time.Now().UTC()))
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Wrap(err, "failed to requeue email job")
	}

	var exists bool
	err = querier.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM email_jobs WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to check email job existence")
	}
	if !exists {
		return nil, mailDomain.ErrEmailJobNotFound
	}
	return nil, mailDomain.ErrEmailJobNotEligible
}

// ReclaimStale returns processing jobs untouched since olderThan to the queue.
func (p *PostgreSQLEmailJobRepository) ReclaimStale(ctx context.Context, olderThan time.Time) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE email_jobs SET status = 'queued', updated_at = $1
			  WHERE status = 'processing' AND updated_at < $2`

	result, err := querier.ExecContext(ctx, query, time.Now().UTC(), olderThan.UTC())
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to reclaim stale email jobs")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to get reclaimed rows")
	}
	return affected, nil
}

func scanPostgresEmailJob(row rowScanner) (*mailDomain.EmailJob, error) {
	var job mailDomain.EmailJob
	var status string
	err := row.Scan(
		&job.ID,
		&job.Recipient,
		&job.Subject,
		&job.Body,
		&status,
		&job.RetryCount,
		&job.LastError,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	job.Status = mailDomain.EmailJobStatus(status)
	job.CreatedAt = job.CreatedAt.UTC()
	job.UpdatedAt = job.UpdatedAt.UTC()
	return &job, nil
}

func collectStatusCounts(rows *sql.Rows) (map[mailDomain.EmailJobStatus]int, error) {
	counts := make(map[mailDomain.EmailJobStatus]int, len(mailDomain.AllStatuses()))
	for _, status := range mailDomain.AllStatuses() {
		counts[status] = 0
	}

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan status count")
		}
		counts[mailDomain.EmailJobStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate status counts")
	}
	return counts, nil
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get affected rows")
	}
	if affected == 0 {
		return mailDomain.ErrEmailJobNotFound
	}
	return nil
}

// NewPostgreSQLEmailJobRepository creates a new PostgreSQL EmailJob repository instance.
func NewPostgreSQLEmailJobRepository(db *sql.DB) *PostgreSQLEmailJobRepository {
	return &PostgreSQLEmailJobRepository{db: db}
}
