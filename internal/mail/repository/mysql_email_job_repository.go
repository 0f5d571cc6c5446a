package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/mailqueue/internal/database"
	apperrors "github.com/allisson/mailqueue/internal/errors"
	mailDomain "github.com/allisson/mailqueue/internal/mail/domain"
)

const mysqlEmailJobColumns = `id, recipient, subject, body, status, retry_count, last_error, created_at, updated_at`

// MySQLEmailJobRepository implements EmailJob persistence for MySQL databases.
// IDs are stored as BINARY(16).
type MySQLEmailJobRepository struct {
	db        *sql.DB
	txManager database.TxManager
}

// CreateBatch inserts all jobs with a single multi-row statement.
func (m *MySQLEmailJobRepository) CreateBatch(ctx context.Context, jobs []*mailDomain.EmailJob) error {
	if len(jobs) == 0 {
		return nil
	}

	querier := database.GetTx(ctx, m.db)

	placeholders := make([]string, 0, len(jobs))
	args := make([]any, 0, len(jobs)*9)
	for _, job := range jobs {
		id, err := job.ID.MarshalBinary()
		if err != nil {
			return apperrors.Wrap(err, "failed to marshal email job id")
		}
		placeholders = append(placeholders, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			id,
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

	query := `INSERT INTO email_jobs (` + mysqlEmailJobColumns + `) VALUES ` + strings.Join(placeholders, ", ")
	if _, err := querier.ExecContext(ctx, query, args...); err != nil {
		return apperrors.Wrap(err, "failed to create email jobs")
	}
	return nil
}

// ClaimQueued locks up to limit queued rows with SKIP LOCKED, flips them to processing
// and reads them back, all inside one transaction.
func (m *MySQLEmailJobRepository) ClaimQueued(ctx context.Context, limit int) ([]*mailDomain.EmailJob, error) {
	var jobs []*mailDomain.EmailJob

	err := m.txManager.WithTx(ctx, func(ctx context.Context) error {
		querier := database.GetTx(ctx, m.db)

		rows, err := querier.QueryContext(ctx,
			`SELECT id FROM email_jobs
			 WHERE status = 'queued'
			 ORDER BY created_at, id
			 LIMIT ?
			 FOR UPDATE SKIP LOCKED`,
			limit,
		)
		if err != nil {
			return apperrors.Wrap(err, "failed to select queued email jobs")
		}

		ids := make([]any, 0, limit)
		for rows.Next() {
			var id []byte
			if err := rows.Scan(&id); err != nil {
				_ = rows.Close()
				return apperrors.Wrap(err, "failed to scan queued email job id")
			}
			ids = append(ids, id)
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return apperrors.Wrap(err, "failed to iterate queued email jobs")
		}
		_ = rows.Close()

		if len(ids) == 0 {
			return nil
		}

		in := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")

		updateArgs := append([]any{time.Now().UTC()}, ids...)
		_, err = querier.ExecContext(ctx,
			`UPDATE email_jobs SET status = 'processing', updated_at = ?
			 WHERE status = 'queued' AND id IN (`+in+`)`,
			updateArgs...,
		)
		if err != nil {
			return apperrors.Wrap(err, "failed to claim queued email jobs")
		}

		claimed, err := querier.QueryContext(ctx,
			`SELECT `+mysqlEmailJobColumns+` FROM email_jobs
			 WHERE status = 'processing' AND id IN (`+in+`)
			 ORDER BY created_at, id`,
			ids...,
		)
		if err != nil {
			return apperrors.Wrap(err, "failed to read claimed email jobs")
		}
		defer func() {
			_ = claimed.Close()
		}()

		jobs = make([]*mailDomain.EmailJob, 0, len(ids))
		for claimed.Next() {
			job, err := scanMySQLEmailJob(claimed)
			if err != nil {
				return apperrors.Wrap(err, "failed to scan claimed email job")
			}
			jobs = append(jobs, job)
		}
		return claimed.Err()
	})
	if err != nil {
		return nil, err
	}

	if jobs == nil {
		jobs = []*mailDomain.EmailJob{}
	}
	return jobs, nil
}

// UpdateStatus sets the status of a job unconditionally.
func (m *MySQLEmailJobRepository) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status mailDomain.EmailJobStatus,
) error {
	querier := database.GetTx(ctx, m.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal email job id")
	}

	result, err := querier.ExecContext(ctx,
		`UPDATE email_jobs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), idBytes,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update email job status")
	}
	return m.requireMatched(ctx, result, idBytes)
}

// ApplyRetry puts a job back in the queue with the given retry count.
func (m *MySQLEmailJobRepository) ApplyRetry(
	ctx context.Context,
	id uuid.UUID,
	retryCount int,
	lastError string,
) error {
	querier := database.GetTx(ctx, m.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal email job id")
	}

	result, err := querier.ExecContext(ctx,
		`UPDATE email_jobs SET status = 'queued', retry_count = ?, last_error = ?, updated_at = ? WHERE id = ?`,
		retryCount, lastError, time.Now().UTC(), idBytes,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to requeue email job for retry")
	}
	return m.requireMatched(ctx, result, idBytes)
}

// MarkDead moves a job to the dead state, keeping its retry count.
func (m *MySQLEmailJobRepository) MarkDead(ctx context.Context, id uuid.UUID, lastError string) error {
	querier := database.GetTx(ctx, m.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal email job id")
	}

	result, err := querier.ExecContext(ctx,
		`UPDATE email_jobs SET status = 'dead', last_error = ?, updated_at = ? WHERE id = ?`,
		lastError, time.Now().UTC(), idBytes,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to dead-letter email job")
	}
	return m.requireMatched(ctx, result, idBytes)
}

// Get retrieves a job by ID.
func (m *MySQLEmailJobRepository) Get(ctx context.Context, id uuid.UUID) (*mailDomain.EmailJob, error) {
	querier := database.GetTx(ctx, m.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal email job id")
	}

	row := querier.QueryRowContext(ctx,
		`SELECT `+mysqlEmailJobColumns+` FROM email_jobs WHERE id = ?`,
		idBytes,
	)
	job, err := scanMySQLEmailJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, mailDomain.ErrEmailJobNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get email job")
	}
	return job, nil
}

// List retrieves a page of jobs, optionally filtered by status.
func (m *MySQLEmailJobRepository) List(
	ctx context.Context,
	filter mailDomain.ListFilter,
) ([]*mailDomain.EmailJob, error) {
	querier := database.GetTx(ctx, m.db)
	filter = filter.Normalize()

	query := `SELECT ` + mysqlEmailJobColumns + ` FROM email_jobs`
	args := make([]any, 0, 3)
	if filter.Status != nil {
		query += ` WHERE status = ?`
		args = append(args, string(*filter.Status))
	}
	// OrderBy and Order are whitelisted by Normalize.
	query += fmt.Sprintf(" ORDER BY %s %s, id %s LIMIT ? OFFSET ?", filter.OrderBy, filter.Order, filter.Order)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list email jobs")
	}
	defer func() {
		_ = rows.Close()
	}()

	jobs := make([]*mailDomain.EmailJob, 0)
	for rows.Next() {
		job, err := scanMySQLEmailJob(rows)
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
func (m *MySQLEmailJobRepository) Count(ctx context.Context, status *mailDomain.EmailJobStatus) (int, error) {
	querier := database.GetTx(ctx, m.db)

	var (
		count int
		err   error
	)
	if status != nil {
		err = querier.QueryRowContext(ctx, `SELECT COUNT(*) FROM email_jobs WHERE status = ?`, string(*status)).
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
func (m *MySQLEmailJobRepository) CountByStatus(ctx context.Context) (map[mailDomain.EmailJobStatus]int, error) {
	querier := database.GetTx(ctx, m.db)

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
func (m *MySQLEmailJobRepository) Requeue(
	ctx context.Context,
	id uuid.UUID,
	resetRetryCount bool,
) (*mailDomain.EmailJob, error) {
	querier := database.GetTx(ctx, m.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal email job id")
	}

	result, err := querier.ExecContext(ctx,
		`UPDATE email_jobs
		 SET status = 'queued',
			 retry_count = CASE WHEN ? THEN 0 ELSE retry_count END,
			 updated_at = ?
		 WHERE id = ? AND status IN ('failed', 'dead')`,
		resetRetryCount, time.Now().UTC(), idBytes,
	)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to requeue email job")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to get affected rows")
	}

	job, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, mailDomain.ErrEmailJobNotEligible
	}
	return job, nil
}

// ReclaimStale returns processing jobs untouched since olderThan to the queue.
func (m *MySQLEmailJobRepository) ReclaimStale(ctx context.Context, olderThan time.Time) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	result, err := querier.ExecContext(ctx,
		`UPDATE email_jobs SET status = 'queued', updated_at = ?
		 WHERE status = 'processing' AND updated_at < ?`,
		time.Now().UTC(), olderThan.UTC(),
	)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to reclaim stale email jobs")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to get reclaimed rows")
	}
	return affected, nil
}

// requireMatched maps a zero-row update to ErrEmailJobNotFound. MySQL reports changed rows
// rather than matched rows, so a zero count is confirmed with an existence check.
func (m *MySQLEmailJobRepository) requireMatched(ctx context.Context, result sql.Result, id []byte) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get affected rows")
	}
	if affected > 0 {
		return nil
	}

	querier := database.GetTx(ctx, m.db)
	var exists bool
	err = querier.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM email_jobs WHERE id = ?)`, id).Scan(&exists)
	if err != nil {
		return apperrors.Wrap(err, "failed to check email job existence")
	}
	if !exists {
		return mailDomain.ErrEmailJobNotFound
	}
	return nil
}

func scanMySQLEmailJob(row rowScanner) (*mailDomain.EmailJob, error) {
	var job mailDomain.EmailJob
	var id []byte
	var status string
	err := row.Scan(
		&id,
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

	if err := job.ID.UnmarshalBinary(id); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal email job id")
	}
	job.Status = mailDomain.EmailJobStatus(status)
	job.CreatedAt = job.CreatedAt.UTC()
	job.UpdatedAt = job.UpdatedAt.UTC()
	return &job, nil
}

// NewMySQLEmailJobRepository creates a new MySQL EmailJob repository instance.
func NewMySQLEmailJobRepository(db *sql.DB) *MySQLEmailJobRepository {
	return &MySQLEmailJobRepository{
		db:        db,
		txManager: database.NewTxManager(db),
	}
}
