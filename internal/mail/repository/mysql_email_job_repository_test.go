package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mailDomain "github.com/allisson/mailqueue/internal/mail/domain"
	"github.com/allisson/mailqueue/internal/testutil"
)

func newMySQLMock(t *testing.T) (*MySQLEmailJobRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})

	return NewMySQLEmailJobRepository(db), mock
}

func mustBinary(t *testing.T, id uuid.UUID) []byte {
	t.Helper()
	b, err := id.MarshalBinary()
	require.NoError(t, err)
	return b
}

func TestMySQLEmailJobRepository_CreateBatch_Mock(t *testing.T) {
	repo, mock := newMySQLMock(t)
	jobs := newTestJobs(t, 2)

	mock.ExpectExec(`INSERT INTO email_jobs .+ VALUES \(\?, .+\), \(\?, .+\)`).
		WithArgs(
			mustBinary(t, jobs[0].ID), "user@example.com", "Subject", "Body", "queued", 0, nil,
			sqlmock.AnyArg(), sqlmock.AnyArg(),
			mustBinary(t, jobs[1].ID), "user@example.com", "Subject", "Body", "queued", 0, nil,
			sqlmock.AnyArg(), sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.CreateBatch(context.Background(), jobs))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLEmailJobRepository_ClaimQueued_Mock(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_LockFlipAndReadBack", func(t *testing.T) {
		repo, mock := newMySQLMock(t)
		now := time.Now().UTC()
		first := uuid.Must(uuid.NewV7())
		second := uuid.Must(uuid.NewV7())

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id FROM email_jobs WHERE status = 'queued' ORDER BY created_at, id LIMIT \? FOR UPDATE SKIP LOCKED`).
			WithArgs(10).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).
				AddRow(mustBinary(t, first)).
				AddRow(mustBinary(t, second)))
		mock.ExpectExec(`UPDATE email_jobs SET status = 'processing', updated_at = \? WHERE status = 'queued' AND id IN \(\?, \?\)`).
			WithArgs(sqlmock.AnyArg(), mustBinary(t, first), mustBinary(t, second)).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectQuery(`SELECT .+ FROM email_jobs WHERE status = 'processing' AND id IN \(\?, \?\)`).
			WillReturnRows(sqlmock.NewRows(emailJobColumnNames).
				AddRow(mustBinary(t, first), "a@example.com", "s", "b", "processing", 0, nil, now, now).
				AddRow(mustBinary(t, second), "b@example.com", "s", "b", "processing", 2, "timeout", now, now))
		mock.ExpectCommit()

		jobs, err := repo.ClaimQueued(ctx, 10)
		require.NoError(t, err)
		require.Len(t, jobs, 2)
		assert.Equal(t, first, jobs[0].ID)
		assert.Equal(t, second, jobs[1].ID)
		assert.Equal(t, 2, jobs[1].RetryCount)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Success_NothingDueCommitsEmpty", func(t *testing.T) {
		repo, mock := newMySQLMock(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id FROM email_jobs`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectCommit()

		jobs, err := repo.ClaimQueued(ctx, 10)
		require.NoError(t, err)
		assert.NotNil(t, jobs)
		assert.Empty(t, jobs)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Error_RollsBackOnUpdateFailure", func(t *testing.T) {
		repo, mock := newMySQLMock(t)
		id := uuid.Must(uuid.NewV7())

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id FROM email_jobs`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(mustBinary(t, id)))
		mock.ExpectExec(`UPDATE email_jobs SET status = 'processing'`).
			WillReturnError(errors.New("lock wait timeout"))
		mock.ExpectRollback()

		_, err := repo.ClaimQueued(ctx, 10)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to claim queued email jobs")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMySQLEmailJobRepository_UpdateStatus_Mock(t *testing.T) {
	ctx := context.Background()
	id := uuid.Must(uuid.NewV7())

	t.Run("Success", func(t *testing.T) {
		repo, mock := newMySQLMock(t)
		mock.ExpectExec(`UPDATE email_jobs SET status = \?, updated_at = \? WHERE id = \?`).
			WithArgs("failed", sqlmock.AnyArg(), mustBinary(t, id)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.UpdateStatus(ctx, id, mailDomain.StatusFailed))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Success_UnchangedRowStillExists", func(t *testing.T) {
		repo, mock := newMySQLMock(t)
		mock.ExpectExec(`UPDATE email_jobs SET status`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs(mustBinary(t, id)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		require.NoError(t, repo.UpdateStatus(ctx, id, mailDomain.StatusSent))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Error_NotFound", func(t *testing.T) {
		repo, mock := newMySQLMock(t)
		mock.ExpectExec(`UPDATE email_jobs SET status`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT EXISTS`).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		err := repo.UpdateStatus(ctx, id, mailDomain.StatusSent)
		assert.ErrorIs(t, err, mailDomain.ErrEmailJobNotFound)
	})
}

func TestMySQLEmailJobRepository_Requeue_Mock(t *testing.T) {
	ctx := context.Background()
	id := uuid.Must(uuid.NewV7())
	now := time.Now().UTC()

	t.Run("Success", func(t *testing.T) {
		repo, mock := newMySQLMock(t)
		mock.ExpectExec(`UPDATE email_jobs SET status = 'queued', retry_count = CASE WHEN \? THEN 0`).
			WithArgs(false, sqlmock.AnyArg(), mustBinary(t, id)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT .+ FROM email_jobs WHERE id = \?`).
			WillReturnRows(sqlmock.NewRows(emailJobColumnNames).
				AddRow(mustBinary(t, id), "a@example.com", "s", "b", "queued", 3, "x", now, now))

		job, err := repo.Requeue(ctx, id, false)
		require.NoError(t, err)
		assert.Equal(t, id, job.ID)
		assert.Equal(t, 3, job.RetryCount)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Error_NotEligible", func(t *testing.T) {
		repo, mock := newMySQLMock(t)
		mock.ExpectExec(`UPDATE email_jobs SET status = 'queued'`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT .+ FROM email_jobs WHERE id = \?`).
			WillReturnRows(sqlmock.NewRows(emailJobColumnNames).
				AddRow(mustBinary(t, id), "a@example.com", "s", "b", "sent", 0, nil, now, now))

		_, err := repo.Requeue(ctx, id, false)
		assert.ErrorIs(t, err, mailDomain.ErrEmailJobNotEligible)
	})

	t.Run("Error_NotFound", func(t *testing.T) {
		repo, mock := newMySQLMock(t)
		mock.ExpectExec(`UPDATE email_jobs SET status = 'queued'`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT .+ FROM email_jobs WHERE id = \?`).
			WillReturnRows(sqlmock.NewRows(emailJobColumnNames))

		_, err := repo.Requeue(ctx, id, false)
		assert.ErrorIs(t, err, mailDomain.ErrEmailJobNotFound)
	})
}

func TestMySQLEmailJobRepository_List_Mock(t *testing.T) {
	repo, mock := newMySQLMock(t)

	mock.ExpectQuery(`SELECT .+ FROM email_jobs ORDER BY created_at desc, id desc LIMIT \? OFFSET \?`).
		WithArgs(50, 0).
		WillReturnRows(sqlmock.NewRows(emailJobColumnNames))

	jobs, err := repo.List(context.Background(), mailDomain.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, jobs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLEmailJobRepository_Integration(t *testing.T) {
	db := testutil.OpenDB(t, testutil.MySQL)

	repo := NewMySQLEmailJobRepository(db)
	ctx := context.Background()

	jobs := newTestJobs(t, 4)
	require.NoError(t, repo.CreateBatch(ctx, jobs))

	claimed, err := repo.ClaimQueued(ctx, 3)
	require.NoError(t, err)
	require.Len(t, claimed, 3)
	assert.Equal(t, jobs[0].ID, claimed[0].ID)

	again, err := repo.ClaimQueued(ctx, 3)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, jobs[3].ID, again[0].ID)

	require.NoError(t, repo.UpdateStatus(ctx, claimed[0].ID, mailDomain.StatusFailed))
	job, err := repo.Requeue(ctx, claimed[0].ID, true)
	require.NoError(t, err)
	assert.Equal(t, mailDomain.StatusQueued, job.Status)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[mailDomain.StatusQueued])
	assert.Equal(t, 3, counts[mailDomain.StatusProcessing])

	deadID := testutil.InsertEmailJob(t, db, testutil.MySQL, string(mailDomain.StatusDead), 3)
	job, err = repo.Requeue(ctx, deadID, false)
	require.NoError(t, err)
	assert.Equal(t, 3, job.RetryCount)
	assert.Equal(t, string(mailDomain.StatusQueued), testutil.EmailJobStatus(t, db, testutil.MySQL, deadID))
}
