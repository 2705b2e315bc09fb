package prompts

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return NewRepository(sqlx.NewDb(mockDB, "sqlmock")), mock
}

var promptColumns = []string{"id", "agent_name", "prompt_text", "version", "is_active", "created_at"}

func TestGetActiveReturnsNilWhenUnsaved(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("FROM agent_prompts").WithArgs("tutoring").WillReturnError(sql.ErrNoRows)

	prompt, err := repo.GetActive(context.Background(), "tutoring")
	require.NoError(t, err)
	assert.Nil(t, prompt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveNewVersionDeactivatesAndIncrements(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE agent_prompts").
		WithArgs("tutoring").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery("INSERT INTO agent_prompts").
		WithArgs("tutoring", "Be a patient tutor.").
		WillReturnRows(sqlmock.NewRows(promptColumns).
			AddRow(5, "tutoring", "Be a patient tutor.", 3, true, time.Now()))
	mock.ExpectCommit()

	prompt, err := repo.SaveNewVersion(context.Background(), "tutoring", "Be a patient tutor.")
	require.NoError(t, err)
	assert.Equal(t, 3, prompt.Version)
	assert.True(t, prompt.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRestoreVersionActivatesExactlyOne(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE agent_prompts").
		WithArgs("tutoring", 2).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("tutoring", 2).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectCommit()

	err := repo.RestoreVersion(context.Background(), "tutoring", 2)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRestoreVersionUnknownVersion(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE agent_prompts").
		WithArgs("tutoring", 99).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("tutoring", 99).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	err := repo.RestoreVersion(context.Background(), "tutoring", 99)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
