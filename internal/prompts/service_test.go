package prompts

import (
	"context"
	"database/sql"
	"testing"

	"englishtutor/internal/agents"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPromptShipsEveryPersona(t *testing.T) {
	for _, key := range agents.PersonaKeys {
		text, err := DefaultPrompt(key)
		require.NoError(t, err, key)
		assert.NotEmpty(t, text, key)
	}
}

func TestDefaultPromptUnknownAgent(t *testing.T) {
	_, err := DefaultPrompt("nonexistent")
	assert.ErrorIs(t, err, ErrUnknownAgent)
}

func TestProgressTestDefaultCarriesCurriculumPlaceholders(t *testing.T) {
	text, err := DefaultPrompt(agents.TypeProgressTest)
	require.NoError(t, err)
	for _, placeholder := range []string{"{level}", "{chapter_title}", "{learning_goals}", "{common_pitfalls}"} {
		assert.Contains(t, text, placeholder)
	}
}

func TestActiveOrDefaultFallsBackToEmbedded(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	service := NewService(NewRepository(sqlx.NewDb(mockDB, "sqlmock")))

	mock.ExpectQuery("FROM agent_prompts").WithArgs(agents.TypeTutoring).WillReturnError(sql.ErrNoRows)

	text, err := service.ActiveOrDefault(context.Background(), agents.TypeTutoring)
	require.NoError(t, err)

	embedded, err := DefaultPrompt(agents.TypeTutoring)
	require.NoError(t, err)
	assert.Equal(t, embedded, text)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRejectsEmptyPrompt(t *testing.T) {
	service := NewService(nil)
	_, err := service.Save(context.Background(), agents.TypeTutoring, "")
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}
