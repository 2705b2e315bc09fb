package tokenusage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateCost(t *testing.T) {
	assert.InDelta(t, 0.0, EstimateCost(0), 1e-9)
	assert.InDelta(t, 0.001, EstimateCost(1000), 1e-9)
	assert.InDelta(t, 0.0125, EstimateCost(12500), 1e-9)
}

func TestSummaryDefaultsLimitAndComputesTotals(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	service := NewService(NewRepository(sqlx.NewDb(mockDB, "sqlmock")))

	columns := []string{"id", "message_id", "session_id", "user_id", "model_name", "input_message", "output_message",
		"prompt_tokens", "completion_tokens", "cached_prompt_tokens", "total_tokens",
		"response_time_ms", "estimated_cost", "created_at"}

	mock.ExpectQuery("FROM token_usage").
		WithArgs(100).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(1, 5, 1, 7, "gpt-4.1", "hi", "hello", 10, 5, 0, 15, 200, 0.0, time.Now()))
	mock.ExpectQuery("FROM token_usage").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(2500))

	summary, err := service.Summary(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, summary.Records, 1)
	assert.Equal(t, int64(2500), summary.TotalTokens)
	assert.InDelta(t, 0.0025, summary.TotalCost, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}
