package tokenusage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetRecent(ctx context.Context, limit int) ([]Record, error) {
	query := `
		SELECT id, message_id, session_id, user_id, model_name, input_message, output_message,
		       prompt_tokens, completion_tokens, cached_prompt_tokens, total_tokens,
		       response_time_ms, estimated_cost, created_at
		FROM token_usage
		ORDER BY created_at DESC
		LIMIT $1
	`
	var records []Record
	err := r.db.SelectContext(ctx, &records, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent token usage: %w", err)
	}
	return records, nil
}

func (r *Repository) GetTotalTokens(ctx context.Context) (int64, error) {
	query := `SELECT COALESCE(SUM(total_tokens), 0) FROM token_usage`

	var total int64
	err := r.db.GetContext(ctx, &total, query)
	if err != nil {
		return 0, fmt.Errorf("failed to sum token usage: %w", err)
	}
	return total, nil
}
