package curriculum

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetByLevel(ctx context.Context, level int) (*Curriculum, error) {
	query := `
		SELECT id, level, title, description, base_content, learning_goals, common_pitfalls
		FROM curriculum
		WHERE level = $1
	`
	var cur Curriculum
	err := r.db.GetContext(ctx, &cur, query, level)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get curriculum for level %d: %w", level, err)
	}
	return &cur, nil
}

func (r *Repository) List(ctx context.Context) ([]Curriculum, error) {
	query := `
		SELECT id, level, title, description, base_content, learning_goals, common_pitfalls
		FROM curriculum
		ORDER BY level ASC
	`
	var list []Curriculum
	err := r.db.SelectContext(ctx, &list, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list curriculum: %w", err)
	}
	return list, nil
}

// Upsert writes the curriculum fields for a level, creating the row on first
// save.
func (r *Repository) Upsert(ctx context.Context, cur *Curriculum) (*Curriculum, error) {
	query := `
		INSERT INTO curriculum (level, title, description, base_content, learning_goals, common_pitfalls)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (level) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			base_content = EXCLUDED.base_content,
			learning_goals = EXCLUDED.learning_goals,
			common_pitfalls = EXCLUDED.common_pitfalls
		RETURNING id, level, title, description, base_content, learning_goals, common_pitfalls
	`
	var saved Curriculum
	err := r.db.GetContext(ctx, &saved, query,
		cur.Level, cur.Title, cur.Description, cur.BaseContent, cur.LearningGoals, cur.CommonPitfalls)
	if err != nil {
		return nil, fmt.Errorf("failed to save curriculum for level %d: %w", cur.Level, err)
	}
	return &saved, nil
}
