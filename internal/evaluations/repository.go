package evaluations

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

func (r *Repository) Insert(ctx context.Context, e *Evaluation) (*Evaluation, error) {
	query := `
		INSERT INTO evaluations (user_id, session_id, pronunciation_score, grammar_score, vocabulary_score,
		                         fluency_score, expression_score, confidence_score, overall_score,
		                         feedback_summary, detailed_correction)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, user_id, session_id, pronunciation_score, grammar_score, vocabulary_score,
		          fluency_score, expression_score, confidence_score, overall_score,
		          feedback_summary, detailed_correction, created_at
	`
	var saved Evaluation
	err := r.db.GetContext(ctx, &saved, query,
		e.UserID, e.SessionID, e.PronunciationScore, e.GrammarScore, e.VocabularyScore,
		e.FluencyScore, e.ExpressionScore, e.ConfidenceScore, e.OverallScore,
		e.FeedbackSummary, e.DetailedCorrection)
	if err != nil {
		return nil, fmt.Errorf("failed to store evaluation: %w", err)
	}
	return &saved, nil
}

func (r *Repository) ListByUser(ctx context.Context, userID int64) ([]Evaluation, error) {
	query := `
		SELECT id, user_id, session_id, pronunciation_score, grammar_score, vocabulary_score,
		       fluency_score, expression_score, confidence_score, overall_score,
		       feedback_summary, detailed_correction, created_at
		FROM evaluations
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	var list []Evaluation
	err := r.db.SelectContext(ctx, &list, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluations for user %d: %w", userID, err)
	}
	return list, nil
}
