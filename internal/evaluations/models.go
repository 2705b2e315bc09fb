package evaluations

import (
	"time"
)

// Evaluation is one completed evaluation cycle: six 0-100 sub-scores, an
// aggregate, and free-text feedback. Written once, never updated.
type Evaluation struct {
	ID                 int64     `db:"id" json:"id"`
	UserID             int64     `db:"user_id" json:"user_id"`
	SessionID          int64     `db:"session_id" json:"session_id"`
	PronunciationScore float64   `db:"pronunciation_score" json:"pronunciation_score"`
	GrammarScore       float64   `db:"grammar_score" json:"grammar_score"`
	VocabularyScore    float64   `db:"vocabulary_score" json:"vocabulary_score"`
	FluencyScore       float64   `db:"fluency_score" json:"fluency_score"`
	ExpressionScore    float64   `db:"expression_score" json:"expression_score"`
	ConfidenceScore    float64   `db:"confidence_score" json:"confidence_score"`
	OverallScore       float64   `db:"overall_score" json:"overall_score"`
	FeedbackSummary    string    `db:"feedback_summary" json:"feedback_summary"`
	DetailedCorrection string    `db:"detailed_correction" json:"detailed_correction"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}
