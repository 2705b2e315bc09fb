package tokenusage

import (
	"time"
)

// Record is one assistant turn's token accounting, including the raw input
// and output text for audit.
type Record struct {
	ID                 int64     `db:"id" json:"id"`
	MessageID          *int64    `db:"message_id" json:"message_id,omitempty"`
	SessionID          int64     `db:"session_id" json:"session_id"`
	UserID             int64     `db:"user_id" json:"user_id"`
	ModelName          string    `db:"model_name" json:"model_name"`
	InputMessage       string    `db:"input_message" json:"input_message"`
	OutputMessage      string    `db:"output_message" json:"output_message"`
	PromptTokens       int       `db:"prompt_tokens" json:"prompt_tokens"`
	CompletionTokens   int       `db:"completion_tokens" json:"completion_tokens"`
	CachedPromptTokens int       `db:"cached_prompt_tokens" json:"cached_prompt_tokens"`
	TotalTokens        int       `db:"total_tokens" json:"total_tokens"`
	ResponseTimeMs     int64     `db:"response_time_ms" json:"response_time_ms"`
	EstimatedCost      float64   `db:"estimated_cost" json:"estimated_cost"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}
