package sessions

import (
	"context"
	"database/sql"
	"fmt"

	"englishtutor/internal/tokenusage"

	"github.com/jmoiron/sqlx"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) ListActive(ctx context.Context, userID int64) ([]Session, error) {
	query := `
		SELECT id, user_id, session_type, status, title, is_deleted, created_at, updated_at
		FROM sessions
		WHERE user_id = $1 AND is_deleted = FALSE
		ORDER BY updated_at DESC
	`
	var list []Session
	err := r.db.SelectContext(ctx, &list, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions for user %d: %w", userID, err)
	}
	return list, nil
}

func (r *Repository) Create(ctx context.Context, userID int64, sessionType string) (*Session, error) {
	query := `
		INSERT INTO sessions (user_id, session_type, status)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, session_type, status, title, is_deleted, created_at, updated_at
	`
	var session Session
	err := r.db.GetContext(ctx, &session, query, userID, sessionType, StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return &session, nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*Session, error) {
	query := `
		SELECT id, user_id, session_type, status, title, is_deleted, created_at, updated_at
		FROM sessions
		WHERE id = $1
	`
	var session Session
	err := r.db.GetContext(ctx, &session, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session %d: %w", id, err)
	}
	return &session, nil
}

// SoftDelete flags the session; its messages stay queryable.
func (r *Repository) SoftDelete(ctx context.Context, id int64) error {
	query := `
		UPDATE sessions
		SET is_deleted = TRUE
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to soft-delete session %d: %w", id, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *Repository) LoadTranscript(ctx context.Context, sessionID int64) ([]Message, error) {
	query := `
		SELECT id, session_id, sender, content_text, content_audio_path, feedback, created_at
		FROM messages
		WHERE session_id = $1
		ORDER BY created_at ASC, id ASC
	`
	var transcript []Message
	err := r.db.SelectContext(ctx, &transcript, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transcript for session %d: %w", sessionID, err)
	}
	return transcript, nil
}

// SetTitleIfEmpty writes the title only when no title is set yet.
func (r *Repository) SetTitleIfEmpty(ctx context.Context, sessionID int64, title string) error {
	query := `
		UPDATE sessions
		SET title = $2
		WHERE id = $1 AND (title IS NULL OR title = '')
	`
	_, err := r.db.ExecContext(ctx, query, sessionID, title)
	if err != nil {
		return fmt.Errorf("failed to set title for session %d: %w", sessionID, err)
	}
	return nil
}

func (r *Repository) SetFeedback(ctx context.Context, sessionID, messageID int64, feedback int) error {
	query := `
		UPDATE messages
		SET feedback = $3
		WHERE id = $2 AND session_id = $1
	`
	res, err := r.db.ExecContext(ctx, query, sessionID, messageID, feedback)
	if err != nil {
		return fmt.Errorf("failed to set feedback for message %d: %w", messageID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CompleteTurn persists a finished turn in one transaction: the user message,
// the assistant message, the token-usage row referencing the assistant
// message, and the session's updated_at bump.
func (r *Repository) CompleteTurn(ctx context.Context, sessionID int64, userText, userAudioPath, agentText string, usage *tokenusage.Record) (*Message, *Message, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insertQuery := `
		INSERT INTO messages (session_id, sender, content_text, content_audio_path)
		VALUES ($1, $2, $3, $4)
		RETURNING id, session_id, sender, content_text, content_audio_path, feedback, created_at
	`

	var userMessage Message
	err = tx.GetContext(ctx, &userMessage, insertQuery, sessionID, SenderUser, userText, userAudioPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to store user message: %w", err)
	}

	var agentMessage Message
	err = tx.GetContext(ctx, &agentMessage, insertQuery, sessionID, SenderAgent, agentText, "")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to store agent message: %w", err)
	}

	if usage != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO token_usage (message_id, session_id, user_id, model_name, input_message, output_message,
			                         prompt_tokens, completion_tokens, cached_prompt_tokens, total_tokens,
			                         response_time_ms, estimated_cost)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, agentMessage.ID, sessionID, usage.UserID, usage.ModelName, usage.InputMessage, usage.OutputMessage,
			usage.PromptTokens, usage.CompletionTokens, usage.CachedPromptTokens, usage.TotalTokens,
			usage.ResponseTimeMs, tokenusage.EstimateCost(int64(usage.TotalTokens)))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to store token usage: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE sessions
		SET updated_at = NOW()
		WHERE id = $1
	`, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to refresh session %d: %w", sessionID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit turn: %w", err)
	}
	return &userMessage, &agentMessage, nil
}
