package prompts

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

func (r *Repository) GetActive(ctx context.Context, agentName string) (*AgentPrompt, error) {
	query := `
		SELECT id, agent_name, prompt_text, version, is_active, created_at
		FROM agent_prompts
		WHERE agent_name = $1 AND is_active = TRUE
		ORDER BY version DESC
		LIMIT 1
	`
	var prompt AgentPrompt
	err := r.db.GetContext(ctx, &prompt, query, agentName)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active prompt for %s: %w", agentName, err)
	}
	return &prompt, nil
}

func (r *Repository) GetHistory(ctx context.Context, agentName string) ([]AgentPrompt, error) {
	query := `
		SELECT id, agent_name, prompt_text, version, is_active, created_at
		FROM agent_prompts
		WHERE agent_name = $1
		ORDER BY version DESC
	`
	var history []AgentPrompt
	err := r.db.SelectContext(ctx, &history, query, agentName)
	if err != nil {
		return nil, fmt.Errorf("failed to get prompt history for %s: %w", agentName, err)
	}
	return history, nil
}

// SaveNewVersion deactivates every existing version of the prompt and inserts
// the text as version max(existing)+1, all in one transaction.
func (r *Repository) SaveNewVersion(ctx context.Context, agentName, promptText string) (*AgentPrompt, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE agent_prompts
		SET is_active = FALSE
		WHERE agent_name = $1 AND is_active = TRUE
	`, agentName)
	if err != nil {
		return nil, fmt.Errorf("failed to deactivate old prompt versions: %w", err)
	}

	var prompt AgentPrompt
	err = tx.GetContext(ctx, &prompt, `
		INSERT INTO agent_prompts (agent_name, prompt_text, version, is_active)
		VALUES ($1, $2, (SELECT COALESCE(MAX(version), 0) + 1 FROM agent_prompts WHERE agent_name = $1), TRUE)
		RETURNING id, agent_name, prompt_text, version, is_active, created_at
	`, agentName, promptText)
	if err != nil {
		return nil, fmt.Errorf("failed to insert new prompt version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit prompt save: %w", err)
	}
	return &prompt, nil
}

// RestoreVersion reactivates exactly one version and deactivates all others
// for the persona.
func (r *Repository) RestoreVersion(ctx context.Context, agentName string, version int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE agent_prompts
		SET is_active = (version = $2)
		WHERE agent_name = $1
	`, agentName, version)
	if err != nil {
		return fmt.Errorf("failed to restore prompt version: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	var exists bool
	err = tx.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM agent_prompts WHERE agent_name = $1 AND version = $2
		)
	`, agentName, version)
	if err != nil {
		return fmt.Errorf("failed to check prompt version: %w", err)
	}
	if !exists {
		return sql.ErrNoRows
	}

	return tx.Commit()
}
