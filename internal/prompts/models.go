package prompts

import (
	"time"
)

// AgentPrompt is one version of a persona's instruction text. At most one
// version per persona is active at a time.
type AgentPrompt struct {
	ID         int64     `db:"id" json:"id"`
	AgentName  string    `db:"agent_name" json:"agent_name"`
	PromptText string    `db:"prompt_text" json:"prompt_text"`
	Version    int       `db:"version" json:"version"`
	IsActive   bool      `db:"is_active" json:"is_active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
