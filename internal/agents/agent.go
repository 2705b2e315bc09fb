// Package agents holds the conversational personas and the orchestrator that
// routes a session to one of them.
package agents

import (
	"context"
	"strings"

	"englishtutor/internal/llm"
)

// HistoryItem is one transcript entry handed to an agent. Sender is "user"
// for learner turns; anything else is treated as an assistant turn.
type HistoryItem struct {
	Sender string
	Text   string
}

// Chunk is one event of a streamed agent response: zero or more non-empty
// Text chunks followed by exactly one terminal event (Final with Usage, or
// Err). The sequence is finite and single-pass.
type Chunk struct {
	Text  string
	Final bool
	Usage llm.Usage
	Err   error
}

// Agent is one persona: a fixed instruction template plus the completion
// capability. The template may contain {name} placeholders filled from
// per-turn parameters.
type Agent struct {
	Name        string
	Key         string
	instruction string
	completer   llm.Completer
}

func New(name, key, instruction string, completer llm.Completer) *Agent {
	return &Agent{
		Name:        name,
		Key:         key,
		instruction: instruction,
		completer:   completer,
	}
}

// Respond runs one full completion over the history and returns the text
// plus usage metadata.
func (a *Agent) Respond(ctx context.Context, history []HistoryItem, params map[string]string) (string, llm.Usage, error) {
	return a.completer.Complete(ctx, a.buildMessages(history, params))
}

// Stream runs an incremental completion. Multi-part chunk content is
// flattened to plain text before it is forwarded.
func (a *Agent) Stream(ctx context.Context, history []HistoryItem, params map[string]string) (<-chan Chunk, error) {
	in, err := a.completer.Stream(ctx, a.buildMessages(history, params))
	if err != nil {
		return nil, err
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		for chunk := range in {
			switch {
			case chunk.Err != nil:
				out <- Chunk{Err: chunk.Err}
				return
			case chunk.Final:
				out <- Chunk{Final: true, Usage: chunk.Usage}
				return
			default:
				if text := llm.Flatten(chunk.Parts); text != "" {
					out <- Chunk{Text: text}
				}
			}
		}
	}()
	return out, nil
}

func (a *Agent) buildMessages(history []HistoryItem, params map[string]string) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, llm.Message{
		Role:    llm.RoleSystem,
		Content: fillTemplate(a.instruction, params),
	})
	for _, item := range history {
		role := llm.RoleAssistant
		if item.Sender == "user" {
			role = llm.RoleUser
		}
		messages = append(messages, llm.Message{Role: role, Content: item.Text})
	}
	return messages
}

// fillTemplate substitutes {name} placeholders. Placeholders without a
// matching parameter are left untouched.
func fillTemplate(template string, params map[string]string) string {
	if len(params) == 0 {
		return template
	}
	pairs := make([]string, 0, len(params)*2)
	for key, value := range params {
		pairs = append(pairs, "{"+key+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
