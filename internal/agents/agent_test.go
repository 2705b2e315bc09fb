package agents

import (
	"context"
	"strings"
	"testing"

	"englishtutor/internal/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubCompleter records the messages it was called with and plays back a
// scripted response.
type stubCompleter struct {
	gotMessages []llm.Message
	response    string
	chunks      []string
	usage       llm.Usage
	streamErr   error
}

func (s *stubCompleter) Complete(ctx context.Context, messages []llm.Message) (string, llm.Usage, error) {
	s.gotMessages = messages
	return s.response, s.usage, nil
}

func (s *stubCompleter) Stream(ctx context.Context, messages []llm.Message) (<-chan llm.Chunk, error) {
	s.gotMessages = messages
	out := make(chan llm.Chunk)
	go func() {
		defer close(out)
		for _, text := range s.chunks {
			out <- llm.Chunk{Parts: []llm.ContentPart{{Kind: llm.PartPlainText, Text: text}}}
		}
		if s.streamErr != nil {
			out <- llm.Chunk{Err: s.streamErr}
			return
		}
		out <- llm.Chunk{Final: true, Usage: s.usage}
	}()
	return out, nil
}

func TestRespondBuildsSystemFirstMessages(t *testing.T) {
	completer := &stubCompleter{response: "Nice to meet you!"}
	agent := New("Tutor", TypeTutoring, "You are a tutor.", completer)

	history := []HistoryItem{
		{Sender: "user", Text: "Hi"},
		{Sender: "agent", Text: "Hello! How can I help?"},
		{Sender: "user", Text: "Teach me past tense"},
	}

	reply, _, err := agent.Respond(context.Background(), history, nil)
	require.NoError(t, err)
	assert.Equal(t, "Nice to meet you!", reply)

	require.Len(t, completer.gotMessages, 4)
	assert.Equal(t, llm.RoleSystem, completer.gotMessages[0].Role)
	assert.Equal(t, "You are a tutor.", completer.gotMessages[0].Content)
	assert.Equal(t, llm.RoleUser, completer.gotMessages[1].Role)
	assert.Equal(t, llm.RoleAssistant, completer.gotMessages[2].Role)
	assert.Equal(t, llm.RoleUser, completer.gotMessages[3].Role)
}

func TestRespondFillsTemplateParams(t *testing.T) {
	completer := &stubCompleter{}
	agent := New("Progress", TypeProgressTest, "Test the learner at level {level} on {chapter_title}.", completer)

	_, _, err := agent.Respond(context.Background(), []HistoryItem{{Sender: "user", Text: "ready"}}, map[string]string{
		"level":         "2",
		"chapter_title": "Daily Routines",
	})
	require.NoError(t, err)

	assert.Equal(t, "Test the learner at level 2 on Daily Routines.", completer.gotMessages[0].Content)
}

func TestFillTemplateLeavesUnknownPlaceholders(t *testing.T) {
	got := fillTemplate("level {level}, goals {learning_goals}", map[string]string{"level": "3"})
	assert.Equal(t, "level 3, goals {learning_goals}", got)
}

func TestStreamConcatenatesToFullResponse(t *testing.T) {
	completer := &stubCompleter{
		chunks: []string{"Hel", "lo", " there"},
		usage:  llm.Usage{TotalTokens: 42, PromptTokens: 30, CompletionTokens: 12},
	}
	agent := New("Counselor", TypeOnboarding, "instruction", completer)

	stream, err := agent.Stream(context.Background(), []HistoryItem{{Sender: "user", Text: "hi"}}, nil)
	require.NoError(t, err)

	var reply strings.Builder
	var usage llm.Usage
	sawFinal := false
	for chunk := range stream {
		require.NoError(t, chunk.Err)
		if chunk.Final {
			sawFinal = true
			usage = chunk.Usage
			continue
		}
		reply.WriteString(chunk.Text)
	}

	assert.True(t, sawFinal)
	assert.Equal(t, "Hello there", reply.String())
	assert.Equal(t, 42, usage.TotalTokens)
}

func TestStreamForwardsError(t *testing.T) {
	completer := &stubCompleter{
		chunks:    []string{"partial"},
		streamErr: assert.AnError,
	}
	agent := New("Counselor", TypeOnboarding, "instruction", completer)

	stream, err := agent.Stream(context.Background(), []HistoryItem{{Sender: "user", Text: "hi"}}, nil)
	require.NoError(t, err)

	var got []Chunk
	for chunk := range stream {
		got = append(got, chunk)
	}

	require.Len(t, got, 2)
	assert.Equal(t, "partial", got[0].Text)
	assert.ErrorIs(t, got[1].Err, assert.AnError)
}

type staticInstructions map[string]string

func (s staticInstructions) ActiveOrDefault(ctx context.Context, agentKey string) (string, error) {
	return s[agentKey], nil
}

func TestOrchestratorRoutesEveryKnownType(t *testing.T) {
	instructions := staticInstructions{}
	for _, key := range PersonaKeys {
		instructions[key] = "instruction for " + key
	}

	orch, err := NewOrchestrator(context.Background(), &stubCompleter{}, instructions)
	require.NoError(t, err)

	for _, key := range PersonaKeys {
		agent := orch.AgentFor(key)
		require.NotNil(t, agent)
		assert.Equal(t, key, agent.Key)
	}
}

func TestOrchestratorFallsBackToOnboarding(t *testing.T) {
	instructions := staticInstructions{}
	for _, key := range PersonaKeys {
		instructions[key] = "instruction"
	}

	orch, err := NewOrchestrator(context.Background(), &stubCompleter{}, instructions)
	require.NoError(t, err)

	for _, sessionType := range []string{"", "legacy_chat", "unknown"} {
		agent := orch.AgentFor(sessionType)
		require.NotNil(t, agent)
		assert.Equal(t, TypeOnboarding, agent.Key)
	}
}

func TestKnownType(t *testing.T) {
	assert.True(t, KnownType(TypeTutoring))
	assert.True(t, KnownType(TypeProgressTest))
	assert.False(t, KnownType("chitchat"))
	assert.False(t, KnownType(""))
}
