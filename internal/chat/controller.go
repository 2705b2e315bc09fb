// Package chat drives one active conversation: it routes a turn to the right
// persona, streams the reply, and persists the completed turn.
package chat

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"englishtutor/internal/agents"
	"englishtutor/internal/curriculum"
	"englishtutor/internal/llm"
	"englishtutor/internal/sessions"
	"englishtutor/internal/tokenusage"
	"englishtutor/internal/users"

	"github.com/sirupsen/logrus"
)

// State of the turn state machine.
type State int

const (
	StateIdle State = iota
	StateAwaitingResponse
	StateError
)

const (
	// titleTranscriptLimit caps how much conversation is sent to the
	// summarizer.
	titleTranscriptLimit = 2000

	titlePrompt = "Summarize the following conversation into a short title (max 5 words). Return ONLY the title, no quotes.\n\n"

	titleTimeout = 60 * time.Second
)

// SessionStore is the session/message persistence the controller needs.
type SessionStore interface {
	GetOwned(ctx context.Context, sessionID, userID int64) (*sessions.Session, error)
	Create(ctx context.Context, userID int64, sessionType string) (*sessions.Session, error)
	LoadTranscript(ctx context.Context, sessionID int64) ([]sessions.Message, error)
	SetTitleIfEmpty(ctx context.Context, sessionID int64, title string) error
	CompleteTurn(ctx context.Context, sessionID int64, userText, userAudioPath, agentText string, usage *tokenusage.Record) (*sessions.Message, *sessions.Message, error)
}

// UserStore resolves the user whose proficiency level parametrizes the
// progress-test persona.
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*users.User, error)
}

// CurriculumStore resolves the material for a proficiency level.
type CurriculumStore interface {
	GetByLevel(ctx context.Context, level int) (*curriculum.Curriculum, error)
}

// TurnResult is the outcome of one successful turn.
type TurnResult struct {
	Session      *sessions.Session
	UserMessage  *sessions.Message
	AgentMessage *sessions.Message
	Usage        llm.Usage
}

// Controller implements the turn state machine
// (idle -> awaiting_response -> idle, or -> error -> idle on failure).
type Controller struct {
	store        SessionStore
	userStore    UserStore
	curriculum   CurriculumStore
	completer    llm.Completer
	instructions agents.InstructionSource

	mu    sync.Mutex
	state State
}

func NewController(store SessionStore, userStore UserStore, cur CurriculumStore, completer llm.Completer, instructions agents.InstructionSource) *Controller {
	return &Controller{
		store:        store,
		userStore:    userStore,
		curriculum:   cur,
		completer:    completer,
		instructions: instructions,
	}
}

// State reports the current turn state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// SendMessage runs one turn. Empty input is silently ignored: no messages
// are appended and no state transition occurs. sessionID 0 creates a new
// onboarding session. onChunk, when non-nil, is called for every non-empty
// text chunk as it streams in. On failure nothing is persisted and the
// controller passes through error back to idle.
func (c *Controller) SendMessage(ctx context.Context, userID, sessionID int64, text, audioPath string, onChunk func(string)) (*TurnResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	c.setState(StateAwaitingResponse)
	result, err := c.runTurn(ctx, userID, sessionID, text, audioPath, onChunk)
	if err != nil {
		c.setState(StateError)
		c.setState(StateIdle)
		return nil, err
	}
	c.setState(StateIdle)
	return result, nil
}

func (c *Controller) runTurn(ctx context.Context, userID, sessionID int64, text, audioPath string, onChunk func(string)) (*TurnResult, error) {
	session, err := c.ensureSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	orch, err := agents.NewOrchestrator(ctx, c.completer, c.instructions)
	if err != nil {
		return nil, err
	}
	agent := orch.AgentFor(session.SessionType)

	params, err := c.agentParams(ctx, userID, session.SessionType)
	if err != nil {
		return nil, err
	}

	transcript, err := c.store.LoadTranscript(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	history := make([]agents.HistoryItem, 0, len(transcript)+1)
	for _, m := range transcript {
		history = append(history, agents.HistoryItem{Sender: m.Sender, Text: m.ContentText})
	}
	history = append(history, agents.HistoryItem{Sender: sessions.SenderUser, Text: text})

	start := time.Now()
	stream, err := agent.Stream(ctx, history, params)
	if err != nil {
		return nil, err
	}

	var reply strings.Builder
	var usage llm.Usage
	for chunk := range stream {
		switch {
		case chunk.Err != nil:
			return nil, chunk.Err
		case chunk.Final:
			usage = chunk.Usage
		default:
			reply.WriteString(chunk.Text)
			if onChunk != nil {
				onChunk(chunk.Text)
			}
		}
	}

	record := &tokenusage.Record{
		SessionID:          session.ID,
		UserID:             userID,
		ModelName:          usage.ModelName,
		InputMessage:       text,
		OutputMessage:      reply.String(),
		PromptTokens:       usage.PromptTokens,
		CompletionTokens:   usage.CompletionTokens,
		CachedPromptTokens: usage.CachedPromptTokens,
		TotalTokens:        usage.TotalTokens,
		ResponseTimeMs:     time.Since(start).Milliseconds(),
	}

	userMessage, agentMessage, err := c.store.CompleteTurn(ctx, session.ID, text, audioPath, reply.String(), record)
	if err != nil {
		return nil, err
	}

	return &TurnResult{
		Session:      session,
		UserMessage:  userMessage,
		AgentMessage: agentMessage,
		Usage:        usage,
	}, nil
}

func (c *Controller) ensureSession(ctx context.Context, userID, sessionID int64) (*sessions.Session, error) {
	if sessionID == 0 {
		return c.store.Create(ctx, userID, agents.TypeOnboarding)
	}
	return c.store.GetOwned(ctx, sessionID, userID)
}

// agentParams resolves per-persona template parameters. Only the
// progress-test persona takes any: the curriculum fields at the user's
// current level.
func (c *Controller) agentParams(ctx context.Context, userID int64, sessionType string) (map[string]string, error) {
	if sessionType != agents.TypeProgressTest {
		return nil, nil
	}

	user, err := c.userStore.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	cur, err := c.curriculum.GetByLevel(ctx, user.CurrentLevel)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, nil
	}
	return map[string]string{
		"level":           strconv.Itoa(cur.Level),
		"chapter_title":   cur.Title,
		"learning_goals":  cur.LearningGoals,
		"common_pitfalls": cur.CommonPitfalls,
	}, nil
}

// SynthesizeTitleAsync kicks off title synthesis in the background. It is
// called when the user switches away from a session; failures are logged and
// swallowed so they never block the switch.
func (c *Controller) SynthesizeTitleAsync(sessionID, userID int64) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), titleTimeout)
		defer cancel()
		if err := c.SynthesizeTitle(ctx, sessionID, userID); err != nil {
			logrus.Warnf("Failed to generate title for session %d: %v", sessionID, err)
		}
	}()
}

// SynthesizeTitle asks the onboarding persona to summarize the session into
// a short title. An existing non-empty title is never overwritten; an empty
// transcript is a no-op.
func (c *Controller) SynthesizeTitle(ctx context.Context, sessionID, userID int64) error {
	session, err := c.store.GetOwned(ctx, sessionID, userID)
	if err != nil {
		if errors.Is(err, sessions.ErrSessionNotFound) {
			return nil
		}
		return err
	}
	if session.Title != nil && *session.Title != "" {
		return nil
	}

	transcript, err := c.store.LoadTranscript(ctx, sessionID)
	if err != nil {
		return err
	}
	if len(transcript) == 0 {
		return nil
	}

	lines := make([]string, 0, len(transcript))
	for _, m := range transcript {
		lines = append(lines, m.Sender+": "+m.ContentText)
	}
	conversation := strings.Join(lines, "\n")
	if len(conversation) > titleTranscriptLimit {
		conversation = conversation[:titleTranscriptLimit] + "..."
	}

	orch, err := agents.NewOrchestrator(ctx, c.completer, c.instructions)
	if err != nil {
		return err
	}
	agent := orch.AgentFor(agents.TypeOnboarding)

	title, _, err := agent.Respond(ctx, []agents.HistoryItem{{
		Sender: sessions.SenderUser,
		Text:   titlePrompt + conversation,
	}}, nil)
	if err != nil {
		return err
	}

	title = strings.Trim(strings.TrimSpace(title), `"`)
	if title == "" {
		return nil
	}
	return c.store.SetTitleIfEmpty(ctx, sessionID, title)
}
