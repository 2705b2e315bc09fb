package chat

import (
	"context"
	"strings"
	"testing"
	"time"

	"englishtutor/internal/agents"
	"englishtutor/internal/curriculum"
	"englishtutor/internal/llm"
	"englishtutor/internal/sessions"
	"englishtutor/internal/tokenusage"
	"englishtutor/internal/users"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	session    *sessions.Session
	transcript []sessions.Message

	created       *sessions.Session
	completeCalls int
	lastUserText  string
	lastAgentText string
	lastAudioPath string
	lastUsage     *tokenusage.Record
	titleSet      string
}

func (f *fakeStore) GetOwned(ctx context.Context, sessionID, userID int64) (*sessions.Session, error) {
	if f.session == nil || f.session.ID != sessionID {
		return nil, sessions.ErrSessionNotFound
	}
	return f.session, nil
}

func (f *fakeStore) Create(ctx context.Context, userID int64, sessionType string) (*sessions.Session, error) {
	f.created = &sessions.Session{ID: 99, UserID: userID, SessionType: sessionType, Status: sessions.StatusActive}
	return f.created, nil
}

func (f *fakeStore) LoadTranscript(ctx context.Context, sessionID int64) ([]sessions.Message, error) {
	return f.transcript, nil
}

func (f *fakeStore) SetTitleIfEmpty(ctx context.Context, sessionID int64, title string) error {
	f.titleSet = title
	return nil
}

func (f *fakeStore) CompleteTurn(ctx context.Context, sessionID int64, userText, userAudioPath, agentText string, usage *tokenusage.Record) (*sessions.Message, *sessions.Message, error) {
	f.completeCalls++
	f.lastUserText = userText
	f.lastAgentText = agentText
	f.lastAudioPath = userAudioPath
	f.lastUsage = usage
	userMessage := &sessions.Message{ID: 1, SessionID: sessionID, Sender: sessions.SenderUser, ContentText: userText, ContentAudioPath: userAudioPath, CreatedAt: time.Now()}
	agentMessage := &sessions.Message{ID: 2, SessionID: sessionID, Sender: sessions.SenderAgent, ContentText: agentText, CreatedAt: time.Now()}
	return userMessage, agentMessage, nil
}

type fakeUserStore struct {
	user *users.User
}

func (f *fakeUserStore) GetByID(ctx context.Context, id int64) (*users.User, error) {
	return f.user, nil
}

type fakeCurriculumStore struct {
	cur *curriculum.Curriculum
}

func (f *fakeCurriculumStore) GetByLevel(ctx context.Context, level int) (*curriculum.Curriculum, error) {
	return f.cur, nil
}

type fakeCompleter struct {
	gotMessages []llm.Message
	response    string
	chunks      []string
	usage       llm.Usage
	streamErr   error
	calls       int
}

func (f *fakeCompleter) Complete(ctx context.Context, messages []llm.Message) (string, llm.Usage, error) {
	f.calls++
	f.gotMessages = messages
	return f.response, f.usage, nil
}

func (f *fakeCompleter) Stream(ctx context.Context, messages []llm.Message) (<-chan llm.Chunk, error) {
	f.calls++
	f.gotMessages = messages
	out := make(chan llm.Chunk)
	go func() {
		defer close(out)
		for _, text := range f.chunks {
			out <- llm.Chunk{Parts: []llm.ContentPart{{Kind: llm.PartPlainText, Text: text}}}
		}
		if f.streamErr != nil {
			out <- llm.Chunk{Err: f.streamErr}
			return
		}
		out <- llm.Chunk{Final: true, Usage: f.usage}
	}()
	return out, nil
}

type staticInstructions struct{}

func (staticInstructions) ActiveOrDefault(ctx context.Context, agentKey string) (string, error) {
	switch agentKey {
	case agents.TypeProgressTest:
		return "Level {level}: {chapter_title}", nil
	default:
		return "You are the " + agentKey + " persona.", nil
	}
}

func newTestController(store *fakeStore, completer *fakeCompleter) *Controller {
	userStore := &fakeUserStore{user: &users.User{ID: 7, CurrentLevel: 2}}
	curStore := &fakeCurriculumStore{cur: &curriculum.Curriculum{Level: 2, Title: "Daily Routines", LearningGoals: "past tense", CommonPitfalls: "goed"}}
	return NewController(store, userStore, curStore, completer, staticInstructions{})
}

func TestSendMessageIgnoresEmptyInput(t *testing.T) {
	store := &fakeStore{}
	completer := &fakeCompleter{}
	c := newTestController(store, completer)

	for _, input := range []string{"", "   ", "\n\t"} {
		result, err := c.SendMessage(context.Background(), 7, 1, input, "", nil)
		require.NoError(t, err)
		assert.Nil(t, result)
	}

	assert.Equal(t, 0, completer.calls)
	assert.Equal(t, 0, store.completeCalls)
	assert.Equal(t, StateIdle, c.State())
}

func TestSendMessageStreamsAndPersistsTurn(t *testing.T) {
	store := &fakeStore{
		session: &sessions.Session{ID: 1, UserID: 7, SessionType: agents.TypeTutoring, Status: sessions.StatusActive},
		transcript: []sessions.Message{
			{Sender: sessions.SenderUser, ContentText: "Hi"},
			{Sender: sessions.SenderAgent, ContentText: "Hello!"},
		},
	}
	completer := &fakeCompleter{
		chunks: []string{"Wel", "come ", "back"},
		usage:  llm.Usage{ModelName: "gpt-4.1", PromptTokens: 20, CompletionTokens: 5, TotalTokens: 25},
	}
	c := newTestController(store, completer)

	var streamed []string
	result, err := c.SendMessage(context.Background(), 7, 1, "I am back", "", func(chunk string) {
		streamed = append(streamed, chunk)
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, []string{"Wel", "come ", "back"}, streamed)
	assert.Equal(t, "Welcome back", result.AgentMessage.ContentText)
	assert.Equal(t, "I am back", result.UserMessage.ContentText)
	assert.Equal(t, 25, result.Usage.TotalTokens)

	require.Equal(t, 1, store.completeCalls)
	require.NotNil(t, store.lastUsage)
	assert.Equal(t, "gpt-4.1", store.lastUsage.ModelName)
	assert.Equal(t, "I am back", store.lastUsage.InputMessage)
	assert.Equal(t, "Welcome back", store.lastUsage.OutputMessage)
	assert.GreaterOrEqual(t, store.lastUsage.ResponseTimeMs, int64(0))

	// History must carry the transcript plus the new user turn.
	require.Len(t, completer.gotMessages, 4)
	assert.Equal(t, llm.RoleSystem, completer.gotMessages[0].Role)
	assert.Equal(t, "I am back", completer.gotMessages[3].Content)

	assert.Equal(t, StateIdle, c.State())
}

func TestSendMessagePersistsNothingOnStreamError(t *testing.T) {
	store := &fakeStore{
		session: &sessions.Session{ID: 1, UserID: 7, SessionType: agents.TypeTutoring},
	}
	completer := &fakeCompleter{
		chunks:    []string{"partial reply"},
		streamErr: assert.AnError,
	}
	c := newTestController(store, completer)

	result, err := c.SendMessage(context.Background(), 7, 1, "hello", "", nil)
	require.Error(t, err)
	assert.Nil(t, result)

	assert.Equal(t, 0, store.completeCalls)
	assert.Equal(t, StateIdle, c.State())
}

func TestSendMessageCreatesOnboardingSessionWhenMissing(t *testing.T) {
	store := &fakeStore{}
	completer := &fakeCompleter{chunks: []string{"Hi!"}}
	c := newTestController(store, completer)

	result, err := c.SendMessage(context.Background(), 7, 0, "hello", "", nil)
	require.NoError(t, err)
	require.NotNil(t, result)

	require.NotNil(t, store.created)
	assert.Equal(t, agents.TypeOnboarding, store.created.SessionType)
	assert.Equal(t, store.created.ID, result.Session.ID)
}

func TestSendMessageFillsProgressTestParams(t *testing.T) {
	store := &fakeStore{
		session: &sessions.Session{ID: 3, UserID: 7, SessionType: agents.TypeProgressTest},
	}
	completer := &fakeCompleter{chunks: []string{"Question 1"}}
	c := newTestController(store, completer)

	_, err := c.SendMessage(context.Background(), 7, 3, "start the test", "", nil)
	require.NoError(t, err)

	require.NotEmpty(t, completer.gotMessages)
	assert.Equal(t, "Level 2: Daily Routines", completer.gotMessages[0].Content)
}

func TestSynthesizeTitleSetsTrimmedTitle(t *testing.T) {
	store := &fakeStore{
		session: &sessions.Session{ID: 1, UserID: 7, SessionType: agents.TypeTutoring},
		transcript: []sessions.Message{
			{Sender: sessions.SenderUser, ContentText: "Can we practice job interviews?"},
			{Sender: sessions.SenderAgent, ContentText: "Of course!"},
		},
	}
	completer := &fakeCompleter{response: `  "Job Interview Practice"  `}
	c := newTestController(store, completer)

	err := c.SynthesizeTitle(context.Background(), 1, 7)
	require.NoError(t, err)
	assert.Equal(t, "Job Interview Practice", store.titleSet)

	// The summarizer sees the transcript as sender-prefixed lines.
	require.Len(t, completer.gotMessages, 2)
	assert.Contains(t, completer.gotMessages[1].Content, "user: Can we practice job interviews?")
	assert.Contains(t, completer.gotMessages[1].Content, "agent: Of course!")
}

func TestSynthesizeTitleNeverOverwrites(t *testing.T) {
	title := "Existing title"
	store := &fakeStore{
		session:    &sessions.Session{ID: 1, UserID: 7, Title: &title},
		transcript: []sessions.Message{{Sender: sessions.SenderUser, ContentText: "Hi"}},
	}
	completer := &fakeCompleter{response: "New title"}
	c := newTestController(store, completer)

	require.NoError(t, c.SynthesizeTitle(context.Background(), 1, 7))
	assert.Equal(t, 0, completer.calls)
	assert.Empty(t, store.titleSet)
}

func TestSynthesizeTitleSkipsEmptyTranscript(t *testing.T) {
	store := &fakeStore{
		session: &sessions.Session{ID: 1, UserID: 7},
	}
	completer := &fakeCompleter{response: "Title"}
	c := newTestController(store, completer)

	require.NoError(t, c.SynthesizeTitle(context.Background(), 1, 7))
	assert.Equal(t, 0, completer.calls)
	assert.Empty(t, store.titleSet)
}

func TestSynthesizeTitleCapsLongTranscripts(t *testing.T) {
	store := &fakeStore{
		session: &sessions.Session{ID: 1, UserID: 7},
		transcript: []sessions.Message{
			{Sender: sessions.SenderUser, ContentText: strings.Repeat("a", 3000)},
		},
	}
	completer := &fakeCompleter{response: "Long chat"}
	c := newTestController(store, completer)

	require.NoError(t, c.SynthesizeTitle(context.Background(), 1, 7))

	require.Len(t, completer.gotMessages, 2)
	content := completer.gotMessages[1].Content
	assert.True(t, strings.HasSuffix(content, "..."))
	assert.Equal(t, len(titlePrompt)+titleTranscriptLimit+3, len(content))
}

func TestSynthesizeTitleIgnoresMissingSession(t *testing.T) {
	store := &fakeStore{}
	completer := &fakeCompleter{}
	c := newTestController(store, completer)

	require.NoError(t, c.SynthesizeTitle(context.Background(), 42, 7))
	assert.Equal(t, 0, completer.calls)
}
