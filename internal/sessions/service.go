package sessions

import (
	"context"
	"database/sql"
	"errors"

	"englishtutor/internal/agents"
	"englishtutor/internal/tokenusage"

	"github.com/sirupsen/logrus"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrNotSessionOwner = errors.New("session belongs to another user")
	ErrInvalidFeedback = errors.New("feedback must be -1, 0 or 1")
)

type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) ListActive(ctx context.Context, userID int64) ([]Session, error) {
	return s.repo.ListActive(ctx, userID)
}

// Create starts a new session. An empty or unknown type defaults to
// onboarding.
func (s *Service) Create(ctx context.Context, userID int64, sessionType string) (*Session, error) {
	if sessionType == "" || !agents.KnownType(sessionType) {
		sessionType = agents.TypeOnboarding
	}
	logrus.Debugf("Creating %s session for user %d", sessionType, userID)
	return s.repo.Create(ctx, userID, sessionType)
}

// GetOwned loads a session and verifies ownership. Soft-deleted sessions are
// reported as not found.
func (s *Service) GetOwned(ctx context.Context, sessionID, userID int64) (*Session, error) {
	session, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil || session.IsDeleted {
		return nil, ErrSessionNotFound
	}
	if session.UserID != userID {
		return nil, ErrNotSessionOwner
	}
	return session, nil
}

func (s *Service) SoftDelete(ctx context.Context, sessionID, userID int64) error {
	if _, err := s.GetOwned(ctx, sessionID, userID); err != nil {
		return err
	}
	err := s.repo.SoftDelete(ctx, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSessionNotFound
	}
	return err
}

// LoadTranscript returns a session's messages ascending by creation time.
// It intentionally skips the soft-delete filter so deleted sessions stay
// auditable.
func (s *Service) LoadTranscript(ctx context.Context, sessionID int64) ([]Message, error) {
	return s.repo.LoadTranscript(ctx, sessionID)
}

func (s *Service) SetTitleIfEmpty(ctx context.Context, sessionID int64, title string) error {
	return s.repo.SetTitleIfEmpty(ctx, sessionID, title)
}

func (s *Service) SetFeedback(ctx context.Context, sessionID, userID, messageID int64, feedback int) error {
	if feedback < -1 || feedback > 1 {
		return ErrInvalidFeedback
	}
	if _, err := s.GetOwned(ctx, sessionID, userID); err != nil {
		return err
	}
	err := s.repo.SetFeedback(ctx, sessionID, messageID, feedback)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrMessageNotFound
	}
	return err
}

func (s *Service) CompleteTurn(ctx context.Context, sessionID int64, userText, userAudioPath, agentText string, usage *tokenusage.Record) (*Message, *Message, error) {
	logrus.Debugf("Persisting completed turn for session %d", sessionID)
	return s.repo.CompleteTurn(ctx, sessionID, userText, userAudioPath, agentText, usage)
}
