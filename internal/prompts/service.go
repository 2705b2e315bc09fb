package prompts

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

//go:embed defaults/*.txt
var defaultPrompts embed.FS

var (
	ErrVersionNotFound = errors.New("prompt version not found")
	ErrUnknownAgent    = errors.New("unknown agent key")
	ErrEmptyPrompt     = errors.New("prompt text is empty")
)

type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// ActiveOrDefault returns the active prompt text for a persona, falling back
// to the embedded default when nothing has been saved yet.
func (s *Service) ActiveOrDefault(ctx context.Context, agentKey string) (string, error) {
	prompt, err := s.repo.GetActive(ctx, agentKey)
	if err != nil {
		return "", err
	}
	if prompt != nil {
		return prompt.PromptText, nil
	}
	return DefaultPrompt(agentKey)
}

// Active returns the stored active version, or nil with the embedded default
// text when the persona has no saved versions.
func (s *Service) Active(ctx context.Context, agentKey string) (*AgentPrompt, string, error) {
	prompt, err := s.repo.GetActive(ctx, agentKey)
	if err != nil {
		return nil, "", err
	}
	if prompt != nil {
		return prompt, prompt.PromptText, nil
	}
	text, err := DefaultPrompt(agentKey)
	if err != nil {
		return nil, "", err
	}
	return nil, text, nil
}

func (s *Service) History(ctx context.Context, agentKey string) ([]AgentPrompt, error) {
	return s.repo.GetHistory(ctx, agentKey)
}

func (s *Service) Save(ctx context.Context, agentKey, promptText string) (*AgentPrompt, error) {
	if promptText == "" {
		return nil, ErrEmptyPrompt
	}
	prompt, err := s.repo.SaveNewVersion(ctx, agentKey, promptText)
	if err != nil {
		logrus.Errorf("Failed to save prompt for %s: %v", agentKey, err)
		return nil, err
	}
	logrus.Infof("Saved prompt for %s as version %d", agentKey, prompt.Version)
	return prompt, nil
}

func (s *Service) Restore(ctx context.Context, agentKey string, version int) error {
	err := s.repo.RestoreVersion(ctx, agentKey, version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrVersionNotFound
		}
		logrus.Errorf("Failed to restore prompt version %d for %s: %v", version, agentKey, err)
		return err
	}
	logrus.Infof("Restored prompt version %d for %s", version, agentKey)
	return nil
}

// DefaultPrompt returns the embedded instruction text shipped with the binary.
func DefaultPrompt(agentKey string) (string, error) {
	data, err := defaultPrompts.ReadFile(fmt.Sprintf("defaults/%s.txt", agentKey))
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownAgent, agentKey)
	}
	return string(data), nil
}
