package curriculum

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
)

var ErrInvalidLevel = errors.New("level must be between 1 and 8")

type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// GetByLevel returns nil when the level has no curriculum row yet.
func (s *Service) GetByLevel(ctx context.Context, level int) (*Curriculum, error) {
	return s.repo.GetByLevel(ctx, level)
}

func (s *Service) List(ctx context.Context) ([]Curriculum, error) {
	return s.repo.List(ctx)
}

func (s *Service) Save(ctx context.Context, cur *Curriculum) (*Curriculum, error) {
	if cur.Level < 1 || cur.Level > 8 {
		return nil, ErrInvalidLevel
	}
	saved, err := s.repo.Upsert(ctx, cur)
	if err != nil {
		logrus.Errorf("Failed to save curriculum for level %d: %v", cur.Level, err)
		return nil, err
	}
	logrus.Infof("Saved curriculum for level %d", cur.Level)
	return saved, nil
}
