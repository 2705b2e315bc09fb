package evaluations

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
)

var ErrInvalidScore = errors.New("scores must be between 0 and 100")

type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// Record stores one completed evaluation cycle.
func (s *Service) Record(ctx context.Context, e *Evaluation) (*Evaluation, error) {
	for _, score := range []float64{
		e.PronunciationScore, e.GrammarScore, e.VocabularyScore,
		e.FluencyScore, e.ExpressionScore, e.ConfidenceScore, e.OverallScore,
	} {
		if score < 0 || score > 100 {
			return nil, ErrInvalidScore
		}
	}
	saved, err := s.repo.Insert(ctx, e)
	if err != nil {
		logrus.Errorf("Failed to store evaluation for user %d: %v", e.UserID, err)
		return nil, err
	}
	return saved, nil
}

func (s *Service) ListByUser(ctx context.Context, userID int64) ([]Evaluation, error) {
	return s.repo.ListByUser(ctx, userID)
}
