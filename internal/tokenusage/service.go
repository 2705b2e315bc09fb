package tokenusage

import (
	"context"
)

// TokenUnitPrice is the flat cost estimate applied per 1000 tokens.
const TokenUnitPrice = 0.001

// Summary is the admin view of usage: recent rows plus totals computed at
// read time.
type Summary struct {
	Records     []Record `json:"records"`
	TotalTokens int64    `json:"total_tokens"`
	TotalCost   float64  `json:"total_cost"`
}

type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Summary(ctx context.Context, limit int) (*Summary, error) {
	if limit <= 0 {
		limit = 100
	}
	records, err := s.repo.GetRecent(ctx, limit)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.GetTotalTokens(ctx)
	if err != nil {
		return nil, err
	}
	return &Summary{
		Records:     records,
		TotalTokens: total,
		TotalCost:   EstimateCost(total),
	}, nil
}

// EstimateCost converts a token count into the flat-rate cost estimate.
func EstimateCost(tokens int64) float64 {
	return float64(tokens) / 1000 * TokenUnitPrice
}
