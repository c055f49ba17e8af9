package partners

import (
	"context"
	"fmt"
	"strings"

	"github.com/agape-erp/agape-erp/internal/masterdata/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Partner, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Partner, error) {
	if id <= 0 {
		return Partner{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, partner Partner) (Partner, error) {
	if err := s.validate(partner); err != nil {
		return Partner{}, err
	}
	return s.repo.Create(ctx, partner)
}

func (s *Service) Update(ctx context.Context, id int64, partner Partner) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	if err := s.validate(partner); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, partner)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) validate(partner Partner) error {
	if strings.TrimSpace(partner.Code) == "" {
		return fmt.Errorf("partner code: %w", shared.ErrRequiredField)
	}
	if strings.TrimSpace(partner.Name) == "" {
		return fmt.Errorf("partner name: %w", shared.ErrRequiredField)
	}
	return nil
}
