package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/maazshahbaz/ai-humanizer/internal/model"
	"github.com/maazshahbaz/ai-humanizer/internal/repository"
)

// PlanService serves the public plan catalog.
type PlanService struct {
	repo repository.PlanRepository
	log  *zap.Logger
}

// NewPlanService constructs a PlanService. repo may be nil, in which case the built-in catalog is served.
func NewPlanService(repo repository.PlanRepository, log *zap.Logger) *PlanService {
	if log == nil {
		log = zap.NewNop()
	}
	return &PlanService{repo: repo, log: log}
}

// List returns the plans table, or the built-in catalog when the table is empty or unreadable.
func (p *PlanService) List(ctx context.Context) []model.PlanOffer {
	if p.repo == nil {
		return model.Catalog()
	}
	offers, err := p.repo.List(ctx)
	if err != nil {
		p.log.Warn("list plans", zap.Error(err))
		return model.Catalog()
	}
	if len(offers) == 0 {
		return model.Catalog()
	}
	return offers
}
