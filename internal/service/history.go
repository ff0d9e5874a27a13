package service

import (
	"context"

	"github.com/maazshahbaz/ai-humanizer/internal/errs"
	"github.com/maazshahbaz/ai-humanizer/internal/model"
	"github.com/maazshahbaz/ai-humanizer/internal/repository"
)

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// HistoryService reads rewrite history for either track.
type HistoryService struct {
	rewrites repository.RewriteRepository
	guests   repository.GuestStore
}

// NewHistoryService constructs a HistoryService.
func NewHistoryService(rewrites repository.RewriteRepository, guests repository.GuestStore) *HistoryService {
	return &HistoryService{rewrites: rewrites, guests: guests}
}

// List returns records newest first. Guests always get their whole capped history.
func (h *HistoryService) List(ctx context.Context, s *Session, limit, offset int) ([]model.RewriteRecord, error) {
	if s == nil || s.Identity.IsAnonymous() {
		return nil, errs.ErrUnauthorized
	}
	if !s.Identity.IsRegistered() {
		return h.guests.History(ctx, s.Identity.GuestID)
	}

	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	return h.rewrites.List(ctx, s.Identity.UserID, limit, offset)
}
