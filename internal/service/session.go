package service

import (
	"context"

	"github.com/maazshahbaz/ai-humanizer/internal/errs"
	"github.com/maazshahbaz/ai-humanizer/internal/model"
	"github.com/maazshahbaz/ai-humanizer/internal/repository"
)

// Session is the per-caller view of identity and allowance. It is passed explicitly
// through the request and is never shared between callers.
type Session struct {
	Identity model.Identity
	Usage    model.UsageState
}

// Clear resets the session to an anonymous caller with no balance.
func (s *Session) Clear() {
	s.Identity = model.Identity{}
	s.Usage = model.UsageState{Plan: model.PlanFree}
}

// SessionManager loads usage for an identity from the backing stores.
type SessionManager struct {
	credits repository.CreditRepository
	guests  repository.GuestStore
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(credits repository.CreditRepository, guests repository.GuestStore) *SessionManager {
	return &SessionManager{credits: credits, guests: guests}
}

// Open builds a session for id and loads its usage.
func (m *SessionManager) Open(ctx context.Context, id model.Identity) (*Session, error) {
	s := &Session{Identity: id}
	if err := m.Refresh(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Refresh reloads the cached usage from the stores.
func (m *SessionManager) Refresh(ctx context.Context, s *Session) error {
	switch {
	case s.Identity.IsRegistered():
		bal, err := m.credits.Balance(ctx, s.Identity.UserID)
		if err != nil {
			return err
		}
		s.Usage = model.RegisteredUsage(bal)
	case s.Identity.GuestID != "":
		used, err := m.guests.UsedCount(ctx, s.Identity.GuestID)
		if err != nil {
			return err
		}
		s.Usage = model.GuestUsage(used)
	default:
		return errs.ErrUnauthorized
	}
	return nil
}
