package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/maazshahbaz/ai-humanizer/internal/model"
)

// CreditRepository owns the per-user credit balance.
type CreditRepository interface {
	// Balance returns the current balance.
	Balance(ctx context.Context, userID uuid.UUID) (int64, error)
	// ChargeRewrite stores the record and takes one credit in a single transaction.
	// It fails with errs.ErrQuotaExceeded if the balance is already zero.
	ChargeRewrite(ctx context.Context, rec model.RewriteRecord) (model.RewriteRecord, int64, error)
}

// RewriteRepository reads and imports registered history.
type RewriteRepository interface {
	// List returns the user's records, newest first.
	List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.RewriteRecord, error)
	// Import attributes guest records to userID, keeping their timestamps.
	Import(ctx context.Context, userID uuid.UUID, recs []model.RewriteRecord) (int, error)
}

// GuestStore keeps the device-scoped allowance and capped history of guests.
type GuestStore interface {
	// UsedCount returns how many successful rewrites the guest performed.
	UsedCount(ctx context.Context, guestID string) (int64, error)
	// Record appends rec to the capped history and bumps the counter.
	Record(ctx context.Context, guestID string, rec model.RewriteRecord) (int64, error)
	// History returns the retained records, newest first.
	History(ctx context.Context, guestID string) ([]model.RewriteRecord, error)
	// Clear drops both history and counter.
	Clear(ctx context.Context, guestID string) error
}

// PlanRepository lists the plans table.
type PlanRepository interface {
	List(ctx context.Context) ([]model.PlanOffer, error)
}
