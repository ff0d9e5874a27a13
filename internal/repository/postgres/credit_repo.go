package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/maazshahbaz/ai-humanizer/internal/errs"
	"github.com/maazshahbaz/ai-humanizer/internal/model"
)

// CreditRepo implements CreditRepository using PostgreSQL.
type CreditRepo struct{ db *DB }

// NewCreditRepo constructs a credit repository.
func NewCreditRepo(db *DB) *CreditRepo { return &CreditRepo{db: db} }

// Balance returns the user's current credit balance.
func (r *CreditRepo) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	const q = `SELECT credit_balance FROM user_credits WHERE user_id=$1`
	var bal int64
	if err := r.db.Pool.QueryRow(ctx, q, userID).Scan(&bal); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, errs.ErrNotFound
		}
		return 0, err
	}
	return bal, nil
}

// ChargeRewrite inserts the rewrite and decrements the balance with a floor at zero.
// Both happen in one transaction; when no credit is left nothing is written.
func (r *CreditRepo) ChargeRewrite(
	ctx context.Context, rec model.RewriteRecord,
) (out model.RewriteRecord, balance int64, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return model.RewriteRecord{}, 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	const ins = `
INSERT INTO rewrites (user_id, original_text, rewritten_text)
VALUES ($1, $2, $3)
RETURNING id, created_at`
	out = rec
	out.Owner = model.OwnerRegistered
	if err = tx.QueryRow(ctx, ins, rec.UserID, rec.OriginalText, rec.RewrittenText).Scan(&out.ID, &out.CreatedAt); err != nil {
		return model.RewriteRecord{}, 0, err
	}

	const dec = `
UPDATE user_credits
SET credit_balance = credit_balance - 1, updated_at = now()
WHERE user_id = $1 AND credit_balance > 0
RETURNING credit_balance`
	if err = tx.QueryRow(ctx, dec, rec.UserID).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = &errs.QuotaError{Track: string(model.OwnerRegistered), CTA: errs.CTAUpgrade}
		}
		return model.RewriteRecord{}, 0, err
	}
	return out, balance, nil
}
