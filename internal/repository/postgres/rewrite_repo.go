package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/maazshahbaz/ai-humanizer/internal/model"
)

// RewriteRepo implements RewriteRepository using PostgreSQL.
type RewriteRepo struct{ db *DB }

// NewRewriteRepo constructs a rewrite history repository.
func NewRewriteRepo(db *DB) *RewriteRepo { return &RewriteRepo{db: db} }

// List returns a page of the user's rewrites, newest first.
func (r *RewriteRepo) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.RewriteRecord, error) {
	const q = `
SELECT id, user_id, original_text, rewritten_text, created_at
FROM rewrites
WHERE user_id=$1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3`
	rows, err := r.db.Pool.Query(ctx, q, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.RewriteRecord, 0, limit)
	for rows.Next() {
		rec := model.RewriteRecord{Owner: model.OwnerRegistered}
		if err = rows.Scan(&rec.ID, &rec.UserID, &rec.OriginalText, &rec.RewrittenText, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Import re-creates guest records under userID in one transaction.
func (r *RewriteRepo) Import(ctx context.Context, userID uuid.UUID, recs []model.RewriteRecord) (n int, err error) {
	if len(recs) == 0 {
		return 0, nil
	}
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
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
INSERT INTO rewrites (user_id, original_text, rewritten_text, created_at)
VALUES ($1, $2, $3, $4)`
	for i, rec := range recs {
		created := rec.CreatedAt
		if created.IsZero() {
			created = time.Now().UTC()
		}
		if _, err = tx.Exec(ctx, ins, userID, rec.OriginalText, rec.RewrittenText, created); err != nil {
			return 0, fmt.Errorf("import record[%d]: %w", i, err)
		}
	}
	return len(recs), nil
}
