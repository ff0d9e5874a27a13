package postgres

import (
	"context"

	"github.com/maazshahbaz/ai-humanizer/internal/model"
)

// PlanRepo reads the plans table.
type PlanRepo struct{ db *DB }

// NewPlanRepo constructs a plan repository.
func NewPlanRepo(db *DB) *PlanRepo { return &PlanRepo{db: db} }

// List returns all plans ordered by price.
func (r *PlanRepo) List(ctx context.Context) ([]model.PlanOffer, error) {
	const q = `SELECT name, price_cents, credit_limit, features FROM plans ORDER BY price_cents ASC`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PlanOffer
	for rows.Next() {
		var (
			p    model.PlanOffer
			name string
		)
		if err = rows.Scan(&name, &p.PriceCents, &p.Credits, &p.Features); err != nil {
			return nil, err
		}
		p.Name = model.Plan(name)
		out = append(out, p)
	}
	return out, rows.Err()
}
