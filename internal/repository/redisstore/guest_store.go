package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/maazshahbaz/ai-humanizer/internal/model"
)

// DefaultGuestTTL bounds how long idle guest state is kept.
const DefaultGuestTTL = 30 * 24 * time.Hour

// GuestStore implements repository.GuestStore on Redis.
//
// Layout per guest: a list of JSON records capped to model.GuestHistoryCap
// (oldest evicted first) and an integer counter of successful rewrites.
type GuestStore struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

// NewGuestStore constructs a guest store. ttl<=0 uses DefaultGuestTTL.
func NewGuestStore(rdb redis.UniversalClient, ttl time.Duration) *GuestStore {
	if ttl <= 0 {
		ttl = DefaultGuestTTL
	}
	return &GuestStore{rdb: rdb, ttl: ttl}
}

type guestRecord struct {
	OriginalText  string    `json:"original_text"`
	RewrittenText string    `json:"rewritten_text"`
	CreatedAt     time.Time `json:"created_at"`
}

func historyKey(guestID string) string { return "guest:" + guestID + ":history" }
func countKey(guestID string) string   { return "guest:" + guestID + ":count" }

// UsedCount returns the guest's successful rewrite count; unknown guests have 0.
func (s *GuestStore) UsedCount(ctx context.Context, guestID string) (int64, error) {
	n, err := s.rdb.Get(ctx, countKey(guestID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("guest count: %w", err)
	}
	return n, nil
}

// Record appends rec, trims history to the cap and increments the counter in one MULTI.
// It returns the new counter value.
func (s *GuestStore) Record(ctx context.Context, guestID string, rec model.RewriteRecord) (int64, error) {
	b, err := json.Marshal(guestRecord{
		OriginalText:  rec.OriginalText,
		RewrittenText: rec.RewrittenText,
		CreatedAt:     rec.CreatedAt.UTC(),
	})
	if err != nil {
		return 0, err
	}

	hk, ck := historyKey(guestID), countKey(guestID)
	var incr *redis.IntCmd
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, hk, b)
		p.LTrim(ctx, hk, -model.GuestHistoryCap, -1)
		incr = p.Incr(ctx, ck)
		p.Expire(ctx, hk, s.ttl)
		p.Expire(ctx, ck, s.ttl)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("guest record: %w", err)
	}
	return incr.Val(), nil
}

// History returns the retained records, newest first.
func (s *GuestStore) History(ctx context.Context, guestID string) ([]model.RewriteRecord, error) {
	raw, err := s.rdb.LRange(ctx, historyKey(guestID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("guest history: %w", err)
	}
	out := make([]model.RewriteRecord, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var gr guestRecord
		if err := json.Unmarshal([]byte(raw[i]), &gr); err != nil {
			// a corrupt entry must not hide the rest
			continue
		}
		out = append(out, model.RewriteRecord{
			OriginalText:  gr.OriginalText,
			RewrittenText: gr.RewrittenText,
			CreatedAt:     gr.CreatedAt,
			Owner:         model.OwnerGuest,
		})
	}
	return out, nil
}

// Clear drops history and counter together.
func (s *GuestStore) Clear(ctx context.Context, guestID string) error {
	if err := s.rdb.Del(ctx, historyKey(guestID), countKey(guestID)).Err(); err != nil {
		return fmt.Errorf("guest clear: %w", err)
	}
	return nil
}
