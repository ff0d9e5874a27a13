package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/maazshahbaz/ai-humanizer/internal/errs"
	"github.com/maazshahbaz/ai-humanizer/internal/humanizer"
	"github.com/maazshahbaz/ai-humanizer/internal/limiter"
	"github.com/maazshahbaz/ai-humanizer/internal/model"
	"github.com/maazshahbaz/ai-humanizer/internal/repository"
)

type fakeUsers struct {
	mu      sync.Mutex
	byEmail map[string]*model.User
	credits map[uuid.UUID]int64

	createErr error
	getErr    error
	deleteErr error
}

var _ repository.UserRepository = (*fakeUsers)(nil)

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byEmail: map[string]*model.User{}, credits: map[uuid.UUID]int64{}}
}

func (f *fakeUsers) Create(_ context.Context, u *model.User, initialCredits int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, exists := f.byEmail[u.Email]; exists {
		return errs.ErrAlreadyExists
	}
	cpy := *u
	f.byEmail[u.Email] = &cpy
	f.credits[u.ID] = initialCredits
	return nil
}
func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byEmail {
		if u.ID == id {
			c := *u
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}
func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byEmail[email]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *u
	return &c, nil
}
func (f *fakeUsers) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for k, u := range f.byEmail {
		if u.ID == id {
			delete(f.byEmail, k)
			delete(f.credits, id)
			return nil
		}
	}
	return errs.ErrNotFound
}

// fakeLedger implements both CreditRepository and RewriteRepository over one map.
type fakeLedger struct {
	mu       sync.Mutex
	balances map[uuid.UUID]int64
	recs     map[uuid.UUID][]model.RewriteRecord
	nextID   int64

	balanceErr error
	chargeErr  error
	listErr    error
	importErr  error

	chargeCalls int
}

var (
	_ repository.CreditRepository  = (*fakeLedger)(nil)
	_ repository.RewriteRepository = (*fakeLedger)(nil)
)

func newFakeLedger() *fakeLedger {
	return &fakeLedger{balances: map[uuid.UUID]int64{}, recs: map[uuid.UUID][]model.RewriteRecord{}}
}

func (f *fakeLedger) Balance(_ context.Context, userID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balanceErr != nil {
		return 0, f.balanceErr
	}
	b, ok := f.balances[userID]
	if !ok {
		return 0, errs.ErrNotFound
	}
	return b, nil
}

func (f *fakeLedger) ChargeRewrite(_ context.Context, rec model.RewriteRecord) (model.RewriteRecord, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chargeCalls++
	if f.chargeErr != nil {
		return model.RewriteRecord{}, 0, f.chargeErr
	}
	if f.balances[rec.UserID] <= 0 {
		return model.RewriteRecord{}, 0, &errs.QuotaError{Track: "registered", CTA: errs.CTAUpgrade}
	}
	f.balances[rec.UserID]--
	f.nextID++
	rec.ID = f.nextID
	rec.CreatedAt = time.Now().UTC()
	rec.Owner = model.OwnerRegistered
	f.recs[rec.UserID] = append(f.recs[rec.UserID], rec)
	return rec, f.balances[rec.UserID], nil
}

func (f *fakeLedger) List(_ context.Context, userID uuid.UUID, limit, offset int) ([]model.RewriteRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	all := append([]model.RewriteRecord(nil), f.recs[userID]...)
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (f *fakeLedger) Import(_ context.Context, userID uuid.UUID, recs []model.RewriteRecord) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.importErr != nil {
		return 0, f.importErr
	}
	for _, r := range recs {
		f.nextID++
		r.ID = f.nextID
		r.UserID = userID
		r.Owner = model.OwnerRegistered
		f.recs[userID] = append(f.recs[userID], r)
	}
	return len(recs), nil
}

type fakeGuests struct {
	mu    sync.Mutex
	count map[string]int64
	hist  map[string][]model.RewriteRecord

	usedErr    error
	recordErr  error
	historyErr error
	clearErr   error
}

var _ repository.GuestStore = (*fakeGuests)(nil)

func newFakeGuests() *fakeGuests {
	return &fakeGuests{count: map[string]int64{}, hist: map[string][]model.RewriteRecord{}}
}

func (f *fakeGuests) UsedCount(_ context.Context, guestID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.usedErr != nil {
		return 0, f.usedErr
	}
	return f.count[guestID], nil
}

func (f *fakeGuests) Record(_ context.Context, guestID string, rec model.RewriteRecord) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recordErr != nil {
		return 0, f.recordErr
	}
	// newest first, capped
	h := append([]model.RewriteRecord{rec}, f.hist[guestID]...)
	if len(h) > model.GuestHistoryCap {
		h = h[:model.GuestHistoryCap]
	}
	f.hist[guestID] = h
	f.count[guestID]++
	return f.count[guestID], nil
}

func (f *fakeGuests) History(_ context.Context, guestID string) ([]model.RewriteRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return append([]model.RewriteRecord(nil), f.hist[guestID]...), nil
}

func (f *fakeGuests) Clear(_ context.Context, guestID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clearErr != nil {
		return f.clearErr
	}
	delete(f.hist, guestID)
	delete(f.count, guestID)
	return nil
}

type fakeLimiter struct {
	allowOK  bool
	allowErr error

	failBlocked bool
	failErr     error

	successErr error

	allowCalls   int
	failureCalls int
	successCalls int
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(context.Context, string, []byte) (bool, time.Duration, error) {
	l.allowCalls++
	return l.allowOK, 0, l.allowErr
}
func (l *fakeLimiter) Success(context.Context, string, []byte) error {
	l.successCalls++
	return l.successErr
}
func (l *fakeLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	l.failureCalls++
	return l.failBlocked, 0, l.failErr
}

type fakeRevoker struct {
	revoked map[string]time.Time
	err     error
}

var _ TokenRevoker = (*fakeRevoker)(nil)

func (r *fakeRevoker) Revoke(_ context.Context, token string, exp time.Time) error {
	if r.err != nil {
		return r.err
	}
	if r.revoked == nil {
		r.revoked = map[string]time.Time{}
	}
	r.revoked[token] = exp
	return nil
}
func (r *fakeRevoker) IsRevoked(_ context.Context, token string) (bool, error) {
	if r.err != nil {
		return false, r.err
	}
	_, ok := r.revoked[token]
	return ok, nil
}

// fakeHumanizer answers with a fixed output or error and records what it was asked.
type fakeHumanizer struct {
	mu      sync.Mutex
	out     string
	err     error
	calls   int
	gotOpt  humanizer.Options
	gotText string
	block   chan struct{} // when set, Humanize waits for it or ctx
}

var _ Humanizer = (*fakeHumanizer)(nil)

func (h *fakeHumanizer) Humanize(ctx context.Context, text string, opt humanizer.Options) (string, error) {
	h.mu.Lock()
	h.calls++
	h.gotOpt = opt
	h.gotText = text
	block := h.block
	h.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if h.err != nil {
		return "", h.err
	}
	if h.out == "" {
		return "rewritten: " + text, nil
	}
	return h.out, nil
}

type fakePlans struct {
	offers []model.PlanOffer
	err    error
}

var _ repository.PlanRepository = (*fakePlans)(nil)

func (p *fakePlans) List(context.Context) ([]model.PlanOffer, error) {
	return p.offers, p.err
}

var errBoom = errors.New("boom")

// longText is comfortably above the provider's minimum length.
const longText = "This paragraph was produced by a language model and needs to sound more natural to readers."
