package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofrs/uuid/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	pkgcrypto "github.com/maazshahbaz/ai-humanizer/internal/crypto"
	"github.com/maazshahbaz/ai-humanizer/internal/errs"
	"github.com/maazshahbaz/ai-humanizer/internal/humanizer"
	"github.com/maazshahbaz/ai-humanizer/internal/limiter"
	"github.com/maazshahbaz/ai-humanizer/internal/model"
	"github.com/maazshahbaz/ai-humanizer/internal/repository"
	"github.com/maazshahbaz/ai-humanizer/internal/repository/redisstore"
	"github.com/maazshahbaz/ai-humanizer/internal/service"
)

// memStore keeps users, balances and rewrites in memory.
type memStore struct {
	mu       sync.Mutex
	users    map[string]model.User
	balances map[uuid.UUID]int64
	recs     map[uuid.UUID][]model.RewriteRecord
	nextID   int64
}

var (
	_ repository.UserRepository    = (*memStore)(nil)
	_ repository.CreditRepository  = (*memStore)(nil)
	_ repository.RewriteRepository = (*memStore)(nil)
)

func newMemStore() *memStore {
	return &memStore{
		users:    map[string]model.User{},
		balances: map[uuid.UUID]int64{},
		recs:     map[uuid.UUID][]model.RewriteRecord{},
	}
}

func (m *memStore) Create(_ context.Context, u *model.User, credits int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Email]; ok {
		return errs.ErrAlreadyExists
	}
	m.users[u.Email] = *u
	m.balances[u.ID] = credits
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (m *memStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[email]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &u, nil
}

func (m *memStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, u := range m.users {
		if u.ID == id {
			delete(m.users, k)
			delete(m.balances, id)
			delete(m.recs, id)
			return nil
		}
	}
	return errs.ErrNotFound
}

func (m *memStore) Balance(_ context.Context, id uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balances[id]
	if !ok {
		return 0, errs.ErrNotFound
	}
	return b, nil
}

func (m *memStore) ChargeRewrite(_ context.Context, rec model.RewriteRecord) (model.RewriteRecord, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[rec.UserID] <= 0 {
		return model.RewriteRecord{}, 0, &errs.QuotaError{Track: "registered", CTA: errs.CTAUpgrade}
	}
	m.balances[rec.UserID]--
	m.nextID++
	rec.ID = m.nextID
	m.recs[rec.UserID] = append(m.recs[rec.UserID], rec)
	return rec, m.balances[rec.UserID], nil
}

func (m *memStore) List(_ context.Context, id uuid.UUID, limit, offset int) ([]model.RewriteRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := append([]model.RewriteRecord(nil), m.recs[id]...)
	sort.SliceStable(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *memStore) Import(_ context.Context, id uuid.UUID, recs []model.RewriteRecord) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// oldest first so that ids follow creation order
	for i := len(recs) - 1; i >= 0; i-- {
		r := recs[i]
		m.nextID++
		r.ID, r.UserID, r.Owner = m.nextID, id, model.OwnerRegistered
		m.recs[id] = append(m.recs[id], r)
	}
	return len(recs), nil
}

type allowAll struct{}

var _ limiter.Limiter = allowAll{}

func (allowAll) Allow(context.Context, string, []byte) (bool, time.Duration, error) {
	return true, 0, nil
}
func (allowAll) Success(context.Context, string, []byte) error { return nil }
func (allowAll) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	return false, 0, nil
}

type stubHumanizer struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (h *stubHumanizer) Humanize(_ context.Context, text string, _ humanizer.Options) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	if h.err != nil {
		return "", h.err
	}
	return "human: " + text, nil
}

func (h *stubHumanizer) Calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

type testEnv struct {
	srv   *httptest.Server
	store *memStore
	mr    *miniredis.Miniredis
	h     *stubHumanizer
}

func newTestEnv(t *testing.T, limit *RateLimiter) *testEnv {
	t.Helper()
	log := zaptest.NewLogger(t)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := newMemStore()
	guests := redisstore.NewGuestStore(rdb, 0)
	h := &stubHumanizer{}

	auth := service.NewAuthService(service.AuthDeps{
		Users:    store,
		Rewrites: store,
		Guests:   guests,
		Limiter:  allowAll{},
		Revoker:  redisstore.NewTokenDenylist(rdb),
		Hasher:   pkgcrypto.NewHasher(pkgcrypto.Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}),
		Log:      log,
	}, []byte("test-signing-key-0123456789abcdef"), time.Hour)

	router := NewRouter(Deps{
		Auth:     auth,
		Gate:     service.NewGateService(h, store, guests, nil, log),
		History:  service.NewHistoryService(store, guests),
		Plans:    service.NewPlanService(nil, log),
		Sessions: service.NewSessionManager(store, guests),
		Limiter:  limit,
		Health:   NewHealth(map[string]Checker{"redis": redisstore.NewChecker(rdb)}),
		CORS:     CORSConfig{AllowedOrigins: []string{"http://app.test"}, AllowCredentials: true},
		Log:      log,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, store: store, mr: mr, h: h}
}

type reqOpt func(*http.Request)

func withGuest(id string) reqOpt {
	return func(r *http.Request) { r.Header.Set(GuestHeader, id) }
}

func withToken(tok string) reqOpt {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }
}

func (e *testEnv) do(t *testing.T, method, path string, body any, opts ...reqOpt) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for _, o := range opts {
		o(req)
	}
	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		_ = json.NewDecoder(resp.Body).Decode(&out)
	}
	return resp, out
}

func errCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	c, _ := e["code"].(string)
	return c
}

const longText = "This paragraph was produced by a language model and needs to sound more natural to readers."
