package httpapi

import (
	"net/http"
	"strings"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"

	"github.com/maazshahbaz/ai-humanizer/internal/errs"
)

func TestHealthAndPlans(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, nil)

	resp, body := e.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", body["status"])

	resp, body = e.do(t, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", body["status"])

	resp, body = e.do(t, http.MethodGet, "/v1/plans", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	plans, _ := body["plans"].([]any)
	require.Len(t, plans, 3)
	first, _ := plans[0].(map[string]any)
	require.Equal(t, "Free", first["name"])
}

func TestReadiness_RedisDown(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, nil)
	e.mr.Close()

	resp, body := e.do(t, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	require.Equal(t, "degraded", body["status"])
}

func TestGuestFlow_MintsIDAndEnforcesLimit(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, nil)

	resp, body := e.do(t, http.MethodGet, "/v1/account", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	gid := resp.Header.Get(GuestHeader)
	_, err := uuid.FromString(gid)
	require.NoError(t, err, "server mints a guest id")
	require.Equal(t, gid, body["guest_id"])

	for i := 1; i <= 3; i++ {
		resp, body = e.do(t, http.MethodPost, "/v1/humanize", map[string]any{"text": longText}, withGuest(gid))
		require.Equal(t, http.StatusOK, resp.StatusCode, body)
		require.Equal(t, "settled", body["state"])
		usage, _ := body["usage"].(map[string]any)
		require.EqualValues(t, i, usage["guest_used"])
	}

	resp, body = e.do(t, http.MethodPost, "/v1/humanize", map[string]any{"text": longText}, withGuest(gid))
	require.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	require.Equal(t, "QUOTA_EXCEEDED", errCode(body))
	apiErr, _ := body["error"].(map[string]any)
	require.Equal(t, errs.CTASignUp, apiErr["cta"])
	require.Equal(t, 3, e.h.Calls())

	// an exhausted guest hears about the quota even when the input is bad
	for _, body := range []map[string]any{{"text": ""}, {}, {"text": "short"}} {
		resp, out := e.do(t, http.MethodPost, "/v1/humanize", body, withGuest(gid))
		require.Equal(t, http.StatusPaymentRequired, resp.StatusCode, body)
		require.Equal(t, "QUOTA_EXCEEDED", errCode(out))
	}
	require.Equal(t, 3, e.h.Calls())

	resp, body = e.do(t, http.MethodGet, "/v1/rewrites", nil, withGuest(gid))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	recs, _ := body["rewrites"].([]any)
	require.Len(t, recs, 3)
}

func TestHumanize_ValidationAndProviderErrors(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, nil)
	gid := uuid.Must(uuid.NewV4()).String()

	resp, body := e.do(t, http.MethodPost, "/v1/humanize", map[string]any{"text": "too short"}, withGuest(gid))
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.Equal(t, "VALIDATION", errCode(body))

	resp, body = e.do(t, http.MethodPost, "/v1/humanize", map[string]any{}, withGuest(gid))
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.Contains(t, body["error"].(map[string]any)["message"], "text is required")

	resp, body = e.do(t, http.MethodPost, "/v1/humanize", map[string]any{"text": longText, "strength": "Max"}, withGuest(gid))
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPost, "/v1/humanize", map[string]any{"text": longText, "bogus": 1}, withGuest(gid))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPost, "/v1/humanize", map[string]any{"text": longText}, withGuest("not-a-uuid"))
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	cases := []struct {
		err       error
		status    int
		code      string
		retryable bool
	}{
		{errs.ErrProvider, http.StatusBadGateway, "PROVIDER", true},
		{errs.ErrInsufficientProviderCredits, http.StatusBadGateway, "PROVIDER", false},
		{errs.ErrTimeout, http.StatusGatewayTimeout, "TIMEOUT", true},
		{errs.ErrConfiguration, http.StatusServiceUnavailable, "CONFIGURATION", false},
	}
	for _, tc := range cases {
		e.h.mu.Lock()
		e.h.err = tc.err
		e.h.mu.Unlock()
		resp, body = e.do(t, http.MethodPost, "/v1/humanize", map[string]any{"text": longText}, withGuest(gid))
		require.Equal(t, tc.status, resp.StatusCode, tc.err)
		require.Equal(t, tc.code, errCode(body))
		retry, _ := body["error"].(map[string]any)["retryable"].(bool)
		require.Equal(t, tc.retryable, retry, tc.err)
	}

	// failures are never charged
	resp, body = e.do(t, http.MethodGet, "/v1/account", nil, withGuest(gid))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 0, body["usage"].(map[string]any)["guest_used"])
}

func TestRegister_MigratesGuestAndCharges(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, nil)
	gid := uuid.Must(uuid.NewV4()).String()

	for i := 0; i < 2; i++ {
		resp, _ := e.do(t, http.MethodPost, "/v1/humanize", map[string]any{"text": longText}, withGuest(gid))
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, body := e.do(t, http.MethodPost, "/v1/auth/register",
		map[string]any{"email": "new@example.com", "password": "secret1"}, withGuest(gid))
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	require.EqualValues(t, 2, body["imported"])
	tok, _ := body["access_token"].(string)
	require.NotEmpty(t, tok)

	resp, body = e.do(t, http.MethodGet, "/v1/rewrites", nil, withToken(tok))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	recs, _ := body["rewrites"].([]any)
	require.Len(t, recs, 2)

	// guest storage is empty after migration
	resp, body = e.do(t, http.MethodGet, "/v1/rewrites", nil, withGuest(gid))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, body["rewrites"])

	resp, body = e.do(t, http.MethodPost, "/v1/humanize", map[string]any{"text": longText}, withToken(tok))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	usage, _ := body["usage"].(map[string]any)
	require.EqualValues(t, 99, usage["credit_balance"])
	require.Equal(t, "Free", usage["plan"])
	rec, _ := body["record"].(map[string]any)
	require.Equal(t, "human: "+longText, rec["rewritten_text"])

	resp, body = e.do(t, http.MethodPost, "/v1/auth/register",
		map[string]any{"email": "new@example.com", "password": "secret1"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, "ALREADY_EXISTS", errCode(body))

	resp, body = e.do(t, http.MethodPost, "/v1/auth/register", map[string]any{"email": "nope", "password": "1"})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	msg, _ := body["error"].(map[string]any)["message"].(string)
	require.True(t, strings.Contains(msg, "email") && strings.Contains(msg, "password"), msg)
}

func TestRegistered_ZeroBalanceRejected(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, nil)

	_, body := e.do(t, http.MethodPost, "/v1/auth/register", map[string]any{"email": "z@example.com", "password": "secret1"})
	tok, _ := body["access_token"].(string)
	uid := uuid.FromStringOrNil(body["user_id"].(string))
	e.store.mu.Lock()
	e.store.balances[uid] = 0
	e.store.mu.Unlock()

	resp, body := e.do(t, http.MethodPost, "/v1/humanize", map[string]any{"text": longText}, withToken(tok))
	require.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	require.Equal(t, errs.CTAUpgrade, body["error"].(map[string]any)["cta"])
	require.Zero(t, e.h.Calls())
}

func TestLoginLogoutAndDelete(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, nil)

	resp, _ := e.do(t, http.MethodPost, "/v1/auth/register", map[string]any{"email": "l@example.com", "password": "secret1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := e.do(t, http.MethodPost, "/v1/auth/login", map[string]any{"email": "l@example.com", "password": "wrong!"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "UNAUTHORIZED", errCode(body))

	resp, body = e.do(t, http.MethodPost, "/v1/auth/login", map[string]any{"email": "l@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tok, _ := body["access_token"].(string)
	require.EqualValues(t, 100, body["usage"].(map[string]any)["credit_balance"])

	resp, body = e.do(t, http.MethodGet, "/v1/account", nil, withToken(tok))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "registered", body["usage"].(map[string]any)["owner"])

	resp, body = e.do(t, http.MethodPost, "/v1/auth/logout", nil, withToken(tok))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	usage, _ := body["usage"].(map[string]any)
	require.EqualValues(t, 0, usage["credit_balance"])
	require.Equal(t, "Free", usage["plan"])

	resp, _ = e.do(t, http.MethodGet, "/v1/account", nil, withToken(tok))
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "revoked token")

	resp, _ = e.do(t, http.MethodPost, "/v1/auth/logout", nil, withGuest(uuid.Must(uuid.NewV4()).String()))
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "guests cannot log out")

	_, body = e.do(t, http.MethodPost, "/v1/auth/login", map[string]any{"email": "l@example.com", "password": "secret1"})
	tok, _ = body["access_token"].(string)
	resp, _ = e.do(t, http.MethodDelete, "/v1/account", nil, withToken(tok))
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPost, "/v1/auth/login", map[string]any{"email": "l@example.com", "password": "secret1"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestBearer_Invalid(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, nil)

	resp, _ := e.do(t, http.MethodGet, "/v1/account", nil, withToken("garbage"))
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = e.do(t, http.MethodDelete, "/v1/account", nil, withGuest(uuid.Must(uuid.NewV4()).String()))
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCORS(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, nil)

	req, _ := http.NewRequest(http.MethodOptions, e.srv.URL+"/v1/humanize", nil)
	req.Header.Set("Origin", "http://app.test")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, "http://app.test", resp.Header.Get("Access-Control-Allow-Origin"))
	require.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), GuestHeader)

	req, _ = http.NewRequest(http.MethodGet, e.srv.URL+"/v1/plans", nil)
	req.Header.Set("Origin", "http://evil.test")
	resp, err = e.srv.Client().Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestHumanize_RateLimited(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, NewRateLimiter(nil, PerMinute(2, 2), nil))
	gid := uuid.Must(uuid.NewV4()).String()

	for i := 0; i < 2; i++ {
		resp, _ := e.do(t, http.MethodPost, "/v1/humanize", map[string]any{"text": longText}, withGuest(gid))
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, body := e.do(t, http.MethodPost, "/v1/humanize", map[string]any{"text": longText}, withGuest(gid))
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.Equal(t, "RATE_LIMITED", errCode(body))
	require.NotEmpty(t, resp.Header.Get("Retry-After"))

	// another guest has its own bucket
	resp, _ = e.do(t, http.MethodPost, "/v1/humanize", map[string]any{"text": longText}, withGuest(uuid.Must(uuid.NewV4()).String()))
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
