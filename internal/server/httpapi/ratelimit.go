package httpapi

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimiter throttles requests per key using Redis, with an in-process fallback
// when Redis is unreachable.
type RateLimiter struct {
	limiter  *redis_rate.Limiter
	fallback *localLimiter
	limit    redis_rate.Limit
	keyFunc  func(*http.Request) string
	log      *zap.Logger
}

// NewRateLimiter builds a limiter. rdb may be nil, in which case only the local limiter is used.
func NewRateLimiter(rdb redis.UniversalClient, limit redis_rate.Limit, log *zap.Logger) *RateLimiter {
	if log == nil {
		log = zap.NewNop()
	}
	rl := &RateLimiter{
		fallback: newLocalLimiter(),
		limit:    limit,
		keyFunc:  KeyByIdentity,
		log:      log,
	}
	if rdb != nil {
		rl.limiter = redis_rate.NewLimiter(rdb)
	}
	return rl
}

// PerMinute returns a limit of n requests per minute with the given burst.
func PerMinute(n, burst int) redis_rate.Limit {
	return redis_rate.Limit{Rate: n, Burst: burst, Period: time.Minute}
}

// Handler enforces the limit on next.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rl.keyFunc(r)
		res := rl.allow(r.Context(), key)

		setRateLimitHeaders(w, res, rl.limit)
		if res.Allowed == 0 {
			writeRateLimitExceeded(w, res)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(ctx context.Context, key string) *redis_rate.Result {
	if rl.limiter != nil {
		res, err := rl.limiter.Allow(ctx, key, rl.limit)
		if err == nil {
			return res
		}
		rl.log.Warn("rate limiter backend error, using local limiter", zap.Error(err))
	}
	return rl.fallback.allow(key, rl.limit)
}

// KeyByIdentity keys by user or guest when a session is present, else by client IP.
func KeyByIdentity(r *http.Request) string {
	if s, ok := SessionFromCtx(r.Context()); ok {
		if s.Identity.IsRegistered() {
			return "ratelimit:user:" + s.Identity.UserID.String()
		}
		if s.Identity.GuestID != "" {
			return "ratelimit:guest:" + s.Identity.GuestID
		}
	}
	return "ratelimit:ip:" + clientIP(r)
}

// clientIP returns the remote host. X-Forwarded-For is trusted only via chi's RealIP upstream.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func setRateLimitHeaders(w http.ResponseWriter, res *redis_rate.Result, limit redis_rate.Limit) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit.Rate))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(res.ResetAfter).Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, res *redis_rate.Result) {
	retryAfter := int(res.RetryAfter.Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	writeJSON(w, http.StatusTooManyRequests, errorBody{Error: apiError{
		Code:    "RATE_LIMITED",
		Message: fmt.Sprintf("rate limit exceeded, retry after %d seconds", retryAfter),
	}})
}

type limiterEntry struct {
	mu         sync.Mutex
	limiter    *rate.Limiter
	lastAccess time.Time
}

type localLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	lastGC   time.Time
}

const localEntryTTL = 10 * time.Minute

func newLocalLimiter() *localLimiter {
	return &localLimiter{limiters: map[string]*limiterEntry{}, lastGC: time.Now()}
}

func (l *localLimiter) entry(key string, limit redis_rate.Limit) *limiterEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastGC) > localEntryTTL {
		for k, e := range l.limiters {
			e.mu.Lock()
			stale := now.Sub(e.lastAccess) > localEntryTTL
			e.mu.Unlock()
			if stale {
				delete(l.limiters, k)
			}
		}
		l.lastGC = now
	}

	e, ok := l.limiters[key]
	if !ok {
		perSec := float64(limit.Rate) / limit.Period.Seconds()
		e = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(perSec), limit.Burst)}
		l.limiters[key] = e
	}
	return e
}

func (l *localLimiter) allow(key string, limit redis_rate.Limit) *redis_rate.Result {
	e := l.entry(key, limit)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastAccess = time.Now()

	interval := time.Duration(float64(limit.Period) / float64(limit.Rate))
	res := &redis_rate.Result{Limit: limit, ResetAfter: interval, RetryAfter: -1}
	if e.limiter.Allow() {
		res.Allowed = 1
	} else {
		res.RetryAfter = interval
	}
	if rem := int(e.limiter.Tokens()); rem > 0 {
		res.Remaining = rem
	}
	return res
}
