package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/maazshahbaz/ai-humanizer/internal/errs"
	"github.com/maazshahbaz/ai-humanizer/internal/model"
)

// GuestHeader carries the device-scoped guest handle.
const GuestHeader = "X-Guest-ID"

// bearerToken extracts the token from an "Authorization: Bearer ..." header.
func bearerToken(r *http.Request) string {
	const prefix = "bearer "
	v := r.Header.Get("Authorization")
	if len(v) > len(prefix) && strings.EqualFold(v[:len(prefix)], prefix) {
		return strings.TrimSpace(v[len(prefix):])
	}
	return ""
}

// guestID returns the caller's guest handle. ok is false when the header is present but malformed.
func guestID(r *http.Request) (id string, ok bool) {
	v := strings.TrimSpace(r.Header.Get(GuestHeader))
	if v == "" {
		return "", true
	}
	u, err := uuid.FromString(v)
	if err != nil {
		return "", false
	}
	return u.String(), true
}

// identify resolves the caller and opens its session. A valid bearer token wins over
// the guest header; a guest without a handle gets a fresh one echoed in the response.
func (a *API) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var id model.Identity

		if tok := bearerToken(r); tok != "" {
			uid, exp, err := a.auth.ParseAccessToken(ctx, tok)
			if err != nil {
				writeError(w, a.log, err)
				return
			}
			id.UserID = uid
			ctx = withBearer(ctx, bearer{raw: tok, expiresAt: exp})
		} else {
			gid, ok := guestID(r)
			if !ok {
				writeError(w, a.log, errs.Validation("malformed "+GuestHeader))
				return
			}
			if gid == "" {
				u, err := uuid.NewV4()
				if err != nil {
					writeError(w, a.log, err)
					return
				}
				gid = u.String()
			}
			w.Header().Set(GuestHeader, gid)
			id.GuestID = gid
		}

		s, err := a.sessions.Open(ctx, id)
		if err != nil {
			if id.IsRegistered() && errors.Is(err, errs.ErrNotFound) {
				// token outlived its account
				err = errs.ErrUnauthorized
			}
			a.log.Warn("open session", zap.Error(err))
			writeError(w, a.log, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(ctx, s)))
	})
}

// requireUser rejects callers without a verified bearer token.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := SessionFromCtx(r.Context())
		if !ok || !s.Identity.IsRegistered() {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: apiError{Code: "UNAUTHORIZED", Message: "authentication required"}})
			return
		}
		next.ServeHTTP(w, r)
	})
}
