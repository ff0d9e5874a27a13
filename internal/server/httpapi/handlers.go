package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/maazshahbaz/ai-humanizer/internal/errs"
	"github.com/maazshahbaz/ai-humanizer/internal/humanizer"
	"github.com/maazshahbaz/ai-humanizer/internal/model"
	"github.com/maazshahbaz/ai-humanizer/internal/service"
)

type registerRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=128"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=128"`
}

type humanizeRequest struct {
	Text        string `json:"text"` // checked by the gate, after the allowance
	Readability string `json:"readability,omitempty"`
	Purpose     string `json:"purpose,omitempty"`
	Strength    string `json:"strength,omitempty"`
}

type usageDTO struct {
	Owner         string `json:"owner"`
	GuestUsed     int64  `json:"guest_used"`
	GuestLimit    int64  `json:"guest_limit"`
	CreditBalance int64  `json:"credit_balance"`
	Plan          string `json:"plan"`
}

type recordDTO struct {
	ID            int64     `json:"id,omitempty"`
	OriginalText  string    `json:"original_text"`
	RewrittenText string    `json:"rewritten_text"`
	CreatedAt     time.Time `json:"created_at"`
	Owner         string    `json:"owner"`
}

type authResponse struct {
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	Imported    int       `json:"imported,omitempty"`
	Usage       usageDTO  `json:"usage"`
}

type humanizeResponse struct {
	Record recordDTO `json:"record"`
	Usage  usageDTO  `json:"usage"`
	State  string    `json:"state"`
}

type planDTO struct {
	Name       string   `json:"name"`
	PriceCents int64    `json:"price_cents"`
	Credits    int64    `json:"credits"`
	Features   []string `json:"features"`
}

func toUsage(u model.UsageState) usageDTO {
	plan := u.Plan
	if plan == "" {
		plan = model.PlanFree
	}
	return usageDTO{
		Owner:         string(u.Owner),
		GuestUsed:     u.GuestUsed,
		GuestLimit:    u.GuestLimit,
		CreditBalance: u.CreditBalance,
		Plan:          string(plan),
	}
}

func toRecord(r model.RewriteRecord) recordDTO {
	return recordDTO{
		ID:            r.ID,
		OriginalText:  r.OriginalText,
		RewrittenText: r.RewrittenText,
		CreatedAt:     r.CreatedAt,
		Owner:         string(r.Owner),
	}
}

func (a *API) listPlans(w http.ResponseWriter, r *http.Request) {
	offers := a.plans.List(r.Context())
	out := make([]planDTO, 0, len(offers))
	for _, o := range offers {
		out = append(out, planDTO{Name: string(o.Name), PriceCents: o.PriceCents, Credits: o.Credits, Features: o.Features})
	}
	writeJSON(w, http.StatusOK, map[string]any{"plans": out})
}

// register creates the account and adopts the caller's guest history when X-Guest-ID is sent.
func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeAndValidate(w, r, a.validate, &req) {
		return
	}
	gid, ok := guestID(r)
	if !ok {
		writeError(w, a.log, errs.Validation("malformed "+GuestHeader))
		return
	}

	res, err := a.auth.Register(r.Context(), req.Email, req.Password, gid)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{
		UserID:      res.User.ID.String(),
		Email:       res.User.Email,
		AccessToken: res.Tokens.AccessToken,
		ExpiresAt:   res.Tokens.ExpiresAt,
		Imported:    res.Imported,
		Usage:       toUsage(model.RegisteredUsage(model.SignupCredits)),
	})
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeAndValidate(w, r, a.validate, &req) {
		return
	}

	tok, u, err := a.auth.LoginWithIP(r.Context(), req.Email, req.Password, clientIP(r))
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	resp := authResponse{
		UserID:      u.ID.String(),
		Email:       u.Email,
		AccessToken: tok.AccessToken,
		ExpiresAt:   tok.ExpiresAt,
	}
	if s, err := a.sessions.Open(r.Context(), model.Identity{UserID: u.ID}); err == nil {
		resp.Usage = toUsage(s.Usage)
	} else {
		a.log.Warn("load usage after login", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, resp)
}

// logout revokes the bearer token and returns the cleared session state.
func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	b, _ := bearerFromCtx(r.Context())
	if err := a.auth.Logout(r.Context(), b.raw, b.expiresAt); err != nil {
		writeError(w, a.log, err)
		return
	}
	s, _ := SessionFromCtx(r.Context())
	s.Clear()
	writeJSON(w, http.StatusOK, map[string]any{"usage": toUsage(s.Usage)})
}

func (a *API) account(w http.ResponseWriter, r *http.Request) {
	s, _ := SessionFromCtx(r.Context())
	body := map[string]any{"usage": toUsage(s.Usage)}
	if s.Identity.IsRegistered() {
		body["user_id"] = s.Identity.UserID.String()
	} else {
		body["guest_id"] = s.Identity.GuestID
	}
	writeJSON(w, http.StatusOK, body)
}

func (a *API) deleteAccount(w http.ResponseWriter, r *http.Request) {
	s, _ := SessionFromCtx(r.Context())
	if err := a.auth.DeleteAccount(r.Context(), s.Identity.UserID); err != nil {
		writeError(w, a.log, err)
		return
	}
	if b, ok := bearerFromCtx(r.Context()); ok {
		if err := a.auth.Logout(r.Context(), b.raw, b.expiresAt); err != nil {
			a.log.Warn("revoke token of deleted account", zap.Error(err))
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) humanize(w http.ResponseWriter, r *http.Request) {
	var req humanizeRequest
	if !decodeAndValidate(w, r, a.validate, &req) {
		return
	}
	s, _ := SessionFromCtx(r.Context())

	res, err := a.gate.Humanize(r.Context(), s, service.HumanizeRequest{
		Text: req.Text,
		Options: humanizer.Options{
			Readability: humanizer.Readability(req.Readability),
			Purpose:     humanizer.Purpose(req.Purpose),
			Strength:    humanizer.Strength(req.Strength),
		},
	})
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, humanizeResponse{
		Record: toRecord(res.Record),
		Usage:  toUsage(res.Usage),
		State:  res.State.String(),
	})
}

func (a *API) listRewrites(w http.ResponseWriter, r *http.Request) {
	s, _ := SessionFromCtx(r.Context())
	limit, err1 := queryInt(r, "limit")
	offset, err2 := queryInt(r, "offset")
	if err1 != nil || err2 != nil {
		writeError(w, a.log, errs.Validation("limit and offset must be integers"))
		return
	}

	recs, err := a.history.List(r.Context(), s, limit, offset)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	out := make([]recordDTO, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toRecord(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"rewrites": out, "usage": toUsage(s.Usage)})
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
