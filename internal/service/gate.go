package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/maazshahbaz/ai-humanizer/internal/errs"
	"github.com/maazshahbaz/ai-humanizer/internal/humanizer"
	"github.com/maazshahbaz/ai-humanizer/internal/model"
	"github.com/maazshahbaz/ai-humanizer/internal/repository"
)

// GateState is the position of one request in the usage gate.
type GateState int

const (
	StateIdle GateState = iota
	StateValidating
	StateEligible
	StateInFlight
	StateSettled
	StateRejected
	StateFailed
)

func (s GateState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateEligible:
		return "eligible"
	case StateInFlight:
		return "in_flight"
	case StateSettled:
		return "settled"
	case StateRejected:
		return "rejected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Humanizer rewrites text. *humanizer.Client satisfies it.
type Humanizer interface {
	Humanize(ctx context.Context, content string, opts humanizer.Options) (string, error)
}

// Recorder receives gate outcomes. A nil Recorder is ignored.
type Recorder interface {
	GateOutcome(track model.OwnerKind, state GateState)
	CreditCharged()
}

// HumanizeRequest is one rewrite request.
type HumanizeRequest struct {
	Text    string
	Options humanizer.Options
}

// HumanizeResult is returned on a settled request.
type HumanizeResult struct {
	Record model.RewriteRecord
	Usage  model.UsageState
	State  GateState
}

// GateService decides eligibility, calls the provider and settles accounting.
type GateService struct {
	h       Humanizer
	credits repository.CreditRepository
	guests  repository.GuestStore
	rec     Recorder
	log     *zap.Logger
}

// NewGateService constructs a GateService. rec and log may be nil.
func NewGateService(h Humanizer, credits repository.CreditRepository, guests repository.GuestStore, rec Recorder, log *zap.Logger) *GateService {
	if log == nil {
		log = zap.NewNop()
	}
	return &GateService{h: h, credits: credits, guests: guests, rec: rec, log: log}
}

// Humanize runs one request through the gate. The provider is called only when the
// session is eligible, and accounting changes only after the provider succeeds.
func (g *GateService) Humanize(ctx context.Context, s *Session, req HumanizeRequest) (res HumanizeResult, err error) {
	if s == nil || s.Identity.IsAnonymous() {
		return HumanizeResult{State: StateRejected}, errs.ErrUnauthorized
	}
	track := model.OwnerGuest
	if s.Identity.IsRegistered() {
		track = model.OwnerRegistered
	}

	state := StateValidating
	defer func() {
		res.State = state
		if g.rec != nil {
			g.rec.GateOutcome(track, state)
		}
	}()

	// an exhausted allowance wins over input errors
	if err := g.checkAllowance(ctx, s); err != nil {
		state = StateRejected
		return res, err
	}
	// length rules apply to the trimmed text; the caller's text is sent and stored as given
	trimmed := strings.TrimSpace(req.Text)
	if trimmed == "" {
		state = StateRejected
		return res, errs.Validation("text is required")
	}
	if n := utf8.RuneCountInString(trimmed); n < model.MinTextLength {
		state = StateRejected
		return res, errs.Validation("text must be at least 50 characters")
	} else if n > model.MaxTextLength {
		state = StateRejected
		return res, errs.Validation("text must be at most 20000 characters")
	}
	text := req.Text
	if err := req.Options.Validate(); err != nil {
		state = StateRejected
		return res, err
	}

	log := g.log.With(zap.String("track", string(track)), zap.Int("chars", utf8.RuneCountInString(text)))

	state = StateInFlight
	out, err := g.h.Humanize(ctx, text, req.Options)
	if err != nil {
		state = StateFailed
		log.Info("humanize failed", zap.Error(err))
		return res, err
	}

	rec := model.RewriteRecord{
		OriginalText:  text,
		RewrittenText: out,
		CreatedAt:     time.Now().UTC(),
	}
	if s.Identity.IsRegistered() {
		rec.UserID = s.Identity.UserID
		rec.Owner = model.OwnerRegistered
		saved, balance, err := g.credits.ChargeRewrite(ctx, rec)
		if err != nil {
			var qe *errs.QuotaError
			if errors.As(err, &qe) {
				// another session spent the last credit while this one was in flight
				state = StateRejected
				s.Usage = model.RegisteredUsage(0)
			} else {
				state = StateFailed
			}
			log.Warn("charge rewrite", zap.Error(err))
			return res, err
		}
		if g.rec != nil {
			g.rec.CreditCharged()
		}
		s.Usage = model.RegisteredUsage(balance)
		res.Record = saved
	} else {
		rec.Owner = model.OwnerGuest
		used, err := g.guests.Record(ctx, s.Identity.GuestID, rec)
		if err != nil {
			log.Warn("record guest rewrite", zap.Error(err))
			used = s.Usage.GuestUsed + 1
		}
		s.Usage = model.GuestUsage(used)
		res.Record = rec
	}

	state = StateSettled
	res.Usage = s.Usage
	log.Debug("humanize settled")
	return res, nil
}

// checkAllowance reads the authoritative counter and refreshes the session copy.
func (g *GateService) checkAllowance(ctx context.Context, s *Session) error {
	if s.Identity.IsRegistered() {
		bal, err := g.credits.Balance(ctx, s.Identity.UserID)
		if err != nil {
			return err
		}
		s.Usage = model.RegisteredUsage(bal)
		if bal <= 0 {
			return &errs.QuotaError{Track: string(model.OwnerRegistered), CTA: errs.CTAUpgrade}
		}
		return nil
	}

	used, err := g.guests.UsedCount(ctx, s.Identity.GuestID)
	if err != nil {
		return err
	}
	s.Usage = model.GuestUsage(used)
	if used >= model.GuestLimit {
		return &errs.QuotaError{
			Track: string(model.OwnerGuest),
			Limit: model.GuestLimit,
			Used:  used,
			CTA:   errs.CTASignUp,
		}
	}
	return nil
}
