// Package httpapi exposes the humanizer over a JSON HTTP API.
package httpapi

import (
	"context"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/maazshahbaz/ai-humanizer/internal/model"
	"github.com/maazshahbaz/ai-humanizer/internal/service"
)

// Gate runs a humanize request through the usage gate.
type Gate interface {
	Humanize(ctx context.Context, s *service.Session, req service.HumanizeRequest) (service.HumanizeResult, error)
}

// History lists rewrite records.
type History interface {
	List(ctx context.Context, s *service.Session, limit, offset int) ([]model.RewriteRecord, error)
}

// Plans lists the public plan catalog.
type Plans interface {
	List(ctx context.Context) []model.PlanOffer
}

// Sessions opens per-request sessions.
type Sessions interface {
	Open(ctx context.Context, id model.Identity) (*service.Session, error)
}

// MetricsExporter observes requests and serves the scrape endpoint.
type MetricsExporter interface {
	HTTPObserver
	Handler() http.Handler
}

// Deps are the collaborators of the API. Metrics, Limiter and Health are optional.
type Deps struct {
	Auth     service.AuthService
	Gate     Gate
	History  History
	Plans    Plans
	Sessions Sessions

	Limiter *RateLimiter
	Health  *Health
	Metrics MetricsExporter
	CORS    CORSConfig
	Log     *zap.Logger
}

// API holds handler dependencies.
type API struct {
	auth     service.AuthService
	gate     Gate
	history  History
	plans    Plans
	sessions Sessions
	validate *validator.Validate
	log      *zap.Logger
}

// NewRouter wires middleware and routes.
func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	a := &API{
		auth:     d.Auth,
		gate:     d.Gate,
		history:  d.History,
		plans:    d.Plans,
		sessions: d.Sessions,
		validate: newValidator(),
		log:      log,
	}

	var obs HTTPObserver
	if d.Metrics != nil {
		obs = d.Metrics
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(log, obs))
	r.Use(recoverer(log))
	r.Use(cors(d.CORS))

	if d.Health != nil {
		r.Get("/healthz", d.Health.Liveness)
		r.Get("/readyz", d.Health.Readiness)
	}
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/plans", a.listPlans)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", a.register)
			r.Post("/login", a.login)
			r.With(a.identify, requireUser).Post("/logout", a.logout)
		})

		r.Group(func(r chi.Router) {
			r.Use(a.identify)

			r.Get("/account", a.account)
			r.With(requireUser).Delete("/account", a.deleteAccount)
			r.Get("/rewrites", a.listRewrites)

			humanize := http.HandlerFunc(a.humanize)
			if d.Limiter != nil {
				r.Method(http.MethodPost, "/humanize", d.Limiter.Handler(humanize))
			} else {
				r.Method(http.MethodPost, "/humanize", humanize)
			}
		})
	})
	return r
}

// newValidator reports JSON field names in validation errors.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
