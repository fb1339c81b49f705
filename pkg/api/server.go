package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-logr/logr"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/obsdb/odb/pkg/api/authz"
	"github.com/obsdb/odb/pkg/digest"
	"github.com/obsdb/odb/pkg/notify/alert"
	"github.com/obsdb/odb/pkg/observation"
	"github.com/obsdb/odb/pkg/recorder"
	"github.com/obsdb/odb/pkg/timeaccounting"
)

// Handler is the REST surface of spec.md §6: every Query/Mutation the
// spec names, fronted by a chi.Mux the way the teacher's datastorage
// and gateway packages front their own domain logic (see
// test/unit/datastorage/workflow_lifecycle_handler_test.go and
// test/integration/gateway/cors_test.go — the only teacher sources this
// router shape is grounded on, since the teacher's production
// server.go/handler.go were not part of the retrieved pack).
type Handler struct {
	router chi.Router
	logger logr.Logger

	db                 *sqlx.DB
	observations       *observation.Repository
	recorderRepo       *recorder.Repository
	recorder           *recorder.Recorder
	taEngine           *timeaccounting.Engine
	taRepo             *timeaccounting.Repository
	digester           *digest.Digester
	authorizer         *authz.Authorizer
	validate           *validator.Validate
	futureLimitDefault int
	futureLimitMax     int
	corsOptions        *cors.Options
	alerter            *alert.Notifier
}

// Option configures a Handler at construction time. Every dependency a
// handler needs is injected this way, exactly so tests can wire in a
// single mock repository and leave the rest nil (see
// server.NewHandler(nil, server.WithXRepository(mock)) in the teacher's
// handler tests).
type Option func(*Handler)

func WithLogger(l logr.Logger) Option { return func(h *Handler) { h.logger = l } }
func WithDB(db *sqlx.DB) Option       { return func(h *Handler) { h.db = db } }

func WithObservationRepository(r *observation.Repository) Option {
	return func(h *Handler) { h.observations = r }
}

func WithRecorderRepository(r *recorder.Repository) Option {
	return func(h *Handler) { h.recorderRepo = r }
}

func WithRecorder(r *recorder.Recorder) Option {
	return func(h *Handler) { h.recorder = r }
}

func WithTimeAccountingEngine(e *timeaccounting.Engine) Option {
	return func(h *Handler) { h.taEngine = e }
}

func WithTimeAccountingRepository(r *timeaccounting.Repository) Option {
	return func(h *Handler) { h.taRepo = r }
}

func WithDigester(d *digest.Digester) Option {
	return func(h *Handler) { h.digester = d }
}

func WithAuthorizer(a *authz.Authorizer) Option {
	return func(h *Handler) { h.authorizer = a }
}

// WithAlerter wires an operational Slack notifier so getDigest/getConfig
// can page out on SequenceTooLong and ExternalServiceError (spec.md §7).
// Left nil, those failures still return the correct HTTP problem
// response; they simply don't alert.
func WithAlerter(n *alert.Notifier) Option {
	return func(h *Handler) { h.alerter = n }
}

// WithFutureLimits overrides the config(futureLimit) default (25) and
// ceiling (100) of spec.md §6. Intended for tests; production always
// uses the spec-mandated defaults.
func WithFutureLimits(def, max int) Option {
	return func(h *Handler) { h.futureLimitDefault, h.futureLimitMax = def, max }
}

// CORSOptions configures the cross-origin policy NewHandler wires into
// go-chi/cors. Left zero-valued, cors.Handler falls back to its own
// permissive defaults, matching how a fresh deployment starts before an
// operator tightens it.
type CORSOptions = cors.Options

func WithCORS(opts CORSOptions) Option {
	return func(h *Handler) { h.corsOptions = &opts }
}

// NewHandler builds a Handler. cfg is reserved for future static
// configuration (timeouts, route prefixes) and may be nil; every
// dependency is supplied via Option.
func NewHandler(cfg *Config, opts ...Option) *Handler {
	h := &Handler{
		logger:             logr.Discard(),
		validate:           validator.New(),
		futureLimitDefault: 25,
		futureLimitMax:     100,
	}
	_ = cfg
	for _, opt := range opts {
		opt(h)
	}
	h.router = h.newRouter()
	return h
}

// Config is reserved for static Handler configuration not expressed as
// an Option (spec.md leaves none today; present for forward
// compatibility the way the teacher's handler constructors accept a
// possibly-nil base config).
type Config struct{}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) newRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(h.metricsMiddleware)

	corsOpts := h.corsOptions
	if corsOpts == nil {
		corsOpts = &cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization", "X-Odb-Roles"},
			MaxAge:           300,
		}
	}
	r.Use(cors.Handler(*corsOpts))

	r.Route("/programs", func(r chi.Router) {
		r.Get("/", h.listPrograms)
		r.Post("/", h.createProgram)
		r.Get("/{programID}", h.getProgram)
	})

	r.Route("/observations", func(r chi.Router) {
		r.Get("/", h.listObservations)
		r.Post("/", h.createObservation)
		r.Patch("/", h.updateObservations)
		r.Route("/{observationID}", func(r chi.Router) {
			r.Get("/", h.getObservation)
			r.Post("/clone", h.cloneObservation)
			r.Get("/workflow", h.getWorkflowState)

			r.Route("/execution", func(r chi.Router) {
				r.Get("/digest", h.getDigest)
				r.Get("/config", h.getConfig)
				r.Get("/visits", h.listVisits)
				r.Route("/visits/{visitID}", func(r chi.Router) {
					r.Get("/", h.getVisit)
					r.Get("/invoice", h.getInvoice)
					r.Post("/corrections", h.addCorrection)
				})
			})
		})
	})

	r.Route("/visits", func(r chi.Router) {
		r.Post("/", h.recordVisit)
	})
	r.Route("/atoms", func(r chi.Router) {
		r.Post("/", h.recordAtom)
		r.Get("/{atomID}", h.getAtom)
	})
	r.Route("/steps", func(r chi.Router) {
		r.Post("/", h.recordStep)
		r.Get("/{stepID}", h.getStep)
	})
	r.Route("/datasets", func(r chi.Router) {
		r.Post("/", h.recordDataset)
	})
	r.Post("/events", h.recordEvent)

	return r
}
