package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	walletauth "github.com/MrEthical07/walletauth"
	"github.com/MrEthical07/walletauth/middleware"
)

// Service token scopes required by the machine-to-machine routes.
const (
	ScopeSessionsWrite  = "sessions:write"
	ScopeSessionsRevoke = "sessions:revoke"
)

// Options configures a [Server].
type Options struct {
	Gateway *walletauth.Gateway
	Logger  *slog.Logger
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	// SignInRPS and SignInBurst bound /auth/* per client IP.
	SignInRPS   float64
	SignInBurst int
	HealthTTL   time.Duration
	// TrustProxy rewrites RemoteAddr from X-Forwarded-For / X-Real-IP.
	TrustProxy bool
	// Clock defaults to time.Now. It should match the Gateway's clock.
	Clock func() time.Time
}

// channelWriteSlack is added to SIWF.PollDeadline for the write deadline of
// the channel completion route, which outlives the server's WriteTimeout.
const channelWriteSlack = 30 * time.Second

// Server serves the Gateway over HTTP.
type Server struct {
	gw      *walletauth.Gateway
	logger  *slog.Logger
	metrics http.Handler
	limiter *middleware.RateLimiter
	health  *healthCache
	proxy   bool
	now     func() time.Time

	channelWait time.Duration
	maxExtend   time.Duration
}

// New creates a [Server]. Zero limits default to 5 rps with a burst of 10 and
// a 5s health cache.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.SignInRPS <= 0 {
		opts.SignInRPS = 5
	}
	if opts.SignInBurst <= 0 {
		opts.SignInBurst = 10
	}
	if opts.HealthTTL <= 0 {
		opts.HealthTTL = 5 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	s := &Server{
		gw:      opts.Gateway,
		logger:  opts.Logger.With("component", "httpapi"),
		metrics: opts.Metrics,
		limiter: middleware.NewRateLimiter(opts.SignInRPS, opts.SignInBurst),
		health:  newHealthCache(opts.HealthTTL, opts.Clock),
		proxy:   opts.TrustProxy,
		now:     opts.Clock,
	}
	if opts.Gateway != nil {
		cfg := opts.Gateway.Config()
		s.channelWait = cfg.SIWF.PollDeadline + channelWriteSlack
		s.maxExtend = cfg.Session.MaxTTL
	}
	return s
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	if s.proxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.ClientContext)

	r.Get("/healthz", s.healthz)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Use(s.limiter.Middleware())
		r.Post("/nonce", s.issueNonce)
		r.Post("/siwe/verify", s.signInEthereum)
		r.Post("/siwf/channel", s.createChannel)
		r.Get("/siwf/channel/{token}", s.channelStatus)
		r.Post("/siwf/channel/{token}/complete", s.completeChannel)
		r.Post("/siwf/verify", s.signInFarcaster)
	})

	r.With(s.limiter.Middleware()).Get("/sessions/{id}/validate", s.validateSession)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession(s.gw))

		r.Get("/me", s.me)
		r.Get("/sessions/{id}", s.getSession)
		r.Post("/sessions/{id}/extend", s.extendSession)
		r.Delete("/sessions/{id}", s.revokeSession)

		r.Get("/permissions", s.listPermissions)
		r.Get("/permissions/check", s.checkPermission)
		r.Post("/permissions", s.grantPermission)
		r.Delete("/permissions", s.revokePermission)
		r.Post("/permissions/deactivate", s.deactivatePermission)

		r.Post("/contract-sessions", s.createContractSession)
		r.Get("/contract-sessions", s.listContractSessions)
		r.Get("/contract-sessions/{id}", s.getContractSession)
		r.Post("/contract-sessions/{id}/revoke", s.revokeContractSession)
	})

	r.With(middleware.RequireServiceToken(s.gw, ScopeSessionsWrite)).Post("/sessions", s.createSession)
	r.Route("/internal", func(r chi.Router) {
		r.Use(middleware.RequireServiceToken(s.gw, ScopeSessionsRevoke))
		r.Post("/sessions/{id}/revoke", s.serviceRevokeSession)
		r.Post("/users/{userId}/revoke-sessions", s.serviceRevokeUser)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	return r
}
