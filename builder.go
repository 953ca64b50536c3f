package walletauth

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/walletauth/contractsession"
	internalaudit "github.com/MrEthical07/walletauth/internal/audit"
	"github.com/MrEthical07/walletauth/internal/rate"
	"github.com/MrEthical07/walletauth/jwt"
	"github.com/MrEthical07/walletauth/kv"
	"github.com/MrEthical07/walletauth/permission"
	"github.com/MrEthical07/walletauth/session"
	"github.com/MrEthical07/walletauth/siwe"
	"github.com/MrEthical07/walletauth/siwf"
)

// Builder assembles a [Gateway]. Configure it during initialization, call
// Build once, then discard it.
type Builder struct {
	config     Config
	redis      redis.UniversalClient
	logger     *slog.Logger
	auditSink  AuditSink
	relay      siwf.Relay
	custody    siwf.CustodyResolver
	httpClient *http.Client
	now        func() time.Time

	built bool
}

// New returns a Builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration with a copy of cfg.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client backing every store. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink overrides the default slog audit sink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithRelay injects the SIWF relay instead of dialing SIWF.RelayURL.
func (b *Builder) WithRelay(relay siwf.Relay) *Builder {
	b.relay = relay
	return b
}

// WithCustodyResolver injects the fid custody lookup instead of SIWF.HubURL.
func (b *Builder) WithCustodyResolver(resolver siwf.CustodyResolver) *Builder {
	b.custody = resolver
	return b
}

// WithHTTPClient sets the client used for relay and hub calls.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithClock replaces time.Now in every store and verifier.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and wires the Gateway.
func (b *Builder) Build() (*Gateway, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.redis == nil {
		return nil, invalid("redis client required")
	}
	if b.relay == nil && cfg.SIWF.RelayURL == "" {
		return nil, invalid("siwf relay url required")
	}
	if b.custody == nil && b.relay == nil && cfg.SIWF.HubURL == "" {
		return nil, invalid("siwf hub url required")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}
	httpClient := b.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.SIWF.HTTPTimeout}
	}

	issuer, err := jwt.NewIssuer(jwt.Config{
		SigningMethod: cfg.JWT.SigningMethod,
		PrivateKey:    cfg.JWT.PrivateKey,
		PublicKey:     cfg.JWT.PublicKey,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	store := kv.NewRedis(b.redis, cfg.Session.RedisPrefix)
	g := &Gateway{
		config:      cfg,
		store:       store,
		tokens:      issuer,
		permissions: permission.NewRegistry(store, permission.WithClock(now)),
		contracts:   contractsession.NewRegistry(store, contractsession.WithClock(now)),
		nonces:      siwe.NewNonceStore(store, cfg.SIWE.NonceTTL),
		metrics:     NewMetrics(cfg.Metrics),
		logger:      logger,
		now:         now,
	}
	g.sessions = session.NewStore(store, cfg.Session.DefaultTTL,
		session.WithClock(now),
		session.WithRevokeObserver(g.onSessionRevoked),
	)

	siweOpts := []siwe.Option{siwe.WithClock(now), siwe.WithLogger(logger)}
	if cfg.SIWE.RequireIssuedNonce {
		siweOpts = append(siweOpts, siwe.WithNonceStore(g.nonces))
	}
	g.siwe = siwe.NewVerifier(siweOpts...)

	relay := b.relay
	if relay == nil {
		custody := b.custody
		if custody == nil {
			custody = siwf.NewHubCustodyResolver(cfg.SIWF.HubURL, httpClient)
		}
		verifier := siwf.NewVerifier(custody, siwe.WithClock(now), siwe.WithLogger(logger))
		relay = siwf.NewRelayClient(cfg.SIWF.RelayURL, httpClient, verifier)
	}
	g.siwf, err = siwf.NewService(relay, siwf.ServiceConfig{
		Domain:        cfg.SIWF.Domain,
		NonceFallback: cfg.SIWF.NonceFallback,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	g.limiter = rate.New(b.redis, rate.Config{
		Enabled:     cfg.Security.EnableSignInThrottle,
		MaxFailures: cfg.Security.MaxFailedSignIns,
		Window:      cfg.Security.FailedSignInWindow,
		Prefix:      cfg.Session.RedisPrefix + ":rl",
	})

	sink := b.auditSink
	if sink == nil {
		sink = NewSlogSink(logger)
	}
	g.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		Now:        now,
	}, sink)

	b.built = true
	return g, nil
}
