package walletauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

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

// Gateway turns verified sign-in proofs into sessions and answers session
// lookups for request middleware. Build one with [New].
type Gateway struct {
	config      Config
	store       kv.Store
	sessions    *session.Store
	permissions *permission.Registry
	contracts   *contractsession.Registry
	tokens      *jwt.Issuer
	siwe        *siwe.Verifier
	nonces      *siwe.NonceStore
	siwf        *siwf.Service
	limiter     *rate.Limiter
	audit       *internalaudit.Dispatcher
	metrics     *Metrics
	logger      *slog.Logger
	now         func() time.Time
}

// Close drains the audit queue.
func (g *Gateway) Close() {
	if g == nil {
		return
	}
	if g.audit != nil {
		g.audit.Close()
	}
}

func (g *Gateway) Sessions() *session.Store { return g.sessions }
func (g *Gateway) Permissions() *permission.Registry { return g.permissions }
func (g *Gateway) ContractSessions() *contractsession.Registry { return g.contracts }
func (g *Gateway) Tokens() *jwt.Issuer { return g.tokens }
func (g *Gateway) Farcaster() *siwf.Service { return g.siwf }
func (g *Gateway) Config() Config { return cloneConfig(g.config) }

// MetricsSnapshot copies the in-process counters for exporters.
func (g *Gateway) MetricsSnapshot() MetricsSnapshot { return g.metrics.Snapshot() }

// AuditDropped reports audit events lost to a full buffer.
func (g *Gateway) AuditDropped() uint64 { return g.audit.Dropped() }

// Ping checks the backing store.
func (g *Gateway) Ping(ctx context.Context) error {
	if err := g.store.Ping(ctx); err != nil {
		return g.storeFailure(ctx, "ping", err)
	}
	return nil
}

func (g *Gateway) storeFailure(ctx context.Context, op string, err error) error {
	g.metrics.Inc(MetricStoreError)
	g.logger.ErrorContext(ctx, "auth store failure", "op", op, "error", err)
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

// FarcasterUserID is the session user id of a Farcaster identity.
func FarcasterUserID(fid uint64) string {
	return "fid:" + strconv.FormatUint(fid, 10)
}

// GetSession resolves sessionID. A missing, expired or malformed id yields
// (nil, nil); only store failures are errors.
func (g *Gateway) GetSession(ctx context.Context, sessionID string) (*session.Session, error) {
	start := time.Now()
	sess, err := g.sessions.Get(ctx, sessionID)
	g.metrics.Observe(MetricValidateLatency, time.Since(start))
	if err != nil {
		return nil, g.storeFailure(ctx, "session.get", err)
	}
	if sess == nil {
		g.metrics.Inc(MetricSessionValidateMiss)
		return nil, nil
	}
	g.metrics.Inc(MetricSessionValidateHit)
	return sess, nil
}

// ValidateSession reports whether sessionID is live. It never extends it.
func (g *Gateway) ValidateSession(ctx context.Context, sessionID string) (bool, error) {
	sess, err := g.GetSession(ctx, sessionID)
	return sess != nil, err
}

// CreateSession stores a session for an identity vouched for by the caller.
// Sign-in paths call it after verification; service callers use it directly.
func (g *Gateway) CreateSession(ctx context.Context, sessionType string, user session.User) (*session.Session, error) {
	if sessionType == "" {
		sessionType = g.config.Session.DefaultType
	}
	sess, err := g.sessions.Create(ctx, sessionType, user)
	switch {
	case errors.Is(err, session.ErrInvalidUser):
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	case err != nil:
		return nil, g.storeFailure(ctx, "session.create", err)
	}
	g.metrics.Inc(MetricSessionCreated)
	g.logger.InfoContext(ctx, "session created", "user_id", user.ID, "provider", user.AuthProvider, "type", sessionType)
	return sess, nil
}

// ExtendSession moves the expiry of a live session to now+ttl (ttl <= 0 uses the
// configured default). It returns false for unknown sessions and
// ErrInvalidRequest for a ttl above Session.MaxTTL.
func (g *Gateway) ExtendSession(ctx context.Context, sessionID string, ttl time.Duration) (bool, error) {
	if ttl > g.config.Session.MaxTTL {
		return false, fmt.Errorf("%w: ttl exceeds %s", ErrInvalidRequest, g.config.Session.MaxTTL)
	}
	ok, err := g.sessions.Extend(ctx, sessionID, ttl)
	if err != nil {
		return false, g.storeFailure(ctx, "session.extend", err)
	}
	if ok {
		g.metrics.Inc(MetricSessionExtended)
		g.emitAudit(ctx, AuditEvent{EventType: AuditSessionExtended, SessionID: sessionID, Success: true}, nil)
	}
	return ok, nil
}

// RevokeSession deletes the session. Unknown ids are a no-op.
func (g *Gateway) RevokeSession(ctx context.Context, sessionID string, reason session.RevokeReason) error {
	err := g.sessions.Revoke(ctx, sessionID, reason)
	switch {
	case errors.Is(err, session.ErrInvalidRevokeReason):
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	case err != nil:
		return g.storeFailure(ctx, "session.revoke", err)
	}
	return nil
}

// RevokeAllSessions revokes every live session of userID.
func (g *Gateway) RevokeAllSessions(ctx context.Context, userID string, reason session.RevokeReason) (int, error) {
	n, err := g.sessions.RevokeAllForUser(ctx, userID, reason)
	switch {
	case errors.Is(err, session.ErrInvalidRevokeReason):
		return 0, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	case err != nil:
		return 0, g.storeFailure(ctx, "session.revoke_all", err)
	}
	return n, nil
}

func (g *Gateway) onSessionRevoked(ctx context.Context, sessionID string, sess *session.Session, reason session.RevokeReason) {
	g.metrics.Inc(MetricSessionRevoked)
	ev := AuditEvent{
		EventType: AuditSessionRevoked,
		SessionID: sessionID,
		Reason:    string(reason),
		Success:   true,
	}
	if sess != nil {
		ev.UserID = sess.User.ID
		ev.Provider = string(sess.User.AuthProvider)
	}
	g.logger.InfoContext(ctx, "session revoked", "user_id", ev.UserID, "reason", reason)
	g.emitAudit(ctx, ev, nil)
}

// IssueServiceToken signs a machine-to-machine token for subject. ttl <= 0
// uses the configured default.
func (g *Gateway) IssueServiceToken(ctx context.Context, subject string, scopes []string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = g.config.JWT.DefaultExpiry
	}
	token, err := g.tokens.SignToken(jwt.Payload{Subject: subject, Scopes: scopes}, ttl)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	g.metrics.Inc(MetricServiceTokenIssued)
	g.emitAudit(ctx, AuditEvent{EventType: AuditServiceTokenIssued, UserID: subject, Success: true}, nil)
	return token, nil
}

// VerifyServiceToken returns the claims of a valid token or ErrTokenInvalid.
func (g *Gateway) VerifyServiceToken(token string) (*jwt.Claims, error) {
	claims := g.tokens.VerifyToken(token)
	if claims == nil {
		g.metrics.Inc(MetricServiceTokenRejected)
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
