package walletauth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/MrEthical07/walletauth/internal/rate"
	"github.com/MrEthical07/walletauth/session"
	"github.com/MrEthical07/walletauth/siwe"
	"github.com/MrEthical07/walletauth/siwf"
)

// SIWFRequest is a signed Sign-In With Farcaster message. When ChannelToken is
// set the profile is read from the relay channel; otherwise the session user
// carries no profile beyond the !<fid> username.
type SIWFRequest struct {
	Message      string `json:"message"`
	Signature    string `json:"signature"`
	Domain       string `json:"domain,omitempty"`
	Nonce        string `json:"nonce,omitempty"`
	ChannelToken string `json:"channelToken,omitempty"`
	SessionType  string `json:"type,omitempty"`
}

// SIWERequest is a signed EIP-4361 message.
type SIWERequest struct {
	Message     string `json:"message"`
	Signature   string `json:"signature"`
	Domain      string `json:"domain,omitempty"`
	Nonce       string `json:"nonce,omitempty"`
	SessionType string `json:"type,omitempty"`
}

// IssueNonce mints a single-use SIWE nonce bound to domain (the configured
// SIWE domain when empty).
func (g *Gateway) IssueNonce(ctx context.Context, domain string) (string, error) {
	if domain == "" {
		domain = g.config.SIWE.Domain
	}
	nonce, err := g.nonces.Issue(ctx, domain)
	if err != nil {
		return "", g.storeFailure(ctx, "siwe.nonce", err)
	}
	return nonce, nil
}

// SignInWithEthereum verifies req and creates a session whose user id is the
// checksummed signer address.
func (g *Gateway) SignInWithEthereum(ctx context.Context, req SIWERequest) (*session.Session, error) {
	subject := claimedAddress(req.Message)
	if err := g.checkThrottle(ctx, session.ProviderEthereum, subject); err != nil {
		return nil, err
	}

	domain := req.Domain
	if domain == "" {
		domain = g.config.SIWE.Domain
	}
	res := g.siwe.VerifySiweMessage(ctx, siwe.Request{
		Message:   req.Message,
		Signature: req.Signature,
		Domain:    domain,
		Nonce:     req.Nonce,
	})
	if !res.Success {
		g.metrics.Inc(MetricSIWEFailure)
		return nil, g.signInFailed(ctx, session.ProviderEthereum, subject, res.Error)
	}
	g.metrics.Inc(MetricSIWESuccess)

	user := session.User{
		ID:           res.Address,
		Address:      res.Address,
		AuthProvider: session.ProviderEthereum,
	}
	return g.signInSucceeded(ctx, req.SessionType, user)
}

// SignInWithFarcaster verifies a signed SIWF message and creates a session for
// the proven fid.
func (g *Gateway) SignInWithFarcaster(ctx context.Context, req SIWFRequest) (*session.Session, error) {
	subject := claimedFID(req.Message)
	if err := g.checkThrottle(ctx, session.ProviderFarcaster, subject); err != nil {
		return nil, err
	}

	res := g.siwf.VerifySiwfMessage(ctx, siwf.VerifyRequest{
		Message:   req.Message,
		Signature: req.Signature,
		Domain:    req.Domain,
		Nonce:     req.Nonce,
	})
	if !res.Success {
		g.metrics.Inc(MetricSIWFFailure)
		return nil, g.signInFailed(ctx, session.ProviderFarcaster, subject, res.Error)
	}

	user := session.User{
		ID:           FarcasterUserID(res.FID),
		AuthProvider: session.ProviderFarcaster,
		FID:          res.FID,
	}
	if res.Data != nil {
		user.Address = res.Data.Address
	}

	if req.ChannelToken != "" {
		st := g.siwf.GetFarcasterChannelStatus(ctx, req.ChannelToken)
		if !st.Success || st.Data == nil {
			g.metrics.Inc(MetricSIWFFailure)
			return nil, g.signInFailed(ctx, session.ProviderFarcaster, subject, "channel status unavailable: "+st.Error)
		}
		if st.Data.FID != res.FID {
			g.metrics.Inc(MetricSIWFFailure)
			return nil, g.signInFailed(ctx, session.ProviderFarcaster, subject, "channel belongs to another fid")
		}
		user.Username = st.Data.Username
		user.DisplayName = st.Data.DisplayName
		user.PfpURL = st.Data.PfpURL
	}
	if strings.TrimSpace(user.Username) == "" {
		// Farcaster renders fname-less accounts as !<fid>.
		user.Username = "!" + strconv.FormatUint(res.FID, 10)
	}

	g.metrics.Inc(MetricSIWFSuccess)
	return g.signInSucceeded(ctx, req.SessionType, user)
}

// CompleteFarcasterChannel waits (bounded by SIWF.PollDeadline) for the user to
// sign in the channel, then signs them in with the message the relay returned.
// A deadline returns an error matching siwf.ErrTimeout.
func (g *Gateway) CompleteFarcasterChannel(ctx context.Context, channelToken, nonce string) (*session.Session, error) {
	st, err := g.siwf.WaitForCompletion(ctx, channelToken, g.config.SIWF.PollDeadline, g.config.SIWF.PollInterval)
	if err != nil {
		if errors.Is(err, siwf.ErrTimeout) {
			g.logger.ErrorContext(ctx, "siwf channel did not complete", "error", err)
		}
		return nil, err
	}
	if nonce == "" {
		nonce = st.Nonce
	}
	return g.SignInWithFarcaster(ctx, SIWFRequest{
		Message:      st.Message,
		Signature:    st.Signature,
		Nonce:        nonce,
		ChannelToken: channelToken,
	})
}

func (g *Gateway) checkThrottle(ctx context.Context, provider session.AuthProvider, subject string) error {
	err := g.limiter.Check(ctx, ClientIPFromContext(ctx))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		g.metrics.Inc(MetricSignInRateLimited)
		g.emitAudit(ctx, AuditEvent{EventType: AuditSignInRateLimited, UserID: subject, Provider: string(provider)}, ErrRateLimited)
		return ErrRateLimited
	default:
		return g.storeFailure(ctx, "rate.check", err)
	}
}

func (g *Gateway) signInFailed(ctx context.Context, provider session.AuthProvider, subject, reason string) error {
	err := fmt.Errorf("%w: %s", ErrVerificationFailed, reason)
	g.logger.InfoContext(ctx, "sign-in rejected", "provider", provider, "subject", subject, "reason", reason)
	g.emitAudit(ctx, AuditEvent{EventType: AuditSignIn, UserID: subject, Provider: string(provider)}, err)

	if rerr := g.limiter.RecordFailure(ctx, ClientIPFromContext(ctx)); rerr != nil && !errors.Is(rerr, rate.ErrRateLimited) {
		g.logger.WarnContext(ctx, "failed to record sign-in failure", "error", rerr)
	}
	return err
}

func (g *Gateway) signInSucceeded(ctx context.Context, sessionType string, user session.User) (*session.Session, error) {
	sess, err := g.CreateSession(ctx, sessionType, user)
	if err != nil {
		return nil, err
	}
	g.emitAudit(ctx, AuditEvent{
		EventType: AuditSignIn,
		UserID:    user.ID,
		SessionID: sess.ID,
		Provider:  string(user.AuthProvider),
		Success:   true,
	}, nil)
	return sess, nil
}

// claimedAddress is the address a SIWE message claims, before verification. It
// only labels logs and audit events; throttling is per client IP.
func claimedAddress(message string) string {
	msg, err := siwe.ParseMessage(message)
	if err != nil {
		return ""
	}
	return msg.Address
}

func claimedFID(message string) string {
	msg, err := siwe.ParseMessage(message)
	if err != nil {
		return ""
	}
	fid, ok := siwf.FIDFromResources(msg.Resources)
	if !ok {
		return ""
	}
	return FarcasterUserID(fid)
}
