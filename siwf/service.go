package siwf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/MrEthical07/walletauth/internal"
)

// NonceFallback decides what VerifySiwfMessage does when the caller supplies no
// nonce and the message has no Nonce line.
type NonceFallback string

const (
	// NonceFallbackReject fails the verification.
	NonceFallbackReject NonceFallback = "reject"
	// NonceFallbackRandom substitutes a fresh random nonce and lets the relay decide.
	NonceFallbackRandom NonceFallback = "random"
)

// Valid reports whether f is a known policy.
func (f NonceFallback) Valid() bool {
	return f == NonceFallbackReject || f == NonceFallbackRandom
}

// ErrInvalidConfig is returned by NewService.
var ErrInvalidConfig = errors.New("invalid siwf configuration")

// ServiceConfig configures a [Service].
type ServiceConfig struct {
	// Domain is used when a request does not name one. Required.
	Domain        string
	NonceFallback NonceFallback
}

// Service is the SIWF entry point. Its methods return result values and never errors.
type Service struct {
	relay    Relay
	domain   string
	fallback NonceFallback
	logger   *slog.Logger
}

// NewService creates a [Service] over relay.
func NewService(relay Relay, cfg ServiceConfig, logger *slog.Logger) (*Service, error) {
	if relay == nil {
		return nil, fmt.Errorf("%w: relay is required", ErrInvalidConfig)
	}
	if strings.TrimSpace(cfg.Domain) == "" {
		return nil, fmt.Errorf("%w: domain is required", ErrInvalidConfig)
	}
	if cfg.NonceFallback == "" {
		cfg.NonceFallback = NonceFallbackReject
	}
	if !cfg.NonceFallback.Valid() {
		return nil, fmt.Errorf("%w: unknown nonce fallback %q", ErrInvalidConfig, cfg.NonceFallback)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{relay: relay, domain: cfg.Domain, fallback: cfg.NonceFallback, logger: logger}, nil
}

// Domain returns the default sign-in domain.
func (s *Service) Domain() string { return s.domain }

// CreateChannelRequest asks for a new sign-in channel.
type CreateChannelRequest struct {
	SiweURI string `json:"siweUri"`
	Domain  string `json:"domain,omitempty"`
	Nonce   string `json:"nonce,omitempty"`
}

// ChannelResult is the outcome of CreateFarcasterChannel.
type ChannelResult struct {
	Success      bool   `json:"success"`
	ChannelToken string `json:"channelToken,omitempty"`
	URL          string `json:"url,omitempty"`
	Nonce        string `json:"nonce"`
	IsError      bool   `json:"isError"`
	Error        string `json:"error,omitempty"`
}

// CreateFarcasterChannel opens a relay channel. A missing nonce is generated.
func (s *Service) CreateFarcasterChannel(ctx context.Context, req CreateChannelRequest) ChannelResult {
	nonce := req.Nonce
	if nonce == "" {
		n, err := internal.NewNonce()
		if err != nil {
			return ChannelResult{IsError: true, Error: err.Error()}
		}
		nonce = n
	}
	if req.SiweURI == "" {
		return ChannelResult{Nonce: nonce, IsError: true, Error: "siweUri is required"}
	}

	ch, err := s.relay.CreateChannel(ctx, ChannelRequest{
		SiweURI: req.SiweURI,
		Domain:  s.domainOr(req.Domain),
		Nonce:   nonce,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "siwf channel create failed", "error", err)
		return ChannelResult{Nonce: nonce, IsError: true, Error: err.Error()}
	}
	if ch.Nonce != "" {
		nonce = ch.Nonce
	}
	return ChannelResult{Success: true, ChannelToken: ch.ChannelToken, URL: ch.URL, Nonce: nonce}
}

// StatusResult is the outcome of GetFarcasterChannelStatus.
type StatusResult struct {
	Success bool           `json:"success"`
	Data    *ChannelStatus `json:"data,omitempty"`
	IsError bool           `json:"isError"`
	Error   string         `json:"error,omitempty"`
}

// GetFarcasterChannelStatus polls the relay once.
func (s *Service) GetFarcasterChannelStatus(ctx context.Context, channelToken string) StatusResult {
	if channelToken == "" {
		return StatusResult{IsError: true, Error: "channel token is required"}
	}
	st, err := s.relay.Status(ctx, channelToken)
	if err != nil {
		s.logger.WarnContext(ctx, "siwf channel status failed", "error", err)
		return StatusResult{IsError: true, Error: err.Error()}
	}
	return StatusResult{Success: true, Data: st}
}

// VerifyRequest is a signed SIWF message to verify.
type VerifyRequest struct {
	Message   string `json:"message"`
	Signature string `json:"signature"`
	Domain    string `json:"domain,omitempty"`
	Nonce     string `json:"nonce,omitempty"`
}

var nonceLine = regexp.MustCompile(`(?m)^Nonce: ([A-Za-z0-9]+)\r?$`)

// ExtractNonce returns the value of the message's Nonce line.
func ExtractNonce(message string) (string, bool) {
	m := nonceLine.FindStringSubmatch(message)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// VerifySiwfMessage verifies req through the relay. The nonce defaults to the
// message's Nonce line and the domain to the configured one.
func (s *Service) VerifySiwfMessage(ctx context.Context, req VerifyRequest) (res VerifyResult) {
	defer func() {
		if r := recover(); r != nil {
			res = verifyFailure("siwf verification aborted: %v", r)
		}
	}()

	nonce := req.Nonce
	if nonce == "" {
		extracted, ok := ExtractNonce(req.Message)
		switch {
		case ok:
			nonce = extracted
		case s.fallback == NonceFallbackRandom:
			n, err := internal.NewNonce()
			if err != nil {
				return verifyFailure("%v", err)
			}
			s.logger.DebugContext(ctx, "siwf message has no nonce; substituting random nonce")
			nonce = n
		default:
			return verifyFailure("message has no nonce")
		}
	}

	out, err := s.relay.VerifySignInMessage(ctx, VerifyParams{
		Nonce:     nonce,
		Domain:    s.domainOr(req.Domain),
		Message:   req.Message,
		Signature: req.Signature,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "siwf verification collaborator failed", "error", err)
		return verifyFailure("%v", err)
	}
	if !out.Success && !out.IsError {
		out.IsError = true
	}
	return out
}

func (s *Service) domainOr(d string) string {
	if d != "" {
		return d
	}
	return s.domain
}
