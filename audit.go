package walletauth

import (
	"context"
	"errors"
	"io"
	"log/slog"

	internalaudit "github.com/MrEthical07/walletauth/internal/audit"
	"github.com/MrEthical07/walletauth/kv"
)

// AuditEvent is a structured audit record emitted by the Gateway.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the Gateway's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink discards audit events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink delivers audit events on a channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes audit events as JSON lines.
type JSONWriterSink = internalaudit.JSONWriterSink

// SlogSink writes audit events to a structured logger.
type SlogSink = internalaudit.SlogSink

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	return internalaudit.NewSlogSink(logger)
}

const (
	AuditSignIn                 = "sign_in"
	AuditSignInRateLimited      = "sign_in_rate_limited"
	AuditSessionExtended        = "session_extended"
	AuditSessionRevoked         = "session_revoked"
	AuditPermissionGranted      = "permission_granted"
	AuditPermissionRevoked      = "permission_revoked"
	AuditPermissionDeactivated  = "permission_deactivated"
	AuditContractSessionCreated = "contract_session_created"
	AuditContractSessionRevoked = "contract_session_revoked"
	AuditServiceTokenIssued     = "service_token_issued"
)

const (
	auditErrVerification = "verification_failed"
	auditErrRateLimited  = "rate_limited"
	auditErrUnavailable  = "backend_unavailable"
	auditErrInvalid      = "invalid_request"
	auditErrInternal     = "internal_error"
)

func (g *Gateway) emitAudit(ctx context.Context, event AuditEvent, err error) {
	if g == nil || g.audit == nil {
		return
	}
	if event.IP == "" {
		event.IP = ClientIPFromContext(ctx)
	}
	if ua := userAgentFromContext(ctx); ua != "" {
		if event.Metadata == nil {
			event.Metadata = make(map[string]string, 1)
		}
		event.Metadata["user_agent"] = ua
	}
	if err != nil {
		event.Error = auditErrorCode(err)
	}
	g.audit.Emit(ctx, event)
}

func auditErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrVerificationFailed):
		return auditErrVerification
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrUnavailable), errors.Is(err, kv.ErrUnavailable):
		return auditErrUnavailable
	case errors.Is(err, ErrInvalidRequest):
		return auditErrInvalid
	default:
		return auditErrInternal
	}
}
