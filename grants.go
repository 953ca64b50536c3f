package walletauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/walletauth/contractsession"
	"github.com/MrEthical07/walletauth/permission"
)

// HasScope reports whether userID holds scope on resource. Store failures are
// errors, never a silent false.
func (g *Gateway) HasScope(ctx context.Context, userID, resource, scope string) (bool, error) {
	ok, err := g.permissions.HasScope(ctx, userID, resource, scope)
	if err != nil {
		return false, g.storeFailure(ctx, "permission.has_scope", err)
	}
	return ok, nil
}

// CanAdminister reports whether userID holds the admin scope on resource or on
// the global resource.
func (g *Gateway) CanAdminister(ctx context.Context, userID, resource string) (bool, error) {
	admin := g.config.Permission.AdminScope
	for _, r := range []string{resource, permission.GlobalResource} {
		ok, err := g.HasScope(ctx, userID, r, admin)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

// GrantPermission writes req, replacing any prior grant for the same user and
// resource.
func (g *Gateway) GrantPermission(ctx context.Context, req permission.GrantRequest) (*permission.Data, error) {
	d, err := g.permissions.Grant(ctx, req)
	switch {
	case errors.Is(err, permission.ErrInvalidGrant),
		errors.Is(err, permission.ErrInvalidResource),
		errors.Is(err, permission.ErrInvalidMeta):
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	case err != nil:
		return nil, g.storeFailure(ctx, "permission.grant", err)
	}
	g.metrics.Inc(MetricPermissionGranted)
	g.emitAudit(ctx, AuditEvent{
		EventType: AuditPermissionGranted,
		UserID:    d.UserID,
		Success:   true,
		Metadata: map[string]string{
			"resource":   d.Resource,
			"granted_by": d.GrantedBy,
		},
	}, nil)
	return d, nil
}

// RevokePermission hard-deletes the grant for (userID, resource).
func (g *Gateway) RevokePermission(ctx context.Context, userID, resource, revokedBy string) error {
	if err := g.permissions.Revoke(ctx, userID, resource); err != nil {
		return g.storeFailure(ctx, "permission.revoke", err)
	}
	g.metrics.Inc(MetricPermissionRevoked)
	g.emitAudit(ctx, AuditEvent{
		EventType: AuditPermissionRevoked,
		UserID:    userID,
		Success:   true,
		Metadata:  map[string]string{"resource": resource, "revoked_by": revokedBy},
	}, nil)
	return nil
}

// DeactivatePermission marks the grant for (userID, resource) inactive and
// keeps it for history. It reports whether a grant existed.
func (g *Gateway) DeactivatePermission(ctx context.Context, userID, resource, deactivatedBy string) (bool, error) {
	ok, err := g.permissions.Deactivate(ctx, userID, resource)
	if err != nil {
		return false, g.storeFailure(ctx, "permission.deactivate", err)
	}
	if ok {
		g.emitAudit(ctx, AuditEvent{
			EventType: AuditPermissionDeactivated,
			UserID:    userID,
			Success:   true,
			Metadata:  map[string]string{"resource": resource, "deactivated_by": deactivatedBy},
		}, nil)
	}
	return ok, nil
}

// CreateContractSession records a client-submitted delegated grant under the
// ContractSession policy. Replays of an existing id return the stored record
// with created=false.
func (g *Gateway) CreateContractSession(ctx context.Context, req contractsession.CreateRequest) (*contractsession.ContractSession, bool, error) {
	cfg := g.config.ContractSession
	if cfg.RequireTxHash && req.TxHash == "" {
		return nil, false, fmt.Errorf("%w: txHash is required", ErrInvalidRequest)
	}
	if g.exceedsMaxDuration(req.ExpiresAt) {
		return nil, false, fmt.Errorf("%w: expiry exceeds %s", ErrInvalidRequest, cfg.MaxDuration)
	}
	req.ExceedsMaxDuration = false
	return g.createContractSession(ctx, req)
}

// MirrorContractSession records a grant that already exists on chain. The
// chain is authoritative, so the ContractSession policy never rejects it: a
// grant longer than MaxDuration is stored with ExceedsMaxDuration set and
// logged.
func (g *Gateway) MirrorContractSession(ctx context.Context, req contractsession.CreateRequest) (*contractsession.ContractSession, bool, error) {
	req.ExceedsMaxDuration = g.exceedsMaxDuration(req.ExpiresAt)
	if req.ExceedsMaxDuration {
		g.logger.WarnContext(ctx, "chain grant exceeds max duration",
			"contract_session_id", req.ID,
			"expires_at", req.ExpiresAt,
			"max_duration", g.config.ContractSession.MaxDuration,
		)
	}
	return g.createContractSession(ctx, req)
}

func (g *Gateway) exceedsMaxDuration(expiresAt time.Time) bool {
	limit := g.config.ContractSession.MaxDuration
	return limit > 0 && expiresAt.Sub(g.now()) > limit
}

func (g *Gateway) createContractSession(ctx context.Context, req contractsession.CreateRequest) (*contractsession.ContractSession, bool, error) {
	cs, created, err := g.contracts.Create(ctx, req)
	switch {
	case errors.Is(err, contractsession.ErrInvalidContractSession):
		return nil, false, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	case err != nil:
		return nil, false, g.storeFailure(ctx, "contract_session.create", err)
	}
	if created {
		g.metrics.Inc(MetricContractSessionCreated)
		ev := AuditEvent{
			EventType: AuditContractSessionCreated,
			UserID:    cs.UserID,
			Success:   true,
			Metadata: map[string]string{
				"contract_session_id": cs.ID,
				"wallet":              cs.WalletAddress,
				"delegate":            cs.Delegate,
				"expires_at":          cs.ExpiresAt.Format(time.RFC3339),
			},
		}
		if cs.ExceedsMaxDuration {
			ev.Metadata["exceeds_max_duration"] = "true"
		}
		g.emitAudit(ctx, ev, nil)
	}
	return cs, created, nil
}

// RevokeContractSession marks the record revoked. It returns nil, nil for
// unknown ids.
func (g *Gateway) RevokeContractSession(ctx context.Context, id string) (*contractsession.ContractSession, error) {
	before, err := g.contracts.Get(ctx, id)
	if err != nil {
		return nil, g.storeFailure(ctx, "contract_session.get", err)
	}
	cs, err := g.contracts.Revoke(ctx, id)
	if err != nil {
		return nil, g.storeFailure(ctx, "contract_session.revoke", err)
	}
	if cs != nil && before != nil && !before.Revoked {
		g.metrics.Inc(MetricContractSessionRevoked)
		g.emitAudit(ctx, AuditEvent{
			EventType: AuditContractSessionRevoked,
			UserID:    cs.UserID,
			Success:   true,
			Metadata:  map[string]string{"contract_session_id": cs.ID},
		}, nil)
	}
	return cs, nil
}

// ListPermissions returns every grant held by userID.
func (g *Gateway) ListPermissions(ctx context.Context, userID string) ([]*permission.Data, error) {
	list, err := g.permissions.List(ctx, userID)
	if err != nil {
		return nil, g.storeFailure(ctx, "permission.list", err)
	}
	return list, nil
}

// GetContractSession returns the record for id, revoked or not, or nil.
func (g *Gateway) GetContractSession(ctx context.Context, id string) (*contractsession.ContractSession, error) {
	cs, err := g.contracts.Get(ctx, id)
	if err != nil {
		return nil, g.storeFailure(ctx, "contract_session.get", err)
	}
	return cs, nil
}

// ListContractSessions returns the records of userID, newest first. A non-empty
// wallet narrows the list to that wallet.
func (g *Gateway) ListContractSessions(ctx context.Context, userID, wallet string) ([]*contractsession.ContractSession, error) {
	list, err := g.contracts.ListByUser(ctx, userID)
	if err != nil {
		return nil, g.storeFailure(ctx, "contract_session.list", err)
	}
	if wallet == "" {
		return list, nil
	}
	out := list[:0]
	for _, cs := range list {
		if strings.EqualFold(cs.WalletAddress, wallet) {
			out = append(out, cs)
		}
	}
	return out, nil
}
