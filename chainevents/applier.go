package chainevents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	walletauth "github.com/MrEthical07/walletauth"
	"github.com/MrEthical07/walletauth/contractsession"
	"github.com/MrEthical07/walletauth/permission"
)

// grantedBy is recorded on permissions written from chain events.
const grantedBy = "chain"

// Applier writes events through the Gateway, so they are metered and audited
// like API calls.
type Applier struct {
	gw     *walletauth.Gateway
	logger *slog.Logger
}

// NewApplier creates an [Applier].
func NewApplier(gw *walletauth.Gateway, logger *slog.Logger) *Applier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Applier{gw: gw, logger: logger.With("component", "chainevents")}
}

// Apply mirrors ev. Errors matching ErrInvalidEvent are permanent; errors
// matching walletauth.ErrUnavailable are worth retrying.
func (a *Applier) Apply(ctx context.Context, ev Event) error {
	if err := ev.validate(); err != nil {
		return err
	}

	switch ev.Name {
	case SessionGranted:
		return a.sessionGranted(ctx, ev)
	case SessionRevoked:
		cs, err := a.gw.RevokeContractSession(ctx, ev.ContractSessionID)
		if err != nil {
			return err
		}
		if cs == nil {
			a.logger.WarnContext(ctx, "revoke for unknown contract session", "contract_session_id", ev.ContractSessionID, "tx_hash", ev.TxHash)
		}
		return nil
	case PermissionGranted:
		return a.permissionGranted(ctx, ev)
	default:
		resource, err := WalletResource(ev.Wallet)
		if err != nil {
			return err
		}
		return a.gw.RevokePermission(ctx, ev.UserID, resource, grantedBy)
	}
}

func (a *Applier) sessionGranted(ctx context.Context, ev Event) error {
	cs, created, err := a.gw.MirrorContractSession(ctx, contractsession.CreateRequest{
		ID:               ev.ContractSessionID,
		UserID:           ev.UserID,
		WalletAddress:    ev.Wallet,
		Delegate:         ev.Delegate,
		AllowedTokens:    ev.AllowedTokens,
		AllowWholeWallet: ev.AllowWholeWallet,
		ExpiresAt:        ev.Expiry(),
		TxHash:           ev.TxHash,
	})
	if errors.Is(err, walletauth.ErrInvalidRequest) {
		return fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	if err != nil {
		return err
	}
	if !created {
		a.logger.DebugContext(ctx, "contract session already mirrored", "contract_session_id", cs.ID)
	}
	return nil
}

func (a *Applier) permissionGranted(ctx context.Context, ev Event) error {
	resource, err := WalletResource(ev.Wallet)
	if err != nil {
		return err
	}
	req := permission.GrantRequest{
		UserID:    ev.UserID,
		Resource:  resource,
		Scopes:    ev.Scopes,
		GrantedBy: grantedBy,
	}
	if exp := ev.Expiry(); !exp.IsZero() {
		req.ExpiresAt = &exp
	}
	if ev.ContractSessionID != "" {
		req.Meta = permission.DelegationGrant(permission.DelegationMeta{
			ContractSessionID: ev.ContractSessionID,
			Delegate:          ev.Delegate,
			TxHash:            ev.TxHash,
		})
	}

	_, err = a.gw.GrantPermission(ctx, req)
	if errors.Is(err, walletauth.ErrInvalidRequest) {
		return fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	return err
}
