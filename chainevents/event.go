package chainevents

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/MrEthical07/walletauth/contractsession"
)

// Name is the contract event name.
type Name string

const (
	SessionGranted    Name = "MiniAppSessionGranted"
	SessionRevoked    Name = "MiniAppSessionRevoked"
	PermissionGranted Name = "PermissionGranted"
	PermissionRevoked Name = "PermissionRevoked"
)

// ErrInvalidEvent marks events that can never be applied. They are skipped.
var ErrInvalidEvent = errors.New("invalid chain event")

// Event is one decoded contract event. ExpiresAt is unix seconds, as emitted.
type Event struct {
	Name              Name     `json:"event"`
	ContractSessionID string   `json:"contractSessionId,omitempty"`
	UserID            string   `json:"userId,omitempty"`
	Wallet            string   `json:"wallet"`
	Delegate          string   `json:"delegate,omitempty"`
	AllowedTokens     []string `json:"allowedTokens,omitempty"`
	AllowWholeWallet  bool     `json:"allowWholeWallet,omitempty"`
	Scopes            []string `json:"scopes,omitempty"`
	ExpiresAt         int64    `json:"expiresAt,omitempty"`
	TxHash            string   `json:"txHash,omitempty"`
	BlockNumber       uint64   `json:"blockNumber,omitempty"`
	LogIndex          uint     `json:"logIndex,omitempty"`
}

// Expiry returns ExpiresAt as a time, or the zero time when unset.
func (e Event) Expiry() time.Time {
	if e.ExpiresAt <= 0 {
		return time.Time{}
	}
	return time.Unix(e.ExpiresAt, 0).UTC()
}

// WalletResource is the permission resource of a wallet.
func WalletResource(wallet string) (string, error) {
	if !common.IsHexAddress(wallet) {
		return "", fmt.Errorf("%w: wallet %q is not an address", ErrInvalidEvent, wallet)
	}
	return "wallet:" + common.HexToAddress(wallet).Hex(), nil
}

func (e Event) validate() error {
	switch e.Name {
	case SessionGranted:
		if e.ContractSessionID == "" || e.UserID == "" {
			return fmt.Errorf("%w: %s needs contractSessionId and userId", ErrInvalidEvent, e.Name)
		}
	case SessionRevoked:
		if e.ContractSessionID == "" {
			return fmt.Errorf("%w: %s needs contractSessionId", ErrInvalidEvent, e.Name)
		}
	case PermissionGranted:
		if strings.TrimSpace(e.UserID) == "" || len(e.Scopes) == 0 {
			return fmt.Errorf("%w: %s needs userId and scopes", ErrInvalidEvent, e.Name)
		}
	case PermissionRevoked:
		if strings.TrimSpace(e.UserID) == "" {
			return fmt.Errorf("%w: %s needs userId", ErrInvalidEvent, e.Name)
		}
	default:
		return fmt.Errorf("%w: unknown event %q", ErrInvalidEvent, e.Name)
	}
	if e.ContractSessionID != "" {
		if _, ok := contractsession.NormalizeID(e.ContractSessionID); !ok {
			return fmt.Errorf("%w: contractSessionId %q is malformed", ErrInvalidEvent, e.ContractSessionID)
		}
	}
	return nil
}
