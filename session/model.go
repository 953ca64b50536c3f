package session

import (
	"errors"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultTTL is the session lifetime applied when callers do not pick one.
const DefaultTTL = 12 * time.Hour

// AuthProvider names the proof that established the session identity.
type AuthProvider string

const (
	// ProviderFarcaster marks identities proven with Sign-In With Farcaster.
	ProviderFarcaster AuthProvider = "farcaster"
	// ProviderEthereum marks identities proven with Sign-In With Ethereum.
	ProviderEthereum AuthProvider = "ethereum"
)

// User is the verified identity attached to a session. For Farcaster users FID
// (with Username) is authoritative; for Ethereum users Address is.
type User struct {
	ID           string       `json:"id"`
	Address      string       `json:"address,omitempty"`
	AuthProvider AuthProvider `json:"authProvider"`
	FID          uint64       `json:"fid,omitempty"`
	Username     string       `json:"username,omitempty"`
	DisplayName  string       `json:"displayName,omitempty"`
	PfpURL       string       `json:"pfpUrl,omitempty"`
}

// Session is a server-issued, time-bounded credential mapping an opaque id to a User.
type Session struct {
	ID        string    `json:"sessionId"`
	Type      string    `json:"type"`
	User      User      `json:"user"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// RevokeReason is recorded with every revocation for audit purposes.
type RevokeReason string

const (
	RevokeUserRequest       RevokeReason = "user_request"
	RevokeAdminAction       RevokeReason = "admin_action"
	RevokeExpired           RevokeReason = "expired"
	RevokeSecurityViolation RevokeReason = "security_violation"
)

// ErrInvalidRevokeReason is returned for reasons outside the closed set.
var ErrInvalidRevokeReason = errors.New("invalid revoke reason")

// ErrInvalidUser is returned when user data carries no resolvable identity.
var ErrInvalidUser = errors.New("invalid session user")

// Valid reports whether r belongs to the closed set of reasons.
func (r RevokeReason) Valid() bool {
	switch r {
	case RevokeUserRequest, RevokeAdminAction, RevokeExpired, RevokeSecurityViolation:
		return true
	}
	return false
}

// ParseRevokeReason maps a wire value onto a RevokeReason.
func ParseRevokeReason(s string) (RevokeReason, error) {
	r := RevokeReason(strings.TrimSpace(s))
	if !r.Valid() {
		return "", ErrInvalidRevokeReason
	}
	return r, nil
}

// Validate checks that u carries the identity fields its provider makes authoritative.
func (u User) Validate() error {
	if strings.TrimSpace(u.ID) == "" {
		return errors.Join(ErrInvalidUser, errors.New("id is required"))
	}
	switch u.AuthProvider {
	case ProviderFarcaster:
		if u.FID == 0 || strings.TrimSpace(u.Username) == "" {
			return errors.Join(ErrInvalidUser, errors.New("farcaster user requires fid and username"))
		}
	case ProviderEthereum:
		if !common.IsHexAddress(u.Address) {
			return errors.Join(ErrInvalidUser, errors.New("ethereum user requires a valid address"))
		}
	default:
		return errors.Join(ErrInvalidUser, errors.New("unknown auth provider"))
	}
	return nil
}
