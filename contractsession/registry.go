package contractsession

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/MrEthical07/walletauth/kv"
)

var (
	// ErrInvalidContractSession is returned when a create request is incomplete.
	ErrInvalidContractSession = errors.New("invalid contract session")
	// ErrContractSessionCorrupt is returned when a stored record cannot be decoded.
	ErrContractSessionCorrupt = errors.New("contract session record corrupt")
)

// ContractSession mirrors one on-chain delegated session grant.
type ContractSession struct {
	ID               string     `json:"contractSessionId"`
	UserID           string     `json:"userId"`
	WalletAddress    string     `json:"walletAddress"`
	Delegate         string     `json:"delegate"`
	AllowedTokens    []string   `json:"allowedTokens"`
	AllowWholeWallet bool       `json:"allowWholeWallet"`
	ExpiresAt        time.Time  `json:"expiresAt"`
	CreatedAt        time.Time  `json:"createdAt"`
	Revoked          bool       `json:"revoked,omitempty"`
	RevokedAt        *time.Time `json:"revokedAt,omitempty"`
	TxHash           string     `json:"txHash,omitempty"`
	// ExceedsMaxDuration marks a chain grant mirrored despite running longer
	// than the configured cap.
	ExceedsMaxDuration bool `json:"exceedsMaxDuration,omitempty"`
}

// Active reports whether the grant is unrevoked and unexpired at now.
func (c *ContractSession) Active(now time.Time) bool {
	return c != nil && !c.Revoked && now.Before(c.ExpiresAt)
}

// AllowsToken reports whether token may be spent under this grant.
func (c *ContractSession) AllowsToken(token string) bool {
	if c == nil {
		return false
	}
	if c.AllowWholeWallet {
		return true
	}
	if !common.IsHexAddress(token) {
		return false
	}
	want := common.HexToAddress(token).Hex()
	for _, t := range c.AllowedTokens {
		if t == want {
			return true
		}
	}
	return false
}

// CreateRequest describes a grant observed on chain or submitted by a client.
// An empty ID is assigned a random UUID; see [NormalizeID] for the rest.
type CreateRequest struct {
	ID                 string
	UserID             string
	WalletAddress      string
	Delegate           string
	AllowedTokens      []string
	AllowWholeWallet   bool
	ExpiresAt          time.Time
	TxHash             string
	ExceedsMaxDuration bool
}

// MaxIDLength bounds contract session ids. A uint256 in decimal is 78 digits.
const MaxIDLength = 128

// NormalizeID returns the canonical form of a contract session id and whether
// it is acceptable. Ids are opaque: a UUID, a 0x-prefixed bytes32, a decimal
// uint256 or any other printable token up to MaxIDLength bytes. Hex and UUID
// ids are lower-cased so chain and API spellings meet on one record.
func NormalizeID(id string) (string, bool) {
	if id == "" || len(id) > MaxIDLength {
		return "", false
	}
	for i := 0; i < len(id); i++ {
		if c := id[i]; c <= ' ' || c > '~' {
			return "", false
		}
	}
	if isHexID(id) {
		return strings.ToLower(id), true
	}
	if _, err := uuid.Parse(id); err == nil {
		return strings.ToLower(id), true
	}
	return id, true
}

func isHexID(id string) bool {
	if len(id) < 3 || id[0] != '0' || (id[1] != 'x' && id[1] != 'X') {
		return false
	}
	for _, c := range id[2:] {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return false
		}
	}
	return true
}

// Registry is the KV-backed contract-session registry.
type Registry struct {
	kv  kv.Store
	now func() time.Time
}

// Option customizes a [Registry].
type Option func(*Registry)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRegistry creates a [Registry] on top of store.
func NewRegistry(store kv.Store, opts ...Option) *Registry {
	r := &Registry{kv: store, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func key(id string) string            { return "cs:" + id }
func userKey(userID string) string    { return "cs_user:" + userID }
func walletKey(address string) string { return "cs_wallet:" + address }

func (req CreateRequest) normalize() (*ContractSession, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrInvalidContractSession)
	}
	if !common.IsHexAddress(req.WalletAddress) {
		return nil, fmt.Errorf("%w: invalid wallet address %q", ErrInvalidContractSession, req.WalletAddress)
	}
	if !common.IsHexAddress(req.Delegate) {
		return nil, fmt.Errorf("%w: invalid delegate %q", ErrInvalidContractSession, req.Delegate)
	}
	if req.ExpiresAt.IsZero() {
		return nil, fmt.Errorf("%w: expiresAt is required", ErrInvalidContractSession)
	}
	if !req.AllowWholeWallet && len(req.AllowedTokens) == 0 {
		return nil, fmt.Errorf("%w: allowedTokens is empty and allowWholeWallet is false", ErrInvalidContractSession)
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	id, ok := NormalizeID(id)
	if !ok {
		return nil, fmt.Errorf("%w: invalid id %q", ErrInvalidContractSession, req.ID)
	}

	tokens := make([]string, 0, len(req.AllowedTokens))
	seen := make(map[string]struct{}, len(req.AllowedTokens))
	for _, t := range req.AllowedTokens {
		if !common.IsHexAddress(t) {
			return nil, fmt.Errorf("%w: invalid token address %q", ErrInvalidContractSession, t)
		}
		addr := common.HexToAddress(t).Hex()
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		tokens = append(tokens, addr)
	}
	sort.Strings(tokens)

	return &ContractSession{
		ID:                 id,
		UserID:             req.UserID,
		WalletAddress:      common.HexToAddress(req.WalletAddress).Hex(),
		Delegate:           common.HexToAddress(req.Delegate).Hex(),
		AllowedTokens:      tokens,
		AllowWholeWallet:   req.AllowWholeWallet,
		ExpiresAt:          req.ExpiresAt.UTC(),
		TxHash:             strings.ToLower(req.TxHash),
		ExceedsMaxDuration: req.ExceedsMaxDuration,
	}, nil
}

// Create stores a new contract session and indexes it by user and wallet. When a
// record with the same id already exists it is returned unchanged with
// created=false, so replayed chain events are harmless.
func (r *Registry) Create(ctx context.Context, req CreateRequest) (cs *ContractSession, created bool, err error) {
	cs, err = req.normalize()
	if err != nil {
		return nil, false, err
	}
	cs.CreatedAt = r.now().UTC().Truncate(time.Second)

	raw, err := json.Marshal(cs)
	if err != nil {
		return nil, false, err
	}
	ok, err := r.kv.SetIfAbsent(ctx, key(cs.ID), string(raw), 0)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		existing, err := r.Get(ctx, cs.ID)
		if err != nil {
			return nil, false, err
		}
		if existing == nil {
			return nil, false, fmt.Errorf("%w: %s vanished during create", ErrContractSessionCorrupt, cs.ID)
		}
		cs = existing
	}

	// SADD is idempotent, so a replay also repairs indexes a failed create left out.
	if err := r.kv.SAdd(ctx, userKey(cs.UserID), cs.ID); err != nil {
		return nil, false, err
	}
	if err := r.kv.SAdd(ctx, walletKey(cs.WalletAddress), cs.ID); err != nil {
		return nil, false, err
	}
	return cs, ok, nil
}

// Get returns the record for id, revoked or not, or nil when none exists.
func (r *Registry) Get(ctx context.Context, id string) (*ContractSession, error) {
	id, valid := NormalizeID(id)
	if !valid {
		return nil, nil
	}
	raw, ok, err := r.kv.Get(ctx, key(id))
	if err != nil || !ok {
		return nil, err
	}
	return decode(raw)
}

// ListByUser returns every record of userID, newest first.
func (r *Registry) ListByUser(ctx context.Context, userID string) ([]*ContractSession, error) {
	if userID == "" {
		return nil, nil
	}
	return r.list(ctx, userKey(userID))
}

// ListByWallet returns every record for wallet, newest first.
func (r *Registry) ListByWallet(ctx context.Context, wallet string) ([]*ContractSession, error) {
	if !common.IsHexAddress(wallet) {
		return nil, nil
	}
	return r.list(ctx, walletKey(common.HexToAddress(wallet).Hex()))
}

func (r *Registry) list(ctx context.Context, index string) ([]*ContractSession, error) {
	ids, err := r.kv.SMembers(ctx, index)
	if err != nil {
		return nil, err
	}
	out := make([]*ContractSession, 0, len(ids))
	for _, id := range ids {
		cs, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if cs != nil {
			out = append(out, cs)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Revoke marks the record revoked and keeps it. It returns nil, nil when no
// record exists. Revoking twice keeps the first RevokedAt.
func (r *Registry) Revoke(ctx context.Context, id string) (*ContractSession, error) {
	cs, err := r.Get(ctx, id)
	if err != nil || cs == nil {
		return nil, err
	}
	if cs.Revoked {
		return cs, nil
	}
	at := r.now().UTC().Truncate(time.Second)
	cs.Revoked = true
	cs.RevokedAt = &at

	raw, err := json.Marshal(cs)
	if err != nil {
		return nil, err
	}
	if _, err := r.kv.SetIfExists(ctx, key(cs.ID), string(raw), 0); err != nil {
		return nil, err
	}
	return cs, nil
}

// Active returns the record for id when it is unrevoked and unexpired, else nil.
func (r *Registry) Active(ctx context.Context, id string) (*ContractSession, error) {
	cs, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !cs.Active(r.now()) {
		return nil, nil
	}
	return cs, nil
}

func decode(raw string) (*ContractSession, error) {
	var cs ContractSession
	if err := json.Unmarshal([]byte(raw), &cs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContractSessionCorrupt, err)
	}
	if cs.ID == "" || cs.UserID == "" {
		return nil, fmt.Errorf("%w: missing identity", ErrContractSessionCorrupt)
	}
	return &cs, nil
}
