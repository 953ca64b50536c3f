package permission

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/MrEthical07/walletauth/kv"
)

var (
	// ErrInvalidGrant is returned when a grant request is incomplete.
	ErrInvalidGrant = errors.New("invalid permission grant")
	// ErrInvalidResource is returned for resources that are neither "global"
	// nor "namespace:value".
	ErrInvalidResource = errors.New("invalid permission resource")
	// ErrPermissionCorrupt is returned when a stored record cannot be decoded.
	ErrPermissionCorrupt = errors.New("permission record corrupt")
)

// GlobalResource is the resource that is not scoped to any namespace.
const GlobalResource = "global"

var resourcePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*:\S+$`)

// ValidateResource checks resource syntax.
func ValidateResource(resource string) error {
	if resource == GlobalResource || resourcePattern.MatchString(resource) {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidResource, resource)
}

// Data is one stored grant.
type Data struct {
	UserID    string     `json:"userId"`
	Resource  string     `json:"resource"`
	Scopes    ScopeSet   `json:"scopes"`
	GrantedBy string     `json:"grantedBy,omitempty"`
	GrantedAt time.Time  `json:"grantedAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	IsActive  bool       `json:"isActive"`
	Meta      *Meta      `json:"meta,omitempty"`
}

// Allows reports whether the grant is active, unexpired at now, and contains scope.
func (d *Data) Allows(scope string, now time.Time) bool {
	if d == nil || !d.IsActive {
		return false
	}
	if d.ExpiresAt != nil && !d.ExpiresAt.After(now) {
		return false
	}
	return d.Scopes.Has(scope)
}

// ScopeSet is a set of scope names, encoded as a sorted JSON array.
type ScopeSet map[string]struct{}

// NewScopeSet builds a set, dropping blanks.
func NewScopeSet(scopes ...string) ScopeSet {
	set := make(ScopeSet, len(scopes))
	for _, s := range scopes {
		s = strings.TrimSpace(s)
		if s != "" {
			set[s] = struct{}{}
		}
	}
	return set
}

func (s ScopeSet) Has(scope string) bool {
	_, ok := s[scope]
	return ok
}

// Slice returns the scopes in sorted order.
func (s ScopeSet) Slice() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s ScopeSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Slice())
}

func (s *ScopeSet) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*s = NewScopeSet(list...)
	return nil
}

// GrantRequest describes a grant to write.
type GrantRequest struct {
	UserID    string
	Resource  string
	Scopes    []string
	GrantedBy string
	ExpiresAt *time.Time
	Meta      *Meta
}

// Registry is the KV-backed permission registry.
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

// NewRegistry creates a permission [Registry] on top of store.
func NewRegistry(store kv.Store, opts ...Option) *Registry {
	r := &Registry{kv: store, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// userPrefix encodes userID so that no user's key prefix is a prefix of
// another's: user ids may contain ':' (fid:<n>), resources always do.
func userPrefix(userID string) string {
	return "perm:" + base64.RawURLEncoding.EncodeToString([]byte(userID)) + ":"
}

func (r *Registry) key(userID, resource string) string {
	return userPrefix(userID) + resource
}

// Grant writes an active grant for (UserID, Resource), replacing any previous one.
func (r *Registry) Grant(ctx context.Context, req GrantRequest) (*Data, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrInvalidGrant)
	}
	if err := ValidateResource(req.Resource); err != nil {
		return nil, err
	}
	scopes := NewScopeSet(req.Scopes...)
	if len(scopes) == 0 {
		return nil, fmt.Errorf("%w: at least one scope is required", ErrInvalidGrant)
	}
	if err := req.Meta.Validate(); err != nil {
		return nil, err
	}

	d := &Data{
		UserID:    req.UserID,
		Resource:  req.Resource,
		Scopes:    scopes,
		GrantedBy: req.GrantedBy,
		GrantedAt: r.now().UTC().Truncate(time.Second),
		IsActive:  true,
		Meta:      req.Meta,
	}
	if req.ExpiresAt != nil {
		exp := req.ExpiresAt.UTC()
		d.ExpiresAt = &exp
	}

	raw, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	if err := r.kv.Set(ctx, r.key(d.UserID, d.Resource), string(raw), 0); err != nil {
		return nil, err
	}
	return d, nil
}

// Get returns the grant for (userID, resource) or nil when none exists.
func (r *Registry) Get(ctx context.Context, userID, resource string) (*Data, error) {
	if userID == "" || ValidateResource(resource) != nil {
		return nil, nil
	}
	raw, ok, err := r.kv.Get(ctx, r.key(userID, resource))
	if err != nil || !ok {
		return nil, err
	}
	d, err := decode(raw)
	if err != nil {
		return nil, err
	}
	// A record only answers for the exact pair it was granted to.
	if d.UserID != userID || d.Resource != resource {
		return nil, nil
	}
	return d, nil
}

// List returns every grant held by userID, ordered by resource.
func (r *Registry) List(ctx context.Context, userID string) ([]*Data, error) {
	if userID == "" {
		return nil, nil
	}
	keys, err := r.kv.Keys(ctx, userPrefix(userID)+"*")
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)

	out := make([]*Data, 0, len(keys))
	for _, key := range keys {
		raw, ok, err := r.kv.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		d, err := decode(raw)
		if err != nil {
			return nil, err
		}
		if d.UserID != userID {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Resource < out[j].Resource })
	return out, nil
}

// HasScope reports whether userID currently holds scope on resource.
func (r *Registry) HasScope(ctx context.Context, userID, resource, scope string) (bool, error) {
	d, err := r.Get(ctx, userID, resource)
	if err != nil {
		return false, err
	}
	return d.Allows(scope, r.now()), nil
}

// Deactivate marks an existing grant inactive without deleting it. It reports
// whether a grant existed.
func (r *Registry) Deactivate(ctx context.Context, userID, resource string) (bool, error) {
	d, err := r.Get(ctx, userID, resource)
	if err != nil || d == nil {
		return false, err
	}
	d.IsActive = false
	raw, err := json.Marshal(d)
	if err != nil {
		return false, err
	}
	return r.kv.SetIfExists(ctx, r.key(userID, resource), string(raw), 0)
}

// Revoke hard-deletes the grant. Revoking a missing grant is not an error.
func (r *Registry) Revoke(ctx context.Context, userID, resource string) error {
	if userID == "" || ValidateResource(resource) != nil {
		return nil
	}
	return r.kv.Del(ctx, r.key(userID, resource))
}

func decode(raw string) (*Data, error) {
	var d Data
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPermissionCorrupt, err)
	}
	if d.UserID == "" || d.Resource == "" {
		return nil, fmt.Errorf("%w: missing identity", ErrPermissionCorrupt)
	}
	return &d, nil
}
