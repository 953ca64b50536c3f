package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/walletauth/internal"
	"github.com/MrEthical07/walletauth/kv"
)

// ErrSessionCreationFailed wraps failures to mint or persist a new session.
var ErrSessionCreationFailed = errors.New("session creation failed")

// RevokeObserver is told about every revocation that removed a live session.
// sess is nil when the record was already gone.
type RevokeObserver func(ctx context.Context, sessionID string, sess *Session, reason RevokeReason)

// Store is the session lifecycle store.
//
//	Performance: every operation is 1–2 KV round trips; nothing is cached.
type Store struct {
	kv         kv.Store
	defaultTTL time.Duration
	now        func() time.Time
	onRevoke   RevokeObserver
}

// Option customizes a [Store].
type Option func(*Store)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRevokeObserver registers a hook that receives revoke reasons for auditing.
func WithRevokeObserver(fn RevokeObserver) Option {
	return func(s *Store) {
		s.onRevoke = fn
	}
}

// NewStore creates a session [Store] on top of store. defaultTTL <= 0 falls back
// to [DefaultTTL].
func NewStore(store kv.Store, defaultTTL time.Duration, opts ...Option) *Store {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	s := &Store{
		kv:         store,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(sessionID string) string {
	return "session:" + sessionID
}

func (s *Store) userKey(userID string) string {
	return "session_user:" + userID
}

// DefaultTTL returns the lifetime applied by Create and by Extend without an explicit ttl.
func (s *Store) DefaultTTL() time.Duration {
	return s.defaultTTL
}

// Create mints a fresh session for user, persists it with the default TTL and
// returns the full record.
func (s *Store) Create(ctx context.Context, sessionType string, user User) (*Session, error) {
	if err := user.Validate(); err != nil {
		return nil, err
	}
	if sessionType == "" {
		sessionType = "default"
	}

	sid, err := internal.NewSessionID()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}

	now := s.now().UTC().Truncate(time.Second)
	sess := &Session{
		ID:        sid.String(),
		Type:      sessionType,
		User:      user,
		CreatedAt: now,
		ExpiresAt: now.Add(s.defaultTTL),
	}

	data, err := Encode(sess)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}
	if err := s.kv.Set(ctx, s.key(sess.ID), data, s.defaultTTL); err != nil {
		return nil, err
	}
	// The user index only drives RevokeAllForUser; a failed index write leaves a
	// valid session that can still be revoked by id.
	_ = s.kv.SAdd(ctx, s.userKey(user.ID), sess.ID)

	return sess, nil
}

// Get returns the live session for sessionID, or nil when it is missing, expired,
// or sessionID is not a well-formed identifier. Only backend failures return an error.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	if _, err := internal.ParseSessionID(sessionID); err != nil {
		return nil, nil
	}

	data, ok, err := s.kv.Get(ctx, s.key(sessionID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if sess.ID != sessionID {
		return nil, fmt.Errorf("%w: id mismatch", ErrSessionCorrupt)
	}
	if !s.now().Before(sess.ExpiresAt) {
		return nil, nil
	}

	return sess, nil
}

// Extend moves the expiry of an existing session to now+ttl (ttl <= 0 uses the
// default). It returns false, without creating anything, when the session does
// not exist. Concurrent extends are last-write-wins.
func (s *Store) Extend(ctx context.Context, sessionID string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	sess, err := s.Get(ctx, sessionID)
	if err != nil || sess == nil {
		return false, err
	}

	sess.ExpiresAt = s.now().UTC().Truncate(time.Second).Add(ttl)
	data, err := Encode(sess)
	if err != nil {
		return false, err
	}

	// XX write: a revoke that lands between the read and this write wins.
	return s.kv.SetIfExists(ctx, s.key(sessionID), data, ttl)
}

// Validate reports whether sessionID names a live session. It never mutates state.
func (s *Store) Validate(ctx context.Context, sessionID string) (bool, error) {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return sess != nil, nil
}

// Revoke deletes the session immediately. Revoking a missing session is a no-op.
// reason is handed to the revoke observer and never changes the outcome.
func (s *Store) Revoke(ctx context.Context, sessionID string, reason RevokeReason) error {
	if !reason.Valid() {
		return ErrInvalidRevokeReason
	}
	if _, err := internal.ParseSessionID(sessionID); err != nil {
		return nil
	}

	sess, err := s.Get(ctx, sessionID)
	if err != nil && !errors.Is(err, ErrSessionCorrupt) {
		return err
	}

	if err := s.kv.Del(ctx, s.key(sessionID)); err != nil {
		return err
	}
	if sess != nil {
		_ = s.kv.SRem(ctx, s.userKey(sess.User.ID), sessionID)
	}

	if s.onRevoke != nil && sess != nil {
		s.onRevoke(ctx, sessionID, sess, reason)
	}
	return nil
}

// ActiveSessionIDs lists the live sessions of userID, pruning stale index entries.
func (s *Store) ActiveSessionIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.kv.SMembers(ctx, s.userKey(userID))
	if err != nil {
		return nil, err
	}

	live := make([]string, 0, len(ids))
	var stale []string
	for _, id := range ids {
		sess, err := s.Get(ctx, id)
		if err != nil && !errors.Is(err, ErrSessionCorrupt) {
			return nil, err
		}
		if sess == nil || sess.User.ID != userID {
			stale = append(stale, id)
			continue
		}
		live = append(live, id)
	}
	if len(stale) > 0 {
		_ = s.kv.SRem(ctx, s.userKey(userID), stale...)
	}
	return live, nil
}

// RevokeAllForUser revokes every live session of userID with the same reason.
//
// This is not atomic: a session created while the call runs may survive it.
func (s *Store) RevokeAllForUser(ctx context.Context, userID string, reason RevokeReason) (int, error) {
	if !reason.Valid() {
		return 0, ErrInvalidRevokeReason
	}
	ids, err := s.ActiveSessionIDs(ctx, userID)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		if err := s.Revoke(ctx, id, reason); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}
