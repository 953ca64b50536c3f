package siwe

import (
	"context"
	"time"
	"unicode"

	"github.com/MrEthical07/walletauth/internal"
	"github.com/MrEthical07/walletauth/kv"
)

// DefaultNonceTTL bounds how long an issued nonce stays redeemable.
const DefaultNonceTTL = 10 * time.Minute

// NonceStore issues single-use sign-in nonces.
type NonceStore struct {
	kv  kv.Store
	ttl time.Duration
}

// NewNonceStore creates a [NonceStore]. ttl <= 0 uses DefaultNonceTTL.
func NewNonceStore(store kv.Store, ttl time.Duration) *NonceStore {
	if ttl <= 0 {
		ttl = DefaultNonceTTL
	}
	return &NonceStore{kv: store, ttl: ttl}
}

func nonceKey(nonce string) string {
	return "siwe_nonce:" + nonce
}

// Issue mints and records a fresh nonce bound to domain.
func (s *NonceStore) Issue(ctx context.Context, domain string) (string, error) {
	nonce, err := internal.NewNonce()
	if err != nil {
		return "", err
	}
	if err := s.kv.Set(ctx, nonceKey(nonce), domain, s.ttl); err != nil {
		return "", err
	}
	return nonce, nil
}

// Consume redeems nonce for domain. It reports false when the nonce was never
// issued, already used, expired, or issued for another domain.
func (s *NonceStore) Consume(ctx context.Context, nonce, domain string) (bool, error) {
	if !validNonce(nonce) {
		return false, nil
	}
	bound, ok, err := s.kv.Take(ctx, nonceKey(nonce))
	if err != nil || !ok {
		return false, err
	}
	return bound == "" || bound == domain, nil
}

func validNonce(n string) bool {
	if len(n) < MinNonceLength {
		return false
	}
	for _, r := range n {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return false
		}
	}
	return true
}
