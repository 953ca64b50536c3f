package siwe

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Request carries a signed message and the caller's expectations. Empty Domain
// or Nonce skips that check.
type Request struct {
	Message   string `json:"message"`
	Signature string `json:"signature"`
	Domain    string `json:"domain,omitempty"`
	Nonce     string `json:"nonce,omitempty"`
}

// Result is the outcome of a verification. Failures are values, never errors.
type Result struct {
	Success bool     `json:"success"`
	Address string   `json:"address,omitempty"`
	Data    *Message `json:"data,omitempty"`
	IsError bool     `json:"isError"`
	Error   string   `json:"error,omitempty"`
}

func failure(format string, args ...any) Result {
	return Result{IsError: true, Error: fmt.Sprintf(format, args...)}
}

// Verifier checks EIP-4361 sign-in messages.
type Verifier struct {
	nonces *NonceStore
	now    func() time.Time
	logger *slog.Logger
}

// Option customizes a [Verifier].
type Option func(*Verifier)

// WithNonceStore makes every message nonce single-use: it must have been issued
// by store and is consumed on successful signature recovery.
func WithNonceStore(store *NonceStore) Option {
	return func(v *Verifier) { v.nonces = store }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(v *Verifier) {
		if l != nil {
			v.logger = l
		}
	}
}

// NewVerifier creates a [Verifier].
func NewVerifier(opts ...Option) *Verifier {
	v := &Verifier{now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// VerifySiweMessage parses req.Message, checks its validity window and any
// expected domain or nonce, and requires the signature to recover the message
// address. It never panics.
func (v *Verifier) VerifySiweMessage(ctx context.Context, req Request) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = failure("siwe verification aborted: %v", r)
		}
	}()

	msg, err := ParseMessage(req.Message)
	if err != nil {
		return failure("%v", err)
	}
	if r := v.Check(msg, req.Domain, req.Nonce); r.IsError {
		return r
	}

	signer, err := VerifySignature(req.Message, req.Signature)
	if err != nil {
		v.logger.DebugContext(ctx, "siwe signature rejected", "claimed", msg.Address, "error", err)
		return failure("%v", err)
	}

	if v.nonces != nil {
		ok, err := v.nonces.Consume(ctx, msg.Nonce, msg.Domain)
		if err != nil {
			return failure("nonce store: %v", err)
		}
		if !ok {
			return failure("nonce not issued or already used")
		}
	}

	return Result{Success: true, Address: signer.Hex(), Data: msg}
}

// Check applies the non-cryptographic rules to a parsed message: validity
// window, and domain and nonce when expected values are given.
func (v *Verifier) Check(msg *Message, domain, nonce string) Result {
	now := v.now()
	if msg.ExpirationTime != nil && !now.Before(*msg.ExpirationTime) {
		return failure("message expired")
	}
	if msg.NotBefore != nil && now.Before(*msg.NotBefore) {
		return failure("message not yet valid")
	}
	if domain != "" && !strings.EqualFold(domain, msg.Domain) {
		return failure("domain mismatch")
	}
	if nonce != "" && nonce != msg.Nonce {
		return failure("nonce mismatch")
	}
	return Result{Success: true, Address: msg.Address, Data: msg}
}
