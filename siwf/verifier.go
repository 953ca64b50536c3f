package siwf

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/MrEthical07/walletauth/siwe"
)

const (
	// Statement is the statement every Farcaster sign-in message carries.
	Statement = "Farcaster Auth"
	// ChainID is the chain Farcaster sign-in messages are bound to (OP Mainnet).
	ChainID = 10

	fidResourcePrefix = "farcaster://fid/"
)

// VerifyResult is the outcome of a SIWF verification.
type VerifyResult struct {
	Success bool          `json:"success"`
	FID     uint64        `json:"fid,omitempty"`
	Data    *siwe.Message `json:"data,omitempty"`
	IsError bool          `json:"isError"`
	Error   string        `json:"error,omitempty"`
}

func verifyFailure(format string, args ...any) VerifyResult {
	return VerifyResult{IsError: true, Error: fmt.Sprintf(format, args...)}
}

// Verifier checks SIWF messages: EIP-4361 messages whose resources name a fid
// and whose signer is that fid's custody address.
type Verifier struct {
	custody CustodyResolver
	siwe    *siwe.Verifier
}

// NewVerifier creates a [Verifier]. opts configure the underlying SIWE checks.
func NewVerifier(custody CustodyResolver, opts ...siwe.Option) *Verifier {
	return &Verifier{custody: custody, siwe: siwe.NewVerifier(opts...)}
}

// FIDFromResources returns the fid named by a farcaster://fid/<n> resource.
func FIDFromResources(resources []string) (uint64, bool) {
	for _, r := range resources {
		if !strings.HasPrefix(r, fidResourcePrefix) {
			continue
		}
		fid, err := strconv.ParseUint(strings.TrimPrefix(r, fidResourcePrefix), 10, 64)
		if err != nil || fid == 0 {
			return 0, false
		}
		return fid, true
	}
	return 0, false
}

// VerifySignInMessage verifies p. Verification failures are results; only a
// failed custody lookup returns an error.
func (v *Verifier) VerifySignInMessage(ctx context.Context, p VerifyParams) (VerifyResult, error) {
	msg, err := siwe.ParseMessage(p.Message)
	if err != nil {
		return verifyFailure("%v", err), nil
	}
	if msg.Statement != Statement {
		return verifyFailure("unexpected statement %q", msg.Statement), nil
	}
	if msg.ChainID != ChainID {
		return verifyFailure("unexpected chain id %d", msg.ChainID), nil
	}
	fid, ok := FIDFromResources(msg.Resources)
	if !ok {
		return verifyFailure("message names no fid"), nil
	}
	if r := v.siwe.Check(msg, p.Domain, p.Nonce); r.IsError {
		return verifyFailure("%s", r.Error), nil
	}

	signer, err := siwe.VerifySignature(p.Message, p.Signature)
	if err != nil {
		return verifyFailure("%v", err), nil
	}

	custody, err := v.custody.CustodyAddress(ctx, fid)
	if errors.Is(err, ErrUnknownFID) {
		return verifyFailure("fid %d is not registered", fid), nil
	}
	if err != nil {
		return VerifyResult{}, err
	}
	if custody != signer {
		return verifyFailure("signer is not the custody address of fid %d", fid), nil
	}

	return VerifyResult{Success: true, FID: fid, Data: msg}, nil
}
