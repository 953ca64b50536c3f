package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"math/big"
)

// SessionID is the raw form of an opaque session identifier.
type SessionID [16]byte

const nonceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// NonceLength is long enough for the EIP-4361 minimum of 8 alphanumerics with margin.
const NonceLength = 17

func NewSessionID() (SessionID, error) {
	var sid SessionID
	_, err := rand.Read(sid[:])
	return sid, err
}

func (s SessionID) Bytes() []byte {
	return s[:]
}

func (s SessionID) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(s[:])
}

// ParseSessionID rejects anything that could not have come from NewSessionID.
func ParseSessionID(sessionID string) (SessionID, error) {
	var sid SessionID

	if len(sessionID) != base64.RawURLEncoding.EncodedLen(len(sid)) {
		return sid, errors.New("invalid session id size")
	}
	raw, err := base64.RawURLEncoding.DecodeString(sessionID)
	if err != nil {
		return sid, err
	}
	if len(raw) != len(sid) {
		return sid, errors.New("invalid session id size")
	}

	copy(sid[:], raw)
	return sid, nil
}

// NewNonce returns an alphanumeric nonce suitable for SIWE/SIWF messages.
func NewNonce() (string, error) {
	max := big.NewInt(int64(len(nonceAlphabet)))
	out := make([]byte, NonceLength)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = nonceAlphabet[n.Int64()]
	}
	return string(out), nil
}
