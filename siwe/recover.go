package siwe

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	siwego "github.com/spruceid/siwe-go"
	"golang.org/x/crypto/sha3"
)

// ErrInvalidSignature is returned when a signature is malformed, does not
// recover, or recovers to an address other than the message's.
var ErrInvalidSignature = errors.New("invalid signature")

// HashMessage returns the EIP-191 personal_sign digest of message. Wallet-side
// tooling signs this digest.
func HashMessage(message string) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte("\x19Ethereum Signed Message:\n" + strconv.Itoa(len(message)) + message))
	return h.Sum(nil)
}

// VerifySignature checks that sigHex is an EIP-191 signature of the EIP-4361
// message text by the address the message names, and returns that address.
// v may be 0/1 or 27/28 and the 0x prefix is optional.
func VerifySignature(text, sigHex string) (common.Address, error) {
	parsed, err := siwego.ParseMessage(strings.ReplaceAll(text, "\r\n", "\n"))
	if err != nil {
		return common.Address{}, malformed("%v", err)
	}

	sigHex = strings.TrimSpace(sigHex)
	if !strings.HasPrefix(sigHex, "0x") && !strings.HasPrefix(sigHex, "0X") {
		sigHex = "0x" + sigHex
	}
	// siwe-go indexes the recovery byte without a length check.
	if sig, err := hexutil.Decode(sigHex); err != nil || len(sig) != crypto.SignatureLength {
		return common.Address{}, ErrInvalidSignature
	}

	pub, err := parsed.VerifyEIP191(sigHex)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
