package siwe

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	siwego "github.com/spruceid/siwe-go"
)

const (
	headerSuffix = " wants you to sign in with your Ethereum account:"

	tagURI            = "URI: "
	tagVersion        = "Version: "
	tagChainID        = "Chain ID: "
	tagNonce          = "Nonce: "
	tagIssuedAt       = "Issued At: "
	tagExpirationTime = "Expiration Time: "
	tagNotBefore      = "Not Before: "
	tagRequestID      = "Request ID: "
	tagResources      = "Resources:"
)

// MinNonceLength is the EIP-4361 lower bound on nonce length.
const MinNonceLength = 8

// ErrMalformedMessage is returned by ParseMessage.
var ErrMalformedMessage = errors.New("malformed siwe message")

// Message is a parsed EIP-4361 message.
type Message struct {
	Domain         string     `json:"domain"`
	Address        string     `json:"address"`
	Statement      string     `json:"statement,omitempty"`
	URI            string     `json:"uri"`
	Version        string     `json:"version"`
	ChainID        int64      `json:"chainId"`
	Nonce          string     `json:"nonce"`
	IssuedAt       time.Time  `json:"issuedAt"`
	ExpirationTime *time.Time `json:"expirationTime,omitempty"`
	NotBefore      *time.Time `json:"notBefore,omitempty"`
	RequestID      string     `json:"requestId,omitempty"`
	Resources      []string   `json:"resources,omitempty"`
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedMessage, fmt.Sprintf(format, args...))
}

// ParseMessage parses the text an EIP-4361 wallet signed. Address is returned in
// checksum form.
func ParseMessage(text string) (*Message, error) {
	parsed, err := siwego.ParseMessage(strings.ReplaceAll(text, "\r\n", "\n"))
	if err != nil {
		return nil, malformed("%v", err)
	}

	m := &Message{
		Domain:  parsed.GetDomain(),
		Address: parsed.GetAddress().Hex(),
		Version: parsed.GetVersion(),
		ChainID: int64(parsed.GetChainID()),
		Nonce:   parsed.GetNonce(),
	}
	uri := parsed.GetURI()
	m.URI = uri.String()
	if s := parsed.GetStatement(); s != nil {
		m.Statement = *s
	}
	if id := parsed.GetRequestID(); id != nil {
		m.RequestID = *id
	}
	for _, r := range parsed.GetResources() {
		m.Resources = append(m.Resources, r.String())
	}

	if m.IssuedAt, err = time.Parse(time.RFC3339Nano, parsed.GetIssuedAt()); err != nil {
		return nil, malformed("invalid issued at")
	}
	if m.ExpirationTime, err = optionalTime(parsed.GetExpirationTime()); err != nil {
		return nil, malformed("invalid expiration time")
	}
	if m.NotBefore, err = optionalTime(parsed.GetNotBefore()); err != nil {
		return nil, malformed("invalid not before")
	}

	switch {
	case strings.ContainsAny(m.Domain, " \t"):
		return nil, malformed("invalid domain")
	case m.ChainID <= 0:
		return nil, malformed("invalid chain id")
	case len(m.Nonce) < MinNonceLength:
		return nil, malformed("invalid nonce")
	}
	return m, nil
}

func optionalTime(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// String renders m in the canonical EIP-4361 layout.
func (m *Message) String() string {
	var b strings.Builder
	b.WriteString(m.Domain + headerSuffix + "\n")
	b.WriteString(m.Address + "\n\n")
	if m.Statement != "" {
		b.WriteString(m.Statement + "\n")
	}
	b.WriteString("\n")
	b.WriteString(tagURI + m.URI + "\n")
	b.WriteString(tagVersion + m.Version + "\n")
	b.WriteString(tagChainID + strconv.FormatInt(m.ChainID, 10) + "\n")
	b.WriteString(tagNonce + m.Nonce + "\n")
	b.WriteString(tagIssuedAt + m.IssuedAt.UTC().Format(time.RFC3339))
	if m.ExpirationTime != nil {
		b.WriteString("\n" + tagExpirationTime + m.ExpirationTime.UTC().Format(time.RFC3339))
	}
	if m.NotBefore != nil {
		b.WriteString("\n" + tagNotBefore + m.NotBefore.UTC().Format(time.RFC3339))
	}
	if m.RequestID != "" {
		b.WriteString("\n" + tagRequestID + m.RequestID)
	}
	if len(m.Resources) > 0 {
		b.WriteString("\n" + tagResources)
		for _, r := range m.Resources {
			b.WriteString("\n- " + r)
		}
	}
	return b.String()
}
