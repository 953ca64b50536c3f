package siwf

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrRelay marks a failed or unexpected relay exchange.
var ErrRelay = errors.New("siwf relay error")

// Channel states reported by the relay.
const (
	StatePending   = "pending"
	StateCompleted = "completed"
)

// ChannelRequest asks the relay to open a sign-in channel.
type ChannelRequest struct {
	SiweURI        string `json:"siweUri"`
	Domain         string `json:"domain"`
	Nonce          string `json:"nonce,omitempty"`
	NotBefore      string `json:"notBefore,omitempty"`
	ExpirationTime string `json:"expirationTime,omitempty"`
	RequestID      string `json:"requestId,omitempty"`
}

// Channel is an open sign-in channel.
type Channel struct {
	ChannelToken string `json:"channelToken"`
	URL          string `json:"url"`
	Nonce        string `json:"nonce"`
}

// ChannelStatus is the relay's view of a channel. Identity fields are set once
// State is completed.
type ChannelStatus struct {
	State         string   `json:"state"`
	Nonce         string   `json:"nonce,omitempty"`
	URL           string   `json:"url,omitempty"`
	Message       string   `json:"message,omitempty"`
	Signature     string   `json:"signature,omitempty"`
	FID           uint64   `json:"fid,omitempty"`
	Username      string   `json:"username,omitempty"`
	DisplayName   string   `json:"displayName,omitempty"`
	Bio           string   `json:"bio,omitempty"`
	PfpURL        string   `json:"pfpUrl,omitempty"`
	Custody       string   `json:"custody,omitempty"`
	Verifications []string `json:"verifications,omitempty"`
}

// Completed reports whether the user finished signing.
func (s *ChannelStatus) Completed() bool {
	return s != nil && s.State == StateCompleted
}

// VerifyParams is a signed sign-in message with the expected domain and nonce.
type VerifyParams struct {
	Nonce     string
	Domain    string
	Message   string
	Signature string
}

// Relay is the external collaborator brokering SIWF channels and verification.
type Relay interface {
	CreateChannel(ctx context.Context, req ChannelRequest) (*Channel, error)
	Status(ctx context.Context, channelToken string) (*ChannelStatus, error)
	VerifySignInMessage(ctx context.Context, p VerifyParams) (VerifyResult, error)
}

// RelayClient talks to a Farcaster Connect relay over HTTP and verifies signed
// messages locally with a [Verifier].
type RelayClient struct {
	baseURL    string
	httpClient *http.Client
	verifier   *Verifier
}

// NewRelayClient creates a [RelayClient]. A nil httpClient gets a 10s timeout.
func NewRelayClient(baseURL string, httpClient *http.Client, verifier *Verifier) *RelayClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &RelayClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		verifier:   verifier,
	}
}

// CreateChannel opens a channel with POST /v1/channel.
func (c *RelayClient) CreateChannel(ctx context.Context, req ChannelRequest) (*Channel, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/channel", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var ch Channel
	if err := c.do(httpReq, &ch, http.StatusOK, http.StatusCreated); err != nil {
		return nil, err
	}
	if ch.ChannelToken == "" {
		return nil, fmt.Errorf("%w: channel response without token", ErrRelay)
	}
	return &ch, nil
}

// Status polls GET /v1/channel/status, authenticated by the channel token.
func (c *RelayClient) Status(ctx context.Context, channelToken string) (*ChannelStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/channel/status", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+channelToken)

	var st ChannelStatus
	if err := c.do(httpReq, &st, http.StatusOK, http.StatusAccepted); err != nil {
		return nil, err
	}
	if st.State == "" {
		st.State = StatePending
	}
	return &st, nil
}

// VerifySignInMessage implements [Relay] with the local verifier.
func (c *RelayClient) VerifySignInMessage(ctx context.Context, p VerifyParams) (VerifyResult, error) {
	if c.verifier == nil {
		return VerifyResult{}, fmt.Errorf("%w: no verifier configured", ErrRelay)
	}
	return c.verifier.VerifySignInMessage(ctx, p)
}

func (c *RelayClient) do(req *http.Request, out any, okStatus ...int) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRelay, err)
	}
	defer resp.Body.Close()

	accepted := false
	for _, s := range okStatus {
		if resp.StatusCode == s {
			accepted = true
			break
		}
	}
	if !accepted {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: unexpected status code %d: %s", ErrRelay, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrRelay, err)
	}
	return nil
}
