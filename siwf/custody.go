package siwf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ErrUnknownFID is returned when the hub has no registration for a fid.
var ErrUnknownFID = errors.New("unknown fid")

// CustodyResolver maps a fid to its current custody address.
type CustodyResolver interface {
	CustodyAddress(ctx context.Context, fid uint64) (common.Address, error)
}

// HubCustodyResolver reads custody from a Farcaster hub's HTTP API.
type HubCustodyResolver struct {
	baseURL    string
	httpClient *http.Client
}

// NewHubCustodyResolver creates a resolver for the hub at baseURL.
func NewHubCustodyResolver(baseURL string, httpClient *http.Client) *HubCustodyResolver {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &HubCustodyResolver{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

type idRegistryEvent struct {
	FID                 uint64 `json:"fid"`
	IDRegisterEventBody struct {
		To string `json:"to"`
	} `json:"idRegisterEventBody"`
}

// CustodyAddress implements [CustodyResolver].
func (h *HubCustodyResolver) CustodyAddress(ctx context.Context, fid uint64) (common.Address, error) {
	url := h.baseURL + "/v1/onChainIdRegistryEventByFid?fid=" + strconv.FormatUint(fid, 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: hub: %v", ErrRelay, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusBadRequest:
		return common.Address{}, ErrUnknownFID
	default:
		return common.Address{}, fmt.Errorf("%w: hub status %d", ErrRelay, resp.StatusCode)
	}

	var ev idRegistryEvent
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&ev); err != nil {
		return common.Address{}, fmt.Errorf("%w: hub decode: %v", ErrRelay, err)
	}
	if ev.FID != fid || !common.IsHexAddress(ev.IDRegisterEventBody.To) {
		return common.Address{}, ErrUnknownFID
	}
	return common.HexToAddress(ev.IDRegisterEventBody.To), nil
}
