package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/MrEthical07/walletauth/contractsession"
	"github.com/MrEthical07/walletauth/middleware"
)

type contractSessionRequest struct {
	ContractSessionID string    `json:"contractSessionId,omitempty"`
	WalletAddress     string    `json:"walletAddress"`
	Delegate          string    `json:"delegate"`
	AllowedTokens     []string  `json:"allowedTokens,omitempty"`
	AllowWholeWallet  bool      `json:"allowWholeWallet,omitempty"`
	ExpiresAt         time.Time `json:"expiresAt"`
	TxHash            string    `json:"txHash,omitempty"`
}

func walletResource(addr string) string {
	return "wallet:" + common.HexToAddress(addr).Hex()
}

// controlsWallet reports whether the caller signed in with wallet or holds
// the admin scope on it.
func (s *Server) controlsWallet(r *http.Request, wallet string) (bool, error) {
	caller, _ := middleware.SessionFromContext(r.Context())
	if caller.User.Address != "" && strings.EqualFold(caller.User.Address, wallet) {
		return true, nil
	}
	return s.gw.CanAdminister(r.Context(), caller.User.ID, walletResource(wallet))
}

func (s *Server) createContractSession(w http.ResponseWriter, r *http.Request) {
	var req contractSessionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !common.IsHexAddress(req.WalletAddress) {
		writeError(w, http.StatusBadRequest, "walletAddress is not an address")
		return
	}
	ok, err := s.controlsWallet(r, req.WalletAddress)
	if err != nil {
		s.writeGatewayError(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	caller, _ := middleware.SessionFromContext(r.Context())
	cs, created, err := s.gw.CreateContractSession(r.Context(), contractsession.CreateRequest{
		ID:               req.ContractSessionID,
		UserID:           caller.User.ID,
		WalletAddress:    req.WalletAddress,
		Delegate:         req.Delegate,
		AllowedTokens:    req.AllowedTokens,
		AllowWholeWallet: req.AllowWholeWallet,
		ExpiresAt:        req.ExpiresAt,
		TxHash:           req.TxHash,
	})
	if err != nil {
		s.writeGatewayError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, cs)
}

func (s *Server) listContractSessions(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.SessionFromContext(r.Context())
	list, err := s.gw.ListContractSessions(r.Context(), caller.User.ID, r.URL.Query().Get("wallet"))
	if err != nil {
		s.writeGatewayError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"contractSessions": list})
}

// visibleContractSession loads the path's record if the caller owns it or
// administers its wallet. Others see 404.
func (s *Server) visibleContractSession(w http.ResponseWriter, r *http.Request) *contractsession.ContractSession {
	cs, err := s.gw.GetContractSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeGatewayError(w, r, err)
		return nil
	}
	if cs == nil {
		writeError(w, http.StatusNotFound, "contract session not found")
		return nil
	}
	caller, _ := middleware.SessionFromContext(r.Context())
	if cs.UserID == caller.User.ID {
		return cs
	}
	ok, err := s.controlsWallet(r, cs.WalletAddress)
	if err != nil {
		s.writeGatewayError(w, r, err)
		return nil
	}
	if !ok {
		writeError(w, http.StatusNotFound, "contract session not found")
		return nil
	}
	return cs
}

func (s *Server) getContractSession(w http.ResponseWriter, r *http.Request) {
	cs := s.visibleContractSession(w, r)
	if cs == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"contractSession": cs,
		"active":          cs.Active(s.now()),
	})
}

func (s *Server) revokeContractSession(w http.ResponseWriter, r *http.Request) {
	cs := s.visibleContractSession(w, r)
	if cs == nil {
		return
	}
	revoked, err := s.gw.RevokeContractSession(r.Context(), cs.ID)
	if err != nil {
		s.writeGatewayError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, revoked)
}
