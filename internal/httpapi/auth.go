package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	walletauth "github.com/MrEthical07/walletauth"
	"github.com/MrEthical07/walletauth/session"
	"github.com/MrEthical07/walletauth/siwf"
)

type nonceRequest struct {
	Domain string `json:"domain,omitempty"`
}

func (s *Server) issueNonce(w http.ResponseWriter, r *http.Request) {
	var req nonceRequest
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	nonce, err := s.gw.IssueNonce(r.Context(), req.Domain)
	if err != nil {
		s.writeGatewayError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"nonce": nonce})
}

func (s *Server) signInEthereum(w http.ResponseWriter, r *http.Request) {
	var req walletauth.SIWERequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondSession(w, r, func(ctx context.Context) (*session.Session, error) {
		return s.gw.SignInWithEthereum(ctx, req)
	})
}

func (s *Server) signInFarcaster(w http.ResponseWriter, r *http.Request) {
	var req walletauth.SIWFRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondSession(w, r, func(ctx context.Context) (*session.Session, error) {
		return s.gw.SignInWithFarcaster(ctx, req)
	})
}

type completeRequest struct {
	Nonce string `json:"nonce,omitempty"`
}

func (s *Server) completeChannel(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	// The wait is bounded by SIWF.PollDeadline, not by the server's WriteTimeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Now().Add(s.channelWait)); err != nil {
		s.logger.DebugContext(r.Context(), "cannot extend write deadline", "error", err)
	}
	token := chi.URLParam(r, "token")
	s.respondSession(w, r, func(ctx context.Context) (*session.Session, error) {
		return s.gw.CompleteFarcasterChannel(ctx, token, req.Nonce)
	})
}

func (s *Server) respondSession(w http.ResponseWriter, r *http.Request, signIn func(context.Context) (*session.Session, error)) {
	sess, err := signIn(r.Context())
	if err != nil {
		s.writeGatewayError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) createChannel(w http.ResponseWriter, r *http.Request) {
	var req siwf.CreateChannelRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res := s.gw.Farcaster().CreateFarcasterChannel(r.Context(), req)
	status := http.StatusOK
	if !res.Success {
		status = http.StatusBadGateway
		if req.SiweURI == "" {
			status = http.StatusBadRequest
		}
	}
	writeJSON(w, status, res)
}

func (s *Server) channelStatus(w http.ResponseWriter, r *http.Request) {
	res := s.gw.Farcaster().GetFarcasterChannelStatus(r.Context(), chi.URLParam(r, "token"))
	status := http.StatusOK
	if !res.Success {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, res)
}
