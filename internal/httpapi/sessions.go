package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrEthical07/walletauth/middleware"
	"github.com/MrEthical07/walletauth/permission"
	"github.com/MrEthical07/walletauth/session"
)

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) validateSession(w http.ResponseWriter, r *http.Request) {
	ok, err := s.gw.ValidateSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeGatewayError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": ok})
}

// ownedSession loads the session named in the path and checks the caller may
// act on it; the bool is set when access comes from the global admin scope.
// On failure it writes the response and returns nil. Foreign sessions are
// reported as missing.
func (s *Server) ownedSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	caller, _ := middleware.SessionFromContext(r.Context())
	target, err := s.gw.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeGatewayError(w, r, err)
		return nil, false
	}
	if target == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	if target.User.ID == caller.User.ID {
		return target, false
	}
	admin, err := s.gw.CanAdminister(r.Context(), caller.User.ID, permission.GlobalResource)
	if err != nil {
		s.writeGatewayError(w, r, err)
		return nil, false
	}
	if !admin {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return target, true
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	if sess, _ := s.ownedSession(w, r); sess != nil {
		writeJSON(w, http.StatusOK, sess)
	}
}

type extendRequest struct {
	// TTLSeconds 0 uses the configured default.
	TTLSeconds int64 `json:"ttlSeconds,omitempty"`
}

func (s *Server) extendSession(w http.ResponseWriter, r *http.Request) {
	var req extendRequest
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	// Bounded before converting so the multiplication cannot overflow.
	if req.TTLSeconds < 0 || req.TTLSeconds > int64(s.maxExtend/time.Second) {
		writeError(w, http.StatusBadRequest, "ttlSeconds must be between 0 and "+strconv.FormatInt(int64(s.maxExtend/time.Second), 10))
		return
	}
	sess, _ := s.ownedSession(w, r)
	if sess == nil {
		return
	}
	ok, err := s.gw.ExtendSession(r.Context(), sess.ID, time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		s.writeGatewayError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"extended": ok})
}

func (s *Server) revokeSession(w http.ResponseWriter, r *http.Request) {
	sess, asAdmin := s.ownedSession(w, r)
	if sess == nil {
		return
	}
	reason := session.RevokeUserRequest
	if asAdmin {
		reason = session.RevokeAdminAction
	}
	if err := s.gw.RevokeSession(r.Context(), sess.ID, reason); err != nil {
		s.writeGatewayError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createSessionRequest struct {
	Type string       `json:"type,omitempty"`
	User session.User `json:"user"`
}

// createSession mints a session for an identity a trusted service has
// already verified.
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, err := s.gw.CreateSession(r.Context(), req.Type, req.User)
	if err != nil {
		s.writeGatewayError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

type revokeRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) serviceRevokeSession(w http.ResponseWriter, r *http.Request) {
	reason, ok := s.decodeReason(w, r)
	if !ok {
		return
	}
	if err := s.gw.RevokeSession(r.Context(), chi.URLParam(r, "id"), reason); err != nil {
		s.writeGatewayError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) serviceRevokeUser(w http.ResponseWriter, r *http.Request) {
	reason, ok := s.decodeReason(w, r)
	if !ok {
		return
	}
	n, err := s.gw.RevokeAllSessions(r.Context(), chi.URLParam(r, "userId"), reason)
	if err != nil {
		s.writeGatewayError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"revoked": n})
}

func (s *Server) decodeReason(w http.ResponseWriter, r *http.Request) (session.RevokeReason, bool) {
	var req revokeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	reason, err := session.ParseRevokeReason(req.Reason)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return reason, true
}
