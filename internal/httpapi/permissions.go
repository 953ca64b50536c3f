package httpapi

import (
	"net/http"
	"time"

	"github.com/MrEthical07/walletauth/middleware"
	"github.com/MrEthical07/walletauth/permission"
)

// mayActFor reports whether the caller may act for userID on resource: it is
// the caller, or the caller administers resource.
func (s *Server) mayActFor(w http.ResponseWriter, r *http.Request, userID, resource string) (string, bool) {
	caller, _ := middleware.SessionFromContext(r.Context())
	if userID == "" || userID == caller.User.ID {
		return caller.User.ID, true
	}
	ok, err := s.gw.CanAdminister(r.Context(), caller.User.ID, resource)
	if err != nil {
		s.writeGatewayError(w, r, err)
		return "", false
	}
	if !ok {
		writeError(w, http.StatusForbidden, "forbidden")
		return "", false
	}
	return userID, true
}

func (s *Server) listPermissions(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.mayActFor(w, r, r.URL.Query().Get("userId"), permission.GlobalResource)
	if !ok {
		return
	}
	list, err := s.gw.ListPermissions(r.Context(), userID)
	if err != nil {
		s.writeGatewayError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"permissions": list})
}

func (s *Server) checkPermission(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resource, scope := q.Get("resource"), q.Get("scope")
	if resource == "" || scope == "" {
		writeError(w, http.StatusBadRequest, "resource and scope are required")
		return
	}
	userID, ok := s.mayActFor(w, r, q.Get("userId"), resource)
	if !ok {
		return
	}
	allowed, err := s.gw.HasScope(r.Context(), userID, resource, scope)
	if err != nil {
		s.writeGatewayError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
}

type grantRequest struct {
	UserID    string           `json:"userId"`
	Resource  string           `json:"resource"`
	Scopes    []string         `json:"scopes"`
	ExpiresAt *time.Time       `json:"expiresAt,omitempty"`
	Meta      *permission.Meta `json:"meta,omitempty"`
}

// grantPermission always requires the admin scope, even for the caller's own
// user id.
func (s *Server) grantPermission(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	caller, _ := middleware.SessionFromContext(r.Context())
	ok, err := s.gw.CanAdminister(r.Context(), caller.User.ID, req.Resource)
	if err != nil {
		s.writeGatewayError(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	d, err := s.gw.GrantPermission(r.Context(), permission.GrantRequest{
		UserID:    req.UserID,
		Resource:  req.Resource,
		Scopes:    req.Scopes,
		GrantedBy: caller.User.ID,
		ExpiresAt: req.ExpiresAt,
		Meta:      req.Meta,
	})
	if err != nil {
		s.writeGatewayError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) revokePermission(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resource := q.Get("resource")
	if resource == "" {
		writeError(w, http.StatusBadRequest, "resource is required")
		return
	}
	userID, ok := s.mayActFor(w, r, q.Get("userId"), resource)
	if !ok {
		return
	}
	caller, _ := middleware.SessionFromContext(r.Context())
	if err := s.gw.RevokePermission(r.Context(), userID, resource, caller.User.ID); err != nil {
		s.writeGatewayError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// deactivatePermission keeps the grant on record but stops it answering
// HasScope.
func (s *Server) deactivatePermission(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resource := q.Get("resource")
	if resource == "" {
		writeError(w, http.StatusBadRequest, "resource is required")
		return
	}
	userID, ok := s.mayActFor(w, r, q.Get("userId"), resource)
	if !ok {
		return
	}
	caller, _ := middleware.SessionFromContext(r.Context())
	existed, err := s.gw.DeactivatePermission(r.Context(), userID, resource, caller.User.ID)
	if err != nil {
		s.writeGatewayError(w, r, err)
		return
	}
	if !existed {
		writeError(w, http.StatusNotFound, "permission not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
