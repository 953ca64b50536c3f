package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	walletauth "github.com/MrEthical07/walletauth"
	"github.com/MrEthical07/walletauth/session"
)

// Session id carriers, in lookup order after the Authorization header.
const (
	SessionHeader = "X-Session-ID"
	SessionCookie = "session_id"
)

type sessionContextKey struct{}

// SessionFromContext returns the session stored by RequireSession.
func SessionFromContext(ctx context.Context) (*session.Session, bool) {
	sess, ok := ctx.Value(sessionContextKey{}).(*session.Session)
	return sess, ok && sess != nil
}

// WithSession stores sess in ctx the way RequireSession does.
func WithSession(ctx context.Context, sess *session.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// RequireSession resolves the caller's session id through the Gateway and
// stores the session in the request context. A missing or unknown session is
// 401; a store failure is 503.
func RequireSession(gw *walletauth.Gateway) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if gw == nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			sid, ok := SessionID(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			sess, err := gw.GetSession(r.Context(), sid)
			switch {
			case errors.Is(err, walletauth.ErrUnavailable):
				writeError(w, http.StatusServiceUnavailable, "session store unavailable")
				return
			case err != nil || sess == nil:
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

// SessionID extracts a session id from the bearer token, the X-Session-ID
// header or the session_id cookie.
func SessionID(r *http.Request) (string, bool) {
	if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
		return token, true
	}
	if v := strings.TrimSpace(r.Header.Get(SessionHeader)); v != "" {
		return v, true
	}
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value, true
	}
	return "", false
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
