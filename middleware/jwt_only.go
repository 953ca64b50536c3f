package middleware

import (
	"context"
	"net/http"

	walletauth "github.com/MrEthical07/walletauth"
	"github.com/MrEthical07/walletauth/jwt"
)

type claimsContextKey struct{}

// ClaimsFromContext returns the service token claims stored by RequireServiceToken.
func ClaimsFromContext(ctx context.Context) (*jwt.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*jwt.Claims)
	return claims, ok && claims != nil
}

// RequireServiceToken verifies a bearer JWT for machine-to-machine routes. It
// never consults the session store. A non-empty scope must be present in the
// token (403 otherwise).
func RequireServiceToken(gw *walletauth.Gateway, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if gw == nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			claims, err := gw.VerifyServiceToken(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if scope != "" && !claims.HasScope(scope) {
				writeError(w, http.StatusForbidden, "missing scope "+scope)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
