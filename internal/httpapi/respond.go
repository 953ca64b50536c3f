package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	walletauth "github.com/MrEthical07/walletauth"
	"github.com/MrEthical07/walletauth/siwf"
)

const maxBodyBytes = 64 << 10

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeGatewayError maps Gateway errors onto status codes. Internal details of
// store failures are not echoed.
func (s *Server) writeGatewayError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, walletauth.ErrVerificationFailed):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, walletauth.ErrRateLimited):
		w.Header().Set("Retry-After", "60")
		writeError(w, http.StatusTooManyRequests, "too many failed sign-ins")
	case errors.Is(err, walletauth.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, walletauth.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "backing store unavailable")
	case errors.Is(err, siwf.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	default:
		s.logger.ErrorContext(r.Context(), "unhandled gateway error", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
