package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/reverse-auction/internal/auth"
)

// errorBody mirrors the API error shape.
type errorBody struct {
	Code    int    `json:"code"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// Guard returns a middleware that authenticates requests under any of the
// given path prefixes. Other paths pass through untouched. A nil
// authenticator disables the guard.
func Guard(authenticator auth.Authenticator, logger *zap.Logger, prefixes ...string) Middleware {
	return func(next http.Handler) http.Handler {
		if authenticator == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !underPrefix(r.URL.Path, prefixes) || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			who, err := authenticator.Authenticate(r)
			if err != nil {
				logger.Warn("auctioneer authentication failed",
					zap.String("path", r.URL.Path),
					zap.String("method", r.Method),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				setWWWAuthenticate(w, authenticator.Method())
				writeJSONError(w, http.StatusUnauthorized, "unauthenticated", unauthorizedMessage(err))
				return
			}

			logger.Debug("auctioneer authenticated",
				zap.String("auctioneer", who.Name),
				zap.String("method", string(who.Method)),
				zap.String("path", r.URL.Path),
			)

			next.ServeHTTP(w, r.WithContext(auth.WithAuctioneer(r.Context(), who)))
		})
	}
}

// underPrefix matches a prefix exactly or as a parent path, so /auction
// guards /auction, /auction/ and /auction/items but not /auctions.
func underPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

func setWWWAuthenticate(w http.ResponseWriter, method auth.Method) {
	switch method {
	case auth.MethodBasic:
		w.Header().Set("WWW-Authenticate", `Basic realm="auctioneer"`)
	case auth.MethodAPIKey:
		w.Header().Set("WWW-Authenticate", "API-Key")
	}
}

func unauthorizedMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return "credentials required"
	case errors.Is(err, auth.ErrInvalidAPIKey), errors.Is(err, auth.ErrInvalidCredentials):
		return "invalid credentials"
	default:
		return "unauthorized"
	}
}

func writeJSONError(w http.ResponseWriter, status int, reason, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{
		Code:    status,
		Reason:  reason,
		Message: message,
	})
}
