package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/framelane/api/internal/platform/httpx"
	"github.com/framelane/api/internal/platform/requestctx"
)

const (
	defaultGatewayKeyHeader = "X-Gateway-Key"
	defaultUserIDHeader     = "X-User-Id"
)

// GatewayAuthenticator trusts user identities asserted by the edge gateway.
// The gateway terminates end-user authentication and forwards the resolved
// user id in a header; requests must also carry the shared gateway key so a
// caller bypassing the gateway cannot impersonate users.
type GatewayAuthenticator struct {
	key        []byte
	keyHeader  string
	userHeader string
}

// GatewayOption customises the authenticator.
type GatewayOption func(*GatewayAuthenticator)

// WithGatewayHeaders overrides the key and user id header names.
func WithGatewayHeaders(keyHeader, userHeader string) GatewayOption {
	return func(a *GatewayAuthenticator) {
		if keyHeader != "" {
			a.keyHeader = keyHeader
		}
		if userHeader != "" {
			a.userHeader = userHeader
		}
	}
}

// NewGatewayAuthenticator constructs an authenticator for the given shared
// key. An empty key disables the key check, which is only acceptable for
// local development behind no gateway.
func NewGatewayAuthenticator(gatewayKey string, opts ...GatewayOption) *GatewayAuthenticator {
	a := &GatewayAuthenticator{
		keyHeader:  defaultGatewayKeyHeader,
		userHeader: defaultUserIDHeader,
	}
	if trimmed := strings.TrimSpace(gatewayKey); trimmed != "" {
		a.key = []byte(trimmed)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Middleware validates the gateway key when one is configured and stores the
// forwarded user id on the request context. Requests without a user id pass
// through anonymously; RequireUser gates the endpoints that need one.
func (a *GatewayAuthenticator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if len(a.key) > 0 {
				presented := []byte(strings.TrimSpace(r.Header.Get(a.keyHeader)))
				if subtle.ConstantTimeCompare(presented, a.key) != 1 {
					httpx.WriteError(ctx, w, httpx.NewError("gateway_key_invalid", "gateway key missing or invalid", http.StatusUnauthorized))
					return
				}
			}

			if userID := strings.TrimSpace(r.Header.Get(a.userHeader)); userID != "" {
				ctx = requestctx.WithUserID(ctx, userID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser rejects requests that did not arrive with an authenticated
// user id.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if requestctx.UserID(ctx) == "" {
			httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
			return
		}
		next.ServeHTTP(w, r)
	})
}
