package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gatehouse-api/gatehouse/internal/platform/httpx"
)

type bearerTokenKey struct{}

// RequireAccessToken returns middleware that verifies the Authorization
// bearer token as an access token, rejects denylisted tokens, and stores the
// claims in the request context.
func RequireAccessToken(codec *Codec, revocation RevocationStore, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing bearer token")
				return
			}
			claims, err := codec.Verify(token, TokenAccess)
			if err != nil {
				respondAuthError(w, err)
				return
			}
			if revocation != nil {
				revoked, err := revocation.IsBlacklisted(r.Context(), token)
				if err != nil {
					logger.Error("blacklist check failed", slog.Any("error", err))
					httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
					return
				}
				if revoked {
					httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", ErrInvalidCredentials.Error())
					return
				}
			}
			ctx := ContextWithClaims(r.Context(), claims)
			ctx = contextWithBearerToken(ctx, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
