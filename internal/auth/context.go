package auth

import "context"

type claimsContextKey struct{}

// ContextWithClaims stores verified token claims in the request context.
func ContextWithClaims(ctx context.Context, claims *TokenClaims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// ClaimsFromContext extracts verified token claims from the context.
func ClaimsFromContext(ctx context.Context) *TokenClaims {
	claims, _ := ctx.Value(claimsContextKey{}).(*TokenClaims)
	return claims
}

func contextWithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerTokenKey{}, token)
}

// BearerTokenFromContext returns the raw access token the request presented.
func BearerTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(bearerTokenKey{}).(string)
	return token
}
