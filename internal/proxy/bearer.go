package proxy

import (
	"context"
	"net/http"
	"strings"
)

// authorizationKey carries the inbound Authorization header value through the
// MCP handler context.
type authorizationKey struct{}

// WithAuthorization stashes a raw Authorization header value in the context.
func WithAuthorization(ctx context.Context, header string) context.Context {
	return context.WithValue(ctx, authorizationKey{}, header)
}

// BearerFromContext returns the bearer token carried by the request context,
// or "" when the request had no usable Authorization header.
func BearerFromContext(ctx context.Context) string {
	header, _ := ctx.Value(authorizationKey{}).(string)
	return parseBearer(header)
}

// parseBearer extracts the token from an Authorization header value. The
// scheme comparison is case-insensitive; anything that is not a Bearer
// credential yields "".
func parseBearer(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	scheme, tok, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(tok)
}

// httpContextFunc copies the Authorization header into the handler context.
// Registered on the HTTP transports; stdio has no header to extract.
func httpContextFunc(ctx context.Context, r *http.Request) context.Context {
	return WithAuthorization(ctx, r.Header.Get("Authorization"))
}
