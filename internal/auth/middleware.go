package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ledgerlens/ledgerlens/internal/observability"
)

// QueryKeyParam lets browser download links (exports, archived files)
// authenticate with ?api_key=. It is honored for GET requests only and is
// removed from the URL before the request reaches handlers or access logs.
const QueryKeyParam = "api_key"

type identityContextKey struct{}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(Identity)
	return identity, ok
}

func Middleware(logger *slog.Logger, validator APIKeyValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey, source := credentials(r)
			if apiKey == "" {
				writeUnauthorized(w, r, "missing API key")
				return
			}
			if source == QueryKeyParam {
				r = withoutQueryKey(r)
			}

			log := observability.WithTrace(r.Context(), logger)
			identity, ok := validator.Validate(r.Context(), apiKey)
			if !ok {
				log.WarnContext(r.Context(), "rejected api key",
					slog.String("path", r.URL.Path),
					slog.String("source", source),
				)
				writeUnauthorized(w, r, "invalid API key")
				return
			}
			log.DebugContext(r.Context(), "caller authenticated",
				slog.String("subject", identity.Subject),
				slog.Any("roles", identity.Roles),
			)
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// credentials returns the presented key and where it came from: the
// X-API-Key header wins over a bearer token, which wins over the query.
func credentials(r *http.Request) (string, string) {
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key, "header"
	}
	if authorization := strings.TrimSpace(r.Header.Get("Authorization")); authorization != "" {
		scheme, token, found := strings.Cut(authorization, " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token), "bearer"
		}
		return "", ""
	}
	if r.Method == http.MethodGet {
		if key := strings.TrimSpace(r.URL.Query().Get(QueryKeyParam)); key != "" {
			return key, QueryKeyParam
		}
	}
	return "", ""
}

func withoutQueryKey(r *http.Request) *http.Request {
	clone := r.Clone(r.Context())
	query := clone.URL.Query()
	query.Del(QueryKeyParam)
	clone.URL.RawQuery = query.Encode()
	clone.RequestURI = clone.URL.RequestURI()
	return clone
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="ledgerlens"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error_code": "UNAUTHORIZED",
		"message":    message,
		"retryable":  false,
		"context":    map[string]any{},
		"trace_id":   observability.TraceIDFromContext(r.Context()),
	})
}
