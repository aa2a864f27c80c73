package observability

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/ledgerlens/ledgerlens/internal/config"
)

type traceIDContextKey struct{}

// secretAttrs never reach the log output verbatim. They match whole
// segments of an attribute key split on '_', '-' and '.', so "auth_token"
// is redacted while "max_tokens" is not.
var secretAttrs = []string{"apikey", "secret", "password", "dsn", "token"}

func NewLogger(cfg config.Config, writer io.Writer) *slog.Logger {
	if writer == nil {
		writer = io.Discard
	}
	opts := &slog.HandlerOptions{Level: cfg.Observability.LogLevel, ReplaceAttr: redactSecrets}
	var handler slog.Handler = slog.NewTextHandler(writer, opts)
	if cfg.Observability.LogJSON {
		handler = slog.NewJSONHandler(writer, opts)
	}
	return slog.New(handler).With(
		slog.String("service", cfg.Service.Name),
		slog.String("profile", string(cfg.Profile)),
		slog.String("warehouse_table", cfg.Warehouse.TargetTable),
	)
}

func redactSecrets(_ []string, attr slog.Attr) slog.Attr {
	if isSecretKey(attr.Key) {
		return slog.String(attr.Key, "[redacted]")
	}
	return attr
}

func isSecretKey(key string) bool {
	segments := strings.FieldsFunc(strings.ToLower(key), func(r rune) bool {
		return r == '_' || r == '-' || r == '.'
	})
	for i, segment := range segments {
		if slices.Contains(secretAttrs, segment) {
			return true
		}
		if segment == "api" && i+1 < len(segments) && segments[i+1] == "key" {
			return true
		}
	}
	return false
}

func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDContextKey{}, traceID)
}

func TraceIDFromContext(ctx context.Context) string {
	traceID, _ := ctx.Value(traceIDContextKey{}).(string)
	return traceID
}

// WithTrace returns logger annotated with the trace id carried by ctx, if any.
// A nil logger yields one that discards everything.
func WithTrace(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if traceID := TraceIDFromContext(ctx); traceID != "" {
		return logger.With(slog.String("trace_id", traceID))
	}
	return logger
}
