package observability

import (
	"context"
	"log/slog"
	"net/http"
)

// Audit emits a request-scoped audit log line.
func Audit(r *http.Request, event string, attrs ...any) {
	base := []any{
		"event", event,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", r.Header.Get("X-Request-Id"),
	}
	base = append(base, attrs...)
	slog.InfoContext(r.Context(), "audit", base...)
}

// AuditEvent emits an audit log line for background work (the sweeper,
// bootstrap) that has no request.
func AuditEvent(ctx context.Context, event string, attrs ...any) {
	base := []any{"event", event}
	base = append(base, attrs...)
	slog.InfoContext(ctx, "audit", base...)
}
