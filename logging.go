package storedb

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	mysql "github.com/go-sql-driver/mysql"
)

var defaultLogger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
	Level: slog.LevelInfo,
}))

type ctxKey int

const callerOriginKey ctxKey = 0

// WithCallerOrigin annotates ctx with the network origin of the logical
// caller (e.g. a request's remote address). Security events include it when
// present.
func WithCallerOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, callerOriginKey, origin)
}

func callerOrigin(ctx context.Context) string {
	if v, ok := ctx.Value(callerOriginKey).(string); ok {
		return v
	}
	return ""
}

// SetLogger replaces the manager's logger.
func (m *Manager) SetLogger(logger *slog.Logger) {
	if m == nil || logger == nil {
		return
	}
	m.logger = logger
}

// logQuery logs a statement execution with structured fields. Raw parameter
// values never appear here; named params are sanitized, positional params
// are reduced to a count.
func (m *Manager) logQuery(ctx context.Context, operation, query string, params any, elapsed time.Duration, err error) {
	attrs := []slog.Attr{
		slog.String("operation", operation),
		slog.String("query", query),
		slog.Int("param_count", paramCount(params)),
		slog.Float64("duration_ms", float64(elapsed.Nanoseconds())/1e6),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("status", "error"),
			slog.String("category", Classify(err).String()),
			slog.Any("params", sanitizeParams(params)),
			slog.String("error", err.Error()),
		)
		if mysqlErr, ok := err.(*mysql.MySQLError); ok {
			attrs = append(attrs, slog.Int("error_code", int(mysqlErr.Number)))
		}
		m.logger.LogAttrs(ctx, slog.LevelError, "query failed", attrs...)
		return
	}
	attrs = append(attrs, slog.String("status", "success"))
	if m.cfg.SlowQueryThreshold > 0 && elapsed > m.cfg.SlowQueryThreshold {
		m.logger.LogAttrs(ctx, slog.LevelWarn, "slow query detected", attrs...)
		return
	}
	m.logger.LogAttrs(ctx, slog.LevelDebug, "query executed", attrs...)
}

// logConnection logs connect attempts, probes and reconnects.
func (m *Manager) logConnection(ctx context.Context, event string, elapsed time.Duration, err error) {
	attrs := []slog.Attr{
		slog.String("event", event),
		slog.Float64("duration_ms", float64(elapsed.Nanoseconds())/1e6),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("status", "error"),
			slog.String("category", Classify(err).String()),
			slog.String("error", err.Error()),
		)
		m.logger.LogAttrs(ctx, slog.LevelError, "connection event", attrs...)
		return
	}
	attrs = append(attrs, slog.String("status", "success"))
	m.logger.LogAttrs(ctx, slog.LevelDebug, "connection event", attrs...)
}

// logTransaction logs begin/commit/rollback and savepoint movements.
func (m *Manager) logTransaction(ctx context.Context, event string, depth int, err error) {
	attrs := []slog.Attr{
		slog.String("event", event),
		slog.Int("depth", depth),
	}
	level := slog.LevelDebug
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		level = slog.LevelError
	}
	m.logger.LogAttrs(ctx, level, "transaction event", attrs...)
}

// logSecurity logs a security-relevant event (validator rejection,
// authentication failure) at Warn, with the caller origin when the context
// carries one.
func (m *Manager) logSecurity(ctx context.Context, reason, query string) {
	attrs := []slog.Attr{
		slog.String("event", "security"),
		slog.String("reason", reason),
		slog.String("query", query),
	}
	if origin := callerOrigin(ctx); origin != "" {
		attrs = append(attrs, slog.String("caller_origin", origin))
	}
	m.logger.LogAttrs(ctx, slog.LevelWarn, "security event", attrs...)
}

// fmtAttempt renders a 1-based attempt counter for log lines.
func fmtAttempt(attempt, max int) string { return fmt.Sprintf("%d/%d", attempt, max) }
