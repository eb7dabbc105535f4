package logx

import (
	"context"

	"pkt.systems/pslog"

	"pkt.systems/replx/schema"
)

type contextKey int

const (
	connKey contextKey = iota
	requestKey
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithConn annotates the logger with the connection id if present.
func WithConn(ctx context.Context, connID schema.ConnID) pslog.Logger {
	log := pslog.Ctx(ctx)
	if connID != "" {
		if current, ok := ctx.Value(connKey).(schema.ConnID); ok && current == connID {
			return log
		}
		log = log.With("conn", connID)
	}
	return log
}

// WithRequest annotates the logger with connection and request ids.
func WithRequest(ctx context.Context, connID schema.ConnID, requestID schema.RequestID) pslog.Logger {
	log := WithConn(ctx, connID)
	if requestID != "" {
		if current, ok := ctx.Value(requestKey).(schema.RequestID); ok && current == requestID {
			return log
		}
		log = log.With("req", requestID)
	}
	return log
}

// WithPeer annotates the logger with peer address metadata when available.
func WithPeer(log pslog.Logger, host string, port int) pslog.Logger {
	if host != "" {
		log = log.With("host", host)
	}
	if port > 0 {
		log = log.With("port", port)
	}
	return log
}

// ContextWithConn stores the connection marker on the context for log
// de-duplication.
func ContextWithConn(ctx context.Context, connID schema.ConnID) context.Context {
	if ctx == nil || connID == "" {
		return ctx
	}
	return context.WithValue(ctx, connKey, connID)
}

// ContextWithRequest stores the request marker on the context for log
// de-duplication.
func ContextWithRequest(ctx context.Context, requestID schema.RequestID) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestKey, requestID)
}

// ContextWithConnLogger attaches the logger and connection marker to
// the context.
func ContextWithConnLogger(ctx context.Context, log pslog.Logger, connID schema.ConnID) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithConn(ctx, connID)
}
