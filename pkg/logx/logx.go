// Package logx contains slog handler plumbing: a middleware chain,
// a no-op handler and job id propagation through contexts.
package logx

import (
	"context"

	"golang.org/x/exp/slog"
)

// HandleFunc is a function that handles a record.
type HandleFunc func(context.Context, slog.Record) error

// Middleware is a middleware for logging handler.
type Middleware func(HandleFunc) HandleFunc

// Chain is a chain of middleware.
type Chain struct {
	Middleware []Middleware
	slog.Handler
}

// Handle runs the chain of middleware and the handler.
func (c *Chain) Handle(ctx context.Context, rec slog.Record) error {
	h := c.Handler.Handle
	for i := len(c.Middleware) - 1; i >= 0; i-- {
		h = c.Middleware[i](h)
	}
	return h(ctx, rec)
}

// WithGroup returns a new Chain with the given group.
func (c *Chain) WithGroup(group string) slog.Handler {
	return &Chain{
		Middleware: c.Middleware,
		Handler:    c.Handler.WithGroup(group),
	}
}

// WithAttrs returns a new Chain with the given attributes.
func (c *Chain) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Chain{
		Middleware: c.Middleware,
		Handler:    c.Handler.WithAttrs(attrs),
	}
}

type jobIDKey struct{}

// ContextWithJobID returns a new context with the given job ID.
func ContextWithJobID(parent context.Context, jobID string) context.Context {
	return context.WithValue(parent, jobIDKey{}, jobID)
}

// JobIDFromContext returns job id from context.
func JobIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(jobIDKey{}).(string)
	return v, ok
}

// JobID is a middleware that stamps the job id from the context, if any,
// onto every record.
func JobID() Middleware {
	return func(next HandleFunc) HandleFunc {
		return func(ctx context.Context, rec slog.Record) error {
			if jobID, ok := JobIDFromContext(ctx); ok {
				rec.AddAttrs(slog.String("job_id", jobID))
			}
			return next(ctx, rec)
		}
	}
}

type noop struct{}

// NoOp returns a handler that discards all records.
func NoOp() slog.Handler { return noop{} }

func (noop) Enabled(context.Context, slog.Level) bool  { return false }
func (noop) Handle(context.Context, slog.Record) error { return nil }
func (n noop) WithAttrs([]slog.Attr) slog.Handler      { return n }
func (n noop) WithGroup(string) slog.Handler           { return n }
