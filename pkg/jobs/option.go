package jobs

import "golang.org/x/exp/slog"

// Options defines parameters for the supervisor.
type Options struct {
	Logger *slog.Logger
}

// Option is a function that sets some option for the supervisor.
type Option func(*Options)

// WithLogger sets logger for the supervisor.
func WithLogger(lg *slog.Logger) Option {
	return func(o *Options) { o.Logger = lg }
}
