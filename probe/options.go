package probe

import (
	"log/slog"
	"time"
)

// Defaults for the poll loops. The resolver polls coarser than the assertion
// because each of its ticks fans out over every candidate.
const (
	DefaultTimeout             = 5000 * time.Millisecond
	DefaultResolvePollInterval = 100 * time.Millisecond
	DefaultAssertPollInterval  = 50 * time.Millisecond
)

// Option configures a Prober at construction time.
type Option func(*Prober)

// WithModelAttribute overrides the attribute that mirrors model paths onto
// elements. Default is "ng-model".
func WithModelAttribute(name string) Option {
	return func(p *Prober) { p.attr = name }
}

// WithClock substitutes the clock driving deadlines and poll sleeps.
func WithClock(c Clock) Option {
	return func(p *Prober) { p.clock = c }
}

// WithLogger sets the logger. By default the prober is silent.
func WithLogger(l *slog.Logger) Option {
	return func(p *Prober) { p.logger = l }
}

// WithObserver registers a per-tick observer (e.g. a trace recorder).
func WithObserver(o Observer) Option {
	return func(p *Prober) { p.observer = o }
}

// CallOption configures a single resolve or assert invocation.
type CallOption func(*callOptions)

type callOptions struct {
	timeout      time.Duration
	pollInterval time.Duration
}

// WithTimeout bounds the invocation's deadline. The loop still performs at
// least one tick even when the deadline has already elapsed at entry.
func WithTimeout(d time.Duration) CallOption {
	return func(o *callOptions) { o.timeout = d }
}

// WithPollInterval sets the sleep between poll ticks.
func WithPollInterval(d time.Duration) CallOption {
	return func(o *callOptions) { o.pollInterval = d }
}

func newCallOptions(defaultInterval time.Duration, opts []CallOption) callOptions {
	co := callOptions{
		timeout:      DefaultTimeout,
		pollInterval: defaultInterval,
	}
	for _, opt := range opts {
		opt(&co)
	}
	return co
}
