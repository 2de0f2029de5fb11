package trace

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/scopeprobe/probe"
)

// Sink persists observations somewhere durable. Store implements it.
type Sink interface {
	WriteObservation(ctx context.Context, sessionID string, obs probe.TickObservation) error
}

// Recorder implements probe.Observer. It keeps every observation of one
// session in memory and optionally forwards each to a sink. A sink write
// failure never disturbs the polling loop; it is logged and the in-memory
// copy remains authoritative.
type Recorder struct {
	mu      sync.Mutex
	session string
	ticks   []probe.TickObservation
	sink    Sink
	logger  *slog.Logger
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithSink forwards each observation to a durable sink as it arrives.
func WithSink(s Sink) RecorderOption {
	return func(r *Recorder) { r.sink = s }
}

// WithLogger sets the logger used for sink write failures.
func WithLogger(l *slog.Logger) RecorderOption {
	return func(r *Recorder) { r.logger = l }
}

// NewRecorder creates a recorder with a fresh session id.
func NewRecorder(opts ...RecorderOption) *Recorder {
	r := &Recorder{
		session: uuid.Must(uuid.NewV7()).String(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Session returns the recorder's session id.
func (r *Recorder) Session() string {
	return r.session
}

// ObserveTick implements probe.Observer.
func (r *Recorder) ObserveTick(obs probe.TickObservation) {
	r.mu.Lock()
	r.ticks = append(r.ticks, obs)
	r.mu.Unlock()

	if r.sink == nil {
		return
	}
	if err := r.sink.WriteObservation(context.Background(), r.session, obs); err != nil {
		r.logger.Error("persist observation failed",
			"session", r.session, "op_id", obs.OpID, "err", err)
	}
}

// Ticks returns a copy of every observation recorded so far, in emission
// order.
func (r *Recorder) Ticks() []probe.TickObservation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]probe.TickObservation(nil), r.ticks...)
}

// Ops groups the recorded observations by operation id, preserving the
// order in which each operation first appeared.
func (r *Recorder) Ops() map[string][]probe.TickObservation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string][]probe.TickObservation)
	for _, obs := range r.ticks {
		out[obs.OpID] = append(out[obs.OpID], obs)
	}
	return out
}
