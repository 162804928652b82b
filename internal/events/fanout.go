package events

import (
	"context"
	"log/slog"
	"time"
)

// sinkTimeout bounds each sink so a stalled broker cannot hold a request.
const sinkTimeout = 5 * time.Second

type namedSink struct {
	name string
	sink Sink
}

// Fanout delivers every event to each registered sink in order.
type Fanout struct {
	sinks  []namedSink
	logger *slog.Logger
	now    func() time.Time
}

// NewFanout returns an empty Fanout. A nil logger discards sink errors.
func NewFanout(logger *slog.Logger) *Fanout {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Fanout{logger: logger, now: time.Now}
}

// Add registers a sink under a name used in log output.
func (f *Fanout) Add(name string, sink Sink) {
	f.sinks = append(f.sinks, namedSink{name: name, sink: sink})
}

// Len returns the number of registered sinks.
func (f *Fanout) Len() int {
	return len(f.sinks)
}

// Emit stamps the event if needed and passes it to every sink.
// Sink failures are logged at warn level and otherwise ignored.
// The caller's cancellation does not abort delivery.
func (f *Fanout) Emit(ctx context.Context, e Event) {
	if f == nil {
		return
	}
	if e.At.IsZero() {
		e.At = f.now().UTC()
	}

	base := context.WithoutCancel(ctx)
	for _, s := range f.sinks {
		sinkCtx, cancel := context.WithTimeout(base, sinkTimeout)
		err := s.sink.Record(sinkCtx, e)
		cancel()
		if err != nil {
			f.logger.Warn("auth event sink failed",
				"sink", s.name,
				"type", e.Type,
				"outcome", e.Outcome,
				"error", err,
			)
		}
	}
}

// Record lets a Fanout be nested as a Sink; it never returns an error.
func (f *Fanout) Record(ctx context.Context, e Event) error {
	f.Emit(ctx, e)
	return nil
}
