// Package telemetry adapts the run's scheduling decisions into structured
// log events.
//
// Recording is observational only: it must never affect scheduling, and a
// broken or nil sink must never take down a run. This mirrors the
// inertness guarantee the teacher's trace recorder made for cache/execution
// events, applied here to the orchestration core's own lifecycle events
// instead (task launched / completed / propagated / discarded / cancelled).
package telemetry

import "go.uber.org/zap"

// EventKind is the stable discriminator for an Event.
type EventKind string

const (
	EventLaunched   EventKind = "launched"
	EventCompleted  EventKind = "completed"
	EventDiscarded  EventKind = "discarded"
	EventCancelled  EventKind = "cancelled"
	EventPropagated EventKind = "propagated"
)

// Event is a single logical lifecycle transition for one template within a run.
type Event struct {
	Kind   EventKind
	Name   string
	Reason string
}

// Sink receives events. Record must never panic. Within one run, the
// scheduler records every event from that run's single coordinator
// goroutine, never from the worker goroutines that run the tasks.
type Sink interface {
	Record(Event)
}

// ZapSink adapts a *zap.Logger into a Sink, tagging every event with the
// run's identity.
type ZapSink struct {
	Logger *zap.Logger
	RunID  string
}

func (s ZapSink) Record(e Event) {
	if s.Logger == nil {
		return
	}
	fields := []zap.Field{
		zap.String("run_id", s.RunID),
		zap.String("task", e.Name),
	}
	if e.Reason != "" {
		fields = append(fields, zap.String("reason", e.Reason))
	}
	s.Logger.Debug(string(e.Kind), fields...)
}

// SafeRecord records an event and guarantees inertness even if the sink
// panics internally: a misbehaving logger must never abort a run.
func SafeRecord(s Sink, e Event) {
	if s == nil {
		return
	}
	defer func() { _ = recover() }()
	s.Record(e)
}
