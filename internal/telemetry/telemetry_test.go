package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingSink struct {
	events []Event
}

func (r *recordingSink) Record(e Event) {
	r.events = append(r.events, e)
}

type panicSink struct{}

func (panicSink) Record(Event) {
	panic("boom")
}

func TestSafeRecord_DeliversToSink(t *testing.T) {
	sink := &recordingSink{}
	SafeRecord(sink, Event{Kind: EventLaunched, Name: "a"})

	assert.Equal(t, []Event{{Kind: EventLaunched, Name: "a"}}, sink.events)
}

func TestSafeRecord_NilSinkIsNoop(t *testing.T) {
	assert.NotPanics(t, func() {
		SafeRecord(nil, Event{Kind: EventLaunched, Name: "a"})
	})
}

func TestSafeRecord_SwallowsPanickingSink(t *testing.T) {
	assert.NotPanics(t, func() {
		SafeRecord(panicSink{}, Event{Kind: EventPropagated, Name: "b"})
	})
}

func TestZapSink_NilLoggerIsNoop(t *testing.T) {
	sink := ZapSink{Logger: nil, RunID: "r1"}
	assert.NotPanics(t, func() {
		sink.Record(Event{Kind: EventCompleted, Name: "a"})
	})
}
