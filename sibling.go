package dagather

import (
	"context"
	"fmt"
)

// State is a template's status as observed from a sibling task during a run.
type State int

const (
	// StateWaiting means the template has not yet been launched; its
	// dependencies have not all completed.
	StateWaiting State = iota
	// StateRunning means the template's task has been launched and has not
	// yet completed.
	StateRunning
	// StateDone means the template's task has completed, successfully or
	// not.
	StateDone
	// StateDiscarded means the template will never be launched this run.
	StateDiscarded
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	case StateDiscarded:
		return "discarded"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type siblingRequestKind int

const (
	siblingQueryState siblingRequestKind = iota
	siblingCancel
)

type siblingRequest struct {
	kind   siblingRequestKind
	target string
	respCh chan siblingResponse
}

type siblingResponse struct {
	state State
	err   error
}

type siblingsKey struct{}

// Siblings is the ambient handle a running task uses to inspect and cancel
// the other templates of its own run. Obtain it with SiblingsFrom; it is
// only meaningful from within a TaskFunc invoked by Invoke.
type Siblings struct {
	reqCh chan siblingRequest
}

// SiblingsFrom retrieves the run's ambient Siblings handle from ctx. It
// panics if ctx was not derived from one Invoke gave to a running task,
// since calling it elsewhere is a programming error with no sensible
// fallback.
func SiblingsFrom(ctx context.Context) Siblings {
	s, ok := ctx.Value(siblingsKey{}).(Siblings)
	if !ok {
		panic("dagather: SiblingsFrom called outside a running task")
	}
	return s
}

// State reports the current status of the template named name. It blocks
// until the run's coordinator goroutine answers, which happens between two
// of its own suspension points, never concurrently with other bookkeeping.
func (s Siblings) State(ctx context.Context, name string) (State, error) {
	resp, err := s.ask(ctx, siblingRequest{kind: siblingQueryState, target: name})
	if err != nil {
		return 0, err
	}
	return resp.state, resp.err
}

// Cancel delivers cancellation to the template named name: if it is
// running, its context is cancelled; if it is still waiting, it and
// everything reachable from it through the dependency relation are
// discarded. Cancelling a discarded or already-done template is a no-op.
func (s Siblings) Cancel(ctx context.Context, name string) error {
	resp, err := s.ask(ctx, siblingRequest{kind: siblingCancel, target: name})
	if err != nil {
		return err
	}
	return resp.err
}

func (s Siblings) ask(ctx context.Context, req siblingRequest) (siblingResponse, error) {
	req.respCh = make(chan siblingResponse, 1)
	select {
	case s.reqCh <- req:
	case <-ctx.Done():
		return siblingResponse{}, ctx.Err()
	}
	select {
	case resp := <-req.respCh:
		return resp, nil
	case <-ctx.Done():
		return siblingResponse{}, ctx.Err()
	}
}
