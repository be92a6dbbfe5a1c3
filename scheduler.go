package dagather

import (
	"container/heap"
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/bentheiii/dagather/internal/telemetry"
)

// completion is what a launched task's goroutine sends back to the
// coordinator when its safe-call wrapper returns.
type completion struct {
	tpl     *TaskTemplate
	outcome any
}

// taskHandle is the coordinator's bookkeeping for one launched task.
type taskHandle struct {
	cancel context.CancelFunc
	done   bool
	value  any
}

// run holds all per-invocation state. Only the coordinator goroutine (the
// one executing run.execute) ever reads or writes these fields; every other
// goroutine communicates with it over completions or siblingReqCh. This is
// the Go rendition of spec.md §5's "single-threaded cooperative" scheduling
// model: not literally one OS thread, but one exclusive owner of the
// bookkeeping.
type run struct {
	dg         *Dagather
	all        []*TaskTemplate
	byName     map[string]*TaskTemplate
	dependants map[*TaskTemplate][]*TaskTemplate
	notReady   map[*TaskTemplate]map[*TaskTemplate]struct{}
	pending    map[*TaskTemplate]struct{}
	invTasks   map[*TaskTemplate]*taskHandle
	discarded  map[*TaskTemplate]struct{}
	launched   map[*TaskTemplate]struct{}
	values     map[*TaskTemplate]any
	errs       []error
	firstErr   error

	positional []any
	keyword    map[string]any

	completions chan completion
	siblingReqCh chan siblingRequest

	wg     sync.WaitGroup
	runID  string
	logger *zap.Logger
	sink   telemetry.Sink
}

func newRun(d *Dagather, runID string, positional []any, keyword map[string]any) *run {
	n := len(d.templates)
	r := &run{
		dg:           d,
		all:          d.templates,
		byName:       d.byName,
		dependants:   make(map[*TaskTemplate][]*TaskTemplate, n),
		notReady:     make(map[*TaskTemplate]map[*TaskTemplate]struct{}, n),
		pending:      make(map[*TaskTemplate]struct{}, n),
		invTasks:     make(map[*TaskTemplate]*taskHandle, n),
		discarded:    make(map[*TaskTemplate]struct{}, n),
		launched:     make(map[*TaskTemplate]struct{}, n),
		values:       make(map[*TaskTemplate]any, n),
		positional:   positional,
		keyword:      keyword,
		completions:  make(chan completion, n),
		siblingReqCh: make(chan siblingRequest, n),
		runID:        runID,
		logger:       d.logger,
	}
	r.sink = telemetry.ZapSink{Logger: d.logger, RunID: runID}
	return r
}

// buildGraph resolves each template's declared dependency names into edges,
// builds the dependants transpose, and partitions templates into the
// initial pending (zero dependencies) and not_ready sets. It fails
// synchronously with ErrUnknownDependency, per spec.md §7, before any task
// is launched.
func (r *run) buildGraph() error {
	for _, t := range r.all {
		depSet := make(map[*TaskTemplate]struct{}, len(t.deps))
		for _, depName := range t.deps {
			dep, ok := r.byName[depName]
			if !ok {
				return unknownDependencyError(t.name, depName)
			}
			depSet[dep] = struct{}{}
			r.dependants[dep] = append(r.dependants[dep], t)
		}
		if len(depSet) == 0 {
			r.pending[t] = struct{}{}
		} else {
			r.notReady[t] = depSet
		}
	}
	return nil
}

// execute runs the dispatch loop to completion and returns the Result
// together with the first propagated application error (nil if none), or a
// nil Result with a CycleError / context error.
func (r *run) execute(ctx context.Context) (*Result, error) {
	if err := r.buildGraph(); err != nil {
		return nil, err
	}

	siblings := Siblings{reqCh: r.siblingReqCh}
	runCtx := context.WithValue(ctx, siblingsKey{}, siblings)

	for t := range r.pending {
		r.launch(runCtx, t)
	}

	for {
		if len(r.pending) == 0 {
			if len(r.notReady) == 0 {
				break
			}
			return nil, r.cycleError()
		}

		select {
		case c := <-r.completions:
			r.handleCompletion(runCtx, c)
			r.drainBufferedCompletions(runCtx)

		case req := <-r.siblingReqCh:
			r.handleSiblingRequest(req)

		case <-ctx.Done():
			r.cancelAllLaunched()
			r.wg.Wait()
			return nil, ctx.Err()
		}
	}

	r.wg.Wait()

	result := &Result{
		values:    r.values,
		errs:      r.errs,
		discarded: r.discarded,
		launched:  r.launched,
	}

	return result, r.firstErr
}

// drainBufferedCompletions processes every completion already buffered on
// the channel, implementing spec.md §4.2 step 3's "every task that
// completed in that wake-up" before the frontier is re-evaluated.
func (r *run) drainBufferedCompletions(ctx context.Context) {
	for {
		select {
		case c := <-r.completions:
			r.handleCompletion(ctx, c)
		default:
			return
		}
	}
}

func (r *run) cycleError() *CycleError {
	names := make([]string, 0, len(r.notReady))
	for t := range r.notReady {
		names = append(names, t.name)
	}
	sort.Strings(names)
	return &CycleError{Names: names}
}

func (r *run) launch(ctx context.Context, t *TaskTemplate) {
	taskCtx, cancel := context.WithCancel(ctx)
	r.invTasks[t] = &taskHandle{cancel: cancel}
	r.pending[t] = struct{}{}
	r.launched[t] = struct{}{}

	args := Args{
		Positional: r.positional,
		Keyword:    make(map[string]any, len(r.keyword)+len(t.deps)),
	}
	for k, v := range r.keyword {
		args.Keyword[k] = v
	}
	for _, depName := range t.deps {
		dep := r.byName[depName]
		args.Keyword[depName] = r.values[dep]
	}

	telemetry.SafeRecord(r.sink, telemetry.Event{Kind: telemetry.EventLaunched, Name: t.name})

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if sem := r.dg.sem; sem != nil {
			if err := sem.Acquire(taskCtx, 1); err != nil {
				r.completions <- completion{tpl: t, outcome: t.handler.resolve(err)}
				return
			}
			defer sem.Release(1)
		}
		outcome := safeCall(taskCtx, t, args)
		r.completions <- completion{tpl: t, outcome: outcome}
	}()
}

func (r *run) handleCompletion(ctx context.Context, c completion) {
	t, outcome := c.tpl, c.outcome
	handle := r.invTasks[t]

	handle.done = true

	value := outcome
	if pr, ok := outcome.(PostErrorResult); ok {
		value = pr.contained()
		if pr.propagate {
			err, _ := value.(error)
			r.errs = append(r.errs, err)
			if r.firstErr == nil {
				r.firstErr = err
			}
			telemetry.SafeRecord(r.sink, telemetry.Event{Kind: telemetry.EventPropagated, Name: t.name, Reason: err.Error()})
		}
	}

	handle.value = value
	delete(r.pending, t)
	r.values[t] = value

	telemetry.SafeRecord(r.sink, telemetry.Event{Kind: telemetry.EventCompleted, Name: t.name})

	if pr, ok := outcome.(PostErrorResult); ok {
		r.applyCancelPolicy(t, pr.Policy)
	}

	for _, d := range r.dependants[t] {
		waiting, ok := r.notReady[d]
		if !ok {
			continue
		}
		delete(waiting, t)
		if len(waiting) == 0 {
			delete(r.notReady, d)
			r.launch(ctx, d)
		}
	}
}

// applyCancelPolicy implements spec.md §4.4.
func (r *run) applyCancelPolicy(source *TaskTemplate, policy CancelPolicy) {
	switch policy {
	case CancelAll:
		r.discardAllNotReady()
		for t, handle := range r.invTasks {
			r.cancelHandle(t, handle)
		}
	case DiscardNotStarted:
		r.discardAllNotReady()
	case DiscardChildren:
		r.discardReachable(source)
	case ContinueAll:
	}
}

func (r *run) discardAllNotReady() {
	for t := range r.notReady {
		delete(r.notReady, t)
		r.discarded[t] = struct{}{}
		telemetry.SafeRecord(r.sink, telemetry.Event{Kind: telemetry.EventDiscarded, Name: t.name})
	}
}

// discardReachable transitively discards every template in not_ready
// reachable from source through the dependants relation, visiting in
// ascending registration-index order for determinism. Visited templates are
// removed from not_ready as they're found, which both prevents revisiting a
// diamond-shared descendant and guarantees termination.
func (r *run) discardReachable(source *TaskTemplate) {
	h := &templateHeap{}
	heap.Init(h)
	for _, d := range r.dependants[source] {
		if _, waiting := r.notReady[d]; waiting {
			heap.Push(h, d)
		}
	}

	seen := make(map[*TaskTemplate]struct{})
	for h.Len() > 0 {
		t := heap.Pop(h).(*TaskTemplate)
		if _, already := seen[t]; already {
			continue
		}
		seen[t] = struct{}{}
		if _, waiting := r.notReady[t]; !waiting {
			continue
		}
		delete(r.notReady, t)
		r.discarded[t] = struct{}{}
		telemetry.SafeRecord(r.sink, telemetry.Event{Kind: telemetry.EventDiscarded, Name: t.name})
		for _, d := range r.dependants[t] {
			if _, waiting := r.notReady[d]; waiting {
				heap.Push(h, d)
			}
		}
	}
}

func (r *run) cancelAllLaunched() {
	for t, handle := range r.invTasks {
		r.cancelHandle(t, handle)
	}
}

// cancelHandle cancels a launched task's context, recording EventCancelled.
// Cancelling a handle whose task has already completed is inherently a
// no-op (per spec.md §9's decision on cancel_all vs. a finished task): the
// task is no longer listening on ctx.Done, so no event is recorded for it.
func (r *run) cancelHandle(t *TaskTemplate, handle *taskHandle) {
	if handle.done {
		return
	}
	handle.cancel()
	telemetry.SafeRecord(r.sink, telemetry.Event{Kind: telemetry.EventCancelled, Name: t.name})
}

func (r *run) handleSiblingRequest(req siblingRequest) {
	t, ok := r.byName[req.target]
	if !ok {
		req.respCh <- siblingResponse{err: &GraphError{Kind: ErrNotFound, Msg: req.target}}
		return
	}

	switch req.kind {
	case siblingQueryState:
		req.respCh <- siblingResponse{state: r.stateOf(t)}

	case siblingCancel:
		if handle, launched := r.invTasks[t]; launched {
			r.cancelHandle(t, handle)
			req.respCh <- siblingResponse{}
			return
		}
		if _, waiting := r.notReady[t]; waiting {
			delete(r.notReady, t)
			r.discarded[t] = struct{}{}
			telemetry.SafeRecord(r.sink, telemetry.Event{Kind: telemetry.EventDiscarded, Name: t.name})
			r.discardReachable(t)
		}
		req.respCh <- siblingResponse{}
	}
}

func (r *run) stateOf(t *TaskTemplate) State {
	if _, discarded := r.discarded[t]; discarded {
		return StateDiscarded
	}
	handle, launched := r.invTasks[t]
	if !launched {
		return StateWaiting
	}
	if handle.done {
		return StateDone
	}
	return StateRunning
}

// templateHeap orders *TaskTemplate by ascending registration index, used to
// make discard traversal order deterministic.
type templateHeap []*TaskTemplate

func (h templateHeap) Len() int            { return len(h) }
func (h templateHeap) Less(i, j int) bool  { return h[i].index < h[j].index }
func (h templateHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *templateHeap) Push(x any)         { *h = append(*h, x.(*TaskTemplate)) }
func (h *templateHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
