package dagather

import "fmt"

// CancelPolicy controls what happens to sibling templates when a task's
// outcome is a PostErrorResult.
type CancelPolicy int

const (
	// CancelAll actively cancels every running sibling and discards every
	// waiting template.
	CancelAll CancelPolicy = iota
	// DiscardNotStarted clears the waiting set but lets running tasks finish.
	DiscardNotStarted
	// DiscardChildren transitively discards only the failed task's dependents.
	DiscardChildren
	// ContinueAll has no effect on any other template.
	ContinueAll
)

func (p CancelPolicy) String() string {
	switch p {
	case CancelAll:
		return "cancel_all"
	case DiscardNotStarted:
		return "discard_not_started"
	case DiscardChildren:
		return "discard_children"
	case ContinueAll:
		return "continue_all"
	default:
		return fmt.Sprintf("CancelPolicy(%d)", int(p))
	}
}

// PostErrorResult is what an ExceptionHandler (or an explicit Abort) resolves
// to after a task raises an error: a cancel policy, plus either a substitute
// return value or a propagated error.
//
// Construct one with ContinueResult or PropagateError; the zero value is not
// meaningful.
type PostErrorResult struct {
	Policy    CancelPolicy
	propagate bool
	value     any
	err       error
}

// ContinueResult treats the task as having returned value. The default
// policy is ContinueAll; pass an explicit policy to override it.
func ContinueResult(value any, policy ...CancelPolicy) PostErrorResult {
	p := ContinueAll
	if len(policy) > 0 {
		p = policy[0]
	}
	return PostErrorResult{Policy: p, propagate: false, value: value}
}

// PropagateError records err as the task's outcome and causes it to be
// re-raised from Invoke once the run settles. The default policy is
// CancelAll; pass an explicit policy to override it.
func PropagateError(err error, policy ...CancelPolicy) PostErrorResult {
	p := CancelAll
	if len(policy) > 0 {
		p = policy[0]
	}
	return PostErrorResult{Policy: p, propagate: true, err: err}
}

// IsPropagate reports whether this result propagates an error rather than
// substituting a return value.
func (r PostErrorResult) IsPropagate() bool { return r.propagate }

// contained returns the value recorded in a run's intermediary results and
// Result object for this outcome: the substitute value for ContinueResult,
// or the error itself (as a plain value) for PropagateError.
func (r PostErrorResult) contained() any {
	if r.propagate {
		return r.err
	}
	return r.value
}

func (r PostErrorResult) String() string {
	if r.propagate {
		return fmt.Sprintf("PropagateError(%v, %s)", r.err, r.Policy)
	}
	return fmt.Sprintf("ContinueResult(%v, %s)", r.value, r.Policy)
}

// Abort is how a task signals a PostErrorResult directly, bypassing its
// ExceptionHandler entirely. A callback that wants to control its own
// cancel policy returns &Abort{Result: ...} as its error.
type Abort struct {
	Result PostErrorResult
}

func (a *Abort) Error() string {
	if a == nil {
		return ""
	}
	return fmt.Sprintf("dagather: aborted: %s", a.Result)
}
