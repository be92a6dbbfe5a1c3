package dagather

import (
	"sort"

	multierror "github.com/hashicorp/go-multierror"
)

// Result is the read-only outcome of one Invoke call: a mapping from every
// launched TaskTemplate to its outcome value, plus the set of templates a
// cancel policy discarded before they ever ran.
type Result struct {
	values    map[*TaskTemplate]any
	errs      []error
	discarded map[*TaskTemplate]struct{}
	launched  map[*TaskTemplate]struct{}
}

// Keys returns every launched template, in ascending registration order.
// Discarded templates are never included.
func (r *Result) Keys() []*TaskTemplate {
	out := make([]*TaskTemplate, 0, len(r.launched))
	for t := range r.launched {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].index < out[j].index })
	return out
}

// Get returns t's outcome value: its callback's returned value, or, if its
// outcome was a PostErrorResult, the contained value (the ContinueResult's
// substitute, or the PropagateError's error as a plain value).
//
// Get fails with a *DiscardedTaskError if t was never launched this run
// because a cancel policy discarded it, or with ErrNotFound if t belongs to
// no run this Result was built from.
func (r *Result) Get(t *TaskTemplate) (any, error) {
	if t == nil {
		return nil, ErrNotFound
	}
	if _, discarded := r.discarded[t]; discarded {
		return nil, &DiscardedTaskError{Name: t.name}
	}
	v, ok := r.values[t]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

// Kwargs re-keys the same mapping Get exposes by template name.
func (r *Result) Kwargs() map[string]any {
	out := make(map[string]any, len(r.launched))
	for t := range r.launched {
		out[t.name] = r.values[t]
	}
	return out
}

// Discarded returns every template that a cancel policy prevented from ever
// launching this run, in ascending registration order.
func (r *Result) Discarded() []*TaskTemplate {
	out := make([]*TaskTemplate, 0, len(r.discarded))
	for t := range r.discarded {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].index < out[j].index })
	return out
}

// Errors aggregates every PropagateError outcome of the run, not only the
// first (which alone is returned as Invoke's error). It is nil if no task
// propagated an error.
func (r *Result) Errors() error {
	var merr *multierror.Error
	for _, err := range r.errs {
		merr = multierror.Append(merr, err)
	}
	return merr.ErrorOrNil()
}
