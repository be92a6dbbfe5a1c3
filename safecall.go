package dagather

import (
	"context"
	"errors"
	"fmt"
)

// safeCall invokes t's callback and normalizes whatever happens into an
// outcome for the scheduler: either a plain value, or a PostErrorResult.
//
// A panicking callback is recovered and treated as an ordinary error, routed
// through the same Abort/ExceptionHandler resolution as a returned error,
// so a careless callback cannot take the coordinator goroutine down with it.
func safeCall(ctx context.Context, t *TaskTemplate, args Args) (outcome any) {
	v, err := invoke(ctx, t, args)

	if err == nil {
		if pr, ok := v.(PostErrorResult); ok {
			_ = pr
			return PropagateError(fmt.Errorf("%w: %q returned one instead of raising Abort", ErrIllegalReturn, t.name), CancelAll)
		}
		return v
	}

	var abort *Abort
	if errors.As(err, &abort) {
		return abort.Result
	}

	return t.handler.resolve(err)
}

func invoke(ctx context.Context, t *TaskTemplate, args Args) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dagather: task %q panicked: %v", t.name, r)
		}
	}()
	return t.fn(ctx, args)
}
