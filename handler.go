package dagather

import (
	"context"
	"errors"
	"fmt"
)

// maxHandlerDepth bounds ExceptionHandler resolution. A well-formed handler
// composition is finite by construction; this is only a backstop against a
// handler that accidentally recurses into itself forever.
const maxHandlerDepth = 64

// ExceptionHandler resolves a raised error into a PostErrorResult. It is one
// of three shapes, resolved recursively:
//
//   - a literal PostErrorResult, built with Handle — terminal.
//   - a function of the error to another ExceptionHandler, built with
//     HandleFunc.
//   - a dispatch over error classes, built with HandleClass, matched by the
//     first class (tested with errors.As) that the raised error satisfies.
//
// An unmatched class, or the zero value, resolves to PropagateError with
// CancelAll.
type ExceptionHandler struct {
	terminal *PostErrorResult
	fn       func(error) ExceptionHandler
	cases    []ClassCase
}

// ClassCase pairs an error class with the handler to recurse into when a
// raised error belongs to that class. Build one with Case.
type ClassCase struct {
	match func(error) bool
	next  ExceptionHandler
}

// Handle builds a terminal ExceptionHandler that always resolves to result.
func Handle(result PostErrorResult) ExceptionHandler {
	r := result
	return ExceptionHandler{terminal: &r}
}

// HandleFunc builds an ExceptionHandler that recurses into whatever fn
// returns for the raised error.
func HandleFunc(fn func(error) ExceptionHandler) ExceptionHandler {
	return ExceptionHandler{fn: fn}
}

// HandleClass builds an ExceptionHandler that recurses into the first case
// whose class the raised error satisfies. If none match, the error
// propagates with CancelAll.
func HandleClass(cases ...ClassCase) ExceptionHandler {
	return ExceptionHandler{cases: cases}
}

// Case matches errors satisfying errors.As for E, and recurses into next.
func Case[E error](next ExceptionHandler) ClassCase {
	return ClassCase{
		match: func(err error) bool {
			var target E
			return errors.As(err, &target)
		},
		next: next,
	}
}

// CaseIs matches errors satisfying errors.Is against the sentinel target,
// and recurses into next. This is Case's complement for Go's other common
// error-identity idiom — a package-level sentinel value rather than a named
// type — and is how a handler explicitly names context.Canceled or
// context.DeadlineExceeded: neither has an exported concrete type a Case
// type parameter could name, so CaseIs is the only way to mark them as
// deliberately handled rather than silently absorbed by a catch-all.
func CaseIs(target error, next ExceptionHandler) ClassCase {
	return ClassCase{
		match: func(err error) bool {
			return errors.Is(err, target)
		},
		next: next,
	}
}

// DefaultExceptionHandler propagates every error with CancelAll. It is the
// Dagather-wide default unless overridden with WithDefaultExceptionHandler
// or per task with WithExceptionHandler.
var DefaultExceptionHandler = HandleFunc(func(err error) ExceptionHandler {
	return Handle(PropagateError(err))
})

// isSystemClass reports whether err is a cancellation/system-class error
// that a handler must not silently swallow unless it names the class
// explicitly. context.Canceled and context.DeadlineExceeded are the only
// system-class errors this orchestration core itself can raise (delivered
// when a sibling, or the run's own context, is cancelled).
func isSystemClass(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// resolve walks the handler chain to a terminal PostErrorResult for err.
//
// If resolution never passes through a ClassCase that explicitly named err's
// class, and err is system-class, the result is upgraded to
// PropagateError(err): handlers built only from HandleFunc, or from
// HandleClass cases that don't mention the class, must not absorb
// cancellation.
func (h ExceptionHandler) resolve(err error) PostErrorResult {
	cur := h
	matchedExplicitClass := false

	for depth := 0; depth < maxHandlerDepth; depth++ {
		switch {
		case cur.terminal != nil:
			if isSystemClass(err) && !matchedExplicitClass {
				return PropagateError(err)
			}
			return *cur.terminal

		case cur.fn != nil:
			cur = cur.fn(err)

		case cur.cases != nil:
			matched := false
			for _, c := range cur.cases {
				if c.match(err) {
					cur = c.next
					matchedExplicitClass = true
					matched = true
					break
				}
			}
			if !matched {
				return PropagateError(err)
			}

		default:
			// Zero-value handler.
			return PropagateError(err)
		}
	}

	return PropagateError(fmt.Errorf("dagather: exception handler resolution did not terminate within %d steps: %w", maxHandlerDepth, err))
}
