package dagather

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type appError struct{ msg string }

func (e *appError) Error() string { return e.msg }

type otherAppError struct{ msg string }

func (e *otherAppError) Error() string { return e.msg }

func TestHandle_Terminal(t *testing.T) {
	h := Handle(ContinueResult("fallback"))
	result := h.resolve(errors.New("boom"))
	assert.False(t, result.IsPropagate())
	assert.Equal(t, "fallback", result.contained())
}

func TestHandleFunc_RecursesOnError(t *testing.T) {
	h := HandleFunc(func(err error) ExceptionHandler {
		return Handle(ContinueResult(err.Error()))
	})
	result := h.resolve(errors.New("boom"))
	assert.Equal(t, "boom", result.contained())
}

func TestHandleClass_MatchesFirstSatisfiedCase(t *testing.T) {
	h := HandleClass(
		Case[*appError](Handle(ContinueResult("app"))),
		Case[*otherAppError](Handle(ContinueResult("other"))),
	)
	result := h.resolve(&appError{msg: "x"})
	assert.Equal(t, "app", result.contained())
}

func TestHandleClass_UnmatchedPropagatesWithCancelAll(t *testing.T) {
	h := HandleClass(Case[*appError](Handle(ContinueResult("app"))))
	result := h.resolve(&otherAppError{msg: "x"})
	assert.True(t, result.IsPropagate())
	assert.Equal(t, CancelAll, result.Policy)
}

func TestResolve_SystemClassUpgradedWhenNotNamed(t *testing.T) {
	h := HandleFunc(func(error) ExceptionHandler {
		return Handle(ContinueResult("swallowed"))
	})
	result := h.resolve(context.Canceled)
	assert.True(t, result.IsPropagate())
	assert.ErrorIs(t, result.contained().(error), context.Canceled)
}

func TestResolve_SystemClassHonoredWhenExplicitlyNamed(t *testing.T) {
	h := HandleClass(
		CaseIs(context.Canceled, Handle(ContinueResult("cancelled"))),
	)
	result := h.resolve(context.Canceled)
	assert.False(t, result.IsPropagate())
	assert.Equal(t, "cancelled", result.contained())
}

func TestResolve_SystemClassThroughClassDispatchNotNamedStillUpgrades(t *testing.T) {
	h := HandleClass(
		Case[*appError](Handle(ContinueResult("app"))),
	)
	result := h.resolve(fmt.Errorf("wrap: %w", context.DeadlineExceeded))
	assert.True(t, result.IsPropagate())
}

func TestResolve_DepthExceededIsDefensive(t *testing.T) {
	var looping ExceptionHandler
	looping = HandleFunc(func(error) ExceptionHandler { return looping })
	result := looping.resolve(errors.New("boom"))
	assert.True(t, result.IsPropagate())
}

func TestDefaultExceptionHandler_PropagatesWithCancelAll(t *testing.T) {
	result := DefaultExceptionHandler.resolve(errors.New("boom"))
	assert.True(t, result.IsPropagate())
	assert.Equal(t, CancelAll, result.Policy)
}
