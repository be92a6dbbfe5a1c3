package dagather

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContinueResult_DefaultPolicyIsContinueAll(t *testing.T) {
	r := ContinueResult("v")
	assert.Equal(t, ContinueAll, r.Policy)
	assert.False(t, r.IsPropagate())
	assert.Equal(t, "v", r.contained())
}

func TestContinueResult_ExplicitPolicy(t *testing.T) {
	r := ContinueResult("v", DiscardChildren)
	assert.Equal(t, DiscardChildren, r.Policy)
}

func TestPropagateError_DefaultPolicyIsCancelAll(t *testing.T) {
	err := errors.New("boom")
	r := PropagateError(err)
	assert.Equal(t, CancelAll, r.Policy)
	assert.True(t, r.IsPropagate())
	assert.Equal(t, err, r.contained())
}

func TestPropagateError_ExplicitPolicy(t *testing.T) {
	err := errors.New("boom")
	r := PropagateError(err, ContinueAll)
	assert.Equal(t, ContinueAll, r.Policy)
}

func TestAbort_ErrorIncludesResult(t *testing.T) {
	a := &Abort{Result: ContinueResult("v", CancelAll)}
	assert.Contains(t, a.Error(), "ContinueResult")
}

func TestCancelPolicy_String(t *testing.T) {
	assert.Equal(t, "cancel_all", CancelAll.String())
	assert.Equal(t, "discard_not_started", DiscardNotStarted.String())
	assert.Equal(t, "discard_children", DiscardChildren.String())
	assert.Equal(t, "continue_all", ContinueAll.String())
}
