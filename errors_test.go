package dagather

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGraphError_UnwrapsToSentinel(t *testing.T) {
	err := duplicateNameError("a")
	assert.True(t, errors.Is(err, ErrDuplicateName))
	assert.Contains(t, err.Error(), "a")
}

func TestCycleError_UnwrapsAndListsNames(t *testing.T) {
	err := &CycleError{Names: []string{"a", "b"}}
	assert.True(t, errors.Is(err, ErrCycle))
	assert.Contains(t, err.Error(), "a")
	assert.Contains(t, err.Error(), "b")
}

func TestDiscardedTaskError_UnwrapsToSentinel(t *testing.T) {
	err := &DiscardedTaskError{Name: "a"}
	assert.True(t, errors.Is(err, ErrDiscardedTask))
	assert.Contains(t, err.Error(), "a")
}
