package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFetchExhaustedErrorNamesStrategies(t *testing.T) {
	cause := errors.New("tree truncated")
	err := &FetchExhaustedError{Attempted: []string{"archive", "tree"}, Causes: []error{cause}}
	require.Equal(t, "fetch exhausted: all strategies failed [archive, tree]", err.Error())
	require.ErrorIs(t, err, cause)

	wrapped := fmt.Errorf("sync: %w", err)
	require.True(t, IsFetchExhausted(wrapped))
	require.False(t, IsFetchExhausted(ErrNotFound))
}

func TestFetchExhaustedErrorWithoutAttempts(t *testing.T) {
	err := &FetchExhaustedError{}
	require.Contains(t, err.Error(), "no strategy supports")
}

func TestSentinelHelpers(t *testing.T) {
	require.True(t, IsConflict(fmt.Errorf("sync busy: %w", ErrConflict)))
	require.True(t, IsNotFound(fmt.Errorf("run: %w", ErrNotFound)))
	require.False(t, IsNotFound(ErrConflict))
}
