package supervise

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStopsOnCleanExit(t *testing.T) {
	calls := 0
	err := Run(func() (bool, error) {
		calls++
		return false, nil
	}, Options{Max: 5}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRunRestartsUntilCleanExit(t *testing.T) {
	calls := 0
	err := Run(func() (bool, error) {
		calls++
		return calls < 3, nil
	}, Options{Max: 5}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRunFatalErrorStopsImmediately(t *testing.T) {
	boom := errors.New("register failed")
	calls := 0
	err := Run(func() (bool, error) {
		calls++
		return true, boom
	}, Options{Max: 5}, nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestRunEnforcesRestartLimit(t *testing.T) {
	calls := 0
	err := Run(func() (bool, error) {
		calls++
		return true, nil
	}, Options{Max: 3}, nil)
	assert.ErrorIs(t, err, ErrRestartLimit)
	assert.Equal(t, 3, calls)
}
