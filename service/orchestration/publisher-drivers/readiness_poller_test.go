package publisherdrivers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPollUntilReadyFinishesAfterPending(t *testing.T) {
	calls := 0
	states := []PollState{PollPending, PollPending, PollFinished}
	check := func() (PollState, error) {
		state := states[calls]
		calls++
		return state, nil
	}

	err := PollUntilReady(context.Background(), check, 20, time.Millisecond)
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestPollUntilReadyExhaustsBudget(t *testing.T) {
	calls := 0
	check := func() (PollState, error) {
		calls++
		return PollPending, nil
	}

	err := PollUntilReady(context.Background(), check, 20, time.Millisecond)
	assert.ErrorIs(t, err, ErrPollTimeout)
	assert.Equal(t, 20, calls)
}

func TestPollUntilReadyFailureStops(t *testing.T) {
	err := PollUntilReady(context.Background(), func() (PollState, error) {
		return PollFailed, nil
	}, 20, time.Millisecond)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrPollTimeout)
}

func TestPollUntilReadyCheckErrorStops(t *testing.T) {
	boom := errors.New("status probe failed")
	calls := 0
	err := PollUntilReady(context.Background(), func() (PollState, error) {
		calls++
		return PollPending, boom
	}, 20, time.Millisecond)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestPollUntilReadyHonorsContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := PollUntilReady(ctx, func() (PollState, error) {
		return PollPending, nil
	}, 20, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}
