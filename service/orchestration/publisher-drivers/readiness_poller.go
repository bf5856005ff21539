package publisherdrivers

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// PollState is the caller-mapped status of an asynchronously processed
// remote media object.
type PollState int

const (
	PollPending PollState = iota
	PollFinished
	PollFailed
)

var ErrPollTimeout = errors.New("media container not ready after polling")

// PollUntilReady repeatedly invokes check until the remote object is ready.
// PollFinished terminates successfully. PollFailed, or any error from
// check, terminates with that failure. Every other status burns one attempt
// and sleeps for interval; budget exhaustion yields ErrPollTimeout. The
// sleep is cancellable through ctx.
func PollUntilReady(ctx context.Context, check func() (PollState, error), maxAttempts int, interval time.Duration) error {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		state, err := check()
		if err != nil {
			return err
		}
		switch state {
		case PollFinished:
			return nil
		case PollFailed:
			return fmt.Errorf("media container failed while processing")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	return ErrPollTimeout
}
