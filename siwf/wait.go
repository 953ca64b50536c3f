package siwf

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout matches every *TimeoutError via errors.Is.
var ErrTimeout = errors.New("siwf channel wait timed out")

// TimeoutError is returned when a channel does not complete before the deadline.
type TimeoutError struct {
	Waited     time.Duration
	LastStatus *ChannelStatus
}

func (e *TimeoutError) Error() string {
	state := "unknown"
	if e.LastStatus != nil {
		state = e.LastStatus.State
	}
	return fmt.Sprintf("%s after %s (last state %s)", ErrTimeout, e.Waited, state)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// WaitForCompletion polls the channel every interval until it completes or
// deadline elapses. Status errors are retried until the deadline. A canceled
// ctx returns ctx.Err().
func (s *Service) WaitForCompletion(ctx context.Context, channelToken string, deadline, interval time.Duration) (*ChannelStatus, error) {
	if interval <= 0 {
		interval = time.Second
	}
	start := time.Now()
	timer := time.NewTimer(deadline)
	defer timer.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last *ChannelStatus
	for {
		st, err := s.relay.Status(ctx, channelToken)
		switch {
		case err == nil && st.Completed():
			return st, nil
		case err == nil:
			last = st
		case ctx.Err() != nil:
			return last, ctx.Err()
		default:
			s.logger.DebugContext(ctx, "siwf status poll failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-timer.C:
			s.logger.ErrorContext(ctx, "siwf channel wait timed out", "waited", time.Since(start))
			return last, &TimeoutError{Waited: time.Since(start), LastStatus: last}
		case <-ticker.C:
		}
	}
}
