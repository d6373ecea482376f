package rollout

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
)

// ErrRolloutNotReady is returned when the polling budget runs out before the
// rollout becomes active.
var ErrRolloutNotReady = errors.New("measured rollout not active")

// AwaitActive waits one interval, then polls checker up to attempts times with a
// constant interval between polls. It returns nil on the first active probe,
// ErrRolloutNotReady when every attempt saw an inactive rollout, or the context error.
func AwaitActive(ctx context.Context, checker StatusChecker, flagKey string, interval time.Duration, attempts int, log zerolog.Logger) error {
	if attempts <= 0 {
		return ErrRolloutNotReady
	}

	timer := time.NewTimer(interval)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
	}

	tries := 0
	operation := func() (struct{}, error) {
		tries++
		if checker.IsActive(ctx, flagKey) {
			return struct{}{}, nil
		}
		return struct{}{}, ErrRolloutNotReady
	}
	notify := func(_ error, next time.Duration) {
		log.Info().Str("flag", flagKey).Int("attempt", tries).Int("max_attempts", attempts).
			Dur("retry_in", next).Msg("rollout not ready yet, retrying")
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(interval)),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify),
	)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return ErrRolloutNotReady
}
