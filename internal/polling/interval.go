package polling

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/roach88/configstore/internal/model"
)

const (
	minimumInterval = 2 * time.Second
	oneDay          = 24 * time.Hour
)

// IsInvalidDuration reports whether d cannot drive the scheduler. Valid
// intervals lie in [2s, 24h] and divide a day evenly in milliseconds.
func IsInvalidDuration(d time.Duration) bool {
	ms := d.Milliseconds()
	return ms < minimumInterval.Milliseconds() || ms > oneDay.Milliseconds() || oneDay.Milliseconds()%ms != 0
}

// FirstPollTime returns the earliest instant strictly after now on the
// grid that passes through timeOfDay and is spaced by interval.
func FirstPollTime(interval time.Duration, timeOfDay model.TimeOfDay, now time.Time) time.Time {
	now = now.UTC()
	candidate := timeOfDay.On(now)

	// Forward to the first grid point after now. Equality defers one interval.
	if !candidate.After(now) {
		steps := now.Sub(candidate)/interval + 1
		candidate = candidate.Add(steps * interval)
	}

	// Back to the earliest grid point still after now.
	steps := (candidate.Sub(now) - 1) / interval
	return candidate.Add(-steps * interval)
}

// PollEveryInterval emits scheduled instants, one interval apart, starting
// with FirstPollTime relative to clk.Now() at call time. Each value is the
// instant the poll was scheduled for, not when it was delivered. Grid points
// that pass while the consumer is busy are dropped, as time.Ticker does, and
// emission resumes at the first grid point after the consumer returns.
//
// The channel closes when ctx ends. An invalid interval or unset time of
// day is reported synchronously and nothing is started.
func PollEveryInterval(ctx context.Context, interval time.Duration, timeOfDay model.TimeOfDay, clk clock.Clock) (<-chan time.Time, error) {
	if IsInvalidDuration(interval) {
		return nil, model.NewError(model.ErrCodeInvalidPolling,
			"specified duration '%s' must be a factor of 1 day in milliseconds", interval)
	}
	if timeOfDay.IsZero() {
		return nil, model.NewError(model.ErrCodeNoScanConfiguration, "time of day is not set")
	}

	first := FirstPollTime(interval, timeOfDay, clk.Now())
	out := make(chan time.Time)

	go func() {
		defer close(out)
		next := first
		for {
			if delay := next.Sub(clk.Now()); delay > 0 {
				timer := clk.Timer(delay)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
			}
			select {
			case <-ctx.Done():
				return
			case out <- next:
			}
			next = next.Add(interval)
			// A consumer slower than one interval skips the grid points it missed.
			if now := clk.Now(); !next.After(now) {
				next = next.Add((now.Sub(next)/interval + 1) * interval)
			}
		}
	}()

	return out, nil
}

// PollEveryConfiguration is PollEveryInterval driven by cfg. A missing
// interval or time of day fails with ErrCodeNoScanConfiguration.
func PollEveryConfiguration(ctx context.Context, cfg *model.PollingConfiguration, clk clock.Clock) (<-chan time.Time, error) {
	if cfg == nil || cfg.Interval == 0 || cfg.TimeOfDay.IsZero() {
		return nil, model.NewError(model.ErrCodeNoScanConfiguration, "invalid poll configuration, missing property in config: %v", cfg)
	}
	return PollEveryInterval(ctx, cfg.Interval, cfg.TimeOfDay, clk)
}
