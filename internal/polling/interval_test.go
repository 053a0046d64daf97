package polling

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/configstore/internal/model"
	"github.com/roach88/configstore/internal/testutil"
)

func at(hour, min, sec int) time.Time {
	return time.Date(2024, time.March, 10, hour, min, sec, 0, time.UTC)
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero
}

func TestIsInvalidDuration(t *testing.T) {
	invalid := []time.Duration{
		0,
		500 * time.Millisecond,
		time.Second,
		-time.Hour,
		11 * time.Second,
		13 * time.Hour,
		5 * time.Hour,
		11 * time.Millisecond,
		48 * time.Hour,
		25 * time.Hour,
	}
	for _, d := range invalid {
		assert.True(t, IsInvalidDuration(d), d.String())
	}

	valid := []time.Duration{
		2 * time.Second,
		10 * time.Second,
		15 * time.Second,
		20 * time.Second,
		30 * time.Second,
		20 * time.Minute,
		time.Hour,
		2 * time.Hour,
		3 * time.Hour,
		4 * time.Hour,
		6 * time.Hour,
		12 * time.Hour,
		24 * time.Hour,
	}
	for _, d := range valid {
		assert.False(t, IsInvalidDuration(d), d.String())
	}
}

func TestFirstPollTime(t *testing.T) {
	tests := []struct {
		name      string
		interval  time.Duration
		timeOfDay model.TimeOfDay
		now       time.Time
		want      time.Time
	}{
		{"daily later today", 24 * time.Hour, model.MustTimeOfDay(10, 30, 0), at(5, 20, 0), at(10, 30, 0)},
		{"daily at exactly now defers a day", 24 * time.Hour, model.MustTimeOfDay(10, 30, 0), at(10, 30, 0), at(10, 30, 0).Add(24 * time.Hour)},
		{"daily already passed", 24 * time.Hour, model.MustTimeOfDay(10, 20, 0), at(10, 20, 1), at(10, 20, 0).Add(24 * time.Hour)},
		{"daily two minutes before anchor", 24 * time.Hour, model.MustTimeOfDay(2, 0, 0), at(1, 58, 0), at(2, 0, 0)},
		{"sub-day interval before anchor", 5 * time.Second, model.MustTimeOfDay(2, 0, 0), at(1, 58, 0), at(1, 58, 5)},
		{"sub-day interval after anchor", 30 * time.Minute, model.MustTimeOfDay(2, 0, 0), at(13, 10, 0), at(13, 30, 0)},
		{"on the grid defers one interval", 30 * time.Minute, model.MustTimeOfDay(2, 0, 0), at(13, 30, 0), at(14, 0, 0)},
		{"anchor late in day", 12 * time.Hour, model.MustTimeOfDay(23, 0, 0), at(4, 0, 0), at(11, 0, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FirstPollTime(tt.interval, tt.timeOfDay, tt.now))
		})
	}
}

func TestFirstPollTime_AlwaysAfterNowAndOnGrid(t *testing.T) {
	tod := model.MustTimeOfDay(16, 0, 0)
	for _, interval := range []time.Duration{2 * time.Second, 30 * time.Second, 20 * time.Minute, 3 * time.Hour, 24 * time.Hour} {
		for now := at(0, 0, 0); now.Before(at(23, 59, 59)); now = now.Add(37*time.Minute + 13*time.Second) {
			got := FirstPollTime(interval, tod, now)
			assert.True(t, got.After(now))
			assert.False(t, got.Add(-interval).After(now))
			assert.Zero(t, got.Sub(tod.On(now))%interval)
		}
	}
}

func TestPollEveryInterval_EmitsScheduledInstants(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mock := testutil.MockClock(at(1, 58, 0))
	ticks, err := PollEveryInterval(ctx, 5*time.Second, model.MustTimeOfDay(2, 0, 0), mock)
	require.NoError(t, err)

	first := testutil.AdvanceUntil(t, mock, time.Second, ticks)
	assert.Equal(t, at(1, 58, 5), first)
	prev := first
	for range 5 {
		next := testutil.AdvanceUntil(t, mock, time.Second, ticks)
		assert.Equal(t, 5*time.Second, next.Sub(prev))
		prev = next
	}
}

func TestPollEveryInterval_DailyAnchor(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mock := testutil.MockClock(at(1, 58, 0))
	ticks, err := PollEveryInterval(ctx, 24*time.Hour, model.MustTimeOfDay(2, 0, 0), mock)
	require.NoError(t, err)

	assert.Equal(t, at(2, 0, 0), testutil.AdvanceUntil(t, mock, time.Hour, ticks))
	assert.Equal(t, at(2, 0, 0).Add(24*time.Hour), testutil.AdvanceUntil(t, mock, time.Hour, ticks))
	assert.Equal(t, at(2, 0, 0).Add(48*time.Hour), testutil.AdvanceUntil(t, mock, time.Hour, ticks))
}

func TestPollEveryInterval_SkipsMissedGridPoints(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mock := testutil.MockClock(at(9, 0, 0))
	ticks, err := PollEveryInterval(ctx, 2*time.Second, model.MustTimeOfDay(0, 0, 0), mock)
	require.NoError(t, err)

	// The consumer is busy for an hour; the first instant still comes from
	// call time.
	mock.Add(time.Hour)
	assert.Equal(t, at(9, 0, 2), receive(t, ticks))

	// The 1799 grid points that passed meanwhile are not replayed.
	select {
	case tick := <-ticks:
		t.Fatalf("missed grid point %s delivered without the clock advancing", tick)
	case <-time.After(50 * time.Millisecond):
	}

	assert.Equal(t, at(10, 0, 2), testutil.AdvanceUntil(t, mock, time.Second, ticks))
	assert.Equal(t, at(10, 0, 4), testutil.AdvanceUntil(t, mock, time.Second, ticks))
}

func TestPollEveryInterval_ClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ticks, err := PollEveryInterval(ctx, time.Hour, model.MustTimeOfDay(0, 0, 0), testutil.MockClock(at(9, 0, 0)))
	require.NoError(t, err)

	cancel()
	select {
	case _, ok := <-ticks:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not close")
	}
}

func TestPollEveryInterval_Invalid(t *testing.T) {
	_, err := PollEveryInterval(context.Background(), 17*time.Hour, model.MustTimeOfDay(10, 0, 0), clock.NewMock())
	assert.Equal(t, model.ErrCodeInvalidPolling, model.CodeOf(err))

	_, err = PollEveryInterval(context.Background(), time.Hour, model.TimeOfDay{}, clock.NewMock())
	assert.Equal(t, model.ErrCodeNoScanConfiguration, model.CodeOf(err))
}

func TestPollEveryConfiguration_MissingValues(t *testing.T) {
	configs := []*model.PollingConfiguration{
		nil,
		{},
		{Interval: 24 * time.Hour},
		{TimeOfDay: model.MustTimeOfDay(10, 0, 0)},
	}
	for _, cfg := range configs {
		_, err := PollEveryConfiguration(context.Background(), cfg, clock.NewMock())
		assert.Equal(t, model.ErrCodeNoScanConfiguration, model.CodeOf(err))
	}

	_, err := PollEveryConfiguration(context.Background(),
		&model.PollingConfiguration{Interval: 17 * time.Hour, TimeOfDay: model.MustTimeOfDay(10, 0, 0)}, clock.NewMock())
	assert.Equal(t, model.ErrCodeInvalidPolling, model.CodeOf(err))
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"PT5S", 5 * time.Second},
		{"PT300S", 5 * time.Minute},
		{"PT5M", 5 * time.Minute},
		{"PT12H", 12 * time.Hour},
		{"PT24H", 24 * time.Hour},
		{"P1D", 24 * time.Hour},
		{"P1DT2H", 26 * time.Hour},
		{"pt0.5s", 500 * time.Millisecond},
		{"90s", 90 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "P", "PT", "P5H", "PTXS", "five"} {
		_, err := ParseDuration(bad)
		assert.Error(t, err, bad)
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "PT5M", FormatDuration(5*time.Minute))
	assert.Equal(t, "PT12H30M", FormatDuration(12*time.Hour+30*time.Minute))
	assert.Equal(t, "PT2S", FormatDuration(2*time.Second))
	assert.Equal(t, "PT0S", FormatDuration(0))
}
