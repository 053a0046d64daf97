package delta

import (
	"context"

	"github.com/benbjohnson/clock"

	"github.com/roach88/configstore/internal/model"
)

// SnapshotHolder is the output of one scan cycle.
type SnapshotHolder[T Versioned] struct {
	Items   []T
	Changes []model.Delta[T]
	Trigger model.ScanRequest
}

// FetchFunc pulls a complete, sorted snapshot. It may block.
type FetchFunc[T Versioned] func(ctx context.Context) ([]T, error)

type blockingKey struct{}

// WithBlocking marks ctx as allowed to run blocking scan work.
func WithBlocking(ctx context.Context) context.Context {
	return context.WithValue(ctx, blockingKey{}, true)
}

// CanBlock reports whether ctx was marked by WithBlocking.
func CanBlock(ctx context.Context) bool {
	v, _ := ctx.Value(blockingKey{}).(bool)
	return v
}

// ErrBlockingNotAllowed is returned when blocking work is started on an
// unmarked context.
var ErrBlockingNotAllowed = model.NewError(model.ErrCodeBlockingNotAllowed,
	"snapshot refresh requires a context marked with delta.WithBlocking")

// StreamOfSnapshots emits one SnapshotHolder per trigger. Each trigger
// pulls a fresh snapshot with fetch and diffs it against the previous
// one, starting from start. Triggers are handled one at a time, and each
// trigger's StartActual is set from clk when it is taken, so time spent
// waiting behind an earlier scan is not counted. A nil clk is the wall
// clock.
//
// Both channels close when triggers closes, ctx ends, or a fetch or diff
// fails; the failure is sent on the error channel first.
func StreamOfSnapshots[T Versioned](ctx context.Context, start []T, triggers <-chan model.ScanRequest, fetch FetchFunc[T], clk clock.Clock) (<-chan SnapshotHolder[T], <-chan error) {
	if clk == nil {
		clk = clock.New()
	}
	out := make(chan SnapshotHolder[T])
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		if !CanBlock(ctx) {
			errc <- ErrBlockingNotAllowed
			return
		}
		if err := CheckOrder(start); err != nil {
			errc <- err
			return
		}

		current := start
		for {
			var trigger model.ScanRequest
			select {
			case <-ctx.Done():
				return
			case req, ok := <-triggers:
				if !ok {
					return
				}
				trigger = req
				trigger.StartActual = clk.Now().UTC()
			}

			fresh, err := fetch(ctx)
			if err != nil {
				errc <- err
				return
			}
			changes, err := Diff(current, fresh)
			if err != nil {
				errc <- err
				return
			}
			current = fresh

			select {
			case <-ctx.Done():
				return
			case out <- SnapshotHolder[T]{Items: fresh, Changes: changes, Trigger: trigger}:
			}
		}
	}()

	return out, errc
}
