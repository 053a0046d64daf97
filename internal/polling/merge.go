package polling

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/roach88/configstore/internal/model"
)

// Merged combines several requesters into one stream.
type Merged []ScanRequester

// Merge returns a requester that emits the requests of every requester.
func Merge(requesters ...ScanRequester) Merged {
	return Merged(requesters)
}

// ScanRequests starts every requester. The stream closes when all of them
// have closed, or as soon as one ends on an error, which Err then reports.
// A requester failing to start fails the whole merge.
func (m Merged) ScanRequests(ctx context.Context) (<-chan model.ScanRequest, error) {
	ctx, cancel := context.WithCancel(ctx)
	sources := make([]<-chan model.ScanRequest, 0, len(m))
	for _, r := range m {
		ch, err := r.ScanRequests(ctx)
		if err != nil {
			cancel()
			return nil, err
		}
		sources = append(sources, ch)
	}

	out := make(chan model.ScanRequest)
	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				var req model.ScanRequest
				select {
				case <-ctx.Done():
					return
				case r, ok := <-src:
					if !ok {
						if errOf(m[i]) != nil {
							cancel()
						}
						return
					}
					req = r
				}
				select {
				case <-ctx.Done():
					return
				case out <- req:
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		cancel()
		close(out)
	}()
	return out, nil
}

// Err returns the first error a merged requester ended on.
func (m Merged) Err() error {
	for _, r := range m {
		if err := errOf(r); err != nil {
			return err
		}
	}
	return nil
}

// Manual emits a request each time Trigger is called.
type Manual struct {
	clock clock.Clock
	typ   model.ScanType
	ch    chan model.ScanRequest
}

// NewManual creates a manual requester emitting requests of type typ.
func NewManual(clk clock.Clock, typ model.ScanType) *Manual {
	if clk == nil {
		clk = clock.New()
	}
	return &Manual{clock: clk, typ: typ, ch: make(chan model.ScanRequest)}
}

// Trigger asks for a scan now. It blocks until the request is taken or ctx
// ends.
func (m *Manual) Trigger(ctx context.Context) error {
	now := m.clock.Now().UTC()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case m.ch <- model.NewScanRequest(now, now, m.typ):
		return nil
	}
}

func (m *Manual) ScanRequests(ctx context.Context) (<-chan model.ScanRequest, error) {
	return m.ch, nil
}

// Debounce forwards a value from in only after d has passed without a
// newer value. A newer value replaces the pending one. A value pending
// when in closes is still delivered.
func Debounce[T any](ctx context.Context, in <-chan T, d time.Duration, clk clock.Clock) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		var (
			pending T
			timer   *clock.Timer
			fire    <-chan time.Time
		)
		stop := func() {
			if timer != nil {
				timer.Stop()
			}
		}
		defer stop()

		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-in:
				if !ok {
					if fire == nil {
						return
					}
					in = nil
					continue
				}
				stop()
				pending = v
				timer = clk.Timer(d)
				fire = timer.C
			case <-fire:
				fire = nil
				select {
				case <-ctx.Done():
					return
				case out <- pending:
				}
				if in == nil {
					return
				}
			}
		}
	}()
	return out
}
