package polling

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/roach88/configstore/internal/events"
	"github.com/roach88/configstore/internal/model"
)

// ScanRequester produces the triggers that drive scans.
type ScanRequester interface {
	ScanRequests(ctx context.Context) (<-chan model.ScanRequest, error)
}

// Failing is implemented by requesters whose stream can end on an error
// instead of on cancellation. Err reports that error once the channel has
// closed, and nil after a normal end.
type Failing interface {
	Err() error
}

// errOf returns the terminal error of r, if it reports one.
func errOf(r ScanRequester) error {
	if f, ok := r.(Failing); ok {
		return f.Err()
	}
	return nil
}

// ConfigurationSource streams polling configurations. The channel closes
// when the source has nothing more to offer.
type ConfigurationSource interface {
	Configurations(ctx context.Context) <-chan model.PollingConfiguration
}

// Option configures a SimpleScanRequester.
type Option func(*SimpleScanRequester)

// WithClock sets the clock used for scheduling. Defaults to the wall clock.
func WithClock(clk clock.Clock) Option {
	return func(r *SimpleScanRequester) { r.clock = clk }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(r *SimpleScanRequester) { r.logger = logger }
}

// WithListener sets the listener notified of applied and rejected
// configurations.
func WithListener(l events.Listener) Option {
	return func(r *SimpleScanRequester) { r.listener = l }
}

// SimpleScanRequester emits POLL scan requests on the grid of the latest
// polling configuration.
//
// Configurations come from a dynamic source. If that source closes without
// emitting, the static configuration is used. A new configuration cancels
// the grid of the previous one. A configuration that fails validation is
// reported to the listener and pauses polling until a valid one arrives.
type SimpleScanRequester struct {
	dynamic  ConfigurationSource
	static   *model.PollingConfiguration
	listener events.Listener
	clock    clock.Clock
	logger   *zap.SugaredLogger

	mu  sync.Mutex
	err error
}

// NewSimpleScanRequester creates a requester. Either dynamic or static may
// be nil, but not both.
func NewSimpleScanRequester(dynamic ConfigurationSource, static *model.PollingConfiguration, opts ...Option) *SimpleScanRequester {
	r := &SimpleScanRequester{
		dynamic:  dynamic,
		static:   static,
		listener: events.Nop{},
		clock:    clock.New(),
		logger:   zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ScanRequests starts the requester. The channel closes when ctx ends, or
// when the dynamic source closes empty and there is no static fallback; Err
// then reports ErrCodeNoScanConfiguration.
func (r *SimpleScanRequester) ScanRequests(ctx context.Context) (<-chan model.ScanRequest, error) {
	if r.dynamic == nil && r.static == nil {
		return nil, model.NewError(model.ErrCodeNoScanConfiguration, "scan configuration not found")
	}
	r.setErr(nil)

	var configs <-chan model.PollingConfiguration
	if r.dynamic != nil {
		configs = r.dynamic.Configurations(ctx)
	}

	out := make(chan model.ScanRequest)
	go r.run(ctx, configs, out)
	return out, nil
}

func (r *SimpleScanRequester) run(ctx context.Context, configs <-chan model.PollingConfiguration, out chan<- model.ScanRequest) {
	defer close(out)

	var (
		ticks      <-chan time.Time
		stopTicks  = func() {}
		configured bool
	)
	defer func() { stopTicks() }()

	apply := func(cfg model.PollingConfiguration) {
		stopTicks()
		ticks = nil

		tickCtx, cancel := context.WithCancel(ctx)
		stopTicks = cancel

		r.logger.Infow("polling configuration", "configuration", cfg.String())
		ch, err := PollEveryConfiguration(tickCtx, &cfg, r.clock)
		if err != nil {
			r.listener.PollingConfigurationErrorOccurred(events.PollingConfigurationErrorOccurred{Configuration: cfg, Err: err})
			return
		}
		ticks = ch
		r.listener.PollingConfigurationApplied(events.PollingConfigurationApplied{Configuration: cfg})
	}

	if configs == nil {
		apply(*r.static)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case cfg, ok := <-configs:
			if !ok {
				configs = nil
				if configured {
					continue
				}
				if r.static == nil {
					err := model.NewError(model.ErrCodeNoScanConfiguration, "scan configuration not found")
					r.logger.Errorw("polling stopped", "error", err)
					r.setErr(err)
					return
				}
				configured = true
				apply(*r.static)
				continue
			}
			configured = true
			apply(cfg)

		case scheduled, ok := <-ticks:
			if !ok {
				ticks = nil
				continue
			}
			req := model.NewScanRequest(scheduled, r.clock.Now().UTC(), model.ScanPoll)
			select {
			case <-ctx.Done():
				return
			case out <- req:
			}
		}
	}
}

// Err reports why the latest request stream ended.
func (r *SimpleScanRequester) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *SimpleScanRequester) setErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// StaticSource emits one configuration and closes.
type StaticSource model.PollingConfiguration

func (s StaticSource) Configurations(ctx context.Context) <-chan model.PollingConfiguration {
	ch := make(chan model.PollingConfiguration, 1)
	ch <- model.PollingConfiguration(s)
	close(ch)
	return ch
}
