// Package client is the entry point applications use to read entities
// from a configuration store.
//
// New picks the item store from the configuration: an S3 bucket, a local
// directory, or none at all for a disabled client. Scans run on the
// polling schedule, on local file changes, and on Refresh.
package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/roach88/configstore/internal/config"
	"github.com/roach88/configstore/internal/events"
	"github.com/roach88/configstore/internal/itemstore/local"
	"github.com/roach88/configstore/internal/itemstore/s3"
	"github.com/roach88/configstore/internal/journal"
	"github.com/roach88/configstore/internal/model"
	"github.com/roach88/configstore/internal/polling"
	"github.com/roach88/configstore/internal/repository"
)

// ErrDisabled is returned by Entity on a disabled client.
var ErrDisabled = errors.New("configstore client is disabled")

// Client reads entities and streams their changes.
type Client struct {
	provider *repository.Provider
	manual   *polling.Manual
	journal  *journal.Journal
	logger   *zap.SugaredLogger
}

type options struct {
	logger   *zap.SugaredLogger
	listener events.Listener
	clock    clock.Clock
	store    repository.ItemStore
}

// Option configures New.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(o *options) { o.logger = logger }
}

// WithListener adds a listener for polling and scan events. Events are
// always logged as well.
func WithListener(l events.Listener) Option {
	return func(o *options) { o.listener = l }
}

// WithClock sets the clock for scheduling and scan timestamps.
func WithClock(clk clock.Clock) Option {
	return func(o *options) { o.clock = clk }
}

// WithStore uses store instead of the backend named in the configuration.
func WithStore(store repository.ItemStore) Option {
	return func(o *options) { o.store = store }
}

// New builds a client for cfg.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	o := options{logger: zap.NewNop().Sugar(), clock: clock.New()}
	for _, opt := range opts {
		opt(&o)
	}

	if !cfg.Enabled || (cfg.Backend == config.BackendDisabled && o.store == nil) {
		o.logger.Infow("configstore client disabled")
		return &Client{logger: o.logger}, nil
	}

	var listener events.Listener = events.Logging{Logger: o.logger}
	if o.listener != nil {
		listener = events.Multi{listener, o.listener}
	}

	store := o.store
	var requesters polling.Merged
	if store == nil {
		switch cfg.Backend {
		case config.BackendS3:
			s, err := s3.New(s3.Config{
				Endpoint:    cfg.S3.Endpoint,
				Region:      cfg.S3.Region,
				Bucket:      cfg.S3.Bucket,
				Prefix:      cfg.S3.RootPrefix,
				AccessKey:   cfg.S3.AccessKey,
				SecretKey:   cfg.S3.SecretKey,
				Secure:      cfg.S3.Secure,
				ListRetries: cfg.S3.ListRetries,
			}, o.logger)
			if err != nil {
				return nil, err
			}
			store = s
		case config.BackendLocal:
			s, err := local.New(cfg.Local.RootDir, local.WithLogger(o.logger))
			if err != nil {
				return nil, err
			}
			store = s
			requesters = append(requesters, s.Watch(0, o.clock))
		default:
			return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
		}
	}

	if cfg.Polling.Enabled {
		r, err := pollingRequester(cfg, store, listener, o)
		if err != nil {
			return nil, err
		}
		requesters = append(requesters, r)
	}

	manual := polling.NewManual(o.clock, model.ScanManual)
	requesters = append(requesters, manual)

	popts := []repository.ProviderOption{
		repository.WithScanRequester(requesters),
		repository.WithListener(listener),
		repository.WithEnvironment(cfg.EntityEnvironment()),
		repository.WithClock(o.clock),
		repository.WithLogger(o.logger),
		repository.WithFetchConcurrency(cfg.FetchConcurrency),
	}

	c := &Client{manual: manual, logger: o.logger}
	if cfg.Journal.Path != "" {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		c.journal = j
		popts = append(popts, repository.WithRecorder(j))
	}
	c.provider = repository.NewProvider(store, popts...)
	return c, nil
}

func pollingRequester(cfg *config.Config, store repository.ItemStore, listener events.Listener, o options) (*polling.SimpleScanRequester, error) {
	var static *model.PollingConfiguration
	if cfg.Polling.Interval != "" {
		pc, err := cfg.PollingConfiguration()
		if err != nil {
			return nil, err
		}
		static = &pc
	}

	var dynamic polling.ConfigurationSource
	if cfg.Polling.ExternalPropertiesKey != "" {
		dynamic = &polling.PropertiesSource{
			Store:   store,
			Key:     cfg.Polling.ExternalPropertiesKey,
			Refresh: cfg.ExternalRefresh(),
			Clock:   o.clock,
			Logger:  o.logger,
		}
	}
	if static == nil && dynamic == nil {
		return nil, model.NewError(model.ErrCodeNoScanConfiguration, "polling is enabled but neither an interval nor a properties key is configured")
	}

	return polling.NewSimpleScanRequester(dynamic, static,
		polling.WithClock(o.clock),
		polling.WithLogger(o.logger),
		polling.WithListener(listener),
	), nil
}

// Disabled reports whether the client was configured off.
func (c *Client) Disabled() bool { return c.provider == nil }

// Journal returns the scan journal, or nil when none is configured.
func (c *Client) Journal() *journal.Journal { return c.journal }

// Close releases the journal.
func (c *Client) Close() error {
	if c.journal != nil {
		return c.journal.Close()
	}
	return nil
}

// Entity fetches the content of info.
func (c *Client) Entity(ctx context.Context, info *model.EntityInfo) (model.Entity, error) {
	if c.Disabled() {
		return nil, ErrDisabled
	}
	return c.provider.Entity(ctx, info)
}

// EntityInfos scans the store once. A disabled client returns no entities.
func (c *Client) EntityInfos(ctx context.Context, types ...model.EntityType) ([]*model.EntityInfo, error) {
	if c.Disabled() {
		return nil, nil
	}
	return c.provider.Entities(ctx, types...)
}

// EntityUpdates streams every change against start, which must be sorted
// by composite key.
func (c *Client) EntityUpdates(ctx context.Context, start []*model.EntityInfo, types ...model.EntityType) (<-chan model.EntityDelta, <-chan error) {
	if c.Disabled() {
		return idle[model.EntityDelta](ctx)
	}
	return c.provider.Updates(ctx, start, types...)
}

// EntityUpdatesBatch streams the changes of each scan as one batch.
func (c *Client) EntityUpdatesBatch(ctx context.Context, start []*model.EntityInfo, types ...model.EntityType) (<-chan []model.EntityDelta, <-chan error) {
	if c.Disabled() {
		return idle[[]model.EntityDelta](ctx)
	}
	return c.provider.UpdatesBatch(ctx, start, types...)
}

// Refresh requests a scan now. It blocks until an update stream takes the
// request or ctx ends. With several open streams only one of them scans.
// A no-op on a disabled client.
func (c *Client) Refresh(ctx context.Context) error {
	if c.Disabled() {
		return nil
	}
	return c.manual.Trigger(ctx)
}

// idle returns streams that never emit and close when ctx ends.
func idle[T any](ctx context.Context) (<-chan T, <-chan error) {
	out := make(chan T)
	errc := make(chan error)
	go func() {
		<-ctx.Done()
		close(out)
		close(errc)
	}()
	return out, errc
}
