package repository

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/roach88/configstore/internal/delta"
	"github.com/roach88/configstore/internal/events"
	"github.com/roach88/configstore/internal/model"
)

const defaultFetchConcurrency = 8

// Provider scans an ItemStore and reports entities and their changes.
type Provider struct {
	store            ItemStore
	factories        []*EntityFactory
	requester        ScanRequester
	listener         events.Listener
	recorder         SnapshotRecorder
	env              model.Environment
	clock            clock.Clock
	logger           *zap.SugaredLogger
	fetchConcurrency int
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithFactories replaces the default rule table.
func WithFactories(factories ...*EntityFactory) ProviderOption {
	return func(p *Provider) { p.factories = factories }
}

// WithScanRequester sets the trigger source for update streams.
func WithScanRequester(r ScanRequester) ProviderOption {
	return func(p *Provider) { p.requester = r }
}

// WithListener sets the listener notified after every scan cycle.
func WithListener(l events.Listener) ProviderOption {
	return func(p *Provider) { p.listener = l }
}

// SnapshotRecorder persists every completed scan.
type SnapshotRecorder interface {
	RecordSnapshot(ctx context.Context, h delta.SnapshotHolder[*model.EntityInfo], end time.Time) error
}

// WithRecorder sets a recorder called after every scan cycle. A recording
// failure is logged and does not end the stream.
func WithRecorder(r SnapshotRecorder) ProviderOption {
	return func(p *Provider) { p.recorder = r }
}

// WithEnvironment sets the environment policy statuses are resolved for.
func WithEnvironment(env model.Environment) ProviderOption {
	return func(p *Provider) { p.env = env }
}

// WithClock sets the clock used to stamp scan completion.
func WithClock(clk clock.Clock) ProviderOption {
	return func(p *Provider) { p.clock = clk }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.SugaredLogger) ProviderOption {
	return func(p *Provider) { p.logger = logger }
}

// WithFetchConcurrency bounds parallel item fetches in Entity.
func WithFetchConcurrency(n int) ProviderOption {
	return func(p *Provider) {
		if n > 0 {
			p.fetchConcurrency = n
		}
	}
}

// NewProvider creates a Provider over store.
func NewProvider(store ItemStore, opts ...ProviderOption) *Provider {
	p := &Provider{
		store:            store,
		factories:        DefaultFactories(),
		listener:         events.Nop{},
		env:              model.EnvProd,
		clock:            clock.New(),
		logger:           zap.NewNop().Sugar(),
		fetchConcurrency: defaultFetchConcurrency,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// factoriesFor returns the factories for types, in the order of types.
// No types selects every factory.
func (p *Provider) factoriesFor(types []model.EntityType) []*EntityFactory {
	if len(types) == 0 {
		return p.factories
	}
	var out []*EntityFactory
	for _, t := range types {
		for _, f := range p.factories {
			if f.Type() == t {
				out = append(out, f)
			}
		}
	}
	return out
}

// Entities runs one full scan and returns the latest version of every
// entity of the given types, ordered by IDPrefix()+ID(). Earlier versions
// are reachable through PriorVersion.
func (p *Provider) Entities(ctx context.Context, types ...model.EntityType) ([]*model.EntityInfo, error) {
	factories := p.factoriesFor(types)

	var (
		infos   []*model.EntityInfo
		current *EntityBuilder
		prevKey string
		seen    bool
	)
	flush := func() error {
		if current == nil {
			return nil
		}
		info, err := current.Build()
		current = nil
		if err != nil {
			return err
		}
		if filtered := info.FilteredItemNames(); len(filtered) > 0 {
			p.logger.Debugw("items filtered from entity", "id", info.ID(), "items", filtered)
		}
		infos = append(infos, info)
		return nil
	}

	for ref, err := range p.store.StoredItems(ctx) {
		if err != nil {
			return nil, err
		}
		if seen && ref.Name <= prevKey {
			return nil, model.NewError(model.ErrCodeOrderingViolation,
				"item store listed %q after %q", ref.Name, prevKey)
		}
		prevKey, seen = ref.Name, true

		if current != nil && current.AddItem(ref) {
			continue
		}
		if err := flush(); err != nil {
			return nil, err
		}
		for _, f := range factories {
			if b, ok := f.NewBuilder(ref); ok {
				current = b
				break
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}

	return chainVersions(infos)
}

// chainVersions groups infos by id, links each group in ascending patch
// order, and returns the latest version of every id sorted by composite key.
func chainVersions(infos []*model.EntityInfo) ([]*model.EntityInfo, error) {
	groups := make(map[string][]*model.EntityInfo)
	var order []string
	for _, info := range infos {
		if _, ok := groups[info.ID()]; !ok {
			order = append(order, info.ID())
		}
		groups[info.ID()] = append(groups[info.ID()], info)
	}

	latest := make([]*model.EntityInfo, 0, len(order))
	for _, id := range order {
		versions := groups[id]
		slices.SortStableFunc(versions, func(a, b *model.EntityInfo) int {
			return cmp.Compare(a.PatchVersion(), b.PatchVersion())
		})
		chain := model.NewVersionChain(id)
		for _, v := range versions {
			if err := chain.Append(v); err != nil {
				return nil, err
			}
		}
		latest = append(latest, chain.Latest())
	}

	slices.SortStableFunc(latest, func(a, b *model.EntityInfo) int {
		return cmp.Compare(a.SortKey(), b.SortKey())
	})
	return latest, nil
}

func filterTypes(infos []*model.EntityInfo, types []model.EntityType) []*model.EntityInfo {
	if len(types) == 0 {
		return infos
	}
	var out []*model.EntityInfo
	for _, info := range infos {
		if slices.Contains(types, info.Type()) {
			out = append(out, info)
		}
	}
	return out
}

// Snapshots rescans the store on every trigger from the configured
// ScanRequester and emits the fresh snapshot with its changes. The first
// snapshot is diffed against start, which must be sorted by composite key.
//
// A scan failure sends the error and ends both channels, as does a
// requester whose stream ends on an error.
func (p *Provider) Snapshots(ctx context.Context, start []*model.EntityInfo, types ...model.EntityType) (<-chan delta.SnapshotHolder[*model.EntityInfo], <-chan error) {
	out := make(chan delta.SnapshotHolder[*model.EntityInfo])
	errc := make(chan error, 1)

	fail := func(err error) (<-chan delta.SnapshotHolder[*model.EntityInfo], <-chan error) {
		errc <- err
		close(errc)
		close(out)
		return out, errc
	}
	if p.requester == nil {
		return fail(model.NewError(model.ErrCodeNoScanConfiguration, "no scan requester configured"))
	}
	triggers, err := p.requester.ScanRequests(ctx)
	if err != nil {
		return fail(err)
	}

	fetch := func(ctx context.Context) ([]*model.EntityInfo, error) {
		return p.Entities(ctx, types...)
	}
	holders, herr := delta.StreamOfSnapshots(delta.WithBlocking(ctx), filterTypes(start, types), triggers, fetch, p.clock)

	go func() {
		defer close(out)
		defer close(errc)
		for h := range holders {
			end := p.clock.Now().UTC()
			if p.recorder != nil {
				if err := p.recorder.RecordSnapshot(ctx, h, end); err != nil {
					p.logger.Warnw("could not record scan", "scan", h.Trigger.ID, "error", err)
				}
			}
			p.listener.ScanCompleted(events.ScanCompleted{
				Request:   h.Trigger,
				EndActual: end,
				Entities:  len(h.Items),
				Changes:   countChanges(h.Changes),
			})
			select {
			case <-ctx.Done():
				return
			case out <- h:
			}
		}
		if err := <-herr; err != nil {
			errc <- err
			return
		}
		if f, ok := p.requester.(interface{ Err() error }); ok && ctx.Err() == nil {
			if err := f.Err(); err != nil {
				errc <- err
			}
		}
	}()
	return out, errc
}

func countChanges(changes []model.EntityDelta) map[model.ChangeType]int {
	counts := make(map[model.ChangeType]int, 3)
	for _, c := range changes {
		counts[c.Type]++
	}
	return counts
}

// UpdatesBatch emits one (possibly empty) batch of deltas per scan.
func (p *Provider) UpdatesBatch(ctx context.Context, start []*model.EntityInfo, types ...model.EntityType) (<-chan []model.EntityDelta, <-chan error) {
	holders, herr := p.Snapshots(ctx, start, types...)
	out := make(chan []model.EntityDelta)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)
		for h := range holders {
			select {
			case <-ctx.Done():
				return
			case out <- h.Changes:
			}
		}
		if err := <-herr; err != nil {
			errc <- err
		}
	}()
	return out, errc
}

// Updates emits the deltas of every scan one at a time.
func (p *Provider) Updates(ctx context.Context, start []*model.EntityInfo, types ...model.EntityType) (<-chan model.EntityDelta, <-chan error) {
	batches, berr := p.UpdatesBatch(ctx, start, types...)
	out := make(chan model.EntityDelta)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)
		for batch := range batches {
			for _, d := range batch {
				select {
				case <-ctx.Done():
					return
				case out <- d:
				}
			}
		}
		if err := <-berr; err != nil {
			errc <- err
		}
	}()
	return out, errc
}
