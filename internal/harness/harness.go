package harness

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/roach88/configstore/internal/delta"
	"github.com/roach88/configstore/internal/itemstore/memory"
	"github.com/roach88/configstore/internal/model"
	"github.com/roach88/configstore/internal/polling"
	"github.com/roach88/configstore/internal/repository"
)

// DefaultTimeout bounds a whole scenario run.
const DefaultTimeout = 30 * time.Second

// epoch is the mock clock's start, so scan timestamps never vary.
var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Harness runs scenarios.
type Harness struct {
	logger  *zap.SugaredLogger
	timeout time.Duration
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger scans report to.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(h *Harness) { h.logger = logger }
}

// WithTimeout bounds each run.
func WithTimeout(d time.Duration) Option {
	return func(h *Harness) { h.timeout = d }
}

// New creates a Harness.
func New(opts ...Option) *Harness {
	h := &Harness{logger: zap.NewNop().Sugar(), timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes scenario with default options.
func Run(scenario *Scenario) (*Result, error) {
	return New().Run(context.Background(), scenario)
}

// Run executes scenario. The returned error reports a harness failure,
// such as a scan that never completed; failed expectations are recorded
// in the result.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	mock := clock.NewMock()
	mock.Set(epoch)
	store := memory.New(nil)
	manual := polling.NewManual(mock, model.ScanManual)
	provider := repository.NewProvider(store,
		repository.WithScanRequester(manual),
		repository.WithClock(mock),
		repository.WithLogger(h.logger),
	)

	holders, errc := provider.Snapshots(ctx, nil, scenario.Types...)
	result := NewResult()

	for i, step := range scenario.Scans {
		n := i + 1
		applyStep(store, step)

		if err := manual.Trigger(ctx); err != nil {
			return nil, fmt.Errorf("scan %d: trigger: %w", n, err)
		}

		h.logger.Debugw("scan triggered", "scenario", scenario.Name, "scan", n, "name", step.Name)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("scan %d: %w", n, ctx.Err())
		case holder, ok := <-holders:
			if !ok {
				err := <-errc
				recordFailure(result, n, step, err)
				return result, nil
			}
			recordScan(result, n, step, holder)
		}

		if step.ExpectError != "" {
			result.AddError("scan %d: expected error %s, scan succeeded", n, step.ExpectError)
			return result, nil
		}
	}
	return result, nil
}

func applyStep(store *memory.Store, step ScanStep) {
	if step.Items != nil {
		store.Replace(step.Items)
	}
	for key, content := range step.Put {
		store.Put(key, content)
	}
	for _, key := range step.Delete {
		store.Delete(key)
	}
}

func recordFailure(result *Result, n int, step ScanStep, err error) {
	code := model.CodeOf(err)
	result.Trace = append(result.Trace, TraceEvent{Scan: n, Code: code})
	if step.ExpectError == "" {
		result.AddError("scan %d: unexpected error: %v", n, err)
		return
	}
	if code != step.ExpectError {
		result.AddError("scan %d: expected error %s, got %v", n, step.ExpectError, err)
	}
}

func recordScan(result *Result, n int, step ScanStep, holder delta.SnapshotHolder[*model.EntityInfo]) {
	result.Trace = append(result.Trace, TraceEvent{Scan: n, Entities: len(holder.Items), Changes: len(holder.Changes)})
	for _, d := range holder.Changes {
		result.Trace = append(result.Trace, TraceEvent{
			Scan:    n,
			Change:  d.Type,
			Type:    d.Entity.Type(),
			ID:      d.Entity.ID(),
			Patch:   d.Entity.PatchVersion(),
			Version: d.Entity.Version(),
		})
	}

	if !matches(step.Expect, holder.Changes) {
		result.AddError("scan %d: expected changes %v, got %v", n, step.Expect, describe(holder.Changes))
	}
	if step.ExpectEntities != nil {
		ids := make([]string, len(holder.Items))
		for i, info := range holder.Items {
			ids[i] = info.ID()
		}
		if !slices.Equal(ids, step.ExpectEntities) {
			result.AddError("scan %d: expected entities %v, got %v", n, step.ExpectEntities, ids)
		}
	}
}

func matches(expect []ExpectedDelta, got []model.EntityDelta) bool {
	if len(expect) != len(got) {
		return false
	}
	for i, e := range expect {
		g := got[i]
		if e.Change != g.Type || e.ID != g.Entity.ID() {
			return false
		}
		if e.Patch != nil && *e.Patch != g.Entity.PatchVersion() {
			return false
		}
	}
	return true
}

func describe(changes []model.EntityDelta) []string {
	out := make([]string, len(changes))
	for i, d := range changes {
		out[i] = fmt.Sprintf("%s %s patch=%d", d.Type, d.Entity.ID(), d.Entity.PatchVersion())
	}
	return out
}
