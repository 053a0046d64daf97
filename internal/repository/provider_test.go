package repository

import (
	"context"
	"errors"
	"iter"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/configstore/internal/delta"
	"github.com/roach88/configstore/internal/events"
	"github.com/roach88/configstore/internal/itemstore/memory"
	"github.com/roach88/configstore/internal/model"
	"github.com/roach88/configstore/internal/polling"
)

const (
	sparseActive    = `{"Status":"ACTIVE","CompileVersion":2,"Type":"DECISION_POLICY"}`
	sparseAvailable = `{"Status":"AVAILABLE"}`
)

// fixture is a small tree with two policy patches, two access patches and
// one routing integration.
func fixture() map[string]string {
	return map[string]string{
		"root/ns/team/policy_a/1.0/policy-metadata.json":              sparseAvailable,
		"root/ns/team/policy_a/1.0/process/main.xml":                  "<process v0/>",
		"root/ns/team/policy_a/1.0/config/defaults.json":              "{}",
		"root/ns/team/policy_a/1.0/process/notes.txt":                 "not an item type",
		"root/ns/team/policy_a/1.0/1/policy-metadata.json":            sparseActive,
		"root/ns/team/policy_a/1.0/1/process/main.xml":                "<process v1/>",
		"root/ns/team/policy_a/1/access-control/1/policy-access.json": `{"allow":["a"]}`,
		"root/ns/team/policy_a/1/access-control/2/policy-access.json": `{"allow":["a","b"]}`,
		"root/lib/routes/http/out.xml":                                "<route/>",
		"root/unrelated/readme.md":                                    "ignored",
	}
}

func ids(infos []*model.EntityInfo) []string {
	out := make([]string, len(infos))
	for i, info := range infos {
		out[i] = info.ID()
	}
	return out
}

func TestProvider_Entities(t *testing.T) {
	p := NewProvider(memory.New(fixture()))

	infos, err := p.Entities(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{
		"lib/routes/http/out.xml",
		"ns/team/policy_a/1.0",
		"ns/team/policy_a/1/access-control",
	}, ids(infos))

	pip, policy, access := infos[0], infos[1], infos[2]
	assert.Equal(t, model.EntityPip, pip.Type())
	assert.Nil(t, pip.PriorVersion())

	assert.Equal(t, model.EntityPolicy, policy.Type())
	assert.Equal(t, 1, policy.PatchVersion())
	require.NotNil(t, policy.PriorVersion())
	assert.Equal(t, 0, policy.PriorVersion().PatchVersion())
	assert.Nil(t, policy.PriorVersion().PriorVersion())
	assert.Equal(t, []string{"root/ns/team/policy_a/1.0/process/notes.txt"}, policy.PriorVersion().FilteredItemNames())
	assert.Len(t, policy.PriorVersion().Items(), 3)

	assert.Equal(t, model.EntityAccess, access.Type())
	assert.Equal(t, 2, access.PatchVersion())
	assert.Len(t, access.History(), 2)
}

func TestProvider_Entities_TypeFilter(t *testing.T) {
	p := NewProvider(memory.New(fixture()))

	infos, err := p.Entities(context.Background(), model.EntityAccess)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, model.EntityAccess, infos[0].Type())

	// Without the policy factory, policy keys match nothing.
	infos, err = p.Entities(context.Background(), model.EntityPip)
	require.NoError(t, err)
	assert.Equal(t, []string{"lib/routes/http/out.xml"}, ids(infos))
}

func TestProvider_Entities_NumericPatchOrder(t *testing.T) {
	// "10" sorts before "2" as text but must chain after it.
	store := memory.New(map[string]string{
		"ns/t/p/3/access-control/2/policy-access.json":  "two",
		"ns/t/p/3/access-control/10/policy-access.json": "ten",
		"ns/t/p/3/access-control/1/policy-access.json":  "one",
	})

	infos, err := NewProvider(store).Entities(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 1)

	var patches []int
	for _, v := range infos[0].History() {
		patches = append(patches, v.PatchVersion())
	}
	assert.Equal(t, []int{1, 2, 10}, patches)
}

func TestProvider_Entities_DuplicatePatch(t *testing.T) {
	store := memory.New(map[string]string{
		"a/ns/t/p/1.0/process/x.xml": "a",
		"b/ns/t/p/1.0/process/x.xml": "b",
	})

	_, err := NewProvider(store).Entities(context.Background())
	require.Error(t, err)
	assert.Equal(t, model.ErrCodeVersionChain, model.CodeOf(err))
}

// listed yields refs in the given order, sorted or not.
type listed []model.ItemRef

func (l listed) StoredItems(ctx context.Context) iter.Seq2[model.ItemRef, error] {
	return func(yield func(model.ItemRef, error) bool) {
		for _, ref := range l {
			if !yield(ref, nil) {
				return
			}
		}
	}
}

func (l listed) Item(ctx context.Context, ref model.ItemRef) (model.Item, error) {
	return model.Item{ItemRef: ref}, nil
}

func (l listed) SingleItemRef(ctx context.Context, key string) (model.ItemRef, bool, error) {
	return model.ItemRef{}, false, nil
}

func TestProvider_Entities_OrderingViolation(t *testing.T) {
	tests := []struct {
		name string
		refs listed
	}{
		{"descending", listed{{Name: "ns/t/p/1.0/process/b.xml", Tag: "1"}, {Name: "ns/t/p/1.0/process/a.xml", Tag: "1"}}},
		{"repeated", listed{{Name: "ns/t/p/1.0/process/a.xml", Tag: "1"}, {Name: "ns/t/p/1.0/process/a.xml", Tag: "2"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProvider(tt.refs).Entities(context.Background())
			require.Error(t, err)
			assert.Equal(t, model.ErrCodeOrderingViolation, model.CodeOf(err))
			assert.True(t, model.IsContractViolation(err))
		})
	}
}

func TestProvider_Entities_StoreError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewProvider(memory.New(fixture())).Entities(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProvider_Snapshots_NoRequester(t *testing.T) {
	p := NewProvider(memory.New(fixture()))

	out, errc := p.Snapshots(context.Background(), nil)
	_, ok := <-out
	assert.False(t, ok)
	err := <-errc
	assert.Equal(t, model.ErrCodeNoScanConfiguration, model.CodeOf(err))
}

func receiveBatch(t *testing.T, ch <-chan []model.EntityDelta) []model.EntityDelta {
	t.Helper()
	select {
	case batch, ok := <-ch:
		require.True(t, ok, "batch stream closed")
		return batch
	case <-time.After(5 * time.Second):
		t.Fatal("no batch received")
	}
	return nil
}

func TestProvider_UpdatesBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mock := clock.NewMock()
	store := memory.New(fixture())
	manual := polling.NewManual(mock, model.ScanManual)
	rec := &events.Recorder{}
	p := NewProvider(store, WithScanRequester(manual), WithListener(rec), WithClock(mock))

	start, err := p.Entities(ctx)
	require.NoError(t, err)

	batches, errc := p.UpdatesBatch(ctx, start)

	// Nothing changed: the scan still reports an empty batch.
	require.NoError(t, manual.Trigger(ctx))
	assert.Empty(t, receiveBatch(t, batches))

	store.Put("root/ns/team/policy_a/1.0/1/process/main.xml", "<process v1 edited/>")
	store.Put("root/lib/routes/grpc/in.xml", "<route/>")
	store.Delete("root/ns/team/policy_a/1/access-control/1/policy-access.json")
	store.Delete("root/ns/team/policy_a/1/access-control/2/policy-access.json")
	require.NoError(t, manual.Trigger(ctx))

	batch := receiveBatch(t, batches)
	got := make(map[string]model.ChangeType, len(batch))
	for _, d := range batch {
		got[d.Entity.ID()] = d.Type
	}
	assert.Equal(t, map[string]model.ChangeType{
		"lib/routes/grpc/in.xml":            model.ChangeAdd,
		"ns/team/policy_a/1.0":              model.ChangeUpdate,
		"ns/team/policy_a/1/access-control": model.ChangeDelete,
	}, got)

	completed := rec.Completed()
	require.Len(t, completed, 2)
	assert.Equal(t, model.ScanManual, completed[1].Request.Type)
	assert.Equal(t, 3, completed[1].Entities)
	assert.Equal(t, 1, completed[1].Changes[model.ChangeAdd])
	assert.Equal(t, 1, completed[1].Changes[model.ChangeUpdate])
	assert.Equal(t, 1, completed[1].Changes[model.ChangeDelete])

	cancel()
	for range batches {
	}
	for err := range errc {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestProvider_Updates_ScanFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := memory.New(fixture())
	manual := polling.NewManual(clock.NewMock(), model.ScanManual)
	p := NewProvider(store, WithScanRequester(manual))

	start, err := p.Entities(ctx)
	require.NoError(t, err)

	updates, errc := p.Updates(ctx, start)
	store.Put("z/ns/team/policy_a/1.0/1/process/main.xml", "same id and patch from another root")
	require.NoError(t, manual.Trigger(ctx))

	for range updates {
	}
	err = <-errc
	require.Error(t, err)
	assert.Equal(t, model.ErrCodeVersionChain, model.CodeOf(err))
}

type fakeRecorder struct {
	mu    sync.Mutex
	scans []int
	err   error
}

func (r *fakeRecorder) RecordSnapshot(_ context.Context, h delta.SnapshotHolder[*model.EntityInfo], _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scans = append(r.scans, len(h.Items))
	return r.err
}

func (r *fakeRecorder) recorded() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.scans)
}

func TestProvider_Snapshots_Recorder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := memory.New(fixture())
	manual := polling.NewManual(clock.NewMock(), model.ScanManual)
	rec := &fakeRecorder{err: errors.New("disk full")}
	p := NewProvider(store, WithScanRequester(manual), WithRecorder(rec))

	holders, _ := p.Snapshots(ctx, nil)

	// A failing recorder is logged; the stream keeps going.
	for range 2 {
		require.NoError(t, manual.Trigger(ctx))
		select {
		case h := <-holders:
			assert.Len(t, h.Items, 3)
		case <-time.After(5 * time.Second):
			t.Fatal("no snapshot received")
		}
	}
	assert.Equal(t, []int{3, 3}, rec.recorded())
}

type emptySource struct{}

func (emptySource) Configurations(ctx context.Context) <-chan model.PollingConfiguration {
	ch := make(chan model.PollingConfiguration)
	close(ch)
	return ch
}

func TestProvider_UpdatesBatch_RequesterFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	requester := polling.NewSimpleScanRequester(emptySource{}, nil)
	p := NewProvider(memory.New(fixture()), WithScanRequester(requester))

	batches, errc := p.UpdatesBatch(ctx, nil)
	for range batches {
	}
	err := <-errc
	require.Error(t, err)
	assert.Equal(t, model.ErrCodeNoScanConfiguration, model.CodeOf(err))
}

type queuedRequester chan model.ScanRequest

func (q queuedRequester) ScanRequests(ctx context.Context) (<-chan model.ScanRequest, error) {
	return q, nil
}

func TestProvider_Snapshots_DurationExcludesQueueing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	emitted := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	mock := clock.NewMock()
	mock.Set(emitted.Add(time.Hour))

	// The request waited an hour before the pipeline took it.
	q := make(queuedRequester, 1)
	q <- model.NewScanRequest(emitted, emitted, model.ScanPoll)
	rec := &events.Recorder{}
	p := NewProvider(memory.New(fixture()), WithScanRequester(q), WithListener(rec), WithClock(mock))

	holders, _ := p.Snapshots(ctx, nil)
	select {
	case h := <-holders:
		assert.Equal(t, emitted, h.Trigger.StartScheduled)
		assert.Equal(t, emitted.Add(time.Hour), h.Trigger.StartActual)
	case <-time.After(5 * time.Second):
		t.Fatal("no snapshot received")
	}

	completed := rec.Completed()
	require.Len(t, completed, 1)
	assert.Zero(t, completed[0].Duration())
}
