package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/configstore/internal/model"
	"github.com/roach88/configstore/internal/testutil"
)

func collect(t *testing.T, s *Store) []model.ItemRef {
	t.Helper()
	var refs []model.ItemRef
	for ref, err := range s.StoredItems(context.Background()) {
		require.NoError(t, err)
		refs = append(refs, ref)
	}
	return refs
}

func TestNew_RejectsFile(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteTree(t, dir, map[string]string{"file": "x"})

	_, err := New(filepath.Join(dir, "file"))
	assert.Error(t, err)

	_, err = New(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestStore_StoredItems(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteTree(t, dir, map[string]string{
		"ns/team/p/1.0/process/main.xml": "<a/>",
		"ns/team/p/1.0/config/x.json":    "{}",
		"lib/routes/out.xml":             "<r/>",
		".git/HEAD":                      "ref",
		"ns/.hidden":                     "skip",
	})
	s, err := New(dir)
	require.NoError(t, err)

	refs := collect(t, s)
	var names []string
	for _, r := range refs {
		names = append(names, r.Name)
		assert.NotEmpty(t, r.Tag)
	}
	assert.Equal(t, []string{
		"lib/routes/out.xml",
		"ns/team/p/1.0/config/x.json",
		"ns/team/p/1.0/process/main.xml",
	}, names)
}

func TestStore_TagsFollowContent(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteTree(t, dir, map[string]string{"a.xml": "one", "b.xml": "one"})
	s, err := New(dir)
	require.NoError(t, err)

	refs := collect(t, s)
	require.Len(t, refs, 2)
	assert.Equal(t, refs[0].Tag, refs[1].Tag)

	testutil.WriteTree(t, dir, map[string]string{"b.xml": "two"})
	refs = collect(t, s)
	assert.NotEqual(t, refs[0].Tag, refs[1].Tag)
}

func TestStore_Item(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteTree(t, dir, map[string]string{"ns/a.xml": "<a/>"})
	s, err := New(dir)
	require.NoError(t, err)
	ctx := context.Background()

	ref, ok, err := s.SingleItemRef(ctx, "ns/a.xml")
	require.NoError(t, err)
	require.True(t, ok)

	item, err := s.Item(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "<a/>", item.Content)

	testutil.WriteTree(t, dir, map[string]string{"ns/a.xml": "<b/>"})
	_, err = s.Item(ctx, ref)
	assert.True(t, model.IsTagMismatch(err))

	require.NoError(t, os.Remove(filepath.Join(dir, "ns", "a.xml")))
	_, err = s.Item(ctx, ref)
	assert.True(t, model.IsTagMismatch(err))

	_, ok, err = s.SingleItemRef(ctx, "ns/a.xml")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_DecomposedFileName(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteTree(t, dir, map[string]string{"ns/routes/cafe\u0301.xml": "<r/>"})
	s, err := New(dir)
	require.NoError(t, err)
	ctx := context.Background()

	refs := collect(t, s)
	require.Len(t, refs, 1)
	assert.Equal(t, "ns/routes/caf\u00e9.xml", refs[0].Name)

	item, err := s.Item(ctx, refs[0])
	require.NoError(t, err)
	assert.Equal(t, "<r/>", item.Content)

	ref, ok, err := s.SingleItemRef(ctx, "ns/routes/caf\u00e9.xml")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, refs[0], ref)
}

func TestChangeRequester_EmitsAfterQuietPeriod(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteTree(t, dir, map[string]string{"ns/a.xml": "<a/>"})
	s, err := New(dir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	requests, err := s.Watch(20*time.Millisecond, clock.New()).ScanRequests(ctx)
	require.NoError(t, err)

	testutil.WriteTree(t, dir, map[string]string{"ns/deeper/b.xml": "<b/>"})

	select {
	case req := <-requests:
		assert.Equal(t, model.ScanManual, req.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("no scan request after change")
	}

	cancel()
	for range requests {
	}
}
