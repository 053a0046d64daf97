package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/configstore/internal/journal"
	"github.com/roach88/configstore/internal/model"
)

func recordedJournal(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := journal.Open(path)
	require.NoError(t, err)
	defer j.Close()

	v0, err := model.NewEntityInfo(model.EntityInfoSpec{
		ID:             routeID,
		LocationPrefix: "root/" + routeID,
		Type:           model.EntityPip,
		Items:          []model.ItemRef{{Name: "root/" + routeID, Tag: "a1"}},
	})
	require.NoError(t, err)
	v1, err := model.NewEntityInfo(model.EntityInfoSpec{
		ID:             routeID,
		LocationPrefix: "root/" + routeID,
		Type:           model.EntityPip,
		Items:          []model.ItemRef{{Name: "root/" + routeID, Tag: "b2"}},
	})
	require.NoError(t, err)

	at := time.Date(2024, 3, 1, 2, 0, 0, 0, time.UTC)
	ctx := context.Background()
	require.NoError(t, j.RecordScan(ctx, journal.Scan{
		Request:   model.NewScanRequest(at, at, model.ScanLoad),
		EndActual: at.Add(time.Second),
		Items:     []*model.EntityInfo{v0},
		Changes:   []model.EntityDelta{{Type: model.ChangeAdd, Entity: v0}},
	}))
	at = at.Add(5 * time.Minute)
	require.NoError(t, j.RecordScan(ctx, journal.Scan{
		Request:   model.NewScanRequest(at, at, model.ScanPoll),
		EndActual: at.Add(2 * time.Second),
		Items:     []*model.EntityInfo{v1},
		Changes:   []model.EntityDelta{{Type: model.ChangeUpdate, Entity: v1}},
	}))
	return path
}

func TestHistory_RecentScans(t *testing.T) {
	path := recordedJournal(t)

	out, err := execute(t, NewHistoryCommand(&RootOptions{Format: "text"}), "--journal", path)
	require.NoError(t, err)

	assert.Contains(t, out, "2024-03-01T02:05:02Z  POLL   1 entities  UPDATE=1  took 2s")
	assert.Contains(t, out, "2024-03-01T02:00:01Z  LOAD   1 entities  ADD=1  took 1s")
	assert.Less(t, strings.Index(out, "POLL"), strings.Index(out, "LOAD"), "newest scan first")
}

func TestHistory_Limit(t *testing.T) {
	path := recordedJournal(t)

	out, err := execute(t, NewHistoryCommand(&RootOptions{Format: "json"}), "--journal", path, "--limit", "1")
	require.NoError(t, err)

	var resp struct {
		Data []journal.ScanSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, model.ScanPoll, resp.Data[0].Type)
}

func TestHistory_Entity(t *testing.T) {
	path := recordedJournal(t)

	out, err := execute(t, NewHistoryCommand(&RootOptions{Format: "text"}), "--journal", path, routeID)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "ADD")
	assert.Contains(t, lines[1], "UPDATE")
	assert.Contains(t, lines[1], "location=root/"+routeID)
}

func TestHistory_NoJournalConfigured(t *testing.T) {
	cfg := writeConfig(t, t.TempDir(), "")

	out, err := execute(t, NewHistoryCommand(rootOpts(cfg, "text")))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E_JOURNAL]")
}

func TestHistory_FromConfig(t *testing.T) {
	path := recordedJournal(t)
	cfg := writeConfig(t, t.TempDir(), "journal:\n  path: "+path+"\n")

	out, err := execute(t, NewHistoryCommand(rootOpts(cfg, "text")), "ns/unknown")
	require.NoError(t, err)
	assert.Contains(t, out, "No recorded changes for ns/unknown.")
}
