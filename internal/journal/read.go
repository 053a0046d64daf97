package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/configstore/internal/model"
)

// EntityRow is one entity of a recorded snapshot or delta.
type EntityRow struct {
	ID       string           `json:"id"`
	IDPrefix string           `json:"id_prefix"`
	Type     model.EntityType `json:"type"`
	Patch    int              `json:"patch"`
	Version  string           `json:"version"`
}

// DeltaRow is one recorded change.
type DeltaRow struct {
	ScanID uuid.UUID        `json:"scan_id"`
	Type   model.ChangeType `json:"change"`
	Entity EntityRow        `json:"entity"`
	At     time.Time        `json:"at"`
}

// ScanSummary is one recorded scan.
type ScanSummary struct {
	ID             uuid.UUID                `json:"id"`
	Type           model.ScanType           `json:"type"`
	StartScheduled time.Time                `json:"start_scheduled"`
	StartActual    time.Time                `json:"start_actual"`
	EndActual      time.Time                `json:"end_actual"`
	Entities       int                      `json:"entities"`
	Changes        map[model.ChangeType]int `json:"changes"`
}

// LatestSnapshot returns the entities of the latest recorded scan ordered
// by composite key. Returns an empty slice when nothing was recorded.
func (j *Journal) LatestSnapshot(ctx context.Context) ([]EntityRow, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT entity_id, id_prefix, entity_type, patch, version
		FROM snapshot
		ORDER BY sort_key COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	defer rows.Close()

	out := []EntityRow{}
	for rows.Next() {
		var r EntityRow
		var typ string
		if err := rows.Scan(&r.ID, &r.IDPrefix, &typ, &r.Patch, &r.Version); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		r.Type = model.EntityType(typ)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot: %w", err)
	}
	return out, nil
}

// RecentScans returns up to limit scans, newest first.
func (j *Journal) RecentScans(ctx context.Context, limit int) ([]ScanSummary, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, scan_type, start_scheduled, start_actual, end_actual,
		       entity_count, add_count, update_count, delete_count
		FROM scans
		ORDER BY seq DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query scans: %w", err)
	}
	defer rows.Close()

	out := []ScanSummary{}
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scans: %w", err)
	}
	return out, nil
}

func scanSummary(rows *sql.Rows) (ScanSummary, error) {
	var (
		s                        ScanSummary
		id, typ                  string
		scheduled, actual, ended string
		adds, updates, deletes   int
	)
	if err := rows.Scan(&id, &typ, &scheduled, &actual, &ended, &s.Entities, &adds, &updates, &deletes); err != nil {
		return ScanSummary{}, fmt.Errorf("scan scan row: %w", err)
	}
	var err error
	if s.ID, err = uuid.Parse(id); err != nil {
		return ScanSummary{}, fmt.Errorf("scan id %q: %w", id, err)
	}
	for _, f := range []struct {
		dst *time.Time
		src string
	}{{&s.StartScheduled, scheduled}, {&s.StartActual, actual}, {&s.EndActual, ended}} {
		if *f.dst, err = time.Parse(time.RFC3339Nano, f.src); err != nil {
			return ScanSummary{}, fmt.Errorf("scan %s time %q: %w", id, f.src, err)
		}
	}
	s.Type = model.ScanType(typ)
	s.Changes = map[model.ChangeType]int{
		model.ChangeAdd:    adds,
		model.ChangeUpdate: updates,
		model.ChangeDelete: deletes,
	}
	return s, nil
}

// EntityHistory returns every recorded change of entityID, oldest first.
func (j *Journal) EntityHistory(ctx context.Context, entityID string) ([]DeltaRow, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT d.scan_id, d.change_type, d.entity_id, d.id_prefix, d.entity_type, d.patch, d.version, s.end_actual
		FROM deltas d
		JOIN scans s ON s.id = d.scan_id
		WHERE d.entity_id = ?
		ORDER BY s.seq ASC, d.ordinal ASC
	`, entityID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := []DeltaRow{}
	for rows.Next() {
		var (
			d           DeltaRow
			scanID, at  string
			change, typ string
		)
		if err := rows.Scan(&scanID, &change, &d.Entity.ID, &d.Entity.IDPrefix, &typ, &d.Entity.Patch, &d.Entity.Version, &at); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		if d.ScanID, err = uuid.Parse(scanID); err != nil {
			return nil, fmt.Errorf("scan id %q: %w", scanID, err)
		}
		if d.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("scan %s time %q: %w", scanID, at, err)
		}
		d.Type = model.ChangeType(change)
		d.Entity.Type = model.EntityType(typ)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return out, nil
}
