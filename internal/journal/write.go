package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/configstore/internal/delta"
	"github.com/roach88/configstore/internal/model"
)

// Scan is one completed scan as the journal records it.
type Scan struct {
	Request   model.ScanRequest
	EndActual time.Time
	Items     []*model.EntityInfo
	Changes   []model.EntityDelta
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// RecordScan stores scan and replaces the snapshot with scan.Items, in one
// transaction. Recording the same request id twice is a no-op.
func (j *Journal) RecordScan(ctx context.Context, scan Scan) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record scan: %w", err)
	}
	defer tx.Rollback()

	counts := make(map[model.ChangeType]int, 3)
	for _, c := range scan.Changes {
		counts[c.Type]++
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO scans
		(id, scan_type, start_scheduled, start_actual, end_actual, entity_count, add_count, update_count, delete_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		scan.Request.ID.String(),
		string(scan.Request.Type),
		formatTime(scan.Request.StartScheduled),
		formatTime(scan.Request.StartActual),
		formatTime(scan.EndActual),
		len(scan.Items),
		counts[model.ChangeAdd],
		counts[model.ChangeUpdate],
		counts[model.ChangeDelete],
	)
	if err != nil {
		return fmt.Errorf("record scan: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil
	}

	for i, c := range scan.Changes {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO deltas
			(scan_id, ordinal, change_type, entity_id, id_prefix, entity_type, patch, version)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			scan.Request.ID.String(), i, string(c.Type),
			c.Entity.ID(), c.Entity.IDPrefix(), string(c.Entity.Type()),
			c.Entity.PatchVersion(), c.Entity.Version(),
		)
		if err != nil {
			return fmt.Errorf("record delta %d: %w", i, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshot`); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	for _, info := range scan.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO snapshot (sort_key, entity_id, id_prefix, entity_type, patch, version, scan_id)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			info.SortKey(), info.ID(), info.IDPrefix(), string(info.Type()),
			info.PatchVersion(), info.Version(), scan.Request.ID.String(),
		)
		if err != nil {
			return fmt.Errorf("record snapshot %s: %w", info.ID(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record scan: %w", err)
	}
	return nil
}

// RecordSnapshot records the output of one scan cycle.
func (j *Journal) RecordSnapshot(ctx context.Context, h delta.SnapshotHolder[*model.EntityInfo], end time.Time) error {
	return j.RecordScan(ctx, Scan{Request: h.Trigger, EndActual: end, Items: h.Items, Changes: h.Changes})
}
