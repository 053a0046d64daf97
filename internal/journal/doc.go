// Package journal records completed scans in SQLite.
//
// Every scan stores its trigger, timing, and change counts, plus the
// ordered deltas it produced. The snapshot table always holds the entity
// list of the latest recorded scan, so a restarted client can diff against
// what it last saw.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Queries order by seq or sort_key with COLLATE BINARY so results match
// the byte order snapshots are diffed in.
package journal
