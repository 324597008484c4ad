package sqlite

import (
	"fmt"
	"math"
	"time"

	"fxdata-system/internal/model"
)

// RejectedRow records one tick that failed validation, by its index in
// the submitted batch.
type RejectedRow struct {
	Index  int
	Reason string
}

// InsertReport summarizes a batch insert: how many rows were applied
// and which were rejected. A rejected row never aborts the batch.
type InsertReport struct {
	Inserted int
	Rejected []RejectedRow
}

func validateTick(variant model.Variant, t *model.Tick) string {
	if t.TS.IsZero() {
		return "zero timestamp"
	}
	if math.IsNaN(t.Bid) || math.IsInf(t.Bid, 0) || math.IsNaN(t.Ask) || math.IsInf(t.Ask, 0) {
		return "non-finite price"
	}
	if t.Bid <= 0 || t.Ask <= 0 {
		return "non-positive price"
	}
	if variant == model.VariantQuote && t.Ask < t.Bid {
		return "ask below bid on quote stream"
	}
	return ""
}

// InsertTicks applies a batch of ticks for one (instrument, variant) in
// a single transaction. Rows failing validation are skipped and listed
// in the report; the remainder of the batch still commits. Re-inserting
// the same batch is idempotent: the primary key plus INSERT OR REPLACE
// leaves the materialized row count unchanged.
func (s *Store) InsertTicks(instrument string, variant model.Variant, rows []model.Tick) (InsertReport, error) {
	var report InsertReport
	if !variant.Valid() {
		return report, fmt.Errorf("sqlite insert ticks: unknown variant %q", variant)
	}
	if len(rows) == 0 {
		return report, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return report, fmt.Errorf("sqlite begin: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO ticks (instrument, variant, ts, bid, ask)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return report, fmt.Errorf("sqlite prepare: %w", err)
	}
	defer stmt.Close()

	for i := range rows {
		t := &rows[i]
		if reason := validateTick(variant, t); reason != "" {
			report.Rejected = append(report.Rejected, RejectedRow{Index: i, Reason: reason})
			continue
		}
		if _, err := stmt.Exec(instrument, string(variant), t.TS.UTC().UnixMilli(), t.Bid, t.Ask); err != nil {
			tx.Rollback()
			return InsertReport{}, fmt.Errorf("sqlite insert tick: %w", err)
		}
		report.Inserted++
	}

	if err := tx.Commit(); err != nil {
		return InsertReport{}, fmt.Errorf("sqlite commit: %w", err)
	}
	return report, nil
}

// TicksInRange returns ticks with start <= ts < end, ordered by
// timestamp ascending. The optional where fragment and args narrow the
// scan with a predicate in the storage engine's own filter language
// (appended to the WHERE clause, e.g. "ask - bid > ?").
func (s *Store) TicksInRange(instrument string, variant model.Variant, start, end time.Time, where string, args ...interface{}) ([]model.Tick, error) {
	q := `
		SELECT ts, bid, ask FROM ticks
		WHERE instrument = ? AND variant = ? AND ts >= ? AND ts < ?
	`
	qargs := []interface{}{instrument, string(variant), start.UTC().UnixMilli(), end.UTC().UnixMilli()}
	if where != "" {
		q += " AND (" + where + ")"
		qargs = append(qargs, args...)
	}
	q += " ORDER BY ts ASC"

	rows, err := s.db.Query(q, qargs...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query ticks: %w", err)
	}
	defer rows.Close()

	var out []model.Tick
	for rows.Next() {
		var tsMilli int64
		t := model.Tick{Instrument: instrument, Variant: variant}
		if err := rows.Scan(&tsMilli, &t.Bid, &t.Ask); err != nil {
			return nil, fmt.Errorf("sqlite scan tick: %w", err)
		}
		t.TS = time.UnixMilli(tsMilli).UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

// EarliestLatest returns the first and last tick timestamps for the
// (instrument, variant), and ok=false when no ticks exist.
func (s *Store) EarliestLatest(instrument string, variant model.Variant) (earliest, latest time.Time, ok bool, err error) {
	var minMilli, maxMilli *int64
	err = s.db.QueryRow(`
		SELECT MIN(ts), MAX(ts) FROM ticks WHERE instrument = ? AND variant = ?
	`, instrument, string(variant)).Scan(&minMilli, &maxMilli)
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("sqlite earliest/latest: %w", err)
	}
	if minMilli == nil || maxMilli == nil {
		return time.Time{}, time.Time{}, false, nil
	}
	return time.UnixMilli(*minMilli).UTC(), time.UnixMilli(*maxMilli).UTC(), true, nil
}

// ApproxRowCount returns the materialized tick row count for the
// (instrument, variant). Call Materialize first where exact-once
// semantics matter.
func (s *Store) ApproxRowCount(instrument string, variant model.Variant) (int64, error) {
	var n int64
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM ticks WHERE instrument = ? AND variant = ?
	`, instrument, string(variant)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite tick count: %w", err)
	}
	return n, nil
}

// DistinctTickMonths returns the distinct "YYYY-MM" months (UTC) that
// hold at least one tick of the given variant, in chronological order.
func (s *Store) DistinctTickMonths(instrument string, variant model.Variant) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT DISTINCT strftime('%Y-%m', ts / 1000, 'unixepoch')
		FROM ticks WHERE instrument = ? AND variant = ?
		ORDER BY 1 ASC
	`, instrument, string(variant))
	if err != nil {
		return nil, fmt.Errorf("sqlite distinct months: %w", err)
	}
	defer rows.Close()

	var months []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("sqlite scan month: %w", err)
		}
		months = append(months, m)
	}
	return months, rows.Err()
}
