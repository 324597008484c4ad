package model

import "time"

// CoverageInfo is a read-only storage summary for one instrument,
// computed from bar-table metadata without scanning raw ticks.
// Constructed fresh on every call, never mutated afterwards.
type CoverageInfo struct {
	Instrument  string    `json:"instrument"`
	BarCount    int64     `json:"bar_count"`
	EarliestBar time.Time `json:"earliest_bar"`
	LatestBar   time.Time `json:"latest_bar"`
	TradeRows   int64     `json:"trade_rows"`
	QuoteRows   int64     `json:"quote_rows"`
	StorageSize int64     `json:"storage_size"` // bytes on disk
}

// UpdateResult summarizes one update run for an instrument. Per-item
// soft failures (an unavailable month, a rejected row) are collected
// here alongside the partial success instead of aborting the run.
type UpdateResult struct {
	Instrument string `json:"instrument"`

	MonthsMissing     int `json:"months_missing"`
	MonthsFetched     int `json:"months_fetched"`
	MonthsUnavailable int `json:"months_unavailable"`

	TradeRowsAdded int64 `json:"trade_rows_added"`
	QuoteRowsAdded int64 `json:"quote_rows_added"`
	RowsRejected   int64 `json:"rows_rejected"`
	BarsWritten    int64 `json:"bars_written"`

	Coverage CoverageInfo `json:"coverage"`

	// SoftErrors lists recoverable per-item failures from the run.
	SoftErrors []string `json:"soft_errors,omitempty"`
}
