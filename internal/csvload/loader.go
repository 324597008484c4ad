// Package csvload parses downloaded month archives (a ZIP holding one
// CSV file) into typed tick rows. Rows are assumed UTC-normalized by
// the source; no timezone fixing happens here.
package csvload

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"fxdata-system/internal/model"

	"github.com/gocarina/gocsv"
)

// Timestamp wraps time.Time for gocsv unmarshalling of RFC3339 stamps.
type Timestamp struct {
	time.Time
}

// UnmarshalCSV implements gocsv.TypeUnmarshaller.
func (t *Timestamp) UnmarshalCSV(s string) error {
	parsed, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("csvload: bad timestamp %q: %w", s, err)
	}
	t.Time = parsed.UTC()
	return nil
}

type csvRow struct {
	Timestamp Timestamp `csv:"timestamp"`
	Bid       float64   `csv:"bid"`
	Ask       float64   `csv:"ask"`
}

// Loader parses archives into tick rows.
type Loader struct{}

// New creates a Loader.
func New() *Loader { return &Loader{} }

// Load reads a ZIP archive and parses its first CSV entry into ticks
// for the given instrument/variant, ordered as the source wrote them.
func (l *Loader) Load(archive io.Reader, instrument string, variant model.Variant) ([]model.Tick, error) {
	raw, err := io.ReadAll(archive)
	if err != nil {
		return nil, fmt.Errorf("csvload: read archive: %w", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("csvload: open zip: %w", err)
	}

	var entry *zip.File
	for _, f := range zr.File {
		if strings.HasSuffix(strings.ToLower(f.Name), ".csv") {
			entry = f
			break
		}
	}
	if entry == nil {
		return nil, fmt.Errorf("csvload: archive has no csv entry")
	}

	rc, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("csvload: open %s: %w", entry.Name, err)
	}
	defer rc.Close()

	var rows []csvRow
	if err := gocsv.Unmarshal(rc, &rows); err != nil {
		return nil, fmt.Errorf("csvload: parse %s: %w", entry.Name, err)
	}

	ticks := make([]model.Tick, len(rows))
	for i, r := range rows {
		ticks[i] = model.Tick{
			Instrument: instrument,
			Variant:    variant,
			TS:         r.Timestamp.Time,
			Bid:        r.Bid,
			Ask:        r.Ask,
		}
	}
	return ticks, nil
}
