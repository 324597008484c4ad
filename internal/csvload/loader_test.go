package csvload

import (
	"archive/zip"
	"bytes"
	"testing"
	"time"

	"fxdata-system/internal/model"
)

func buildArchive(t *testing.T, name, csv string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create(name)
	if err != nil {
		t.Fatalf("zip create: %v", err)
	}
	if _, err := f.Write([]byte(csv)); err != nil {
		t.Fatalf("zip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return &buf
}

func TestLoad(t *testing.T) {
	csv := "timestamp,bid,ask\n" +
		"2024-03-04T09:00:00.120Z,1.1000,1.1000\n" +
		"2024-03-04T09:00:20.500Z,1.1005,1.1005\n"
	archive := buildArchive(t, "EURUSD_2024_03.csv", csv)

	ticks, err := New().Load(archive, "EURUSD", model.VariantTrade)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(ticks) != 2 {
		t.Fatalf("expected 2 ticks, got %d", len(ticks))
	}

	want := time.Date(2024, time.March, 4, 9, 0, 0, 120_000_000, time.UTC)
	if !ticks[0].TS.Equal(want) {
		t.Errorf("timestamp: expected %v, got %v", want, ticks[0].TS)
	}
	if ticks[0].Instrument != "EURUSD" || ticks[0].Variant != model.VariantTrade {
		t.Errorf("identity fields not set: %+v", ticks[0])
	}
	if ticks[1].Bid != 1.1005 {
		t.Errorf("bid: expected 1.1005, got %v", ticks[1].Bid)
	}
}

func TestLoad_NoCSVEntry(t *testing.T) {
	archive := buildArchive(t, "readme.txt", "not a csv")
	if _, err := New().Load(archive, "EURUSD", model.VariantTrade); err == nil {
		t.Fatal("expected error for archive without csv entry")
	}
}

func TestLoad_BadTimestamp(t *testing.T) {
	archive := buildArchive(t, "x.csv", "timestamp,bid,ask\nnot-a-time,1,1\n")
	if _, err := New().Load(archive, "EURUSD", model.VariantTrade); err == nil {
		t.Fatal("expected error for unparseable timestamp")
	}
}
