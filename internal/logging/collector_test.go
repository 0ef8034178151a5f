package logging

import (
	"log/slog"
	"testing"
)

func TestCollectorStoresRecords(t *testing.T) {
	t.Parallel()

	collector := NewCollector()
	logger := slog.New(collector)

	logger.Info("scrape complete", "paper_count", 42, "categories", 3)
	logger.Warn("retrying request")

	records := collector.Records()
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Message != "scrape complete" {
		t.Fatalf("unexpected message: %q", records[0].Message)
	}
	if got := records[0].Attrs["paper_count"].Int64(); got != 42 {
		t.Fatalf("paper_count = %d", got)
	}
	if records[1].Level != slog.LevelWarn {
		t.Fatalf("level = %v", records[1].Level)
	}
}

func TestCollectorWithAttrsSharesStore(t *testing.T) {
	t.Parallel()

	collector := NewCollector()
	logger := slog.New(collector).With("component", "pipeline")

	logger.Info("classified papers", "paper_count", 7)

	records := collector.Records()
	if len(records) != 1 {
		t.Fatalf("derived logger must write into the same store, got %d records", len(records))
	}
	if got := records[0].Attrs["component"].String(); got != "pipeline" {
		t.Fatalf("component attr lost: %q", got)
	}
}

func TestCollectorLastInt(t *testing.T) {
	t.Parallel()

	collector := NewCollector()
	logger := slog.New(collector)

	if _, ok := collector.LastInt("paper_count"); ok {
		t.Fatal("empty collector must report no value")
	}

	logger.Info("first", "paper_count", 10)
	logger.Info("second", "paper_count", 25)
	logger.Info("unrelated", "other", "x")

	got, ok := collector.LastInt("paper_count")
	if !ok || got != 25 {
		t.Fatalf("LastInt = %d, %v; want 25, true", got, ok)
	}
}

func TestCollectorReset(t *testing.T) {
	t.Parallel()

	collector := NewCollector()
	slog.New(collector).Info("one")
	collector.Reset()
	if len(collector.Records()) != 0 {
		t.Fatal("reset must drop records")
	}
}
