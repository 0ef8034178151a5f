package storage

import (
	"context"
	"path/filepath"
	"testing"

	"PaperDigest/internal/domain"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := OpenIndex(filepath.Join(t.TempDir(), "papers.db"))
	if err != nil {
		t.Fatalf("OpenIndex: %v", err)
	}
	t.Cleanup(func() { ix.Close() })
	return ix
}

func TestIndexUpsertAndQuery(t *testing.T) {
	t.Parallel()

	ix := openTestIndex(t)
	ctx := context.Background()

	first := classifiedPaper("2503.00001", "text_models", "reasoning", "general_purpose")
	first.TLDR = "a reasoning benchmark"
	first.InterestTags = []string{"benchmarks"}
	second := classifiedPaper("2503.00002", "vla_models", "model_architecture", "general_purpose")
	second.TLDR = "robot manipulation study"
	second.Order = 2

	if err := ix.UpsertPapers(ctx, "2026-03-02", []domain.Paper{first, second}); err != nil {
		t.Fatalf("UpsertPapers: %v", err)
	}

	all, err := ix.Query(ctx, "", "")
	if err != nil {
		t.Fatalf("Query all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 papers, got %d", len(all))
	}
	if all[0].Order != 1 || all[1].Order != 2 {
		t.Fatalf("batch order lost: %+v", all)
	}
	if len(all[0].InterestTags) != 1 || all[0].InterestTags[0] != "benchmarks" {
		t.Fatalf("interest tags lost: %+v", all[0])
	}
	if all[0].Published.IsZero() {
		t.Fatalf("published timestamp lost: %+v", all[0])
	}

	robots, err := ix.Query(ctx, "robot", "")
	if err != nil {
		t.Fatalf("Query keyword: %v", err)
	}
	if len(robots) != 1 || robots[0].ArxivID != "2503.00002" {
		t.Fatalf("keyword query wrong: %+v", robots)
	}

	none, err := ix.Query(ctx, "", "2026-03-01")
	if err != nil {
		t.Fatalf("Query day: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no papers for other day, got %+v", none)
	}
}

func TestIndexUpsertIsIdempotent(t *testing.T) {
	t.Parallel()

	ix := openTestIndex(t)
	ctx := context.Background()

	paper := classifiedPaper("2503.00001", "text_models", "reasoning", "general_purpose")
	if err := ix.UpsertPapers(ctx, "2026-03-02", []domain.Paper{paper}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	paper.TLDR = "revised"
	if err := ix.UpsertPapers(ctx, "2026-03-02", []domain.Paper{paper}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := ix.Query(ctx, "", "2026-03-02")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("upsert must not duplicate, got %d rows", len(got))
	}
	if got[0].TLDR != "revised" {
		t.Fatalf("upsert must replace fields, got %+v", got[0])
	}
}
