package arxiv

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/scanner"
)

func TestResolveTargetDateExplicit(t *testing.T) {
	t.Parallel()

	src := NewSource(scanner.NewRegistry(), "arxiv-api", 0, nil)
	day, err := src.ResolveTargetDate(" 2026-03-02 ")
	if err != nil {
		t.Fatalf("ResolveTargetDate: %v", err)
	}
	if day.Format("2006-01-02") != "2026-03-02" {
		t.Fatalf("unexpected day: %v", day)
	}

	if _, err := src.ResolveTargetDate("02/03/2026"); err == nil {
		t.Fatal("malformed date must be rejected")
	}
}

func TestResolveTargetDateSkipsWeekends(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		now  time.Time
		want string
	}{
		// 2026-03-02 is a Monday: yesterday is Sunday, walk back to Friday.
		{"monday", time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC), "2026-02-27"},
		{"sunday", time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC), "2026-02-27"},
		{"wednesday", time.Date(2026, time.March, 4, 10, 0, 0, 0, time.UTC), "2026-03-03"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			src := NewSource(scanner.NewRegistry(), "arxiv-api", 0, nil)
			src.now = func() time.Time { return tt.now }

			day, err := src.ResolveTargetDate("")
			if err != nil {
				t.Fatalf("ResolveTargetDate: %v", err)
			}
			if got := day.Format("2006-01-02"); got != tt.want {
				t.Fatalf("resolved %s, want %s", got, tt.want)
			}
		})
	}
}

type fixedScanner struct {
	name    string
	grouped map[string][]domain.Paper
}

func (f *fixedScanner) Name() string { return f.name }

func (f *fixedScanner) Scan(ctx context.Context, req scanner.Request) (map[string][]domain.Paper, error) {
	return f.grouped, nil
}

func TestFetchUsesConfiguredScanner(t *testing.T) {
	t.Parallel()

	reg := scanner.NewRegistry()
	want := map[string][]domain.Paper{"cs.CL": {{ArxivID: "1"}}}
	reg.Register(&fixedScanner{name: "arxiv-api", grouped: want})

	src := NewSource(reg, "arxiv-api", 0, nil)
	got, err := src.Fetch(context.Background(), []string{"cs.CL"}, time.Now())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got["cs.CL"]) != 1 {
		t.Fatalf("unexpected result: %v", got)
	}

	other := NewSource(reg, "missing", 0, nil)
	if _, err := other.Fetch(context.Background(), []string{"cs.CL"}, time.Now()); err == nil {
		t.Fatal("unregistered scanner must fail")
	}
}

func TestSaveRawArtifactLayout(t *testing.T) {
	t.Parallel()

	rawDir := t.TempDir()
	src := NewSource(scanner.NewRegistry(), "arxiv-api", 0, nil)
	src.now = func() time.Time { return time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC) }

	published := time.Date(2026, time.March, 2, 1, 0, 0, 0, time.UTC)
	grouped := map[string][]domain.Paper{
		"cs.CL": {
			{ArxivID: "2503.00001", Title: "one", Published: published, PrimaryCategory: "cs.CL"},
		},
		"cs.LG": nil,
	}

	paths, err := src.SaveRaw(grouped, rawDir)
	if err != nil {
		t.Fatalf("SaveRaw: %v", err)
	}
	if len(paths) != 1 {
		t.Fatalf("expected 1 artifact, got %v", paths)
	}

	want := filepath.Join(rawDir, "20260302", "csCL", "raw_csCL_20260302.json")
	if paths[0] != want {
		t.Fatalf("unexpected path %s, want %s", paths[0], want)
	}

	raw, err := os.ReadFile(paths[0])
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	var artifact domain.RawArtifact
	if err := json.Unmarshal(raw, &artifact); err != nil {
		t.Fatalf("unmarshal artifact: %v", err)
	}
	if artifact.PaperCount != 1 || artifact.PaperDate != "20260302" {
		t.Fatalf("unexpected artifact header: %+v", artifact)
	}
	if len(artifact.Categories) != 1 || artifact.Categories[0] != "cs.CL" {
		t.Fatalf("unexpected categories: %v", artifact.Categories)
	}
	if artifact.Papers[0].ArxivID != "2503.00001" {
		t.Fatalf("unexpected papers: %+v", artifact.Papers)
	}
}
