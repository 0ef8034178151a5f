// Package storage persists classification artifacts: the per-day daily
// file, the taxonomy-organised archive, and a queryable SQLite index.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"PaperDigest/internal/domain"
)

var segmentExpr = regexp.MustCompile(`[^a-z0-9]+`)

// Store writes classified papers to the archive hierarchy and the daily
// summary directory.
type Store struct {
	archiveDir string
	dailyDir   string
	now        func() time.Time
}

// NewStore wires the target directories.
func NewStore(archiveDir, dailyDir string) *Store {
	return &Store{
		archiveDir: archiveDir,
		dailyDir:   dailyDir,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ArchiveFiles stores each paper as an individual JSON file under
// archiveDir/<primary_area>/<secondary_focus>/<application_domain>/ and
// returns the created paths.
func (s *Store) ArchiveFiles(papers []domain.Paper) ([]string, error) {
	var created []string
	for i, paper := range papers {
		dir := filepath.Join(
			s.archiveDir,
			safeSegment(paper.PrimaryArea, "uncategorised"),
			safeSegment(paper.SecondaryFocus, "general"),
			safeSegment(paper.ApplicationDomain, "general"),
		)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create archive dir: %w", err)
		}

		path := filepath.Join(dir, paperFilename(paper, i+1))
		raw, err := json.MarshalIndent(paper, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal paper %s: %w", paper.ArxivID, err)
		}
		if err := os.WriteFile(path, raw, 0o644); err != nil {
			return nil, fmt.Errorf("write archive file: %w", err)
		}
		created = append(created, path)
	}
	return created, nil
}

// DailyFile writes the day's enriched batch with provenance under
// dailyDir/<yyyymmdd>/ and returns the created path.
func (s *Store) DailyFile(papers []domain.Paper, rawSources []string) (string, error) {
	now := s.now()
	dateTag := now.Format("20060102")
	dir := filepath.Join(s.dailyDir, dateTag)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create daily dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("daily_%s_%s.json", dateTag, now.Format("150405")))
	artifact := domain.DailyArtifact{
		GeneratedAt:    now,
		SourceRawFiles: rawSources,
		PaperCount:     len(papers),
		Papers:         papers,
	}
	raw, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal daily artifact: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("write daily artifact: %w", err)
	}
	return path, nil
}

// LoadDaily reads a persisted daily artifact.
func LoadDaily(path string) (domain.DailyArtifact, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.DailyArtifact{}, fmt.Errorf("read daily artifact: %w", err)
	}
	var artifact domain.DailyArtifact
	if err := json.Unmarshal(raw, &artifact); err != nil {
		return domain.DailyArtifact{}, fmt.Errorf("decode daily artifact: %w", err)
	}
	return artifact, nil
}

// CombinePapers merges the papers of multiple raw artifacts into one
// batch, preserving file order. Unreadable files are skipped; resuming a
// run must not fail on a stray artifact.
func CombinePapers(rawFiles []string) []domain.Paper {
	var combined []domain.Paper
	for _, path := range rawFiles {
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var artifact domain.RawArtifact
		if err := json.Unmarshal(raw, &artifact); err != nil {
			continue
		}
		combined = append(combined, artifact.Papers...)
	}
	return combined
}

// safeSegment sanitises a label into a filesystem-safe path segment.
func safeSegment(value, fallback string) string {
	token := strings.ToLower(strings.TrimSpace(value))
	token = segmentExpr.ReplaceAllString(token, "-")
	token = strings.Trim(token, "-")
	if token == "" {
		return fallback
	}
	return token
}

func paperFilename(paper domain.Paper, index int) string {
	if slug := safeSegment(paper.ArxivID, ""); slug != "" {
		return slug + ".json"
	}
	fallback := fmt.Sprintf("paper-%d", index)
	return safeSegment(paper.Title, fallback) + ".json"
}
