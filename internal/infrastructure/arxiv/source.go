// Package arxiv implements the paper source backed by arXiv, with
// exchangeable fetch strategies behind a scanner registry.
package arxiv

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
	"PaperDigest/internal/scanner"
)

// Source implements ports.Source by delegating fetches to a registered
// scanner strategy and persisting raw artifacts per date and category.
type Source struct {
	registry    *scanner.Registry
	scannerName string
	maxResults  int
	logger      *slog.Logger
	now         func() time.Time
}

var _ ports.Source = (*Source)(nil)

// NewSource wires the scanner registry with the configured strategy name.
func NewSource(reg *scanner.Registry, scannerName string, maxResults int, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Source{
		registry:    reg,
		scannerName: scannerName,
		maxResults:  maxResults,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ResolveTargetDate parses an explicit YYYY-MM-DD date. With an empty
// target it walks backward from yesterday, skipping Saturdays and Sundays,
// because arXiv does not announce papers on weekends.
func (s *Source) ResolveTargetDate(target string) (time.Time, error) {
	if target = strings.TrimSpace(target); target != "" {
		day, err := time.Parse("2006-01-02", target)
		if err != nil {
			return time.Time{}, fmt.Errorf("target date must be YYYY-MM-DD: %w", err)
		}
		return day.UTC(), nil
	}

	candidate := s.now().Truncate(24*time.Hour).AddDate(0, 0, -1)
	for candidate.Weekday() == time.Saturday || candidate.Weekday() == time.Sunday {
		candidate = candidate.AddDate(0, 0, -1)
	}
	return candidate, nil
}

// Fetch pulls the day's papers for all categories through the configured
// scanner strategy.
func (s *Source) Fetch(ctx context.Context, categories []string, day time.Time) (map[string][]domain.Paper, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}
	strategy, err := s.registry.Resolve(s.scannerName)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("fetch papers", "scanner", strategy.Name(), "day", day.Format("2006-01-02"), "categories", len(categories))
	grouped, err := strategy.Scan(ctx, scanner.Request{
		Day:        day,
		Categories: categories,
		MaxResults: s.maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", strategy.Name(), err)
	}

	total := 0
	for _, papers := range grouped {
		total += len(papers)
	}
	s.logger.Debug("fetch done", "total_papers", total)
	return grouped, nil
}

// SaveRaw persists grouped papers under rawDir/<yyyymmdd>/<cat>/ as one
// JSON artifact per category and publication date, and returns the file
// paths. Categories with no papers produce no file.
func (s *Source) SaveRaw(grouped map[string][]domain.Paper, rawDir string) ([]string, error) {
	now := s.now()
	fallbackTag := now.Format("20060102")

	categories := make([]string, 0, len(grouped))
	for cat := range grouped {
		categories = append(categories, cat)
	}
	sort.Strings(categories)

	var created []string
	for _, cat := range categories {
		papers := grouped[cat]
		if len(papers) == 0 {
			continue
		}

		catTag := strings.ReplaceAll(cat, ".", "")
		byDate := map[string][]domain.Paper{}
		for _, paper := range papers {
			tag := fallbackTag
			if !paper.Published.IsZero() {
				tag = paper.Published.UTC().Format("20060102")
			}
			byDate[tag] = append(byDate[tag], paper)
		}

		dateTags := make([]string, 0, len(byDate))
		for tag := range byDate {
			dateTags = append(dateTags, tag)
		}
		sort.Strings(dateTags)

		for _, dateTag := range dateTags {
			dir := filepath.Join(rawDir, dateTag, catTag)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create raw dir: %w", err)
			}
			path := filepath.Join(dir, fmt.Sprintf("raw_%s_%s.json", catTag, dateTag))

			artifact := domain.RawArtifact{
				GeneratedAt: now,
				PaperDate:   dateTag,
				Categories:  []string{cat},
				PaperCount:  len(byDate[dateTag]),
				Papers:      byDate[dateTag],
			}
			raw, err := json.MarshalIndent(artifact, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("marshal raw artifact: %w", err)
			}
			if err := os.WriteFile(path, raw, 0o644); err != nil {
				return nil, fmt.Errorf("write raw artifact: %w", err)
			}
			created = append(created, path)
		}
	}
	return created, nil
}
