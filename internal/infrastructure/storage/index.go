package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"PaperDigest/internal/domain"
)

const indexSchema = `
CREATE TABLE IF NOT EXISTS papers (
	arxiv_id           TEXT PRIMARY KEY,
	day                TEXT NOT NULL,
	title              TEXT NOT NULL,
	summary            TEXT NOT NULL DEFAULT '',
	authors            TEXT NOT NULL DEFAULT '[]',
	published          TEXT NOT NULL DEFAULT '',
	primary_category   TEXT NOT NULL DEFAULT '',
	arxiv_url          TEXT NOT NULL DEFAULT '',
	mirror_url         TEXT NOT NULL DEFAULT '',
	primary_area       TEXT NOT NULL DEFAULT '',
	secondary_focus    TEXT NOT NULL DEFAULT '',
	application_domain TEXT NOT NULL DEFAULT '',
	tldr               TEXT NOT NULL DEFAULT '',
	interest_tags      TEXT NOT NULL DEFAULT '[]',
	ord                INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS papers_day ON papers (day);
`

// Index is a queryable SQLite mirror of classified papers, populated
// best-effort after the classify stage. It serves keyword and date lookups
// without scanning the daily JSON files.
type Index struct {
	db *sql.DB
}

// OpenIndex opens (and if needed initialises) the index database at path.
func OpenIndex(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	if _, err := db.Exec(indexSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init index schema: %w", err)
	}
	return &Index{db: db}, nil
}

// Close releases the underlying database handle.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// UpsertPapers inserts or replaces the day's classified papers.
func (ix *Index) UpsertPapers(ctx context.Context, day string, papers []domain.Paper) error {
	if len(papers) == 0 {
		return nil
	}

	builder := sq.Insert("papers").Columns(
		"arxiv_id", "day", "title", "summary", "authors", "published",
		"primary_category", "arxiv_url", "mirror_url",
		"primary_area", "secondary_focus", "application_domain",
		"tldr", "interest_tags", "ord",
	)
	for _, paper := range papers {
		builder = builder.Values(
			paper.ArxivID, day, paper.Title, paper.Summary,
			marshalList(paper.Authors), formatTime(paper.Published),
			paper.PrimaryCategory, paper.ArxivURL, paper.MirrorURL,
			paper.PrimaryArea, paper.SecondaryFocus, paper.ApplicationDomain,
			paper.TLDR, marshalList(paper.InterestTags), paper.Order,
		)
	}
	builder = builder.Suffix(`ON CONFLICT (arxiv_id) DO UPDATE SET
		day = excluded.day,
		title = excluded.title,
		summary = excluded.summary,
		authors = excluded.authors,
		published = excluded.published,
		primary_category = excluded.primary_category,
		arxiv_url = excluded.arxiv_url,
		mirror_url = excluded.mirror_url,
		primary_area = excluded.primary_area,
		secondary_focus = excluded.secondary_focus,
		application_domain = excluded.application_domain,
		tldr = excluded.tldr,
		interest_tags = excluded.interest_tags,
		ord = excluded.ord`)

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := ix.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert papers: %w", err)
	}
	return nil
}

// Query returns papers matching an optional keyword (against title, tldr
// and taxonomy labels) and an optional day (YYYY-MM-DD), newest day first,
// batch order within a day.
func (ix *Index) Query(ctx context.Context, keyword, day string) ([]domain.Paper, error) {
	builder := sq.Select(
		"arxiv_id", "day", "title", "summary", "authors", "published",
		"primary_category", "arxiv_url", "mirror_url",
		"primary_area", "secondary_focus", "application_domain",
		"tldr", "interest_tags", "ord",
	).From("papers").OrderBy("day DESC", "ord ASC")

	if day = strings.TrimSpace(day); day != "" {
		builder = builder.Where(sq.Eq{"day": day})
	}
	if keyword = strings.TrimSpace(keyword); keyword != "" {
		pattern := "%" + strings.ToLower(keyword) + "%"
		builder = builder.Where(sq.Or{
			sq.Like{"LOWER(title)": pattern},
			sq.Like{"LOWER(summary)": pattern},
			sq.Like{"LOWER(tldr)": pattern},
			sq.Like{"LOWER(primary_area)": pattern},
			sq.Like{"LOWER(secondary_focus)": pattern},
			sq.Like{"LOWER(application_domain)": pattern},
		})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := ix.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query papers: %w", err)
	}
	defer rows.Close()

	var papers []domain.Paper
	for rows.Next() {
		var (
			paper           domain.Paper
			rowDay          string
			authorsJSON     string
			published       string
			interestTagsRaw string
		)
		err := rows.Scan(
			&paper.ArxivID, &rowDay, &paper.Title, &paper.Summary,
			&authorsJSON, &published,
			&paper.PrimaryCategory, &paper.ArxivURL, &paper.MirrorURL,
			&paper.PrimaryArea, &paper.SecondaryFocus, &paper.ApplicationDomain,
			&paper.TLDR, &interestTagsRaw, &paper.Order,
		)
		if err != nil {
			return nil, fmt.Errorf("scan paper: %w", err)
		}
		paper.Authors = unmarshalList(authorsJSON)
		paper.InterestTags = unmarshalList(interestTagsRaw)
		if published != "" {
			if ts, err := time.Parse(time.RFC3339, published); err == nil {
				paper.Published = ts
			}
		}
		papers = append(papers, paper)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate papers: %w", err)
	}
	return papers, nil
}

func marshalList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(raw)
}

func unmarshalList(raw string) []string {
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil
	}
	if len(items) == 0 {
		return nil
	}
	return items
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339)
}
