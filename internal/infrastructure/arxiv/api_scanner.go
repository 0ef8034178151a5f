package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/scanner"
)

// Default arXiv export API endpoints; the second is the plain-HTTP
// fallback used when the TLS endpoint misbehaves.
var defaultAPIBaseURLs = []string{
	"https://export.arxiv.org/api/query",
	"http://export.arxiv.org/api/query",
}

const (
	apiPageSize    = 200
	apiMaxAttempts = 3
)

// APIScanner fetches papers from the arXiv Atom API, newest first,
// stopping once results older than the requested day appear.
type APIScanner struct {
	client   *http.Client
	baseURLs []string
	pageSize int
	sleep    func(time.Duration)
}

var _ scanner.Scanner = (*APIScanner)(nil)

// NewAPIScanner wires an HTTP client; a nil client gets a 30s timeout.
func NewAPIScanner(client *http.Client) *APIScanner {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &APIScanner{
		client:   client,
		baseURLs: defaultAPIBaseURLs,
		pageSize: apiPageSize,
		sleep:    time.Sleep,
	}
}

// Name identifies the strategy inside the registry.
func (a *APIScanner) Name() string {
	return "arxiv-api"
}

// Scan queries each category and keeps the papers published on the
// requested day whose primary category matches.
func (a *APIScanner) Scan(ctx context.Context, req scanner.Request) (map[string][]domain.Paper, error) {
	if len(req.Categories) == 0 {
		return nil, fmt.Errorf("no categories provided")
	}

	day := req.Day.UTC().Truncate(24 * time.Hour)
	results := make(map[string][]domain.Paper, len(req.Categories))
	for _, cat := range req.Categories {
		cat = strings.TrimSpace(cat)
		if cat == "" {
			continue
		}
		papers, err := a.scanCategory(ctx, cat, day, req.MaxResults)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", cat, err)
		}
		results[cat] = papers
	}
	return results, nil
}

func (a *APIScanner) scanCategory(ctx context.Context, category string, day time.Time, maxResults int) ([]domain.Paper, error) {
	var collected []domain.Paper
	start := 0

	for {
		batch := a.pageSize
		if maxResults > 0 && maxResults-len(collected) < batch {
			batch = maxResults - len(collected)
		}
		if batch <= 0 {
			break
		}

		feed, err := a.fetchFeed(ctx, category, start, batch)
		if err != nil {
			return nil, err
		}
		if len(feed.Entries) == 0 {
			break
		}

		olderReached := false
		for _, entry := range feed.Entries {
			published, err := time.Parse(time.RFC3339, entry.Published)
			if err != nil {
				continue
			}
			publishedDay := published.UTC().Truncate(24 * time.Hour)
			if publishedDay.Before(day) {
				olderReached = true
				break
			}
			if publishedDay.After(day) {
				continue
			}
			if entry.PrimaryCategory.Term != category {
				continue
			}
			collected = append(collected, entry.toPaper(published))
		}

		start += len(feed.Entries)
		if olderReached || len(feed.Entries) < batch {
			break
		}
	}

	return collected, nil
}

// fetchFeed requests one result page, retrying transient failures and
// falling back to the next base URL when a base keeps failing.
func (a *APIScanner) fetchFeed(ctx context.Context, category string, start, count int) (*atomFeed, error) {
	params := url.Values{}
	params.Set("search_query", "cat:"+category)
	params.Set("start", strconv.Itoa(start))
	params.Set("max_results", strconv.Itoa(count))
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")

	var lastErr error
	for _, base := range a.baseURLs {
		for attempt := 1; attempt <= apiMaxAttempts; attempt++ {
			feed, err := a.fetchOnce(ctx, base+"?"+params.Encode())
			if err == nil {
				return feed, nil
			}
			lastErr = err
			if ctx.Err() != nil {
				return nil, lastErr
			}
			if attempt < apiMaxAttempts {
				a.sleep(min(time.Duration(1<<(attempt-1))*time.Second, 5*time.Second))
			}
		}
	}
	return nil, fmt.Errorf("query arxiv feed: %w", lastErr)
}

func (a *APIScanner) fetchOnce(ctx context.Context, fullURL string) (*atomFeed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "PaperDigest/1.0")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("arxiv returned %s", resp.Status)
	}

	var feed atomFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}
	return &feed, nil
}

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID              string       `xml:"id"`
	Title           string       `xml:"title"`
	Summary         string       `xml:"summary"`
	Published       string       `xml:"published"`
	Authors         []atomAuthor `xml:"author"`
	PrimaryCategory struct {
		Term string `xml:"term,attr"`
	} `xml:"primary_category"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

func (e atomEntry) toPaper(published time.Time) domain.Paper {
	id := e.ID
	if idx := strings.LastIndex(id, "/"); idx != -1 {
		id = id[idx+1:]
	}
	var link string
	if id != "" {
		link = "https://arxiv.org/abs/" + id
	}
	authors := make([]string, 0, len(e.Authors))
	for _, author := range e.Authors {
		if name := strings.TrimSpace(author.Name); name != "" {
			authors = append(authors, name)
		}
	}
	return domain.Paper{
		ArxivID:         id,
		Title:           strings.TrimSpace(e.Title),
		Summary:         strings.TrimSpace(e.Summary),
		Authors:         authors,
		Published:       published,
		PrimaryCategory: e.PrimaryCategory.Term,
		ArxivURL:        link,
	}
}
