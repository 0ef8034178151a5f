package arxiv

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/scanner"
)

const (
	arxivBaseURL    = "https://arxiv.org"
	listingPageSize = 200
)

var dateExpr = regexp.MustCompile(`\d{1,2} [A-Za-z]{3} \d{4}`)

// ListingScanner crawls the HTML category listing pages (arxiv.org/list)
// and extracts papers published on the requested day. It is the fallback
// strategy for when the export API is unavailable.
type ListingScanner struct {
	client   *http.Client
	baseURL  string
	pageSize int
}

var _ scanner.Scanner = (*ListingScanner)(nil)

// NewListingScanner wires an HTTP client; a nil client gets a 20s timeout.
func NewListingScanner(client *http.Client) *ListingScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &ListingScanner{client: client, baseURL: arxivBaseURL, pageSize: listingPageSize}
}

// Name identifies the strategy inside the registry.
func (l *ListingScanner) Name() string {
	return "arxiv-listing"
}

// Scan walks each category's listing pages until entries older than the
// requested day appear.
func (l *ListingScanner) Scan(ctx context.Context, req scanner.Request) (map[string][]domain.Paper, error) {
	if len(req.Categories) == 0 {
		return nil, fmt.Errorf("no categories provided")
	}

	targetDay := req.Day.UTC().Truncate(24 * time.Hour)
	results := make(map[string][]domain.Paper, len(req.Categories))

	for _, cat := range req.Categories {
		seen := map[string]struct{}{}
		var collected []domain.Paper

		skip := 0
		for {
			pageURL, err := l.buildPageURL(cat, skip)
			if err != nil {
				return nil, fmt.Errorf("category %s: %w", cat, err)
			}

			doc, err := l.fetchDocument(ctx, pageURL)
			if err != nil {
				return nil, fmt.Errorf("category %s: %w", cat, err)
			}

			pagePapers, shouldContinue := l.extractPapers(doc, targetDay, cat)
			for _, paper := range pagePapers {
				if _, ok := seen[paper.ArxivID]; ok {
					continue
				}
				seen[paper.ArxivID] = struct{}{}
				collected = append(collected, paper)
			}

			if !shouldContinue {
				break
			}
			if req.MaxResults > 0 && len(collected) >= req.MaxResults {
				collected = collected[:req.MaxResults]
				break
			}
			skip += l.pageSize
		}

		results[cat] = collected
	}

	return results, nil
}

func (l *ListingScanner) buildPageURL(category string, skip int) (string, error) {
	parsed, err := url.Parse(fmt.Sprintf("%s/list/%s/recent", l.baseURL, category))
	if err != nil {
		return "", fmt.Errorf("invalid listing url for %s: %w", category, err)
	}
	query := parsed.Query()
	query.Set("skip", strconv.Itoa(skip))
	query.Set("show", strconv.Itoa(l.pageSize))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func (l *ListingScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "PaperDigest/1.0")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

func (l *ListingScanner) extractPapers(doc *goquery.Document, targetDay time.Time, category string) ([]domain.Paper, bool) {
	var (
		collected    []domain.Paper
		continueScan = true
		processed    int
	)

	doc.Find("dl > dt").EachWithBreak(func(i int, dt *goquery.Selection) bool {
		dd := dt.Next()
		processed++

		paper, publishedAt, err := parseListingEntry(dt, dd, category)
		if err != nil {
			return true
		}

		paperDay := publishedAt.UTC().Truncate(24 * time.Hour)
		if paperDay.Equal(targetDay) {
			collected = append(collected, paper)
		}
		if paperDay.Before(targetDay) {
			continueScan = false
			return false
		}
		return true
	})

	if processed < l.pageSize {
		continueScan = false
	}
	return collected, continueScan
}

func parseListingEntry(dt, dd *goquery.Selection, category string) (domain.Paper, time.Time, error) {
	link := dt.Find("a[href*=\"/abs/\"]").First()
	href, _ := link.Attr("href")

	id := strings.TrimSpace(link.Text())
	id = strings.TrimPrefix(id, "arXiv:")
	if id == "" {
		id = strings.TrimPrefix(href, "/abs/")
	}
	if id == "" {
		return domain.Paper{}, time.Time{}, fmt.Errorf("entry without identifier")
	}
	if !strings.HasPrefix(href, "http") {
		href = arxivBaseURL + href
	}

	title := strings.TrimSpace(dd.Find(".list-title").First().Text())
	title = strings.TrimSpace(strings.TrimPrefix(title, "Title:"))

	summary := dd.Find(".mathjax").First().Text()
	summary = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(summary), "Abstract:"))

	var authors []string
	dd.Find(".list-authors a").Each(func(i int, sel *goquery.Selection) {
		if name := strings.TrimSpace(sel.Text()); name != "" {
			authors = append(authors, name)
		}
	})

	dateText := strings.TrimSpace(dd.Find(".list-date").First().Text())
	if dateText == "" {
		dateText = strings.TrimSpace(dd.Find(".list-dateline").First().Text())
	}
	publishedAt := time.Now().UTC()
	if match := dateExpr.FindString(dateText); match != "" {
		if parsed, err := time.Parse("2 Jan 2006", match); err == nil {
			publishedAt = parsed
		}
	}

	return domain.Paper{
		ArxivID:         id,
		Title:           title,
		Summary:         summary,
		Authors:         authors,
		Published:       publishedAt,
		PrimaryCategory: category,
		ArxivURL:        href,
	}, publishedAt, nil
}
