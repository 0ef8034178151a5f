package arxiv

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"PaperDigest/internal/scanner"
)

func TestListingBuildPageURL(t *testing.T) {
	t.Parallel()

	sc := NewListingScanner(nil)
	u, err := sc.buildPageURL("cs.AI", 200)
	if err != nil {
		t.Fatalf("buildPageURL returned error: %v", err)
	}

	parsed, err := url.Parse(u)
	if err != nil {
		t.Fatalf("parse result: %v", err)
	}
	if parsed.Host != "arxiv.org" || !strings.HasPrefix(parsed.Path, "/list/cs.AI/") {
		t.Fatalf("unexpected url: %s", u)
	}

	q := parsed.Query()
	if q.Get("skip") != "200" {
		t.Fatalf("expected skip=200, got %s", q.Get("skip"))
	}
	if q.Get("show") != "200" {
		t.Fatalf("expected show=200, got %s", q.Get("show"))
	}
}

func TestParseListingEntry(t *testing.T) {
	t.Parallel()

	html := `
	<dl>
	  <dt>
	    <span class="list-identifier"><a href="/abs/2503.56789">arXiv:2503.56789</a></span>
	  </dt>
	  <dd>
	    <div class="list-date">Date: 2 Mar 2026</div>
	    <div class="list-title mathjax">Title: Sample Title</div>
	    <div class="list-authors"><a href="/a/one">First Author</a>, <a href="/a/two">Second Author</a></div>
	    <p class="mathjax">Abstract: Sample abstract text.</p>
	  </dd>
	</dl>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}

	paper, publishedAt, err := parseListingEntry(doc.Find("dt").First(), doc.Find("dd").First(), "cs.AI")
	if err != nil {
		t.Fatalf("parseListingEntry error: %v", err)
	}

	if paper.ArxivID != "2503.56789" {
		t.Fatalf("unexpected id: %s", paper.ArxivID)
	}
	if paper.Title != "Sample Title" {
		t.Fatalf("unexpected title: %s", paper.Title)
	}
	if paper.Summary != "Sample abstract text." {
		t.Fatalf("unexpected abstract: %s", paper.Summary)
	}
	if paper.PrimaryCategory != "cs.AI" {
		t.Fatalf("unexpected category: %s", paper.PrimaryCategory)
	}
	if len(paper.Authors) != 2 || paper.Authors[1] != "Second Author" {
		t.Fatalf("unexpected authors: %v", paper.Authors)
	}
	if paper.ArxivURL != "https://arxiv.org/abs/2503.56789" {
		t.Fatalf("unexpected url: %s", paper.ArxivURL)
	}
	if publishedAt.Format("2006-01-02") != "2026-03-02" {
		t.Fatalf("unexpected published date: %v", publishedAt)
	}
}

func TestListingScannerScan(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`
		<dl>
		  <dt>
		    <span class="list-identifier"><a href="/abs/2503.00001">arXiv:2503.00001</a></span>
		  </dt>
		  <dd>
		    <div class="list-date">Date: 2 Mar 2026</div>
		    <div class="list-title mathjax">Title: Fresh Paper</div>
		    <p class="mathjax">Abstract: brand new.</p>
		  </dd>
		  <dt>
		    <span class="list-identifier"><a href="/abs/2502.00002">arXiv:2502.00002</a></span>
		  </dt>
		  <dd>
		    <div class="list-date">Date: 27 Feb 2026</div>
		    <div class="list-title mathjax">Title: Old Paper</div>
		    <p class="mathjax">Abstract: older.</p>
		  </dd>
		</dl>`))
	}))
	defer server.Close()

	sc := NewListingScanner(server.Client())
	sc.baseURL = server.URL
	sc.pageSize = 10

	grouped, err := sc.Scan(context.Background(), scanner.Request{
		Day:        time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC),
		Categories: []string{"cs.AI"},
	})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}

	papers := grouped["cs.AI"]
	if len(papers) != 1 {
		t.Fatalf("expected 1 paper, got %d", len(papers))
	}
	if papers[0].ArxivID != "2503.00001" {
		t.Fatalf("unexpected paper id: %s", papers[0].ArxivID)
	}
	if papers[0].Summary != "brand new." {
		t.Fatalf("unexpected abstract: %s", papers[0].Summary)
	}
}
