package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"PaperDigest/internal/domain"
)

// stubCompleter answers classification prompts from a script. The response
// function receives the paper title (extracted from the prompt) and the
// 1-based call count for that paper.
type stubCompleter struct {
	mu       sync.Mutex
	calls    map[string]int
	inFlight int
	maxSeen  int
	respond  func(title string, attempt int) (string, error)
	delay    func(title string) time.Duration
}

func newStubCompleter(respond func(title string, attempt int) (string, error)) *stubCompleter {
	return &stubCompleter{calls: map[string]int{}, respond: respond}
}

func (s *stubCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	title := titleFromPrompt(user)

	s.mu.Lock()
	s.calls[title]++
	attempt := s.calls[title]
	s.inFlight++
	if s.inFlight > s.maxSeen {
		s.maxSeen = s.inFlight
	}
	delay := time.Duration(0)
	if s.delay != nil {
		delay = s.delay(title)
	}
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
		}
	}

	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()

	return s.respond(title, attempt)
}

func (s *stubCompleter) callCount(title string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[title]
}

func titleFromPrompt(prompt string) string {
	for _, line := range strings.Split(prompt, "\n") {
		if rest, ok := strings.CutPrefix(line, "- Title: "); ok {
			return rest
		}
	}
	return ""
}

func validResponse(tags string) string {
	body := `{"primary_area": "text_models", "secondary_focus": "reasoning", ` +
		`"application_domain": "general_purpose", "tldr": "tldr"`
	if tags != "" {
		body += `, "interest_tags": ` + tags
	}
	return body + "}"
}

func testPapers(n int) []domain.Paper {
	papers := make([]domain.Paper, n)
	for i := range papers {
		papers[i] = domain.Paper{
			ArxivID:         fmt.Sprintf("2501.%05d", i+1),
			Title:           fmt.Sprintf("paper-%d", i+1),
			Summary:         "abstract",
			PrimaryCategory: "cs.CL",
			ArxivURL:        fmt.Sprintf("https://arxiv.org/abs/2501.%05d", i+1),
			Published:       time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC),
		}
	}
	return papers
}

func TestClassifyPreservesOrderUnderConcurrency(t *testing.T) {
	t.Parallel()

	const n = 8
	stub := newStubCompleter(func(title string, attempt int) (string, error) {
		return validResponse(""), nil
	})
	// Early papers answer slowest so completion order inverts input order.
	stub.delay = func(title string) time.Duration {
		var idx int
		fmt.Sscanf(title, "paper-%d", &idx)
		return time.Duration(n-idx) * 10 * time.Millisecond
	}

	engine := New(Config{Completer: stub, Concurrency: 3})
	got, err := engine.Classify(context.Background(), testPapers(n), nil)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	if len(got) != n {
		t.Fatalf("expected %d papers, got %d", n, len(got))
	}
	for i, paper := range got {
		if paper.Order != i+1 {
			t.Fatalf("paper at index %d has order %d", i, paper.Order)
		}
		if paper.Title != fmt.Sprintf("paper-%d", i+1) {
			t.Fatalf("paper at index %d is %s", i, paper.Title)
		}
		if paper.MirrorURL != "https://papers.cool/arxiv/"+paper.ArxivID {
			t.Fatalf("mirror url not stamped: %s", paper.MirrorURL)
		}
	}
	if stub.maxSeen > 3 {
		t.Fatalf("concurrency bound violated: saw %d in flight", stub.maxSeen)
	}
}

func TestClassifyRetrySucceedsOnThirdAttempt(t *testing.T) {
	t.Parallel()

	stub := newStubCompleter(func(title string, attempt int) (string, error) {
		if attempt < 3 {
			return "this is not json", nil
		}
		return validResponse(""), nil
	})

	engine := New(Config{Completer: stub, Concurrency: 2})
	got, err := engine.Classify(context.Background(), testPapers(1), nil)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got[0].PrimaryArea != "text_models" {
		t.Fatalf("enrichment missing: %+v", got[0])
	}
	if calls := stub.callCount("paper-1"); calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestClassifyRepairHintAppendedOnRetries(t *testing.T) {
	t.Parallel()

	var prompts []string
	var mu sync.Mutex
	completer := completerFunc(func(ctx context.Context, system, user string) (string, error) {
		mu.Lock()
		prompts = append(prompts, user)
		mu.Unlock()
		if len(prompts) < 2 {
			return "garbage", nil
		}
		return validResponse(""), nil
	})

	engine := New(Config{Completer: completer, Concurrency: 1})
	if _, err := engine.Classify(context.Background(), testPapers(1), nil); err != nil {
		t.Fatalf("Classify: %v", err)
	}

	if strings.Contains(prompts[0], "previous response failed to parse") {
		t.Fatal("first attempt must use the base prompt")
	}
	if !strings.Contains(prompts[1], "previous response failed to parse") {
		t.Fatal("second attempt must append the repair hint")
	}
	if !strings.HasPrefix(prompts[1], prompts[0]) {
		t.Fatal("repair prompt must extend the same base prompt")
	}
}

type completerFunc func(ctx context.Context, system, user string) (string, error)

func (f completerFunc) Complete(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}

func TestClassifyExhaustionFailsBatch(t *testing.T) {
	t.Parallel()

	stub := newStubCompleter(func(title string, attempt int) (string, error) {
		return "never json", nil
	})

	engine := New(Config{Completer: stub, Concurrency: 2})
	_, err := engine.Classify(context.Background(), testPapers(1), nil)

	var terminal *ClassificationError
	if !errors.As(err, &terminal) {
		t.Fatalf("expected ClassificationError, got %v", err)
	}
	if terminal.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", terminal.Attempts)
	}
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("terminal error should carry the last schema failure, got %v", err)
	}
	if calls := stub.callCount("paper-1"); calls != 3 {
		t.Fatalf("expected exactly 3 calls, got %d", calls)
	}
}

func TestClassifyTransportErrorRetried(t *testing.T) {
	t.Parallel()

	stub := newStubCompleter(func(title string, attempt int) (string, error) {
		if attempt == 1 {
			return "", errors.New("connection reset")
		}
		return validResponse(""), nil
	})

	engine := New(Config{Completer: stub, Concurrency: 1})
	got, err := engine.Classify(context.Background(), testPapers(1), nil)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got[0].Order != 1 {
		t.Fatalf("order not stamped: %+v", got[0])
	}
}

func TestClassifyProgressReporting(t *testing.T) {
	t.Parallel()

	stub := newStubCompleter(func(title string, attempt int) (string, error) {
		return validResponse(""), nil
	})

	var mu sync.Mutex
	type call struct{ done, total int }
	var calls []call
	progress := func(done, total int) {
		mu.Lock()
		calls = append(calls, call{done, total})
		mu.Unlock()
	}

	engine := New(Config{Completer: stub, Concurrency: 2})
	if _, err := engine.Classify(context.Background(), testPapers(4), progress); err != nil {
		t.Fatalf("Classify: %v", err)
	}

	if len(calls) != 5 {
		t.Fatalf("expected 5 progress calls, got %d", len(calls))
	}
	if calls[0].done != 0 || calls[0].total != 4 {
		t.Fatalf("first call must be (0, total), got %+v", calls[0])
	}
	for i, c := range calls[1:] {
		if c.done != i+1 || c.total != 4 {
			t.Fatalf("running count out of order: %+v", calls)
		}
	}
}

func TestClassifyInterestTagScenario(t *testing.T) {
	t.Parallel()

	// Batch of 3, concurrency 2; only the second paper matches the
	// configured "robotics" tag.
	stub := newStubCompleter(func(title string, attempt int) (string, error) {
		if title == "paper-2" {
			return validResponse(`["robotics"]`), nil
		}
		return validResponse(`[]`), nil
	})

	engine := New(Config{
		Completer:    stub,
		Concurrency:  2,
		InterestTags: []domain.InterestTag{{Label: "robotics"}},
	})
	got, err := engine.Classify(context.Background(), testPapers(3), nil)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	for i, paper := range got {
		if paper.Order != i+1 {
			t.Fatalf("order sequence broken: %+v", got)
		}
	}
	if len(got[0].InterestTags) != 0 || len(got[2].InterestTags) != 0 {
		t.Fatalf("papers 1 and 3 must have no tags: %+v", got)
	}
	if len(got[1].InterestTags) != 1 || got[1].InterestTags[0] != "robotics" {
		t.Fatalf("paper 2 must be tagged robotics: %+v", got[1])
	}
}

func TestClassifyEmptyBatch(t *testing.T) {
	t.Parallel()

	engine := New(Config{Completer: newStubCompleter(nil), Concurrency: 2})
	called := false
	got, err := engine.Classify(context.Background(), nil, func(done, total int) { called = true })
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %v", got)
	}
	if !called {
		t.Fatal("progress should still announce (0, 0)")
	}
}

func TestPromptIncludesTaxonomyAndTags(t *testing.T) {
	t.Parallel()

	paper := testPapers(1)[0]
	prompt := buildUserPrompt(paper, []domain.InterestTag{
		{Label: "robotics", Description: "robot learning", Keywords: []string{"manipulation"}},
	}, "en")

	for _, want := range []string{
		"primary_area:", "secondary_focus:", "application_domain:",
		"text_models", "robotics", "robot learning", "manipulation",
		"- Title: paper-1",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}

	bare := buildUserPrompt(paper, nil, "en")
	if strings.Contains(bare, "interest_tags") {
		t.Fatal("prompt without configured tags must not mention interest_tags")
	}
}
