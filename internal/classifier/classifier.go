// Package classifier enriches paper batches by calling an external
// text-generation service under bounded concurrency.
package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
)

const maxAttempts = 3

const (
	arxivAbsPrefix  = "https://arxiv.org/abs/"
	mirrorURLPrefix = "https://papers.cool/arxiv/"
)

// ClassificationError is the terminal failure for one paper after all
// retry attempts are exhausted.
type ClassificationError struct {
	ArxivID  string
	Attempts int
	Err      error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classify paper %s failed after %d attempts: %v", e.ArxivID, e.Attempts, e.Err)
}

func (e *ClassificationError) Unwrap() error {
	return e.Err
}

// Config wires an Engine.
type Config struct {
	Completer    ports.Completer
	InterestTags []domain.InterestTag
	Concurrency  int
	Language     string
	Logger       *slog.Logger
}

// Engine classifies paper batches. At most Concurrency completion requests
// are in flight at once; a paper's slot is held across its whole attempt
// sequence so retries of a slow item cannot be starved by fresh work.
type Engine struct {
	completer ports.Completer
	tags      []domain.InterestTag
	bound     int64
	language  string
	logger    *slog.Logger
}

var _ ports.Analyzer = (*Engine)(nil)

// New builds an engine. Concurrency defaults to 10, nil loggers are
// replaced with a discard logger.
func New(cfg Config) *Engine {
	bound := int64(cfg.Concurrency)
	if bound <= 0 {
		bound = 10
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		completer: cfg.Completer,
		tags:      normalizeConfiguredTags(cfg.InterestTags),
		bound:     bound,
		language:  cfg.Language,
		logger:    logger,
	}
}

// Classify enriches every paper and returns the batch in input order,
// independent of completion order. progress, when non-nil, is called once
// with (0, N) before work starts and then once per completed paper in
// completion order with the running count. If any paper exhausts its
// retries the whole batch fails with the first terminal error.
func (e *Engine) Classify(ctx context.Context, papers []domain.Paper, progress func(done, total int)) ([]domain.Paper, error) {
	total := len(papers)
	if progress != nil {
		progress(0, total)
	}
	if total == 0 {
		return nil, nil
	}

	results := make([]domain.Paper, total)
	sem := semaphore.NewWeighted(e.bound)
	var completed atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	for i, paper := range papers {
		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			enriched, err := e.classifyOne(ctx, paper, i+1)
			if err != nil {
				return err
			}
			results[i] = enriched
			if progress != nil {
				progress(int(completed.Add(1)), total)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// classifyOne runs the retry-and-repair loop for a single paper. ord is
// the paper's 1-based input position, stamped regardless of completion
// order.
func (e *Engine) classifyOne(ctx context.Context, paper domain.Paper, ord int) (domain.Paper, error) {
	basePrompt := buildUserPrompt(paper, e.tags, e.language)
	system := systemPrompt(e.language)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		prompt := basePrompt
		if attempt > 1 {
			prompt += repairHint
		}

		raw, err := e.completer.Complete(ctx, system, prompt)
		if err == nil {
			var result classification
			result, err = parseClassification(raw)
			if err == nil {
				return enrich(paper, result, ord), nil
			}
		}
		lastErr = err
		e.logger.Warn("classification attempt failed",
			"paper", paper.ArxivID, "attempt", attempt, "max_attempts", maxAttempts, "error", err)
	}

	return domain.Paper{}, &ClassificationError{ArxivID: paper.ArxivID, Attempts: maxAttempts, Err: lastErr}
}

func enrich(paper domain.Paper, result classification, ord int) domain.Paper {
	paper.PrimaryArea = result.PrimaryArea
	paper.SecondaryFocus = result.SecondaryFocus
	paper.ApplicationDomain = result.ApplicationDomain
	paper.TLDR = result.TLDR
	paper.InterestTags = result.InterestTags
	paper.Order = ord
	paper.MirrorURL = mirrorURL(paper.ArxivURL)
	return paper
}

// mirrorURL rewrites an arXiv abstract link to its papers.cool mirror.
// Other URLs pass through unchanged.
func mirrorURL(url string) string {
	if strings.HasPrefix(url, arxivAbsPrefix) {
		return mirrorURLPrefix + strings.TrimPrefix(url, arxivAbsPrefix)
	}
	return url
}

// normalizeConfiguredTags drops tags without a label and blank keywords so
// the prompt reference block never carries empty entries.
func normalizeConfiguredTags(tags []domain.InterestTag) []domain.InterestTag {
	var out []domain.InterestTag
	for _, tag := range tags {
		label := strings.TrimSpace(tag.Label)
		if label == "" {
			continue
		}
		var keywords []string
		for _, kw := range tag.Keywords {
			if kw = strings.TrimSpace(kw); kw != "" {
				keywords = append(keywords, kw)
			}
		}
		out = append(out, domain.InterestTag{
			Label:       label,
			Description: strings.TrimSpace(tag.Description),
			Keywords:    keywords,
		})
	}
	return out
}
