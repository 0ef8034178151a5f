package ports

import (
	"context"
	"time"

	"PaperDigest/internal/domain"
)

// Source pulls fresh papers from an upstream provider, grouped by category.
type Source interface {
	// ResolveTargetDate parses an explicit YYYY-MM-DD date, or picks the
	// most recent non-weekend day before today when target is empty.
	ResolveTargetDate(target string) (time.Time, error)
	Fetch(ctx context.Context, categories []string, day time.Time) (map[string][]domain.Paper, error)
	// SaveRaw persists grouped papers under rawDir and returns the created
	// artifact paths.
	SaveRaw(grouped map[string][]domain.Paper, rawDir string) ([]string, error)
}

// Analyzer enriches a batch of papers, preserving input order.
type Analyzer interface {
	Classify(ctx context.Context, papers []domain.Paper, progress func(done, total int)) ([]domain.Paper, error)
}

// Completer calls an external text-generation capability.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Notifier delivers a digest of enriched papers through one channel.
type Notifier interface {
	Type() string
	SendDigest(ctx context.Context, papers []domain.Paper) error
}

// Scheduler controls when pipeline runs execute. The job reports whether
// the day's pipeline reached a terminal state; the scheduler may retry
// until it does.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time) bool) error
	Stop(ctx context.Context) error
}
