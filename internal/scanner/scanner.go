package scanner

import (
	"context"
	"fmt"
	"time"

	"PaperDigest/internal/domain"
)

// Request carries all parameters required to execute one scan.
type Request struct {
	Day        time.Time
	Categories []string
	MaxResults int
}

// Scanner captures a single fetch strategy (arXiv API, arXiv listing
// pages, etc.). Scan returns the day's papers grouped by category.
type Scanner interface {
	Name() string
	Scan(ctx context.Context, req Request) (map[string][]domain.Paper, error)
}

// Registry keeps a mapping from scanner names to their implementations.
type Registry struct {
	scanners map[string]Scanner
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[string]Scanner{}}
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(s Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[s.Name()] = s
}

// Resolve returns a scanner by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Scanner, error) {
	if s, ok := r.scanners[name]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("scanner %s is not registered", name)
}
