package logging

import (
	"context"
	"log/slog"
	"sync"
)

// Record is a flattened snapshot of one log record.
type Record struct {
	Level   slog.Level
	Message string
	Attrs   map[string]slog.Value
}

type recordStore struct {
	mu      sync.Mutex
	records []Record
}

// Collector is a slog.Handler that keeps every record in memory. The run
// supervisor reads structured attributes (like paper counts) out of it after
// a pipeline run instead of scraping console output. Handlers derived with
// WithAttrs share the same record store.
type Collector struct {
	store *recordStore
	attrs []slog.Attr
}

var _ slog.Handler = (*Collector)(nil)

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{store: &recordStore{}}
}

// Enabled reports true for all levels; filtering happens on the console side.
func (c *Collector) Enabled(context.Context, slog.Level) bool {
	return true
}

// Handle stores the record.
func (c *Collector) Handle(_ context.Context, record slog.Record) error {
	flat := Record{
		Level:   record.Level,
		Message: record.Message,
		Attrs:   make(map[string]slog.Value),
	}
	for _, attr := range c.attrs {
		flat.Attrs[attr.Key] = attr.Value
	}
	record.Attrs(func(attr slog.Attr) bool {
		flat.Attrs[attr.Key] = attr.Value
		return true
	})

	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	c.store.records = append(c.store.records, flat)
	return nil
}

// WithAttrs returns a handler sharing this collector's record store.
func (c *Collector) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(c.attrs)+len(attrs))
	merged = append(merged, c.attrs...)
	merged = append(merged, attrs...)
	return &Collector{store: c.store, attrs: merged}
}

// WithGroup is accepted but flattens the group away; attribute keys stay
// unqualified so lookups remain simple.
func (c *Collector) WithGroup(string) slog.Handler {
	return c
}

// Records returns a copy of everything collected so far.
func (c *Collector) Records() []Record {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	out := make([]Record, len(c.store.records))
	copy(out, c.store.records)
	return out
}

// Reset drops all collected records.
func (c *Collector) Reset() {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	c.store.records = nil
}

// LastInt returns the most recent integer attribute with the given key.
func (c *Collector) LastInt(key string) (int64, bool) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	for i := len(c.store.records) - 1; i >= 0; i-- {
		value, ok := c.store.records[i].Attrs[key]
		if !ok {
			continue
		}
		if value.Kind() == slog.KindInt64 {
			return value.Int64(), true
		}
	}
	return 0, false
}
