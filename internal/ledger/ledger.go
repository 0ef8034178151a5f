// Package ledger tracks per-day, per-stage pipeline completion in a single
// JSON document, enabling safe resume after partial runs.
package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Stage names recorded by the pipeline.
const (
	StageScrape   = "scrape"
	StageClassify = "classify"
	StageSend     = "send"
)

// Stages lists all pipeline stages in causal order.
var Stages = []string{StageScrape, StageClassify, StageSend}

// StageRecord describes one completed stage for one day. RawFiles and
// DailyFile are stage-specific artifact pointers; only the stage that owns
// them fills them in.
type StageRecord struct {
	Completed bool      `json:"completed"`
	Timestamp time.Time `json:"timestamp,omitzero"`
	RawFiles  []string  `json:"raw_files,omitempty"`
	DailyFile string    `json:"daily_file,omitempty"`
}

// Document is the full on-disk shape: day (ISO date) -> stage -> record.
type Document map[string]map[string]StageRecord

// Ledger persists stage completion with read-modify-write semantics over
// one JSON file. Every mutation re-reads the on-disk state before merging,
// so edits made by other tools between mutations are preserved. Writes
// replace the file atomically (write-temp-then-rename); a crash mid-write
// loses at most the latest unwritten mutation.
//
// The ledger does not synchronise concurrent writers; the orchestrator is
// its sole writer within one process.
type Ledger struct {
	path string
	now  func() time.Time
}

// New returns a ledger backed by the JSON document at path. The file and
// its parent directory are created lazily on the first mutation.
func New(path string) *Ledger {
	return &Ledger{path: path, now: func() time.Time { return time.Now().UTC() }}
}

// Path returns the backing file location.
func (l *Ledger) Path() string {
	return l.path
}

// Load reads the full document. A missing or unreadable file yields an
// empty document rather than an error: a corrupt ledger only costs the
// resume optimisation, never the run.
func (l *Ledger) Load() Document {
	raw, err := os.ReadFile(l.path)
	if err != nil {
		return Document{}
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}
	}
	if doc == nil {
		doc = Document{}
	}
	return doc
}

// IsStageDone reports whether stage is marked completed for day.
func (l *Ledger) IsStageDone(day, stage string) bool {
	return l.StageInfo(day, stage).Completed
}

// StageInfo returns the record stored for stage on day, or a zero record
// if absent.
func (l *Ledger) StageInfo(day, stage string) StageRecord {
	return l.Load()[day][stage]
}

// MarkStage records stage as completed for day, stamping the current UTC
// time and merging the artifact pointers from rec, and persists before
// returning.
func (l *Ledger) MarkStage(day, stage string, rec StageRecord) error {
	doc := l.Load()
	dayStatus := doc[day]
	if dayStatus == nil {
		dayStatus = map[string]StageRecord{}
		doc[day] = dayStatus
	}
	rec.Completed = true
	rec.Timestamp = l.now()
	dayStatus[stage] = rec
	return l.save(doc)
}

// ClearStage removes the named stage records for day and persists.
func (l *Ledger) ClearStage(day string, stages ...string) error {
	doc := l.Load()
	dayStatus, ok := doc[day]
	if !ok {
		return nil
	}
	for _, stage := range stages {
		delete(dayStatus, stage)
	}
	return l.save(doc)
}

// RecentDays returns the day statuses for the last n calendar days
// (today included) that have any recorded stage, newest first.
func (l *Ledger) RecentDays(n int) Document {
	doc := l.Load()
	result := Document{}
	today := l.now().Truncate(24 * time.Hour)
	for i := 0; i < n; i++ {
		day := today.AddDate(0, 0, -i).Format("2006-01-02")
		if status, ok := doc[day]; ok {
			result[day] = status
		}
	}
	return result
}

func (l *Ledger) save(doc Document) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(l.path)+".tmp")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp ledger: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}
