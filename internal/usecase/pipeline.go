package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/infrastructure/storage"
	"PaperDigest/internal/ledger"
	"PaperDigest/internal/ports"
)

// Pipeline run statuses.
const (
	StatusCompleted        = "completed"
	StatusAlreadyCompleted = "already_completed"
	StatusNoPapers         = "no_papers"
)

// ErrNoPapers reports that the raw artifacts held nothing to classify.
var ErrNoPapers = errors.New("no papers to classify")

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source     ports.Source
	Analyzer   ports.Analyzer
	Notifiers  []ports.Notifier
	Ledger     *ledger.Ledger
	Store      *storage.Store
	Index      *storage.Index
	Categories []string
	RawDir     string
	Logger     *slog.Logger
}

// Pipeline coordinates the scrape, classify and send stages for one day,
// resuming from the completion ledger when a previous run got partway.
type Pipeline struct {
	source     ports.Source
	analyzer   ports.Analyzer
	notifiers  []ports.Notifier
	ledger     *ledger.Ledger
	store      *storage.Store
	index      *storage.Index
	categories []string
	rawDir     string
	logger     *slog.Logger
}

// RunOptions tune a single pipeline invocation.
type RunOptions struct {
	// TargetDate is an explicit YYYY-MM-DD day; empty means the most
	// recent non-weekend day.
	TargetDate string
	// OnStage receives (stage, event) callbacks with event "start" or
	// "done".
	OnStage func(stage, event string)
	// OnClassifyProgress receives completion counts during classification.
	OnClassifyProgress func(done, total int)
}

// PipelineResult reports the terminal state of a run.
type PipelineResult struct {
	Status    string
	Date      string
	DailyFile string
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		source:     deps.Source,
		analyzer:   deps.Analyzer,
		notifiers:  deps.Notifiers,
		ledger:     deps.Ledger,
		store:      deps.Store,
		index:      deps.Index,
		categories: deps.Categories,
		rawDir:     deps.RawDir,
		logger:     logger.With("component", "pipeline"),
	}
}

// RunFullPipeline executes scrape, classify and send for the resolved day.
// Completed stages are skipped when their artifacts still exist; missing
// artifacts force the stage (and everything downstream) to rerun.
func (p *Pipeline) RunFullPipeline(ctx context.Context, opts RunOptions) (PipelineResult, error) {
	day, err := p.source.ResolveTargetDate(opts.TargetDate)
	if err != nil {
		return PipelineResult{}, fmt.Errorf("resolve target date: %w", err)
	}
	dayKey := day.Format("2006-01-02")

	if p.ledger.IsStageDone(dayKey, ledger.StageSend) {
		p.logger.Info("pipeline already completed", "date", dayKey)
		return PipelineResult{Status: StatusAlreadyCompleted, Date: dayKey}, nil
	}

	notifyStage(opts.OnStage, ledger.StageScrape, "start")
	rawFiles, err := p.stageScrape(ctx, dayKey, day)
	if err != nil {
		return PipelineResult{}, err
	}
	notifyStage(opts.OnStage, ledger.StageScrape, "done")
	if len(rawFiles) == 0 {
		p.logger.Info("no papers found", "date", dayKey)
		return PipelineResult{Status: StatusNoPapers, Date: dayKey}, nil
	}

	notifyStage(opts.OnStage, ledger.StageClassify, "start")
	dailyFile, err := p.stageClassify(ctx, dayKey, rawFiles, opts.OnClassifyProgress)
	if err != nil {
		if errors.Is(err, ErrNoPapers) {
			p.logger.Info("no papers found", "date", dayKey)
			return PipelineResult{Status: StatusNoPapers, Date: dayKey}, nil
		}
		return PipelineResult{}, err
	}
	notifyStage(opts.OnStage, ledger.StageClassify, "done")

	notifyStage(opts.OnStage, ledger.StageSend, "start")
	if err := p.stageSend(ctx, dayKey, dailyFile); err != nil {
		return PipelineResult{}, err
	}
	notifyStage(opts.OnStage, ledger.StageSend, "done")

	return PipelineResult{Status: StatusCompleted, Date: dayKey, DailyFile: dailyFile}, nil
}

// RunScrapeOnly executes just the scrape stage and returns the raw artifact
// paths.
func (p *Pipeline) RunScrapeOnly(ctx context.Context, targetDate string) ([]string, error) {
	day, err := p.source.ResolveTargetDate(targetDate)
	if err != nil {
		return nil, fmt.Errorf("resolve target date: %w", err)
	}
	return p.stageScrape(ctx, day.Format("2006-01-02"), day)
}

// QueryStatus returns the ledger records for the most recent days.
func (p *Pipeline) QueryStatus(days int) ledger.Document {
	return p.ledger.RecentDays(days)
}

func (p *Pipeline) stageScrape(ctx context.Context, dayKey string, day time.Time) ([]string, error) {
	info := p.ledger.StageInfo(dayKey, ledger.StageScrape)
	if info.Completed {
		if rawFiles := existingFiles(info.RawFiles); len(rawFiles) > 0 {
			p.logger.Info("scrape already completed, reusing raw files",
				"date", dayKey, "raw_files", len(rawFiles))
			return rawFiles, nil
		}
		// Raw artifacts vanished; the whole chain has to rerun.
		if err := p.ledger.ClearStage(dayKey, ledger.Stages...); err != nil {
			return nil, fmt.Errorf("clear stale stages: %w", err)
		}
	}

	if len(p.categories) == 0 {
		p.logger.Warn("no categories configured, skipping scrape")
		return nil, nil
	}

	grouped, err := p.source.Fetch(ctx, p.categories, day)
	if err != nil {
		return nil, fmt.Errorf("fetch papers: %w", err)
	}
	rawFiles, err := p.source.SaveRaw(grouped, p.rawDir)
	if err != nil {
		return nil, fmt.Errorf("save raw artifacts: %w", err)
	}

	total := 0
	for _, papers := range grouped {
		total += len(papers)
	}
	p.logger.Info("scrape complete",
		"date", dayKey, "paper_count", total, "categories", len(grouped))

	if len(rawFiles) > 0 {
		if err := p.ledger.MarkStage(dayKey, ledger.StageScrape, ledger.StageRecord{RawFiles: rawFiles}); err != nil {
			return nil, fmt.Errorf("mark scrape stage: %w", err)
		}
		// Fresh raw data invalidates any older downstream results.
		if err := p.ledger.ClearStage(dayKey, ledger.StageClassify, ledger.StageSend); err != nil {
			return nil, fmt.Errorf("clear downstream stages: %w", err)
		}
	}
	return rawFiles, nil
}

func (p *Pipeline) stageClassify(ctx context.Context, dayKey string, rawFiles []string, progress func(done, total int)) (string, error) {
	info := p.ledger.StageInfo(dayKey, ledger.StageClassify)
	if info.Completed {
		if info.DailyFile != "" && fileExists(info.DailyFile) {
			p.logger.Info("classification already completed, reusing daily file",
				"date", dayKey, "daily_file", info.DailyFile)
			return info.DailyFile, nil
		}
		if err := p.ledger.ClearStage(dayKey, ledger.StageClassify, ledger.StageSend); err != nil {
			return "", fmt.Errorf("clear stale stages: %w", err)
		}
	}

	papers := storage.CombinePapers(rawFiles)
	if len(papers) == 0 {
		return "", ErrNoPapers
	}

	classified, err := p.analyzer.Classify(ctx, papers, progress)
	if err != nil {
		return "", fmt.Errorf("classify papers: %w", err)
	}

	archivePaths, err := p.store.ArchiveFiles(classified)
	if err != nil {
		return "", fmt.Errorf("archive classified papers: %w", err)
	}
	dailyFile, err := p.store.DailyFile(classified, rawFiles)
	if err != nil {
		return "", fmt.Errorf("write daily file: %w", err)
	}
	p.indexPapers(ctx, dayKey, classified)

	p.logger.Info("classification complete",
		"date", dayKey, "paper_count", len(classified),
		"daily_file", dailyFile, "archive_files", len(archivePaths))

	if err := p.ledger.MarkStage(dayKey, ledger.StageClassify, ledger.StageRecord{DailyFile: dailyFile}); err != nil {
		return "", fmt.Errorf("mark classify stage: %w", err)
	}
	return dailyFile, nil
}

func (p *Pipeline) stageSend(ctx context.Context, dayKey, dailyFile string) error {
	if p.ledger.IsStageDone(dayKey, ledger.StageSend) {
		p.logger.Info("send already completed, skipping", "date", dayKey)
		return nil
	}

	artifact, err := storage.LoadDaily(dailyFile)
	if err != nil {
		return fmt.Errorf("load daily file: %w", err)
	}
	if len(artifact.Papers) == 0 {
		p.logger.Info("daily file holds no papers, skipping send", "date", dayKey)
		return nil
	}
	if len(p.notifiers) == 0 {
		p.logger.Warn("no notification channels configured, skipping send", "date", dayKey)
		return nil
	}

	for _, notifier := range p.notifiers {
		if err := notifier.SendDigest(ctx, artifact.Papers); err != nil {
			return fmt.Errorf("send digest via %s: %w", notifier.Type(), err)
		}
		p.logger.Info("digest sent", "date", dayKey, "channel", notifier.Type())
	}

	if err := p.ledger.MarkStage(dayKey, ledger.StageSend, ledger.StageRecord{}); err != nil {
		return fmt.Errorf("mark send stage: %w", err)
	}
	return nil
}

// indexPapers mirrors the classified batch into the query index; failures
// are logged and swallowed since the index is a convenience, not a stage.
func (p *Pipeline) indexPapers(ctx context.Context, dayKey string, papers []domain.Paper) {
	if p.index == nil {
		return
	}
	if err := p.index.UpsertPapers(ctx, dayKey, papers); err != nil {
		p.logger.Warn("index update failed", "date", dayKey, "error", err)
	}
}

func notifyStage(onStage func(stage, event string), stage, event string) {
	if onStage != nil {
		onStage(stage, event)
	}
}

func existingFiles(paths []string) []string {
	var out []string
	for _, path := range paths {
		if fileExists(path) {
			out = append(out, path)
		}
	}
	return out
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
