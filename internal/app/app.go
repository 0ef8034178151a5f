package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"PaperDigest/internal/classifier"
	"PaperDigest/internal/config"
	"PaperDigest/internal/domain"
	"PaperDigest/internal/infrastructure/arxiv"
	"PaperDigest/internal/infrastructure/feishu"
	"PaperDigest/internal/infrastructure/llm"
	"PaperDigest/internal/infrastructure/schedule"
	"PaperDigest/internal/infrastructure/storage"
	"PaperDigest/internal/infrastructure/telegram"
	"PaperDigest/internal/ledger"
	"PaperDigest/internal/logging"
	"PaperDigest/internal/ports"
	"PaperDigest/internal/scanner"
	"PaperDigest/internal/usecase"
)

// Application wires configuration to the pipeline, supervisor and scheduler.
type Application struct {
	cfg        config.Config
	logger     *slog.Logger
	pipeline   *usecase.Pipeline
	supervisor *usecase.Supervisor
	scheduler  ports.Scheduler
	index      *storage.Index
}

// New builds a runnable application instance from configuration.
func New(cfg config.Config) (*Application, error) {
	logger, collector := logging.NewWithCollector(cfg.Logging.Level)

	registry := scanner.NewRegistry()
	registry.Register(arxiv.NewAPIScanner(nil))
	registry.Register(arxiv.NewListingScanner(nil))
	source := arxiv.NewSource(registry, cfg.Source.Scanner, cfg.Source.MaxResults,
		logger.With("component", "source"))

	completer, err := llm.NewClient(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey,
		Temperature: cfg.LLM.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("build llm client: %w", err)
	}

	engine := classifier.New(classifier.Config{
		Completer:    completer,
		InterestTags: interestTags(cfg.Subscriptions.InterestTags),
		Concurrency:  cfg.LLM.MaxConcurrency,
		Language:     cfg.Language,
		Logger:       logger.With("component", "classifier"),
	})

	notifiers, channels := buildNotifiers(cfg.Channels, logger)

	var index *storage.Index
	if cfg.Data.IndexFile != "" {
		index, err = storage.OpenIndex(cfg.Data.IndexFile)
		if err != nil {
			logger.Warn("query index unavailable", "path", cfg.Data.IndexFile, "error", err)
			index = nil
		}
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:     source,
		Analyzer:   engine,
		Notifiers:  notifiers,
		Ledger:     ledger.New(cfg.Data.StatusFile),
		Store:      storage.NewStore(cfg.Data.ArchiveDir, cfg.Data.DailyDir),
		Index:      index,
		Categories: cfg.Subscriptions.Categories,
		RawDir:     cfg.Data.RawDir,
		Logger:     logger,
	})

	supervisor := usecase.NewSupervisor(pipeline, collector, channels, len(cfg.Subscriptions.Categories))

	return &Application{
		cfg:        cfg,
		logger:     logger,
		pipeline:   pipeline,
		supervisor: supervisor,
		scheduler: schedule.NewDailyRetry(
			time.Duration(cfg.Schedule.IntervalMinutes)*time.Minute,
			cfg.Schedule.MaxAttempts,
		),
		index: index,
	}, nil
}

// Logger exposes the application logger.
func (a *Application) Logger() *slog.Logger {
	return a.logger
}

// RunOnce executes a single supervised pipeline run.
func (a *Application) RunOnce(ctx context.Context, targetDate string, onProgress func(done, total int)) usecase.RunResult {
	return a.supervisor.Run(ctx, usecase.RunOptions{
		TargetDate:         targetDate,
		OnClassifyProgress: onProgress,
	})
}

// RunDaemon keeps running until the context ends, attempting the pipeline on
// the configured schedule.
func (a *Application) RunDaemon(ctx context.Context) error {
	err := a.scheduler.Start(ctx, func(now time.Time) bool {
		result := a.supervisor.Run(ctx, usecase.RunOptions{})
		a.logger.Info("scheduled run finished",
			"status", result.Status, "date", result.Date, "summary", result.Summary)
		return result.Succeeded()
	})
	if err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	<-ctx.Done()
	return a.scheduler.Stop(context.Background())
}

// ScrapeOnly runs just the scrape stage.
func (a *Application) ScrapeOnly(ctx context.Context, targetDate string) ([]string, error) {
	return a.pipeline.RunScrapeOnly(ctx, targetDate)
}

// Status returns ledger records for the most recent days.
func (a *Application) Status(days int) ledger.Document {
	return a.pipeline.QueryStatus(days)
}

// QueryPapers looks up classified papers in the index.
func (a *Application) QueryPapers(ctx context.Context, keyword, day string) ([]domain.Paper, error) {
	if a.index == nil {
		return nil, fmt.Errorf("query index not configured")
	}
	return a.index.Query(ctx, keyword, day)
}

// Close releases long-lived resources.
func (a *Application) Close() error {
	if a.index != nil {
		return a.index.Close()
	}
	return nil
}

func buildNotifiers(channels []config.ChannelConfig, logger *slog.Logger) ([]ports.Notifier, []string) {
	var notifiers []ports.Notifier
	var names []string
	for _, ch := range channels {
		switch ch.Type {
		case "feishu":
			delay := time.Duration(ch.DelaySeconds * float64(time.Second))
			notifiers = append(notifiers, feishu.NewNotifier(ch.WebhookURL, delay, ch.ExcludeTags))
			names = append(names, ch.Type)
		case "telegram":
			notifiers = append(notifiers, telegram.NewNotifier(ch.BotToken, ch.ChatID, ch.ExcludeTags))
			names = append(names, ch.Type)
		default:
			logger.Warn("unknown notification channel", "type", ch.Type)
		}
	}
	return notifiers, names
}

func interestTags(tags []config.InterestTagConfig) []domain.InterestTag {
	out := make([]domain.InterestTag, 0, len(tags))
	for _, tag := range tags {
		out = append(out, domain.InterestTag{
			Label:       tag.Label,
			Description: tag.Description,
			Keywords:    tag.Keywords,
		})
	}
	return out
}
