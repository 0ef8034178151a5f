package usecase

import (
	"context"
	"fmt"
	"strings"

	"PaperDigest/internal/ledger"
	"PaperDigest/internal/logging"
)

// StatusError marks a run that ended with a pipeline failure.
const StatusError = "error"

type pipelineRunner interface {
	RunFullPipeline(ctx context.Context, opts RunOptions) (PipelineResult, error)
}

// RunResult is the supervisor's structured report of one pipeline run.
type RunResult struct {
	Status     string            `json:"status"`
	Date       string            `json:"date"`
	Stages     map[string]string `json:"stages"`
	PaperCount int               `json:"paper_count"`
	Summary    string            `json:"summary"`
	Errors     []string          `json:"errors,omitempty"`
}

// Succeeded reports whether the run reached a terminal state that needs no
// retry.
func (r RunResult) Succeeded() bool {
	return r.Status != StatusError
}

// Supervisor wraps pipeline execution and produces concise reports. Instead
// of scraping console output it reads structured attributes out of a log
// collector the pipeline logger fans out to.
type Supervisor struct {
	pipeline  pipelineRunner
	collector *logging.Collector
	channels  []string
	categoryN int
}

// NewSupervisor wires the supervisor over a pipeline. collector may be nil
// when paper counts are not needed; channels and categoryCount only feed the
// human-readable summary.
func NewSupervisor(pipeline pipelineRunner, collector *logging.Collector, channels []string, categoryCount int) *Supervisor {
	return &Supervisor{
		pipeline:  pipeline,
		collector: collector,
		channels:  channels,
		categoryN: categoryCount,
	}
}

// Run executes the pipeline once and reports per-stage outcomes. Pipeline
// errors and panics are converted into an "error" result rather than
// propagated, so a scheduling loop can decide whether to retry.
func (s *Supervisor) Run(ctx context.Context, opts RunOptions) (result RunResult) {
	stages := make(map[string]string)
	result = RunResult{Stages: stages, Date: opts.TargetDate}

	if s.collector != nil {
		s.collector.Reset()
	}

	wrapped := opts
	callerOnStage := opts.OnStage
	wrapped.OnStage = func(stage, event string) {
		switch event {
		case "start":
			stages[stage] = "running"
		case "done":
			stages[stage] = "ok"
		}
		if callerOnStage != nil {
			callerOnStage(stage, event)
		}
	}

	defer func() {
		if r := recover(); r != nil {
			s.recordFailure(&result, fmt.Sprintf("panic: %v", r))
		}
		for _, stage := range ledger.Stages {
			if _, ok := stages[stage]; !ok {
				stages[stage] = "skipped"
			}
		}
		result.PaperCount = s.paperCount()
		result.Summary = s.buildSummary(result)
	}()

	pipelineResult, err := s.pipeline.RunFullPipeline(ctx, wrapped)
	if err != nil {
		s.recordFailure(&result, err.Error())
		return result
	}

	result.Status = pipelineResult.Status
	result.Date = pipelineResult.Date
	return result
}

func (s *Supervisor) recordFailure(result *RunResult, message string) {
	result.Status = StatusError
	result.Errors = append(result.Errors, message)
	for stage, state := range result.Stages {
		if state == "running" {
			result.Stages[stage] = "failed"
		}
	}
}

func (s *Supervisor) paperCount() int {
	if s.collector == nil {
		return 0
	}
	count, ok := s.collector.LastInt("paper_count")
	if !ok {
		return 0
	}
	return int(count)
}

func (s *Supervisor) buildSummary(result RunResult) string {
	switch result.Status {
	case StatusError:
		failed := "unknown"
		for _, stage := range ledger.Stages {
			if result.Stages[stage] == "failed" {
				failed = stage
				break
			}
		}
		detail := "unknown error"
		if len(result.Errors) > 0 {
			detail = result.Errors[0]
		}
		return fmt.Sprintf("Pipeline failed at %s stage: %s", failed, detail)

	case StatusNoPapers:
		return "No papers found for the target date."

	case StatusAlreadyCompleted:
		return "Pipeline already completed for this date; nothing to do."

	case StatusCompleted:
		parts := []string{
			fmt.Sprintf("Scraped %d papers across %d categories", result.PaperCount, s.categoryN),
			fmt.Sprintf("classified %d", result.PaperCount),
		}
		if result.Stages[ledger.StageSend] == "ok" && len(s.channels) > 0 {
			parts = append(parts, "sent via "+strings.Join(s.channels, ", "))
		} else {
			parts = append(parts, "no notification channel configured")
		}
		return strings.Join(parts, ", ") + "."
	}

	return fmt.Sprintf("Pipeline finished with status: %s.", result.Status)
}
