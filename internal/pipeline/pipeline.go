// Package pipeline runs a consolidation as an ordered sequence of steps over
// a shared state: consolidate, categorize, detect transfers, compute
// balances, summarize, suggest and export.
package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/ledger-consolidator/internal/balance"
	"github.com/dvloznov/ledger-consolidator/internal/categorizer"
	"github.com/dvloznov/ledger-consolidator/internal/domain"
	"github.com/dvloznov/ledger-consolidator/internal/export"
	"github.com/dvloznov/ledger-consolidator/internal/logger"
	"github.com/dvloznov/ledger-consolidator/internal/report"
	"github.com/dvloznov/ledger-consolidator/internal/suggest"
	"github.com/dvloznov/ledger-consolidator/internal/transfer"
	"github.com/shopspring/decimal"
)

// PipelineStep represents a single step in the consolidation pipeline.
type PipelineStep interface {
	Name() string
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	RunID   string
	Batches []*domain.Batch

	// OpeningBalances starts as the configured balances; ConsolidateStep
	// merges the parser-detected ones over it.
	OpeningBalances map[string]decimal.Decimal

	Ledger  []*domain.Transaction
	Dropped int

	Categorization categorizer.Result
	Transfers      transfer.Result
	Balances       *balance.Result
	Report         *report.Report
	Suggestions    []suggest.Suggestion
	Exported       []string
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Steps returns the step names in execution order.
func (p *Pipeline) Steps() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name()
	}
	return names
}

// Execute runs all steps in the pipeline sequentially and stops at the first failure.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)

	for i, step := range p.steps {
		log.Debug().Int("step", i+1).Str("name", step.Name()).Msg("Running pipeline step")
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d (%s) failed: %w", i+1, step.Name(), err)
		}
	}
	return nil
}

// Options are the collaborators of the standard consolidation pipeline.
type Options struct {
	Registry  *categorizer.Registry
	Detector  *transfer.Detector
	Suggester Suggester // nil disables the suggest step
	Exporters []export.Exporter
}

// Suggester proposes categories for uncategorized rows.
type Suggester interface {
	Suggest(ctx context.Context, ledger []*domain.Transaction) ([]suggest.Suggestion, error)
}

// NewConsolidationPipeline creates the standard consolidation pipeline.
func NewConsolidationPipeline(opts Options) *Pipeline {
	steps := []PipelineStep{
		&ConsolidateStep{},
		&CategorizeStep{Registry: opts.Registry},
		&DetectTransfersStep{Detector: opts.Detector},
		&ComputeBalancesStep{},
		&SummarizeStep{},
	}
	if opts.Suggester != nil {
		steps = append(steps, &SuggestStep{Suggester: opts.Suggester})
	}
	steps = append(steps, &ExportStep{Exporters: opts.Exporters})
	return NewPipeline(steps...)
}

// RunTracker records the outcome of a consolidation run.
type RunTracker interface {
	MarkConsolidationRunFailed(ctx context.Context, runID string, runErr error)
	MarkConsolidationRunSucceeded(ctx context.Context, runID string, rowCount int) error
}

// ExecuteTracked runs p and marks the run as succeeded or failed on tracker.
// A nil tracker just runs the pipeline.
func ExecuteTracked(ctx context.Context, p *Pipeline, state *PipelineState, tracker RunTracker) error {
	err := p.Execute(ctx, state)
	if tracker == nil {
		return err
	}
	if err != nil {
		tracker.MarkConsolidationRunFailed(ctx, state.RunID, err)
		return err
	}
	if err := tracker.MarkConsolidationRunSucceeded(ctx, state.RunID, len(state.Ledger)); err != nil {
		return fmt.Errorf("ExecuteTracked: %w", err)
	}
	return nil
}
