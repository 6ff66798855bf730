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
	"github.com/dvloznov/ledger-consolidator/internal/transfer"
	"github.com/shopspring/decimal"
)

// Consolidate concatenates batches into one normalized ledger sorted by
// accounting then effective date. Invalid rows are dropped and counted.
// Detected opening balances override the configured ones.
func Consolidate(batches []*domain.Batch, configured map[string]decimal.Decimal) (ledger []*domain.Transaction, opening map[string]decimal.Decimal, dropped int) {
	opening = make(map[string]decimal.Decimal, len(configured))
	for inst, amount := range configured {
		opening[inst] = amount
	}

	for _, b := range batches {
		if b == nil {
			continue
		}
		if b.OpeningBalance != nil && b.Institution != "" {
			opening[b.Institution] = *b.OpeningBalance
		}
		for _, tx := range b.Transactions {
			if tx == nil {
				continue
			}
			if tx.Institution == "" {
				tx.Institution = b.Institution
			}
			tx.Normalize()
			if !tx.Valid() {
				dropped++
				continue
			}
			ledger = append(ledger, tx)
		}
	}

	balance.Sort(ledger)
	return ledger, opening, dropped
}

// Step 1: ConsolidateStep builds the sorted ledger from the loaded batches.
type ConsolidateStep struct{}

func (s *ConsolidateStep) Name() string { return "consolidate" }

func (s *ConsolidateStep) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)

	state.Ledger, state.OpeningBalances, state.Dropped = Consolidate(state.Batches, state.OpeningBalances)

	log.Info().
		Int("batches", len(state.Batches)).
		Int("transactions", len(state.Ledger)).
		Int("dropped", state.Dropped).
		Msg("Ledger consolidated")
	return nil
}

// Step 2: CategorizeStep labels every row.
type CategorizeStep struct {
	Registry *categorizer.Registry
}

func (s *CategorizeStep) Name() string { return "categorize" }

func (s *CategorizeStep) Execute(ctx context.Context, state *PipelineState) error {
	if s.Registry == nil {
		return fmt.Errorf("no categorizer registry configured")
	}
	log := logger.FromContext(ctx)

	state.Categorization = s.Registry.Apply(state.Ledger)

	ev := log.Info().Int("overridden", state.Categorization.Overridden)
	for _, c := range domain.AllCategories {
		if n := state.Categorization.Counts[c]; n > 0 {
			ev = ev.Int(c.String(), n)
		}
	}
	ev.Msg("Ledger categorized")
	return nil
}

// Step 3: DetectTransfersStep relabels internal transfers.
type DetectTransfersStep struct {
	Detector *transfer.Detector
}

func (s *DetectTransfersStep) Name() string { return "detect_transfers" }

func (s *DetectTransfersStep) Execute(ctx context.Context, state *PipelineState) error {
	if s.Detector == nil {
		return fmt.Errorf("no transfer detector configured")
	}
	log := logger.FromContext(ctx)

	state.Transfers = s.Detector.Detect(state.Ledger)

	for _, pair := range state.Transfers.PairIDs {
		log.Debug().Str("out_id", pair[0]).Str("in_id", pair[1]).Msg("Transfer pair matched")
	}
	log.Info().
		Int("self_identified", state.Transfers.SelfIdentified).
		Int("pairs", state.Transfers.PairsMatched).
		Int("demoted", state.Transfers.Demoted).
		Int("relabeled", state.Transfers.Relabeled).
		Int("internal_transfers", state.Transfers.Final).
		Msg("Internal transfers detected")
	return nil
}

// Step 4: ComputeBalancesStep writes both running balances.
type ComputeBalancesStep struct{}

func (s *ComputeBalancesStep) Name() string { return "compute_balances" }

func (s *ComputeBalancesStep) Execute(ctx context.Context, state *PipelineState) error {
	res := balance.Compute(state.Ledger, state.OpeningBalances)
	state.Balances = &res

	log := logger.FromContext(ctx)
	log.Info().
		Str("balance_institution", res.InstitutionTotal.StringFixed(2)).
		Str("balance_real", res.Real.StringFixed(2)).
		Msg("Balances computed")
	return nil
}

// Step 5: SummarizeStep builds and logs the report.
type SummarizeStep struct{}

func (s *SummarizeStep) Name() string { return "summarize" }

func (s *SummarizeStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Report = report.Build(state.Ledger, state.Balances)
	state.Report.Summary.Log(logger.FromContext(ctx))
	return nil
}

// Step 6: SuggestStep asks the model about rows still labeled Other. Its
// output stays in state.Suggestions, and a model failure does not fail the run.
type SuggestStep struct {
	Suggester Suggester
}

func (s *SuggestStep) Name() string { return "suggest" }

func (s *SuggestStep) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)

	suggestions, err := s.Suggester.Suggest(ctx, state.Ledger)
	if err != nil {
		log.Warn().Err(err).Msg("Category suggestions unavailable")
		return nil
	}
	state.Suggestions = suggestions

	for _, sg := range suggestions {
		log.Info().
			Str("transaction_id", sg.TransactionID).
			Str("category", sg.Category.String()).
			Str("reason", sg.Reason).
			Msg("Category suggestion")
	}
	return nil
}

// Step 7: ExportStep hands the report to every exporter in order.
type ExportStep struct {
	Exporters []export.Exporter
}

func (s *ExportStep) Name() string { return "export" }

func (s *ExportStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Report == nil {
		return fmt.Errorf("no report to export")
	}
	log := logger.FromContext(ctx)

	for _, e := range s.Exporters {
		if err := e.Export(ctx, state.RunID, state.Report); err != nil {
			return fmt.Errorf("exporter %s: %w", e.Name(), err)
		}
		state.Exported = append(state.Exported, e.Name())
		log.Info().Str("exporter", e.Name()).Msg("Report exported")
	}
	return nil
}
