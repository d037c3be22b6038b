// Package pipeline implements the batch reconciliation and enrichment
// pipeline: schema normalization, integrity filtering, the left-join
// enrichment of transactions with commission rates and user profiles, and
// the aggregate/scenario reporting stage. The stages form a strict chain;
// each consumes only the previous stage's output held in State.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tnminh/revenue-pipeline/internal/domain"
	"github.com/tnminh/revenue-pipeline/internal/logger"
	"github.com/tnminh/revenue-pipeline/internal/report"
	"github.com/tnminh/revenue-pipeline/internal/tabular"
)

// State holds the shared state across all pipeline steps.
type State struct {
	RunID string

	RawTransactions *tabular.Table
	RawCommission   *tabular.Table
	RawUserInfo     *tabular.Table

	Transactions []domain.Transaction
	Rates        []domain.CommissionRate
	Users        []domain.UserProfile

	Diagnostics Diagnostics
	Enriched    []domain.EnrichedTransaction
	Summary     *report.Summary

	// Written collects the paths of all artifacts produced by the run.
	Written []string
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []Step
}

// New creates a pipeline with the given steps.
func New(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps sequentially, stopping at the first failure.
func (p *Pipeline) Execute(ctx context.Context, state *State) error {
	log := logger.FromContext(ctx)
	for i, step := range p.steps {
		started := time.Now()
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d (%s) failed: %w", i+1, step.Name(), err)
		}
		log.Debug().
			Str("step", step.Name()).
			Dur("elapsed", time.Since(started)).
			Msg("Pipeline step complete")
	}
	return nil
}

// NewRunPipeline creates the standard step sequence for a full
// reconciliation run.
func NewRunPipeline(opts Options) *Pipeline {
	return New(
		&LoadStep{Opts: opts},
		&NormalizeStep{},
		&QualityStep{},
		&EnrichStep{},
		&AggregateStep{Cashback: opts.Cashback, TopN: opts.TopN},
		&WriteStep{OutputDir: opts.OutputDir},
	)
}

// Run executes a full reconciliation run and returns its final state.
func Run(ctx context.Context, opts Options) (*State, error) {
	state := &State{RunID: uuid.NewString()}
	log := logger.FromContext(ctx).With().Str("run_id", state.RunID).Logger()
	ctx = logger.WithContext(ctx, log)

	log.Info().
		Str("transactions", opts.Transactions).
		Str("commission", opts.Commission).
		Str("user_info", opts.UserInfo).
		Msg("Starting reconciliation run")

	if err := NewRunPipeline(opts).Execute(ctx, state); err != nil {
		return nil, err
	}

	log.Info().
		Int("enriched_rows", len(state.Enriched)).
		Int("artifacts", len(state.Written)).
		Msg("Reconciliation run complete")
	return state, nil
}
