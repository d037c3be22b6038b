package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/tnminh/revenue-pipeline/internal/logger"
	"github.com/tnminh/revenue-pipeline/internal/report"
	"github.com/tnminh/revenue-pipeline/internal/tabular"
)

// Step is a single stage of the reconciliation pipeline.
type Step interface {
	Name() string
	Execute(ctx context.Context, state *State) error
}

// Options configure one pipeline run.
type Options struct {
	// Input table locations: local paths or gs:// URIs.
	Transactions string
	Commission   string
	UserInfo     string

	// Fetcher resolves gs:// inputs; nil restricts inputs to local files.
	Fetcher tabular.Fetcher

	// OutputDir receives the cleaned, merged, summary and diagnostics
	// tables.
	OutputDir string

	Cashback report.CashbackTable
	TopN     int
}

// Step 1 of the run: load the three raw tables.
type LoadStep struct {
	Opts Options
}

func (s *LoadStep) Name() string { return "load" }

func (s *LoadStep) Execute(ctx context.Context, state *State) error {
	var err error
	if state.RawTransactions, err = tabular.Load(ctx, s.Opts.Fetcher, s.Opts.Transactions); err != nil {
		return fmt.Errorf("loading transactions: %w", err)
	}
	if state.RawCommission, err = tabular.Load(ctx, s.Opts.Fetcher, s.Opts.Commission); err != nil {
		return fmt.Errorf("loading commission: %w", err)
	}
	if state.RawUserInfo, err = tabular.Load(ctx, s.Opts.Fetcher, s.Opts.UserInfo); err != nil {
		return fmt.Errorf("loading user_info: %w", err)
	}
	return nil
}

// Step 2: schema normalization (stage 1 of the design).
type NormalizeStep struct{}

func (s *NormalizeStep) Name() string { return "normalize" }

func (s *NormalizeStep) Execute(ctx context.Context, state *State) error {
	d := &state.Diagnostics
	d.Transactions.RowsIn = len(state.RawTransactions.Rows)
	d.Commission.RowsIn = len(state.RawCommission.Rows)
	d.UserInfo.RowsIn = len(state.RawUserInfo.Rows)

	state.Transactions, d.Transactions.ExactDuplicates = NormalizeTransactions(state.RawTransactions)
	state.Rates, d.Commission.ExactDuplicates = NormalizeCommission(state.RawCommission)
	state.Users, d.UserInfo.ExactDuplicates = NormalizeUserInfo(state.RawUserInfo)
	return nil
}

// Step 3: integrity and quality filtering (stage 2 of the design).
type QualityStep struct{}

func (s *QualityStep) Name() string { return "quality" }

func (s *QualityStep) Execute(ctx context.Context, state *State) error {
	log := logger.FromContext(ctx)

	var txDrops TransactionDrops
	state.Transactions, txDrops = FilterTransactions(state.Transactions)

	var rateDrops, userDrops KeyDrops
	state.Rates, rateDrops = DedupCommission(state.Rates)
	state.Users, userDrops = DedupUsers(state.Users)

	d := &state.Diagnostics
	txDiag := DescribeTransactions(state.Transactions)
	txDiag.RowsIn = d.Transactions.RowsIn
	txDiag.ExactDuplicates = d.Transactions.ExactDuplicates
	txDiag.MissingRequired = txDrops.MissingRequired
	txDiag.NonPositive = txDrops.NonPositiveAmount
	d.Transactions = txDiag

	rateDiag := DescribeCommission(state.Rates)
	rateDiag.RowsIn = d.Commission.RowsIn
	rateDiag.ExactDuplicates = d.Commission.ExactDuplicates
	rateDiag.MissingKey = rateDrops.MissingKey
	rateDiag.DuplicateKeys = rateDrops.DuplicateKeys
	d.Commission = rateDiag

	userDiag := DescribeUsers(state.Users)
	userDiag.RowsIn = d.UserInfo.RowsIn
	userDiag.ExactDuplicates = d.UserInfo.ExactDuplicates
	userDiag.MissingKey = userDrops.MissingKey
	userDiag.DuplicateKeys = userDrops.DuplicateKeys
	d.UserInfo = userDiag

	log.Info().
		Int("transactions", len(state.Transactions)).
		Int("dropped_missing_required", txDrops.MissingRequired).
		Int("dropped_non_positive", txDrops.NonPositiveAmount).
		Int("commission_duplicate_keys", rateDrops.DuplicateKeys).
		Int("user_duplicate_keys", userDrops.DuplicateKeys).
		Msg("Quality filter complete")
	return nil
}

// Step 4: enrichment join (stage 3 of the design).
type EnrichStep struct{}

func (s *EnrichStep) Name() string { return "enrich" }

func (s *EnrichStep) Execute(ctx context.Context, state *State) error {
	enriched, err := Enrich(state.Transactions, state.Rates, state.Users)
	if err != nil {
		return err
	}
	state.Enriched = enriched
	return nil
}

// Step 5: aggregation and scenario simulation (stage 4 of the design).
type AggregateStep struct {
	Cashback report.CashbackTable
	TopN     int
}

func (s *AggregateStep) Name() string { return "aggregate" }

func (s *AggregateStep) Execute(ctx context.Context, state *State) error {
	state.Summary = report.Build(state.Enriched, s.Cashback, s.TopN)
	return nil
}

// Step 6: write all output artifacts atomically.
type WriteStep struct {
	OutputDir string
}

func (s *WriteStep) Name() string { return "write" }

func (s *WriteStep) Execute(ctx context.Context, state *State) error {
	write := func(stem string, headers []string, rows [][]string) error {
		path := filepath.Join(s.OutputDir, stem+".csv")
		if err := tabular.WriteCSV(path, headers, rows); err != nil {
			return fmt.Errorf("writing %s: %w", stem, err)
		}
		state.Written = append(state.Written, path)
		return nil
	}

	headers, rows := transactionRows(state.Transactions)
	if err := write("transactions_cleaned", headers, rows); err != nil {
		return err
	}
	headers, rows = commissionRows(state.Rates)
	if err := write("commission_cleaned", headers, rows); err != nil {
		return err
	}
	headers, rows = userRows(state.Users)
	if err := write("user_info_cleaned", headers, rows); err != nil {
		return err
	}
	headers, rows = enrichedRows(state.Enriched)
	if err := write("master_merged", headers, rows); err != nil {
		return err
	}
	if err := write("diagnostics", []string{"entity", "metric", "value"}, state.Diagnostics.Rows()); err != nil {
		return err
	}
	for _, a := range state.Summary.Artifacts() {
		if err := write(a.Name, a.Headers, a.Rows); err != nil {
			return err
		}
	}
	return nil
}
