package pipeline

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tnminh/revenue-pipeline/internal/logger"
	"github.com/tnminh/revenue-pipeline/internal/report"
	"github.com/tnminh/revenue-pipeline/internal/tabular"
)

func writeInput(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func testInputs(t *testing.T, dir string) (transactions, commission, userInfo string) {
	t.Helper()
	transactions = writeInput(t, dir, "transactions.csv", strings.Join([]string{
		"user_id,order_id,date,amount,merchant_id,purchase_status",
		"1,100,2020-01-15,100000,5,Mua ho",
		"1,101,2020-02-10,200000,6,",
		"2,102,2020-01-20,1500000,5,",
		"2,102,2020-01-20,1500000,5,", // exact duplicate
		"3,103,2020-01-05,50000,999,",
		",104,2020-01-06,1000,5,", // missing user_id
		"4,105,2020-01-07,0,5,",   // non-positive amount
	}, "\n"))
	commission = writeInput(t, dir, "commission.csv", strings.Join([]string{
		"merchant_name,merchant_id,rate_pct",
		"Viettel,5,10",
		"Mobifone,6,3",
	}, "\n"))
	userInfo = writeInput(t, dir, "user_info.csv", strings.Join([]string{
		"user_id,first_tran_date,location,age,gender",
		"1,2020-01-02,Ho Chi Minh City,25-30,male",
		"2,2020-01-20,Other Cities,31-35,F",
		"3,,,,",
	}, "\n"))
	return transactions, commission, userInfo
}

func quietContext() context.Context {
	return logger.WithContext(context.Background(), logger.NewWithWriter(io.Discard))
}

func runOptions(t *testing.T, inputDir, outputDir string) Options {
	t.Helper()
	transactions, commission, userInfo := testInputs(t, inputDir)
	return Options{
		Transactions: transactions,
		Commission:   commission,
		UserInfo:     userInfo,
		OutputDir:    outputDir,
		Cashback: report.TableFromPercentages(1, map[string]float64{
			"Viettel":  2,
			"Mobifone": 2.5,
		}),
		TopN: 5,
	}
}

func TestRun_EndToEnd(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := t.TempDir()

	state, err := Run(quietContext(), runOptions(t, inputDir, outputDir))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if state.RunID == "" {
		t.Error("missing run id")
	}

	wantFiles := []string{
		"transactions_cleaned.csv", "commission_cleaned.csv", "user_info_cleaned.csv",
		"master_merged.csv", "diagnostics.csv",
		"monthly_summary.csv", "weekday_summary.csv", "demographic_summary.csv",
		"top_spenders.csv", "most_active_users.csv", "cashback_impact.csv",
	}
	if len(state.Written) != len(wantFiles) {
		t.Errorf("wrote %d artifacts, want %d: %v", len(state.Written), len(wantFiles), state.Written)
	}
	for _, name := range wantFiles {
		if _, err := os.Stat(filepath.Join(outputDir, name)); err != nil {
			t.Errorf("missing artifact %s: %v", name, err)
		}
	}

	merged := readArtifact(t, outputDir, "master_merged.csv")
	if len(merged.Rows) != 4 {
		t.Fatalf("master table has %d rows, want 4", len(merged.Rows))
	}

	revCol := merged.Index("revenue")
	typeCol := merged.Index("type_user")
	tenureCol := merged.Index("tenure_days")
	if got := merged.Cell(merged.Rows[0], revCol); got != "10000" {
		t.Errorf("row 0 revenue = %q, want 10000", got)
	}
	if got := merged.Cell(merged.Rows[0], typeCol); got != "New" {
		t.Errorf("row 0 type_user = %q, want New", got)
	}
	if got := merged.Cell(merged.Rows[1], tenureCol); got != "39" {
		t.Errorf("row 1 tenure_days = %q, want 39", got)
	}
	if got := merged.Cell(merged.Rows[1], typeCol); got != "Current" {
		t.Errorf("row 1 type_user = %q, want Current", got)
	}
	// The merchant-999 row survives the join with a null revenue cell.
	if got := merged.Cell(merged.Rows[3], revCol); got != "" {
		t.Errorf("row 3 revenue = %q, want empty", got)
	}
	if got := merged.Cell(merged.Rows[3], typeCol); got != "" {
		t.Errorf("row 3 type_user = %q, want empty", got)
	}

	monthly := readArtifact(t, outputDir, "monthly_summary.csv")
	if len(monthly.Rows) != 2 {
		t.Fatalf("monthly summary has %d rows, want 2", len(monthly.Rows))
	}
	jan := monthly.Rows[0]
	if monthly.Cell(jan, monthly.Index("month")) != "2020-01" {
		t.Errorf("first month = %q, want 2020-01", monthly.Cell(jan, monthly.Index("month")))
	}
	if monthly.Cell(jan, monthly.Index("transactions")) != "3" {
		t.Errorf("january transactions = %q, want 3", monthly.Cell(jan, monthly.Index("transactions")))
	}
	if monthly.Cell(jan, monthly.Index("revenue")) != "160000" {
		t.Errorf("january revenue = %q, want 160000", monthly.Cell(jan, monthly.Index("revenue")))
	}
	if monthly.Cell(jan, monthly.Index("missing_revenue")) != "1" {
		t.Errorf("january missing_revenue = %q, want 1", monthly.Cell(jan, monthly.Index("missing_revenue")))
	}

	diag := state.Diagnostics
	if diag.Transactions.RowsIn != 7 || diag.Transactions.RowsOut != 4 {
		t.Errorf("transaction diagnostics = %d in / %d out, want 7/4",
			diag.Transactions.RowsIn, diag.Transactions.RowsOut)
	}
	if diag.Transactions.ExactDuplicates != 1 {
		t.Errorf("exact duplicates = %d, want 1", diag.Transactions.ExactDuplicates)
	}
	if diag.Transactions.MissingRequired != 1 || diag.Transactions.NonPositive != 1 {
		t.Errorf("drop counts = %d/%d, want 1/1",
			diag.Transactions.MissingRequired, diag.Transactions.NonPositive)
	}
}

func readArtifact(t *testing.T, dir, name string) *tabular.Table {
	t.Helper()
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("opening %s: %v", name, err)
	}
	defer f.Close()
	table, err := tabular.ReadCSV(f)
	if err != nil {
		t.Fatalf("parsing %s: %v", name, err)
	}
	return table
}

// Re-running on unchanged inputs must reproduce identical tables.
func TestRun_Deterministic(t *testing.T) {
	inputDir := t.TempDir()
	firstOut := t.TempDir()
	secondOut := t.TempDir()

	opts := runOptions(t, inputDir, firstOut)
	if _, err := Run(quietContext(), opts); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	opts.OutputDir = secondOut
	if _, err := Run(quietContext(), opts); err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	// diagnostics.csv carries the per-run id and is expected to differ.
	for _, name := range []string{"master_merged.csv", "monthly_summary.csv", "demographic_summary.csv", "cashback_impact.csv"} {
		a, err := os.ReadFile(filepath.Join(firstOut, name))
		if err != nil {
			t.Fatalf("reading first %s: %v", name, err)
		}
		b, err := os.ReadFile(filepath.Join(secondOut, name))
		if err != nil {
			t.Fatalf("reading second %s: %v", name, err)
		}
		if string(a) != string(b) {
			t.Errorf("%s differs between identical runs", name)
		}
	}
}

func TestRun_MissingInput(t *testing.T) {
	outputDir := t.TempDir()
	_, err := Run(quietContext(), Options{
		Transactions: filepath.Join(outputDir, "does-not-exist.csv"),
		Commission:   filepath.Join(outputDir, "also-missing.csv"),
		UserInfo:     filepath.Join(outputDir, "missing-too.csv"),
		OutputDir:    outputDir,
	})
	if err == nil {
		t.Fatal("expected error for missing input file")
	}
	if !strings.Contains(err.Error(), "loading transactions") {
		t.Errorf("error should name the failing input, got %q", err.Error())
	}
}

type mockFetcher struct {
	fetchFunc func(ctx context.Context, uri string) ([]byte, error)
}

func (m *mockFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	return m.fetchFunc(ctx, uri)
}

func TestLoadStep_GCSInputs(t *testing.T) {
	inputDir := t.TempDir()
	transactions, commission, userInfo := testInputs(t, inputDir)

	served := map[string]string{
		"gs://raw/transactions.csv": transactions,
		"gs://raw/commission.csv":   commission,
		"gs://raw/user_info.csv":    userInfo,
	}
	fetch := &mockFetcher{
		fetchFunc: func(ctx context.Context, uri string) ([]byte, error) {
			return os.ReadFile(served[uri])
		},
	}

	step := &LoadStep{Opts: Options{
		Transactions: "gs://raw/transactions.csv",
		Commission:   "gs://raw/commission.csv",
		UserInfo:     "gs://raw/user_info.csv",
		Fetcher:      fetch,
	}}

	state := &State{}
	if err := step.Execute(context.Background(), state); err != nil {
		t.Fatalf("LoadStep failed: %v", err)
	}
	if state.RawTransactions == nil || len(state.RawTransactions.Rows) != 7 {
		t.Errorf("unexpected transactions table: %+v", state.RawTransactions)
	}
	if state.RawCommission == nil || len(state.RawCommission.Rows) != 2 {
		t.Errorf("unexpected commission table: %+v", state.RawCommission)
	}
}
