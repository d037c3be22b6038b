package validate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tnminh/revenue-pipeline/internal/pipeline"
	"github.com/tnminh/revenue-pipeline/internal/tabular"
)

// mergedRow builds one row of the merged table, with overrides applied by
// column name.
func mergedRow(t *testing.T, overrides map[string]string) []string {
	t.Helper()
	base := map[string]string{
		"user_id":         "1",
		"order_id":        "100",
		"date":            "2020-01-15",
		"amount":          "100000",
		"merchant_id":     "5",
		"purchase_status": "Mua hộ",
		"merchant_name":   "Viettel",
		"rate_pct":        "10",
		"revenue":         "10000",
		"first_tran_date": "2020-01-02",
		"age":             "25-30",
		"gender":          "Male",
		"location":        "HCMC",
		"month":           "2020-01",
		"weekday":         "Wednesday",
		"tenure_days":     "13",
		"type_user":       "New",
	}
	for col, v := range overrides {
		if _, ok := base[col]; !ok {
			t.Fatalf("unknown column %q", col)
		}
		base[col] = v
	}
	row := make([]string, len(pipeline.EnrichedHeaders))
	for i, col := range pipeline.EnrichedHeaders {
		row[i] = base[col]
	}
	return row
}

func mergedTable(rows ...[]string) *tabular.Table {
	return &tabular.Table{Headers: pipeline.EnrichedHeaders, Rows: rows}
}

func hasFinding(r *Report, check string, sev Severity) bool {
	for _, f := range r.Findings {
		if f.Check == check && f.Severity == sev {
			return true
		}
	}
	return false
}

func TestCheck_CleanTable(t *testing.T) {
	table := mergedTable(
		mergedRow(t, nil),
		mergedRow(t, map[string]string{"user_id": "2", "order_id": "101", "amount": "50000", "revenue": "5000"}),
	)

	r := Check(table)
	if r.Rows != 2 {
		t.Errorf("Rows = %d, want 2", r.Rows)
	}
	if n := r.Errors(); n != 0 {
		t.Errorf("Errors() = %d, want 0: %v", n, r.Findings)
	}
}

func TestCheck_EmptyTable(t *testing.T) {
	r := Check(mergedTable())
	if !hasFinding(r, "row_count", SeverityError) {
		t.Errorf("expected row_count error, got %v", r.Findings)
	}
}

func TestCheck_MissingColumn(t *testing.T) {
	headers := make([]string, 0, len(pipeline.EnrichedHeaders)-1)
	for _, h := range pipeline.EnrichedHeaders {
		if h != "revenue" {
			headers = append(headers, h)
		}
	}
	table := &tabular.Table{Headers: headers, Rows: [][]string{make([]string, len(headers))}}

	r := Check(table)
	if !hasFinding(r, "required_columns", SeverityError) {
		t.Errorf("expected required_columns error, got %v", r.Findings)
	}
}

func TestCheck_IdentityNulls(t *testing.T) {
	table := mergedTable(
		mergedRow(t, nil),
		mergedRow(t, map[string]string{"user_id": ""}),
	)

	r := Check(table)
	if !hasFinding(r, "identity_nulls", SeverityError) {
		t.Errorf("expected identity_nulls error, got %v", r.Findings)
	}
	if r.Errors() == 0 {
		t.Error("identity nulls must fail validation")
	}
}

// Repeated identity tuples are advisory: one user can legitimately carry
// the same order id on several rows of the source export.
func TestCheck_IdentityDuplicatesAreWarnings(t *testing.T) {
	table := mergedTable(
		mergedRow(t, nil),
		mergedRow(t, map[string]string{"amount": "70000", "revenue": "7000"}),
	)

	r := Check(table)
	if !hasFinding(r, "identity_duplicates", SeverityWarning) {
		t.Errorf("expected identity_duplicates warning, got %v", r.Findings)
	}
	if r.Errors() != 0 {
		t.Errorf("identity duplicates must not fail validation: %v", r.Findings)
	}
}

func TestCheck_ReferentialMisses(t *testing.T) {
	table := mergedTable(
		mergedRow(t, nil),
		mergedRow(t, map[string]string{
			"order_id": "101", "merchant_id": "999",
			"merchant_name": "", "rate_pct": "", "revenue": "",
		}),
		mergedRow(t, map[string]string{
			"order_id": "102", "user_id": "42",
			"first_tran_date": "", "age": "", "gender": "", "location": "",
			"tenure_days": "", "type_user": "",
		}),
	)

	r := Check(table)
	if !hasFinding(r, "referential_miss", SeverityInfo) {
		t.Errorf("expected referential_miss findings, got %v", r.Findings)
	}
	if r.Errors() != 0 {
		t.Errorf("referential misses must not fail validation: %v", r.Findings)
	}
}

func TestCheck_NegativeTenure(t *testing.T) {
	table := mergedTable(
		mergedRow(t, nil),
		mergedRow(t, map[string]string{"order_id": "101", "tenure_days": "-30", "type_user": "Current"}),
	)

	r := Check(table)
	if !hasFinding(r, "negative_tenure", SeverityWarning) {
		t.Errorf("expected negative_tenure warning, got %v", r.Findings)
	}
}

func TestCheck_DegenerateColumns(t *testing.T) {
	table := mergedTable(
		mergedRow(t, map[string]string{"purchase_status": ""}),
		mergedRow(t, map[string]string{"order_id": "101", "purchase_status": ""}),
	)

	r := Check(table)
	if !hasFinding(r, "all_null_column", SeverityWarning) {
		t.Errorf("expected all_null_column warning, got %v", r.Findings)
	}
	// Both rows share one merchant: constant, but only advisory.
	if !hasFinding(r, "constant_column", SeverityWarning) {
		t.Errorf("expected constant_column warning, got %v", r.Findings)
	}
	if r.Errors() != 0 {
		t.Errorf("degenerate columns must not fail validation: %v", r.Findings)
	}
}

func TestCheckFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "master_merged.csv")

	content := strings.Join(pipeline.EnrichedHeaders, ",") + "\n" +
		strings.Join(mergedRow(t, nil), ",") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	r, err := CheckFile(context.Background(), nil, path)
	if err != nil {
		t.Fatalf("CheckFile failed: %v", err)
	}
	if r.Rows != 1 {
		t.Errorf("Rows = %d, want 1", r.Rows)
	}

	if _, err := CheckFile(context.Background(), nil, filepath.Join(dir, "absent.csv")); err == nil {
		t.Error("expected error for missing file")
	}
}
