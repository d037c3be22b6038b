// Package validate re-reads the final merged table and runs the post-hoc
// data checks: required columns, identity nulls and duplicates, degenerate
// columns, referential spillover. The checks are read-only and advisory;
// they are not part of the pipeline's own control flow.
package validate

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/tnminh/revenue-pipeline/internal/pipeline"
	"github.com/tnminh/revenue-pipeline/internal/tabular"
)

// Severity grades a finding. Errors mean the table is unusable
// downstream; warnings are data-quality signals.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Finding is one validation observation.
type Finding struct {
	Severity Severity
	Check    string
	Detail   string
}

// Report is the outcome of validating one merged table.
type Report struct {
	Rows     int
	Findings []Finding
}

// Errors counts error-severity findings.
func (r *Report) Errors() int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == SeverityError {
			n++
		}
	}
	return n
}

func (r *Report) add(sev Severity, check, format string, args ...any) {
	r.Findings = append(r.Findings, Finding{
		Severity: sev,
		Check:    check,
		Detail:   fmt.Sprintf(format, args...),
	})
}

// identityColumns are the columns that must be present and non-empty in
// every row of the merged table.
var identityColumns = []string{"user_id", "order_id", "merchant_id"}

// CheckFile loads the merged table from path and validates it.
func CheckFile(ctx context.Context, fetch tabular.Fetcher, path string) (*Report, error) {
	t, err := tabular.Load(ctx, fetch, path)
	if err != nil {
		return nil, fmt.Errorf("validate.CheckFile: %w", err)
	}
	return Check(t), nil
}

// Check validates a merged table already held in memory.
func Check(t *tabular.Table) *Report {
	r := &Report{Rows: len(t.Rows)}

	if r.Rows == 0 {
		r.add(SeverityError, "row_count", "merged table has zero rows")
	}

	for _, col := range pipeline.EnrichedHeaders {
		if t.Index(col) < 0 {
			r.add(SeverityError, "required_columns", "missing column %q", col)
		}
	}

	checkIdentity(t, r)
	checkDegenerateColumns(t, r)
	checkSpillover(t, r)

	return r
}

func checkIdentity(t *tabular.Table, r *Report) {
	cols := make([]int, 0, len(identityColumns))
	for _, name := range identityColumns {
		i := t.Index(name)
		if i < 0 {
			return // already reported by the required-columns check
		}
		cols = append(cols, i)

		empty := 0
		for _, row := range t.Rows {
			if strings.TrimSpace(t.Cell(row, i)) == "" {
				empty++
			}
		}
		if empty > 0 {
			r.add(SeverityError, "identity_nulls", "%d empty values in identity column %q", empty, name)
		}
	}

	// Duplicate identity tuples are advisory only: order ids repeat
	// legitimately within one user's history.
	seen := make(map[string]bool, len(t.Rows))
	dups := 0
	for _, row := range t.Rows {
		parts := make([]string, len(cols))
		for j, c := range cols {
			parts[j] = t.Cell(row, c)
		}
		key := strings.Join(parts, "\x1f")
		if seen[key] {
			dups++
		}
		seen[key] = true
	}
	if dups > 0 {
		r.add(SeverityWarning, "identity_duplicates",
			"%d duplicate rows on (%s)", dups, strings.Join(identityColumns, ", "))
	}
}

func checkDegenerateColumns(t *tabular.Table, r *Report) {
	if len(t.Rows) == 0 {
		return
	}
	for i, name := range t.Headers {
		distinct := make(map[string]bool)
		nonEmpty := 0
		for _, row := range t.Rows {
			v := t.Cell(row, i)
			if v != "" {
				nonEmpty++
				distinct[v] = true
			}
		}
		switch {
		case nonEmpty == 0:
			r.add(SeverityWarning, "all_null_column", "column %q is entirely null", name)
		case len(distinct) == 1 && nonEmpty == len(t.Rows):
			r.add(SeverityWarning, "constant_column", "column %q is constant", name)
		}
	}
}

func checkSpillover(t *tabular.Table, r *Report) {
	countEmpty := func(name string) int {
		i := t.Index(name)
		if i < 0 {
			return 0
		}
		n := 0
		for _, row := range t.Rows {
			if t.Cell(row, i) == "" {
				n++
			}
		}
		return n
	}

	if n := countEmpty("rate_pct"); n > 0 {
		r.add(SeverityInfo, "referential_miss", "%d rows without a commission match", n)
	}
	if n := countEmpty("first_tran_date"); n > 0 {
		r.add(SeverityInfo, "referential_miss", "%d rows without a user profile match", n)
	}

	if i := t.Index("tenure_days"); i >= 0 {
		negative := 0
		for _, row := range t.Rows {
			v := strings.TrimSpace(t.Cell(row, i))
			if v == "" {
				continue
			}
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n < 0 {
				negative++
			}
		}
		if negative > 0 {
			r.add(SeverityWarning, "negative_tenure",
				"%d transactions predate the recorded first-transaction date", negative)
		}
	}
}
