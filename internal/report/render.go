package report

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Artifact is one summary table ready to be written as CSV.
type Artifact struct {
	Name    string // file stem, e.g. "monthly_summary"
	Headers []string
	Rows    [][]string
}

// Artifacts flattens the summary into its output tables. Row order is
// deterministic so re-running on unchanged inputs reproduces identical
// files.
func (s *Summary) Artifacts() []Artifact {
	artifacts := []Artifact{
		s.monthlyArtifact(),
		s.weekdayArtifact(),
		s.demographicArtifact(),
		s.userArtifact("top_spenders", s.TopSpenders),
		s.userArtifact("most_active_users", s.MostActive),
	}
	if s.Cashback != nil {
		artifacts = append(artifacts, s.cashbackArtifact())
	}
	return artifacts
}

func (s *Summary) monthlyArtifact() Artifact {
	a := Artifact{
		Name:    "monthly_summary",
		Headers: []string{"month", "transactions", "revenue", "missing_revenue", "active_users", "new_users"},
	}
	for _, r := range s.Monthly {
		a.Rows = append(a.Rows, []string{
			r.Month,
			fmt.Sprintf("%d", r.Transactions),
			r.Revenue.String(),
			fmt.Sprintf("%d", r.MissingRevenue),
			fmt.Sprintf("%d", r.ActiveUsers),
			fmt.Sprintf("%d", r.NewUsers),
		})
	}
	return a
}

func (s *Summary) weekdayArtifact() Artifact {
	a := Artifact{
		Name:    "weekday_summary",
		Headers: []string{"weekday", "transactions", "revenue", "avg_revenue"},
	}
	for _, r := range s.Weekday {
		a.Rows = append(a.Rows, []string{
			r.Weekday,
			fmt.Sprintf("%d", r.Transactions),
			r.Revenue.String(),
			r.AvgRevenue.String(),
		})
	}
	return a
}

func (s *Summary) demographicArtifact() Artifact {
	a := Artifact{
		Name:    "demographic_summary",
		Headers: []string{"dimension", "value", "users", "transactions", "revenue", "avg_amount"},
	}
	for _, r := range s.Demographics {
		a.Rows = append(a.Rows, []string{
			r.Dimension,
			r.Value,
			fmt.Sprintf("%d", r.Users),
			fmt.Sprintf("%d", r.Transactions),
			r.Revenue.String(),
			r.AvgAmount.String(),
		})
	}
	return a
}

func (s *Summary) userArtifact(name string, rows []UserRow) Artifact {
	a := Artifact{
		Name:    name,
		Headers: []string{"user_id", "total_spend", "transactions"},
	}
	for _, r := range rows {
		a.Rows = append(a.Rows, []string{
			fmt.Sprintf("%d", r.UserID),
			fmt.Sprintf("%d", r.TotalSpend),
			fmt.Sprintf("%d", r.Transactions),
		})
	}
	return a
}

func (s *Summary) cashbackArtifact() Artifact {
	c := s.Cashback
	pct := func(p *decimal.Decimal) string {
		if p == nil {
			return ""
		}
		return p.Round(2).String()
	}
	return Artifact{
		Name:    "cashback_impact",
		Headers: []string{"metric", "value"},
		Rows: [][]string{
			{"covered_transactions", fmt.Sprintf("%d", c.CoveredTransactions)},
			{"current_cashback_total", c.CurrentTotal.String()},
			{"proposed_cashback_total", c.ProposedTotal.String()},
			{"additional_cost", c.AdditionalCost.String()},
			{"covered_revenue", c.CoveredRevenue.String()},
			{"covered_missing_revenue", fmt.Sprintf("%d", c.CoveredMissingRevenue)},
			{"additional_cost_pct_of_revenue", pct(c.AdditionalPctOfRevenue)},
			{"proposed_pct_of_revenue", pct(c.ProposedPctOfRevenue)},
		},
	}
}
