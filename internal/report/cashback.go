package report

import (
	"github.com/shopspring/decimal"

	"github.com/tnminh/revenue-pipeline/internal/domain"
)

// CashbackTable is the hypothetical schedule under evaluation: the flat
// percentage currently paid on every covered merchant's transactions, and
// the proposed per-merchant percentages keyed by merchant name. Distinct
// from the commission-rate table.
type CashbackTable struct {
	CurrentFlatPct decimal.Decimal
	Rates          map[string]decimal.Decimal
}

// CashbackImpact is the scenario result over the transactions whose
// merchant appears in the proposed table. Pure derived report; the
// enriched set is never altered.
type CashbackImpact struct {
	CoveredTransactions int

	CurrentTotal   decimal.Decimal
	ProposedTotal  decimal.Decimal
	AdditionalCost decimal.Decimal

	// CoveredRevenue is the commission revenue earned from exactly the
	// covered merchants (null revenues excluded, counted below).
	CoveredRevenue        decimal.Decimal
	CoveredMissingRevenue int

	// Percentage views are nil when no covered revenue exists.
	AdditionalPctOfRevenue *decimal.Decimal
	ProposedPctOfRevenue   *decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// Scenario computes the cashback impact of table over enriched.
func Scenario(enriched []domain.EnrichedTransaction, table CashbackTable) *CashbackImpact {
	impact := &CashbackImpact{}
	for _, e := range enriched {
		proposedPct, covered := table.Rates[e.MerchantName]
		if !covered || e.Amount == nil {
			continue
		}
		impact.CoveredTransactions++

		amount := decimal.NewFromInt(*e.Amount)
		impact.CurrentTotal = impact.CurrentTotal.Add(amount.Mul(table.CurrentFlatPct).Div(hundred))
		impact.ProposedTotal = impact.ProposedTotal.Add(amount.Mul(proposedPct).Div(hundred))

		if e.Revenue != nil {
			impact.CoveredRevenue = impact.CoveredRevenue.Add(*e.Revenue)
		} else {
			impact.CoveredMissingRevenue++
		}
	}

	impact.AdditionalCost = impact.ProposedTotal.Sub(impact.CurrentTotal)
	if impact.CoveredRevenue.IsPositive() {
		additional := impact.AdditionalCost.Mul(hundred).Div(impact.CoveredRevenue)
		proposed := impact.ProposedTotal.Mul(hundred).Div(impact.CoveredRevenue)
		impact.AdditionalPctOfRevenue = &additional
		impact.ProposedPctOfRevenue = &proposed
	}
	return impact
}

// TableFromPercentages converts plain float percentages (as configured)
// into a CashbackTable.
func TableFromPercentages(flatPct float64, rates map[string]float64) CashbackTable {
	t := CashbackTable{
		CurrentFlatPct: decimal.NewFromFloat(flatPct),
		Rates:          make(map[string]decimal.Decimal, len(rates)),
	}
	for name, pct := range rates {
		t.Rates[name] = decimal.NewFromFloat(pct)
	}
	return t
}
