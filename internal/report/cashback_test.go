package report

import (
	"testing"

	"github.com/tnminh/revenue-pipeline/internal/domain"
)

func coveredEnriched() []domain.EnrichedTransaction {
	return []domain.EnrichedTransaction{
		{
			Transaction:  domain.Transaction{UserID: i64(1), Amount: i64(100000)},
			MerchantName: "Viettel",
			Revenue:      dec(10000),
		},
		{
			Transaction:  domain.Transaction{UserID: i64(2), Amount: i64(200000)},
			MerchantName: "Mobifone",
			Revenue:      nil, // covered merchant without a commission rate
		},
		{
			Transaction:  domain.Transaction{UserID: i64(3), Amount: i64(999999)},
			MerchantName: "Acme",
			Revenue:      dec(500),
		},
	}
}

func TestScenario(t *testing.T) {
	table := TableFromPercentages(1, map[string]float64{
		"Viettel":  2,
		"Mobifone": 2.5,
	})

	impact := Scenario(coveredEnriched(), table)

	if impact.CoveredTransactions != 2 {
		t.Errorf("CoveredTransactions = %d, want 2", impact.CoveredTransactions)
	}
	// Current: 1% of (100000 + 200000). Proposed: 2% of 100000 plus 2.5%
	// of 200000. The uncovered Acme row contributes nothing.
	if impact.CurrentTotal.String() != "3000" {
		t.Errorf("CurrentTotal = %s, want 3000", impact.CurrentTotal)
	}
	if impact.ProposedTotal.String() != "7000" {
		t.Errorf("ProposedTotal = %s, want 7000", impact.ProposedTotal)
	}
	if impact.AdditionalCost.String() != "4000" {
		t.Errorf("AdditionalCost = %s, want 4000", impact.AdditionalCost)
	}

	if impact.CoveredRevenue.String() != "10000" {
		t.Errorf("CoveredRevenue = %s, want 10000", impact.CoveredRevenue)
	}
	if impact.CoveredMissingRevenue != 1 {
		t.Errorf("CoveredMissingRevenue = %d, want 1", impact.CoveredMissingRevenue)
	}

	if impact.AdditionalPctOfRevenue == nil || impact.AdditionalPctOfRevenue.String() != "40" {
		t.Errorf("AdditionalPctOfRevenue = %v, want 40", impact.AdditionalPctOfRevenue)
	}
	if impact.ProposedPctOfRevenue == nil || impact.ProposedPctOfRevenue.String() != "70" {
		t.Errorf("ProposedPctOfRevenue = %v, want 70", impact.ProposedPctOfRevenue)
	}
}

func TestScenario_FractionalPercentages(t *testing.T) {
	table := TableFromPercentages(1, map[string]float64{"Mobifone": 2.5})
	enriched := []domain.EnrichedTransaction{
		{
			Transaction:  domain.Transaction{UserID: i64(1), Amount: i64(10001)},
			MerchantName: "Mobifone",
			Revenue:      dec(300),
		},
	}

	impact := Scenario(enriched, table)
	// Exact decimal arithmetic: 2.5% of 10001 is 250.025, not a rounded
	// float.
	if impact.ProposedTotal.String() != "250.025" {
		t.Errorf("ProposedTotal = %s, want 250.025", impact.ProposedTotal)
	}
	if impact.CurrentTotal.String() != "100.01" {
		t.Errorf("CurrentTotal = %s, want 100.01", impact.CurrentTotal)
	}
}

func TestScenario_NoCoverage(t *testing.T) {
	table := TableFromPercentages(1, map[string]float64{"Viettel": 2})
	enriched := []domain.EnrichedTransaction{
		{
			Transaction:  domain.Transaction{UserID: i64(1), Amount: i64(5000)},
			MerchantName: "Acme",
			Revenue:      dec(100),
		},
	}

	impact := Scenario(enriched, table)
	if impact.CoveredTransactions != 0 {
		t.Errorf("CoveredTransactions = %d, want 0", impact.CoveredTransactions)
	}
	if !impact.AdditionalCost.IsZero() {
		t.Errorf("AdditionalCost = %s, want 0", impact.AdditionalCost)
	}
	if impact.AdditionalPctOfRevenue != nil || impact.ProposedPctOfRevenue != nil {
		t.Error("percentage views must be nil without covered revenue")
	}
}

func TestScenario_SkipsRowsWithoutAmount(t *testing.T) {
	table := TableFromPercentages(1, map[string]float64{"Viettel": 2})
	enriched := []domain.EnrichedTransaction{
		{MerchantName: "Viettel"}, // no amount
		{
			Transaction:  domain.Transaction{UserID: i64(1), Amount: i64(1000)},
			MerchantName: "Viettel",
			Revenue:      dec(20),
		},
	}

	impact := Scenario(enriched, table)
	if impact.CoveredTransactions != 1 {
		t.Errorf("CoveredTransactions = %d, want 1", impact.CoveredTransactions)
	}
}

func TestArtifacts(t *testing.T) {
	s := Build(testEnriched(), TableFromPercentages(1, map[string]float64{"Viettel": 2}), 3)

	artifacts := s.Artifacts()
	names := make([]string, len(artifacts))
	for i, a := range artifacts {
		names[i] = a.Name
	}
	want := []string{
		"monthly_summary", "weekday_summary", "demographic_summary",
		"top_spenders", "most_active_users", "cashback_impact",
	}
	if len(names) != len(want) {
		t.Fatalf("artifact names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("artifact[%d] = %q, want %q", i, names[i], want[i])
		}
	}

	for _, a := range artifacts {
		for _, row := range a.Rows {
			if len(row) != len(a.Headers) {
				t.Errorf("%s: row width %d does not match header width %d", a.Name, len(row), len(a.Headers))
			}
		}
	}
}
