package pipeline

import (
	"fmt"
	"sort"

	"cloud.google.com/go/civil"

	"github.com/tnminh/revenue-pipeline/internal/domain"
)

// Stage 2: integrity and quality filtering. Rows violating required-field
// or domain-validity constraints are dropped and counted, never repaired.
// Lookup tables are reduced to unique keys (first occurrence wins, stable
// by original order) so the stage 3 join can be a provable 1:1-per-row
// extension.

// TransactionDrops counts transactions removed per reason.
type TransactionDrops struct {
	MissingRequired   int // user_id, order_id, date or amount absent
	NonPositiveAmount int // amount <= 0
}

// FilterTransactions applies the required-field and domain rules. The
// returned slice preserves input order.
func FilterTransactions(txs []domain.Transaction) ([]domain.Transaction, TransactionDrops) {
	var drops TransactionDrops
	kept := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.UserID == nil || tx.OrderID == nil || tx.Date == nil || tx.Amount == nil {
			drops.MissingRequired++
			continue
		}
		if *tx.Amount <= 0 {
			drops.NonPositiveAmount++
			continue
		}
		kept = append(kept, tx)
	}
	return kept, drops
}

// KeyDrops counts lookup-table rows removed during key deduplication.
type KeyDrops struct {
	MissingKey    int // key column absent or unparseable
	DuplicateKeys int // later occurrences of an already-seen key
}

// DedupCommission reduces the commission table to one row per merchant_id,
// keeping the first occurrence. Rows without a parseable key cannot
// participate in the join and are dropped with a count.
func DedupCommission(rates []domain.CommissionRate) ([]domain.CommissionRate, KeyDrops) {
	var drops KeyDrops
	seen := make(map[int64]bool, len(rates))
	kept := make([]domain.CommissionRate, 0, len(rates))
	for _, r := range rates {
		if r.MerchantID == nil {
			drops.MissingKey++
			continue
		}
		if seen[*r.MerchantID] {
			drops.DuplicateKeys++
			continue
		}
		seen[*r.MerchantID] = true
		kept = append(kept, r)
	}
	return kept, drops
}

// DedupUsers reduces the user profile table to one row per user_id,
// keeping the first occurrence.
func DedupUsers(users []domain.UserProfile) ([]domain.UserProfile, KeyDrops) {
	var drops KeyDrops
	seen := make(map[int64]bool, len(users))
	kept := make([]domain.UserProfile, 0, len(users))
	for _, u := range users {
		if u.UserID == nil {
			drops.MissingKey++
			continue
		}
		if seen[*u.UserID] {
			drops.DuplicateKeys++
			continue
		}
		seen[*u.UserID] = true
		kept = append(kept, u)
	}
	return kept, drops
}

// EntityDiagnostics is the descriptive data-quality summary for one
// entity. Informational only; nothing here blocks the run.
type EntityDiagnostics struct {
	Entity  string
	RowsIn  int
	RowsOut int

	ExactDuplicates int
	MissingRequired int
	NonPositive     int
	MissingKey      int
	DuplicateKeys   int

	NullCounts map[string]int

	AmountMin *int64
	AmountMax *int64
	DateMin   *civil.Date
	DateMax   *civil.Date

	// Up to sampleLimit distinct values per categorical field.
	Samples map[string][]string
}

const sampleLimit = 5

// Diagnostics aggregates the per-entity summaries plus the run identity.
type Diagnostics struct {
	RunID        string
	Transactions EntityDiagnostics
	Commission   EntityDiagnostics
	UserInfo     EntityDiagnostics
}

// Rows flattens the diagnostics into (entity, metric, value) triples for
// the diagnostics artifact.
func (d *Diagnostics) Rows() [][]string {
	var out [][]string
	out = append(out, []string{"run", "run_id", d.RunID})
	for _, e := range []*EntityDiagnostics{&d.Transactions, &d.Commission, &d.UserInfo} {
		out = append(out,
			[]string{e.Entity, "rows_in", fmt.Sprintf("%d", e.RowsIn)},
			[]string{e.Entity, "rows_out", fmt.Sprintf("%d", e.RowsOut)},
			[]string{e.Entity, "exact_duplicates_dropped", fmt.Sprintf("%d", e.ExactDuplicates)},
		)
		if e.MissingRequired > 0 || e.Entity == "transactions" {
			out = append(out,
				[]string{e.Entity, "missing_required_dropped", fmt.Sprintf("%d", e.MissingRequired)},
				[]string{e.Entity, "non_positive_dropped", fmt.Sprintf("%d", e.NonPositive)},
			)
		}
		if e.Entity != "transactions" {
			out = append(out,
				[]string{e.Entity, "missing_key_dropped", fmt.Sprintf("%d", e.MissingKey)},
				[]string{e.Entity, "duplicate_keys_dropped", fmt.Sprintf("%d", e.DuplicateKeys)},
			)
		}
		for _, field := range sortedKeys(e.NullCounts) {
			out = append(out, []string{e.Entity, "nulls." + field, fmt.Sprintf("%d", e.NullCounts[field])})
		}
		if e.AmountMin != nil && e.AmountMax != nil {
			out = append(out,
				[]string{e.Entity, "amount_min", fmt.Sprintf("%d", *e.AmountMin)},
				[]string{e.Entity, "amount_max", fmt.Sprintf("%d", *e.AmountMax)},
			)
		}
		if e.DateMin != nil && e.DateMax != nil {
			out = append(out,
				[]string{e.Entity, "date_min", e.DateMin.String()},
				[]string{e.Entity, "date_max", e.DateMax.String()},
			)
		}
		for _, field := range sortedKeys(e.Samples) {
			for _, v := range e.Samples[field] {
				out = append(out, []string{e.Entity, "sample." + field, v})
			}
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DescribeTransactions builds the descriptive summary over the filtered
// transaction set.
func DescribeTransactions(txs []domain.Transaction) EntityDiagnostics {
	e := EntityDiagnostics{
		Entity:     "transactions",
		RowsOut:    len(txs),
		NullCounts: map[string]int{},
		Samples:    map[string][]string{},
	}
	statusSample := newSampler()
	for _, tx := range txs {
		countNil(e.NullCounts, "merchant_id", tx.MerchantID == nil)
		countNil(e.NullCounts, "purchase_status", tx.PurchaseStatus == "")
		if tx.Amount != nil {
			e.AmountMin = minInt(e.AmountMin, *tx.Amount)
			e.AmountMax = maxInt(e.AmountMax, *tx.Amount)
		}
		if tx.Date != nil {
			e.DateMin = minDate(e.DateMin, *tx.Date)
			e.DateMax = maxDate(e.DateMax, *tx.Date)
		}
		statusSample.add(tx.PurchaseStatus)
	}
	e.Samples["purchase_status"] = statusSample.values()
	return e
}

// DescribeCommission builds the descriptive summary over the deduplicated
// commission table.
func DescribeCommission(rates []domain.CommissionRate) EntityDiagnostics {
	e := EntityDiagnostics{
		Entity:     "commission",
		RowsOut:    len(rates),
		NullCounts: map[string]int{},
		Samples:    map[string][]string{},
	}
	nameSample := newSampler()
	for _, r := range rates {
		countNil(e.NullCounts, "merchant_name", r.MerchantName == "")
		countNil(e.NullCounts, "rate_pct", r.RatePct == nil)
		nameSample.add(r.MerchantName)
	}
	e.Samples["merchant_name"] = nameSample.values()
	return e
}

// DescribeUsers builds the descriptive summary over the deduplicated user
// profile table.
func DescribeUsers(users []domain.UserProfile) EntityDiagnostics {
	e := EntityDiagnostics{
		Entity:     "user_info",
		RowsOut:    len(users),
		NullCounts: map[string]int{},
		Samples:    map[string][]string{},
	}
	ageSample := newSampler()
	genderSample := newSampler()
	locationSample := newSampler()
	for _, u := range users {
		countNil(e.NullCounts, "first_tran_date", u.FirstTranDate == nil)
		countNil(e.NullCounts, "location", u.Location == "")
		countNil(e.NullCounts, "age", u.Age == "")
		countNil(e.NullCounts, "gender", u.Gender == "")
		if u.FirstTranDate != nil {
			e.DateMin = minDate(e.DateMin, *u.FirstTranDate)
			e.DateMax = maxDate(e.DateMax, *u.FirstTranDate)
		}
		ageSample.add(u.Age)
		genderSample.add(u.Gender)
		locationSample.add(u.Location)
	}
	e.Samples["age"] = ageSample.values()
	e.Samples["gender"] = genderSample.values()
	e.Samples["location"] = locationSample.values()
	return e
}

func countNil(counts map[string]int, field string, isNil bool) {
	if isNil {
		counts[field]++
	}
}

// sampler collects the first few distinct non-empty values of a field, in
// first-seen order.
type sampler struct {
	seen  map[string]bool
	order []string
}

func newSampler() *sampler {
	return &sampler{seen: map[string]bool{}}
}

func (s *sampler) add(v string) {
	if v == "" || s.seen[v] || len(s.order) >= sampleLimit {
		return
	}
	s.seen[v] = true
	s.order = append(s.order, v)
}

func (s *sampler) values() []string { return s.order }

func minInt(cur *int64, v int64) *int64 {
	if cur == nil || v < *cur {
		return &v
	}
	return cur
}

func maxInt(cur *int64, v int64) *int64 {
	if cur == nil || v > *cur {
		return &v
	}
	return cur
}

func minDate(cur *civil.Date, v civil.Date) *civil.Date {
	if cur == nil || v.Before(*cur) {
		return &v
	}
	return cur
}

func maxDate(cur *civil.Date, v civil.Date) *civil.Date {
	if cur == nil || v.After(*cur) {
		return &v
	}
	return cur
}
