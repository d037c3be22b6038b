package pipeline

import (
	"fmt"

	"cloud.google.com/go/civil"

	"github.com/tnminh/revenue-pipeline/internal/domain"
)

// Stage 3: enrichment join. Transactions are the driving relation of a
// left outer join against the commission and user profile lookups. Both
// right-hand sides must be key-unique; a duplicate key here is a fatal
// integrity violation, never resolved by picking an arbitrary match.

// Enrich produces one EnrichedTransaction per input transaction. The
// output row count always equals len(txs); that invariant is asserted
// rather than assumed.
func Enrich(
	txs []domain.Transaction,
	rates []domain.CommissionRate,
	users []domain.UserProfile,
) ([]domain.EnrichedTransaction, error) {
	rateByMerchant, err := commissionLookup(rates)
	if err != nil {
		return nil, fmt.Errorf("Enrich: %w", err)
	}
	userByID, err := userLookup(users)
	if err != nil {
		return nil, fmt.Errorf("Enrich: %w", err)
	}

	out := make([]domain.EnrichedTransaction, 0, len(txs))
	for _, tx := range txs {
		e := domain.EnrichedTransaction{Transaction: tx}

		if tx.MerchantID != nil {
			if rate, ok := rateByMerchant[*tx.MerchantID]; ok {
				e.MerchantName = rate.MerchantName
				e.RatePct = rate.RatePct
			}
		}
		if e.RatePct != nil && tx.Amount != nil {
			rev := domain.Revenue(*tx.Amount, *e.RatePct)
			e.Revenue = &rev
		}

		if tx.Date != nil {
			e.Month = domain.MonthKey(*tx.Date)
			e.Weekday = domain.WeekdayName(*tx.Date)
		}

		if tx.UserID != nil {
			if u, ok := userByID[*tx.UserID]; ok {
				e.FirstTranDate = u.FirstTranDate
				e.Age = u.Age
				e.Gender = u.Gender
				e.Location = u.Location
			}
		}
		if tx.Date != nil && e.FirstTranDate != nil {
			days := tenureDays(*e.FirstTranDate, *tx.Date)
			e.TenureDays = &days
			if domain.MonthKey(*tx.Date) == domain.MonthKey(*e.FirstTranDate) {
				e.Lifecycle = domain.LifecycleNew
			} else {
				e.Lifecycle = domain.LifecycleCurrent
			}
		}

		out = append(out, e)
	}

	if len(out) != len(txs) {
		return nil, fmt.Errorf("Enrich: row-count invariant violated: %d in, %d out", len(txs), len(out))
	}
	return out, nil
}

// commissionLookup builds the merchant_id index, failing on duplicates.
func commissionLookup(rates []domain.CommissionRate) (map[int64]domain.CommissionRate, error) {
	byID := make(map[int64]domain.CommissionRate, len(rates))
	var dups []int64
	dupSeen := make(map[int64]bool)
	for _, r := range rates {
		if r.MerchantID == nil {
			continue
		}
		id := *r.MerchantID
		if _, exists := byID[id]; exists {
			if !dupSeen[id] {
				dupSeen[id] = true
				dups = append(dups, id)
			}
			continue
		}
		byID[id] = r
	}
	if len(dups) > 0 {
		return nil, &domain.DuplicateKeyError{Table: "commission", Field: "merchant_id", Keys: dups}
	}
	return byID, nil
}

// userLookup builds the user_id index, failing on duplicates.
func userLookup(users []domain.UserProfile) (map[int64]domain.UserProfile, error) {
	byID := make(map[int64]domain.UserProfile, len(users))
	var dups []int64
	dupSeen := make(map[int64]bool)
	for _, u := range users {
		if u.UserID == nil {
			continue
		}
		id := *u.UserID
		if _, exists := byID[id]; exists {
			if !dupSeen[id] {
				dupSeen[id] = true
				dups = append(dups, id)
			}
			continue
		}
		byID[id] = u
	}
	if len(dups) > 0 {
		return nil, &domain.DuplicateKeyError{Table: "user_info", Field: "user_id", Keys: dups}
	}
	return byID, nil
}

// tenureDays is the signed day count from first to date. Negative when a
// transaction predates the recorded first-transaction date; that is a
// data-quality signal surfaced downstream, not an error.
func tenureDays(first, date civil.Date) int64 {
	return int64(date.DaysSince(first))
}
