package domain

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Transaction represents one normalized payment event. This is a domain
// struct, not a CSV row; the tabular package maps raw cells into it.
// Fields that can be absent in the raw data are pointers; the quality
// filter guarantees UserID, OrderID, Date and Amount are non-nil for every
// transaction that survives it.
type Transaction struct {
	UserID     *int64      // from "user_id"
	OrderID    *int64      // from "order_id"
	Date       *civil.Date // parsed from "date", nil if unparseable
	Amount     *int64      // VND, smallest unit; nil if unparseable
	MerchantID *int64      // from "merchant_id" or nil

	PurchaseStatus string // canonicalized, "" means missing
}

// CommissionRate is one merchant's revenue-share agreement. Exactly one
// active rate per merchant id after key deduplication.
type CommissionRate struct {
	MerchantID   *int64 // unique key after dedup
	MerchantName string // display string
	RatePct      *int64 // integer percentage, nil if unparseable
}

// UserProfile is one customer record, keyed by user id.
type UserProfile struct {
	UserID        *int64
	FirstTranDate *civil.Date // earliest transaction date per the source
	Location      string      // canonicalized, "" means missing
	Age           string      // categorical bucket, "" means missing
	Gender        string      // Male / Female, "" means missing
}

// Lifecycle classifies a transaction relative to its user's first active
// calendar month. The empty value means undetermined (a date was missing).
type Lifecycle string

const (
	LifecycleNew     Lifecycle = "New"
	LifecycleCurrent Lifecycle = "Current"
)

// EnrichedTransaction is a Transaction left-joined with its commission rate
// and user profile, plus the derived reporting fields. The embedded source
// fields are never mutated by enrichment.
type EnrichedTransaction struct {
	Transaction

	// From CommissionRate (nil/empty when the merchant has no rate row).
	MerchantName string
	RatePct      *int64

	// From UserProfile (nil/empty when the user has no profile row).
	FirstTranDate *civil.Date
	Age           string
	Gender        string
	Location      string

	// Derived.
	Revenue    *decimal.Decimal // amount * rate_pct / 100, nil without a rate
	Month      string           // "YYYY-MM" bucket of Date
	Weekday    string           // day-of-week name of Date
	TenureDays *int64           // Date - FirstTranDate in days, may be negative
	Lifecycle  Lifecycle        // New / Current / "" undetermined
}

// MonthKey returns the calendar-month bucket of d as "YYYY-MM".
func MonthKey(d civil.Date) string {
	return d.In(time.UTC).Format("2006-01")
}

// WeekdayName returns the English day-of-week name of d.
func WeekdayName(d civil.Date) string {
	return d.In(time.UTC).Weekday().String()
}

// Revenue computes amount * ratePct / 100 with exact decimal semantics.
func Revenue(amount, ratePct int64) decimal.Decimal {
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(ratePct)).
		Div(decimal.NewFromInt(100))
}
