package pipeline

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/tnminh/revenue-pipeline/internal/domain"
	"github.com/tnminh/revenue-pipeline/internal/tabular"
)

// Stage 1: schema normalization. Raw tables with ad-hoc column names,
// mixed date formats and locale-separated amounts come in; canonical-typed
// domain records come out. Nothing is filtered here except exact row
// duplicates (true copies of the same record); conflicting records that
// share an identity key are an integrity concern and stay until stage 2.

// columnSynonyms maps each canonical column onto the raw spellings seen in
// source exports. Lookup is case/whitespace-insensitive on top of this.
var columnSynonyms = map[string][]string{
	"user_id":         {"user_id", "userid", "user id"},
	"order_id":        {"order_id", "orderid", "order id"},
	"date":            {"date", "tran_date", "transaction_date"},
	"amount":          {"amount", "tran_amount", "value"},
	"merchant_id":     {"merchant_id", "merchantid", "merchant id"},
	"purchase_status": {"purchase_status", "purchase status", "status"},
	"merchant_name":   {"merchant_name", "merchant name", "merchant"},
	"rate_pct":        {"rate_pct", "rate", "commission_rate"},
	"first_tran_date": {"first_tran_date", "first_transaction_date"},
	"location":        {"location", "city"},
	"age":             {"age", "age_group"},
	"gender":          {"gender", "sex"},
}

func findColumn(t *tabular.Table, canonical string) int {
	for _, syn := range columnSynonyms[canonical] {
		if i := t.Index(syn); i >= 0 {
			return i
		}
	}
	return t.Index(canonical)
}

// dateLayouts are tried in order. ISO forms win; slash-separated numeric
// dates are read month-first, matching the source exports.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02",
	"1/2/2006",
	"1/2/2006 15:04",
	"02-Jan-2006",
	"January 2, 2006",
}

// ParseDate parses a textual calendar date. Unparseable values yield nil,
// never a default date.
func ParseDate(s string) *civil.Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d := civil.DateOf(t)
			return &d
		}
	}
	return nil
}

// ParseAmount parses a currency value after stripping thousands separators
// and surrounding whitespace. Non-numeric residue yields nil.
func ParseAmount(s string) *int64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return nil
	}
	return parseInt(s)
}

// parseInt parses an integer identifier or value. Numeric exports often
// carry a float-style ".0" suffix after round-tripping, which is accepted.
func parseInt(s string) *int64 {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ".0")
	if s == "" {
		return nil
	}
	neg := false
	if s[0] == '-' || s[0] == '+' {
		neg = s[0] == '-'
		s = s[1:]
		if s == "" {
			return nil
		}
	}
	var n int64
	for _, r := range s {
		if r < '0' || r > '9' {
			return nil
		}
		n = n*10 + int64(r-'0')
	}
	if neg {
		n = -n
	}
	return &n
}

// Canonicalization tables. Keys are lower-cased, trimmed raw values; any
// value not present and not empty passes through unchanged, so legitimate
// unmapped vocabulary survives untouched.

var purchaseStatusCanon = map[string]string{
	"purchase on behalf of someone": "Mua hộ",
	"mua ho":                        "Mua hộ",
	"mua hộ":                        "Mua hộ",
}

var genderCanon = map[string]string{
	"male":    "Male",
	"m":       "Male",
	"male_":   "Male",
	"female":  "Female",
	"f":       "Female",
	"female_": "Female",
	"female.": "Female",
	"unknown": "Unknown",
}

var locationCanon = map[string]string{
	"ho chi minh city": "HCMC",
	"other cities":     "Other",
	"unknown":          "Unknown",
}

// Canonicalize rewrites known noisy variants of a categorical value onto
// the canonical vocabulary. Empty values become "" (missing).
func Canonicalize(table map[string]string, raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if canonical, ok := table[strings.ToLower(trimmed)]; ok {
		return canonical
	}
	return trimmed
}

// dedupExactRows removes rows that are identical across all fields,
// keeping the first copy. Returns the surviving rows and the drop count.
func dedupExactRows(rows [][]string) ([][]string, int) {
	seen := make(map[string]bool, len(rows))
	kept := rows[:0:0]
	dropped := 0
	for _, row := range rows {
		key := strings.Join(row, "\x1f")
		if seen[key] {
			dropped++
			continue
		}
		seen[key] = true
		kept = append(kept, row)
	}
	return kept, dropped
}

// NormalizeTransactions maps a raw transaction table onto domain records.
func NormalizeTransactions(t *tabular.Table) ([]domain.Transaction, int) {
	rows, dups := dedupExactRows(t.Rows)

	userCol := findColumn(t, "user_id")
	orderCol := findColumn(t, "order_id")
	dateCol := findColumn(t, "date")
	amountCol := findColumn(t, "amount")
	merchantCol := findColumn(t, "merchant_id")
	statusCol := findColumn(t, "purchase_status")

	out := make([]domain.Transaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.Transaction{
			UserID:         parseInt(t.Cell(row, userCol)),
			OrderID:        parseInt(t.Cell(row, orderCol)),
			Date:           ParseDate(t.Cell(row, dateCol)),
			Amount:         ParseAmount(t.Cell(row, amountCol)),
			MerchantID:     parseInt(t.Cell(row, merchantCol)),
			PurchaseStatus: Canonicalize(purchaseStatusCanon, t.Cell(row, statusCol)),
		})
	}
	return out, dups
}

// NormalizeCommission maps a raw commission table onto domain records.
func NormalizeCommission(t *tabular.Table) ([]domain.CommissionRate, int) {
	rows, dups := dedupExactRows(t.Rows)

	nameCol := findColumn(t, "merchant_name")
	idCol := findColumn(t, "merchant_id")
	rateCol := findColumn(t, "rate_pct")

	out := make([]domain.CommissionRate, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.CommissionRate{
			MerchantID:   parseInt(t.Cell(row, idCol)),
			MerchantName: strings.TrimSpace(t.Cell(row, nameCol)),
			RatePct:      parseInt(t.Cell(row, rateCol)),
		})
	}
	return out, dups
}

// NormalizeUserInfo maps a raw user profile table onto domain records.
func NormalizeUserInfo(t *tabular.Table) ([]domain.UserProfile, int) {
	rows, dups := dedupExactRows(t.Rows)

	idCol := findColumn(t, "user_id")
	firstCol := findColumn(t, "first_tran_date")
	locCol := findColumn(t, "location")
	ageCol := findColumn(t, "age")
	genderCol := findColumn(t, "gender")

	out := make([]domain.UserProfile, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.UserProfile{
			UserID:        parseInt(t.Cell(row, idCol)),
			FirstTranDate: ParseDate(t.Cell(row, firstCol)),
			Location:      Canonicalize(locationCanon, t.Cell(row, locCol)),
			Age:           strings.TrimSpace(t.Cell(row, ageCol)),
			Gender:        Canonicalize(genderCanon, t.Cell(row, genderCol)),
		})
	}
	return out, dups
}
