package pipeline

import (
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/tnminh/revenue-pipeline/internal/domain"
)

// CSV encoding of the domain records. Missing values render as empty
// cells so null and zero never collapse into each other.

func fmtInt(p *int64) string {
	if p == nil {
		return ""
	}
	return fmt.Sprintf("%d", *p)
}

func fmtDate(p *civil.Date) string {
	if p == nil {
		return ""
	}
	return p.String()
}

func fmtDecimal(p *decimal.Decimal) string {
	if p == nil {
		return ""
	}
	return p.String()
}

func transactionRows(txs []domain.Transaction) ([]string, [][]string) {
	headers := []string{"user_id", "order_id", "date", "amount", "merchant_id", "purchase_status"}
	rows := make([][]string, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, []string{
			fmtInt(tx.UserID),
			fmtInt(tx.OrderID),
			fmtDate(tx.Date),
			fmtInt(tx.Amount),
			fmtInt(tx.MerchantID),
			tx.PurchaseStatus,
		})
	}
	return headers, rows
}

func commissionRows(rates []domain.CommissionRate) ([]string, [][]string) {
	headers := []string{"merchant_name", "merchant_id", "rate_pct"}
	rows := make([][]string, 0, len(rates))
	for _, r := range rates {
		rows = append(rows, []string{
			r.MerchantName,
			fmtInt(r.MerchantID),
			fmtInt(r.RatePct),
		})
	}
	return headers, rows
}

func userRows(users []domain.UserProfile) ([]string, [][]string) {
	headers := []string{"user_id", "first_tran_date", "location", "age", "gender"}
	rows := make([][]string, 0, len(users))
	for _, u := range users {
		rows = append(rows, []string{
			fmtInt(u.UserID),
			fmtDate(u.FirstTranDate),
			u.Location,
			u.Age,
			u.Gender,
		})
	}
	return headers, rows
}

// EnrichedHeaders is the column set of the master merged table, a strict
// superset of the transaction columns.
var EnrichedHeaders = []string{
	"user_id", "order_id", "date", "amount", "merchant_id", "purchase_status",
	"merchant_name", "rate_pct", "revenue",
	"first_tran_date", "age", "gender", "location",
	"month", "weekday", "tenure_days", "type_user",
}

func enrichedRows(enriched []domain.EnrichedTransaction) ([]string, [][]string) {
	rows := make([][]string, 0, len(enriched))
	for _, e := range enriched {
		rows = append(rows, []string{
			fmtInt(e.UserID),
			fmtInt(e.OrderID),
			fmtDate(e.Date),
			fmtInt(e.Amount),
			fmtInt(e.MerchantID),
			e.PurchaseStatus,
			e.MerchantName,
			fmtInt(e.RatePct),
			fmtDecimal(e.Revenue),
			fmtDate(e.FirstTranDate),
			e.Age,
			e.Gender,
			e.Location,
			e.Month,
			e.Weekday,
			fmtInt(e.TenureDays),
			string(e.Lifecycle),
		})
	}
	return EnrichedHeaders, rows
}
