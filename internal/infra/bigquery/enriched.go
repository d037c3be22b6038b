// Package bigquery publishes the enriched transaction table to the
// warehouse. Publication is optional and happens after the pipeline has
// written its file artifacts; it never participates in the pipeline's own
// control flow.
package bigquery

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"

	"github.com/tnminh/revenue-pipeline/internal/domain"
)

// EnrichedRow is the warehouse schema of one enriched transaction.
type EnrichedRow struct {
	RunID string `bigquery:"run_id"` // REQUIRED

	UserID          int64      `bigquery:"user_id"`          // REQUIRED
	OrderID         int64      `bigquery:"order_id"`         // REQUIRED
	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED
	Amount          int64      `bigquery:"amount"`           // REQUIRED

	MerchantID     bigquery.NullInt64  `bigquery:"merchant_id"`     // NULLABLE
	PurchaseStatus bigquery.NullString `bigquery:"purchase_status"` // NULLABLE

	MerchantName bigquery.NullString `bigquery:"merchant_name"` // NULLABLE
	RatePct      bigquery.NullInt64  `bigquery:"rate_pct"`      // NULLABLE
	Revenue      *big.Rat            `bigquery:"revenue"`       // NULLABLE NUMERIC

	FirstTranDate bigquery.NullDate   `bigquery:"first_tran_date"` // NULLABLE
	Age           bigquery.NullString `bigquery:"age"`             // NULLABLE
	Gender        bigquery.NullString `bigquery:"gender"`          // NULLABLE
	Location      bigquery.NullString `bigquery:"location"`        // NULLABLE

	Month      string              `bigquery:"month"`       // "YYYY-MM"
	Weekday    string              `bigquery:"weekday"`     // day name
	TenureDays bigquery.NullInt64  `bigquery:"tenure_days"` // NULLABLE
	TypeUser   bigquery.NullString `bigquery:"type_user"`   // New / Current

	CreatedTS time.Time `bigquery:"created_ts"`
}

// FromDomain maps an enriched transaction onto its warehouse row. The
// caller guarantees the quality-filter invariants (user, order, date and
// amount present).
func FromDomain(e domain.EnrichedTransaction, runID string, now time.Time) *EnrichedRow {
	row := &EnrichedRow{
		RunID:           runID,
		UserID:          *e.UserID,
		OrderID:         *e.OrderID,
		TransactionDate: *e.Date,
		Amount:          *e.Amount,
		Month:           e.Month,
		Weekday:         e.Weekday,
		CreatedTS:       now,
	}
	if e.MerchantID != nil {
		row.MerchantID = bigquery.NullInt64{Int64: *e.MerchantID, Valid: true}
	}
	if e.PurchaseStatus != "" {
		row.PurchaseStatus = bigquery.NullString{StringVal: e.PurchaseStatus, Valid: true}
	}
	if e.MerchantName != "" {
		row.MerchantName = bigquery.NullString{StringVal: e.MerchantName, Valid: true}
	}
	if e.RatePct != nil {
		row.RatePct = bigquery.NullInt64{Int64: *e.RatePct, Valid: true}
	}
	if e.Revenue != nil {
		row.Revenue = e.Revenue.Rat()
	}
	if e.FirstTranDate != nil {
		row.FirstTranDate = bigquery.NullDate{Date: *e.FirstTranDate, Valid: true}
	}
	if e.Age != "" {
		row.Age = bigquery.NullString{StringVal: e.Age, Valid: true}
	}
	if e.Gender != "" {
		row.Gender = bigquery.NullString{StringVal: e.Gender, Valid: true}
	}
	if e.Location != "" {
		row.Location = bigquery.NullString{StringVal: e.Location, Valid: true}
	}
	if e.TenureDays != nil {
		row.TenureDays = bigquery.NullInt64{Int64: *e.TenureDays, Valid: true}
	}
	if e.Lifecycle != "" {
		row.TypeUser = bigquery.NullString{StringVal: string(e.Lifecycle), Valid: true}
	}
	return row
}

// EnrichedRepository holds a shared BigQuery client for publication
// operations.
type EnrichedRepository struct {
	client *bigquery.Client
}

// NewEnrichedRepository creates a repository with a shared client.
func NewEnrichedRepository(ctx context.Context, projectID string) (*EnrichedRepository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewEnrichedRepository: creating client: %w", err)
	}
	return &EnrichedRepository{client: client}, nil
}

// Close closes the BigQuery client connection.
func (r *EnrichedRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// insertBatchSize bounds the streaming insert payload.
const insertBatchSize = 500

// InsertEnriched streams the rows into dataset.table in batches.
func (r *EnrichedRepository) InsertEnriched(ctx context.Context, dataset, table string, rows []*EnrichedRow) error {
	inserter := r.client.Dataset(dataset).Table(table).Inserter()
	for start := 0; start < len(rows); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := inserter.Put(ctx, rows[start:end]); err != nil {
			return fmt.Errorf("InsertEnriched: inserting rows %d..%d: %w", start, end, err)
		}
	}
	return nil
}

// CountRunRows reads back the number of rows published under runID, used
// as a post-publication sanity check against the local row count.
func (r *EnrichedRepository) CountRunRows(ctx context.Context, dataset, table, runID string) (int64, error) {
	q := r.client.Query(fmt.Sprintf(
		"SELECT COUNT(*) AS n FROM `%s.%s` WHERE run_id = @run_id", dataset, table,
	))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: runID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("CountRunRows: running query: %w", err)
	}

	var row struct {
		N int64 `bigquery:"n"`
	}
	if err := it.Next(&row); err != nil && err != iterator.Done {
		return 0, fmt.Errorf("CountRunRows: reading result: %w", err)
	}
	return row.N, nil
}
