// Package report computes read-only summaries over the enriched
// transaction set: calendar and demographic aggregates, user rankings,
// and the cashback scenario simulation. Nothing here mutates its input.
package report

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/tnminh/revenue-pipeline/internal/domain"
)

// Summary is the full aggregate report for one pipeline run.
type Summary struct {
	Monthly      []MonthlyRow
	Weekday      []WeekdayRow
	Demographics []DemographicRow
	TopSpenders  []UserRow
	MostActive   []UserRow
	Cashback     *CashbackImpact

	// MissingRevenue counts rows whose revenue is null (no commission
	// match). They contribute nothing to revenue sums and are reported
	// here instead of being coerced to zero.
	MissingRevenue int
}

// MonthlyRow aggregates one calendar month.
type MonthlyRow struct {
	Month          string
	Transactions   int
	Revenue        decimal.Decimal
	MissingRevenue int
	ActiveUsers    int
	NewUsers       int
}

// WeekdayRow aggregates one day-of-week name.
type WeekdayRow struct {
	Weekday      string
	Transactions int
	Revenue      decimal.Decimal
	AvgRevenue   decimal.Decimal // over rows with non-null revenue
}

// DemographicRow aggregates one value of one demographic dimension.
// Missing values are reported under the "Unknown" label.
type DemographicRow struct {
	Dimension    string // "age", "gender" or "location"
	Value        string
	Users        int
	Transactions int
	Revenue      decimal.Decimal
	AvgAmount    decimal.Decimal
}

// UserRow is one entry of a per-user ranking.
type UserRow struct {
	UserID       int64
	TotalSpend   int64
	Transactions int
}

var weekdayOrder = []string{
	"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday",
}

// Build computes the full summary. topN bounds the user rankings; cash
// may be zero-valued to skip the scenario.
func Build(enriched []domain.EnrichedTransaction, cash CashbackTable, topN int) *Summary {
	s := &Summary{
		Monthly:      monthlyRows(enriched),
		Weekday:      weekdayRows(enriched),
		Demographics: demographicRows(enriched),
	}
	for _, e := range enriched {
		if e.Revenue == nil {
			s.MissingRevenue++
		}
	}
	s.TopSpenders, s.MostActive = userRankings(enriched, topN)
	if len(cash.Rates) > 0 {
		s.Cashback = Scenario(enriched, cash)
	}
	return s
}

func monthlyRows(enriched []domain.EnrichedTransaction) []MonthlyRow {
	type acc struct {
		row      MonthlyRow
		active   map[int64]bool
		newUsers map[int64]bool
	}
	byMonth := map[string]*acc{}
	for _, e := range enriched {
		if e.Month == "" {
			continue
		}
		a := byMonth[e.Month]
		if a == nil {
			a = &acc{
				row:      MonthlyRow{Month: e.Month},
				active:   map[int64]bool{},
				newUsers: map[int64]bool{},
			}
			byMonth[e.Month] = a
		}
		a.row.Transactions++
		if e.Revenue != nil {
			a.row.Revenue = a.row.Revenue.Add(*e.Revenue)
		} else {
			a.row.MissingRevenue++
		}
		if e.UserID != nil {
			a.active[*e.UserID] = true
			if e.Lifecycle == domain.LifecycleNew {
				a.newUsers[*e.UserID] = true
			}
		}
	}

	months := make([]string, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	sort.Strings(months)

	out := make([]MonthlyRow, 0, len(months))
	for _, m := range months {
		a := byMonth[m]
		a.row.ActiveUsers = len(a.active)
		a.row.NewUsers = len(a.newUsers)
		out = append(out, a.row)
	}
	return out
}

func weekdayRows(enriched []domain.EnrichedTransaction) []WeekdayRow {
	type acc struct {
		row         WeekdayRow
		revenueRows int
	}
	byDay := map[string]*acc{}
	for _, e := range enriched {
		if e.Weekday == "" {
			continue
		}
		a := byDay[e.Weekday]
		if a == nil {
			a = &acc{row: WeekdayRow{Weekday: e.Weekday}}
			byDay[e.Weekday] = a
		}
		a.row.Transactions++
		if e.Revenue != nil {
			a.row.Revenue = a.row.Revenue.Add(*e.Revenue)
			a.revenueRows++
		}
	}

	out := make([]WeekdayRow, 0, len(byDay))
	for _, day := range weekdayOrder {
		a, ok := byDay[day]
		if !ok {
			continue
		}
		if a.revenueRows > 0 {
			a.row.AvgRevenue = a.row.Revenue.Div(decimal.NewFromInt(int64(a.revenueRows)))
		}
		out = append(out, a.row)
	}
	return out
}

func demographicRows(enriched []domain.EnrichedTransaction) []DemographicRow {
	type acc struct {
		row       DemographicRow
		users     map[int64]bool
		amountSum int64
		amountN   int64
	}
	accs := map[[2]string]*acc{}

	observe := func(dimension, value string, e domain.EnrichedTransaction) {
		if value == "" {
			value = "Unknown"
		}
		key := [2]string{dimension, value}
		a := accs[key]
		if a == nil {
			a = &acc{
				row:   DemographicRow{Dimension: dimension, Value: value},
				users: map[int64]bool{},
			}
			accs[key] = a
		}
		a.row.Transactions++
		if e.UserID != nil {
			a.users[*e.UserID] = true
		}
		if e.Revenue != nil {
			a.row.Revenue = a.row.Revenue.Add(*e.Revenue)
		}
		if e.Amount != nil {
			a.amountSum += *e.Amount
			a.amountN++
		}
	}

	for _, e := range enriched {
		observe("age", e.Age, e)
		observe("gender", e.Gender, e)
		observe("location", e.Location, e)
	}

	keys := make([][2]string, 0, len(accs))
	for k := range accs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})

	out := make([]DemographicRow, 0, len(keys))
	for _, k := range keys {
		a := accs[k]
		a.row.Users = len(a.users)
		if a.amountN > 0 {
			a.row.AvgAmount = decimal.NewFromInt(a.amountSum).Div(decimal.NewFromInt(a.amountN))
		}
		out = append(out, a.row)
	}
	return out
}

func userRankings(enriched []domain.EnrichedTransaction, topN int) (spenders, active []UserRow) {
	byUser := map[int64]*UserRow{}
	for _, e := range enriched {
		if e.UserID == nil {
			continue
		}
		u := byUser[*e.UserID]
		if u == nil {
			u = &UserRow{UserID: *e.UserID}
			byUser[*e.UserID] = u
		}
		u.Transactions++
		if e.Amount != nil {
			u.TotalSpend += *e.Amount
		}
	}

	all := make([]UserRow, 0, len(byUser))
	for _, u := range byUser {
		all = append(all, *u)
	}

	spenders = append([]UserRow(nil), all...)
	sort.Slice(spenders, func(i, j int) bool {
		if spenders[i].TotalSpend != spenders[j].TotalSpend {
			return spenders[i].TotalSpend > spenders[j].TotalSpend
		}
		return spenders[i].UserID < spenders[j].UserID
	})

	active = append([]UserRow(nil), all...)
	sort.Slice(active, func(i, j int) bool {
		if active[i].Transactions != active[j].Transactions {
			return active[i].Transactions > active[j].Transactions
		}
		return active[i].UserID < active[j].UserID
	})

	if topN > 0 {
		if len(spenders) > topN {
			spenders = spenders[:topN]
		}
		if len(active) > topN {
			active = active[:topN]
		}
	}
	return spenders, active
}
