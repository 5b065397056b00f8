// Package fee computes hostel fees from allocation date spans.  All
// functions are pure: callers pass "today" explicitly, in the hostel's
// time zone, and every calendar date is taken in that zone.
package fee

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/hostel-management/internal/model"
)

// Period selects the slicing used by Breakdown.
type Period string

const (
	Daily   Period = "daily"
	Weekly  Period = "weekly"
	Monthly Period = "monthly"
)

// ErrInvalidPeriod is returned by ParsePeriod for unknown values.
var ErrInvalidPeriod = errors.New(`duration_type must be "daily", "weekly", or "monthly"`)

// ParsePeriod parses a period name case-insensitively; empty means Daily.
func ParsePeriod(s string) (Period, error) {
	switch Period(strings.ToLower(strings.TrimSpace(s))) {
	case "", Daily:
		return Daily, nil
	case Weekly:
		return Weekly, nil
	case Monthly:
		return Monthly, nil
	}
	return "", ErrInvalidPeriod
}

// Span is the stay covered by an allocation.  End is nil while the
// allocation is still active, in which case billing runs until today.
type Span struct {
	Start time.Time
	End   *time.Time
}

// SpanOf returns the billing span of an allocation.
func SpanOf(a model.Allocation) Span {
	return Span{Start: a.AllocatedAt, End: a.VacatedAt}
}

// Dates returns the first and last billed calendar dates of the span.
// Both are midnight UTC values carrying the calendar date as observed in
// today's location.
func (s Span) Dates(today time.Time) (from, to time.Time) {
	loc := today.Location()
	from = dateOf(s.Start, loc)
	if s.End != nil {
		to = dateOf(*s.End, loc)
	} else {
		to = dateOf(today, loc)
	}
	if to.Before(from) {
		to = from
	}
	return from, to
}

// Slice is one period of a fee breakdown.
type Slice struct {
	Period string          `json:"period"`
	From   time.Time       `json:"from"`
	To     time.Time       `json:"to"`
	Days   int             `json:"days"`
	Amount decimal.Decimal `json:"amount"`
}

// Compute returns the billed day count and amount of a span.  Both
// boundary days are billed, so a same-day allocate and vacate bills one
// day.
func Compute(s Span, dailyRate decimal.Decimal, today time.Time) (int, decimal.Decimal) {
	from, to := s.Dates(today)
	days := daysBetween(from, to) + 1
	return days, dailyRate.Mul(decimal.NewFromInt(int64(days)))
}

// Breakdown partitions the span into calendar-aligned slices and bills
// each slice's day count at dailyRate.  Weekly slices follow ISO weeks
// (Monday to Sunday) and monthly slices follow calendar months; the
// first and last slices are clipped to the span.
func Breakdown(s Span, dailyRate decimal.Decimal, p Period, today time.Time) []Slice {
	from, to := s.Dates(today)
	var out []Slice
	for cur := from; !cur.After(to); {
		end := sliceEnd(cur, p)
		if end.After(to) {
			end = to
		}
		days := daysBetween(cur, end) + 1
		out = append(out, Slice{
			Period: label(cur, end, p),
			From:   cur,
			To:     end,
			Days:   days,
			Amount: dailyRate.Mul(decimal.NewFromInt(int64(days))),
		})
		cur = end.AddDate(0, 0, 1)
	}
	return out
}

func sliceEnd(d time.Time, p Period) time.Time {
	switch p {
	case Weekly:
		// time.Weekday counts from Sunday; shift so Monday is 0.
		offset := (int(d.Weekday()) + 6) % 7
		return d.AddDate(0, 0, 6-offset)
	case Monthly:
		return time.Date(d.Year(), d.Month()+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	default:
		return d
	}
}

func label(from, to time.Time, p Period) string {
	switch p {
	case Weekly:
		return fmt.Sprintf("%s to %s", from.Format(time.DateOnly), to.Format(time.DateOnly))
	case Monthly:
		return from.Format("2006-01")
	default:
		return from.Format(time.DateOnly)
	}
}

// EffectiveConfig returns the config with the latest EffectiveFrom on or
// before the given date, or nil when none applies.
func EffectiveConfig(configs []model.FeeConfig, on time.Time) *model.FeeConfig {
	day := dateOf(on, on.Location())
	var best *model.FeeConfig
	for i := range configs {
		eff := dateOf(configs[i].EffectiveFrom, time.UTC)
		if eff.After(day) {
			continue
		}
		if best == nil || eff.After(dateOf(best.EffectiveFrom, time.UTC)) {
			best = &configs[i]
		}
	}
	return best
}

// Revenue is the fleet-wide billing projection returned by Summarize.
type Revenue struct {
	Total decimal.Decimal            `json:"total_revenue"`
	Daily map[string]decimal.Decimal `json:"daily_revenue"`
}

// Summarize bills every day of every span at the rate effective on that
// day.  Days with no effective config are not billed.
func Summarize(spans []Span, configs []model.FeeConfig, today time.Time) Revenue {
	sorted := make([]model.FeeConfig, len(configs))
	copy(sorted, configs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].EffectiveFrom.Before(sorted[j].EffectiveFrom) })

	rev := Revenue{Total: decimal.Zero, Daily: map[string]decimal.Decimal{}}
	for _, s := range spans {
		from, to := s.Dates(today)
		for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
			cfg := EffectiveConfig(sorted, d)
			if cfg == nil {
				continue
			}
			key := d.Format(time.DateOnly)
			rev.Daily[key] = rev.Daily[key].Add(cfg.DailyFee)
			rev.Total = rev.Total.Add(cfg.DailyFee)
		}
	}
	return rev
}

// Balance is what a student owes: closed bills plus the running accrual
// of the active stay, minus payments.
type Balance struct {
	Billed  decimal.Decimal `json:"billed"`
	Accrued decimal.Decimal `json:"accrued"`
	Paid    decimal.Decimal `json:"paid"`
	Due     decimal.Decimal `json:"due"`
}

// BalanceOf folds ledger rows, payments and the optional active accrual
// into a Balance.
func BalanceOf(ledger []model.FeeLedger, payments []model.FeePayment, accrued decimal.Decimal) Balance {
	b := Balance{Billed: decimal.Zero, Accrued: accrued, Paid: decimal.Zero}
	for _, l := range ledger {
		b.Billed = b.Billed.Add(l.Amount)
	}
	for _, p := range payments {
		b.Paid = b.Paid.Add(p.AmountPaid)
	}
	b.Due = b.Billed.Add(b.Accrued).Sub(b.Paid)
	return b
}

func dateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
