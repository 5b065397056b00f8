package fee

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hostel-management/internal/model"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 10, 30, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func TestCompute(t *testing.T) {
	rate := decimal.NewFromInt(300)

	tests := []struct {
		name     string
		span     Span
		today    time.Time
		wantDays int
		want     string
	}{
		{"closed five days", Span{day(2026, 1, 1), ptr(day(2026, 1, 5))}, day(2026, 2, 1), 5, "1500"},
		{"same day", Span{day(2026, 1, 1), ptr(day(2026, 1, 1))}, day(2026, 2, 1), 1, "300"},
		{"active until today", Span{day(2026, 1, 1), nil}, day(2026, 1, 10), 10, "3000"},
		{"end before start clamps", Span{day(2026, 1, 5), ptr(day(2026, 1, 1))}, day(2026, 2, 1), 1, "300"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			days, amount := Compute(tt.span, rate, tt.today)
			assert.Equal(t, tt.wantDays, days)
			assert.True(t, amount.Equal(decimal.RequireFromString(tt.want)), "got %s", amount)
		})
	}
}

func TestComputeKeepsDecimalPrecision(t *testing.T) {
	days, amount := Compute(Span{day(2026, 1, 1), ptr(day(2026, 1, 3))}, decimal.RequireFromString("0.10"), day(2026, 1, 3))
	assert.Equal(t, 3, days)
	assert.Equal(t, "0.3", amount.String())
}

func TestComputeUsesTodaysZone(t *testing.T) {
	kolkata := time.FixedZone("IST", 5*3600+1800)
	// 20:00 UTC on Jan 1 is already Jan 2 in IST.
	start := time.Date(2026, 1, 1, 20, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 3, 12, 0, 0, 0, time.UTC)
	days, _ := Compute(Span{start, &end}, decimal.NewFromInt(1), time.Date(2026, 1, 5, 0, 0, 0, 0, kolkata))
	assert.Equal(t, 2, days)
}

func TestBreakdownDaily(t *testing.T) {
	slices := Breakdown(Span{day(2026, 1, 1), ptr(day(2026, 1, 3))}, decimal.NewFromInt(300), Daily, day(2026, 2, 1))
	require.Len(t, slices, 3)
	assert.Equal(t, "2026-01-01", slices[0].Period)
	assert.Equal(t, "2026-01-03", slices[2].Period)
	for _, s := range slices {
		assert.Equal(t, 1, s.Days)
		assert.True(t, s.Amount.Equal(decimal.NewFromInt(300)))
	}
}

func TestBreakdownWeeklyAlignsToMonday(t *testing.T) {
	// 2026-01-01 is a Thursday.
	slices := Breakdown(Span{day(2026, 1, 1), ptr(day(2026, 1, 12))}, decimal.NewFromInt(100), Weekly, day(2026, 2, 1))
	require.Len(t, slices, 3)

	assert.Equal(t, "2026-01-01 to 2026-01-04", slices[0].Period)
	assert.Equal(t, 4, slices[0].Days)
	assert.Equal(t, "2026-01-05 to 2026-01-11", slices[1].Period)
	assert.Equal(t, 7, slices[1].Days)
	assert.Equal(t, time.Monday, slices[1].From.Weekday())
	assert.Equal(t, "2026-01-12 to 2026-01-12", slices[2].Period)
	assert.Equal(t, 1, slices[2].Days)
}

func TestBreakdownMonthlyClipsToSpan(t *testing.T) {
	slices := Breakdown(Span{day(2026, 1, 20), ptr(day(2026, 3, 5))}, decimal.NewFromInt(10), Monthly, day(2026, 4, 1))
	require.Len(t, slices, 3)

	assert.Equal(t, "2026-01", slices[0].Period)
	assert.Equal(t, 12, slices[0].Days)
	assert.Equal(t, "2026-02", slices[1].Period)
	assert.Equal(t, 28, slices[1].Days)
	assert.Equal(t, "2026-03", slices[2].Period)
	assert.Equal(t, 5, slices[2].Days)
}

func TestBreakdownSumsToCompute(t *testing.T) {
	span := Span{day(2025, 12, 17), ptr(day(2026, 3, 2))}
	rate := decimal.RequireFromString("275.50")
	wantDays, wantAmount := Compute(span, rate, day(2026, 4, 1))

	for _, p := range []Period{Daily, Weekly, Monthly} {
		var days int
		total := decimal.Zero
		for _, s := range Breakdown(span, rate, p, day(2026, 4, 1)) {
			days += s.Days
			total = total.Add(s.Amount)
		}
		assert.Equal(t, wantDays, days, string(p))
		assert.True(t, wantAmount.Equal(total), "%s: %s != %s", p, total, wantAmount)
	}
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("")
	require.NoError(t, err)
	assert.Equal(t, Daily, p)

	p, err = ParsePeriod("Monthly")
	require.NoError(t, err)
	assert.Equal(t, Monthly, p)

	_, err = ParsePeriod("yearly")
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestEffectiveConfig(t *testing.T) {
	configs := []model.FeeConfig{
		{ID: 1, DailyFee: decimal.NewFromInt(200), EffectiveFrom: day(2025, 6, 1)},
		{ID: 2, DailyFee: decimal.NewFromInt(300), EffectiveFrom: day(2026, 1, 1)},
		{ID: 3, DailyFee: decimal.NewFromInt(400), EffectiveFrom: day(2026, 7, 1)},
	}

	assert.Nil(t, EffectiveConfig(configs, day(2025, 1, 1)))
	assert.Equal(t, uint64(1), EffectiveConfig(configs, day(2025, 12, 31)).ID)
	assert.Equal(t, uint64(2), EffectiveConfig(configs, day(2026, 1, 1)).ID)
	assert.Equal(t, uint64(3), EffectiveConfig(configs, day(2026, 10, 18)).ID)
}

func TestSummarize(t *testing.T) {
	configs := []model.FeeConfig{
		{DailyFee: decimal.NewFromInt(100), EffectiveFrom: day(2026, 1, 1)},
		{DailyFee: decimal.NewFromInt(150), EffectiveFrom: day(2026, 1, 3)},
	}
	spans := []Span{
		{day(2025, 12, 31), ptr(day(2026, 1, 3))},
		{day(2026, 1, 2), nil},
	}

	rev := Summarize(spans, configs, day(2026, 1, 3))

	// Dec 31 predates every config and is not billed.
	assert.NotContains(t, rev.Daily, "2025-12-31")
	assert.Equal(t, "100", rev.Daily["2026-01-01"].String())
	assert.Equal(t, "200", rev.Daily["2026-01-02"].String())
	assert.Equal(t, "300", rev.Daily["2026-01-03"].String())
	assert.Equal(t, "600", rev.Total.String())
}

func TestBalanceOf(t *testing.T) {
	ledger := []model.FeeLedger{{Amount: decimal.NewFromInt(1500)}, {Amount: decimal.NewFromInt(600)}}
	payments := []model.FeePayment{{AmountPaid: decimal.NewFromInt(1000)}}

	b := BalanceOf(ledger, payments, decimal.NewFromInt(300))
	assert.Equal(t, "2100", b.Billed.String())
	assert.Equal(t, "1000", b.Paid.String())
	assert.Equal(t, "1400", b.Due.String())
}
