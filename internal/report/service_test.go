package report_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hostel-management/internal/allocation"
	"github.com/iliyamo/hostel-management/internal/fee"
	"github.com/iliyamo/hostel-management/internal/model"
	"github.com/iliyamo/hostel-management/internal/report"
	"github.com/iliyamo/hostel-management/internal/repository/memstore"
)

var today = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

func date(m time.Month, d int) time.Time { return time.Date(2026, m, d, 9, 0, 0, 0, time.UTC) }

func newService(s *memstore.Store) *report.Service {
	return report.NewService(s, time.UTC, func() time.Time { return today })
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 0.0, report.Percentage(0, 0))
	assert.Equal(t, 0.0, report.Percentage(3, 0))
	assert.Equal(t, 50.0, report.Percentage(1, 2))
	assert.Equal(t, 33.33, report.Percentage(1, 3))
	assert.Equal(t, 66.67, report.Percentage(2, 3))
	assert.Equal(t, 100.0, report.Percentage(4, 4))
}

func seed(t *testing.T) (*memstore.Store, model.Student, model.Room, model.Room) {
	t.Helper()
	s := memstore.New()
	a := s.AddRoom("A", "1", 2)
	b := s.AddRoom("B", "1", 3)
	st := s.AddStudent(model.Student{Name: "Asha", RegisterNumber: "R1", Year: 1, Course: "CSE", IsActive: true})
	out := date(1, 3)
	s.AddAllocation(model.Allocation{StudentID: st.ID, RoomID: a.ID, AllocatedAt: date(1, 1), VacatedAt: &out})
	s.AddAllocation(model.Allocation{StudentID: st.ID, RoomID: b.ID, AllocatedAt: date(1, 3), IsActive: true})
	return s, st, a, b
}

func TestStayHistory(t *testing.T) {
	s, st, a, b := seed(t)
	svc := newService(s)

	h, err := svc.StayHistory(context.Background(), st.ID)
	require.NoError(t, err)
	assert.Equal(t, "Asha", h.Student.Name)
	require.Len(t, h.Stays, 2)

	// newest first
	assert.Equal(t, b.ID, h.Stays[0].RoomID)
	assert.True(t, h.Stays[0].IsActive)
	assert.Equal(t, 8, h.Stays[0].Days)
	assert.Equal(t, a.ID, h.Stays[1].RoomID)
	assert.Equal(t, "A-1", h.Stays[1].Room)
	assert.Equal(t, 3, h.Stays[1].Days)
	assert.Equal(t, 11, h.TotalDays)

	_, err = svc.StayHistory(context.Background(), 999)
	assert.ErrorIs(t, err, allocation.ErrStudentNotFound)
}

func TestOccupancyTimeline(t *testing.T) {
	s, _, a, b := seed(t)
	svc := newService(s)

	all, err := svc.OccupancyTimeline(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "A-1", all[0].Room)
	require.Len(t, all[0].Timeline, 1)
	assert.Equal(t, report.StatusVacated, all[0].Timeline[0].Status)
	assert.Equal(t, report.StatusStaying, all[1].Timeline[0].Status)
	assert.Equal(t, "Asha", all[1].Timeline[0].Student.Name)

	byBlock, err := svc.OccupancyTimeline(context.Background(), "B", 0)
	require.NoError(t, err)
	require.Len(t, byBlock, 1)
	assert.Equal(t, b.ID, byBlock[0].RoomID)

	byID, err := svc.OccupancyTimeline(context.Background(), "", a.ID)
	require.NoError(t, err)
	require.Len(t, byID, 1)
	assert.Equal(t, a.ID, byID[0].RoomID)
}

func TestOccupancy(t *testing.T) {
	empty, err := newService(memstore.New()).Occupancy(context.Background())
	require.NoError(t, err)
	assert.Equal(t, report.Occupancy{}, empty)

	s, _, _, _ := seed(t)
	o, err := newService(s).Occupancy(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, o.TotalRooms)
	assert.Equal(t, 5, o.TotalCapacity)
	assert.Equal(t, 1, o.Occupied)
	assert.Equal(t, 4, o.Available)
	assert.Equal(t, 20.0, o.Percentage)
}

func TestDashboard(t *testing.T) {
	s, _, _, b := seed(t)
	s.AddStudent(model.Student{Name: "Ravi", RegisterNumber: "R2", IsActive: true})
	s.AddStudent(model.Student{Name: "Gone", RegisterNumber: "R3"})
	for i := 0; i < 6; i++ {
		st := s.AddStudent(model.Student{Name: fmt.Sprint("old", i)})
		out := date(1, 5)
		s.AddAllocation(model.Allocation{StudentID: st.ID, RoomID: b.ID, AllocatedAt: date(1, 4), VacatedAt: &out})
	}

	d, err := newService(s).Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, d.TotalStudents)
	assert.Equal(t, 1, d.StudentsWithoutRoom)
	assert.Equal(t, 2, d.TotalRooms)
	assert.Len(t, d.RecentAllocations, 5)
	assert.Equal(t, "2026-01-04", d.RecentAllocations[0].Date)
}

func TestStaySummary(t *testing.T) {
	s, st, _, _ := seed(t)
	s.AddStudent(model.Student{Name: "Ravi", IsActive: true})

	rows, err := newService(s).StaySummary(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, st.ID, rows[0].ID)
	assert.Equal(t, 11, rows[0].TotalDays)
	require.NotNil(t, rows[0].CurrentRoom)
	assert.Equal(t, "B-1", *rows[0].CurrentRoom)
	assert.Equal(t, 8, rows[0].CurrentDays)
	assert.Nil(t, rows[1].CurrentRoom)
	assert.Zero(t, rows[1].TotalDays)
}

func TestCurrentFeeAndBalance(t *testing.T) {
	ctx := context.Background()
	s, st, _, _ := seed(t)
	svc := newService(s)

	noCfg, err := svc.CurrentFee(ctx, st.ID, fee.Daily)
	require.NoError(t, err)
	assert.Equal(t, "Fee configuration not set", noCfg.Message)

	s.AddFeeConfig(model.FeeConfig{DailyFee: decimal.NewFromInt(300), EffectiveFrom: date(1, 1)})
	s.AddFeeConfig(model.FeeConfig{DailyFee: decimal.NewFromInt(999), EffectiveFrom: date(2, 1)})

	d, err := svc.CurrentFee(ctx, st.ID, fee.Weekly)
	require.NoError(t, err)
	assert.Empty(t, d.Message)
	assert.Equal(t, "B-1", d.Room)
	assert.Equal(t, "300", d.DailyFee.String())
	assert.Equal(t, 8, d.TotalDays)
	assert.Equal(t, "2400", d.TotalAmount.String())
	require.Len(t, d.Breakdown, 2)
	assert.Equal(t, "2026-01-03 to 2026-01-04", d.Breakdown[0].Period)

	s.AddPayment(model.FeePayment{StudentID: st.ID, AmountPaid: decimal.NewFromInt(1000), PaymentMode: model.PaymentCash})
	bal, err := svc.Balance(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, "2400", bal.Accrued.String())
	assert.Equal(t, "1400", bal.Due.String())
}

func TestCurrentFeeWithoutAllocation(t *testing.T) {
	s := memstore.New()
	st := s.AddStudent(model.Student{Name: "Ravi", IsActive: true})

	d, err := newService(s).CurrentFee(context.Background(), st.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "Student has no active room allocation", d.Message)
	assert.True(t, d.TotalAmount.IsZero())
}

func TestFeeSummary(t *testing.T) {
	s, _, _, _ := seed(t)
	s.AddFeeConfig(model.FeeConfig{DailyFee: decimal.NewFromInt(100), EffectiveFrom: date(1, 1)})

	rev, err := newService(s).FeeSummary(context.Background())
	require.NoError(t, err)
	// Jan 1-3 and Jan 3-10: Jan 3 is billed twice.
	assert.Equal(t, "1100", rev.Total.String())
	assert.Equal(t, "200", rev.Daily["2026-01-03"].String())
}
