package report

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/hostel-management/internal/fee"
	"github.com/iliyamo/hostel-management/internal/model"
)

// Stay statuses shown on occupancy timelines.
const (
	StatusStaying = "Currently Staying"
	StatusVacated = "Vacated"
)

const recentAllocations = 5

// Service computes report projections.  Day counts are inclusive of both
// boundary dates, as billed by the fee package.
type Service struct {
	r   Reader
	loc *time.Location
	now func() time.Time
}

// NewService returns a Service reading from r.  Calendar dates are taken
// in loc; a nil now defaults to time.Now.
func NewService(r Reader, loc *time.Location, now func() time.Time) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Service{r: r, loc: loc, now: now}
}

func (s *Service) today() time.Time { return s.now().In(s.loc) }

func (s *Service) days(a model.Allocation) int {
	d, _ := fee.Compute(fee.SpanOf(a), decimal.Zero, s.today())
	return d
}

// Percentage returns occupied/capacity*100 rounded to two decimals, or 0
// when there is no capacity.
func Percentage(occupied, capacity int) float64 {
	if capacity <= 0 {
		return 0
	}
	return decimal.NewFromInt(int64(occupied)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(capacity))).
		Round(2).
		InexactFloat64()
}

// StudentRef identifies a student in report rows.
type StudentRef struct {
	ID             uint64 `json:"id"`
	Name           string `json:"name"`
	RegisterNumber string `json:"register_number"`
}

func refOf(st model.Student) StudentRef {
	return StudentRef{ID: st.ID, Name: st.Name, RegisterNumber: st.RegisterNumber}
}

// Stay is one allocation in a student's history.
type Stay struct {
	AllocationID uint64     `json:"allocation_id"`
	RoomID       uint64     `json:"room_id"`
	Room         string     `json:"room"`
	AllocatedAt  time.Time  `json:"allocated_at"`
	VacatedAt    *time.Time `json:"vacated_at"`
	IsActive     bool       `json:"is_active"`
	Days         int        `json:"days"`
}

// StayHistory is every allocation a student ever had, newest first.
type StayHistory struct {
	Student   StudentRef `json:"student"`
	Stays     []Stay     `json:"stay_history"`
	TotalDays int        `json:"total_days"`
}

// StayHistory returns the stay history of one student.
func (s *Service) StayHistory(ctx context.Context, studentID uint64) (StayHistory, error) {
	st, err := s.r.GetStudent(ctx, studentID)
	if err != nil {
		return StayHistory{}, err
	}
	allocs, err := s.r.ListAllocations(ctx, AllocationFilter{StudentID: studentID})
	if err != nil {
		return StayHistory{}, err
	}
	rooms, err := s.roomIndex(ctx)
	if err != nil {
		return StayHistory{}, err
	}

	out := StayHistory{Student: refOf(st), Stays: make([]Stay, 0, len(allocs))}
	for _, a := range allocs {
		d := s.days(a)
		out.TotalDays += d
		out.Stays = append(out.Stays, Stay{
			AllocationID: a.ID,
			RoomID:       a.RoomID,
			Room:         rooms[a.RoomID].Label(),
			AllocatedAt:  a.AllocatedAt,
			VacatedAt:    a.VacatedAt,
			IsActive:     a.IsActive,
			Days:         d,
		})
	}
	return out, nil
}

// TimelineEntry is one allocation on a room's timeline.
type TimelineEntry struct {
	AllocationID uint64     `json:"allocation_id"`
	Student      StudentRef `json:"student"`
	AllocatedAt  time.Time  `json:"allocated_at"`
	VacatedAt    *time.Time `json:"vacated_at"`
	Days         int        `json:"days"`
	Status       string     `json:"status"`
}

// RoomTimeline lists a room's allocations, newest first.
type RoomTimeline struct {
	RoomID   uint64          `json:"room_id"`
	Room     string          `json:"room"`
	Capacity int             `json:"capacity"`
	Occupied int             `json:"occupied"`
	Timeline []TimelineEntry `json:"timeline"`
}

// OccupancyTimeline returns the timelines of the rooms matching block
// and roomID (zero values match all rooms).
func (s *Service) OccupancyTimeline(ctx context.Context, block string, roomID uint64) ([]RoomTimeline, error) {
	rooms, err := s.r.ListRooms(ctx, RoomFilter{Block: block, RoomID: roomID})
	if err != nil {
		return nil, err
	}
	students, err := s.studentIndex(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]RoomTimeline, 0, len(rooms))
	for _, room := range rooms {
		allocs, err := s.r.ListAllocations(ctx, AllocationFilter{RoomID: room.ID})
		if err != nil {
			return nil, err
		}
		tl := RoomTimeline{
			RoomID:   room.ID,
			Room:     room.Label(),
			Capacity: room.Capacity,
			Occupied: room.Occupied,
			Timeline: make([]TimelineEntry, 0, len(allocs)),
		}
		for _, a := range allocs {
			status := StatusVacated
			if a.IsActive {
				status = StatusStaying
			}
			tl.Timeline = append(tl.Timeline, TimelineEntry{
				AllocationID: a.ID,
				Student:      refOf(students[a.StudentID]),
				AllocatedAt:  a.AllocatedAt,
				VacatedAt:    a.VacatedAt,
				Days:         s.days(a),
				Status:       status,
			})
		}
		out = append(out, tl)
	}
	return out, nil
}

// Occupancy is the fleet-wide bed usage.
type Occupancy struct {
	TotalRooms    int     `json:"total_rooms"`
	TotalCapacity int     `json:"total_capacity"`
	Occupied      int     `json:"occupied"`
	Available     int     `json:"available"`
	Percentage    float64 `json:"occupancy_percentage"`
}

// Occupancy sums capacity and occupancy over all rooms.
func (s *Service) Occupancy(ctx context.Context) (Occupancy, error) {
	rooms, err := s.r.ListRooms(ctx, RoomFilter{})
	if err != nil {
		return Occupancy{}, err
	}
	var o Occupancy
	o.TotalRooms = len(rooms)
	for _, r := range rooms {
		o.TotalCapacity += r.Capacity
		o.Occupied += r.Occupied
	}
	o.Available = o.TotalCapacity - o.Occupied
	o.Percentage = Percentage(o.Occupied, o.TotalCapacity)
	return o, nil
}

// RecentAllocation is a dashboard row.
type RecentAllocation struct {
	Student        string    `json:"student"`
	RegisterNumber string    `json:"register_number"`
	Room           string    `json:"room"`
	Date           string    `json:"date"`
	AllocatedAt    time.Time `json:"allocated_at"`
}

// Dashboard is the admin overview.
type Dashboard struct {
	TotalStudents       int `json:"total_students"`
	StudentsWithoutRoom int `json:"students_without_room"`
	Occupancy
	RecentAllocations []RecentAllocation `json:"recent_allocations"`
}

// Dashboard returns headline counts and the latest allocations.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	students, err := s.r.ListStudents(ctx, StudentFilter{ActiveOnly: true})
	if err != nil {
		return Dashboard{}, err
	}
	occ, err := s.Occupancy(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	recent, err := s.r.ListAllocations(ctx, AllocationFilter{Limit: recentAllocations})
	if err != nil {
		return Dashboard{}, err
	}
	rooms, err := s.roomIndex(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	byID, err := s.studentIndex(ctx)
	if err != nil {
		return Dashboard{}, err
	}

	d := Dashboard{TotalStudents: len(students), Occupancy: occ, RecentAllocations: make([]RecentAllocation, 0, len(recent))}
	for _, st := range students {
		if !st.HasRoom() {
			d.StudentsWithoutRoom++
		}
	}
	for _, a := range recent {
		st := byID[a.StudentID]
		d.RecentAllocations = append(d.RecentAllocations, RecentAllocation{
			Student:        st.Name,
			RegisterNumber: st.RegisterNumber,
			Room:           rooms[a.RoomID].Label(),
			Date:           a.AllocatedAt.In(s.loc).Format(time.DateOnly),
			AllocatedAt:    a.AllocatedAt,
		})
	}
	return d, nil
}

// StaySummary is one student's accumulated stay.
type StaySummary struct {
	StudentRef
	TotalDays   int     `json:"total_days"`
	CurrentRoom *string `json:"current_room"`
	CurrentDays int     `json:"currently_staying_days"`
}

// StaySummary totals the stay of every student.
func (s *Service) StaySummary(ctx context.Context) ([]StaySummary, error) {
	students, err := s.r.ListStudents(ctx, StudentFilter{})
	if err != nil {
		return nil, err
	}
	allocs, err := s.r.ListAllocations(ctx, AllocationFilter{})
	if err != nil {
		return nil, err
	}
	rooms, err := s.roomIndex(ctx)
	if err != nil {
		return nil, err
	}

	byStudent := make(map[uint64][]model.Allocation)
	for _, a := range allocs {
		byStudent[a.StudentID] = append(byStudent[a.StudentID], a)
	}
	out := make([]StaySummary, 0, len(students))
	for _, st := range students {
		sum := StaySummary{StudentRef: refOf(st)}
		for _, a := range byStudent[st.ID] {
			d := s.days(a)
			sum.TotalDays += d
			if a.IsActive {
				label := rooms[a.RoomID].Label()
				sum.CurrentRoom = &label
				sum.CurrentDays = d
			}
		}
		out = append(out, sum)
	}
	return out, nil
}

// FeeSummary bills every allocation day at the rate effective that day.
func (s *Service) FeeSummary(ctx context.Context) (fee.Revenue, error) {
	allocs, err := s.r.ListAllocations(ctx, AllocationFilter{})
	if err != nil {
		return fee.Revenue{}, err
	}
	configs, err := s.r.ListFeeConfigs(ctx)
	if err != nil {
		return fee.Revenue{}, err
	}
	spans := make([]fee.Span, len(allocs))
	for i, a := range allocs {
		spans[i] = fee.SpanOf(a)
	}
	return fee.Summarize(spans, configs, s.today()), nil
}

// CurrentFeeConfig returns the config effective today, or nil.
func (s *Service) CurrentFeeConfig(ctx context.Context) (*model.FeeConfig, error) {
	configs, err := s.r.ListFeeConfigs(ctx)
	if err != nil {
		return nil, err
	}
	return fee.EffectiveConfig(configs, s.today()), nil
}

// FeeDetails is the billing view of a student's active allocation.
// Message is set instead of the amounts when the student has no active
// allocation or no fee config applies.
type FeeDetails struct {
	Student     StudentRef       `json:"student"`
	Room        string           `json:"room,omitempty"`
	DailyFee    *decimal.Decimal `json:"daily_fee,omitempty"`
	TotalDays   int              `json:"total_days"`
	TotalAmount decimal.Decimal  `json:"total_amount"`
	AllocatedAt *time.Time       `json:"allocated_at,omitempty"`
	Period      fee.Period       `json:"duration_type,omitempty"`
	Breakdown   []fee.Slice      `json:"breakdown,omitempty"`
	Message     string           `json:"message,omitempty"`
}

// CurrentFee bills the student's active allocation up to today.  A zero
// period omits the breakdown.
func (s *Service) CurrentFee(ctx context.Context, studentID uint64, period fee.Period) (FeeDetails, error) {
	st, err := s.r.GetStudent(ctx, studentID)
	if err != nil {
		return FeeDetails{}, err
	}
	out := FeeDetails{Student: refOf(st), TotalAmount: decimal.Zero}

	active, err := s.r.ListAllocations(ctx, AllocationFilter{StudentID: studentID, ActiveOnly: true, Limit: 1})
	if err != nil {
		return FeeDetails{}, err
	}
	if len(active) == 0 {
		out.Message = "Student has no active room allocation"
		return out, nil
	}
	a := active[0]
	room, err := s.r.GetRoom(ctx, a.RoomID)
	if err != nil {
		return FeeDetails{}, err
	}
	out.Room = room.Label()
	out.AllocatedAt = &a.AllocatedAt

	cfg, err := s.CurrentFeeConfig(ctx)
	if err != nil {
		return FeeDetails{}, err
	}
	if cfg == nil {
		out.Message = "Fee configuration not set"
		return out, nil
	}
	rate := cfg.DailyFee
	out.DailyFee = &rate
	span := fee.SpanOf(a)
	out.TotalDays, out.TotalAmount = fee.Compute(span, rate, s.today())
	if period != "" {
		out.Period = period
		out.Breakdown = fee.Breakdown(span, rate, period, s.today())
	}
	return out, nil
}

// Balance returns what the student owes: closed bills plus the accrual
// of the active allocation, minus payments.
func (s *Service) Balance(ctx context.Context, studentID uint64) (fee.Balance, error) {
	cur, err := s.CurrentFee(ctx, studentID, "")
	if err != nil {
		return fee.Balance{}, err
	}
	ledger, err := s.r.ListLedger(ctx, studentID)
	if err != nil {
		return fee.Balance{}, err
	}
	payments, err := s.r.ListPayments(ctx, studentID)
	if err != nil {
		return fee.Balance{}, err
	}
	return fee.BalanceOf(ledger, payments, cur.TotalAmount), nil
}

func (s *Service) roomIndex(ctx context.Context) (map[uint64]model.Room, error) {
	rooms, err := s.r.ListRooms(ctx, RoomFilter{})
	if err != nil {
		return nil, err
	}
	idx := make(map[uint64]model.Room, len(rooms))
	for _, r := range rooms {
		idx[r.ID] = r
	}
	return idx, nil
}

func (s *Service) studentIndex(ctx context.Context) (map[uint64]model.Student, error) {
	students, err := s.r.ListStudents(ctx, StudentFilter{})
	if err != nil {
		return nil, err
	}
	idx := make(map[uint64]model.Student, len(students))
	for _, st := range students {
		idx[st.ID] = st
	}
	return idx, nil
}
