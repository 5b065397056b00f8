// Package allocation places students into rooms.  The Engine is the only
// writer of rooms and allocations: every operation runs in one store
// transaction that locks the rows it touches, so the room occupancy
// counters, the allocation ledger and each student's current-room fields
// change together or not at all.
package allocation

import (
	"context"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/hostel-management/internal/fee"
	"github.com/iliyamo/hostel-management/internal/model"
	"github.com/iliyamo/hostel-management/internal/queue"
)

const (
	defaultPickAttempts = 5
	publishTimeout      = 5 * time.Second
)

// Publisher receives allocation events after their transaction commits.
type Publisher interface {
	PublishAllocationEvent(ctx context.Context, ev queue.AllocationEvent) error
}

// Result describes the outcome of an engine operation.
type Result struct {
	Allocation     *model.Allocation `json:"allocation,omitempty"`
	Room           *model.Room       `json:"room,omitempty"`
	PreviousRoom   *model.Room       `json:"previous_room,omitempty"`
	Ledger         *model.FeeLedger  `json:"fee_ledger,omitempty"`
	AlreadyVacated bool              `json:"already_vacated,omitempty"`
}

// Engine implements room placement on top of a Store.
type Engine struct {
	store        Store
	log          *zap.Logger
	events       Publisher
	now          func() time.Time
	loc          *time.Location
	pickAttempts int
}

// Option configures an Engine.
type Option func(*Engine)

// WithPublisher sends committed changes to p.
func WithPublisher(p Publisher) Option { return func(e *Engine) { e.events = p } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithLocation sets the hostel time zone used for calendar dates.
func WithLocation(loc *time.Location) Option { return func(e *Engine) { e.loc = loc } }

// WithPickAttempts bounds how many top-ranked candidate rooms AutoAssign
// locks and considers.
func WithPickAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.pickAttempts = n
		}
	}
}

// NewEngine returns an engine over store.
func NewEngine(store Store, log *zap.Logger, opts ...Option) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		store:        store,
		log:          log,
		now:          time.Now,
		loc:          time.UTC,
		pickAttempts: defaultPickAttempts,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Today returns the current instant in the hostel time zone.
func (e *Engine) Today() time.Time { return e.now().In(e.loc) }

// FindCandidateRoom returns the room AutoAssign would pick for the
// student, or nil when no room has free capacity.
func (e *Engine) FindCandidateRoom(ctx context.Context, studentID uint64) (*model.Room, error) {
	var out *model.Room
	err := e.store.InTx(ctx, func(tx Tx) error {
		st, err := tx.Student(ctx, studentID)
		if err != nil {
			return err
		}
		cands, err := tx.CandidateRooms(ctx, st.Year, st.Course)
		if err != nil {
			return err
		}
		if ranked := rankCandidates(cands); len(ranked) > 0 {
			out = &ranked[0]
		}
		return nil
	})
	return out, err
}

// AutoAssign places a room-less student into the best candidate room.
func (e *Engine) AutoAssign(ctx context.Context, studentID uint64) (Result, error) {
	var res Result
	err := e.store.InTx(ctx, func(tx Tx) error {
		st, err := tx.StudentForUpdate(ctx, studentID)
		if err != nil {
			return err
		}
		if !st.IsActive {
			return ErrStudentInactive
		}
		active, err := tx.ActiveAllocationForUpdate(ctx, studentID)
		if err != nil {
			return err
		}
		if active != nil {
			return ErrAlreadyAssigned
		}

		cands, err := tx.CandidateRooms(ctx, st.Year, st.Course)
		if err != nil {
			return err
		}
		ranked := rankCandidates(cands)
		if len(ranked) > e.pickAttempts {
			ranked = ranked[:e.pickAttempts]
		}
		// The candidate list is a plain read; a concurrent request may
		// have filled a room since.  The shortlist is locked by
		// ascending id and then picked from in rank order.
		locked, err := lockRooms(ctx, tx, ranked)
		if err != nil {
			return err
		}
		for _, c := range ranked {
			if room := locked[c.ID]; room.IsAvailable() {
				return e.place(ctx, tx, &st, room, &res)
			}
		}
		return ErrNoRoomAvailable
	})
	if err != nil {
		return Result{}, err
	}
	e.log.Info("room auto-assigned",
		zap.Uint64("student_id", studentID),
		zap.Uint64("allocation_id", res.Allocation.ID),
		zap.String("room", res.Room.Label()))
	e.emit(ctx, allocatedEvent(res, e.now()))
	return res, nil
}

// Allocate places a student into the given room.
func (e *Engine) Allocate(ctx context.Context, studentID, roomID uint64) (Result, error) {
	var res Result
	err := e.store.InTx(ctx, func(tx Tx) error {
		st, err := tx.StudentForUpdate(ctx, studentID)
		if err != nil {
			return err
		}
		active, err := tx.ActiveAllocationForUpdate(ctx, studentID)
		if err != nil {
			return err
		}
		room, err := tx.RoomForUpdate(ctx, roomID)
		switch {
		case !st.IsActive:
			return ErrStudentInactive
		case err != nil:
			return err
		case !room.IsAvailable():
			return ErrRoomFull
		case active != nil:
			return ErrAlreadyAssigned
		}
		return e.place(ctx, tx, &st, room, &res)
	})
	if err != nil {
		return Result{}, err
	}
	e.log.Info("room allocated",
		zap.Uint64("student_id", studentID),
		zap.Uint64("allocation_id", res.Allocation.ID),
		zap.String("room", res.Room.Label()))
	e.emit(ctx, allocatedEvent(res, e.now()))
	return res, nil
}

// Vacate closes an allocation.  Vacating an allocation that is already
// closed succeeds with AlreadyVacated set and changes nothing.
func (e *Engine) Vacate(ctx context.Context, allocationID uint64) (Result, error) {
	var res Result
	err := e.store.InTx(ctx, func(tx Tx) error {
		a, err := tx.Allocation(ctx, allocationID)
		if err != nil {
			return err
		}
		if _, err := tx.StudentForUpdate(ctx, a.StudentID); err != nil {
			return err
		}
		a, err = tx.AllocationForUpdate(ctx, allocationID)
		if err != nil {
			return err
		}
		if !a.IsActive {
			res.Allocation = &a
			res.AlreadyVacated = true
			return nil
		}
		room, err := tx.RoomForUpdate(ctx, a.RoomID)
		if err != nil {
			return err
		}
		if err := e.vacate(ctx, tx, a, room, &res); err != nil {
			return err
		}
		return tx.SetStudentRoom(ctx, a.StudentID, nil)
	})
	if err != nil {
		return Result{}, err
	}
	if res.AlreadyVacated {
		e.log.Info("allocation already vacated", zap.Uint64("allocation_id", allocationID))
		return res, nil
	}
	e.log.Info("allocation vacated",
		zap.Uint64("allocation_id", allocationID),
		zap.String("room", res.PreviousRoom.Label()))
	e.emit(ctx, vacatedEvent(res, e.now()))
	return res, nil
}

// Transfer moves a student into newRoomID.  The old allocation is closed
// and the new one opened in the same transaction; a student without an
// active allocation is simply allocated.
func (e *Engine) Transfer(ctx context.Context, studentID, newRoomID uint64) (Result, error) {
	var res Result
	err := e.store.InTx(ctx, func(tx Tx) error {
		st, err := tx.StudentForUpdate(ctx, studentID)
		if err != nil {
			return err
		}
		if !st.IsActive {
			return ErrStudentInactive
		}
		active, err := tx.ActiveAllocationForUpdate(ctx, studentID)
		if err != nil {
			return err
		}
		if active != nil && active.RoomID == newRoomID {
			return ErrSameRoom
		}

		var oldRoom, newRoom model.Room
		for _, id := range lockOrder(active, newRoomID) {
			room, err := tx.RoomForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if id == newRoomID {
				newRoom = room
			} else {
				oldRoom = room
			}
		}
		if !newRoom.IsAvailable() {
			return ErrRoomFull
		}

		if active != nil {
			if err := e.vacate(ctx, tx, *active, oldRoom, &res); err != nil {
				return err
			}
		}
		return e.place(ctx, tx, &st, newRoom, &res)
	})
	if err != nil {
		return Result{}, err
	}
	from := ""
	if res.PreviousRoom != nil {
		from = res.PreviousRoom.Label()
	}
	e.log.Info("student transferred",
		zap.Uint64("student_id", studentID),
		zap.String("from", from),
		zap.String("to", res.Room.Label()))
	e.emit(ctx, transferredEvent(res, e.now()))
	return res, nil
}

// RemoveStudent soft-deletes a student, vacating the active allocation
// first when there is one.
func (e *Engine) RemoveStudent(ctx context.Context, studentID uint64) (Result, error) {
	var res Result
	err := e.store.InTx(ctx, func(tx Tx) error {
		if _, err := tx.StudentForUpdate(ctx, studentID); err != nil {
			return err
		}
		active, err := tx.ActiveAllocationForUpdate(ctx, studentID)
		if err != nil {
			return err
		}
		if active != nil {
			room, err := tx.RoomForUpdate(ctx, active.RoomID)
			if err != nil {
				return err
			}
			if err := e.vacate(ctx, tx, *active, room, &res); err != nil {
				return err
			}
			if err := tx.SetStudentRoom(ctx, studentID, nil); err != nil {
				return err
			}
		}
		return tx.DeactivateStudent(ctx, studentID)
	})
	if err != nil {
		return Result{}, err
	}
	e.log.Info("student deactivated", zap.Uint64("student_id", studentID))
	if res.Allocation != nil {
		e.emit(ctx, vacatedEvent(res, e.now()))
	}
	return res, nil
}

// place opens an allocation for st in a locked room.
func (e *Engine) place(ctx context.Context, tx Tx, st *model.Student, room model.Room, res *Result) error {
	room, err := occupy(ctx, tx, room)
	if err != nil {
		return err
	}
	a := model.Allocation{
		StudentID:   st.ID,
		RoomID:      room.ID,
		AllocatedAt: e.now().UTC(),
		IsActive:    true,
	}
	if err := tx.InsertAllocation(ctx, &a); err != nil {
		return err
	}
	st.AssignRoom(&room)
	if err := tx.SetStudentRoom(ctx, st.ID, &room); err != nil {
		return err
	}
	res.Allocation = &a
	res.Room = &room
	return nil
}

// vacate closes a locked active allocation, releases its locked room and
// bills the stay when a fee config applies.
func (e *Engine) vacate(ctx context.Context, tx Tx, a model.Allocation, room model.Room, res *Result) error {
	now := e.now().UTC()
	if err := tx.CloseAllocation(ctx, a.ID, now); err != nil {
		return err
	}
	a.Close(now)
	room, err := release(ctx, tx, room)
	if err != nil {
		return err
	}

	today := e.Today()
	cfg, err := tx.EffectiveFee(ctx, today)
	if err != nil {
		return err
	}
	if cfg != nil {
		span := fee.SpanOf(a)
		from, to := span.Dates(today)
		days, amount := fee.Compute(span, cfg.DailyFee, today)
		l := model.FeeLedger{
			StudentID:    a.StudentID,
			AllocationID: a.ID,
			FromDate:     from,
			ToDate:       to,
			Days:         days,
			Amount:       amount,
			CreatedAt:    now,
		}
		if err := tx.InsertFeeLedger(ctx, &l); err != nil {
			return err
		}
		res.Ledger = &l
	}

	res.Allocation = &a
	res.PreviousRoom = &room
	return nil
}

// lockOrder returns the room ids to lock, ascending.
func lockOrder(active *model.Allocation, newRoomID uint64) []uint64 {
	if active == nil {
		return []uint64{newRoomID}
	}
	if active.RoomID < newRoomID {
		return []uint64{active.RoomID, newRoomID}
	}
	return []uint64{newRoomID, active.RoomID}
}

// lockRooms locks rooms by ascending id and returns their locked state.
func lockRooms(ctx context.Context, tx Tx, rooms []model.Room) (map[uint64]model.Room, error) {
	ids := make([]uint64, len(rooms))
	for i, r := range rooms {
		ids[i] = r.ID
	}
	slices.Sort(ids)
	locked := make(map[uint64]model.Room, len(ids))
	for _, id := range ids {
		r, err := tx.RoomForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		locked[id] = r
	}
	return locked, nil
}

func (e *Engine) emit(ctx context.Context, ev queue.AllocationEvent) {
	if e.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := e.events.PublishAllocationEvent(ctx, ev); err != nil {
		e.log.Warn("publish allocation event failed", zap.String("type", ev.Type), zap.Error(err))
	}
}

func allocatedEvent(res Result, at time.Time) queue.AllocationEvent {
	return queue.AllocationEvent{
		Type:         queue.EventAllocated,
		AllocationID: res.Allocation.ID,
		StudentID:    res.Allocation.StudentID,
		RoomID:       res.Room.ID,
		RoomLabel:    res.Room.Label(),
		OccurredAt:   at.UTC().Format(time.RFC3339),
	}
}

func vacatedEvent(res Result, at time.Time) queue.AllocationEvent {
	ev := queue.AllocationEvent{
		Type:         queue.EventVacated,
		AllocationID: res.Allocation.ID,
		StudentID:    res.Allocation.StudentID,
		RoomID:       res.PreviousRoom.ID,
		RoomLabel:    res.PreviousRoom.Label(),
		OccurredAt:   at.UTC().Format(time.RFC3339),
	}
	if res.Ledger != nil {
		ev.FeeAmount = res.Ledger.Amount.StringFixed(2)
	}
	return ev
}

func transferredEvent(res Result, at time.Time) queue.AllocationEvent {
	ev := allocatedEvent(res, at)
	ev.Type = queue.EventTransferred
	if res.PreviousRoom != nil {
		ev.FromRoomID = res.PreviousRoom.ID
		ev.FromRoom = res.PreviousRoom.Label()
	}
	if res.Ledger != nil {
		ev.FeeAmount = res.Ledger.Amount.StringFixed(2)
	}
	return ev
}
