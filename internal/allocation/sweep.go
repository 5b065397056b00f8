package allocation

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/hostel-management/internal/model"
	"github.com/iliyamo/hostel-management/internal/queue"
)

// SweepPlan is one student's placement in a dry run.
type SweepPlan struct {
	StudentID uint64      `json:"student_id"`
	Name      string      `json:"name"`
	Room      *model.Room `json:"room"`
}

// SweepReport summarizes an AssignAll run.
type SweepReport struct {
	DryRun    bool        `json:"dry_run"`
	Assigned  int         `json:"assigned"`
	Failed    int         `json:"failed"`
	Remaining int         `json:"remaining"`
	Plans     []SweepPlan `json:"plans,omitempty"`
}

// AssignAll auto-assigns every active student without a room, each in
// its own transaction.  A failure for one student is logged and the
// sweep moves on.  With dryRun set no writes happen; the report lists
// where each student would go given the current state.
func (e *Engine) AssignAll(ctx context.Context, dryRun bool) (SweepReport, error) {
	rep := SweepReport{DryRun: dryRun}

	var students []model.Student
	err := e.store.InTx(ctx, func(tx Tx) error {
		var err error
		students, err = tx.UnassignedStudents(ctx)
		return err
	})
	if err != nil {
		return rep, err
	}

	for _, st := range students {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if dryRun {
			room, err := e.FindCandidateRoom(ctx, st.ID)
			if err != nil {
				rep.Failed++
				e.log.Warn("sweep: candidate lookup failed", zap.Uint64("student_id", st.ID), zap.Error(err))
				continue
			}
			rep.Plans = append(rep.Plans, SweepPlan{StudentID: st.ID, Name: st.Name, Room: room})
			if room == nil {
				rep.Remaining++
			}
			continue
		}

		_, err := e.AutoAssign(ctx, st.ID)
		switch {
		case err == nil:
			rep.Assigned++
		case errors.Is(err, ErrNoRoomAvailable):
			rep.Remaining++
		case errors.Is(err, ErrAlreadyAssigned):
			// placed by a concurrent request since the listing
		default:
			rep.Failed++
			e.log.Warn("sweep: auto-assign failed", zap.Uint64("student_id", st.ID), zap.Error(err))
		}
	}

	e.log.Info("sweep finished",
		zap.Bool("dry_run", dryRun),
		zap.Int("students", len(students)),
		zap.Int("assigned", rep.Assigned),
		zap.Int("failed", rep.Failed),
		zap.Int("remaining", rep.Remaining))

	if !dryRun && rep.Remaining > 0 {
		e.emit(ctx, queue.AllocationEvent{
			Type:       queue.EventRoomsExhausted,
			Remaining:  rep.Remaining,
			OccurredAt: e.now().UTC().Format(time.RFC3339),
		})
	}
	return rep, nil
}
