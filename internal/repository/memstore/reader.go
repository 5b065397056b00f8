package memstore

import (
	"context"
	"sort"

	"github.com/iliyamo/hostel-management/internal/allocation"
	"github.com/iliyamo/hostel-management/internal/model"
	"github.com/iliyamo/hostel-management/internal/report"
)

func (s *Store) GetStudent(_ context.Context, id uint64) (model.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.state.students[id]
	if !ok {
		return model.Student{}, allocation.ErrStudentNotFound
	}
	return st, nil
}

func (s *Store) ListStudents(_ context.Context, f report.StudentFilter) ([]model.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Student{}
	for _, st := range sortedStudents(s.state) {
		if f.ActiveOnly && !st.IsActive {
			continue
		}
		if f.WithoutRoom && st.HasRoom() {
			continue
		}
		out = append(out, st)
	}
	return out, nil
}

func (s *Store) GetRoom(_ context.Context, id uint64) (model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.state.rooms[id]
	if !ok {
		return model.Room{}, allocation.ErrRoomNotFound
	}
	return r, nil
}

func (s *Store) ListRooms(_ context.Context, f report.RoomFilter) ([]model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Room{}
	for _, r := range sortedRooms(s.state) {
		if f.Block != "" && r.Block != f.Block {
			continue
		}
		if f.RoomID != 0 && r.ID != f.RoomID {
			continue
		}
		if f.AvailableOnly && !r.IsAvailable() {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Store) ListAllocations(_ context.Context, f report.AllocationFilter) ([]model.Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Allocation{}
	for _, a := range s.state.allocations {
		if f.StudentID != 0 && a.StudentID != f.StudentID {
			continue
		}
		if f.RoomID != 0 && a.RoomID != f.RoomID {
			continue
		}
		if f.ActiveOnly && !a.IsActive {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AllocatedAt.Equal(out[j].AllocatedAt) {
			return out[i].AllocatedAt.After(out[j].AllocatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) ListFeeConfigs(_ context.Context) ([]model.FeeConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]model.FeeConfig{}, s.state.feeConfigs...)
	sort.Slice(out, func(i, j int) bool { return out[i].EffectiveFrom.After(out[j].EffectiveFrom) })
	return out, nil
}

func (s *Store) ListLedger(_ context.Context, studentID uint64) ([]model.FeeLedger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.FeeLedger{}
	for _, l := range s.state.ledger {
		if l.StudentID == studentID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *Store) ListPayments(_ context.Context, studentID uint64) ([]model.FeePayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.FeePayment{}
	for _, p := range s.state.payments {
		if p.StudentID == studentID {
			out = append(out, p)
		}
	}
	return out, nil
}
