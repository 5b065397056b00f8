package allocation

import (
	"sort"

	"github.com/iliyamo/hostel-management/internal/model"
)

// Candidate tiers in priority order.
const (
	tierSameYear = iota
	tierSameCourse
	tierAny
)

func (c Candidate) tier() int {
	switch {
	case c.SameYear:
		return tierSameYear
	case c.SameCourse:
		return tierSameCourse
	default:
		return tierAny
	}
}

// rankCandidates orders available rooms by preference: rooms sharing the
// student's year first, then rooms sharing the course, then the rest.
// Within a tier the emptiest room wins so students spread out; ties fall
// back to block, room number and id, which keeps the result stable for
// identical inputs.  Full rooms are dropped.
func rankCandidates(cands []Candidate) []model.Room {
	sorted := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		if c.Room.IsAvailable() {
			sorted = append(sorted, c)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if ta, tb := a.tier(), b.tier(); ta != tb {
			return ta < tb
		}
		if a.Room.Occupied != b.Room.Occupied {
			return a.Room.Occupied < b.Room.Occupied
		}
		if a.Room.Block != b.Room.Block {
			return a.Room.Block < b.Room.Block
		}
		if a.Room.RoomNumber != b.Room.RoomNumber {
			return a.Room.RoomNumber < b.Room.RoomNumber
		}
		return a.Room.ID < b.Room.ID
	})

	rooms := make([]model.Room, len(sorted))
	for i, c := range sorted {
		rooms[i] = c.Room
	}
	return rooms
}
