package allocation

import (
	"context"

	"github.com/iliyamo/hostel-management/internal/model"
)

// occupy adds one occupant to a room that the caller has already locked
// and returns the updated row.
func occupy(ctx context.Context, tx Tx, room model.Room) (model.Room, error) {
	if !room.IsAvailable() {
		return room, ErrRoomFull
	}
	room.Occupied++
	if err := tx.SetOccupancy(ctx, room.ID, room.Occupied); err != nil {
		return room, err
	}
	return room, nil
}

// release removes one occupant from a locked room.  The counter never
// goes below zero.
func release(ctx context.Context, tx Tx, room model.Room) (model.Room, error) {
	if room.Occupied > 0 {
		room.Occupied--
	}
	if err := tx.SetOccupancy(ctx, room.ID, room.Occupied); err != nil {
		return room, err
	}
	return room, nil
}
