package allocation

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/hostel-management/internal/model"
)

// maxRangeRooms caps a single bulk creation.
const maxRangeRooms = 500

// RoomInput carries the editable fields of a room.
type RoomInput struct {
	Block      string
	RoomNumber string
	Capacity   int
}

func (in RoomInput) validate() error {
	if strings.TrimSpace(in.Block) == "" || strings.TrimSpace(in.RoomNumber) == "" {
		return ErrInvalidRoom
	}
	if in.Capacity < 1 {
		return ErrInvalidCapacity
	}
	return nil
}

// RangeResult reports the outcome of CreateRoomRange.
type RangeResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// CreateRoom adds an empty room.
func (e *Engine) CreateRoom(ctx context.Context, in RoomInput) (model.Room, error) {
	if err := in.validate(); err != nil {
		return model.Room{}, err
	}
	r := model.Room{
		Block:      strings.TrimSpace(in.Block),
		RoomNumber: strings.TrimSpace(in.RoomNumber),
		Capacity:   in.Capacity,
		CreatedAt:  e.now().UTC(),
	}
	err := e.store.InTx(ctx, func(tx Tx) error { return tx.InsertRoom(ctx, &r) })
	if err != nil {
		return model.Room{}, err
	}
	e.log.Info("room created", zap.Uint64("room_id", r.ID), zap.String("room", r.Label()))
	return r, nil
}

// CreateRoomRange adds rooms numbered start..end in block.  Numbers that
// already exist in the block are skipped.
func (e *Engine) CreateRoomRange(ctx context.Context, block string, start, end, capacity int) (RangeResult, error) {
	block = strings.TrimSpace(block)
	switch {
	case block == "":
		return RangeResult{}, ErrInvalidRoom
	case capacity < 1:
		return RangeResult{}, ErrInvalidCapacity
	case start < 0 || start > end || end-start+1 > maxRangeRooms:
		return RangeResult{}, ErrInvalidRange
	}

	now := e.now().UTC()
	rooms := make([]model.Room, 0, end-start+1)
	for n := start; n <= end; n++ {
		rooms = append(rooms, model.Room{Block: block, RoomNumber: strconv.Itoa(n), Capacity: capacity, CreatedAt: now})
	}

	var created int
	err := e.store.InTx(ctx, func(tx Tx) error {
		var err error
		created, err = tx.InsertRooms(ctx, rooms)
		return err
	})
	if err != nil {
		return RangeResult{}, err
	}
	res := RangeResult{Created: created, Skipped: len(rooms) - created}
	e.log.Info("room range created",
		zap.String("block", block),
		zap.Int("start", start),
		zap.Int("end", end),
		zap.Int("created", res.Created),
		zap.Int("skipped", res.Skipped))
	return res, nil
}

// UpdateRoom changes a room's block, number or capacity.  Capacity may
// not drop below the current occupancy.
func (e *Engine) UpdateRoom(ctx context.Context, id uint64, in RoomInput) (model.Room, error) {
	if err := in.validate(); err != nil {
		return model.Room{}, err
	}
	var out model.Room
	err := e.store.InTx(ctx, func(tx Tx) error {
		r, err := tx.RoomForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if in.Capacity < r.Occupied {
			return ErrCapacityBelowUse
		}
		r.Block = strings.TrimSpace(in.Block)
		r.RoomNumber = strings.TrimSpace(in.RoomNumber)
		r.Capacity = in.Capacity
		if err := tx.UpdateRoom(ctx, r); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return model.Room{}, err
	}
	return out, nil
}

// DeleteRoom removes an unoccupied room.
func (e *Engine) DeleteRoom(ctx context.Context, id uint64) error {
	err := e.store.InTx(ctx, func(tx Tx) error {
		r, err := tx.RoomForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if r.Occupied > 0 {
			return ErrRoomOccupied
		}
		return tx.DeleteRoom(ctx, id)
	})
	if err != nil {
		return err
	}
	e.log.Info("room deleted", zap.Uint64("room_id", id))
	return nil
}
