package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/hostel-management/internal/allocation"
	"github.com/iliyamo/hostel-management/internal/model"
	"github.com/iliyamo/hostel-management/internal/report"
	"github.com/iliyamo/hostel-management/internal/repository/memstore"
)

type fakeAssigner struct {
	calls atomic.Int32
	rep   allocation.SweepReport
	err   error
}

func (f *fakeAssigner) AssignAll(_ context.Context, dryRun bool) (allocation.SweepReport, error) {
	f.calls.Add(1)
	return f.rep, f.err
}

func TestTickRunsSweepWithoutRedis(t *testing.T) {
	store := memstore.New()
	store.AddRoom("A", "101", 2)
	store.AddStudent(model.Student{Name: "Asha", RegisterNumber: "R1", Course: "CSE", Year: 1, IsActive: true})
	store.AddStudent(model.Student{Name: "Ben", RegisterNumber: "R2", Course: "ECE", Year: 2, IsActive: true})
	engine := allocation.NewEngine(store, zap.NewNop())

	var invalidated int
	s := NewSweeper(engine, nil, time.Hour, time.Minute, zap.NewNop())
	s.OnAssigned(func(context.Context) { invalidated++ })

	ran, err := s.tick(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 1, invalidated)

	rooms, err := store.ListRooms(context.Background(), report.RoomFilter{})
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, 2, rooms[0].Occupied)

	ran, err = s.tick(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 1, invalidated, "nothing left to assign")
}

func TestTickReturnsAssignerError(t *testing.T) {
	boom := errors.New("boom")
	f := &fakeAssigner{err: boom}
	_, err := NewSweeper(f, nil, 0, 0, zap.NewNop()).tick(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestRunStopsOnCancel(t *testing.T) {
	f := &fakeAssigner{}
	s := NewSweeper(f, nil, 5*time.Millisecond, 0, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return f.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
