package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHandleAppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "allocation.log")
	c := NewConsumer("", path, zap.NewNop())

	events := []AllocationEvent{
		{Type: EventAllocated, AllocationID: 1, StudentID: 5, RoomID: 2, RoomLabel: "A-101", OccurredAt: "2026-01-05T10:00:00Z"},
		{Type: EventTransferred, AllocationID: 2, StudentID: 5, RoomLabel: "B-201", FromRoom: "A-101", FeeAmount: "300.00", OccurredAt: "2026-01-06T10:00:00Z"},
		{Type: EventRoomsExhausted, Remaining: 4, OccurredAt: "2026-01-06T11:00:00Z"},
	}
	for _, ev := range events {
		body, err := json.Marshal(ev)
		require.NoError(t, err)
		require.NoError(t, c.handle(body))
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"[2026-01-05T10:00:00Z] allocation.created | allocation_id=1 | student_id=5 | room=A-101\n"+
			"[2026-01-06T10:00:00Z] allocation.transferred | allocation_id=2 | student_id=5 | from=A-101 | room=B-201 | fee=300.00\n"+
			"[2026-01-06T11:00:00Z] rooms.exhausted | students_without_room=4\n",
		string(data))
}

func TestHandleRejectsBadPayload(t *testing.T) {
	c := NewConsumer("", filepath.Join(t.TempDir(), "a.log"), zap.NewNop())
	assert.Error(t, c.handle([]byte("{")))
	assert.Error(t, c.handle([]byte(`{"allocation_id":1}`)))
}
