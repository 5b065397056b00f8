// Package queue defines message payloads exchanged over the message broker
// and the consumer that records them.
package queue

// QueueName is the durable queue allocation events are routed to.
const QueueName = "allocation.events"

// Allocation event types.
const (
	EventAllocated      = "allocation.created"
	EventVacated        = "allocation.vacated"
	EventTransferred    = "allocation.transferred"
	EventRoomsExhausted = "rooms.exhausted"
)

// AllocationEvent is published after an allocation change commits.  It
// carries enough information for downstream consumers to log or notify
// without querying the primary database.  For EventRoomsExhausted only
// Remaining and OccurredAt are set.
type AllocationEvent struct {
	Type         string `json:"type"`
	AllocationID uint64 `json:"allocation_id,omitempty"`
	StudentID    uint64 `json:"student_id,omitempty"`
	RoomID       uint64 `json:"room_id,omitempty"`
	RoomLabel    string `json:"room,omitempty"`
	FromRoomID   uint64 `json:"from_room_id,omitempty"`
	FromRoom     string `json:"from_room,omitempty"`
	FeeAmount    string `json:"fee_amount,omitempty"`
	Remaining    int    `json:"remaining,omitempty"`
	OccurredAt   string `json:"occurred_at"`
}
