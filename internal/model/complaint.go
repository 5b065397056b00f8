package model

import "time"

// Complaint statuses.
const (
	ComplaintOpen       = "OPEN"
	ComplaintInProgress = "IN_PROGRESS"
	ComplaintClosed     = "CLOSED"
)

// ComplaintCategories lists the categories a complaint may be filed under.
var ComplaintCategories = []string{
	"maintenance", "cleanliness", "noise", "food",
	"security", "water", "electricity", "other",
}

// Complaint is an issue raised by a student and tracked by wardens.
type Complaint struct {
	ID          uint64    `json:"id"`          // complaints.id
	StudentID   uint64    `json:"student_id"`  // complaints.student_id
	Category    string    `json:"category"`    // complaints.category
	Description string    `json:"description"` // complaints.description
	Status      string    `json:"status"`      // complaints.status
	AssignedTo  *uint64   `json:"assigned_to"` // complaints.assigned_to (nullable)
	CreatedAt   time.Time `json:"created_at"`  // complaints.created_at
}
