package model

import "time"

// Student is a hostel resident.  The student directory owns these rows;
// the allocation engine only reads Year and Course for its placement
// heuristic and keeps the current-room projection (RoomID, HostelBlock,
// RoomNumber) in sync with the allocation ledger.
//
// Fields:
//
//	ID             – primary key identifier.
//	UserID         – login account of the student, when one exists.
//	Name           – full name.
//	Email          – contact address.
//	RegisterNumber – unique enrollment number.
//	MobileNumber   – contact phone.
//	Course         – enrolled course.
//	Year           – year of study.
//	ParentName     – guardian name.
//	ParentMobile   – guardian phone.
//	RoomID         – current room, nil when room-less.
//	HostelBlock    – block of the current room.
//	RoomNumber     – number of the current room.
//	IsActive       – false once the student is soft-deleted.
//	CreatedAt      – creation timestamp.
type Student struct {
	ID             uint64    `json:"id"`              // students.id
	UserID         *uint64   `json:"user_id"`         // students.user_id (nullable)
	Name           string    `json:"name"`            // students.name
	Email          string    `json:"email"`           // students.email
	RegisterNumber string    `json:"register_number"` // students.register_number
	MobileNumber   string    `json:"mobile_number"`   // students.mobile_number
	Course         string    `json:"course"`          // students.course
	Year           int       `json:"year"`            // students.year
	ParentName     string    `json:"parent_name"`     // students.parent_name
	ParentMobile   string    `json:"parent_mobile"`   // students.parent_mobile
	RoomID         *uint64   `json:"room_id"`         // students.room_id (nullable)
	HostelBlock    *string   `json:"hostel_block"`    // students.hostel_block (nullable)
	RoomNumber     *string   `json:"room_number"`     // students.room_number (nullable)
	IsActive       bool      `json:"is_active"`       // students.is_active
	CreatedAt      time.Time `json:"created_at"`      // students.created_at
}

// HasRoom reports whether the current-room projection points at a room.
func (s Student) HasRoom() bool { return s.RoomID != nil }

// AssignRoom points the current-room projection at room, or clears it
// when room is nil.
func (s *Student) AssignRoom(room *Room) {
	if room == nil {
		s.RoomID, s.HostelBlock, s.RoomNumber = nil, nil, nil
		return
	}
	id, block, number := room.ID, room.Block, room.RoomNumber
	s.RoomID, s.HostelBlock, s.RoomNumber = &id, &block, &number
}

// StudentPatch is a partial profile update.  Nil fields are left
// unchanged; the register number and the room projection cannot be
// patched.
type StudentPatch struct {
	Name         *string `json:"name,omitempty"`
	Email        *string `json:"email,omitempty"`
	MobileNumber *string `json:"mobile_number,omitempty"`
	Course       *string `json:"course,omitempty"`
	Year         *int    `json:"year,omitempty"`
	ParentName   *string `json:"parent_name,omitempty"`
	ParentMobile *string `json:"parent_mobile,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p StudentPatch) Empty() bool { return p == StudentPatch{} }

// TouchesLogin reports whether the patch changes fields mirrored on the
// student's login account.
func (p StudentPatch) TouchesLogin() bool { return p.Name != nil || p.Email != nil }

// Apply copies the set fields onto s.
func (p StudentPatch) Apply(s *Student) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&s.Name, p.Name)
	set(&s.Email, p.Email)
	set(&s.MobileNumber, p.MobileNumber)
	set(&s.Course, p.Course)
	set(&s.ParentName, p.ParentName)
	set(&s.ParentMobile, p.ParentMobile)
	if p.Year != nil {
		s.Year = *p.Year
	}
}
