package visits

import (
	"time"

	"github.com/google/uuid"
)

// Status is the visit lifecycle state. Transitions are monotonic:
// pending -> in-progress -> completed.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

// Treatment is a value type owned by its visit. Once appended it is
// never mutated or removed.
type Treatment struct {
	Name  string  `json:"name"`
	Cost  float64 `json:"cost"`
	Notes string  `json:"notes,omitempty"`
}

// PersonRef is the expanded patient/doctor projection on read paths.
type PersonRef struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

// Visit represents one patient/doctor encounter.
type Visit struct {
	ID           uuid.UUID   `json:"id"`
	PatientID    uuid.UUID   `json:"patient_id"`
	DoctorID     uuid.UUID   `json:"doctor_id"`
	Status       Status      `json:"status"`
	Treatments   []Treatment `json:"treatments"`
	TotalAmount  float64     `json:"total_amount"`
	MedicalNotes string      `json:"medical_notes"`
	CreatedAt    time.Time   `json:"created_at"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`
	Patient      *PersonRef  `json:"patient,omitempty"`
	Doctor       *PersonRef  `json:"doctor,omitempty"`
}

// TotalOf sums treatment costs. The stored TotalAmount is always this
// value recomputed at every mutation that touches treatments.
func TotalOf(treatments []Treatment) float64 {
	var total float64
	for _, t := range treatments {
		total += t.Cost
	}
	return total
}

// SearchParams filters the finance search. A nil VisitID means no id
// filter; name filters are case-insensitive substring matches on the
// resolved display names.
type SearchParams struct {
	VisitID     *uuid.UUID
	DoctorName  string
	PatientName string
}

// Empty reports whether no filter is set.
func (p SearchParams) Empty() bool {
	return p.VisitID == nil && p.DoctorName == "" && p.PatientName == ""
}
