package visits

import "github.com/clinicops/visitdesk/internal/apperr"

var (
	// ErrVisitNotFound indicates the visit id does not resolve.
	ErrVisitNotFound = apperr.New(apperr.KindNotFound, "visit not found")

	// ErrDoctorNotFound indicates the referenced user is missing or not a doctor.
	ErrDoctorNotFound = apperr.New(apperr.KindNotFound, "doctor not found")

	// ErrNotAssignedDoctor indicates the caller is not the visit's doctor.
	ErrNotAssignedDoctor = apperr.New(apperr.KindForbidden, "only the assigned doctor can access this visit")

	// ErrVisitNotPending indicates a start attempt on a non-pending visit.
	ErrVisitNotPending = apperr.New(apperr.KindConflict, "visit already started or completed")

	// ErrVisitCompleted indicates a mutation attempt on a completed visit.
	ErrVisitCompleted = apperr.New(apperr.KindConflict, "visit is already completed")

	// ErrDoctorBusy indicates the doctor already runs an active visit.
	ErrDoctorBusy = apperr.New(apperr.KindConflict, "you already have an active visit in progress")
)
