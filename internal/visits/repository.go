package visits

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinicops/visitdesk/internal/users"
)

// Repository defines the interface for visit storage. Read paths return
// visits with patient/doctor refs expanded to id+name+email.
//
// StartVisit and CompleteVisit are conditional writes: they only flip
// the status when the row is still in the expected pre-state and report
// whether the transition was applied, so a losing concurrent caller can
// be surfaced as a conflict instead of silently overwriting.
type Repository interface {
	Create(ctx context.Context, visit *Visit) error
	GetByID(ctx context.Context, id uuid.UUID) (*Visit, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Visit, error)
	ListPendingByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Visit, error)
	GetActiveByDoctor(ctx context.Context, doctorID uuid.UUID) (*Visit, error)
	GetActiveByPatient(ctx context.Context, patientID uuid.UUID) (*Visit, error)
	FindOpenByPatientAndDoctor(ctx context.Context, patientID, doctorID uuid.UUID) (*Visit, error)
	ListAll(ctx context.Context) ([]*Visit, error)
	Search(ctx context.Context, params SearchParams) ([]*Visit, error)
	StartVisit(ctx context.Context, id uuid.UUID) (bool, error)
	CompleteVisit(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	AddTreatment(ctx context.Context, id uuid.UUID, treatment Treatment) (*Visit, error)
	UpdateMedicalNotes(ctx context.Context, id uuid.UUID, notes string) (*Visit, error)
}

// InMemoryRepository is a Repository backed by an in-memory map. It
// resolves patient/doctor refs through the user directory.
type InMemoryRepository struct {
	mu     sync.RWMutex
	visits map[uuid.UUID]*Visit
	users  users.Repository
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository(userRepo users.Repository) *InMemoryRepository {
	return &InMemoryRepository{
		visits: make(map[uuid.UUID]*Visit),
		users:  userRepo,
	}
}

// Create stores a new visit.
func (r *InMemoryRepository) Create(ctx context.Context, visit *Visit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if visit.ID == uuid.Nil {
		visit.ID = uuid.New()
	}
	if visit.CreatedAt.IsZero() {
		visit.CreatedAt = time.Now().UTC()
	}
	if visit.Status == "" {
		visit.Status = StatusPending
	}
	visit.TotalAmount = TotalOf(visit.Treatments)

	stored := cloneVisit(visit)
	r.visits[visit.ID] = stored
	return nil
}

// GetByID retrieves a visit with refs expanded.
func (r *InMemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*Visit, error) {
	r.mu.RLock()
	visit, ok := r.visits[id]
	if !ok {
		r.mu.RUnlock()
		return nil, ErrVisitNotFound
	}
	copied := cloneVisit(visit)
	r.mu.RUnlock()

	return r.expand(ctx, copied)
}

// ListByPatient returns the patient's visits, newest first.
func (r *InMemoryRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Visit, error) {
	result := r.collect(func(v *Visit) bool { return v.PatientID == patientID })
	sortNewestFirst(result)
	return r.expandAll(ctx, result)
}

// ListPendingByDoctor returns the doctor's pending queue, oldest first.
func (r *InMemoryRepository) ListPendingByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Visit, error) {
	result := r.collect(func(v *Visit) bool {
		return v.DoctorID == doctorID && v.Status == StatusPending
	})
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID.String() < result[j].ID.String()
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return r.expandAll(ctx, result)
}

// GetActiveByDoctor returns the doctor's in-progress visit, or nil.
func (r *InMemoryRepository) GetActiveByDoctor(ctx context.Context, doctorID uuid.UUID) (*Visit, error) {
	return r.findOne(ctx, func(v *Visit) bool {
		return v.DoctorID == doctorID && v.Status == StatusInProgress
	})
}

// GetActiveByPatient returns the patient's in-progress visit, or nil.
func (r *InMemoryRepository) GetActiveByPatient(ctx context.Context, patientID uuid.UUID) (*Visit, error) {
	return r.findOne(ctx, func(v *Visit) bool {
		return v.PatientID == patientID && v.Status == StatusInProgress
	})
}

// FindOpenByPatientAndDoctor returns a pending or in-progress visit for
// the pair, or nil.
func (r *InMemoryRepository) FindOpenByPatientAndDoctor(ctx context.Context, patientID, doctorID uuid.UUID) (*Visit, error) {
	return r.findOne(ctx, func(v *Visit) bool {
		return v.PatientID == patientID && v.DoctorID == doctorID &&
			(v.Status == StatusPending || v.Status == StatusInProgress)
	})
}

// ListAll returns every visit, newest first.
func (r *InMemoryRepository) ListAll(ctx context.Context) ([]*Visit, error) {
	result := r.collect(func(*Visit) bool { return true })
	sortNewestFirst(result)
	return r.expandAll(ctx, result)
}

// Search filters by exact id then case-insensitive name substrings.
func (r *InMemoryRepository) Search(ctx context.Context, params SearchParams) ([]*Visit, error) {
	candidates := r.collect(func(v *Visit) bool {
		return params.VisitID == nil || v.ID == *params.VisitID
	})
	sortNewestFirst(candidates)
	expanded, err := r.expandAll(ctx, candidates)
	if err != nil {
		return nil, err
	}

	var result []*Visit
	for _, v := range expanded {
		if params.DoctorName != "" && !containsFold(refName(v.Doctor), params.DoctorName) {
			continue
		}
		if params.PatientName != "" && !containsFold(refName(v.Patient), params.PatientName) {
			continue
		}
		result = append(result, v)
	}
	return result, nil
}

// StartVisit flips pending -> in-progress when still pending.
func (r *InMemoryRepository) StartVisit(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	visit, ok := r.visits[id]
	if !ok {
		return false, ErrVisitNotFound
	}
	if visit.Status != StatusPending {
		return false, nil
	}
	visit.Status = StatusInProgress
	return true, nil
}

// CompleteVisit flips any non-completed status to completed, stamping
// completed_at exactly once.
func (r *InMemoryRepository) CompleteVisit(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	visit, ok := r.visits[id]
	if !ok {
		return false, ErrVisitNotFound
	}
	if visit.Status == StatusCompleted {
		return false, nil
	}
	visit.Status = StatusCompleted
	stamped := at.UTC()
	visit.CompletedAt = &stamped
	return true, nil
}

// AddTreatment appends and recomputes the total.
func (r *InMemoryRepository) AddTreatment(ctx context.Context, id uuid.UUID, treatment Treatment) (*Visit, error) {
	r.mu.Lock()
	visit, ok := r.visits[id]
	if !ok {
		r.mu.Unlock()
		return nil, ErrVisitNotFound
	}
	if visit.Status == StatusCompleted {
		r.mu.Unlock()
		return nil, ErrVisitCompleted
	}
	visit.Treatments = append(visit.Treatments, treatment)
	visit.TotalAmount = TotalOf(visit.Treatments)
	copied := cloneVisit(visit)
	r.mu.Unlock()

	return r.expand(ctx, copied)
}

// UpdateMedicalNotes replaces the notes wholesale.
func (r *InMemoryRepository) UpdateMedicalNotes(ctx context.Context, id uuid.UUID, notes string) (*Visit, error) {
	r.mu.Lock()
	visit, ok := r.visits[id]
	if !ok {
		r.mu.Unlock()
		return nil, ErrVisitNotFound
	}
	if visit.Status == StatusCompleted {
		r.mu.Unlock()
		return nil, ErrVisitCompleted
	}
	visit.MedicalNotes = notes
	copied := cloneVisit(visit)
	r.mu.Unlock()

	return r.expand(ctx, copied)
}

func (r *InMemoryRepository) collect(match func(*Visit) bool) []*Visit {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*Visit
	for _, v := range r.visits {
		if match(v) {
			result = append(result, cloneVisit(v))
		}
	}
	return result
}

func (r *InMemoryRepository) findOne(ctx context.Context, match func(*Visit) bool) (*Visit, error) {
	matches := r.collect(match)
	if len(matches) == 0 {
		return nil, nil
	}
	// deterministic pick should multiple rows ever match
	sortNewestFirst(matches)
	return r.expand(ctx, matches[0])
}

func (r *InMemoryRepository) expand(ctx context.Context, visit *Visit) (*Visit, error) {
	if r.users == nil {
		return visit, nil
	}
	if patient, err := r.users.GetByID(ctx, visit.PatientID); err == nil {
		visit.Patient = &PersonRef{ID: patient.ID, Name: patient.Name, Email: patient.Email}
	}
	if doctor, err := r.users.GetByID(ctx, visit.DoctorID); err == nil {
		visit.Doctor = &PersonRef{ID: doctor.ID, Name: doctor.Name, Email: doctor.Email}
	}
	return visit, nil
}

func (r *InMemoryRepository) expandAll(ctx context.Context, result []*Visit) ([]*Visit, error) {
	for _, v := range result {
		if _, err := r.expand(ctx, v); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func cloneVisit(v *Visit) *Visit {
	copied := *v
	copied.Treatments = append([]Treatment(nil), v.Treatments...)
	if v.CompletedAt != nil {
		at := *v.CompletedAt
		copied.CompletedAt = &at
	}
	copied.Patient = nil
	copied.Doctor = nil
	return &copied
}

func sortNewestFirst(result []*Visit) {
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID.String() > result[j].ID.String()
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
}

func refName(ref *PersonRef) string {
	if ref == nil {
		return ""
	}
	return ref.Name
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
