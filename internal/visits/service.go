package visits

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/clinicops/visitdesk/internal/apperr"
	"github.com/clinicops/visitdesk/internal/observability/metrics"
	"github.com/clinicops/visitdesk/internal/users"
	"github.com/clinicops/visitdesk/pkg/logging"
)

var visitsTracer = otel.Tracer("visitdesk.internal.visits")

// Service enforces the visit lifecycle state machine.
//
// Book and Start are check-then-act sequences: the single-active-visit
// guards are evaluated under a per-patient/per-doctor keyed lock, and
// the status flip itself is a conditional write at the store, so two
// concurrent callers racing on the same doctor or patient cannot both
// succeed.
type Service struct {
	visits  Repository
	users   users.Repository
	locks   *keyedMutex
	metrics *metrics.VisitMetrics
	logger  *logging.Logger
	now     func() time.Time
}

// NewService constructs a visit lifecycle service.
func NewService(visitRepo Repository, userRepo users.Repository, m *metrics.VisitMetrics, logger *logging.Logger) *Service {
	if visitRepo == nil {
		panic("visits: visit repository required")
	}
	if userRepo == nil {
		panic("visits: user repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		visits:  visitRepo,
		users:   userRepo,
		locks:   newKeyedMutex(),
		metrics: m,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Book creates a pending visit for the patient with the given doctor.
func (s *Service) Book(ctx context.Context, patient *users.User, doctorID uuid.UUID) (*Visit, error) {
	ctx, span := visitsTracer.Start(ctx, "visits.book")
	defer span.End()
	span.SetAttributes(
		attribute.String("visitdesk.patient_id", patient.ID.String()),
		attribute.String("visitdesk.doctor_id", doctorID.String()),
	)

	doctor, err := s.users.GetByID(ctx, doctorID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, ErrDoctorNotFound
		}
		span.RecordError(err)
		return nil, err
	}
	if doctor.Role != users.RoleDoctor {
		return nil, ErrDoctorNotFound
	}

	unlock := s.locks.lockPair(patient.ID.String(), doctorID.String())
	defer unlock()

	active, err := s.visits.GetActiveByPatient(ctx, patient.ID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if active != nil {
		s.metrics.ObserveConflict("book")
		return nil, apperr.Newf(apperr.KindConflict,
			"you are currently in an active visit with Dr. %s", refName(active.Doctor))
	}

	open, err := s.visits.FindOpenByPatientAndDoctor(ctx, patient.ID, doctorID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if open != nil {
		s.metrics.ObserveConflict("book")
		return nil, apperr.Newf(apperr.KindConflict,
			"you already have a %s visit with Dr. %s", open.Status, doctor.Name)
	}

	visit := &Visit{
		PatientID: patient.ID,
		DoctorID:  doctorID,
		Status:    StatusPending,
	}
	if err := s.visits.Create(ctx, visit); err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.metrics.ObserveBooked()
	s.logger.Info("visit booked", "visit_id", visit.ID, "patient_id", patient.ID, "doctor_id", doctorID)
	return s.visits.GetByID(ctx, visit.ID)
}

// Start transitions the doctor's pending visit to in-progress.
func (s *Service) Start(ctx context.Context, doctor *users.User, visitID uuid.UUID) (*Visit, error) {
	ctx, span := visitsTracer.Start(ctx, "visits.start")
	defer span.End()
	span.SetAttributes(attribute.String("visitdesk.visit_id", visitID.String()))

	visit, err := s.visits.GetByID(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if visit.DoctorID != doctor.ID {
		return nil, ErrNotAssignedDoctor
	}
	if visit.Status != StatusPending {
		s.metrics.ObserveConflict("start")
		return nil, ErrVisitNotPending
	}

	unlock := s.locks.lockPair(visit.PatientID.String(), doctor.ID.String())
	defer unlock()

	active, err := s.visits.GetActiveByDoctor(ctx, doctor.ID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if active != nil {
		s.metrics.ObserveConflict("start")
		return nil, ErrDoctorBusy
	}

	patientActive, err := s.visits.GetActiveByPatient(ctx, visit.PatientID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if patientActive != nil {
		s.metrics.ObserveConflict("start")
		return nil, apperr.Newf(apperr.KindConflict,
			"patient is currently in an active visit with Dr. %s", refName(patientActive.Doctor))
	}

	started, err := s.visits.StartVisit(ctx, visitID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !started {
		// lost a concurrent race or the status moved under us
		s.metrics.ObserveConflict("start")
		return nil, ErrVisitNotPending
	}

	s.metrics.ObserveStarted()
	s.logger.Info("visit started", "visit_id", visitID, "doctor_id", doctor.ID)
	return s.visits.GetByID(ctx, visitID)
}

// AddTreatment appends a treatment to a not-yet-completed visit.
func (s *Service) AddTreatment(ctx context.Context, doctor *users.User, visitID uuid.UUID, name string, cost float64, notes string) (*Visit, error) {
	ctx, span := visitsTracer.Start(ctx, "visits.add_treatment")
	defer span.End()
	span.SetAttributes(attribute.String("visitdesk.visit_id", visitID.String()))

	// validate before touching the store
	if strings.TrimSpace(name) == "" {
		return nil, apperr.New(apperr.KindValidation, "treatment name is required")
	}
	if cost < 0 {
		return nil, apperr.New(apperr.KindValidation, "treatment cost cannot be negative")
	}

	visit, err := s.visits.GetByID(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if visit.DoctorID != doctor.ID {
		return nil, ErrNotAssignedDoctor
	}
	if visit.Status == StatusCompleted {
		s.metrics.ObserveConflict("add_treatment")
		return nil, ErrVisitCompleted
	}

	updated, err := s.visits.AddTreatment(ctx, visitID, Treatment{
		Name:  strings.TrimSpace(name),
		Cost:  cost,
		Notes: notes,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.metrics.ObserveTreatmentAdded()
	s.logger.Info("treatment added", "visit_id", visitID, "total_amount", updated.TotalAmount)
	return updated, nil
}

// UpdateMedicalNotes replaces the visit's notes wholesale. Notes are
// frozen once the visit is completed, matching the treatment guard.
func (s *Service) UpdateMedicalNotes(ctx context.Context, doctor *users.User, visitID uuid.UUID, notes string) (*Visit, error) {
	visit, err := s.visits.GetByID(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if visit.DoctorID != doctor.ID {
		return nil, ErrNotAssignedDoctor
	}
	if visit.Status == StatusCompleted {
		s.metrics.ObserveConflict("update_notes")
		return nil, ErrVisitCompleted
	}
	return s.visits.UpdateMedicalNotes(ctx, visitID, notes)
}

// Complete transitions the visit to its terminal state.
func (s *Service) Complete(ctx context.Context, doctor *users.User, visitID uuid.UUID) (*Visit, error) {
	ctx, span := visitsTracer.Start(ctx, "visits.complete")
	defer span.End()
	span.SetAttributes(attribute.String("visitdesk.visit_id", visitID.String()))

	visit, err := s.visits.GetByID(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if visit.DoctorID != doctor.ID {
		return nil, ErrNotAssignedDoctor
	}
	if visit.Status == StatusCompleted {
		s.metrics.ObserveConflict("complete")
		return nil, ErrVisitCompleted
	}

	completed, err := s.visits.CompleteVisit(ctx, visitID, s.now())
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !completed {
		s.metrics.ObserveConflict("complete")
		return nil, ErrVisitCompleted
	}

	s.metrics.ObserveCompleted()
	s.logger.Info("visit completed", "visit_id", visitID, "doctor_id", doctor.ID)
	return s.visits.GetByID(ctx, visitID)
}

// ListDoctors returns the bookable doctors.
func (s *Service) ListDoctors(ctx context.Context) ([]users.PublicUser, error) {
	doctors, err := s.users.ListByRole(ctx, users.RoleDoctor)
	if err != nil {
		return nil, err
	}
	result := make([]users.PublicUser, 0, len(doctors))
	for _, d := range doctors {
		result = append(result, d.Public())
	}
	return result, nil
}

// ActiveVisit returns the doctor's in-progress visit, or nil.
func (s *Service) ActiveVisit(ctx context.Context, doctor *users.User) (*Visit, error) {
	return s.visits.GetActiveByDoctor(ctx, doctor.ID)
}

// PendingVisits returns the doctor's pending queue, oldest first.
func (s *Service) PendingVisits(ctx context.Context, doctor *users.User) ([]*Visit, error) {
	return s.visits.ListPendingByDoctor(ctx, doctor.ID)
}

// MyVisits returns the patient's visit history, newest first.
func (s *Service) MyVisits(ctx context.Context, patient *users.User) ([]*Visit, error) {
	return s.visits.ListByPatient(ctx, patient.ID)
}

// AllVisits returns every visit, newest first.
func (s *Service) AllVisits(ctx context.Context) ([]*Visit, error) {
	return s.visits.ListAll(ctx)
}

// Search resolves the finance search. When the visit id is absent or
// unparseable and both name filters are empty, it short-circuits to an
// empty result without touching the store; the unfiltered listing is
// AllVisits' job.
func (s *Service) Search(ctx context.Context, rawVisitID, doctorName, patientName string) ([]*Visit, error) {
	params := SearchParams{
		DoctorName:  strings.TrimSpace(doctorName),
		PatientName: strings.TrimSpace(patientName),
	}
	if id, err := uuid.Parse(strings.TrimSpace(rawVisitID)); err == nil {
		params.VisitID = &id
	}
	if params.Empty() {
		return []*Visit{}, nil
	}
	return s.visits.Search(ctx, params)
}
