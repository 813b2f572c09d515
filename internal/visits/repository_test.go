package visits

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicops/visitdesk/internal/users"
)

func newRepoFixture(t *testing.T) (*InMemoryRepository, *users.User, *users.User) {
	t.Helper()

	userRepo := users.NewInMemoryRepository()
	patient := &users.User{Name: "Alice Archer", Email: "alice@example.com", Role: users.RolePatient}
	doctor := &users.User{Name: "Gregory House", Email: "house@example.com", Role: users.RoleDoctor}
	require.NoError(t, userRepo.Create(context.Background(), patient))
	require.NoError(t, userRepo.Create(context.Background(), doctor))

	return NewInMemoryRepository(userRepo), patient, doctor
}

func TestInMemoryCreateDefaults(t *testing.T) {
	repo, patient, doctor := newRepoFixture(t)
	ctx := context.Background()

	visit := &Visit{PatientID: patient.ID, DoctorID: doctor.ID}
	require.NoError(t, repo.Create(ctx, visit))

	assert.NotEqual(t, uuid.Nil, visit.ID)
	assert.False(t, visit.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, visit.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
	assert.Zero(t, got.TotalAmount)
	require.NotNil(t, got.Patient)
	assert.Equal(t, "Alice Archer", got.Patient.Name)
	require.NotNil(t, got.Doctor)
	assert.Equal(t, "house@example.com", got.Doctor.Email)
}

func TestInMemoryGetByIDUnknown(t *testing.T) {
	repo, _, _ := newRepoFixture(t)

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrVisitNotFound)
}

func TestInMemoryStoredVisitIsolatedFromCaller(t *testing.T) {
	repo, patient, doctor := newRepoFixture(t)
	ctx := context.Background()

	visit := &Visit{PatientID: patient.ID, DoctorID: doctor.ID}
	require.NoError(t, repo.Create(ctx, visit))

	// mutating the caller's copy must not leak into the store
	visit.Status = StatusCompleted
	visit.Treatments = append(visit.Treatments, Treatment{Name: "Rogue", Cost: 999})

	got, err := repo.GetByID(ctx, visit.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
	assert.Empty(t, got.Treatments)
}

func TestInMemoryAddTreatmentRecomputesTotal(t *testing.T) {
	repo, patient, doctor := newRepoFixture(t)
	ctx := context.Background()

	visit := &Visit{PatientID: patient.ID, DoctorID: doctor.ID}
	require.NoError(t, repo.Create(ctx, visit))

	updated, err := repo.AddTreatment(ctx, visit.ID, Treatment{Name: "Consultation", Cost: 120.5})
	require.NoError(t, err)
	updated, err = repo.AddTreatment(ctx, visit.ID, Treatment{Name: "X-Ray", Cost: 80})
	require.NoError(t, err)

	assert.Len(t, updated.Treatments, 2)
	assert.Equal(t, 200.5, updated.TotalAmount)
}

func TestInMemoryConditionalTransitions(t *testing.T) {
	repo, patient, doctor := newRepoFixture(t)
	ctx := context.Background()

	visit := &Visit{PatientID: patient.ID, DoctorID: doctor.ID}
	require.NoError(t, repo.Create(ctx, visit))

	started, err := repo.StartVisit(ctx, visit.ID)
	require.NoError(t, err)
	assert.True(t, started)

	// already in-progress, the second flip must not apply
	started, err = repo.StartVisit(ctx, visit.ID)
	require.NoError(t, err)
	assert.False(t, started)

	at := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	completed, err := repo.CompleteVisit(ctx, visit.ID, at)
	require.NoError(t, err)
	assert.True(t, completed)

	completed, err = repo.CompleteVisit(ctx, visit.ID, at.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, completed)

	got, err := repo.GetByID(ctx, visit.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, got.CompletedAt.Equal(at), "completed_at must keep the first stamp")
}

func TestInMemoryOpenVisitLookups(t *testing.T) {
	repo, patient, doctor := newRepoFixture(t)
	ctx := context.Background()

	visit := &Visit{PatientID: patient.ID, DoctorID: doctor.ID}
	require.NoError(t, repo.Create(ctx, visit))

	open, err := repo.FindOpenByPatientAndDoctor(ctx, patient.ID, doctor.ID)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, visit.ID, open.ID)

	active, err := repo.GetActiveByDoctor(ctx, doctor.ID)
	require.NoError(t, err)
	assert.Nil(t, active, "pending visit is not active")

	_, err = repo.StartVisit(ctx, visit.ID)
	require.NoError(t, err)

	active, err = repo.GetActiveByDoctor(ctx, doctor.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, StatusInProgress, active.Status)

	active, err = repo.GetActiveByPatient(ctx, patient.ID)
	require.NoError(t, err)
	require.NotNil(t, active)

	_, err = repo.CompleteVisit(ctx, visit.ID, time.Now().UTC())
	require.NoError(t, err)

	open, err = repo.FindOpenByPatientAndDoctor(ctx, patient.ID, doctor.ID)
	require.NoError(t, err)
	assert.Nil(t, open, "completed visit is not open")
}

func TestInMemorySearchFilters(t *testing.T) {
	repo, patient, doctor := newRepoFixture(t)
	ctx := context.Background()

	visit := &Visit{PatientID: patient.ID, DoctorID: doctor.ID}
	require.NoError(t, repo.Create(ctx, visit))

	byID, err := repo.Search(ctx, SearchParams{VisitID: &visit.ID})
	require.NoError(t, err)
	require.Len(t, byID, 1)

	byName, err := repo.Search(ctx, SearchParams{DoctorName: "HOUSE"})
	require.NoError(t, err)
	assert.Len(t, byName, 1, "doctor name match is case-insensitive")

	none, err := repo.Search(ctx, SearchParams{DoctorName: "house", PatientName: "zelda"})
	require.NoError(t, err)
	assert.Empty(t, none, "filters are conjunctive")
}
