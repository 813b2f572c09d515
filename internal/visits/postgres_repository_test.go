package visits

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
)

var visitColumns = []string{
	"id", "patient_id", "doctor_id", "status", "total_amount",
	"medical_notes", "created_at", "completed_at",
	"p_name", "p_email", "d_name", "d_email",
}

var treatmentColumns = []string{"visit_id", "name", "cost", "notes"}

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func visitRow(id uuid.UUID, status Status, total float64) *pgxmock.Rows {
	return pgxmock.NewRows(visitColumns).AddRow(
		id, uuid.New(), uuid.New(), status, total,
		"", time.Now().UTC(), nil,
		"Alice Archer", "alice@example.com", "Gregory House", "house@example.com",
	)
}

func TestPostgresStartVisitConditional(t *testing.T) {
	mock := newMockPool(t)
	repo := NewPostgresRepositoryWithDB(mock)
	id := uuid.New()

	mock.ExpectExec(`UPDATE visits SET status = 'in-progress' WHERE id = \$1 AND status = 'pending'`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	started, err := repo.StartVisit(context.Background(), id)
	if err != nil {
		t.Fatalf("StartVisit failed: %v", err)
	}
	if !started {
		t.Error("expected start to be applied")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresStartVisitLosesRace(t *testing.T) {
	mock := newMockPool(t)
	repo := NewPostgresRepositoryWithDB(mock)
	id := uuid.New()

	mock.ExpectExec(`UPDATE visits SET status = 'in-progress'`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	started, err := repo.StartVisit(context.Background(), id)
	if err != nil {
		t.Fatalf("StartVisit failed: %v", err)
	}
	if started {
		t.Error("expected start to report no transition when the row already moved")
	}
}

func TestPostgresCompleteVisitOnlyOnce(t *testing.T) {
	mock := newMockPool(t)
	repo := NewPostgresRepositoryWithDB(mock)
	id := uuid.New()
	at := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE visits SET status = 'completed', completed_at = \$2 WHERE id = \$1 AND status <> 'completed'`).
		WithArgs(id, at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE visits SET status = 'completed'`).
		WithArgs(id, at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	completed, err := repo.CompleteVisit(context.Background(), id, at)
	if err != nil || !completed {
		t.Fatalf("first complete = (%v, %v), want (true, nil)", completed, err)
	}
	completed, err = repo.CompleteVisit(context.Background(), id, at)
	if err != nil {
		t.Fatalf("second complete failed: %v", err)
	}
	if completed {
		t.Error("second complete reported a transition")
	}
}

func TestPostgresAddTreatmentTransaction(t *testing.T) {
	mock := newMockPool(t)
	repo := NewPostgresRepositoryWithDB(mock)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status FROM visits WHERE id = \$1 FOR UPDATE`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow(StatusInProgress))
	mock.ExpectExec(`INSERT INTO treatments`).
		WithArgs(id, "X-Ray", 80.0, "left wrist").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE visits SET total_amount =`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	mock.ExpectQuery(`SELECT v\.id, v\.patient_id`).
		WithArgs(id).
		WillReturnRows(visitRow(id, StatusInProgress, 80))
	mock.ExpectQuery(`SELECT visit_id, name, cost, notes FROM treatments`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(treatmentColumns).AddRow(id, "X-Ray", 80.0, "left wrist"))

	visit, err := repo.AddTreatment(context.Background(), id, Treatment{Name: "X-Ray", Cost: 80, Notes: "left wrist"})
	if err != nil {
		t.Fatalf("AddTreatment failed: %v", err)
	}
	if visit.TotalAmount != 80 {
		t.Errorf("total_amount = %v, want 80", visit.TotalAmount)
	}
	if len(visit.Treatments) != 1 || visit.Treatments[0].Name != "X-Ray" {
		t.Errorf("treatments = %+v", visit.Treatments)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresAddTreatmentCompletedRollsBack(t *testing.T) {
	mock := newMockPool(t)
	repo := NewPostgresRepositoryWithDB(mock)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status FROM visits WHERE id = \$1 FOR UPDATE`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow(StatusCompleted))
	mock.ExpectRollback()

	if _, err := repo.AddTreatment(context.Background(), id, Treatment{Name: "X-Ray", Cost: 80}); !errors.Is(err, ErrVisitCompleted) {
		t.Fatalf("expected ErrVisitCompleted, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresGetByIDNotFound(t *testing.T) {
	mock := newMockPool(t)
	repo := NewPostgresRepositoryWithDB(mock)
	id := uuid.New()

	mock.ExpectQuery(`SELECT v\.id, v\.patient_id`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(visitColumns))

	if _, err := repo.GetByID(context.Background(), id); !errors.Is(err, ErrVisitNotFound) {
		t.Fatalf("expected ErrVisitNotFound, got %v", err)
	}
}

func TestPostgresGetActiveByDoctorNilWhenIdle(t *testing.T) {
	mock := newMockPool(t)
	repo := NewPostgresRepositoryWithDB(mock)
	doctorID := uuid.New()

	mock.ExpectQuery(`WHERE v\.doctor_id = \$1 AND v\.status = 'in-progress'`).
		WithArgs(doctorID).
		WillReturnRows(pgxmock.NewRows(visitColumns))

	visit, err := repo.GetActiveByDoctor(context.Background(), doctorID)
	if err != nil {
		t.Fatalf("GetActiveByDoctor failed: %v", err)
	}
	if visit != nil {
		t.Errorf("visit = %+v, want nil", visit)
	}
}

func TestPostgresUpdateMedicalNotesFrozenWhenCompleted(t *testing.T) {
	mock := newMockPool(t)
	repo := NewPostgresRepositoryWithDB(mock)
	id := uuid.New()

	mock.ExpectExec(`UPDATE visits SET medical_notes = \$2 WHERE id = \$1 AND status <> 'completed'`).
		WithArgs(id, "late edit").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT status FROM visits WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow(StatusCompleted))

	if _, err := repo.UpdateMedicalNotes(context.Background(), id, "late edit"); !errors.Is(err, ErrVisitCompleted) {
		t.Fatalf("expected ErrVisitCompleted, got %v", err)
	}
}

func TestPostgresSearchBindsFilters(t *testing.T) {
	mock := newMockPool(t)
	repo := NewPostgresRepositoryWithDB(mock)
	id := uuid.New()

	mock.ExpectQuery(`ILIKE`).
		WithArgs((*uuid.UUID)(nil), "house", "").
		WillReturnRows(visitRow(id, StatusPending, 0))
	mock.ExpectQuery(`SELECT visit_id, name, cost, notes FROM treatments`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(treatmentColumns))

	visits, err := repo.Search(context.Background(), SearchParams{DoctorName: "house"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(visits) != 1 || visits[0].ID != id {
		t.Fatalf("visits = %+v", visits)
	}
	if visits[0].Doctor == nil || visits[0].Doctor.Name != "Gregory House" {
		t.Errorf("doctor ref = %+v", visits[0].Doctor)
	}
}
