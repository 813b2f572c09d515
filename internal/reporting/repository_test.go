package reporting

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinicops/visitdesk/internal/users"
	"github.com/clinicops/visitdesk/internal/visits"
)

func seedUser(t *testing.T, repo users.Repository, name string, role users.Role) *users.User {
	t.Helper()
	u := &users.User{Name: name, Email: name + "@example.com", Role: role}
	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("seed user %s: %v", name, err)
	}
	return u
}

func seedVisit(t *testing.T, repo visits.Repository, patient, doctor *users.User, status visits.Status, total float64) {
	t.Helper()
	v := &visits.Visit{
		PatientID: patient.ID,
		DoctorID:  doctor.ID,
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}
	if total > 0 {
		v.Treatments = []visits.Treatment{{Name: "Consultation", Cost: total}}
	}
	if err := repo.Create(context.Background(), v); err != nil {
		t.Fatalf("seed visit: %v", err)
	}
}

func TestInMemoryCollect(t *testing.T) {
	userRepo := users.NewInMemoryRepository()
	visitRepo := visits.NewInMemoryRepository(userRepo)
	repo := NewInMemoryRepository(visitRepo, userRepo)

	alice := seedUser(t, userRepo, "alice", users.RolePatient)
	carol := seedUser(t, userRepo, "carol", users.RolePatient)
	house := seedUser(t, userRepo, "house", users.RoleDoctor)
	cuddy := seedUser(t, userRepo, "cuddy", users.RoleDoctor)
	seedUser(t, userRepo, "bob", users.RoleFinance)

	seedVisit(t, visitRepo, alice, house, visits.StatusCompleted, 100)
	seedVisit(t, visitRepo, carol, house, visits.StatusCompleted, 30)
	seedVisit(t, visitRepo, alice, cuddy, visits.StatusCompleted, 20)
	seedVisit(t, visitRepo, carol, cuddy, visits.StatusPending, 0)
	seedVisit(t, visitRepo, alice, house, visits.StatusInProgress, 0)

	stats, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	if stats.TotalVisits != 5 || stats.CompletedVisits != 3 ||
		stats.PendingVisits != 1 || stats.InProgressVisits != 1 {
		t.Errorf("visit counts = %+v", stats)
	}
	if stats.TotalRevenue != 150 {
		t.Errorf("total_revenue = %v, want 150", stats.TotalRevenue)
	}
	if stats.AverageVisitCost != 50 {
		t.Errorf("average_visit_cost = %v, want 50", stats.AverageVisitCost)
	}
	if stats.TotalPatients != 2 || stats.TotalDoctors != 2 {
		t.Errorf("user counts = %+v", stats)
	}

	if len(stats.TopDoctors) != 2 {
		t.Fatalf("top doctors = %d, want 2", len(stats.TopDoctors))
	}
	if stats.TopDoctors[0].DoctorID != house.ID || stats.TopDoctors[0].VisitCount != 3 {
		t.Errorf("top doctor = %+v, want house with 3", stats.TopDoctors[0])
	}
	if stats.TopDoctors[1].DoctorID != cuddy.ID || stats.TopDoctors[1].VisitCount != 2 {
		t.Errorf("second doctor = %+v, want cuddy with 2", stats.TopDoctors[1])
	}
}

func TestInMemoryCollectEmpty(t *testing.T) {
	userRepo := users.NewInMemoryRepository()
	visitRepo := visits.NewInMemoryRepository(userRepo)
	repo := NewInMemoryRepository(visitRepo, userRepo)

	stats, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if stats.TotalVisits != 0 {
		t.Errorf("total_visits = %d, want 0", stats.TotalVisits)
	}
	if stats.AverageVisitCost != 0 {
		t.Errorf("average_visit_cost = %v, want 0 when nothing completed", stats.AverageVisitCost)
	}
	if stats.TopDoctors == nil || len(stats.TopDoctors) != 0 {
		t.Errorf("top_doctors = %#v, want empty slice", stats.TopDoctors)
	}
}

func TestInMemoryCollectTopDoctorsCapped(t *testing.T) {
	userRepo := users.NewInMemoryRepository()
	visitRepo := visits.NewInMemoryRepository(userRepo)
	repo := NewInMemoryRepository(visitRepo, userRepo)

	patient := seedUser(t, userRepo, "alice", users.RolePatient)
	var doctors []*users.User
	for i := 0; i < 7; i++ {
		doctors = append(doctors, seedUser(t, userRepo, "doc-"+uuid.NewString(), users.RoleDoctor))
	}
	for i, d := range doctors {
		for j := 0; j <= i; j++ {
			seedVisit(t, visitRepo, patient, d, visits.StatusCompleted, 10)
		}
	}

	stats, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(stats.TopDoctors) != topDoctorsLimit {
		t.Fatalf("top doctors = %d, want %d", len(stats.TopDoctors), topDoctorsLimit)
	}
	if stats.TopDoctors[0].VisitCount != 7 {
		t.Errorf("busiest doctor count = %d, want 7", stats.TopDoctors[0].VisitCount)
	}
	for i := 1; i < len(stats.TopDoctors); i++ {
		if stats.TopDoctors[i].VisitCount > stats.TopDoctors[i-1].VisitCount {
			t.Errorf("ranking not descending at %d: %+v", i, stats.TopDoctors)
		}
	}
}
