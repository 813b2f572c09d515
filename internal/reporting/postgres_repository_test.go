package reporting

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
)

func TestPostgresCollect(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	houseID := uuid.New()
	cuddyID := uuid.New()

	mock.ExpectBeginTx(pgx.TxOptions{AccessMode: pgx.ReadOnly})
	mock.ExpectQuery(`FROM visits`).
		WillReturnRows(pgxmock.NewRows([]string{"total", "completed", "pending", "in_progress", "revenue"}).
			AddRow(int64(5), int64(3), int64(1), int64(1), 150.0))
	mock.ExpectQuery(`FROM users`).
		WillReturnRows(pgxmock.NewRows([]string{"patients", "doctors"}).
			AddRow(int64(2), int64(2)))
	mock.ExpectQuery(`GROUP BY v\.doctor_id`).
		WithArgs(topDoctorsLimit).
		WillReturnRows(pgxmock.NewRows([]string{"doctor_id", "name", "email", "count"}).
			AddRow(houseID, "Gregory House", "house@example.com", int64(3)).
			AddRow(cuddyID, "Lisa Cuddy", "cuddy@example.com", int64(2)))
	mock.ExpectCommit()

	repo := NewPostgresRepositoryWithDB(mock)
	stats, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	if stats.TotalVisits != 5 || stats.CompletedVisits != 3 {
		t.Errorf("visit counts = %+v", stats)
	}
	if stats.AverageVisitCost != 50 {
		t.Errorf("average_visit_cost = %v, want 50", stats.AverageVisitCost)
	}
	if len(stats.TopDoctors) != 2 || stats.TopDoctors[0].Name != "Gregory House" {
		t.Errorf("top doctors = %+v", stats.TopDoctors)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresCollectEmptyTables(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectBeginTx(pgx.TxOptions{AccessMode: pgx.ReadOnly})
	mock.ExpectQuery(`FROM visits`).
		WillReturnRows(pgxmock.NewRows([]string{"total", "completed", "pending", "in_progress", "revenue"}).
			AddRow(int64(0), int64(0), int64(0), int64(0), 0.0))
	mock.ExpectQuery(`FROM users`).
		WillReturnRows(pgxmock.NewRows([]string{"patients", "doctors"}).
			AddRow(int64(0), int64(0)))
	mock.ExpectQuery(`GROUP BY v\.doctor_id`).
		WithArgs(topDoctorsLimit).
		WillReturnRows(pgxmock.NewRows([]string{"doctor_id", "name", "email", "count"}))
	mock.ExpectCommit()

	repo := NewPostgresRepositoryWithDB(mock)
	stats, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if stats.AverageVisitCost != 0 {
		t.Errorf("average_visit_cost = %v, want 0", stats.AverageVisitCost)
	}
	if len(stats.TopDoctors) != 0 {
		t.Errorf("top doctors = %+v, want empty", stats.TopDoctors)
	}
}
