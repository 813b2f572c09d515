package reporting

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type db interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// PostgresRepository computes the aggregate with SQL. All queries run
// inside one read-only transaction so the dashboard numbers describe a
// single snapshot.
type PostgresRepository struct {
	db db
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("reporting: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

// NewPostgresRepositoryWithDB allows injecting a mock database for testing.
func NewPostgresRepositoryWithDB(db db) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Collect runs the dashboard aggregate queries.
func (r *PostgresRepository) Collect(ctx context.Context) (*Stats, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("reporting: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	stats := &Stats{TopDoctors: []DoctorLoad{}}

	visitTotals := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'completed'),
		       COUNT(*) FILTER (WHERE status = 'pending'),
		       COUNT(*) FILTER (WHERE status = 'in-progress'),
		       COALESCE(SUM(total_amount) FILTER (WHERE status = 'completed'), 0)
		FROM visits
	`
	if err := tx.QueryRow(ctx, visitTotals).Scan(
		&stats.TotalVisits,
		&stats.CompletedVisits,
		&stats.PendingVisits,
		&stats.InProgressVisits,
		&stats.TotalRevenue,
	); err != nil {
		return nil, fmt.Errorf("reporting: visit totals: %w", err)
	}
	if stats.CompletedVisits > 0 {
		stats.AverageVisitCost = stats.TotalRevenue / float64(stats.CompletedVisits)
	}

	userTotals := `
		SELECT COUNT(*) FILTER (WHERE role = 'patient'),
		       COUNT(*) FILTER (WHERE role = 'doctor')
		FROM users
	`
	if err := tx.QueryRow(ctx, userTotals).Scan(&stats.TotalPatients, &stats.TotalDoctors); err != nil {
		return nil, fmt.Errorf("reporting: user totals: %w", err)
	}

	topDoctors := `
		SELECT v.doctor_id, d.name, d.email, COUNT(*)
		FROM visits v
		JOIN users d ON d.id = v.doctor_id
		GROUP BY v.doctor_id, d.name, d.email
		ORDER BY COUNT(*) DESC, v.doctor_id
		LIMIT $1
	`
	rows, err := tx.Query(ctx, topDoctors, topDoctorsLimit)
	if err != nil {
		return nil, fmt.Errorf("reporting: top doctors: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var load DoctorLoad
		if err := rows.Scan(&load.DoctorID, &load.Name, &load.Email, &load.VisitCount); err != nil {
			return nil, fmt.Errorf("reporting: scan doctor load: %w", err)
		}
		stats.TopDoctors = append(stats.TopDoctors, load)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reporting: iterate doctor loads: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("reporting: commit tx: %w", err)
	}
	return stats, nil
}
