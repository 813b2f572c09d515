package visits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type db interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores visits in the relational database.
type PostgresRepository struct {
	db db
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("visits: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

// NewPostgresRepositoryWithDB allows injecting a mock database for testing.
func NewPostgresRepositoryWithDB(db db) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const visitSelect = `
	SELECT v.id, v.patient_id, v.doctor_id, v.status, v.total_amount,
	       v.medical_notes, v.created_at, v.completed_at,
	       p.name, p.email, d.name, d.email
	FROM visits v
	JOIN users p ON p.id = v.patient_id
	JOIN users d ON d.id = v.doctor_id
`

// Create inserts a new pending visit row.
func (r *PostgresRepository) Create(ctx context.Context, visit *Visit) error {
	if visit.ID == uuid.Nil {
		visit.ID = uuid.New()
	}
	if visit.Status == "" {
		visit.Status = StatusPending
	}
	query := `
		INSERT INTO visits (id, patient_id, doctor_id, status, total_amount, medical_notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	if err := r.db.QueryRow(ctx, query,
		visit.ID,
		visit.PatientID,
		visit.DoctorID,
		visit.Status,
		TotalOf(visit.Treatments),
		visit.MedicalNotes,
	).Scan(&visit.CreatedAt); err != nil {
		return fmt.Errorf("visits: insert failed: %w", err)
	}
	return nil
}

// GetByID fetches a visit with refs and treatments expanded.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Visit, error) {
	row := r.db.QueryRow(ctx, visitSelect+` WHERE v.id = $1`, id)
	visit, err := scanVisit(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVisitNotFound
		}
		return nil, fmt.Errorf("visits: select failed: %w", err)
	}
	if err := r.loadTreatments(ctx, []*Visit{visit}); err != nil {
		return nil, err
	}
	return visit, nil
}

// ListByPatient returns the patient's visits, newest first.
func (r *PostgresRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Visit, error) {
	return r.list(ctx,
		visitSelect+` WHERE v.patient_id = $1 ORDER BY v.created_at DESC, v.id DESC`,
		patientID)
}

// ListPendingByDoctor returns the doctor's pending queue, oldest first.
func (r *PostgresRepository) ListPendingByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Visit, error) {
	return r.list(ctx,
		visitSelect+` WHERE v.doctor_id = $1 AND v.status = 'pending' ORDER BY v.created_at, v.id`,
		doctorID)
}

// GetActiveByDoctor returns the doctor's in-progress visit, or nil.
func (r *PostgresRepository) GetActiveByDoctor(ctx context.Context, doctorID uuid.UUID) (*Visit, error) {
	return r.one(ctx,
		visitSelect+` WHERE v.doctor_id = $1 AND v.status = 'in-progress' LIMIT 1`,
		doctorID)
}

// GetActiveByPatient returns the patient's in-progress visit, or nil.
func (r *PostgresRepository) GetActiveByPatient(ctx context.Context, patientID uuid.UUID) (*Visit, error) {
	return r.one(ctx,
		visitSelect+` WHERE v.patient_id = $1 AND v.status = 'in-progress' LIMIT 1`,
		patientID)
}

// FindOpenByPatientAndDoctor returns a pending or in-progress visit for
// the pair, or nil.
func (r *PostgresRepository) FindOpenByPatientAndDoctor(ctx context.Context, patientID, doctorID uuid.UUID) (*Visit, error) {
	return r.one(ctx,
		visitSelect+` WHERE v.patient_id = $1 AND v.doctor_id = $2 AND v.status IN ('pending', 'in-progress') LIMIT 1`,
		patientID, doctorID)
}

// ListAll returns every visit, newest first.
func (r *PostgresRepository) ListAll(ctx context.Context) ([]*Visit, error) {
	return r.list(ctx, visitSelect+` ORDER BY v.created_at DESC, v.id DESC`)
}

// Search applies the exact-id filter then case-insensitive substring
// filters on the resolved display names.
func (r *PostgresRepository) Search(ctx context.Context, params SearchParams) ([]*Visit, error) {
	query := visitSelect + `
		WHERE ($1::uuid IS NULL OR v.id = $1)
		  AND ($2::text = '' OR d.name ILIKE '%' || $2 || '%')
		  AND ($3::text = '' OR p.name ILIKE '%' || $3 || '%')
		ORDER BY v.created_at DESC, v.id DESC
	`
	return r.list(ctx, query, params.VisitID, params.DoctorName, params.PatientName)
}

// StartVisit flips pending -> in-progress only when still pending.
func (r *PostgresRepository) StartVisit(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE visits SET status = 'in-progress' WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return false, fmt.Errorf("visits: start failed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// CompleteVisit stamps completed_at exactly once.
func (r *PostgresRepository) CompleteVisit(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE visits SET status = 'completed', completed_at = $2 WHERE id = $1 AND status <> 'completed'`,
		id, at.UTC())
	if err != nil {
		return false, fmt.Errorf("visits: complete failed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// AddTreatment appends a treatment and recomputes total_amount from the
// treatment rows inside one transaction.
func (r *PostgresRepository) AddTreatment(ctx context.Context, id uuid.UUID, treatment Treatment) (*Visit, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("visits: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var status Status
	if err := tx.QueryRow(ctx,
		`SELECT status FROM visits WHERE id = $1 FOR UPDATE`, id).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVisitNotFound
		}
		return nil, fmt.Errorf("visits: lock row: %w", err)
	}
	if status == StatusCompleted {
		return nil, ErrVisitCompleted
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO treatments (visit_id, name, cost, notes) VALUES ($1, $2, $3, $4)`,
		id, treatment.Name, treatment.Cost, treatment.Notes); err != nil {
		return nil, fmt.Errorf("visits: insert treatment: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE visits SET total_amount = (SELECT COALESCE(SUM(cost), 0) FROM treatments WHERE visit_id = $1) WHERE id = $1`,
		id); err != nil {
		return nil, fmt.Errorf("visits: recompute total: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("visits: commit tx: %w", err)
	}
	return r.GetByID(ctx, id)
}

// UpdateMedicalNotes replaces the notes unless the visit is completed.
func (r *PostgresRepository) UpdateMedicalNotes(ctx context.Context, id uuid.UUID, notes string) (*Visit, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE visits SET medical_notes = $2 WHERE id = $1 AND status <> 'completed'`,
		id, notes)
	if err != nil {
		return nil, fmt.Errorf("visits: update notes: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// distinguish missing row from frozen completed visit
		var status Status
		if err := r.db.QueryRow(ctx, `SELECT status FROM visits WHERE id = $1`, id).Scan(&status); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrVisitNotFound
			}
			return nil, fmt.Errorf("visits: check status: %w", err)
		}
		return nil, ErrVisitCompleted
	}
	return r.GetByID(ctx, id)
}

func (r *PostgresRepository) one(ctx context.Context, query string, args ...any) (*Visit, error) {
	row := r.db.QueryRow(ctx, query, args...)
	visit, err := scanVisit(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("visits: select failed: %w", err)
	}
	if err := r.loadTreatments(ctx, []*Visit{visit}); err != nil {
		return nil, err
	}
	return visit, nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*Visit, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("visits: query failed: %w", err)
	}
	defer rows.Close()

	var result []*Visit
	for rows.Next() {
		visit, err := scanVisit(rows)
		if err != nil {
			return nil, fmt.Errorf("visits: scan row: %w", err)
		}
		result = append(result, visit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("visits: iterate rows: %w", err)
	}
	if err := r.loadTreatments(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) loadTreatments(ctx context.Context, result []*Visit) error {
	if len(result) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*Visit, len(result))
	ids := make([]uuid.UUID, 0, len(result))
	for _, v := range result {
		v.Treatments = []Treatment{}
		byID[v.ID] = v
		ids = append(ids, v.ID)
	}

	rows, err := r.db.Query(ctx,
		`SELECT visit_id, name, cost, notes FROM treatments WHERE visit_id = ANY($1) ORDER BY seq`,
		ids)
	if err != nil {
		return fmt.Errorf("visits: query treatments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var visitID uuid.UUID
		var t Treatment
		if err := rows.Scan(&visitID, &t.Name, &t.Cost, &t.Notes); err != nil {
			return fmt.Errorf("visits: scan treatment: %w", err)
		}
		if v, ok := byID[visitID]; ok {
			v.Treatments = append(v.Treatments, t)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("visits: iterate treatments: %w", err)
	}
	return nil
}

func scanVisit(row pgx.Row) (*Visit, error) {
	var visit Visit
	var patient, doctor PersonRef
	if err := row.Scan(
		&visit.ID,
		&visit.PatientID,
		&visit.DoctorID,
		&visit.Status,
		&visit.TotalAmount,
		&visit.MedicalNotes,
		&visit.CreatedAt,
		&visit.CompletedAt,
		&patient.Name,
		&patient.Email,
		&doctor.Name,
		&doctor.Email,
	); err != nil {
		return nil, err
	}
	patient.ID = visit.PatientID
	doctor.ID = visit.DoctorID
	visit.Patient = &patient
	visit.Doctor = &doctor
	return &visit, nil
}
