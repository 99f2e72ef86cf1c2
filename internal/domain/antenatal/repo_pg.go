package antenatal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carepoint/clinic/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func connFor(ctx context.Context, pool *pgxpool.Pool) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
}

func deleted(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// =========== Enrollment Repository ===========

type enrollmentRepoPG struct{ pool *pgxpool.Pool }

func NewEnrollmentRepoPG(pool *pgxpool.Pool) EnrollmentRepository {
	return &enrollmentRepoPG{pool: pool}
}

func (r *enrollmentRepoPG) conn(ctx context.Context) queryable { return connFor(ctx, r.pool) }

const enrollmentCols = `id, patient_id, status, lmp, edd, gravida, para,
	blood_group, genotype, hiv_status, note, created_at, updated_at`

func scanEnrollment(row pgx.Row) (*Enrollment, error) {
	var e Enrollment
	err := row.Scan(&e.ID, &e.PatientID, &e.Status, &e.LMP, &e.EDD, &e.Gravida, &e.Para,
		&e.BloodGroup, &e.Genotype, &e.HIVStatus, &e.Note, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &e, err
}

func (r *enrollmentRepoPG) Create(ctx context.Context, e *Enrollment) error {
	e.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO anc_enrollment (id, patient_id, status, lmp, edd, gravida, para,
			blood_group, genotype, hiv_status, note)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at, updated_at`,
		e.ID, e.PatientID, e.Status, e.LMP, e.EDD, e.Gravida, e.Para,
		e.BloodGroup, e.Genotype, e.HIVStatus, e.Note,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
}

func (r *enrollmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Enrollment, error) {
	return scanEnrollment(r.conn(ctx).QueryRow(ctx, `SELECT `+enrollmentCols+` FROM anc_enrollment WHERE id = $1`, id))
}

func (r *enrollmentRepoPG) Update(ctx context.Context, e *Enrollment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE anc_enrollment SET status=$2, lmp=$3, edd=$4, gravida=$5, para=$6,
			blood_group=$7, genotype=$8, hiv_status=$9, note=$10, updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		e.ID, e.Status, e.LMP, e.EDD, e.Gravida, e.Para,
		e.BloodGroup, e.Genotype, e.HIVStatus, e.Note,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *enrollmentRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	return deleted(r.conn(ctx).Exec(ctx, `DELETE FROM anc_enrollment WHERE id = $1`, id))
}

func (r *enrollmentRepoPG) List(ctx context.Context, limit, offset int) ([]*Enrollment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM anc_enrollment`).Scan(&total); err != nil {
		return nil, 0, err
	}
	items, err := r.list(ctx, `SELECT `+enrollmentCols+` FROM anc_enrollment
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	return items, total, err
}

func (r *enrollmentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Enrollment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM anc_enrollment WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	items, err := r.list(ctx, `SELECT `+enrollmentCols+` FROM anc_enrollment WHERE patient_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	return items, total, err
}

func (r *enrollmentRepoPG) list(ctx context.Context, sql string, args ...interface{}) ([]*Enrollment, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

// =========== Visit Repository ===========

type visitRepoPG struct{ pool *pgxpool.Pool }

func NewVisitRepoPG(pool *pgxpool.Pool) VisitRepository {
	return &visitRepoPG{pool: pool}
}

func (r *visitRepoPG) conn(ctx context.Context) queryable { return connFor(ctx, r.pool) }

const visitCols = `id, enrollment_id, visit_date, gestational_weeks, gestational_days,
	weight, systolic, diastolic, fetal_heart_rate, fundal_height, fetal_presentation,
	recorded_by, note, created_at, updated_at`

func scanVisit(row pgx.Row) (*Visit, error) {
	var v Visit
	err := row.Scan(&v.ID, &v.EnrollmentID, &v.VisitDate, &v.GestationalWeeks, &v.GestationalDays,
		&v.Weight, &v.Systolic, &v.Diastolic, &v.FetalHeartRate, &v.FundalHeight, &v.FetalPresentation,
		&v.RecordedBy, &v.Note, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &v, err
}

func (r *visitRepoPG) Create(ctx context.Context, v *Visit) error {
	v.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO anc_visit (id, enrollment_id, visit_date, gestational_weeks, gestational_days,
			weight, systolic, diastolic, fetal_heart_rate, fundal_height, fetal_presentation,
			recorded_by, note)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at, updated_at`,
		v.ID, v.EnrollmentID, v.VisitDate, v.GestationalWeeks, v.GestationalDays,
		v.Weight, v.Systolic, v.Diastolic, v.FetalHeartRate, v.FundalHeight, v.FetalPresentation,
		v.RecordedBy, v.Note,
	).Scan(&v.CreatedAt, &v.UpdatedAt)
}

func (r *visitRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Visit, error) {
	return scanVisit(r.conn(ctx).QueryRow(ctx, `SELECT `+visitCols+` FROM anc_visit WHERE id = $1`, id))
}

func (r *visitRepoPG) Update(ctx context.Context, v *Visit) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE anc_visit SET visit_date=$2, gestational_weeks=$3, gestational_days=$4,
			weight=$5, systolic=$6, diastolic=$7, fetal_heart_rate=$8, fundal_height=$9,
			fetal_presentation=$10, note=$11, updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		v.ID, v.VisitDate, v.GestationalWeeks, v.GestationalDays,
		v.Weight, v.Systolic, v.Diastolic, v.FetalHeartRate, v.FundalHeight,
		v.FetalPresentation, v.Note,
	).Scan(&v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *visitRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	return deleted(r.conn(ctx).Exec(ctx, `DELETE FROM anc_visit WHERE id = $1`, id))
}

func (r *visitRepoPG) ListByEnrollment(ctx context.Context, enrollmentID uuid.UUID, limit, offset int) ([]*Visit, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM anc_visit WHERE enrollment_id = $1`, enrollmentID).Scan(&total); err != nil {
		return nil, 0, err
	}
	items, err := r.list(ctx, `SELECT `+visitCols+` FROM anc_visit WHERE enrollment_id = $1
		ORDER BY visit_date DESC, created_at DESC LIMIT $2 OFFSET $3`, enrollmentID, limit, offset)
	return items, total, err
}

func (r *visitRepoPG) History(ctx context.Context, enrollmentID uuid.UUID) ([]*Visit, error) {
	return r.list(ctx, `SELECT `+visitCols+` FROM anc_visit WHERE enrollment_id = $1
		ORDER BY visit_date, created_at`, enrollmentID)
}

func (r *visitRepoPG) list(ctx context.Context, sql string, args ...interface{}) ([]*Visit, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan visit: %w", err)
		}
		items = append(items, v)
	}
	return items, rows.Err()
}

// =========== Patient Directory ===========

type patientDirectoryPG struct{ pool *pgxpool.Pool }

func NewPatientDirectoryPG(pool *pgxpool.Pool) PatientDirectory {
	return &patientDirectoryPG{pool: pool}
}

func (r *patientDirectoryPG) BirthDate(ctx context.Context, patientID uuid.UUID) (*time.Time, error) {
	var dob *time.Time
	err := connFor(ctx, r.pool).QueryRow(ctx, `SELECT birth_date FROM patient WHERE id = $1`, patientID).Scan(&dob)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return dob, err
}
