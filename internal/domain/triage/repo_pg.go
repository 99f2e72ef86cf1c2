package triage

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

type vitalSignsRepoPG struct{ pool *pgxpool.Pool }

func NewVitalSignsRepoPG(pool *pgxpool.Pool) VitalSignsRepository {
	return &vitalSignsRepoPG{pool: pool}
}

func (r *vitalSignsRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const vitalCols = `id, patient_id, appointment_id, recorded_by, recorded_at,
	temperature, systolic, diastolic, heart_rate, respiratory_rate, oxygen_saturation,
	weight, height, note, created_at`

func scanVitals(row pgx.Row) (*VitalSigns, error) {
	var v VitalSigns
	err := row.Scan(&v.ID, &v.PatientID, &v.AppointmentID, &v.RecordedBy, &v.RecordedAt,
		&v.Temperature, &v.Systolic, &v.Diastolic, &v.HeartRate, &v.RespiratoryRate, &v.OxygenSaturation,
		&v.Weight, &v.Height, &v.Note, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &v, err
}

func (r *vitalSignsRepoPG) Create(ctx context.Context, v *VitalSigns) error {
	v.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO vital_signs (id, patient_id, appointment_id, recorded_by, recorded_at,
			temperature, systolic, diastolic, heart_rate, respiratory_rate, oxygen_saturation,
			weight, height, note)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING created_at`,
		v.ID, v.PatientID, v.AppointmentID, v.RecordedBy, v.RecordedAt,
		v.Temperature, v.Systolic, v.Diastolic, v.HeartRate, v.RespiratoryRate, v.OxygenSaturation,
		v.Weight, v.Height, v.Note,
	).Scan(&v.CreatedAt)
}

func (r *vitalSignsRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*VitalSigns, error) {
	return scanVitals(r.conn(ctx).QueryRow(ctx, `SELECT `+vitalCols+` FROM vital_signs WHERE id = $1`, id))
}

func (r *vitalSignsRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM vital_signs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *vitalSignsRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*VitalSigns, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM vital_signs WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	items, err := r.list(ctx, `SELECT `+vitalCols+` FROM vital_signs WHERE patient_id = $1
		ORDER BY recorded_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	return items, total, err
}

func (r *vitalSignsRepoPG) ListRecent(ctx context.Context, since time.Time, limit, offset int) ([]*VitalSigns, error) {
	return r.list(ctx, `SELECT `+vitalCols+` FROM vital_signs WHERE recorded_at >= $1
		ORDER BY recorded_at DESC, id LIMIT $2 OFFSET $3`, since, limit, offset)
}

func (r *vitalSignsRepoPG) list(ctx context.Context, sql string, args ...interface{}) ([]*VitalSigns, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*VitalSigns
	for rows.Next() {
		v, err := scanVitals(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vital signs: %w", err)
		}
		items = append(items, v)
	}
	return items, rows.Err()
}
