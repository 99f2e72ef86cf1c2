package antenatal

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("antenatal record not found")
	ErrInvalid  = errors.New("invalid antenatal record")
)

type EnrollmentRepository interface {
	Create(ctx context.Context, e *Enrollment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Enrollment, error)
	Update(ctx context.Context, e *Enrollment) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Enrollment, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Enrollment, int, error)
}

type VisitRepository interface {
	Create(ctx context.Context, v *Visit) error
	GetByID(ctx context.Context, id uuid.UUID) (*Visit, error)
	Update(ctx context.Context, v *Visit) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListByEnrollment returns visits newest first.
	ListByEnrollment(ctx context.Context, enrollmentID uuid.UUID, limit, offset int) ([]*Visit, int, error)
	// History returns every visit of an enrollment in visit order.
	History(ctx context.Context, enrollmentID uuid.UUID) ([]*Visit, error)
}

// PatientDirectory resolves demographics owned by the patient registry.
type PatientDirectory interface {
	// BirthDate returns nil when the patient or the date is unknown.
	BirthDate(ctx context.Context, patientID uuid.UUID) (*time.Time, error)
}
