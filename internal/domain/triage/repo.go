package triage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("vital signs not found")
	ErrInvalid  = errors.New("invalid vital signs")
)

type VitalSignsRepository interface {
	Create(ctx context.Context, v *VitalSigns) error
	GetByID(ctx context.Context, id uuid.UUID) (*VitalSigns, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*VitalSigns, int, error)
	// ListRecent returns a page of readings recorded at or after since,
	// newest first.
	ListRecent(ctx context.Context, since time.Time, limit, offset int) ([]*VitalSigns, error)
}
