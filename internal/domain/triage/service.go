package triage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/carepoint/clinic/pkg/cdss/vitals"
)

const (
	DefaultAlertWindow = 24 * time.Hour
)

// alertPageSize is how many readings ListAlerts fetches per round trip.
var alertPageSize = 500

type Service struct {
	vitals VitalSignsRepository
	clock  func() time.Time
}

func NewService(repo VitalSignsRepository) *Service {
	return &Service{vitals: repo, clock: time.Now}
}

// WithClock replaces the service clock, used for recorded_at defaults and
// alert windows.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

func (s *Service) Now() time.Time { return s.clock() }

func validate(v *VitalSigns) error {
	if v.PatientID == uuid.Nil {
		return fmt.Errorf("%w: patient_id is required", ErrInvalid)
	}
	for name, f := range map[string]*float64{"temperature": v.Temperature, "weight": v.Weight, "height": v.Height} {
		if f != nil && *f < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalid, name)
		}
	}
	for name, n := range map[string]*int{
		"systolic": v.Systolic, "diastolic": v.Diastolic, "heart_rate": v.HeartRate,
		"respiratory_rate": v.RespiratoryRate, "oxygen_saturation": v.OxygenSaturation,
	} {
		if n != nil && *n < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalid, name)
		}
	}
	if v.OxygenSaturation != nil && *v.OxygenSaturation > 100 {
		return fmt.Errorf("%w: oxygen_saturation must be at most 100", ErrInvalid)
	}
	return nil
}

// RecordVitals stores a reading and returns it with its classification.
func (s *Service) RecordVitals(ctx context.Context, v *VitalSigns) (*Assessed, error) {
	if err := validate(v); err != nil {
		return nil, err
	}
	if v.RecordedAt.IsZero() {
		v.RecordedAt = s.clock()
	}
	if err := s.vitals.Create(ctx, v); err != nil {
		return nil, fmt.Errorf("record vital signs: %w", err)
	}
	return &Assessed{VitalSigns: v, Assessment: vitals.Assess(v.Reading())}, nil
}

func (s *Service) GetVitals(ctx context.Context, id uuid.UUID) (*VitalSigns, error) {
	return s.vitals.GetByID(ctx, id)
}

// GetAssessed loads a reading and classifies it.
func (s *Service) GetAssessed(ctx context.Context, id uuid.UUID) (*Assessed, error) {
	v, err := s.vitals.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Assessed{VitalSigns: v, Assessment: vitals.Assess(v.Reading())}, nil
}

func (s *Service) DeleteVitals(ctx context.Context, id uuid.UUID) error {
	return s.vitals.Delete(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Assessed, int, error) {
	items, total, err := s.vitals.ListByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	out := make([]*Assessed, len(items))
	for i, v := range items {
		out[i] = &Assessed{VitalSigns: v, Assessment: vitals.Assess(v.Reading())}
	}
	return out, total, nil
}

// LatestForPatient returns the most recent reading, or ErrNotFound.
func (s *Service) LatestForPatient(ctx context.Context, patientID uuid.UUID) (*VitalSigns, error) {
	items, _, err := s.vitals.ListByPatient(ctx, patientID, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}
	return items[0], nil
}

// ListAlerts returns readings inside window that have at least one
// non-normal vital, ordered worst level first, then by alert count, then
// newest. minLevel filters out anything less severe.
func (s *Service) ListAlerts(ctx context.Context, window time.Duration, minLevel vitals.Level) ([]*Assessed, error) {
	if window <= 0 {
		window = DefaultAlertWindow
	}
	since := s.clock().Add(-window)

	alerts := make([]*Assessed, 0)
	for offset := 0; ; offset += alertPageSize {
		page, err := s.vitals.ListRecent(ctx, since, alertPageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("list recent vital signs: %w", err)
		}
		for _, v := range page {
			a := vitals.Assess(v.Reading())
			if a.AlertCount == 0 || alertLevel(a) < minLevel {
				continue
			}
			alerts = append(alerts, &Assessed{VitalSigns: v, Assessment: a})
		}
		if len(page) < alertPageSize {
			break
		}
	}
	sort.SliceStable(alerts, func(i, j int) bool {
		ai, aj := alerts[i].Assessment, alerts[j].Assessment
		if li, lj := alertLevel(ai), alertLevel(aj); li != lj {
			return li > lj
		}
		if ai.AlertCount != aj.AlertCount {
			return ai.AlertCount > aj.AlertCount
		}
		return alerts[i].RecordedAt.After(alerts[j].RecordedAt)
	})
	return alerts, nil
}

// alertLevel is the worst level among the counted vitals, ignoring BMI.
func alertLevel(a vitals.Assessment) vitals.Level {
	worst := vitals.Normal
	for _, st := range []*vitals.Status{a.Temperature, a.BloodPressure, a.HeartRate} {
		if st != nil {
			worst = worst.Worse(st.Level)
		}
	}
	return worst
}

// Assess classifies a reading without storing it.
func (s *Service) Assess(r vitals.Reading) vitals.Assessment {
	return vitals.Assess(r)
}
