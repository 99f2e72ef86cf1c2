package antenatal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carepoint/clinic/pkg/cdss/obstetric"
	"github.com/carepoint/clinic/pkg/cdss/risk"
)

var validStatuses = map[string]bool{
	StatusActive: true, StatusDelivered: true, StatusTransferred: true, StatusClosed: true,
}

type Service struct {
	enrollments EnrollmentRepository
	visits      VisitRepository
	patients    PatientDirectory
	clock       func() time.Time
}

func NewService(enrollments EnrollmentRepository, visits VisitRepository, patients PatientDirectory) *Service {
	return &Service{
		enrollments: enrollments,
		visits:      visits,
		patients:    patients,
		clock:       time.Now,
	}
}

// WithClock replaces the service clock, used for visit date defaults and as
// the reference date when none is given.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

func (s *Service) Now() time.Time { return s.clock() }

func (s *Service) asOf(ref time.Time) time.Time {
	if ref.IsZero() {
		return s.clock()
	}
	return ref
}

// -- Enrollment --

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func vocabulary(field string, v *string, ok func(string) bool) error {
	if v != nil && !ok(*v) {
		return invalid("unknown %s %q", field, *v)
	}
	return nil
}

func (s *Service) validateEnrollment(e *Enrollment) error {
	if e.PatientID == uuid.Nil {
		return invalid("patient_id is required")
	}
	if !validStatuses[e.Status] {
		return invalid("invalid enrollment status: %s", e.Status)
	}
	if e.LMP.IsZero() {
		return invalid("lmp is required")
	}
	if obstetric.DaysBetween(s.clock(), e.LMP) > 0 {
		return invalid("lmp must not be in the future")
	}
	if e.Gravida < 1 {
		return invalid("gravida must be at least 1")
	}
	if e.Para < 0 {
		return invalid("para must not be negative")
	}
	if err := vocabulary("blood_group", e.BloodGroup, obstetric.IsBloodGroup); err != nil {
		return err
	}
	if err := vocabulary("genotype", e.Genotype, obstetric.IsGenotype); err != nil {
		return err
	}
	return vocabulary("hiv_status", e.HIVStatus, obstetric.IsHIVStatus)
}

// derive normalizes the LMP to a calendar date and sets the EDD from it.
func derive(e *Enrollment) {
	p := obstetric.NewPregnancy(e.LMP, e.Gravida, e.Para)
	e.LMP, e.EDD = p.LMP, p.EDD
}

func (s *Service) Enroll(ctx context.Context, e *Enrollment) error {
	if e.Status == "" {
		e.Status = StatusActive
	}
	if err := s.validateEnrollment(e); err != nil {
		return err
	}
	derive(e)
	if err := s.enrollments.Create(ctx, e); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

func (s *Service) GetEnrollment(ctx context.Context, id uuid.UUID) (*Enrollment, error) {
	return s.enrollments.GetByID(ctx, id)
}

// UpdateEnrollment replaces the editable fields of an enrollment. The patient
// cannot change, and the EDD follows the LMP. A new LMP re-dates every
// recorded visit; it is rejected when a visit would fall before it.
func (s *Service) UpdateEnrollment(ctx context.Context, e *Enrollment) error {
	existing, err := s.enrollments.GetByID(ctx, e.ID)
	if err != nil {
		return err
	}
	e.PatientID = existing.PatientID
	if e.Status == "" {
		e.Status = existing.Status
	}
	if e.LMP.IsZero() {
		e.LMP = existing.LMP
	}
	if err := s.validateEnrollment(e); err != nil {
		return err
	}
	derive(e)

	var redate []*Visit
	if !e.LMP.Equal(existing.LMP) {
		history, err := s.visits.History(ctx, e.ID)
		if err != nil {
			return fmt.Errorf("visit history: %w", err)
		}
		for _, v := range history {
			if obstetric.DaysBetween(e.LMP, v.VisitDate) < 0 {
				return invalid("lmp %s is after the visit on %s",
					e.LMP.Format(dateLayout), v.VisitDate.Format(dateLayout))
			}
		}
		redate = history
	}

	if err := s.enrollments.Update(ctx, e); err != nil {
		return err
	}
	for _, v := range redate {
		ga := obstetric.GestationalAgeAt(e.LMP, v.VisitDate)
		v.GestationalWeeks, v.GestationalDays = ga.Weeks, ga.Days
		if err := s.visits.Update(ctx, v); err != nil {
			return fmt.Errorf("re-date visit %s: %w", v.ID, err)
		}
	}
	return nil
}

func (s *Service) DeleteEnrollment(ctx context.Context, id uuid.UUID) error {
	return s.enrollments.Delete(ctx, id)
}

func (s *Service) ListEnrollments(ctx context.Context, limit, offset int) ([]*Enrollment, int, error) {
	return s.enrollments.List(ctx, limit, offset)
}

func (s *Service) ListEnrollmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Enrollment, int, error) {
	return s.enrollments.ListByPatient(ctx, patientID, limit, offset)
}

// ActiveEnrollment returns the newest active enrollment of a patient.
func (s *Service) ActiveEnrollment(ctx context.Context, patientID uuid.UUID) (*Enrollment, error) {
	items, _, err := s.enrollments.ListByPatient(ctx, patientID, 50, 0)
	if err != nil {
		return nil, err
	}
	for _, e := range items {
		if e.Status == StatusActive {
			return e, nil
		}
	}
	return nil, ErrNotFound
}

// -- Visit --

func (s *Service) validateVisit(v *Visit, e *Enrollment) error {
	if obstetric.DaysBetween(e.LMP, v.VisitDate) < 0 {
		return invalid("visit_date precedes the enrollment lmp")
	}
	if err := vocabulary("fetal_presentation", v.FetalPresentation, obstetric.IsFetalPresentation); err != nil {
		return err
	}
	for name, f := range map[string]*float64{"weight": v.Weight, "fundal_height": v.FundalHeight} {
		if f != nil && *f < 0 {
			return invalid("%s must not be negative", name)
		}
	}
	for name, n := range map[string]*int{"systolic": v.Systolic, "diastolic": v.Diastolic, "fetal_heart_rate": v.FetalHeartRate} {
		if n != nil && *n < 0 {
			return invalid("%s must not be negative", name)
		}
	}
	return nil
}

// RecordVisit stores a visit against an enrollment, deriving the gestational
// age at the visit date.
func (s *Service) RecordVisit(ctx context.Context, v *Visit) (*AssessedVisit, error) {
	if v.EnrollmentID == uuid.Nil {
		return nil, invalid("enrollment_id is required")
	}
	e, err := s.enrollments.GetByID(ctx, v.EnrollmentID)
	if err != nil {
		return nil, err
	}
	if v.VisitDate.IsZero() {
		v.VisitDate = s.clock()
	}
	if err := s.validateVisit(v, e); err != nil {
		return nil, err
	}
	ga := obstetric.GestationalAgeAt(e.LMP, v.VisitDate)
	v.GestationalWeeks, v.GestationalDays = ga.Weeks, ga.Days
	if err := s.visits.Create(ctx, v); err != nil {
		return nil, fmt.Errorf("create visit: %w", err)
	}
	return assessed(v), nil
}

func (s *Service) GetVisit(ctx context.Context, id uuid.UUID) (*AssessedVisit, error) {
	v, err := s.visits.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return assessed(v), nil
}

func (s *Service) DeleteVisit(ctx context.Context, id uuid.UUID) error {
	return s.visits.Delete(ctx, id)
}

func (s *Service) ListVisits(ctx context.Context, enrollmentID uuid.UUID, limit, offset int) ([]*AssessedVisit, int, error) {
	if _, err := s.enrollments.GetByID(ctx, enrollmentID); err != nil {
		return nil, 0, err
	}
	items, total, err := s.visits.ListByEnrollment(ctx, enrollmentID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	out := make([]*AssessedVisit, len(items))
	for i, v := range items {
		out[i] = assessed(v)
	}
	return out, total, nil
}

// -- Derived views --

func (s *Service) riskFactors(ctx context.Context, e *Enrollment, ref time.Time) ([]risk.Factor, []*Visit, error) {
	dob, err := s.patients.BirthDate(ctx, e.PatientID)
	if err != nil {
		return nil, nil, fmt.Errorf("patient birth date: %w", err)
	}
	all, err := s.visits.History(ctx, e.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("visit history: %w", err)
	}
	// Visits after ref had not happened yet on ref.
	history := make([]*Visit, 0, len(all))
	bps := make([]risk.BPVisit, 0, len(all))
	for _, v := range all {
		if obstetric.DaysBetween(v.VisitDate, ref) < 0 {
			continue
		}
		history = append(history, v)
		bps = append(bps, v.bp())
	}
	return risk.HighRiskFactors(dob, e.Gravida, bps, ref), history, nil
}

// RiskFactors evaluates the high-risk factors of an enrollment on ref, or
// today when ref is zero.
func (s *Service) RiskFactors(ctx context.Context, id uuid.UUID, ref time.Time) ([]risk.Factor, error) {
	e, err := s.enrollments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	factors, _, err := s.riskFactors(ctx, e, s.asOf(ref))
	return factors, err
}

// Summary builds the dating, risk and latest-visit view of an enrollment on
// ref, or today when ref is zero.
func (s *Service) Summary(ctx context.Context, id uuid.UUID, ref time.Time) (*Summary, error) {
	e, err := s.enrollments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ref = s.asOf(ref)
	factors, history, err := s.riskFactors(ctx, e, ref)
	if err != nil {
		return nil, err
	}
	sum := &Summary{
		Enrollment:  e,
		AsOf:        ref,
		Dating:      obstetric.DatingAt(e.LMP, ref),
		RiskFactors: factors,
		HighRisk:    len(factors) > 0,
		VisitCount:  len(history),
	}
	if n := len(history); n > 0 {
		sum.LatestVisit = assessed(history[n-1])
	}
	return sum, nil
}

// Calculate dates a pregnancy from an LMP without storing anything.
func (s *Service) Calculate(lmp, ref time.Time) obstetric.Dating {
	return obstetric.DatingAt(lmp, s.asOf(ref))
}
