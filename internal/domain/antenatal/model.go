package antenatal

import (
	"time"

	"github.com/google/uuid"

	"github.com/carepoint/clinic/pkg/cdss/obstetric"
	"github.com/carepoint/clinic/pkg/cdss/risk"
	"github.com/carepoint/clinic/pkg/cdss/vitals"
)

const (
	StatusActive      = "active"
	StatusDelivered   = "delivered"
	StatusTransferred = "transferred"
	StatusClosed      = "closed"
)

// Enrollment maps to the anc_enrollment table. EDD is always derived from LMP.
type Enrollment struct {
	ID         uuid.UUID `db:"id" json:"id"`
	PatientID  uuid.UUID `db:"patient_id" json:"patient_id"`
	Status     string    `db:"status" json:"status"`
	LMP        time.Time `db:"lmp" json:"lmp"`
	EDD        time.Time `db:"edd" json:"edd"`
	Gravida    int       `db:"gravida" json:"gravida"`
	Para       int       `db:"para" json:"para"`
	BloodGroup *string   `db:"blood_group" json:"blood_group,omitempty"`
	Genotype   *string   `db:"genotype" json:"genotype,omitempty"`
	HIVStatus  *string   `db:"hiv_status" json:"hiv_status,omitempty"`
	Note       *string   `db:"note" json:"note,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Pregnancy projects the enrollment onto the calculator's record.
func (e *Enrollment) Pregnancy() obstetric.Pregnancy {
	p := obstetric.NewPregnancy(e.LMP, e.Gravida, e.Para)
	p.BloodGroup = deref(e.BloodGroup)
	p.Genotype = deref(e.Genotype)
	p.HIVStatus = deref(e.HIVStatus)
	return p
}

// Visit maps to the anc_visit table. Gestational weeks and days are derived
// from the enrollment LMP at the visit date.
type Visit struct {
	ID                uuid.UUID `db:"id" json:"id"`
	EnrollmentID      uuid.UUID `db:"enrollment_id" json:"enrollment_id"`
	VisitDate         time.Time `db:"visit_date" json:"visit_date"`
	GestationalWeeks  int       `db:"gestational_weeks" json:"gestational_weeks"`
	GestationalDays   int       `db:"gestational_days" json:"gestational_days"`
	Weight            *float64  `db:"weight" json:"weight,omitempty"`
	Systolic          *int      `db:"systolic" json:"systolic,omitempty"`
	Diastolic         *int      `db:"diastolic" json:"diastolic,omitempty"`
	FetalHeartRate    *int      `db:"fetal_heart_rate" json:"fetal_heart_rate,omitempty"`
	FundalHeight      *float64  `db:"fundal_height" json:"fundal_height,omitempty"`
	FetalPresentation *string   `db:"fetal_presentation" json:"fetal_presentation,omitempty"`
	RecordedBy        *string   `db:"recorded_by" json:"recorded_by,omitempty"`
	Note              *string   `db:"note" json:"note,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// VisitAssessment classifies the maternal and fetal measurements of a visit.
// Unmeasured values stay nil.
type VisitAssessment struct {
	GestationalAge string         `json:"gestational_age"`
	BloodPressure  *vitals.Status `json:"blood_pressure,omitempty"`
	FetalHeartRate *vitals.Status `json:"fetal_heart_rate,omitempty"`
	FundalHeight   *vitals.Status `json:"fundal_height,omitempty"`
}

func (v *Visit) Assess() VisitAssessment {
	a := VisitAssessment{
		GestationalAge: obstetric.FormatGestationalAge(v.GestationalWeeks, v.GestationalDays),
		BloodPressure:  vitals.BPStatus(v.Systolic, v.Diastolic),
	}
	if v.FetalHeartRate != nil {
		st := obstetric.FetalHeartRateStatus(*v.FetalHeartRate)
		a.FetalHeartRate = &st
	}
	if v.FundalHeight != nil {
		st := obstetric.FundalHeightStatus(*v.FundalHeight, v.GestationalWeeks)
		a.FundalHeight = &st
	}
	return a
}

func (v *Visit) bp() risk.BPVisit {
	return risk.BPVisit{Systolic: v.Systolic, Diastolic: v.Diastolic}
}

// AssessedVisit is a stored visit with its classification.
type AssessedVisit struct {
	*Visit
	Assessment VisitAssessment `json:"assessment"`
}

func assessed(v *Visit) *AssessedVisit {
	return &AssessedVisit{Visit: v, Assessment: v.Assess()}
}

// Summary is the dashboard view of one enrollment on a reference date.
type Summary struct {
	Enrollment  *Enrollment      `json:"enrollment"`
	AsOf        time.Time        `json:"as_of"`
	Dating      obstetric.Dating `json:"dating"`
	RiskFactors []risk.Factor    `json:"risk_factors"`
	HighRisk    bool             `json:"high_risk"`
	VisitCount  int              `json:"visit_count"`
	LatestVisit *AssessedVisit   `json:"latest_visit,omitempty"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
