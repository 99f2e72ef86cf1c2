package obstetric

import (
	"slices"
	"time"
)

// Closed vocabularies offered by antenatal enrollment and visit forms.
var (
	BloodGroups        = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}
	Genotypes          = []string{"AA", "AS", "AC", "SS", "SC"}
	FetalPresentations = []string{"Cephalic", "Breech", "Transverse", "Oblique", "Not determined"}
	HIVStatuses        = []string{"Negative", "Positive", "Unknown"}
)

func IsBloodGroup(s string) bool        { return slices.Contains(BloodGroups, s) }
func IsGenotype(s string) bool          { return slices.Contains(Genotypes, s) }
func IsFetalPresentation(s string) bool { return slices.Contains(FetalPresentations, s) }
func IsHIVStatus(s string) bool         { return slices.Contains(HIVStatuses, s) }

// Reference groups the vocabularies for a single lookup response.
type Reference struct {
	BloodGroups        []string `json:"blood_groups"`
	Genotypes          []string `json:"genotypes"`
	FetalPresentations []string `json:"fetal_presentations"`
	HIVStatuses        []string `json:"hiv_statuses"`
}

// ReferenceData returns copies of every vocabulary.
func ReferenceData() Reference {
	return Reference{
		BloodGroups:        slices.Clone(BloodGroups),
		Genotypes:          slices.Clone(Genotypes),
		FetalPresentations: slices.Clone(FetalPresentations),
		HIVStatuses:        slices.Clone(HIVStatuses),
	}
}

// Pregnancy is one antenatal enrollment as seen by the calculator.
// Gravida and Para are clinician-entered; EDD is always derived from LMP.
type Pregnancy struct {
	LMP        time.Time `json:"lmp"`
	EDD        time.Time `json:"edd"`
	Gravida    int       `json:"gravida"`
	Para       int       `json:"para"`
	BloodGroup string    `json:"blood_group,omitempty"`
	Genotype   string    `json:"genotype,omitempty"`
	HIVStatus  string    `json:"hiv_status,omitempty"`
}

// NewPregnancy builds a Pregnancy with its EDD derived from lmp.
func NewPregnancy(lmp time.Time, gravida, para int) Pregnancy {
	return Pregnancy{LMP: civil(lmp), EDD: EDD(lmp), Gravida: gravida, Para: para}
}

// Dating is the date-derived view of a pregnancy at a reference date.
type Dating struct {
	EDD               time.Time      `json:"edd"`
	GestationalAge    GestationalAge `json:"gestational_age"`
	GestationalAgeStr string         `json:"gestational_age_display"`
	Trimester         Trimester      `json:"trimester"`
	DaysToDelivery    int            `json:"days_to_delivery"`
	Countdown         string         `json:"countdown"`
}

// DatingAt computes every date-derived value of a pregnancy on ref.
func DatingAt(lmp, ref time.Time) Dating {
	edd := EDD(lmp)
	ga := GestationalAgeAt(lmp, ref)
	days := DaysToDelivery(edd, ref)
	return Dating{
		EDD:               edd,
		GestationalAge:    ga,
		GestationalAgeStr: ga.String(),
		Trimester:         TrimesterFor(ga.Weeks),
		DaysToDelivery:    days,
		Countdown:         DeliveryCountdown(days),
	}
}
