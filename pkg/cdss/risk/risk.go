// Package risk composes independent obstetric risk checks into the ordered
// list of high-risk factors shown on antenatal badges and triage alerts.
package risk

import (
	"time"

	"github.com/carepoint/clinic/pkg/cdss/vitals"
)

// Factor is one identified high-risk condition.
type Factor struct {
	Label string `json:"label"`
}

// BPVisit is the blood pressure recorded at a single antenatal visit.
type BPVisit struct {
	Systolic  *int `json:"systolic,omitempty"`
	Diastolic *int `json:"diastolic,omitempty"`
}

const (
	AdvancedMaternalAge = "Advanced Maternal Age (>35)"
	AdolescentPregnancy = "Adolescent Pregnancy (<18)"
	GrandMultipara      = "Grand Multipara (G>5)"
	ChronicHypertension = "Chronic Hypertension"
)

// Input carries everything the checks look at.
type Input struct {
	DateOfBirth *time.Time
	Gravida     int
	Visits      []BPVisit
	Ref         time.Time
}

type check func(in Input) (string, bool)

// checks run in display-priority order; consumers rely on it.
var checks = []check{
	maternalAge,
	grandMultipara,
	chronicHypertension,
}

// HighRiskFactors evaluates every check in order and returns the factors
// found. The result is never nil.
func HighRiskFactors(dob *time.Time, gravida int, visits []BPVisit, ref time.Time) []Factor {
	in := Input{DateOfBirth: dob, Gravida: gravida, Visits: visits, Ref: ref}
	factors := make([]Factor, 0, len(checks))
	for _, c := range checks {
		if label, ok := c(in); ok {
			factors = append(factors, Factor{Label: label})
		}
	}
	return factors
}

// Labels flattens factors into their display strings.
func Labels(factors []Factor) []string {
	out := make([]string, len(factors))
	for i, f := range factors {
		out[i] = f.Label
	}
	return out
}

// AgeInYears returns completed years between dob and ref.
func AgeInYears(dob, ref time.Time) int {
	age := ref.Year() - dob.Year()
	if ref.Month() < dob.Month() || (ref.Month() == dob.Month() && ref.Day() < dob.Day()) {
		age--
	}
	return age
}

func maternalAge(in Input) (string, bool) {
	if in.DateOfBirth == nil {
		return "", false
	}
	age := AgeInYears(*in.DateOfBirth, in.Ref)
	switch {
	case age > 35:
		return AdvancedMaternalAge, true
	case age < 18:
		return AdolescentPregnancy, true
	}
	return "", false
}

func grandMultipara(in Input) (string, bool) {
	return GrandMultipara, in.Gravida > 5
}

// chronicHypertension needs at least two complete readings above the
// High BP threshold.
func chronicHypertension(in Input) (string, bool) {
	if len(in.Visits) < 2 {
		return "", false
	}
	high := 0
	for _, v := range in.Visits {
		if v.Systolic == nil || v.Diastolic == nil {
			continue
		}
		if *v.Systolic > vitals.SystolicHigh || *v.Diastolic > vitals.DiastolicHigh {
			high++
		}
	}
	return ChronicHypertension, high >= 2
}
