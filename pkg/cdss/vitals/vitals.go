// Package vitals classifies physiological measurements into normal, warning
// and critical tiers using fixed adult thresholds.
//
// Every function is pure. A nil input means "not measured" and yields a nil
// result, which callers must keep distinct from a Normal status.
package vitals

import "math"

// Reading is one set of measurements taken at a point in time.
type Reading struct {
	TemperatureC *float64 `json:"temperature,omitempty"`
	Systolic     *int     `json:"systolic,omitempty"`
	Diastolic    *int     `json:"diastolic,omitempty"`
	HeartRate    *int     `json:"heart_rate,omitempty"`
	WeightKg     *float64 `json:"weight,omitempty"`
	HeightCm     *float64 `json:"height,omitempty"`
}

// Thresholds shared with other clinical packages.
const (
	FeverCritical = 38.5
	FeverWarning  = 37.5

	SystolicCrisis   = 180
	DiastolicCrisis  = 120
	SystolicUrgency  = 160
	DiastolicUrgency = 100
	SystolicHigh     = 140
	DiastolicHigh    = 90
	SystolicLow      = 90
	DiastolicLow     = 60

	HeartRateCritical = 120
	HeartRateElevated = 100
	HeartRateLow      = 60
)

type floatRule struct {
	match func(v float64) bool
	level Level
	label string
}

type intRule struct {
	match func(v int) bool
	level Level
	label string
}

// bpRule predicates receive the diastolic value and whether it was measured.
type bpRule struct {
	match func(sys, dia int, hasDia bool) bool
	level Level
	label string
}

var temperatureRules = []floatRule{
	{func(t float64) bool { return t > FeverCritical }, Critical, "High Fever"},
	{func(t float64) bool { return t > FeverWarning }, Warning, "Mild Fever"},
}

var bpRules = []bpRule{
	{func(s, d int, ok bool) bool { return s > SystolicCrisis || (ok && d > DiastolicCrisis) }, Critical, "Hypertensive Crisis"},
	{func(s, d int, ok bool) bool { return s > SystolicUrgency || (ok && d > DiastolicUrgency) }, Critical, "Hypertensive Urgency"},
	{func(s, d int, ok bool) bool { return s > SystolicHigh || (ok && d > DiastolicHigh) }, Warning, "High BP"},
	{func(s, d int, ok bool) bool { return s < SystolicLow || (ok && d < DiastolicLow) }, Critical, "Low BP"},
}

var heartRateRules = []intRule{
	{func(hr int) bool { return hr > HeartRateCritical }, Critical, "Tachycardia"},
	{func(hr int) bool { return hr > HeartRateElevated }, Warning, "Elevated HR"},
	{func(hr int) bool { return hr < HeartRateLow }, Warning, "Bradycardia"},
}

var normalStatus = Status{Level: Normal, Label: "Normal"}

// TemperatureStatus classifies a body temperature in degrees Celsius.
func TemperatureStatus(tempC *float64) *Status {
	if tempC == nil {
		return nil
	}
	for _, r := range temperatureRules {
		if r.match(*tempC) {
			return &Status{Level: r.level, Label: r.label}
		}
	}
	s := normalStatus
	return &s
}

// BPStatus classifies a blood pressure reading. The systolic value is
// required; a missing diastolic value simply does not take part in the
// diastolic clauses. Only nil counts as missing: a diastolic of 0 is
// classified like any other value and reads as Low BP.
func BPStatus(systolic, diastolic *int) *Status {
	if systolic == nil {
		return nil
	}
	dia, hasDia := 0, diastolic != nil
	if hasDia {
		dia = *diastolic
	}
	for _, r := range bpRules {
		if r.match(*systolic, dia, hasDia) {
			return &Status{Level: r.level, Label: r.label}
		}
	}
	s := normalStatus
	return &s
}

// HeartRateStatus classifies a resting heart rate in beats per minute.
func HeartRateStatus(hr *int) *Status {
	if hr == nil {
		return nil
	}
	return classifyInt(*hr, heartRateRules)
}

func classifyInt(v int, rules []intRule) *Status {
	for _, r := range rules {
		if r.match(v) {
			return &Status{Level: r.level, Label: r.label}
		}
	}
	s := normalStatus
	return &s
}

// BMIResult is a derived body-mass index.
type BMIResult struct {
	Value    float64 `json:"value"`
	Category string  `json:"category"`
	Level    Level   `json:"level"`
}

type bmiBand struct {
	below    float64
	category string
	level    Level
}

// bmiBands are evaluated low to high; the last band is open-ended.
var bmiBands = []bmiBand{
	{16, "Severely Underweight", Critical},
	{18.5, "Underweight", Warning},
	{25, "Normal", Normal},
	{30, "Overweight", Warning},
	{35, "Obese Class I", Warning},
	{40, "Obese Class II", Critical},
	{math.Inf(1), "Obese Class III", Critical},
}

// CalculateBMI derives the body-mass index from weight in kilograms and
// height in centimetres. The band is chosen from the unrounded value; the
// returned Value is rounded to one decimal place.
func CalculateBMI(weightKg, heightCm *float64) *BMIResult {
	if weightKg == nil || heightCm == nil || *heightCm == 0 {
		return nil
	}
	m := *heightCm / 100
	bmi := *weightKg / (m * m)

	band := bmiBands[len(bmiBands)-1]
	for _, b := range bmiBands {
		if bmi < b.below {
			band = b
			break
		}
	}
	return &BMIResult{
		Value:    math.Round(bmi*10) / 10,
		Category: band.category,
		Level:    band.level,
	}
}

// AlertCount returns how many of temperature, blood pressure and heart rate
// are measured and outside the normal tier. BMI is not counted.
func AlertCount(tempC *float64, systolic, diastolic, heartRate *int) int {
	n := 0
	for _, s := range []*Status{
		TemperatureStatus(tempC),
		BPStatus(systolic, diastolic),
		HeartRateStatus(heartRate),
	} {
		if s.IsAlert() {
			n++
		}
	}
	return n
}

// Assessment bundles every classification for one Reading.
type Assessment struct {
	Temperature   *Status    `json:"temperature,omitempty"`
	BloodPressure *Status    `json:"blood_pressure,omitempty"`
	HeartRate     *Status    `json:"heart_rate,omitempty"`
	BMI           *BMIResult `json:"bmi,omitempty"`
	AlertCount    int        `json:"alert_count"`
	Worst         Level      `json:"worst"`
}

// Assess classifies every measured field of r.
func Assess(r Reading) Assessment {
	a := Assessment{
		Temperature:   TemperatureStatus(r.TemperatureC),
		BloodPressure: BPStatus(r.Systolic, r.Diastolic),
		HeartRate:     HeartRateStatus(r.HeartRate),
		BMI:           CalculateBMI(r.WeightKg, r.HeightCm),
	}
	a.AlertCount = AlertCount(r.TemperatureC, r.Systolic, r.Diastolic, r.HeartRate)
	for _, s := range []*Status{a.Temperature, a.BloodPressure, a.HeartRate} {
		if s != nil {
			a.Worst = a.Worst.Worse(s.Level)
		}
	}
	if a.BMI != nil {
		a.Worst = a.Worst.Worse(a.BMI.Level)
	}
	return a
}
