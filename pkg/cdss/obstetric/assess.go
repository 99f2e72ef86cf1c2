package obstetric

import (
	"math"

	"github.com/carepoint/clinic/pkg/cdss/vitals"
)

// Fetal heart rate limits in beats per minute. The hard limits bound the
// critical zones; the soft limits mark a borderline band inside them.
const (
	FHRHardLow  = 110
	FHRHardHigh = 160
	FHRSoftLow  = 120
	FHRSoftHigh = 150
)

type fhrRule struct {
	match func(fhr int) bool
	level vitals.Level
	label string
}

var fhrRules = []fhrRule{
	{func(f int) bool { return f < FHRHardLow }, vitals.Critical, "Bradycardia"},
	{func(f int) bool { return f > FHRHardHigh }, vitals.Critical, "Tachycardia"},
	{func(f int) bool { return f < FHRSoftLow || f > FHRSoftHigh }, vitals.Warning, "Borderline"},
}

// FetalHeartRateStatus classifies a fetal heart rate.
func FetalHeartRateStatus(fhr int) vitals.Status {
	for _, r := range fhrRules {
		if r.match(fhr) {
			return vitals.Status{Level: r.level, Label: r.label}
		}
	}
	return vitals.Status{Level: vitals.Normal, Label: "Normal"}
}

// FundalHeightStatus compares the symphysis-fundal height in centimetres
// with the gestational age in weeks; they should agree within 2.
func FundalHeightStatus(fundalHeightCm float64, gestationalWeeks int) vitals.Status {
	diff := math.Abs(fundalHeightCm - float64(gestationalWeeks))
	switch {
	case diff <= 2:
		return vitals.Status{Level: vitals.Normal, Label: "Normal"}
	case diff <= 4:
		return vitals.Status{Level: vitals.Warning, Label: "Check"}
	default:
		return vitals.Status{Level: vitals.Critical, Label: "Review"}
	}
}
