// Package obstetric implements pregnancy dating and fetal/maternal
// classification used during antenatal care.
//
// All date arithmetic works on calendar dates: the time of day and the
// location's UTC offset of the supplied values are ignored.
package obstetric

import (
	"fmt"
	"time"
)

// PregnancyDays is the Naegele's rule offset from LMP to the due date.
const PregnancyDays = 280

// EDD returns the estimated delivery date for a last menstrual period:
// exactly 280 days after lmp, with no cycle-length adjustment.
func EDD(lmp time.Time) time.Time {
	return civil(lmp).AddDate(0, 0, PregnancyDays)
}

// GestationalAge is the length of a pregnancy at a reference date.
type GestationalAge struct {
	Weeks     int `json:"weeks"`
	Days      int `json:"days"`
	TotalDays int `json:"total_days"`
}

func (g GestationalAge) String() string {
	return FormatGestationalAge(g.Weeks, g.Days)
}

// GestationalAgeAt returns the gestational age on ref for a pregnancy dated
// from lmp. When ref precedes lmp the total is negative and weeks are floored,
// so Days stays within [0,6] and TotalDays == Weeks*7 + Days holds.
func GestationalAgeAt(lmp, ref time.Time) GestationalAge {
	total := DaysBetween(lmp, ref)
	weeks := floorDiv(total, 7)
	return GestationalAge{
		Weeks:     weeks,
		Days:      total - weeks*7,
		TotalDays: total,
	}
}

// FormatGestationalAge renders a gestational age for display.
func FormatGestationalAge(weeks, days int) string {
	switch {
	case weeks == 0 && days == 0:
		return "0 days"
	case days == 0:
		return plural(weeks, "week")
	case weeks == 0:
		return plural(days, "day")
	default:
		return fmt.Sprintf("%dw %dd", weeks, days)
	}
}

// DaysToDelivery returns the number of calendar days from ref until edd.
// The result is negative once the pregnancy is overdue.
func DaysToDelivery(edd, ref time.Time) int {
	return DaysBetween(ref, edd)
}

// DeliveryCountdown renders DaysToDelivery for a dashboard badge.
func DeliveryCountdown(days int) string {
	if days <= 0 {
		return "Due!"
	}
	return plural(days, "day")
}

// Trimester identifies one third of a pregnancy.
type Trimester struct {
	Number int    `json:"trimester"`
	Label  string `json:"label"`
}

// TrimesterFor maps completed gestational weeks onto a trimester.
func TrimesterFor(weeks int) Trimester {
	switch {
	case weeks < 14:
		return Trimester{Number: 1, Label: "1st Trimester"}
	case weeks < 28:
		return Trimester{Number: 2, Label: "2nd Trimester"}
	default:
		return Trimester{Number: 3, Label: "3rd Trimester"}
	}
}

// DaysBetween returns the whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(civil(b).Sub(civil(a)).Hours() / 24)
}

// civil drops the time of day and zone, keeping the calendar date.
func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func plural(n int, unit string) string {
	if n == 1 || n == -1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
