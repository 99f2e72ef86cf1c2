package triage

import (
	"time"

	"github.com/google/uuid"

	"github.com/carepoint/clinic/pkg/cdss/vitals"
)

// VitalSigns maps to the vital_signs table.
type VitalSigns struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	PatientID        uuid.UUID  `db:"patient_id" json:"patient_id"`
	AppointmentID    *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
	RecordedBy       *string    `db:"recorded_by" json:"recorded_by,omitempty"`
	RecordedAt       time.Time  `db:"recorded_at" json:"recorded_at"`
	Temperature      *float64   `db:"temperature" json:"temperature,omitempty"`
	Systolic         *int       `db:"systolic" json:"systolic,omitempty"`
	Diastolic        *int       `db:"diastolic" json:"diastolic,omitempty"`
	HeartRate        *int       `db:"heart_rate" json:"heart_rate,omitempty"`
	RespiratoryRate  *int       `db:"respiratory_rate" json:"respiratory_rate,omitempty"`
	OxygenSaturation *int       `db:"oxygen_saturation" json:"oxygen_saturation,omitempty"`
	Weight           *float64   `db:"weight" json:"weight,omitempty"`
	Height           *float64   `db:"height" json:"height,omitempty"`
	Note             *string    `db:"note" json:"note,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
}

// Reading projects the record onto the fields the classifier uses.
func (v *VitalSigns) Reading() vitals.Reading {
	return vitals.Reading{
		TemperatureC: v.Temperature,
		Systolic:     v.Systolic,
		Diastolic:    v.Diastolic,
		HeartRate:    v.HeartRate,
		WeightKg:     v.Weight,
		HeightCm:     v.Height,
	}
}

// Assessed is a stored reading together with its classification.
type Assessed struct {
	*VitalSigns
	Assessment vitals.Assessment `json:"assessment"`
}
