package triage

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carepoint/clinic/internal/platform/cdshooks"
	"github.com/carepoint/clinic/pkg/cdss/vitals"
)

const VitalAlertsServiceID = "triage-vital-alerts"

var cdsSource = cdshooks.Source{Label: "Clinic triage"}

// RegisterCDS exposes vital-sign alerts as a patient-view CDS service. The
// caller may prefetch the reading as "vitals"; otherwise the latest stored
// reading for context.patientId is used.
func (s *Service) RegisterCDS(reg *cdshooks.Registry) {
	reg.Register(cdshooks.Service{
		ID:          VitalAlertsServiceID,
		Hook:        "patient-view",
		Title:       "Vital sign alerts",
		Description: "Flags abnormal temperature, blood pressure, heart rate and BMI.",
		Prefetch:    map[string]string{"vitals": "vital signs of the current encounter"},
	}, s.vitalAlertsHook)
}

func (s *Service) vitalAlertsHook(ctx context.Context, req cdshooks.Request) (*cdshooks.Response, error) {
	var r vitals.Reading
	found, err := req.DecodePrefetch("vitals", &r)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if !found {
		pid, err := uuid.Parse(req.ContextString("patientId"))
		if err != nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "context.patientId or prefetch.vitals is required")
		}
		latest, err := s.LatestForPatient(ctx, pid)
		if errors.Is(err, ErrNotFound) {
			return &cdshooks.Response{Cards: []cdshooks.Card{}}, nil
		}
		if err != nil {
			return nil, err
		}
		r = latest.Reading()
	}
	return &cdshooks.Response{Cards: VitalCards(vitals.Assess(r))}, nil
}

// VitalCards builds one card per non-normal classification.
func VitalCards(a vitals.Assessment) []cdshooks.Card {
	cards := make([]cdshooks.Card, 0, 4)
	add := func(name string, st *vitals.Status) {
		if !st.IsAlert() {
			return
		}
		cards = append(cards, cdshooks.NewCard(
			fmt.Sprintf("%s: %s", name, st.Label), "", indicator(st.Level), cdsSource))
	}
	add("Temperature", a.Temperature)
	add("Blood pressure", a.BloodPressure)
	add("Heart rate", a.HeartRate)
	if a.BMI != nil && a.BMI.Level != vitals.Normal {
		cards = append(cards, cdshooks.NewCard(
			fmt.Sprintf("BMI %.1f: %s", a.BMI.Value, a.BMI.Category), "", indicator(a.BMI.Level), cdsSource))
	}
	return cards
}

func indicator(l vitals.Level) string {
	if l == vitals.Critical {
		return cdshooks.IndicatorCritical
	}
	return cdshooks.IndicatorWarning
}
