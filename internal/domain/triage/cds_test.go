package triage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carepoint/clinic/internal/platform/cdshooks"
	"github.com/carepoint/clinic/pkg/cdss/vitals"
)

func TestVitalCards(t *testing.T) {
	a := vitals.Assess(vitals.Reading{
		TemperatureC: f64(37.7),
		Systolic:     iptr(200),
		Diastolic:    iptr(100),
		HeartRate:    iptr(75),
		WeightKg:     f64(45),
		HeightCm:     f64(170),
	})
	cards := VitalCards(a)
	if len(cards) != 3 {
		t.Fatalf("expected 3 cards, got %d", len(cards))
	}
	want := []struct{ summary, indicator string }{
		{"Temperature: Mild Fever", cdshooks.IndicatorWarning},
		{"Blood pressure: Hypertensive Crisis", cdshooks.IndicatorCritical},
		{"BMI 15.6: Severely Underweight", cdshooks.IndicatorCritical},
	}
	for k, w := range want {
		if cards[k].Summary != w.summary || cards[k].Indicator != w.indicator {
			t.Errorf("card %d: expected %q/%s, got %q/%s", k, w.summary, w.indicator, cards[k].Summary, cards[k].Indicator)
		}
		if cards[k].UUID == "" || cards[k].Source.Label == "" {
			t.Errorf("card %d missing uuid or source", k)
		}
	}

	if got := VitalCards(vitals.Assess(vitals.Reading{})); len(got) != 0 {
		t.Errorf("expected no cards for an empty reading, got %d", len(got))
	}
}

func invokeHook(t *testing.T, svc *Service, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	reg := cdshooks.NewRegistry(zerolog.Nop())
	svc.RegisterCDS(reg)
	reg.RegisterRoutes(e.Group(""))

	req := httptest.NewRequest(http.MethodPost, "/cds-services/"+VitalAlertsServiceID, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeCards(t *testing.T, rec *httptest.ResponseRecorder) []cdshooks.Card {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp cdshooks.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	return resp.Cards
}

func TestVitalAlertsHook_Prefetch(t *testing.T) {
	svc, _ := newTestService()
	rec := invokeHook(t, svc, `{"hook":"patient-view","hookInstance":"h1","context":{},"prefetch":{"vitals":{"heart_rate":130}}}`)
	cards := decodeCards(t, rec)
	if len(cards) != 1 || cards[0].Summary != "Heart rate: Tachycardia" {
		t.Errorf("unexpected cards %+v", cards)
	}
}

func TestVitalAlertsHook_LatestReading(t *testing.T) {
	svc, _ := newTestService()
	pid := uuid.New()
	if _, err := svc.RecordVitals(context.Background(), &VitalSigns{PatientID: pid, Systolic: iptr(150), Diastolic: iptr(85)}); err != nil {
		t.Fatal(err)
	}

	rec := invokeHook(t, svc, `{"hook":"patient-view","hookInstance":"h2","context":{"patientId":"`+pid.String()+`"}}`)
	cards := decodeCards(t, rec)
	if len(cards) != 1 || cards[0].Summary != "Blood pressure: High BP" || cards[0].Indicator != cdshooks.IndicatorWarning {
		t.Errorf("unexpected cards %+v", cards)
	}

	rec = invokeHook(t, svc, `{"hook":"patient-view","hookInstance":"h3","context":{"patientId":"`+uuid.New().String()+`"}}`)
	if cards := decodeCards(t, rec); len(cards) != 0 {
		t.Errorf("expected no cards for a patient without readings, got %+v", cards)
	}
}

func TestVitalAlertsHook_BadRequest(t *testing.T) {
	svc, _ := newTestService()
	for _, body := range []string{
		`{"hook":"patient-view","hookInstance":"h4","context":{}}`,
		`{"hook":"patient-view","hookInstance":"h5","context":{},"prefetch":{"vitals":"oops"}}`,
	} {
		if rec := invokeHook(t, svc, body); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for %s, got %d", body, rec.Code)
		}
	}
}
