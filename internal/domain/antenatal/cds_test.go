package antenatal

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carepoint/clinic/internal/platform/cdshooks"
	"github.com/carepoint/clinic/pkg/cdss/risk"
)

func invokeRiskHook(t *testing.T, svc *Service, ctxJSON string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	reg := cdshooks.NewRegistry(zerolog.Nop())
	svc.RegisterCDS(reg)
	reg.RegisterRoutes(e.Group(""))

	body := `{"hook":"patient-view","hookInstance":"` + uuid.NewString() + `","context":` + ctxJSON + `}`
	req := httptest.NewRequest(http.MethodPost, "/cds-services/"+RiskServiceID, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func cardsOf(t *testing.T, rec *httptest.ResponseRecorder) []cdshooks.Card {
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

func TestRiskCard(t *testing.T) {
	card := RiskCard([]risk.Factor{{Label: risk.AdolescentPregnancy}, {Label: risk.ChronicHypertension}})
	if card.Summary != "High-risk pregnancy: 2 risk factors" || card.Indicator != cdshooks.IndicatorWarning {
		t.Errorf("unexpected card %+v", card)
	}
	if card.Detail != "- Adolescent Pregnancy (<18)\n- Chronic Hypertension\n" {
		t.Errorf("unexpected detail %q", card.Detail)
	}
	if one := RiskCard([]risk.Factor{{Label: risk.GrandMultipara}}); one.Summary != "High-risk pregnancy: 1 risk factor" {
		t.Errorf("unexpected singular summary %q", one.Summary)
	}
}

func TestRiskHook_ByEnrollment(t *testing.T) {
	f := newFixture()
	risky := f.enroll(t, Enrollment{Gravida: 8})
	plain := f.enroll(t, Enrollment{})

	cards := cardsOf(t, invokeRiskHook(t, f.svc, `{"enrollmentId":"`+risky.ID.String()+`"}`))
	if len(cards) != 1 || !strings.Contains(cards[0].Detail, risk.GrandMultipara) {
		t.Errorf("unexpected cards %+v", cards)
	}
	if cards := cardsOf(t, invokeRiskHook(t, f.svc, `{"enrollmentId":"`+plain.ID.String()+`"}`)); len(cards) != 0 {
		t.Errorf("expected no cards without risk factors, got %+v", cards)
	}
	if cards := cardsOf(t, invokeRiskHook(t, f.svc, `{"enrollmentId":"`+uuid.NewString()+`"}`)); len(cards) != 0 {
		t.Errorf("expected no cards for an unknown enrollment, got %+v", cards)
	}
}

func TestRiskHook_ByPatient(t *testing.T) {
	f := newFixture()
	pid := uuid.New()
	f.patients[pid] = day(1980, 1, 1)
	f.enroll(t, Enrollment{PatientID: pid})

	cards := cardsOf(t, invokeRiskHook(t, f.svc, `{"patientId":"`+pid.String()+`"}`))
	if len(cards) != 1 || !strings.Contains(cards[0].Detail, risk.AdvancedMaternalAge) {
		t.Errorf("unexpected cards %+v", cards)
	}
	if cards := cardsOf(t, invokeRiskHook(t, f.svc, `{"patientId":"`+uuid.NewString()+`"}`)); len(cards) != 0 {
		t.Errorf("expected no cards for a patient without an enrollment, got %+v", cards)
	}
}

func TestRiskHook_BadContext(t *testing.T) {
	f := newFixture()
	for _, ctx := range []string{`{}`, `{"enrollmentId":"nope"}`} {
		if rec := invokeRiskHook(t, f.svc, ctx); rec.Code != http.StatusBadRequest {
			t.Errorf("context %s: expected 400, got %d", ctx, rec.Code)
		}
	}
}
