package antenatal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carepoint/clinic/internal/platform/cdshooks"
	"github.com/carepoint/clinic/pkg/cdss/risk"
)

const RiskServiceID = "anc-risk"

var cdsSource = cdshooks.Source{Label: "Clinic antenatal care"}

// RegisterCDS exposes antenatal risk factors as a patient-view CDS service.
// The enrollment comes from context.enrollmentId, or the patient's active
// enrollment when only context.patientId is sent.
func (s *Service) RegisterCDS(reg *cdshooks.Registry) {
	reg.Register(cdshooks.Service{
		ID:          RiskServiceID,
		Hook:        "patient-view",
		Title:       "Antenatal risk factors",
		Description: "Lists high-risk pregnancy factors for the current enrollment.",
	}, s.riskHook)
}

func (s *Service) riskHook(ctx context.Context, req cdshooks.Request) (*cdshooks.Response, error) {
	empty := &cdshooks.Response{Cards: []cdshooks.Card{}}

	var enrollmentID uuid.UUID
	if raw := req.ContextString("enrollmentId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid context.enrollmentId")
		}
		enrollmentID = id
	} else {
		pid, err := uuid.Parse(req.ContextString("patientId"))
		if err != nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "context.enrollmentId or context.patientId is required")
		}
		e, err := s.ActiveEnrollment(ctx, pid)
		if errors.Is(err, ErrNotFound) {
			return empty, nil
		}
		if err != nil {
			return nil, err
		}
		enrollmentID = e.ID
	}

	factors, err := s.RiskFactors(ctx, enrollmentID, s.clock())
	if errors.Is(err, ErrNotFound) {
		return empty, nil
	}
	if err != nil {
		return nil, err
	}
	if len(factors) == 0 {
		return empty, nil
	}
	return &cdshooks.Response{Cards: []cdshooks.Card{RiskCard(factors)}}, nil
}

// RiskCard summarizes risk factors as one warning card with a markdown list.
func RiskCard(factors []risk.Factor) cdshooks.Card {
	var b strings.Builder
	for _, f := range factors {
		fmt.Fprintf(&b, "- %s\n", f.Label)
	}
	noun := "factors"
	if len(factors) == 1 {
		noun = "factor"
	}
	return cdshooks.NewCard(
		fmt.Sprintf("High-risk pregnancy: %d risk %s", len(factors), noun),
		b.String(), cdshooks.IndicatorWarning, cdsSource)
}
