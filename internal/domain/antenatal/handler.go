package antenatal

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carepoint/clinic/internal/platform/auth"
	"github.com/carepoint/clinic/pkg/cdss/obstetric"
	"github.com/carepoint/clinic/pkg/pagination"
)

const dateLayout = "2006-01-02"

type Handler struct {
	svc         *Service
	referenceMW []echo.MiddlewareFunc
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// WithReferenceCache installs middleware, typically ETag and response
// caching, in front of the vocabulary endpoint.
func (h *Handler) WithReferenceCache(mw ...echo.MiddlewareFunc) *Handler {
	h.referenceMW = append(h.referenceMW, mw...)
	return h
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	anc := api.Group("/anc")
	anc.GET("/reference", h.Reference, h.referenceMW...)

	read := anc.Group("", auth.RequireRole(auth.RoleClinician, auth.RoleMidwife, auth.RoleNurse))
	read.GET("/enrollments", h.ListEnrollments)
	read.GET("/enrollments/:id", h.GetEnrollment)
	read.GET("/enrollments/:id/visits", h.ListVisits)
	read.GET("/enrollments/:id/summary", h.Summary)
	read.GET("/enrollments/:id/risk-factors", h.RiskFactors)
	read.GET("/visits/:id", h.GetVisit)
	read.POST("/calculate", h.Calculate)

	write := anc.Group("", auth.RequireRole(auth.RoleClinician, auth.RoleMidwife))
	write.POST("/enrollments", h.Enroll)
	write.PUT("/enrollments/:id", h.UpdateEnrollment)
	write.POST("/enrollments/:id/visits", h.RecordVisit)

	anc.DELETE("/enrollments/:id", h.DeleteEnrollment, auth.RequireRole(auth.RoleClinician))
	anc.DELETE("/visits/:id", h.DeleteVisit, auth.RequireRole(auth.RoleClinician))
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// parseDate accepts a calendar date or an RFC 3339 timestamp. Empty yields
// the zero time.
func parseDate(name, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, name+" must be YYYY-MM-DD or RFC 3339")
	}
	return t, nil
}

// enrollmentRequest and visitRequest take their dates as strings so bodies
// accept the same formats as the query parameters.
type enrollmentRequest struct {
	Enrollment
	LMP string `json:"lmp"`
}

func bindEnrollment(c echo.Context) (Enrollment, error) {
	var req enrollmentRequest
	if err := c.Bind(&req); err != nil {
		return Enrollment{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	lmp, err := parseDate("lmp", req.LMP)
	if err != nil {
		return Enrollment{}, err
	}
	e := req.Enrollment
	e.LMP = lmp
	return e, nil
}

type visitRequest struct {
	Visit
	VisitDate string `json:"visit_date"`
}

func bindVisit(c echo.Context) (Visit, error) {
	var req visitRequest
	if err := c.Bind(&req); err != nil {
		return Visit{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	date, err := parseDate("visit_date", req.VisitDate)
	if err != nil {
		return Visit{}, err
	}
	v := req.Visit
	v.VisitDate = date
	return v, nil
}

// -- Enrollment Handlers --

func (h *Handler) Enroll(c echo.Context) error {
	e, err := bindEnrollment(c)
	if err != nil {
		return err
	}
	if err := h.svc.Enroll(c.Request().Context(), &e); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) GetEnrollment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	e, err := h.svc.GetEnrollment(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) ListEnrollments(c echo.Context) error {
	pg := pagination.FromContext(c)
	ctx := c.Request().Context()
	var (
		items []*Enrollment
		total int
		err   error
	)
	if raw := c.QueryParam("patient_id"); raw != "" {
		pid, perr := uuid.Parse(raw)
		if perr != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		items, total, err = h.svc.ListEnrollmentsByPatient(ctx, pid, pg.Limit, pg.Offset)
	} else {
		items, total, err = h.svc.ListEnrollments(ctx, pg.Limit, pg.Offset)
	}
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewPage(items, total, pg, c.Request().URL))
}

func (h *Handler) UpdateEnrollment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	e, err := bindEnrollment(c)
	if err != nil {
		return err
	}
	e.ID = id
	if err := h.svc.UpdateEnrollment(c.Request().Context(), &e); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) DeleteEnrollment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteEnrollment(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Visit Handlers --

func (h *Handler) RecordVisit(c echo.Context) error {
	enrollmentID, err := parseID(c)
	if err != nil {
		return err
	}
	v, err := bindVisit(c)
	if err != nil {
		return err
	}
	v.EnrollmentID = enrollmentID
	if v.RecordedBy == nil {
		if uid := auth.UserIDFromContext(c.Request().Context()); uid != "" {
			v.RecordedBy = &uid
		}
	}
	av, err := h.svc.RecordVisit(c.Request().Context(), &v)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, av)
}

func (h *Handler) GetVisit(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	v, err := h.svc.GetVisit(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) ListVisits(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListVisits(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewPage(items, total, pg, c.Request().URL))
}

func (h *Handler) DeleteVisit(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteVisit(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Derived views --

func (h *Handler) Summary(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ref, err := parseDate("as_of", c.QueryParam("as_of"))
	if err != nil {
		return err
	}
	sum, err := h.svc.Summary(c.Request().Context(), id, ref)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sum)
}

func (h *Handler) RiskFactors(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ref, err := parseDate("as_of", c.QueryParam("as_of"))
	if err != nil {
		return err
	}
	factors, err := h.svc.RiskFactors(c.Request().Context(), id, ref)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"enrollment_id": id,
		"high_risk":     len(factors) > 0,
		"risk_factors":  factors,
	})
}

func (h *Handler) Reference(c echo.Context) error {
	return c.JSON(http.StatusOK, obstetric.ReferenceData())
}

type calculateRequest struct {
	LMP  string `json:"lmp"`
	AsOf string `json:"as_of"`
}

type calculateResponse struct {
	LMP  string `json:"lmp"`
	AsOf string `json:"as_of"`
	obstetric.Dating
}

func (h *Handler) Calculate(c echo.Context) error {
	var req calculateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.LMP == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "lmp is required")
	}
	lmp, err := parseDate("lmp", req.LMP)
	if err != nil {
		return err
	}
	ref, err := parseDate("as_of", req.AsOf)
	if err != nil {
		return err
	}
	ref = h.svc.asOf(ref)
	return c.JSON(http.StatusOK, calculateResponse{
		LMP:    lmp.Format(dateLayout),
		AsOf:   ref.Format(dateLayout),
		Dating: h.svc.Calculate(lmp, ref),
	})
}
