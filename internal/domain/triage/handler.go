package triage

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carepoint/clinic/internal/platform/auth"
	"github.com/carepoint/clinic/pkg/cdss/vitals"
	"github.com/carepoint/clinic/pkg/pagination"
)

// maxSheetBytes bounds uploaded spreadsheets.
const maxSheetBytes = 10 << 20

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	care := api.Group("", auth.RequireRole(auth.RoleClinician, auth.RoleNurse, auth.RoleMidwife))
	care.GET("/vitals/alerts", h.ListAlerts)
	care.GET("/vitals/:id", h.GetVitals)
	care.GET("/vitals/:id/assessment", h.GetAssessment)
	care.GET("/patients/:id/vitals", h.ListByPatient)
	care.POST("/vitals", h.RecordVitals)
	care.POST("/vitals/assess", h.Assess)
	care.POST("/vitals/assess/sheet", h.AssessSheet)

	api.DELETE("/vitals/:id", h.DeleteVitals, auth.RequireRole(auth.RoleClinician))
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

func (h *Handler) RecordVitals(c echo.Context) error {
	var v VitalSigns
	if err := c.Bind(&v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if v.RecordedBy == nil {
		if uid := auth.UserIDFromContext(c.Request().Context()); uid != "" {
			v.RecordedBy = &uid
		}
	}
	assessed, err := h.svc.RecordVitals(c.Request().Context(), &v)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, assessed)
}

func (h *Handler) GetVitals(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	v, err := h.svc.GetVitals(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) GetAssessment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.GetAssessed(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) DeleteVitals(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteVitals(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListByPatient(c echo.Context) error {
	pid, err := parseID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), pid, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewPage(items, total, pg, c.Request().URL))
}

// ListAlerts accepts hours (window, default 24) and level (warning|critical).
func (h *Handler) ListAlerts(c echo.Context) error {
	window := DefaultAlertWindow
	if raw := c.QueryParam("hours"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil || hours <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "hours must be a positive integer")
		}
		window = time.Duration(hours) * time.Hour
	}
	minLevel := vitals.Warning
	if raw := c.QueryParam("level"); raw != "" {
		lvl, err := vitals.ParseLevel(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		minLevel = lvl
	}

	alerts, err := h.svc.ListAlerts(c.Request().Context(), window, minLevel)
	if err != nil {
		return httpError(err)
	}

	pg := pagination.FromContext(c)
	total := len(alerts)
	start, end := min(pg.Offset, total), min(pg.Offset+pg.Limit, total)
	return c.JSON(http.StatusOK, pagination.NewPage(alerts[start:end], total, pg, c.Request().URL))
}

func (h *Handler) Assess(c echo.Context) error {
	var r vitals.Reading
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, h.svc.Assess(r))
}

// AssessSheet classifies every row of an uploaded workbook and returns the
// annotated workbook.
func (h *Handler) AssessSheet(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart field \"file\" is required")
	}
	if fh.Size > maxSheetBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "spreadsheet too large")
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer f.Close()

	out, err := AssessWorkbook(f)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="triage-assessment.xlsx"`)
	return c.Blob(http.StatusOK, SheetContentType, out)
}
