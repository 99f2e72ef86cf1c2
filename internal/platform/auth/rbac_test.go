package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestHasRole(t *testing.T) {
	tests := []struct {
		granted []string
		want    []string
		ok      bool
	}{
		{[]string{RoleNurse}, []string{RoleNurse, RoleMidwife}, true},
		{[]string{RoleRecords}, []string{RoleNurse}, false},
		{[]string{RoleAdmin}, []string{RoleMidwife}, true},
		{nil, []string{RoleNurse}, false},
		{[]string{RoleClinician}, nil, false},
	}
	for _, tt := range tests {
		if got := HasRole(tt.granted, tt.want...); got != tt.ok {
			t.Errorf("HasRole(%v, %v) = %v, want %v", tt.granted, tt.want, got, tt.ok)
		}
	}
}

func callWithRoles(roles []string, mw echo.MiddlewareFunc) (*httptest.ResponseRecorder, error) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), UserRolesKey, roles))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	err := mw(func(c echo.Context) error { return c.String(http.StatusOK, "ok") })(c)
	return rec, err
}

func TestRequireRole_Allowed(t *testing.T) {
	rec, err := callWithRoles([]string{RoleMidwife}, RequireRole(RoleClinician, RoleMidwife))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestRequireRole_AdminOverride(t *testing.T) {
	if _, err := callWithRoles([]string{RoleAdmin}, RequireRole(RoleMidwife)); err != nil {
		t.Fatalf("expected admin to pass, got %v", err)
	}
}

func TestRequireRole_Denied(t *testing.T) {
	_, err := callWithRoles([]string{RoleRecords}, RequireRole(RoleClinician, RoleNurse))
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", httpErr.Code)
	}
}
