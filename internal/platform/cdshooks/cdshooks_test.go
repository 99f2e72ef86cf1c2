package cdshooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func newTestServer(t *testing.T) (*echo.Echo, *Registry) {
	t.Helper()
	e := echo.New()
	reg := NewRegistry(zerolog.Nop())
	reg.Register(Service{ID: "echo-summary", Hook: "patient-view", Description: "echoes"}, func(ctx context.Context, req Request) (*Response, error) {
		var v struct {
			Summary string `json:"summary"`
		}
		found, err := req.DecodePrefetch("note", &v)
		if err != nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		if !found {
			return nil, nil
		}
		return &Response{Cards: []Card{NewCard(v.Summary, req.ContextString("patientId"), IndicatorInfo, Source{Label: "test"})}}, nil
	})
	reg.Register(Service{ID: "broken", Hook: "order-select", Description: "fails"}, func(context.Context, Request) (*Response, error) {
		return nil, errors.New("boom")
	})
	reg.RegisterRoutes(e.Group(""))
	return e, reg
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestDiscovery_ListsInRegistrationOrder(t *testing.T) {
	e, _ := newTestServer(t)
	rec := do(e, http.MethodGet, "/cds-services", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Services []Service `json:"services"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Services) != 2 || body.Services[0].ID != "echo-summary" || body.Services[1].ID != "broken" {
		t.Errorf("unexpected services: %+v", body.Services)
	}
}

func TestRegister_ReplaceKeepsPosition(t *testing.T) {
	_, reg := newTestServer(t)
	reg.Register(Service{ID: "echo-summary", Hook: "patient-view", Description: "v2"}, nil)
	svcs := reg.Services()
	if len(svcs) != 2 || svcs[0].Description != "v2" {
		t.Errorf("expected replacement in place, got %+v", svcs)
	}
}

func TestInvoke(t *testing.T) {
	e, _ := newTestServer(t)

	tests := []struct {
		name     string
		path     string
		body     string
		wantCode int
		wantCard string
	}{
		{"unknown service", "/cds-services/nope", `{}`, http.StatusNotFound, ""},
		{"bad json", "/cds-services/echo-summary", `{`, http.StatusBadRequest, ""},
		{"hook mismatch", "/cds-services/echo-summary", `{"hook":"order-select","hookInstance":"1"}`, http.StatusBadRequest, ""},
		{"missing instance", "/cds-services/echo-summary", `{"hook":"patient-view"}`, http.StatusBadRequest, ""},
		{"no prefetch gives empty cards", "/cds-services/echo-summary", `{"hook":"patient-view","hookInstance":"1"}`, http.StatusOK, ""},
		{"card", "/cds-services/echo-summary",
			`{"hook":"patient-view","hookInstance":"1","context":{"patientId":"p1"},"prefetch":{"note":{"summary":"hello"}}}`,
			http.StatusOK, "hello"},
		{"handler error", "/cds-services/broken", `{"hook":"order-select","hookInstance":"1"}`, http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(e, http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d: %s", tt.wantCode, rec.Code, rec.Body.String())
			}
			if rec.Code != http.StatusOK {
				return
			}
			var resp Response
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Cards == nil {
				t.Fatal("cards must be an array, not null")
			}
			if tt.wantCard == "" {
				if len(resp.Cards) != 0 {
					t.Errorf("expected no cards, got %+v", resp.Cards)
				}
				return
			}
			if len(resp.Cards) != 1 || resp.Cards[0].Summary != tt.wantCard || resp.Cards[0].Detail != "p1" {
				t.Errorf("unexpected cards %+v", resp.Cards)
			}
			if resp.Cards[0].UUID == "" {
				t.Error("expected card uuid")
			}
		})
	}
}

func TestFeedback(t *testing.T) {
	e, reg := newTestServer(t)

	var logged bytes.Buffer
	reg.logger = zerolog.New(&logged)
	rec := do(e, http.MethodPost, "/cds-services/echo-summary/feedback",
		`{"feedback":[{"card":"c1","outcome":"accepted"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(logged.String(), `"outcome":"accepted"`) {
		t.Errorf("expected feedback to be logged, got %s", logged.String())
	}

	var got []Feedback
	reg.OnFeedback("echo-summary", func(_ context.Context, id string, fb Feedback) error {
		got = append(got, fb)
		return nil
	})
	do(e, http.MethodPost, "/cds-services/echo-summary/feedback",
		`{"feedback":[{"card":"c1","outcome":"accepted"},{"card":"c2","outcome":"overridden"}]}`)
	if len(got) != 2 || got[1].Outcome != "overridden" {
		t.Errorf("unexpected feedback %+v", got)
	}

	if rec := do(e, http.MethodPost, "/cds-services/nope/feedback", `{}`); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if rec := do(e, http.MethodPost, "/cds-services/echo-summary/feedback", `[`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestDecodePrefetch_Null(t *testing.T) {
	req := Request{Prefetch: map[string]json.RawMessage{"vitals": json.RawMessage("null")}}
	var v map[string]interface{}
	found, err := req.DecodePrefetch("vitals", &v)
	if err != nil || found {
		t.Errorf("expected null prefetch to be absent, got found=%v err=%v", found, err)
	}
}
