// Package cdshooks serves HL7 CDS Hooks 2.0 discovery and invocation. Domains
// register a service per hook and return cards for the calling EHR to render.
package cdshooks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const (
	IndicatorInfo     = "info"
	IndicatorWarning  = "warning"
	IndicatorCritical = "critical"
)

type Service struct {
	ID          string            `json:"id"`
	Hook        string            `json:"hook"`
	Title       string            `json:"title,omitempty"`
	Description string            `json:"description"`
	Prefetch    map[string]string `json:"prefetch,omitempty"`
}

type Request struct {
	Hook         string                     `json:"hook"`
	HookInstance string                     `json:"hookInstance"`
	FHIRServer   string                     `json:"fhirServer,omitempty"`
	Context      map[string]interface{}     `json:"context"`
	Prefetch     map[string]json.RawMessage `json:"prefetch,omitempty"`
}

// ContextString returns a string-valued context entry.
func (r Request) ContextString(key string) string {
	s, _ := r.Context[key].(string)
	return s
}

// DecodePrefetch unmarshals the prefetch entry key into v. It reports false
// when the entry is absent or null.
func (r Request) DecodePrefetch(key string, v interface{}) (bool, error) {
	raw, ok := r.Prefetch[key]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("prefetch %s: %w", key, err)
	}
	return true, nil
}

type Card struct {
	UUID        string       `json:"uuid,omitempty"`
	Summary     string       `json:"summary"`
	Detail      string       `json:"detail,omitempty"`
	Indicator   string       `json:"indicator"`
	Source      Source       `json:"source"`
	Suggestions []Suggestion `json:"suggestions,omitempty"`
	Links       []Link       `json:"links,omitempty"`
}

type Source struct {
	Label string `json:"label"`
	URL   string `json:"url,omitempty"`
}

type Suggestion struct {
	Label         string `json:"label"`
	UUID          string `json:"uuid,omitempty"`
	IsRecommended bool   `json:"isRecommended,omitempty"`
}

type Link struct {
	Label string `json:"label"`
	URL   string `json:"url"`
	Type  string `json:"type"`
}

type Response struct {
	Cards []Card `json:"cards"`
}

// NewCard builds a card with a fresh uuid.
func NewCard(summary, detail, indicator string, source Source) Card {
	return Card{
		UUID:      uuid.NewString(),
		Summary:   summary,
		Detail:    detail,
		Indicator: indicator,
		Source:    source,
	}
}

type Feedback struct {
	Card             string `json:"card"`
	Outcome          string `json:"outcome"`
	OutcomeTimestamp string `json:"outcomeTimestamp,omitempty"`
}

type HandlerFunc func(ctx context.Context, req Request) (*Response, error)

type FeedbackFunc func(ctx context.Context, serviceID string, fb Feedback) error

type entry struct {
	service  Service
	handle   HandlerFunc
	feedback FeedbackFunc
}

// Registry holds the registered services in registration order.
type Registry struct {
	logger zerolog.Logger

	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
}

func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{logger: logger, entries: make(map[string]*entry)}
}

// Register adds or replaces a service.
func (r *Registry) Register(svc Service, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[svc.ID]; ok {
		e.service, e.handle = svc, h
		return
	}
	r.entries[svc.ID] = &entry{service: svc, handle: h}
	r.order = append(r.order, svc.ID)
}

// OnFeedback overrides the default feedback behaviour, which is to log it.
func (r *Registry) OnFeedback(serviceID string, fn FeedbackFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[serviceID]; ok {
		e.feedback = fn
	}
}

func (r *Registry) lookup(id string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

func (r *Registry) Services() []Service {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Service, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id].service)
	}
	return out
}

func (r *Registry) RegisterRoutes(g *echo.Group) {
	g.GET("/cds-services", r.Discovery)
	g.POST("/cds-services/:id", r.Invoke)
	g.POST("/cds-services/:id/feedback", r.Feedback)
}

func (r *Registry) Discovery(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string][]Service{"services": r.Services()})
}

func (r *Registry) Invoke(c echo.Context) error {
	id := c.Param("id")
	e, ok := r.lookup(id)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("unknown CDS service %q", id))
	}

	var req Request
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Hook != e.service.Hook {
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("service %s handles %q, not %q", id, e.service.Hook, req.Hook))
	}
	if req.HookInstance == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "hookInstance is required")
	}

	resp, err := e.handle(c.Request().Context(), req)
	if err != nil {
		return err
	}
	if resp == nil || resp.Cards == nil {
		resp = &Response{Cards: []Card{}}
	}
	return c.JSON(http.StatusOK, resp)
}

func (r *Registry) Feedback(c echo.Context) error {
	id := c.Param("id")
	e, ok := r.lookup(id)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("unknown CDS service %q", id))
	}

	var body struct {
		Feedback []Feedback `json:"feedback"`
	}
	if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid feedback body")
	}

	ctx := c.Request().Context()
	for _, fb := range body.Feedback {
		if e.feedback == nil {
			r.logger.Info().
				Str("service", id).
				Str("card", fb.Card).
				Str("outcome", fb.Outcome).
				Msg("cds feedback")
			continue
		}
		if err := e.feedback(ctx, id, fb); err != nil {
			return err
		}
	}
	return c.NoContent(http.StatusOK)
}
