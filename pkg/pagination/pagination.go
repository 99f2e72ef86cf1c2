package pagination

import (
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type Params struct {
	Limit  int
	Offset int
}

// FromContext reads limit/offset, falling back to page (1-based) when no
// offset is given.
func FromContext(c echo.Context) Params {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}

	offset, err := strconv.Atoi(c.QueryParam("offset"))
	if err != nil {
		if page, perr := strconv.Atoi(c.QueryParam("page")); perr == nil && page > 1 {
			offset = (page - 1) * limit
		}
	}
	if offset < 0 {
		offset = 0
	}
	return Params{Limit: limit, Offset: offset}
}

func (p Params) HasNext(total int) bool { return p.Offset+p.Limit < total }

func (p Params) HasPrevious() bool { return p.Offset > 0 }

// Page is a window of a larger result set.
type Page[T any] struct {
	Data    []T    `json:"data"`
	Total   int    `json:"total"`
	Limit   int    `json:"limit"`
	Offset  int    `json:"offset"`
	HasMore bool   `json:"has_more"`
	Next    string `json:"next,omitempty"`
	Prev    string `json:"prev,omitempty"`
}

// NewPage wraps items. Data is never null in JSON. When u is non-nil the
// next and previous links keep its other query parameters.
func NewPage[T any](items []T, total int, p Params, u *url.URL) *Page[T] {
	if items == nil {
		items = []T{}
	}
	page := &Page[T]{
		Data:    items,
		Total:   total,
		Limit:   p.Limit,
		Offset:  p.Offset,
		HasMore: p.HasNext(total),
	}
	if u == nil {
		return page
	}
	if page.HasMore {
		page.Next = link(u, p.Limit, p.Offset+p.Limit)
	}
	if p.HasPrevious() {
		prev := p.Offset - p.Limit
		if prev < 0 {
			prev = 0
		}
		page.Prev = link(u, p.Limit, prev)
	}
	return page
}

func link(u *url.URL, limit, offset int) string {
	q := u.Query()
	q.Del("page")
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	out := url.URL{Path: u.Path, RawQuery: q.Encode()}
	return out.String()
}
