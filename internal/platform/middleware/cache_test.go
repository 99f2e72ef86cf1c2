package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func serve(e *echo.Echo, h echo.HandlerFunc, method, target string, headers map[string]string) (*httptest.ResponseRecorder, error) {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	return rec, h(e.NewContext(req, rec))
}

func TestETagMiddleware_Headers(t *testing.T) {
	e := echo.New()
	h := ETagMiddleware(DefaultCacheConfig())(func(c echo.Context) error {
		return c.String(http.StatusOK, "reference")
	})

	rec, err := serve(e, h, http.MethodGet, "/api/v1/anc/reference", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	etag := rec.Header().Get("ETag")
	if !strings.HasPrefix(etag, `W/"`) || !strings.HasSuffix(etag, `"`) {
		t.Errorf("expected weak ETag, got %q", etag)
	}
	if got := rec.Header().Get("Cache-Control"); got != "private, max-age=300" {
		t.Errorf("unexpected Cache-Control %q", got)
	}
	if got := rec.Header().Get("Vary"); got != "Accept, Authorization" {
		t.Errorf("unexpected Vary %q", got)
	}
	if rec.Body.String() != "reference" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestETagMiddleware_Conditional(t *testing.T) {
	e := echo.New()
	h := ETagMiddleware(CacheConfig{MaxAge: 60})(func(c echo.Context) error {
		return c.String(http.StatusOK, "same body")
	})

	first, _ := serve(e, h, http.MethodGet, "/", nil)
	etag := first.Header().Get("ETag")

	rec, err := serve(e, h, http.MethodGet, "/", map[string]string{"If-None-Match": etag})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNotModified {
		t.Errorf("expected 304, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("expected empty body on 304, got %q", rec.Body.String())
	}

	rec, _ = serve(e, h, http.MethodGet, "/", map[string]string{"If-None-Match": `W/"other"`})
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 on mismatch, got %d", rec.Code)
	}
	if got := rec.Header().Get("Cache-Control"); got != "public, max-age=60" {
		t.Errorf("unexpected Cache-Control %q", got)
	}
}

func TestETagMiddleware_Skips(t *testing.T) {
	e := echo.New()
	cfg := DefaultCacheConfig()
	cfg.ExcludePaths = []string{"/api/v1/vitals"}

	ok := ETagMiddleware(cfg)(func(c echo.Context) error { return c.String(http.StatusCreated, "x") })
	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/v1/anc"},
		{http.MethodGet, "/api/v1/vitals/alerts"},
	} {
		rec, _ := serve(e, ok, tc.method, tc.path, nil)
		if rec.Header().Get("ETag") != "" {
			t.Errorf("%s %s: expected no ETag", tc.method, tc.path)
		}
	}

	failing := ETagMiddleware(cfg)(func(c echo.Context) error { return c.String(http.StatusNotFound, "missing") })
	rec, _ := serve(e, failing, http.MethodGet, "/api/v1/anc/x", nil)
	if rec.Code != http.StatusNotFound || rec.Header().Get("ETag") != "" {
		t.Errorf("expected untouched 404, got %d etag=%q", rec.Code, rec.Header().Get("ETag"))
	}
}

func TestInMemoryCacheStore(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryCacheStore()

	s.Set(ctx, "k", []byte("v"), time.Minute)
	if v, ok := s.Get(ctx, "k"); !ok || string(v) != "v" {
		t.Fatalf("expected hit, got %q %v", v, ok)
	}
	s.Delete(ctx, "k")
	if _, ok := s.Get(ctx, "k"); ok {
		t.Error("expected miss after delete")
	}

	s.Set(ctx, "short", []byte("v"), time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	if _, ok := s.Get(ctx, "short"); ok {
		t.Error("expected expired entry to miss")
	}
	if s.Len() != 0 {
		t.Errorf("expected expired entry removed, len=%d", s.Len())
	}
}

func TestInMemoryCacheStore_Cleanup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewInMemoryCacheStore()
	s.Set(ctx, "a", []byte("1"), time.Millisecond)
	s.Set(ctx, "b", []byte("2"), time.Hour)
	s.StartCleanup(ctx, 5*time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for s.Len() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if s.Len() != 1 {
		t.Errorf("expected only live entry to remain, len=%d", s.Len())
	}
}

func TestInMemoryCacheStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryCacheStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i%26))
			s.Set(ctx, key, []byte{byte(i)}, time.Minute)
			s.Get(ctx, key)
			if i%7 == 0 {
				s.Delete(ctx, key)
			}
		}(i)
	}
	wg.Wait()
}

func TestResponseCache_MissThenHit(t *testing.T) {
	e := echo.New()
	calls := 0
	h := ResponseCacheMiddleware(ResponseCacheConfig{Store: NewInMemoryCacheStore(), TTL: time.Minute})(
		func(c echo.Context) error {
			calls++
			return c.JSON(http.StatusOK, map[string]int{"n": 1})
		})

	rec, err := serve(e, h, http.MethodGet, "/api/v1/anc/reference?x=1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Header().Get("X-Cache") != "MISS" {
		t.Errorf("expected MISS, got %q", rec.Header().Get("X-Cache"))
	}

	rec, _ = serve(e, h, http.MethodGet, "/api/v1/anc/reference?x=1", nil)
	if rec.Header().Get("X-Cache") != "HIT" {
		t.Errorf("expected HIT, got %q", rec.Header().Get("X-Cache"))
	}
	if !strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		t.Errorf("expected cached content type, got %q", rec.Header().Get(echo.HeaderContentType))
	}
	if strings.TrimSpace(rec.Body.String()) != `{"n":1}` {
		t.Errorf("unexpected cached body %q", rec.Body.String())
	}
	if calls != 1 {
		t.Errorf("expected handler to run once, ran %d times", calls)
	}

	serve(e, h, http.MethodGet, "/api/v1/anc/reference?x=2", nil)
	if calls != 2 {
		t.Errorf("expected query string to be part of the key")
	}
}

func TestResponseCache_Authorization(t *testing.T) {
	e := echo.New()
	handler := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }
	auth := map[string]string{"Authorization": "Bearer t"}

	private := ResponseCacheMiddleware(ResponseCacheConfig{Store: NewInMemoryCacheStore(), TTL: time.Minute})(handler)
	rec, _ := serve(e, private, http.MethodGet, "/", auth)
	if rec.Header().Get("X-Cache") != "SKIP" {
		t.Errorf("expected SKIP for authorized request, got %q", rec.Header().Get("X-Cache"))
	}

	shared := ResponseCacheMiddleware(ResponseCacheConfig{Store: NewInMemoryCacheStore(), TTL: time.Minute, Shared: true})(handler)
	serve(e, shared, http.MethodGet, "/", auth)
	rec, _ = serve(e, shared, http.MethodGet, "/", auth)
	if rec.Header().Get("X-Cache") != "HIT" {
		t.Errorf("expected shared response to be cached, got %q", rec.Header().Get("X-Cache"))
	}
}

func TestResponseCache_DoesNotStoreErrors(t *testing.T) {
	e := echo.New()
	store := NewInMemoryCacheStore()
	h := ResponseCacheMiddleware(ResponseCacheConfig{Store: store, TTL: time.Minute})(func(c echo.Context) error {
		return c.String(http.StatusInternalServerError, "boom")
	})
	serve(e, h, http.MethodGet, "/", nil)
	if store.Len() != 0 {
		t.Errorf("expected nothing cached, len=%d", store.Len())
	}
}

func TestEtagMatch(t *testing.T) {
	tests := []struct {
		header, etag string
		want         bool
	}{
		{`W/"abc"`, `W/"abc"`, true},
		{`"abc"`, `W/"abc"`, true},
		{`"x", W/"abc"`, `W/"abc"`, true},
		{`*`, `W/"abc"`, true},
		{`"abd"`, `W/"abc"`, false},
	}
	for _, tt := range tests {
		if got := etagMatch(tt.header, tt.etag); got != tt.want {
			t.Errorf("etagMatch(%q, %q) = %v, want %v", tt.header, tt.etag, got, tt.want)
		}
	}
}

func TestEntryRoundTrip(t *testing.T) {
	ct, body, ok := decodeEntry(encodeEntry("application/json", []byte("{\n}")))
	if !ok || ct != "application/json" || string(body) != "{\n}" {
		t.Errorf("unexpected decode: %q %q %v", ct, body, ok)
	}
	if _, _, ok := decodeEntry([]byte("no separator")); ok {
		t.Error("expected malformed entry to be rejected")
	}
}
