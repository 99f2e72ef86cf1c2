package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// CacheConfig controls the validators and Cache-Control emitted for GETs.
type CacheConfig struct {
	MaxAge       int
	Private      bool
	VaryHeaders  []string
	ExcludePaths []string
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		MaxAge:      300,
		Private:     true,
		VaryHeaders: []string{"Accept", "Authorization"},
	}
}

// CacheStore is a response cache backend. A failing backend behaves as a miss.
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

type memEntry struct {
	data      []byte
	expiresAt time.Time
}

// InMemoryCacheStore is a process-local CacheStore with lazy expiry.
type InMemoryCacheStore struct {
	mu      sync.RWMutex
	entries map[string]memEntry
}

func NewInMemoryCacheStore() *InMemoryCacheStore {
	return &InMemoryCacheStore{entries: make(map[string]memEntry)}
}

func (s *InMemoryCacheStore) Get(_ context.Context, key string) ([]byte, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, false
	}
	return e.data, true
}

func (s *InMemoryCacheStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	s.mu.Lock()
	s.entries[key] = memEntry{data: value, expiresAt: time.Now().Add(ttl)}
	s.mu.Unlock()
}

func (s *InMemoryCacheStore) Delete(_ context.Context, key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

func (s *InMemoryCacheStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// StartCleanup evicts expired entries every interval until ctx is done.
func (s *InMemoryCacheStore) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.mu.Lock()
				for k, e := range s.entries {
					if now.After(e.expiresAt) {
						delete(s.entries, k)
					}
				}
				s.mu.Unlock()
			}
		}
	}()
}

// capture holds the response until the middleware decides what to send.
type capture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (w *capture) Write(b []byte) (int, error) { return w.body.Write(b) }
func (w *capture) WriteHeader(code int)        { w.status = code }

func (w *capture) flush() error {
	w.ResponseWriter.WriteHeader(w.status)
	_, err := w.ResponseWriter.Write(w.body.Bytes())
	return err
}

// buffer runs next with the response captured. On handler error the original
// writer is restored and nothing is written.
func buffer(c echo.Context, next echo.HandlerFunc) (*capture, error) {
	res := c.Response()
	orig := res.Writer
	w := &capture{ResponseWriter: orig, status: http.StatusOK}
	res.Writer = w
	err := next(c)
	res.Writer = orig
	return w, err
}

// ETagMiddleware adds a weak ETag, Cache-Control and Vary to successful GET
// responses and answers a matching If-None-Match with 304.
func ETagMiddleware(cfg CacheConfig) echo.MiddlewareFunc {
	cacheControl := buildCacheControl(cfg)
	vary := strings.Join(cfg.VaryHeaders, ", ")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if (req.Method != http.MethodGet && req.Method != http.MethodHead) || excluded(req.URL.Path, cfg.ExcludePaths) {
				return next(c)
			}

			w, err := buffer(c, next)
			if err != nil {
				return err
			}
			if w.status >= http.StatusBadRequest {
				return w.flush()
			}

			h := c.Response().Header()
			h.Set("Cache-Control", cacheControl)
			if vary != "" {
				h.Set("Vary", vary)
			}
			etag := computeETag(w.body.Bytes())
			h.Set("ETag", etag)

			if inm := req.Header.Get("If-None-Match"); inm != "" && etagMatch(inm, etag) {
				h.Del(echo.HeaderContentLength)
				c.Response().Status = http.StatusNotModified
				w.ResponseWriter.WriteHeader(http.StatusNotModified)
				return nil
			}
			return w.flush()
		}
	}
}

// ResponseCacheConfig configures ResponseCacheMiddleware.
type ResponseCacheConfig struct {
	Store CacheStore
	TTL   time.Duration
	// Shared marks responses that do not depend on the caller, so
	// authenticated requests may be served from the cache.
	Shared bool
}

// ResponseCacheMiddleware serves repeated GETs from a CacheStore keyed on
// path, query and Accept.
func ResponseCacheMiddleware(cfg ResponseCacheConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Method != http.MethodGet {
				return next(c)
			}
			h := c.Response().Header()
			if !cfg.Shared && req.Header.Get(echo.HeaderAuthorization) != "" {
				h.Set("X-Cache", "SKIP")
				return next(c)
			}

			ctx := req.Context()
			key := cacheKey(req.Method, req.URL.RequestURI(), req.Header.Get(echo.HeaderAccept))
			if raw, ok := cfg.Store.Get(ctx, key); ok {
				if ct, body, ok := decodeEntry(raw); ok {
					h.Set("X-Cache", "HIT")
					return c.Blob(http.StatusOK, ct, body)
				}
			}

			w, err := buffer(c, next)
			if err != nil {
				return err
			}
			if w.status == http.StatusOK {
				cfg.Store.Set(ctx, key, encodeEntry(h.Get(echo.HeaderContentType), w.body.Bytes()), cfg.TTL)
			}
			h.Set("X-Cache", "MISS")
			return w.flush()
		}
	}
}

// cache entries are "<content-type>\n<body>"
func encodeEntry(contentType string, body []byte) []byte {
	out := make([]byte, 0, len(contentType)+1+len(body))
	out = append(out, contentType...)
	out = append(out, '\n')
	return append(out, body...)
}

func decodeEntry(raw []byte) (string, []byte, bool) {
	i := bytes.IndexByte(raw, '\n')
	if i < 0 {
		return "", nil, false
	}
	return string(raw[:i]), raw[i+1:], true
}

func computeETag(body []byte) string {
	sum := sha256.Sum256(body)
	return `W/"` + hex.EncodeToString(sum[:16]) + `"`
}

func cacheKey(method, uri, accept string) string {
	return "resp:" + method + ":" + uri + ":" + accept
}

func excluded(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func buildCacheControl(cfg CacheConfig) string {
	scope := "public"
	if cfg.Private {
		scope = "private"
	}
	return fmt.Sprintf("%s, max-age=%d", scope, cfg.MaxAge)
}

// etagMatch compares weakly, accepts lists and the "*" wildcard.
func etagMatch(header, etag string) bool {
	header = strings.TrimSpace(header)
	if header == "*" {
		return true
	}
	want := strings.TrimPrefix(etag, "W/")
	for _, candidate := range strings.Split(header, ",") {
		if strings.TrimPrefix(strings.TrimSpace(candidate), "W/") == want {
			return true
		}
	}
	return false
}
