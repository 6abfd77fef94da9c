package neo

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

type feedServer struct {
	hits    atomic.Int32
	status  atomic.Int32
	body    []byte
	delay   time.Duration
	lastURL atomic.Value
}

func (fs *feedServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fs.hits.Add(1)
	fs.lastURL.Store(r.URL.String())
	if fs.delay > 0 {
		time.Sleep(fs.delay)
	}
	if status := int(fs.status.Load()); status != 0 && status != http.StatusOK {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(fs.body)
}

func newTestClient(t *testing.T, fs *feedServer) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(fs)
	t.Cleanup(srv.Close)

	opts := DefaultOptions()
	opts.BaseURL = srv.URL
	opts.APIKey = "SECRET_KEY"
	opts.RetryMax = 0
	opts.RateLimit = rate.Inf
	opts.HTTPClient = srv.Client()

	c := NewClient(opts, log.New(io.Discard, "", 0))
	c.now = func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.Local) }
	return c, srv
}

func TestClient_FetchSanitized(t *testing.T) {
	fs := &feedServer{body: loadFixture(t)}
	c, _ := newTestClient(t, fs)

	raw, err := c.FetchSanitized(context.Background(), "")
	if err != nil {
		t.Fatalf("FetchSanitized: %v", err)
	}
	if len(raw) == 0 {
		t.Fatal("empty body")
	}

	url, _ := fs.lastURL.Load().(string)
	for _, want := range []string{"/feed?", "start_date=2024-01-01", "end_date=2024-01-01", "api_key=SECRET_KEY"} {
		if !strings.Contains(url, want) {
			t.Errorf("request URL %q missing %q", url, want)
		}
	}
	if strings.Contains(string(raw), "SECRET_KEY") {
		t.Error("response leaks the API key")
	}
}

func TestClient_CachesByDate(t *testing.T) {
	fs := &feedServer{body: loadFixture(t)}
	c, _ := newTestClient(t, fs)

	for i := 0; i < 3; i++ {
		if _, err := c.Records(context.Background(), "2024-01-01"); err != nil {
			t.Fatalf("Records: %v", err)
		}
	}
	if got := fs.hits.Load(); got != 1 {
		t.Errorf("upstream hits = %d, expected 1", got)
	}

	c.now = func() time.Time { return time.Date(2024, 1, 1, 13, 0, 0, 0, time.Local) }
	if _, err := c.Records(context.Background(), "2024-01-01"); err != nil {
		t.Fatalf("Records: %v", err)
	}
	if got := fs.hits.Load(); got != 2 {
		t.Errorf("upstream hits after TTL = %d, expected 2", got)
	}
}

func TestClient_CacheDropsExpiredDates(t *testing.T) {
	fs := &feedServer{body: loadFixture(t)}
	c, _ := newTestClient(t, fs)

	for _, date := range []string{"2024-01-01", "2024-01-02", "2024-01-03"} {
		if _, err := c.FetchSanitized(context.Background(), date); err != nil {
			t.Fatalf("FetchSanitized(%s): %v", date, err)
		}
	}
	if got := c.cacheLen(); got != 3 {
		t.Fatalf("cache size = %d, expected 3", got)
	}

	c.now = func() time.Time { return time.Date(2024, 1, 1, 13, 0, 0, 0, time.Local) }
	if _, err := c.FetchSanitized(context.Background(), "2024-01-04"); err != nil {
		t.Fatalf("FetchSanitized: %v", err)
	}
	if got := c.cacheLen(); got != 1 {
		t.Errorf("cache size after TTL = %d, expected 1", got)
	}
}

func TestClient_CacheIsBounded(t *testing.T) {
	fs := &feedServer{body: loadFixture(t)}
	c, _ := newTestClient(t, fs)

	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < maxCacheEntries+10; i++ {
		date := start.AddDate(0, 0, i).Format(DateLayout)
		if _, err := c.FetchSanitized(context.Background(), date); err != nil {
			t.Fatalf("FetchSanitized(%s): %v", date, err)
		}
	}
	if got := c.cacheLen(); got != maxCacheEntries {
		t.Errorf("cache size = %d, expected %d", got, maxCacheEntries)
	}

	// Последняя дата осталась в кэше
	hits := fs.hits.Load()
	last := start.AddDate(0, 0, maxCacheEntries+9).Format(DateLayout)
	if _, err := c.FetchSanitized(context.Background(), last); err != nil {
		t.Fatalf("FetchSanitized(%s): %v", last, err)
	}
	if fs.hits.Load() != hits {
		t.Error("most recent date was evicted")
	}
}

func TestClient_ConcurrentFetchesShareRequest(t *testing.T) {
	fs := &feedServer{body: loadFixture(t), delay: 100 * time.Millisecond}
	c, _ := newTestClient(t, fs)
	c.ttl = 0 // только singleflight

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.FetchSanitized(context.Background(), "2024-01-01"); err != nil {
				t.Errorf("FetchSanitized: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := fs.hits.Load(); got > 2 {
		t.Errorf("upstream hits = %d, expected concurrent requests to be merged", got)
	}
}

func TestClient_UpstreamError(t *testing.T) {
	fs := &feedServer{body: loadFixture(t)}
	fs.status.Store(http.StatusInternalServerError)
	c, _ := newTestClient(t, fs)

	var observed error
	c.observer = func(_ time.Duration, err error) { observed = err }

	_, err := c.Records(context.Background(), "2024-01-01")
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("Expected ErrUpstream, got %v", err)
	}
	if !errors.Is(observed, ErrUpstream) {
		t.Errorf("observer got %v", observed)
	}

	// Ошибки не кэшируются
	fs.status.Store(http.StatusOK)
	if _, err := c.Records(context.Background(), "2024-01-01"); err != nil {
		t.Errorf("retry after upstream recovery failed: %v", err)
	}
}

func TestClient_BadDate(t *testing.T) {
	fs := &feedServer{body: loadFixture(t)}
	c, _ := newTestClient(t, fs)

	for _, date := range []string{"2024-13-01", "01/01/2024", "tomorrow"} {
		if _, err := c.Records(context.Background(), date); !errors.Is(err, ErrBadDate) {
			t.Errorf("date %q: expected ErrBadDate, got %v", date, err)
		}
	}
	if fs.hits.Load() != 0 {
		t.Error("bad dates must not reach upstream")
	}
}

func TestClient_CancelledContext(t *testing.T) {
	fs := &feedServer{body: loadFixture(t), delay: 200 * time.Millisecond}
	c, _ := newTestClient(t, fs)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := c.FetchSanitized(ctx, "2024-01-01"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline error, got %v", err)
	}
}

func TestNormalizeDate(t *testing.T) {
	now := time.Date(2025, 3, 9, 23, 59, 0, 0, time.Local)

	if got, err := NormalizeDate("", now); err != nil || got != "2025-03-09" {
		t.Errorf("NormalizeDate(\"\") = %q, %v", got, err)
	}
	if got, err := NormalizeDate("2024-02-29", now); err != nil || got != "2024-02-29" {
		t.Errorf("NormalizeDate(leap day) = %q, %v", got, err)
	}
	if _, err := NormalizeDate("2023-02-29", now); !errors.Is(err, ErrBadDate) {
		t.Errorf("non-leap Feb 29 must fail, got %v", err)
	}
}

func TestRedact(t *testing.T) {
	if got := redact("GET https://x/feed?api_key=abc failed", "abc"); strings.Contains(got, "abc") {
		t.Errorf("redact left key in %q", got)
	}
}
