package neo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/go-querystring/query"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"neo-viz/backend/internal/world"
)

const (
	DefaultBaseURL = "https://api.nasa.gov/neo/rest/v1"
	DemoKey        = "DEMO_KEY"

	maxFeedBytes = 16 << 20
	// Число дат в кэше, старейшие вытесняются
	maxCacheEntries = 64
)

// ErrUpstream NeoWs ответил ошибкой или недоступен
var ErrUpstream = errors.New("neows upstream error")

// FeedQuery параметры запроса /feed
type FeedQuery struct {
	StartDate string `url:"start_date"`
	EndDate   string `url:"end_date"`
	APIKey    string `url:"api_key"`
}

// FetchObserver получает длительность и результат каждого обращения к NeoWs
type FetchObserver func(duration time.Duration, err error)

// Options настройки клиента
type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	RetryMax   int
	RateLimit  rate.Limit // Запросов в секунду к NeoWs
	RateBurst  int
	CacheTTL   time.Duration
	Observer   FetchObserver
	HTTPClient *http.Client
}

// DefaultOptions значения по умолчанию
func DefaultOptions() Options {
	return Options{
		BaseURL:   DefaultBaseURL,
		APIKey:    DemoKey,
		Timeout:   15 * time.Second,
		RetryMax:  3,
		RateLimit: rate.Limit(1),
		RateBurst: 5,
		CacheTTL:  10 * time.Minute,
	}
}

type cacheEntry struct {
	raw     []byte
	fetched time.Time
}

// Client получает ленту NeoWs. Одновременные запросы одной даты
// объединяются, успешные ответы кэшируются на CacheTTL.
type Client struct {
	http     *retryablehttp.Client
	baseURL  string
	apiKey   string
	limiter  *rate.Limiter
	group    singleflight.Group
	ttl      time.Duration
	observer FetchObserver
	tracer   trace.Tracer
	logger   *log.Logger
	now      func() time.Time

	cacheMu sync.RWMutex
	cache   map[string]cacheEntry
}

// NewClient создает клиент NeoWs
func NewClient(opts Options, logger *log.Logger) *Client {
	defaults := DefaultOptions()
	if opts.BaseURL == "" {
		opts.BaseURL = defaults.BaseURL
	}
	if opts.APIKey == "" {
		opts.APIKey = defaults.APIKey
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.RetryMax < 0 {
		opts.RetryMax = 0
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaults.RateLimit
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = defaults.RateBurst
	}
	if logger == nil {
		logger = log.Default()
	}

	rc := retryablehttp.NewClient()
	if opts.HTTPClient != nil {
		rc.HTTPClient = opts.HTTPClient
	} else {
		rc.HTTPClient = cleanhttp.DefaultPooledClient()
		rc.HTTPClient.Timeout = opts.Timeout
	}
	rc.RetryMax = opts.RetryMax
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	// URL содержит ключ API, встроенный логгер его бы напечатал
	rc.Logger = nil
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		http:     rc,
		baseURL:  opts.BaseURL,
		apiKey:   opts.APIKey,
		limiter:  rate.NewLimiter(opts.RateLimit, opts.RateBurst),
		ttl:      opts.CacheTTL,
		observer: opts.Observer,
		tracer:   otel.Tracer("neo-viz/neo"),
		logger:   logger,
		now:      time.Now,
		cache:    make(map[string]cacheEntry),
	}
}

// Today текущая дата сервера в формате NeoWs
func (c *Client) Today() string {
	return c.now().Format(DateLayout)
}

// FetchSanitized возвращает ленту за дату без объектов links.
// Пустая дата означает сегодня.
func (c *Client) FetchSanitized(ctx context.Context, date string) ([]byte, error) {
	date, err := NormalizeDate(date, c.now())
	if err != nil {
		return nil, err
	}

	if raw, ok := c.cached(date); ok {
		return raw, nil
	}

	// Общий запрос не должен обрываться, если ушел первый из ждущих
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(date, func() (interface{}, error) {
		raw, err := c.fetch(fetchCtx, date)
		if err != nil {
			return nil, err
		}
		c.store(date, raw)
		return raw, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.logger.Printf("[NeoWs] Запрос за %s объединен с уже идущим", date)
		}
		return res.Val.([]byte), nil
	}
}

// Fetch возвращает разобранную ленту за дату
func (c *Client) Fetch(ctx context.Context, date string) (*Feed, error) {
	raw, err := c.FetchSanitized(ctx, date)
	if err != nil {
		return nil, err
	}
	return DecodeFeed(raw)
}

// Records возвращает записи сцены за дату
func (c *Client) Records(ctx context.Context, date string) ([]world.NearEarthObjectRecord, error) {
	feed, err := c.Fetch(ctx, date)
	if err != nil {
		return nil, err
	}
	return feed.ToRecords(), nil
}

func (c *Client) fetch(ctx context.Context, date string) (raw []byte, err error) {
	ctx, span := c.tracer.Start(ctx, "neo.FetchFeed",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("neo.date", date)),
	)
	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.Int("neo.response_bytes", len(raw)))
		}
		span.End()
		if c.observer != nil {
			c.observer(time.Since(start), err)
		}
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	values, err := query.Values(FeedQuery{StartDate: date, EndDate: date, APIKey: c.apiKey})
	if err != nil {
		return nil, fmt.Errorf("encode feed query: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/feed?"+values.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUpstream, redact(err.Error(), c.apiKey))
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUpstream, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	raw, err = SanitizeFeed(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	c.logger.Printf("[NeoWs] Лента за %s получена: %d байт за %v", date, len(raw), time.Since(start))
	return raw, nil
}

func (c *Client) cached(date string) ([]byte, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()

	entry, ok := c.cache[date]
	if !ok || c.now().Sub(entry.fetched) > c.ttl {
		return nil, false
	}
	return entry.raw, true
}

func (c *Client) store(date string, raw []byte) {
	if c.ttl <= 0 {
		return
	}
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()

	now := c.now()
	for d, entry := range c.cache {
		if now.Sub(entry.fetched) > c.ttl {
			delete(c.cache, d)
		}
	}
	if _, ok := c.cache[date]; !ok {
		for len(c.cache) >= maxCacheEntries {
			c.evictOldest()
		}
	}

	c.cache[date] = cacheEntry{raw: raw, fetched: now}
}

// evictOldest вызывается под cacheMu
func (c *Client) evictOldest() {
	var (
		oldest string
		at     time.Time
		found  bool
	)
	for d, entry := range c.cache {
		if !found || entry.fetched.Before(at) {
			oldest, at, found = d, entry.fetched, true
		}
	}
	if found {
		delete(c.cache, oldest)
	}
}

func (c *Client) cacheLen() int {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()
	return len(c.cache)
}
