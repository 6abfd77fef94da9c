package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"neo-viz/backend/internal/world"
)

// Config настройки сервера
type Config struct {
	// Сеть
	HTTPAddr  string
	GRPCAddr  string
	StaticDir string

	// TLS через Let's Encrypt (пустой домен - без TLS)
	AutocertDomain string
	AutocertCache  string

	// NeoWs
	NeoBaseURL  string
	NeoAPIKey   string
	NeoTimeout  time.Duration
	NeoRetryMax int
	NeoCacheTTL time.Duration

	// Лимиты /asteroids на IP
	RateLimitPerMinute int
	RateLimitBurst     int

	// Сессии
	FrameRate       int // Кадров в секунду в цикле сессии
	StreamEvery     int // Отправлять каждый N-й кадр
	IngestOnConnect bool

	// Трассировка
	TracingEnabled  bool
	TracingExporter string
	TracingEndpoint string

	// Сцена
	Scene world.Config
}

// Default конфигурация по умолчанию
func Default() Config {
	return Config{
		HTTPAddr:           ":8080",
		GRPCAddr:           ":9090",
		StaticDir:          "./static",
		AutocertCache:      "./certs",
		NeoBaseURL:         "https://api.nasa.gov/neo/rest/v1",
		NeoAPIKey:          "DEMO_KEY",
		NeoTimeout:         15 * time.Second,
		NeoRetryMax:        3,
		NeoCacheTTL:        10 * time.Minute,
		RateLimitPerMinute: 30,
		RateLimitBurst:     5,
		FrameRate:          30,
		StreamEvery:        1,
		IngestOnConnect:    true,
		TracingExporter:    "stdout",
		Scene:              world.DefaultConfig(),
	}
}

// Load собирает конфигурацию: значения по умолчанию, затем .env,
// затем переменные окружения NEO_*, затем флаги командной строки.
func Load(args []string, envFile string) (Config, error) {
	cfg := Default()

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}

	if err := cfg.applyFlags(args); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	var errs []error

	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}
	integer := func(dst *int, key string) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(dst *time.Duration, key string) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(dst *bool, key string) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str(&c.HTTPAddr, "NEO_HTTP_ADDR")
	str(&c.GRPCAddr, "NEO_GRPC_ADDR")
	str(&c.StaticDir, "NEO_STATIC_DIR")
	str(&c.AutocertDomain, "NEO_AUTOCERT_DOMAIN")
	str(&c.AutocertCache, "NEO_AUTOCERT_CACHE")
	str(&c.NeoBaseURL, "NEO_API_URL")
	// Старое имя ключа из .env тоже поддерживается
	str(&c.NeoAPIKey, "NASA_API_KEY", "nasa_api_key", "NEO_API_KEY")
	duration(&c.NeoTimeout, "NEO_API_TIMEOUT")
	integer(&c.NeoRetryMax, "NEO_API_RETRIES")
	duration(&c.NeoCacheTTL, "NEO_CACHE_TTL")
	integer(&c.RateLimitPerMinute, "NEO_RATE_LIMIT")
	integer(&c.RateLimitBurst, "NEO_RATE_BURST")
	integer(&c.FrameRate, "NEO_FRAME_RATE")
	integer(&c.StreamEvery, "NEO_STREAM_EVERY")
	boolean(&c.IngestOnConnect, "NEO_INGEST_ON_CONNECT")
	boolean(&c.TracingEnabled, "NEO_TRACING_ENABLED")
	str(&c.TracingExporter, "NEO_TRACING_EXPORTER")
	str(&c.TracingEndpoint, "NEO_OTLP_ENDPOINT")
	boolean(&c.Scene.DeselectOnMiss, "NEO_DESELECT_ON_MISS")
	str(&c.Scene.HighlightColor, "NEO_HIGHLIGHT_COLOR")

	return errors.Join(errs...)
}

func (c *Config) applyFlags(args []string) error {
	fs := flag.NewFlagSet("neo-viz", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&c.HTTPAddr, "addr", c.HTTPAddr, "HTTP listen address")
	fs.StringVar(&c.GRPCAddr, "grpc-addr", c.GRPCAddr, "gRPC health listen address (empty disables)")
	fs.StringVar(&c.StaticDir, "static-dir", c.StaticDir, "directory with the web client")
	fs.StringVar(&c.AutocertDomain, "autocert-domain", c.AutocertDomain, "serve HTTPS with Let's Encrypt for this domain")
	fs.StringVar(&c.AutocertCache, "autocert-cache", c.AutocertCache, "certificate cache directory")
	fs.StringVar(&c.NeoBaseURL, "neo-url", c.NeoBaseURL, "NeoWs base URL")
	fs.DurationVar(&c.NeoTimeout, "neo-timeout", c.NeoTimeout, "NeoWs request timeout")
	fs.IntVar(&c.NeoRetryMax, "neo-retries", c.NeoRetryMax, "NeoWs retries")
	fs.DurationVar(&c.NeoCacheTTL, "neo-cache-ttl", c.NeoCacheTTL, "feed cache TTL")
	fs.IntVar(&c.RateLimitPerMinute, "rate-limit", c.RateLimitPerMinute, "/asteroids requests per minute per IP")
	fs.IntVar(&c.RateLimitBurst, "rate-burst", c.RateLimitBurst, "/asteroids burst per IP")
	fs.IntVar(&c.FrameRate, "fps", c.FrameRate, "session frame rate")
	fs.IntVar(&c.StreamEvery, "stream-every", c.StreamEvery, "stream every N-th frame")
	fs.BoolVar(&c.IngestOnConnect, "ingest-on-connect", c.IngestOnConnect, "load today's feed when a session opens")
	fs.BoolVar(&c.TracingEnabled, "tracing", c.TracingEnabled, "enable OpenTelemetry tracing")
	fs.StringVar(&c.TracingExporter, "tracing-exporter", c.TracingExporter, "stdout | otlp")
	fs.StringVar(&c.TracingEndpoint, "otlp-endpoint", c.TracingEndpoint, "OTLP gRPC endpoint")
	fs.BoolVar(&c.Scene.DeselectOnMiss, "deselect-on-miss", c.Scene.DeselectOnMiss, "clicking empty space clears the selection")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	return nil
}

// Validate проверяет конфигурацию
func (c Config) Validate() error {
	var errs []error
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http address is empty"))
	}
	if c.FrameRate <= 0 || c.FrameRate > 240 {
		errs = append(errs, fmt.Errorf("frame rate must be in (0, 240], got %d", c.FrameRate))
	}
	if c.StreamEvery <= 0 {
		errs = append(errs, fmt.Errorf("stream every must be > 0, got %d", c.StreamEvery))
	}
	if c.RateLimitPerMinute <= 0 || c.RateLimitBurst <= 0 {
		errs = append(errs, fmt.Errorf("rate limit must be positive, got %d/min burst %d", c.RateLimitPerMinute, c.RateLimitBurst))
	}
	if c.NeoRetryMax < 0 {
		errs = append(errs, fmt.Errorf("retries must be >= 0, got %d", c.NeoRetryMax))
	}
	if !strings.HasPrefix(c.NeoBaseURL, "http://") && !strings.HasPrefix(c.NeoBaseURL, "https://") {
		errs = append(errs, fmt.Errorf("neo url must be http(s), got %q", c.NeoBaseURL))
	}
	if err := c.Scene.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("scene: %w", err))
	}
	return errors.Join(errs...)
}

// UsesDemoKey true, если ключ NeoWs не задан
func (c Config) UsesDemoKey() bool {
	return c.NeoAPIKey == "" || c.NeoAPIKey == "DEMO_KEY"
}
