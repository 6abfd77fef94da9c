package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/crypto/acme/autocert"
	"google.golang.org/grpc"

	"neo-viz/backend/internal/config"
	"neo-viz/backend/internal/neo"
	"neo-viz/backend/internal/telemetry"
	"neo-viz/backend/internal/transport"
	"neo-viz/backend/internal/transport/ws"
)

func main() {
	logger := log.New(os.Stderr, "", log.LstdFlags)

	cfg, err := config.Load(os.Args[1:], ".env")
	if err != nil {
		logger.Fatalf("[Config] %v", err)
	}
	if cfg.UsesDemoKey() {
		logger.Printf("[Config] NASA_API_KEY не задан, используется DEMO_KEY с жесткими лимитами")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, telemetry.TracingConfig{
		Enabled:     cfg.TracingEnabled,
		ServiceName: transport.ServiceName,
		Exporter:    cfg.TracingExporter,
		Endpoint:    cfg.TracingEndpoint,
	}, logger)
	if err != nil {
		logger.Fatalf("[Tracing] %v", err)
	}
	defer telemetry.ShutdownWithTimeout(context.Background(), shutdownTracing, logger)

	collector, err := telemetry.NewCollector(prometheus.DefaultRegisterer)
	if err != nil {
		logger.Fatalf("[Metrics] %v", err)
	}
	journal := telemetry.NewJournal(500, time.Minute, logger)

	feed := neo.NewClient(neo.Options{
		BaseURL:  cfg.NeoBaseURL,
		APIKey:   cfg.NeoAPIKey,
		Timeout:  cfg.NeoTimeout,
		RetryMax: cfg.NeoRetryMax,
		CacheTTL: cfg.NeoCacheTTL,
		Observer: collector.ObserveFetch,
	}, logger)

	wsServer := ws.NewWSServer(feed, ws.ServerOptions{
		Session: ws.SessionOptions{
			Scene:       cfg.Scene,
			FrameRate:   cfg.FrameRate,
			StreamEvery: cfg.StreamEvery,
		},
		IngestOnConnect: cfg.IngestOnConnect,
	}, collector, journal, logger)

	limiter := transport.NewIPRateLimiter(transport.PerMinute(cfg.RateLimitPerMinute), cfg.RateLimitBurst)

	mux := http.NewServeMux()
	mux.Handle("/asteroids", transport.RateLimit(limiter, "asteroids", collector, logger,
		transport.NewAsteroidsHandler(feed, logger)))
	mux.HandleFunc("/ws", wsServer.HandleWS)
	mux.Handle("/metrics", collector.Handler())
	mux.Handle("/debug/events", journal.Handler())
	registerStatic(mux, cfg.StaticDir, logger)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	health := transport.NewHealthServer(logger, grpc.StatsHandler(otelgrpc.NewServerHandler()))
	if cfg.GRPCAddr != "" {
		grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			logger.Fatalf("[Health] Не удалось открыть %s: %v", cfg.GRPCAddr, err)
		}
		go func() {
			if err := health.Serve(grpcLis); err != nil {
				logger.Printf("[Health] Сервер остановлен: %v", err)
			}
		}()
		logger.Printf("[Health] gRPC health на %s", cfg.GRPCAddr)
	}

	go runHousekeeping(ctx, limiter, journal, logger)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- serve(srv, cfg, logger)
	}()
	health.SetServing(true)
	logger.Printf("[Server] HTTP на %s", cfg.HTTPAddr)

	select {
	case <-ctx.Done():
		logger.Printf("[Server] Получен сигнал остановки")
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("[Server] Ошибка HTTP сервера: %v", err)
		}
	}

	health.SetServing(false)
	wsServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("[Server] Ошибка остановки HTTP: %v", err)
	}
	health.Stop()
	logger.Printf("[Server] Остановлен")
}

// serve запускает HTTP или HTTPS с сертификатом Let's Encrypt
func serve(srv *http.Server, cfg config.Config, logger *log.Logger) error {
	if cfg.AutocertDomain == "" {
		return srv.ListenAndServe()
	}

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(cfg.AutocertDomain),
		Cache:      autocert.DirCache(cfg.AutocertCache),
	}
	srv.TLSConfig = manager.TLSConfig()

	// HTTP-01 проверка и редирект на HTTPS
	go func() {
		if err := http.ListenAndServe(":80", manager.HTTPHandler(nil)); err != nil {
			logger.Printf("[TLS] HTTP-01 обработчик остановлен: %v", err)
		}
	}()

	logger.Printf("[TLS] Сертификат для %s, кэш %s", cfg.AutocertDomain, cfg.AutocertCache)
	return srv.ListenAndServeTLS("", "")
}

// registerStatic отдает index.html на / и файлы каталога на /static/
func registerStatic(mux *http.ServeMux, staticDir string, logger *log.Logger) {
	if _, err := os.Stat(staticDir); os.IsNotExist(err) {
		logger.Printf("[Server] Предупреждение: каталог %s не существует, статика не раздается", staticDir)
		return
	}

	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	index := filepath.Join(staticDir, "index.html")
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, index)
	})
	logger.Printf("[Server] Статика из %s", staticDir)
}

// runHousekeeping чистит лимитеры и пишет сводку журнала
func runHousekeeping(ctx context.Context, limiter *transport.IPRateLimiter, journal *telemetry.Journal, logger *log.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := limiter.Cleanup(); removed > 0 {
				logger.Printf("[RateLimit] Удалено неактивных IP: %d (осталось %d)", removed, limiter.Len())
			}
			journal.PrintSummary()
		}
	}
}
