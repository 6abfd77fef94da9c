package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector метрики сервера визуализации
type Collector struct {
	gatherer prometheus.Gatherer

	SessionsActive prometheus.Gauge
	SessionsTotal  prometheus.Counter
	EntitiesLive   prometheus.Gauge
	Ingests        *prometheus.CounterVec
	RecordsSkipped prometheus.Counter
	StaleResponses prometheus.Counter
	Selections     *prometheus.CounterVec
	FetchDurations *prometheus.HistogramVec
	TickDurations  prometheus.Histogram
	FramesSent     prometheus.Counter
	RateLimited    *prometheus.CounterVec
}

// NewCollector регистрирует метрики в reg (по умолчанию глобальный реестр)
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{gatherer: gatherer}
	var err error

	if c.SessionsActive, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "neo_sessions_active",
		Help: "Number of open WebSocket scene sessions.",
	}), "neo_sessions_active"); err != nil {
		return nil, err
	}
	if c.SessionsTotal, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "neo_sessions_total",
		Help: "Total number of WebSocket scene sessions opened.",
	}), "neo_sessions_total"); err != nil {
		return nil, err
	}
	if c.EntitiesLive, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "neo_scene_entities",
		Help: "Live asteroid entities across all sessions.",
	}), "neo_scene_entities"); err != nil {
		return nil, err
	}
	if c.Ingests, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "neo_ingests_total",
		Help: "Ingestion requests by result (ok, error, stale).",
	}, []string{"result"}), "neo_ingests_total"); err != nil {
		return nil, err
	}
	if c.RecordsSkipped, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "neo_records_skipped_total",
		Help: "Malformed near-earth object records skipped during ingestion.",
	}), "neo_records_skipped_total"); err != nil {
		return nil, err
	}
	if c.StaleResponses, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "neo_stale_responses_total",
		Help: "Fetch responses dropped because a newer ingestion was requested.",
	}), "neo_stale_responses_total"); err != nil {
		return nil, err
	}
	if c.Selections, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "neo_selections_total",
		Help: "Selection transitions by target kind (central_body, asteroid, none).",
	}, []string{"kind"}), "neo_selections_total"); err != nil {
		return nil, err
	}
	if c.FetchDurations, err = registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "neo_fetch_duration_seconds",
		Help:    "NeoWs feed fetch latency in seconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"result"}), "neo_fetch_duration_seconds"); err != nil {
		return nil, err
	}
	if c.TickDurations, err = registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "neo_frame_duration_seconds",
		Help:    "Session frame execution time in seconds.",
		Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05},
	}), "neo_frame_duration_seconds"); err != nil {
		return nil, err
	}
	if c.FramesSent, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "neo_frames_sent_total",
		Help: "Scene frames streamed to clients.",
	}), "neo_frames_sent_total"); err != nil {
		return nil, err
	}
	if c.RateLimited, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "neo_rate_limited_total",
		Help: "Requests rejected by the per-IP limiter, by endpoint.",
	}, []string{"endpoint"}), "neo_rate_limited_total"); err != nil {
		return nil, err
	}

	return c, nil
}

// Handler готовый обработчик /metrics
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SessionOpened учитывает новую сессию
func (c *Collector) SessionOpened() {
	if c == nil {
		return
	}
	c.SessionsActive.Inc()
	c.SessionsTotal.Inc()
}

// SessionClosed учитывает закрытие сессии и ее оставшиеся сущности
func (c *Collector) SessionClosed(liveEntities int) {
	if c == nil {
		return
	}
	c.SessionsActive.Dec()
	c.EntitiesLive.Sub(float64(liveEntities))
}

// ObserveIngest учитывает замену набора сущностей
func (c *Collector) ObserveIngest(previous, created, skipped int) {
	if c == nil {
		return
	}
	c.Ingests.WithLabelValues("ok").Inc()
	c.RecordsSkipped.Add(float64(skipped))
	c.EntitiesLive.Add(float64(created - previous))
}

// ObserveIngestFailure учитывает неудачную загрузку
func (c *Collector) ObserveIngestFailure() {
	if c == nil {
		return
	}
	c.Ingests.WithLabelValues("error").Inc()
}

// ObserveStale учитывает отброшенный устаревший ответ
func (c *Collector) ObserveStale() {
	if c == nil {
		return
	}
	c.Ingests.WithLabelValues("stale").Inc()
	c.StaleResponses.Inc()
}

// ObserveSelection учитывает переход выделения. kind пустой при переходе в Idle.
func (c *Collector) ObserveSelection(kind string) {
	if c == nil {
		return
	}
	if kind == "" {
		kind = "none"
	}
	c.Selections.WithLabelValues(kind).Inc()
}

// ObserveFetch подходит как neo.FetchObserver
func (c *Collector) ObserveFetch(d time.Duration, err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.FetchDurations.WithLabelValues(result).Observe(d.Seconds())
}

// ObserveTick подходит как game.TickObserver
func (c *Collector) ObserveTick(d time.Duration) {
	if c == nil {
		return
	}
	c.TickDurations.Observe(d.Seconds())
}

// ObserveFrameSent учитывает отправленный кадр
func (c *Collector) ObserveFrameSent() {
	if c == nil {
		return
	}
	c.FramesSent.Inc()
}

// ObserveRateLimited учитывает отказ лимитера
func (c *Collector) ObserveRateLimited(endpoint string) {
	if c == nil {
		return
	}
	c.RateLimited.WithLabelValues(endpoint).Inc()
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
