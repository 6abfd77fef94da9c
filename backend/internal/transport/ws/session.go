package ws

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"neo-viz/backend/internal/game"
	"neo-viz/backend/internal/neo"
	"neo-viz/backend/internal/telemetry"
	"neo-viz/backend/internal/world"
)

// maxPendingIngests ограничение на одновременные загрузки одной сессии
const maxPendingIngests = 4

// ErrBusy у сессии слишком много незавершенных загрузок
var ErrBusy = errors.New("too many pending ingest requests")

// RecordSource поставляет записи об околоземных объектах за дату
type RecordSource interface {
	Records(ctx context.Context, date string) ([]world.NearEarthObjectRecord, error)
}

// SessionOptions настройки сессии
type SessionOptions struct {
	Scene         world.Config
	FrameRate     int
	StreamEvery   int
	StatsInterval time.Duration
	Stars         StarField
	Seed          uint64 // 0 - случайный
}

// Session одна WebSocket сессия: своя сцена и свой цикл кадров.
// Все изменения сцены выполняются в горутине цикла, остальные горутины
// передают туда команды через FrameTicker.Do.
type Session struct {
	id        string
	writer    *SafeWriter
	coord     *world.Coordinator
	ticker    *game.FrameTicker
	stream    *game.StreamSystem
	source    RecordSource
	opts      SessionOptions
	collector *telemetry.Collector
	journal   *telemetry.Journal
	tracer    trace.Tracer
	logger    *log.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
	started   bool

	// Номер последней запрошенной загрузки. Ответы на более ранние
	// запросы отбрасываются.
	requested atomic.Uint64
	pending   atomic.Int32

	// Только в горутине цикла
	applied uint64
}

// NewSession создает сессию. Цикл запускается через Start.
func NewSession(id string, writer *SafeWriter, source RecordSource, opts SessionOptions,
	collector *telemetry.Collector, journal *telemetry.Journal, logger *log.Logger) (*Session, error) {
	if logger == nil {
		logger = log.Default()
	}

	seed := opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	s := &Session{
		id:        id,
		writer:    writer,
		source:    source,
		opts:      opts,
		collector: collector,
		journal:   journal,
		tracer:    otel.Tracer("neo-viz/ws"),
		logger:    logger,
	}

	coord, err := world.NewCoordinator(opts.Scene, rand.New(rand.NewPCG(seed, seed>>1|1)), s, logger)
	if err != nil {
		return nil, fmt.Errorf("create session scene: %w", err)
	}
	s.coord = coord

	s.ticker = game.NewFrameTicker(opts.FrameRate, logger)
	s.ticker.SetTickObserver(collector.ObserveTick)
	s.stream = game.NewStreamSystem(coord, s, opts.StreamEvery, logger)

	s.ticker.RegisterSystem(game.NewOrbitSystem(coord))
	s.ticker.RegisterSystem(s.stream)
	s.ticker.RegisterSystem(game.NewStatsSystem(s.ticker, coord, opts.StatsInterval, logger))

	return s, nil
}

// ID идентификатор сессии
func (s *Session) ID() string {
	return s.id
}

// Start отправляет конфигурацию и пустую сцену, затем запускает цикл кадров
func (s *Session) Start(parent context.Context) error {
	s.ctx, s.cancel = context.WithCancel(parent)

	cfg := NewSceneConfigMessage(s.id, s.coord.Config(), s.opts.FrameRate, s.opts.StreamEvery, s.opts.Stars)
	if err := s.writer.WriteJSON(cfg); err != nil {
		return fmt.Errorf("send scene config: %w", err)
	}
	if err := s.sendSceneReset(0, ""); err != nil {
		return err
	}

	if err := s.ticker.Start(s.ctx); err != nil {
		return fmt.Errorf("start frame ticker: %w", err)
	}

	s.started = true
	s.collector.SessionOpened()
	s.journal.Record(s.id, "open", "", 0)
	s.logger.Printf("[Session] Сессия %s запущена", s.id)
	return nil
}

// RequestIngest запускает загрузку за дату в фоне и возвращает ее номер.
// Результат применяется в цикле сессии, если за это время не было нового запроса.
func (s *Session) RequestIngest(date string) (uint64, error) {
	date, err := neo.NormalizeDate(date, time.Now())
	if err != nil {
		return 0, err
	}
	if s.pending.Add(1) > maxPendingIngests {
		s.pending.Add(-1)
		return 0, ErrBusy
	}

	generation := s.requested.Add(1)
	s.journal.Record(s.id, "ingest_requested", date, int(generation))

	s.wg.Add(1)
	go s.runIngest(generation, date)
	return generation, nil
}

func (s *Session) runIngest(generation uint64, date string) {
	defer s.wg.Done()
	defer s.pending.Add(-1)

	ctx, span := s.tracer.Start(s.ctx, "ws.Ingest", trace.WithAttributes(
		attribute.String("session.id", s.id),
		attribute.Int64("ingest.generation", int64(generation)),
		attribute.String("neo.date", date),
	))
	records, fetchErr := s.source.Records(ctx, date)
	if fetchErr != nil {
		span.RecordError(fetchErr)
		span.SetStatus(codes.Error, fetchErr.Error())
	} else {
		span.SetAttributes(attribute.Int("ingest.records", len(records)))
	}
	span.End()

	err := s.ticker.Do(func() {
		s.applyIngest(generation, date, records, fetchErr)
	})
	if err != nil && !errors.Is(err, game.ErrTickerStopped) {
		s.logger.Printf("[Session] %s: не удалось передать результат загрузки %d: %v", s.id, generation, err)
	}
}

// applyIngest выполняется в горутине цикла
func (s *Session) applyIngest(generation uint64, date string, records []world.NearEarthObjectRecord, fetchErr error) {
	if generation != s.requested.Load() || generation <= s.applied {
		s.collector.ObserveStale()
		s.journal.Record(s.id, "stale", date, int(generation))
		s.logger.Printf("[Session] %s: устаревший ответ загрузки %d отброшен", s.id, generation)
		return
	}

	if fetchErr != nil {
		if s.ctx.Err() != nil {
			return
		}
		s.collector.ObserveIngestFailure()
		s.journal.Record(s.id, "ingest_failed", date, int(generation))
		s.logger.Printf("[Session] %s: ошибка загрузки %d: %v", s.id, generation, fetchErr)
		code, text := classifyFetchError(fetchErr)
		s.send(NewErrorMessage(code, text, generation))
		return
	}

	previous := s.coord.Len()
	report := s.coord.ReplaceEntities(records)
	s.applied = generation

	s.collector.ObserveIngest(previous, report.Created, report.Skipped)
	s.journal.Record(s.id, "ingest", date, report.Created)

	if err := s.sendSceneReset(generation, date); err != nil {
		s.logger.Printf("[Session] %s: %v", s.id, err)
		return
	}
	s.send(NewIngestReportMessage(generation, date, report))
}

// classifyFetchError текст для клиента без подробностей запроса
func classifyFetchError(err error) (string, string) {
	switch {
	case errors.Is(err, neo.ErrBadDate):
		return ErrorCodeBadDate, neo.ErrBadDate.Error()
	case errors.Is(err, neo.ErrUpstream):
		return ErrorCodeUpstream, "asteroid feed is unavailable"
	default:
		return ErrorCodeFetch, "failed to load asteroid feed"
	}
}

// Click ставит обработку клика в очередь цикла
func (s *Session) Click(msg *ClickMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	x, y := msg.X, msg.Y
	cam := msg.Camera.ToCamera()

	return s.ticker.Do(func() {
		if _, err := s.coord.Click(x, y, cam); err != nil {
			s.send(NewErrorMessage(ErrorCodeBadCamera, err.Error(), 0))
		}
	})
}

// Do выполняет функцию в горутине цикла и ждет ее завершения
func (s *Session) Do(ctx context.Context, fn func(coord *world.Coordinator)) error {
	done := make(chan struct{})
	if err := s.ticker.Do(func() {
		defer close(done)
		fn(s.coord)
	}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ticker.Done():
		return game.ErrTickerStopped
	}
}

// SelectionChanged вызывается контроллером выделения в горутине цикла
func (s *Session) SelectionChanged(info *world.EntityInfo) {
	kind, detail, handle := "", "", 0
	if info != nil {
		kind = info.Kind.String()
		detail = info.DisplayName
		handle = int(info.Handle)
	}
	s.collector.ObserveSelection(kind)
	s.journal.Record(s.id, "selection", detail, handle)
	s.send(NewSelectionMessage(info))
}

// SendFrame отправляет кадр, вызывается StreamSystem
func (s *Session) SendFrame(frame uint64, views []world.EntityView) error {
	if err := s.writer.WriteJSON(NewBatchUpdateMessage(frame, views)); err != nil {
		return err
	}
	s.collector.ObserveFrameSent()
	return nil
}

func (s *Session) sendSceneReset(generation uint64, date string) error {
	msg := NewSceneResetMessage(generation, date, s.coord.Snapshot(), s.coord.Catalog())
	if err := s.writer.WriteJSON(msg); err != nil {
		return fmt.Errorf("send scene reset: %w", err)
	}
	return nil
}

func (s *Session) send(v interface{}) {
	if err := s.writer.WriteJSON(v); err != nil && !errors.Is(err, ErrWriterClosed) {
		s.logger.Printf("[Session] %s: ошибка отправки: %v", s.id, err)
	}
}

// Close останавливает цикл, отменяет незавершенные загрузки и ждет их
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.ticker.Stop()
		s.wg.Wait()

		// Цикл остановлен, сцену можно читать напрямую
		live := s.coord.Len()
		if s.started {
			s.collector.SessionClosed(live)
			s.journal.Record(s.id, "close", "", live)
		}
		s.logger.Printf("[Session] Сессия %s закрыта (кадров отправлено: %d)", s.id, s.stream.FramesSent())
	})
}
