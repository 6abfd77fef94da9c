package game

import (
	"log"
	"time"

	"neo-viz/backend/internal/world"
)

// PhasePerTick фаза одного кадра
const PhasePerTick = 1.0

// SceneStepper продвигает сцену на фазу
type SceneStepper interface {
	Tick(deltaPhase float64)
}

// OrbitSystem двигает астероиды по орбитам каждый кадр
type OrbitSystem struct {
	name     string
	priority int
	scene    SceneStepper
	phase    float64
}

// NewOrbitSystem создает систему орбит.
// Каждый кадр сдвигает фазу на PhasePerTick независимо от длительности кадра,
// поэтому видимая скорость растет вместе с частотой кадров сессии.
func NewOrbitSystem(scene SceneStepper) *OrbitSystem {
	return &OrbitSystem{
		name:     "OrbitSystem",
		priority: 5, // Сначала двигаем, потом отправляем
		scene:    scene,
		phase:    PhasePerTick,
	}
}

// Phase фаза, на которую сдвигается сцена за кадр
func (ors *OrbitSystem) Phase() float64 {
	return ors.phase
}

// Update продвигает сцену на фазу одного кадра, deltaTime не учитывается
func (ors *OrbitSystem) Update(deltaTime time.Duration) error {
	ors.scene.Tick(ors.phase)
	return nil
}

// GetName возвращает имя системы
func (ors *OrbitSystem) GetName() string {
	return ors.name
}

// GetPriority возвращает приоритет системы
func (ors *OrbitSystem) GetPriority() int {
	return ors.priority
}

// SnapshotSource источник копий сущностей для отправки
type SnapshotSource interface {
	Snapshot() []world.EntityView
	Len() int
}

// FrameSink получатель кадров (WebSocket сессия)
type FrameSink interface {
	SendFrame(frame uint64, views []world.EntityView) error
}

// StreamSystem отправляет снимок сцены клиенту раз в несколько кадров
type StreamSystem struct {
	name     string
	priority int
	source   SnapshotSource
	sink     FrameSink
	logger   *log.Logger

	every  uint64
	ticks  uint64
	frames uint64

	// Пустую сцену отправляем один раз, дальше молчим
	sentEmpty bool
}

// NewStreamSystem создает систему отправки кадров
func NewStreamSystem(source SnapshotSource, sink FrameSink, every int, logger *log.Logger) *StreamSystem {
	if every <= 0 {
		every = 1
	}
	if logger == nil {
		logger = log.Default()
	}
	return &StreamSystem{
		name:     "StreamSystem",
		priority: 100, // Самый низкий приоритет - отправляем в конце кадра
		source:   source,
		sink:     sink,
		logger:   logger,
		every:    uint64(every),
	}
}

// Update отправляет снимок, если подошел его кадр
func (ss *StreamSystem) Update(deltaTime time.Duration) error {
	ss.ticks++
	if ss.ticks%ss.every != 0 {
		return nil
	}

	if ss.source.Len() == 0 {
		if ss.sentEmpty {
			return nil
		}
		ss.sentEmpty = true
	} else {
		ss.sentEmpty = false
	}

	ss.frames++
	return ss.sink.SendFrame(ss.frames, ss.source.Snapshot())
}

// FramesSent количество отправленных кадров
func (ss *StreamSystem) FramesSent() uint64 {
	return ss.frames
}

// GetName возвращает имя системы
func (ss *StreamSystem) GetName() string {
	return ss.name
}

// GetPriority возвращает приоритет системы
func (ss *StreamSystem) GetPriority() int {
	return ss.priority
}

// StatsSystem периодически пишет статистику цикла в лог
type StatsSystem struct {
	name     string
	priority int
	ticker   *FrameTicker
	source   SnapshotSource
	logger   *log.Logger

	lastLog  time.Time
	interval time.Duration
}

// NewStatsSystem создает систему статистики
func NewStatsSystem(ticker *FrameTicker, source SnapshotSource, interval time.Duration, logger *log.Logger) *StatsSystem {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &StatsSystem{
		name:     "StatsSystem",
		priority: 200,
		ticker:   ticker,
		source:   source,
		logger:   logger,
		lastLog:  time.Now(),
		interval: interval,
	}
}

// Update пишет статистику не чаще interval
func (sts *StatsSystem) Update(deltaTime time.Duration) error {
	now := time.Now()
	if now.Sub(sts.lastLog) < sts.interval {
		return nil
	}
	sts.lastLog = now

	stats := sts.ticker.GetStats()
	sts.logger.Printf("[FrameStats] FPS: %.1f/%d, Астероидов: %d, Кадров: %d, Время кадра: %v",
		stats["actual_fps"], stats["target_fps"], sts.source.Len(),
		stats["tick_count"], stats["average_tick_time"])

	if actual, ok := stats["actual_fps"].(float64); ok {
		if target, ok := stats["target_fps"].(int); ok && actual < float64(target)*0.9 {
			sts.logger.Printf("[FrameStats] ПРЕДУПРЕЖДЕНИЕ: FPS снижен до %.1f", actual)
		}
	}
	return nil
}

// GetName возвращает имя системы
func (sts *StatsSystem) GetName() string {
	return sts.name
}

// GetPriority возвращает приоритет системы
func (sts *StatsSystem) GetPriority() int {
	return sts.priority
}
