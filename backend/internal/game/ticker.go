package game

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// ErrTickerStopped команда отправлена в остановленный цикл
var ErrTickerStopped = errors.New("frame ticker is not running")

// TickSystem интерфейс для всех систем кадра
type TickSystem interface {
	Update(deltaTime time.Duration) error
	GetName() string
	GetPriority() int // Приоритет выполнения (меньше = раньше)
}

// TickObserver получает длительность каждого кадра (для метрик)
type TickObserver func(tickTime time.Duration)

// FrameTicker цикл кадров одной сессии.
// Кадры и команды выполняются в одной горутине, поэтому состояние сцены
// не требует блокировок.
type FrameTicker struct {
	// Конфигурация
	targetFPS    int
	tickDuration time.Duration
	maxTickTime  time.Duration

	// Состояние
	running      atomic.Bool
	tickCount    atomic.Uint64
	startTime    time.Time
	lastTickTime time.Time

	// Системы
	systems      []TickSystem
	systemsMutex sync.RWMutex

	perfMonitor *PerformanceMonitor

	// Управление
	startMu  sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	commands chan func()
	done     chan struct{}

	// Метрики
	statsMutex      sync.Mutex
	averageTickTime time.Duration
	maxObservedTick time.Duration
	skippedTicks    uint64
	observer        TickObserver

	logger           *log.Logger
	warningThreshold time.Duration
}

// NewFrameTicker создает цикл кадров с заданной частотой
func NewFrameTicker(targetFPS int, logger *log.Logger) *FrameTicker {
	if targetFPS <= 0 {
		targetFPS = 30
	}
	if logger == nil {
		logger = log.Default()
	}

	tickDuration := time.Second / time.Duration(targetFPS)

	return &FrameTicker{
		targetFPS:        targetFPS,
		tickDuration:     tickDuration,
		maxTickTime:      tickDuration * 2,
		systems:          make([]TickSystem, 0),
		perfMonitor:      NewPerformanceMonitor(50, tickDuration/4),
		commands:         make(chan func(), 64),
		done:             make(chan struct{}),
		logger:           logger,
		warningThreshold: tickDuration / 2,
	}
}

// SetTickObserver устанавливает наблюдателя за длительностью кадров.
// Вызывать до Start.
func (ft *FrameTicker) SetTickObserver(observer TickObserver) {
	ft.observer = observer
}

// Start запускает цикл. Остановка по Stop или отмене parent.
func (ft *FrameTicker) Start(parent context.Context) error {
	ft.startMu.Lock()
	defer ft.startMu.Unlock()

	if ft.running.Load() || ft.cancel != nil {
		return nil // Уже запущен
	}

	ft.ctx, ft.cancel = context.WithCancel(parent)
	ft.startTime = time.Now()
	ft.lastTickTime = ft.startTime
	ft.running.Store(true)

	ft.logger.Printf("[FrameTicker] Запуск цикла кадров: %d FPS (кадр каждые %v)",
		ft.targetFPS, ft.tickDuration)

	go ft.loop()

	return nil
}

// Stop останавливает цикл и ждет выхода из него
func (ft *FrameTicker) Stop() {
	ft.startMu.Lock()
	cancel := ft.cancel
	ft.startMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-ft.done
}

// Done закрывается после выхода из цикла
func (ft *FrameTicker) Done() <-chan struct{} {
	return ft.done
}

// Do ставит команду в очередь цикла. Команды выполняются между кадрами
// в порядке поступления.
func (ft *FrameTicker) Do(cmd func()) error {
	if !ft.running.Load() {
		return ErrTickerStopped
	}
	select {
	case <-ft.ctx.Done():
		return ErrTickerStopped
	case ft.commands <- cmd:
		return nil
	}
}

// RegisterSystem добавляет систему в цикл
func (ft *FrameTicker) RegisterSystem(system TickSystem) {
	ft.systemsMutex.Lock()
	defer ft.systemsMutex.Unlock()

	ft.systems = append(ft.systems, system)

	// Сортируем по приоритету (меньше = выше приоритет)
	for i := len(ft.systems) - 1; i > 0; i-- {
		if ft.systems[i].GetPriority() >= ft.systems[i-1].GetPriority() {
			break
		}
		ft.systems[i], ft.systems[i-1] = ft.systems[i-1], ft.systems[i]
	}

	ft.perfMonitor.initSystemMetrics(system.GetName())

	ft.logger.Printf("[FrameTicker] Зарегистрирована система: %s (приоритет: %d)",
		system.GetName(), system.GetPriority())
}

func (ft *FrameTicker) loop() {
	ticker := time.NewTicker(ft.tickDuration)
	defer func() {
		ticker.Stop()
		ft.running.Store(false)
		ft.logger.Printf("[FrameTicker] Цикл остановлен (выполнено кадров: %d)", ft.tickCount.Load())
		close(ft.done)
	}()

	for {
		select {
		case <-ft.ctx.Done():
			return

		case cmd := <-ft.commands:
			ft.runCommand(cmd)

		case tickTime := <-ticker.C:
			ft.executeTick(tickTime)
		}
	}
}

func (ft *FrameTicker) runCommand(cmd func()) {
	defer func() {
		if r := recover(); r != nil {
			ft.logger.Printf("[FrameTicker] КРИТИЧЕСКАЯ ОШИБКА в команде: %v", r)
		}
	}()
	cmd()
}

// executeTick выполняет один кадр
func (ft *FrameTicker) executeTick(tickTime time.Time) {
	tickStart := time.Now()
	deltaTime := tickTime.Sub(ft.lastTickTime)

	if deltaTime > ft.tickDuration*2 {
		ft.logger.Printf("[FrameTicker] ПРЕДУПРЕЖДЕНИЕ: Большая задержка между кадрами: %v (ожидалось: %v)",
			deltaTime, ft.tickDuration)
		ft.statsMutex.Lock()
		ft.skippedTicks++
		ft.statsMutex.Unlock()
	}

	ft.tickCount.Add(1)
	ft.lastTickTime = tickTime

	ft.executeAllSystems(deltaTime)

	totalTickTime := time.Since(tickStart)
	ft.updateTickMetrics(totalTickTime)
	ft.checkPerformance(totalTickTime)

	if ft.observer != nil {
		ft.observer(totalTickTime)
	}
}

func (ft *FrameTicker) executeAllSystems(deltaTime time.Duration) {
	ft.systemsMutex.RLock()
	systems := make([]TickSystem, len(ft.systems))
	copy(systems, ft.systems)
	ft.systemsMutex.RUnlock()

	for _, system := range systems {
		ft.executeSystem(system, deltaTime)
	}
}

// executeSystem выполняет одну систему с замером времени.
// Паника в системе не останавливает цикл.
func (ft *FrameTicker) executeSystem(system TickSystem, deltaTime time.Duration) {
	systemStart := time.Now()
	systemName := system.GetName()

	defer func() {
		if r := recover(); r != nil {
			ft.logger.Printf("[FrameTicker] КРИТИЧЕСКАЯ ОШИБКА в системе %s: %v", systemName, r)
			ft.perfMonitor.recordError(systemName)
		}
	}()

	err := system.Update(deltaTime)

	ft.perfMonitor.recordExecution(systemName, time.Since(systemStart))

	if err != nil {
		ft.logger.Printf("[FrameTicker] Ошибка в системе %s: %v", systemName, err)
		ft.perfMonitor.recordError(systemName)
	}
}

// GetTickCount возвращает количество выполненных кадров
func (ft *FrameTicker) GetTickCount() uint64 {
	return ft.tickCount.Load()
}

// IsRunning запущен ли цикл
func (ft *FrameTicker) IsRunning() bool {
	return ft.running.Load()
}

// PerfMonitor монитор производительности систем
func (ft *FrameTicker) PerfMonitor() *PerformanceMonitor {
	return ft.perfMonitor
}

// GetStats возвращает статистику цикла
func (ft *FrameTicker) GetStats() map[string]interface{} {
	ft.statsMutex.Lock()
	defer ft.statsMutex.Unlock()

	ft.systemsMutex.RLock()
	systemsCount := len(ft.systems)
	ft.systemsMutex.RUnlock()

	tickCount := ft.tickCount.Load()
	actualFPS := 0.0
	uptime := time.Duration(0)
	if !ft.startTime.IsZero() {
		uptime = time.Since(ft.startTime)
		actualFPS = float64(tickCount) / uptime.Seconds()
	}

	return map[string]interface{}{
		"target_fps":        ft.targetFPS,
		"actual_fps":        actualFPS,
		"tick_count":        tickCount,
		"uptime_seconds":    uptime.Seconds(),
		"average_tick_time": ft.averageTickTime,
		"max_observed_tick": ft.maxObservedTick,
		"skipped_ticks":     ft.skippedTicks,
		"is_running":        ft.running.Load(),
		"systems_count":     systemsCount,
	}
}

func (ft *FrameTicker) updateTickMetrics(tickTime time.Duration) {
	ft.statsMutex.Lock()
	defer ft.statsMutex.Unlock()

	if tickTime > ft.maxObservedTick {
		ft.maxObservedTick = tickTime
	}

	// Простое скользящее среднее
	if ft.averageTickTime == 0 {
		ft.averageTickTime = tickTime
	} else {
		ft.averageTickTime = (ft.averageTickTime*9 + tickTime) / 10
	}
}

func (ft *FrameTicker) checkPerformance(tickTime time.Duration) {
	if tickTime > ft.maxTickTime {
		ft.logger.Printf("[FrameTicker] КРИТИЧЕСКОЕ ПРЕДУПРЕЖДЕНИЕ: Кадр превысил максимальное время! %v > %v (цель: %v)",
			tickTime, ft.maxTickTime, ft.tickDuration)
	} else if tickTime > ft.warningThreshold {
		ft.logger.Printf("[FrameTicker] ПРЕДУПРЕЖДЕНИЕ: Медленный кадр: %v (цель: %v)",
			tickTime, ft.tickDuration)
	}
}
