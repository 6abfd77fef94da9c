package world

import (
	"fmt"
	"log"
	"math/rand/v2"
)

// Coordinator владеет всем изменяемым состоянием сцены одной сессии:
// центральным телом, набором астероидов и выделением.
// Все методы вызываются из одного потока (цикла сессии).
type Coordinator struct {
	cfg       Config
	factory   *Factory
	updater   OrbitalUpdater
	selection *SelectionController
	central   *SceneEntity
	arena     *Manager
	logger    *log.Logger
}

// NewCoordinator создает сцену с центральным телом и пустым набором астероидов
func NewCoordinator(cfg Config, rng *rand.Rand, listener SelectionListener, logger *log.Logger) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scene config: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}

	factory := NewFactory(cfg, rng)
	return &Coordinator{
		cfg:       cfg,
		factory:   factory,
		selection: NewSelectionController(cfg.HighlightColor, cfg.DeselectOnMiss, listener),
		central:   factory.NewCentralBody(),
		arena:     NewManager(),
		logger:    logger,
	}, nil
}

// Config активная конфигурация сцены
func (c *Coordinator) Config() Config {
	return c.cfg
}

// ReplaceEntities атомарно заменяет набор астероидов.
// Плохие записи пропускаются и учитываются, пакет не прерывается.
func (c *Coordinator) ReplaceEntities(records []NearEarthObjectRecord) IngestReport {
	c.selection.Reset()

	var report IngestReport
	batch := make([]*SceneEntity, 0, len(records))
	for i := range records {
		entity, err := c.factory.CreateAsteroidEntity(&records[i])
		if err != nil {
			report.Skipped++
			report.Errors = append(report.Errors, err)
			c.logger.Printf("[World] Пропущена запись: %v", err)
			continue
		}
		batch = append(batch, entity)
	}

	c.arena.Clear()
	for _, e := range batch {
		c.arena.Add(e)
	}
	report.Created = len(batch)

	c.logger.Printf("[World] Набор астероидов заменен: создано %d, пропущено %d",
		report.Created, report.Skipped)

	return report
}

// Tick продвигает орбиты всех живых астероидов
func (c *Coordinator) Tick(deltaPhase float64) {
	if c.arena.Len() == 0 {
		return
	}
	c.updater.Tick(c.arena.All(), deltaPhase)
}

// Click переводит точку NDC в луч и передает его контроллеру выделения.
// Вырожденная камера считается промахом без побочных эффектов.
func (c *Coordinator) Click(ndcX, ndcY float64, cam Camera) (bool, error) {
	ray, err := cam.RayFromNDC(ndcX, ndcY)
	if err != nil {
		return false, err
	}
	return c.ClickRay(ray), nil
}

// ClickRay обрабатывает уже построенный луч
func (c *Coordinator) ClickRay(ray Ray) bool {
	return c.selection.Click(ray, c.candidates())
}

// candidates центральное тело, затем астероиды по возрастанию хэндла
func (c *Coordinator) candidates() []*SceneEntity {
	out := make([]*SceneEntity, 0, c.arena.Len()+1)
	out = append(out, c.central)
	return append(out, c.arena.All()...)
}

// Snapshot копии всех сущностей для отрисовки, центральное тело первым
func (c *Coordinator) Snapshot() []EntityView {
	out := make([]EntityView, 0, c.arena.Len()+1)
	out = append(out, c.central.View())
	for _, e := range c.arena.All() {
		out = append(out, e.View())
	}
	return out
}

// Catalog описания всех сущностей для панели инспекции
func (c *Coordinator) Catalog() []*EntityInfo {
	out := make([]*EntityInfo, 0, c.arena.Len()+1)
	out = append(out, Describe(c.central))
	for _, e := range c.arena.All() {
		out = append(out, Describe(e))
	}
	return out
}

// Selection описание выделенной сущности или nil
func (c *Coordinator) Selection() *EntityInfo {
	return Describe(c.selection.Selected())
}

// SelectionState текущее состояние автомата выделения
func (c *Coordinator) SelectionState() SelectionState {
	return c.selection.State()
}

// Entity возвращает сущность по хэндлу, включая центральное тело
func (c *Coordinator) Entity(h Handle) (*SceneEntity, bool) {
	if h == CentralBodyHandle {
		return c.central, true
	}
	return c.arena.Get(h)
}

// Len количество живых астероидов
func (c *Coordinator) Len() int {
	return c.arena.Len()
}

// CentralBody копия центрального тела
func (c *Coordinator) CentralBody() EntityView {
	return c.central.View()
}
