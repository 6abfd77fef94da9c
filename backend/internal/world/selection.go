package world

import (
	"strconv"
	"strings"
)

// SelectionState состояние контроллера выделения
type SelectionState int

const (
	SelectionIdle SelectionState = iota
	SelectionSelected
)

// String возвращает имя состояния
func (s SelectionState) String() string {
	if s == SelectionSelected {
		return "selected"
	}
	return "idle"
}

// EntityInfo описательные атрибуты сущности для панели инспекции
type EntityInfo struct {
	Handle            Handle
	Kind              EntityKind
	ID                string
	Name              string
	DisplayName       string
	Hazardous         bool
	DiameterMeters    float64
	MissDistanceKm    float64
	ApproachDate      string
	VelocityKph       float64
	VisualRadius      float64
	OrbitDistance     float64
	AbsoluteMagnitude float64
}

// Describe собирает EntityInfo по сущности
func Describe(e *SceneEntity) *EntityInfo {
	if e == nil {
		return nil
	}
	info := &EntityInfo{
		Handle:        e.Handle,
		Kind:          e.Kind,
		VisualRadius:  e.VisualRadius,
		OrbitDistance: e.Orbit.Distance,
	}
	if e.Kind == KindCentralBody {
		info.Name = "Earth"
		info.DisplayName = "Earth"
		return info
	}

	rec := e.Source
	if rec == nil {
		return info
	}
	info.ID = rec.ID
	info.Name = rec.Name
	info.DisplayName = displayName(rec)
	info.Hazardous = rec.Hazardous
	info.DiameterMeters = rec.DiameterMaxMeters
	info.MissDistanceKm = e.missDistanceKm
	info.AbsoluteMagnitude = rec.AbsoluteMagnitude
	if len(rec.CloseApproaches) > 0 {
		first := rec.CloseApproaches[0]
		info.ApproachDate = first.Date
		if v, err := parseFinite(first.RelativeVelocityKph); err == nil {
			info.VelocityKph = v
		}
	}
	return info
}

// displayName имя без скобок, опасные объекты с префиксом
func displayName(rec *NearEarthObjectRecord) string {
	name := strings.NewReplacer("(", "", ")", "").Replace(rec.Name)
	name = strings.TrimSpace(name)
	if name == "" {
		name = "#" + rec.ID
	}
	if rec.Hazardous {
		name = "[Warning] " + name
	}
	return name
}

// SelectionListener получает уведомления о смене выделения.
// info == nil означает переход в Idle.
type SelectionListener interface {
	SelectionChanged(info *EntityInfo)
}

// SelectionController конечный автомат выделения {Idle, Selected(entity)}
type SelectionController struct {
	state          SelectionState
	selected       *SceneEntity
	highlight      string
	deselectOnMiss bool
	listener       SelectionListener
}

// NewSelectionController создает контроллер в состоянии Idle
func NewSelectionController(highlight string, deselectOnMiss bool, listener SelectionListener) *SelectionController {
	return &SelectionController{
		state:          SelectionIdle,
		highlight:      highlight,
		deselectOnMiss: deselectOnMiss,
		listener:       listener,
	}
}

// State текущее состояние
func (sc *SelectionController) State() SelectionState {
	return sc.state
}

// Selected текущая выделенная сущность или nil
func (sc *SelectionController) Selected() *SceneEntity {
	return sc.selected
}

// PickNearest ищет ближайшее пересечение луча с кандидатами.
// При равных расстояниях побеждает первый по порядку.
func PickNearest(ray Ray, candidates []*SceneEntity) (*SceneEntity, float64) {
	var (
		best  *SceneEntity
		bestT float64
	)
	for _, c := range candidates {
		if c == nil {
			continue
		}
		t, ok := ray.IntersectSphere(c.Position, c.VisualRadius)
		if !ok {
			continue
		}
		if best == nil || t < bestT {
			best, bestT = c, t
		}
	}
	return best, bestT
}

// Click обрабатывает активацию указателя. Возвращает true, если выделение сменилось.
func (sc *SelectionController) Click(ray Ray, candidates []*SceneEntity) bool {
	hit, _ := PickNearest(ray, candidates)
	if hit == nil {
		if sc.state == SelectionIdle || !sc.deselectOnMiss {
			return false
		}
		sc.revert()
		sc.notify()
		return true
	}

	prev := sc.selected
	// Сначала откат, потом подсветка, даже для того же объекта
	sc.revert()
	hit.Color = sc.highlight
	sc.selected = hit
	sc.state = SelectionSelected

	if prev == hit {
		return false
	}
	sc.notify()
	return true
}

// Reset контракт замены набора: откат подсветки и переход в Idle
func (sc *SelectionController) Reset() bool {
	if sc.state == SelectionIdle {
		return false
	}
	sc.revert()
	sc.notify()
	return true
}

func (sc *SelectionController) revert() {
	if sc.selected != nil {
		sc.selected.Color = sc.selected.Tint
	}
	sc.selected = nil
	sc.state = SelectionIdle
}

func (sc *SelectionController) notify() {
	if sc.listener == nil {
		return
	}
	sc.listener.SelectionChanged(Describe(sc.selected))
}

// FormatHandle строковый идентификатор хэндла для клиента
func FormatHandle(h Handle) string {
	return strconv.FormatUint(uint64(h), 10)
}
