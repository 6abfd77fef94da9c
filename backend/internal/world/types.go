package world

import "github.com/go-gl/mathgl/mgl64"

// Handle стабильный идентификатор сущности внутри сессии.
// Хэндлы не переиспользуются, 0 зарезервирован за центральным телом.
type Handle uint32

// CentralBodyHandle хэндл центрального тела (Земли)
const CentralBodyHandle Handle = 0

// EntityKind вариант сущности сцены
type EntityKind int

const (
	KindCentralBody EntityKind = iota
	KindAsteroid
)

// String возвращает имя вида сущности для сериализации
func (k EntityKind) String() string {
	switch k {
	case KindCentralBody:
		return "central_body"
	case KindAsteroid:
		return "asteroid"
	default:
		return "unknown"
	}
}

// GeometryClass стилистический селектор формы (физического смысла не несет)
type GeometryClass string

const (
	GeometrySphere       GeometryClass = "sphere"
	GeometryDodecahedron GeometryClass = "dodecahedron"
	GeometryIcosahedron  GeometryClass = "icosahedron"
)

// Базовые цвета
const (
	TintCentralBody = "#2a6bd1"
	TintAsteroid    = "#ffffff"
	TintHazardous   = "#ff5555"
	TintHighlight   = "#ffd700"
)

// CloseApproach одно событие сближения с Землей
type CloseApproach struct {
	Date                string
	MissDistanceKm      string
	RelativeVelocityKph string
}

// NearEarthObjectRecord внешняя запись об околоземном объекте.
// После получения не изменяется.
type NearEarthObjectRecord struct {
	ID                string
	Name              string
	Hazardous         bool
	DiameterMinMeters float64
	DiameterMaxMeters float64
	AbsoluteMagnitude float64
	CloseApproaches   []CloseApproach
}

// OrbitState состояние орбиты сущности.
// Polar фиксируется при создании, Azimuth продвигается каждый тик.
type OrbitState struct {
	Distance     float64
	Polar        float64
	Azimuth      float64
	AngularSpeed float64
	SpinX        float64
	SpinZ        float64
}

// SceneEntity сущность сцены: центральное тело или астероид.
// Geometry, VisualRadius и Tint не меняются после создания,
// Color - текущий отображаемый цвет (Tint или цвет выделения).
type SceneEntity struct {
	Handle       Handle
	Kind         EntityKind
	Geometry     GeometryClass
	VisualRadius float64
	Tint         string
	Color        string

	Orbit     OrbitState
	Position  mgl64.Vec3
	RotationX float64
	RotationZ float64

	// Source только для астероидов, используется для поиска
	Source *NearEarthObjectRecord

	missDistanceKm float64
}

// Rotation возвращает собственное вращение в виде кватерниона
func (e *SceneEntity) Rotation() mgl64.Quat {
	return mgl64.AnglesToQuat(e.RotationX, 0, e.RotationZ, mgl64.XYZ)
}

// EntityView копия состояния сущности для отрисовки
type EntityView struct {
	Handle   Handle
	Kind     EntityKind
	Geometry GeometryClass
	Position mgl64.Vec3
	Rotation mgl64.Quat
	Radius   float64
	Color    string
}

// View снимает копию состояния сущности
func (e *SceneEntity) View() EntityView {
	return EntityView{
		Handle:   e.Handle,
		Kind:     e.Kind,
		Geometry: e.Geometry,
		Position: e.Position,
		Rotation: e.Rotation(),
		Radius:   e.VisualRadius,
		Color:    e.Color,
	}
}

// IngestReport результат замены набора сущностей
type IngestReport struct {
	Created int
	Skipped int
	Errors  []error
}
