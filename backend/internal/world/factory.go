package world

import (
	"math"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// Factory строит сущности сцены по входящим записям.
// В набор сущностей ничего не добавляет, это делает Coordinator.
type Factory struct {
	cfg    Config
	scaler Scaler
	rng    *rand.Rand
}

// NewFactory создает новый экземпляр Factory
func NewFactory(cfg Config, rng *rand.Rand) *Factory {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Factory{
		cfg:    cfg,
		scaler: NewScaler(cfg),
		rng:    rng,
	}
}

// Scaler возвращает используемый масштаб
func (f *Factory) Scaler() Scaler {
	return f.scaler
}

// NewCentralBody создает центральное тело в начале координат
func (f *Factory) NewCentralBody() *SceneEntity {
	return &SceneEntity{
		Handle:       CentralBodyHandle,
		Kind:         KindCentralBody,
		Geometry:     GeometrySphere,
		VisualRadius: f.cfg.CentralBodyRadius,
		Tint:         TintCentralBody,
		Color:        TintCentralBody,
		Position:     mgl64.Vec3{0, 0, 0},
	}
}

// CreateAsteroidEntity строит астероид по записи.
// Используется только первое событие сближения.
func (f *Factory) CreateAsteroidEntity(rec *NearEarthObjectRecord) (*SceneEntity, error) {
	if rec == nil {
		return nil, malformed(nil, "nil record", nil)
	}
	if len(rec.CloseApproaches) == 0 {
		return nil, malformed(rec, "no close-approach events", nil)
	}

	km, err := parseFinite(rec.CloseApproaches[0].MissDistanceKm)
	if err != nil {
		return nil, malformed(rec, "miss distance is not a finite number", err)
	}
	if km <= 0 {
		return nil, malformed(rec, "miss distance must be positive", nil)
	}

	meters := rec.DiameterMaxMeters
	if math.IsNaN(meters) || math.IsInf(meters, 0) || meters < 0 {
		return nil, malformed(rec, "estimated diameter is not a finite non-negative number", nil)
	}

	style := asteroidStyles[rec.Hazardous]
	radius := math.Max(f.cfg.floorRadius(rec.Hazardous), f.scaler.SizeToScene(meters))

	orbit := OrbitState{
		Distance: f.scaler.DistanceToScene(km),
		// Полярный угол через acos, иначе точки скапливаются у полюсов
		Polar:        math.Acos(2*f.rng.Float64() - 1),
		Azimuth:      f.rng.Float64() * 2 * math.Pi,
		AngularSpeed: f.cfg.BaseAngularSpeed + f.rng.Float64()*f.cfg.AngularSpeedJitter,
		SpinX:        (f.rng.Float64() - 0.5) * f.cfg.SpinRange,
		SpinZ:        (f.rng.Float64() - 0.5) * f.cfg.SpinRange,
	}

	entity := &SceneEntity{
		Kind:           KindAsteroid,
		Geometry:       style.Geometry,
		VisualRadius:   radius,
		Tint:           style.Tint,
		Color:          style.Tint,
		Orbit:          orbit,
		Source:         rec,
		missDistanceKm: km,
	}
	entity.Position = orbitPosition(orbit)

	return entity, nil
}

// parseFinite разбирает число и отбрасывает NaN и бесконечности
func parseFinite(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, strconv.ErrSyntax
	}
	return v, nil
}
