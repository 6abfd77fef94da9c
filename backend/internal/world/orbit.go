package world

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// SphericalToCartesian переводит сферические координаты в декартовы.
// polar отсчитывается от оси Y, azimuth вокруг оси Y.
func SphericalToCartesian(radius, polar, azimuth float64) mgl64.Vec3 {
	sinPolar := math.Sin(polar) * radius
	return mgl64.Vec3{
		sinPolar * math.Sin(azimuth),
		math.Cos(polar) * radius,
		sinPolar * math.Cos(azimuth),
	}
}

// orbitPosition позиция как чистая функция состояния орбиты
func orbitPosition(o OrbitState) mgl64.Vec3 {
	return SphericalToCartesian(o.Distance, o.Polar, o.Azimuth)
}

// OrbitalUpdater продвигает орбиты астероидов
type OrbitalUpdater struct{}

// Tick продвигает все астероиды на deltaPhase.
// Центральное тело не двигается.
func (OrbitalUpdater) Tick(entities []*SceneEntity, deltaPhase float64) {
	for _, e := range entities {
		if e == nil || e.Kind != KindAsteroid {
			continue
		}
		e.advance(deltaPhase)
	}
}

func (e *SceneEntity) advance(deltaPhase float64) {
	e.Orbit.Azimuth += e.Orbit.AngularSpeed * deltaPhase
	// Позицию всегда пересчитываем целиком, без накопления ошибки
	e.Position = orbitPosition(e.Orbit)

	e.RotationX += e.Orbit.SpinX * deltaPhase
	e.RotationZ += e.Orbit.SpinZ * deltaPhase
}
