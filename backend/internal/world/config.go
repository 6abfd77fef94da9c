package world

import (
	"errors"
	"fmt"
)

// Config настройки сцены
type Config struct {
	// Масштабирование единиц
	CentralBodyRadius float64 // Радиус центрального тела в единицах сцены
	DistanceDivisor   float64 // Километров на единицу сцены
	SizeDivisor       float64 // Метров на единицу сцены
	MinRadius         float64 // Минимальный видимый радиус
	HazardMinRadius   float64 // Минимальный радиус опасных астероидов

	// Движение
	BaseAngularSpeed   float64 // Базовая угловая скорость (радиан за единицу фазы)
	AngularSpeedJitter float64 // Случайная добавка к угловой скорости
	SpinRange          float64 // Размах скорости собственного вращения

	// Выделение
	HighlightColor string
	DeselectOnMiss bool // Клик в пустоту снимает выделение
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() Config {
	return Config{
		CentralBodyRadius: 6.0,
		DistanceDivisor:   1_000_000.0,
		SizeDivisor:       1000.0,
		MinRadius:         0.3,
		HazardMinRadius:   0.6,

		BaseAngularSpeed:   0.0005,
		AngularSpeedJitter: 0.0005,
		SpinRange:          0.02,

		HighlightColor: TintHighlight,
		DeselectOnMiss: true,
	}
}

// Validate проверяет конфигурацию
func (c Config) Validate() error {
	var errs []error
	if c.CentralBodyRadius <= 0 {
		errs = append(errs, fmt.Errorf("central body radius must be > 0, got %v", c.CentralBodyRadius))
	}
	if c.DistanceDivisor <= 0 {
		errs = append(errs, fmt.Errorf("distance divisor must be > 0, got %v", c.DistanceDivisor))
	}
	if c.SizeDivisor <= 0 {
		errs = append(errs, fmt.Errorf("size divisor must be > 0, got %v", c.SizeDivisor))
	}
	if c.MinRadius <= 0 {
		errs = append(errs, fmt.Errorf("min radius must be > 0, got %v", c.MinRadius))
	}
	if c.HazardMinRadius < c.MinRadius {
		errs = append(errs, fmt.Errorf("hazard min radius %v below min radius %v", c.HazardMinRadius, c.MinRadius))
	}
	if c.BaseAngularSpeed <= 0 {
		errs = append(errs, fmt.Errorf("base angular speed must be > 0, got %v", c.BaseAngularSpeed))
	}
	if c.AngularSpeedJitter < 0 {
		errs = append(errs, fmt.Errorf("angular speed jitter must be >= 0, got %v", c.AngularSpeedJitter))
	}
	if c.HighlightColor == "" {
		errs = append(errs, errors.New("highlight color is empty"))
	}
	return errors.Join(errs...)
}

// asteroidStyle строка таблицы стилей астероидов
type asteroidStyle struct {
	Geometry GeometryClass
	Tint     string
}

// asteroidStyles таблица стилей по флагу опасности
var asteroidStyles = map[bool]asteroidStyle{
	false: {Geometry: GeometryDodecahedron, Tint: TintAsteroid},
	true:  {Geometry: GeometryIcosahedron, Tint: TintHazardous},
}

// floorRadius минимальный радиус с учетом опасности
func (c Config) floorRadius(hazardous bool) float64 {
	if hazardous {
		return c.HazardMinRadius
	}
	return c.MinRadius
}
