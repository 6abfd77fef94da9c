package world

import "math"

// Scaler переводит реальные единицы в единицы сцены
type Scaler struct {
	centralBodyRadius float64
	distanceDivisor   float64
	sizeDivisor       float64
	minRadius         float64
}

// NewScaler создает Scaler из конфигурации
func NewScaler(cfg Config) Scaler {
	return Scaler{
		centralBodyRadius: cfg.CentralBodyRadius,
		distanceDivisor:   cfg.DistanceDivisor,
		sizeDivisor:       cfg.SizeDivisor,
		minRadius:         cfg.MinRadius,
	}
}

// DistanceToScene переводит километры в радиус орбиты
func (s Scaler) DistanceToScene(km float64) float64 {
	return s.centralBodyRadius + km/s.distanceDivisor
}

// SizeToScene переводит диаметр в метрах в визуальный радиус.
// NaN на входе дает NaN на выходе.
func (s Scaler) SizeToScene(meters float64) float64 {
	return math.Max(s.minRadius, (meters/s.sizeDivisor)/2)
}
