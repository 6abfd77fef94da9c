package ws

import (
	"math"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl64"

	"neo-viz/backend/internal/world"
)

// Параметры звездного поля
const (
	StarCount     = 4000
	StarExtent    = 800.0
	StarPointSize = 0.5
	starSeed      = 0x5eed
)

// safeFloat заменяет NaN и бесконечности на значение по умолчанию
func safeFloat(val, defaultVal float64) float64 {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return defaultVal
	}
	return val
}

func vec3DTO(v mgl64.Vec3) Vec3DTO {
	return Vec3DTO{X: safeFloat(v[0], 0), Y: safeFloat(v[1], 0), Z: safeFloat(v[2], 0)}
}

func quatDTO(q mgl64.Quat) QuatDTO {
	return QuatDTO{
		X: safeFloat(q.V[0], 0),
		Y: safeFloat(q.V[1], 0),
		Z: safeFloat(q.V[2], 0),
		W: safeFloat(q.W, 1),
	}
}

// NewEntityRow строка панели инспекции: размер и расстояние округлены
func NewEntityRow(info *world.EntityInfo) *EntityRow {
	if info == nil {
		return nil
	}
	return &EntityRow{
		NeoID:          info.ID,
		Name:           info.Name,
		DisplayName:    info.DisplayName,
		Hazardous:      info.Hazardous,
		SizeMeters:     int64(math.Round(info.DiameterMeters)),
		DistanceKm:     int64(math.Round(info.MissDistanceKm)),
		ApproachDate:   info.ApproachDate,
		VelocityKph:    info.VelocityKph,
		AbsoluteMag:    info.AbsoluteMagnitude,
		OrbitDistance:  info.OrbitDistance,
		VisualRadius:   info.VisualRadius,
		DiameterMeters: info.DiameterMeters,
	}
}

// NewEntityDTO описание сущности для создания на клиенте
func NewEntityDTO(view world.EntityView, info *world.EntityInfo) EntityDTO {
	return EntityDTO{
		ID:       world.FormatHandle(view.Handle),
		Kind:     view.Kind.String(),
		Geometry: string(view.Geometry),
		Radius:   safeFloat(view.Radius, 1),
		Color:    view.Color,
		Position: vec3DTO(view.Position),
		Rotation: quatDTO(view.Rotation),
		Info:     NewEntityRow(info),
	}
}

// NewSceneResetMessage собирает полный набор сущностей.
// Описания сопоставляются с видами по хэндлу.
func NewSceneResetMessage(generation uint64, date string, views []world.EntityView, catalog []*world.EntityInfo) *SceneResetMessage {
	byHandle := make(map[world.Handle]*world.EntityInfo, len(catalog))
	for _, info := range catalog {
		if info != nil {
			byHandle[info.Handle] = info
		}
	}

	entities := make([]EntityDTO, 0, len(views))
	for _, v := range views {
		entities = append(entities, NewEntityDTO(v, byHandle[v.Handle]))
	}
	return &SceneResetMessage{
		Type:       MessageTypeSceneReset,
		Generation: generation,
		Date:       date,
		Entities:   entities,
	}
}

// NewBatchUpdateMessage пакет позиций за кадр
func NewBatchUpdateMessage(frame uint64, views []world.EntityView) *BatchUpdateMessage {
	objects := make(map[string]ObjectUpdate, len(views))
	for _, v := range views {
		objects[world.FormatHandle(v.Handle)] = ObjectUpdate{
			Position: vec3DTO(v.Position),
			Rotation: quatDTO(v.Rotation),
			Color:    v.Color,
		}
	}
	return &BatchUpdateMessage{
		Type:       MessageTypeBatchUpdate,
		Frame:      frame,
		ServerTime: GetCurrentServerTime(),
		Objects:    objects,
	}
}

// NewStarField равномерно заполняет куб [-extent/2, extent/2]^3.
// Одинаковый seed дает одинаковое поле.
func NewStarField(count int, extent, pointSize float64, seed uint64) StarField {
	if count < 0 {
		count = 0
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	positions := make([]float64, 0, count*3)
	for i := 0; i < count*3; i++ {
		// Округляем до сотых, чтобы не раздувать сообщение
		v := (rng.Float64() - 0.5) * extent
		positions = append(positions, math.Round(v*100)/100)
	}
	return StarField{
		Count:     count,
		Extent:    extent,
		PointSize: pointSize,
		Positions: positions,
	}
}

// DefaultStarField звездное поле с параметрами по умолчанию
func DefaultStarField() StarField {
	return NewStarField(StarCount, StarExtent, StarPointSize, starSeed)
}

// NewSceneConfigMessage конфигурация сцены для клиента
func NewSceneConfigMessage(sessionID string, cfg world.Config, frameRate, streamEvery int, stars StarField) *SceneConfigMessage {
	return &SceneConfigMessage{
		Type:              MessageTypeSceneConfig,
		SessionID:         sessionID,
		CentralBodyRadius: cfg.CentralBodyRadius,
		DistanceDivisor:   cfg.DistanceDivisor,
		SizeDivisor:       cfg.SizeDivisor,
		MinRadius:         cfg.MinRadius,
		HazardMinRadius:   cfg.HazardMinRadius,
		HighlightColor:    cfg.HighlightColor,
		DeselectOnMiss:    cfg.DeselectOnMiss,
		FrameRate:         frameRate,
		StreamEvery:       streamEvery,
		Stars:             stars,
	}
}
