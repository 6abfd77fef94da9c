package neo

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/goccy/go-json"

	"neo-viz/backend/internal/world"
)

// Feed ответ NeoWs /feed
type Feed struct {
	ElementCount     int                          `json:"element_count"`
	NearEarthObjects map[string][]NearEarthObject `json:"near_earth_objects"`
}

// NearEarthObject объект из ленты NeoWs
type NearEarthObject struct {
	ID                 string            `json:"id"`
	NeoReferenceID     string            `json:"neo_reference_id"`
	Name               string            `json:"name"`
	NasaJplURL         string            `json:"nasa_jpl_url"`
	AbsoluteMagnitudeH float64           `json:"absolute_magnitude_h"`
	EstimatedDiameter  EstimatedDiameter `json:"estimated_diameter"`
	Hazardous          bool              `json:"is_potentially_hazardous_asteroid"`
	CloseApproachData  []CloseApproach   `json:"close_approach_data"`
	IsSentryObject     bool              `json:"is_sentry_object"`
}

// EstimatedDiameter оценки диаметра в разных единицах
type EstimatedDiameter struct {
	Kilometers DiameterRange `json:"kilometers"`
	Meters     DiameterRange `json:"meters"`
}

// DiameterRange минимальная и максимальная оценка
type DiameterRange struct {
	Min float64 `json:"estimated_diameter_min"`
	Max float64 `json:"estimated_diameter_max"`
}

// CloseApproach событие сближения. Числа NeoWs отдает строками.
type CloseApproach struct {
	Date             string           `json:"close_approach_date"`
	DateFull         string           `json:"close_approach_date_full"`
	EpochMillis      int64            `json:"epoch_date_close_approach"`
	RelativeVelocity RelativeVelocity `json:"relative_velocity"`
	MissDistance     MissDistance     `json:"miss_distance"`
	OrbitingBody     string           `json:"orbiting_body"`
}

// RelativeVelocity относительная скорость
type RelativeVelocity struct {
	KilometersPerSecond string `json:"kilometers_per_second"`
	KilometersPerHour   string `json:"kilometers_per_hour"`
}

// MissDistance расстояние пролета
type MissDistance struct {
	Astronomical string `json:"astronomical"`
	Lunar        string `json:"lunar"`
	Kilometers   string `json:"kilometers"`
}

// DecodeFeed разбирает ленту
func DecodeFeed(raw []byte) (*Feed, error) {
	var feed Feed
	if err := json.Unmarshal(raw, &feed); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}
	return &feed, nil
}

// SanitizeFeed удаляет все объекты links (в них NeoWs вшивает ключ API)
// на верхнем уровне и у каждого астероида. Остальные поля не трогаются.
func SanitizeFeed(raw []byte) ([]byte, error) {
	var doc map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber() // числа остаются как в исходной ленте
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}

	delete(doc, "links")

	if byDate, ok := doc["near_earth_objects"].(map[string]interface{}); ok {
		for _, list := range byDate {
			objects, ok := list.([]interface{})
			if !ok {
				continue
			}
			for _, obj := range objects {
				if asteroid, ok := obj.(map[string]interface{}); ok {
					delete(asteroid, "links")
				}
			}
		}
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode feed: %w", err)
	}
	return out, nil
}

// ToRecords переводит ленту в записи сцены.
// Даты обходятся по возрастанию, внутри даты порядок ленты сохраняется.
func (f *Feed) ToRecords() []world.NearEarthObjectRecord {
	if f == nil {
		return nil
	}

	dates := make([]string, 0, len(f.NearEarthObjects))
	for d := range f.NearEarthObjects {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	var records []world.NearEarthObjectRecord
	for _, d := range dates {
		for _, obj := range f.NearEarthObjects[d] {
			records = append(records, obj.Record())
		}
	}
	return records
}

// Record переводит объект в запись сцены
func (o NearEarthObject) Record() world.NearEarthObjectRecord {
	approaches := make([]world.CloseApproach, 0, len(o.CloseApproachData))
	for _, ca := range o.CloseApproachData {
		approaches = append(approaches, world.CloseApproach{
			Date:                ca.Date,
			MissDistanceKm:      ca.MissDistance.Kilometers,
			RelativeVelocityKph: ca.RelativeVelocity.KilometersPerHour,
		})
	}
	return world.NearEarthObjectRecord{
		ID:                o.ID,
		Name:              o.Name,
		Hazardous:         o.Hazardous,
		DiameterMinMeters: o.EstimatedDiameter.Meters.Min,
		DiameterMaxMeters: o.EstimatedDiameter.Meters.Max,
		AbsoluteMagnitude: o.AbsoluteMagnitudeH,
		CloseApproaches:   approaches,
	}
}
