package world

import (
	"io"
	"log"
	"math/rand/v2"
)

// recordingListener запоминает все уведомления о выделении
type recordingListener struct {
	events []*EntityInfo
}

func (l *recordingListener) SelectionChanged(info *EntityInfo) {
	l.events = append(l.events, info)
}

func (l *recordingListener) last() *EntityInfo {
	if len(l.events) == 0 {
		return nil
	}
	return l.events[len(l.events)-1]
}

func testRand() *rand.Rand {
	return rand.New(rand.NewPCG(42, 1024))
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newRecord(id string, missKm string, diameter float64, hazardous bool) NearEarthObjectRecord {
	return NearEarthObjectRecord{
		ID:                id,
		Name:              "(" + id + ")",
		Hazardous:         hazardous,
		DiameterMaxMeters: diameter,
		CloseApproaches: []CloseApproach{
			{Date: "2024-01-01", MissDistanceKm: missKm, RelativeVelocityKph: "45000.5"},
		},
	}
}

func newTestCoordinator(listener SelectionListener) *Coordinator {
	c, err := NewCoordinator(DefaultConfig(), testRand(), listener, testLogger())
	if err != nil {
		panic(err)
	}
	return c
}

// placeAt ставит астероид в заданные сферические углы
func placeAt(e *SceneEntity, polar, azimuth float64) {
	e.Orbit.Polar = polar
	e.Orbit.Azimuth = azimuth
	e.advance(0)
}
