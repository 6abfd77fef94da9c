package world

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestCamera_CenterRayLooksAtTarget(t *testing.T) {
	cam := DefaultCamera()

	ray, err := cam.RayFromNDC(0, 0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !ray.Origin.ApproxEqual(cam.Position) {
		t.Errorf("ray origin = %v, expected camera position %v", ray.Origin, cam.Position)
	}
	if !ray.Direction.ApproxEqualThreshold(mgl64.Vec3{0, 0, -1}, 1e-9) {
		t.Errorf("ray direction = %v, expected (0, 0, -1)", ray.Direction)
	}

	tHit, ok := ray.IntersectSphere(mgl64.Vec3{}, 6)
	if !ok {
		t.Fatal("center ray must hit the central body")
	}
	if math.Abs(tHit-29) > 1e-9 {
		t.Errorf("hit distance = %v, expected 29", tHit)
	}
}

func TestCamera_EdgeRayMatchesFieldOfView(t *testing.T) {
	cam := DefaultCamera()

	ray, err := cam.RayFromNDC(0, 1)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// Верхний край кадра отклонен от оси взгляда на половину угла обзора
	angle := math.Acos(ray.Direction.Dot(mgl64.Vec3{0, 0, -1}))
	want := mgl64.DegToRad(cam.FovY / 2)
	if math.Abs(angle-want) > 1e-9 {
		t.Errorf("edge ray angle = %v, expected %v", angle, want)
	}
	if ray.Direction.Y() <= 0 {
		t.Errorf("NDC y=+1 must point up, got %v", ray.Direction)
	}
}

func TestCamera_Degenerate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Camera)
	}{
		{"zero aspect", func(c *Camera) { c.Aspect = 0 }},
		{"far before near", func(c *Camera) { c.Far = c.Near / 2 }},
		{"zero fov", func(c *Camera) { c.FovY = 0 }},
		{"position equals target", func(c *Camera) { c.Target = c.Position }},
		{"up parallel to view", func(c *Camera) { c.Up = mgl64.Vec3{0, 0, 1} }},
		{"NaN position", func(c *Camera) { c.Position = mgl64.Vec3{math.NaN(), 0, 35} }},
		{"infinite target", func(c *Camera) { c.Target = mgl64.Vec3{0, math.Inf(1), 0} }},
		{"NaN fov", func(c *Camera) { c.FovY = math.NaN() }},
		{"infinite far", func(c *Camera) { c.Far = math.Inf(1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam := DefaultCamera()
			tt.mutate(&cam)
			if _, err := cam.RayFromNDC(0, 0); !errors.Is(err, ErrDegenerateCamera) {
				t.Errorf("Expected ErrDegenerateCamera, got %v", err)
			}
		})
	}
}

func TestRay_IntersectSphere(t *testing.T) {
	ray := Ray{Origin: mgl64.Vec3{0, 0, 10}, Direction: mgl64.Vec3{0, 0, -1}}

	if tHit, ok := ray.IntersectSphere(mgl64.Vec3{0, 0, 0}, 1); !ok || math.Abs(tHit-9) > 1e-12 {
		t.Errorf("front hit = %v %v, expected 9 true", tHit, ok)
	}
	if _, ok := ray.IntersectSphere(mgl64.Vec3{5, 0, 0}, 1); ok {
		t.Error("sphere off the ray must not be hit")
	}
	if _, ok := ray.IntersectSphere(mgl64.Vec3{0, 0, 20}, 1); ok {
		t.Error("sphere behind the origin must not be hit")
	}
	// Начало внутри сферы: берем дальнюю точку
	if tHit, ok := ray.IntersectSphere(mgl64.Vec3{0, 0, 10}, 2); !ok || math.Abs(tHit-2) > 1e-12 {
		t.Errorf("inside hit = %v %v, expected 2 true", tHit, ok)
	}
}

func TestRay_IntersectSphere_NonFiniteRayMisses(t *testing.T) {
	rays := []Ray{
		{Origin: mgl64.Vec3{0, 0, 10}, Direction: mgl64.Vec3{math.NaN(), math.NaN(), math.NaN()}},
		{Origin: mgl64.Vec3{1e200, 0, 0}, Direction: mgl64.Vec3{-1, 0, 0}},
		{Origin: mgl64.Vec3{math.Inf(1), 0, 0}, Direction: mgl64.Vec3{-1, 0, 0}},
	}
	for _, ray := range rays {
		if tHit, ok := ray.IntersectSphere(mgl64.Vec3{}, 6); ok {
			t.Errorf("ray %v: hit at %v, expected miss", ray, tHit)
		}
	}
}

func TestCoordinator_HugeCameraCoordinatesDoNotSelect(t *testing.T) {
	for _, coord := range []float64{1e150, 1e155, 1e200, 1e300} {
		c := newTestCoordinator(nil)
		cam := DefaultCamera()
		cam.Position = mgl64.Vec3{coord, 0, 0}

		changed, err := c.Click(0.9, 0.9, cam)
		if err != nil && !errors.Is(err, ErrDegenerateCamera) {
			t.Errorf("position %g: unexpected error %v", coord, err)
		}
		if changed {
			t.Errorf("position %g: click reported a selection change", coord)
		}
		if state := c.SelectionState(); state != SelectionIdle {
			t.Errorf("position %g: state = %v, expected idle", coord, state)
		}
	}
}
