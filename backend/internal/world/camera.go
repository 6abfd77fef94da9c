package world

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Camera перспективная камера клиента
type Camera struct {
	Position mgl64.Vec3
	Target   mgl64.Vec3
	Up       mgl64.Vec3
	FovY     float64 // градусы
	Aspect   float64
	Near     float64
	Far      float64
}

// DefaultCamera камера из исходной сцены: смотрит на Землю с расстояния 35
func DefaultCamera() Camera {
	return Camera{
		Position: mgl64.Vec3{0, 0, 35},
		Target:   mgl64.Vec3{0, 0, 0},
		Up:       mgl64.Vec3{0, 1, 0},
		FovY:     45,
		Aspect:   16.0 / 9.0,
		Near:     0.1,
		Far:      1000,
	}
}

// Ray луч с нормированным направлением
type Ray struct {
	Origin    mgl64.Vec3
	Direction mgl64.Vec3
}

// At точка луча с параметром t
func (r Ray) At(t float64) mgl64.Vec3 {
	return r.Origin.Add(r.Direction.Mul(t))
}

// IntersectSphere возвращает ближайший неотрицательный параметр пересечения
func (r Ray) IntersectSphere(center mgl64.Vec3, radius float64) (float64, bool) {
	oc := r.Origin.Sub(center)
	b := oc.Dot(r.Direction)
	c := oc.Dot(oc) - radius*radius

	disc := b*b - c
	// NaN от переполнения тоже промах
	if !(disc >= 0) {
		return 0, false
	}

	sq := math.Sqrt(disc)
	t := -b - sq
	if t < 0 {
		// Начало луча внутри сферы
		t = -b + sq
	}
	if !(t >= 0) || math.IsInf(t, 0) {
		return 0, false
	}
	return t, true
}

func (c Camera) validate() error {
	if !finiteVec(c.Position) || !finiteVec(c.Target) || !finiteVec(c.Up) {
		return fmt.Errorf("%w: non-finite vector", ErrDegenerateCamera)
	}
	switch {
	case !(c.Aspect > 0) || math.IsInf(c.Aspect, 0):
		return fmt.Errorf("%w: aspect %v", ErrDegenerateCamera, c.Aspect)
	case !(c.Near > 0) || !(c.Far > c.Near) || math.IsInf(c.Far, 0):
		return fmt.Errorf("%w: near %v far %v", ErrDegenerateCamera, c.Near, c.Far)
	case !(c.FovY > 0) || !(c.FovY < 180):
		return fmt.Errorf("%w: fov %v", ErrDegenerateCamera, c.FovY)
	}

	view := c.Target.Sub(c.Position)
	if view.Len() < 1e-9 {
		return fmt.Errorf("%w: position equals target", ErrDegenerateCamera)
	}
	if view.Cross(c.up()).Len() < 1e-9 {
		return fmt.Errorf("%w: up vector parallel to view direction", ErrDegenerateCamera)
	}
	return nil
}

func (c Camera) up() mgl64.Vec3 {
	if c.Up.Len() < 1e-9 {
		return mgl64.Vec3{0, 1, 0}
	}
	return c.Up
}

// RayFromNDC строит луч из камеры через точку в нормализованных координатах
// устройства (x, y в [-1, 1], y вверх).
func (c Camera) RayFromNDC(x, y float64) (Ray, error) {
	if err := c.validate(); err != nil {
		return Ray{}, err
	}

	proj := mgl64.Perspective(mgl64.DegToRad(c.FovY), c.Aspect, c.Near, c.Far)
	view := mgl64.LookAtV(c.Position, c.Target, c.up())
	viewProj := proj.Mul4(view)
	if math.Abs(viewProj.Det()) < 1e-12 {
		return Ray{}, fmt.Errorf("%w: singular view-projection matrix", ErrDegenerateCamera)
	}

	inv := viewProj.Inv()
	point := inv.Mul4x1(mgl64.Vec4{x, y, 0.5, 1})
	if point.W() == 0 {
		return Ray{}, fmt.Errorf("%w: point at infinity", ErrDegenerateCamera)
	}
	world := point.Vec3().Mul(1 / point.W())
	dir := world.Sub(c.Position)
	length := dir.Len()
	if !finiteVec(dir) || !(length > 0) || math.IsInf(length, 0) {
		return Ray{}, fmt.Errorf("%w: ray direction is not finite", ErrDegenerateCamera)
	}

	return Ray{
		Origin:    c.Position,
		Direction: dir.Mul(1 / length),
	}, nil
}

func finiteVec(v mgl64.Vec3) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
