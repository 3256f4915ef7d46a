package bridge

import (
	"math"

	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/geom/vec"

	"globe-overlay/internal/common"
)

// WGS84 ellipsoid
const (
	semiMajorAxis    = 6378137.0
	firstEccentricSq = 6.69437999014e-3
)

// toECEF converts a geodetic position in degrees and meters to
// earth-centered earth-fixed meters
func toECEF(pos common.Position) [3]float64 {
	lon := pos.Lon * math.Pi / 180
	lat := pos.Lat * math.Pi / 180
	sinLat, cosLat := math.Sincos(lat)
	sinLon, cosLon := math.Sincos(lon)

	n := semiMajorAxis / math.Sqrt(1-firstEccentricSq*sinLat*sinLat)
	return [3]float64{
		(n + pos.Height) * cosLat * cosLon,
		(n + pos.Height) * cosLat * sinLon,
		(n*(1-firstEccentricSq) + pos.Height) * sinLat,
	}
}

// windowTransform maps normalized device coordinates to window pixels
// with y growing downwards
func windowTransform(width, height float64) matrix.Matrix {
	return matrix.Matrix{width / 2, 0, 0, -height / 2, width / 2, height / 2}
}

func apply(m matrix.Matrix, v vec.Vec2) vec.Vec2 {
	return vec.Vec2{
		X: m[0]*v.X + m[2]*v.Y + m[4],
		Y: m[1]*v.X + m[3]*v.Y + m[5],
	}
}

// project maps a world position through the frame's camera. Points behind
// the camera or beyond the horizon do not project.
func (f *Frame) project(pos common.Position, ref common.HeightReference) (vec.Vec2, bool) {
	if f.Width <= 0 || f.Height <= 0 {
		return vec.Vec2{}, false
	}
	if ref == common.HeightClampToGround {
		// terrain height is only known to the globe
		pos.Height = 0
	}

	p := toECEF(pos)
	if f.Camera != [3]float64{} && occluded(f.Camera, p) {
		return vec.Vec2{}, false
	}

	m := &f.ViewProjection
	clipX := m[0]*p[0] + m[4]*p[1] + m[8]*p[2] + m[12]
	clipY := m[1]*p[0] + m[5]*p[1] + m[9]*p[2] + m[13]
	clipW := m[3]*p[0] + m[7]*p[1] + m[11]*p[2] + m[15]
	if clipW <= 0 {
		return vec.Vec2{}, false
	}

	ndc := vec.Vec2{X: clipX / clipW, Y: clipY / clipW}
	return apply(windowTransform(f.Width, f.Height), ndc), true
}

// occluded reports whether the globe hides p from the camera, treating
// the earth as a sphere
func occluded(camera, p [3]float64) bool {
	var dot float64
	for i := range 3 {
		dot += (camera[i] - p[i]) * p[i]
	}
	return dot < 0
}
