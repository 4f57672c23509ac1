package geometry

import (
	"image"
	"math"
)

// Moments holds the spatial moments of a closed polygon up to first order.
type Moments struct {
	M00 float64 // area
	M10 float64
	M01 float64
}

// PolygonMoments computes the zeroth and first moments of the closed polygon
// described by points using Green's theorem. This is the contour form of
// image moments: the polygon is treated as a filled shape, not a point set.
// The result is normalized to a non-negative area regardless of winding order.
func PolygonMoments(points []image.Point) Moments {
	n := len(points)
	if n < 3 {
		return Moments{}
	}

	var m Moments
	for i := 0; i < n; i++ {
		p := points[i]
		q := points[(i+1)%n]
		xi, yi := float64(p.X), float64(p.Y)
		xj, yj := float64(q.X), float64(q.Y)

		cross := xi*yj - xj*yi
		m.M00 += cross
		m.M10 += (xi + xj) * cross
		m.M01 += (yi + yj) * cross
	}
	m.M00 /= 2
	m.M10 /= 6
	m.M01 /= 6

	if m.M00 < 0 {
		m.M00, m.M10, m.M01 = -m.M00, -m.M10, -m.M01
	}
	return m
}

// Centroid returns the ratio of first to zeroth moments. ok is false for a
// degenerate (zero-area) polygon.
func (m Moments) Centroid() (Point2D, bool) {
	if math.Abs(m.M00) < 1e-12 {
		return Point2D{}, false
	}
	return Point2D{X: m.M10 / m.M00, Y: m.M01 / m.M00}, true
}
