package geometry

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rectPolygon(x, y, w, h int) []image.Point {
	return []image.Point{{x, y}, {x, y + h}, {x + w, y + h}, {x + w, y}}
}

func TestPolygonMomentsRectangle(t *testing.T) {
	m := PolygonMoments(rectPolygon(10, 20, 30, 40))
	assert.InDelta(t, 1200.0, m.M00, 1e-9)

	c, ok := m.Centroid()
	require.True(t, ok)
	assert.InDelta(t, 25.0, c.X, 1e-9)
	assert.InDelta(t, 40.0, c.Y, 1e-9)
}

func TestPolygonMomentsWindingIndependent(t *testing.T) {
	cw := rectPolygon(0, 0, 8, 5)
	ccw := make([]image.Point, len(cw))
	for i := range cw {
		ccw[i] = cw[len(cw)-1-i]
	}

	assert.Equal(t, PolygonMoments(cw), PolygonMoments(ccw))
	assert.InDelta(t, 40.0, PolygonMoments(ccw).M00, 1e-9)
}

func TestPolygonMomentsTriangle(t *testing.T) {
	tri := []image.Point{{0, 0}, {6, 0}, {0, 6}}
	m := PolygonMoments(tri)
	assert.InDelta(t, 18.0, m.M00, 1e-9)

	c, ok := m.Centroid()
	require.True(t, ok)
	assert.InDelta(t, 2.0, c.X, 1e-9)
	assert.InDelta(t, 2.0, c.Y, 1e-9)
}

func TestPolygonMomentsDegenerate(t *testing.T) {
	assert.Equal(t, Moments{}, PolygonMoments(nil))
	assert.Equal(t, Moments{}, PolygonMoments([]image.Point{{1, 1}, {2, 2}}))

	line := []image.Point{{0, 0}, {5, 0}, {10, 0}}
	_, ok := PolygonMoments(line).Centroid()
	assert.False(t, ok)
}

func TestBoundingBoxInclusive(t *testing.T) {
	r := BoundingBox([]image.Point{{5, 7}, {14, 7}, {14, 20}, {5, 20}})
	assert.Equal(t, image.Rect(5, 7, 15, 21), r)
	assert.Equal(t, image.Rectangle{}, BoundingBox(nil))

	c := RectCenter(image.Rect(0, 0, 40, 20))
	assert.Equal(t, Point2D{X: 20, Y: 10}, c)
}

func TestPointHelpers(t *testing.T) {
	a := NewPoint2D(3, 4)
	assert.InDelta(t, 5.0, a.Distance(Point2D{}), 1e-9)
	assert.Equal(t, image.Pt(3, 4), NewPoint2D(3.9, 4.2).ImagePoint())
}
