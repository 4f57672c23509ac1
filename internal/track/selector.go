// Package track turns a cleaned binary mask into a single tracked object: the
// largest qualifying region, its centroid, and its bounding box.
package track

import (
	"hsv-tracker/internal/region"
	"hsv-tracker/pkg/geometry"
)

// Selection defaults.
const (
	// DefaultMinArea is 20x20 pixels; anything smaller is treated as noise.
	DefaultMinArea = 20 * 20
	// DefaultMaxRegions caps how many contours a frame may produce before
	// the filter is considered too loose to trust.
	DefaultMaxRegions = 50
	// maxAreaDivisor sets the upper area bound relative to the frame area.
	maxAreaDivisor = 1.5
)

// NoCandidate is the Candidate index when nothing qualified.
const NoCandidate = -1

// Candidate identifies the selected region.
type Candidate struct {
	Index    int
	Area     float64
	Centroid geometry.Point2D
}

// Found reports whether the candidate refers to a region.
func (c Candidate) Found() bool {
	return c.Index != NoCandidate
}

// Selector picks the tracked region out of an extracted region list.
type Selector struct {
	MinArea    float64
	MaxArea    float64
	MaxRegions int
}

// Band sizes a Selector relative to the frame it is applied to.
type Band struct {
	MinArea float64
	// MaxAreaDivisor sets MaxArea to frame area / MaxAreaDivisor.
	MaxAreaDivisor float64
	MaxRegions     int
}

// DefaultBand returns the tuned band: 400 px minimum, frame area / 1.5
// maximum, at most 50 regions.
func DefaultBand() Band {
	return Band{
		MinArea:        DefaultMinArea,
		MaxAreaDivisor: maxAreaDivisor,
		MaxRegions:     DefaultMaxRegions,
	}
}

// For returns the selector for a width x height frame. A divisor below 1 or
// a non-positive region cap falls back to the default.
func (b Band) For(width, height int) Selector {
	if b.MaxAreaDivisor < 1 {
		b.MaxAreaDivisor = maxAreaDivisor
	}
	if b.MaxRegions <= 0 {
		b.MaxRegions = DefaultMaxRegions
	}
	return Selector{
		MinArea:    b.MinArea,
		MaxArea:    float64(width*height) / b.MaxAreaDivisor,
		MaxRegions: b.MaxRegions,
	}
}

// DefaultSelector returns the default band applied to a width x height frame.
func DefaultSelector(width, height int) Selector {
	return DefaultBand().For(width, height)
}

// Select walks the top-level regions in hierarchy order and returns the
// tracked candidate together with the status the frame should report.
//
// A region is accepted when its area lies strictly inside (MinArea, MaxArea)
// and exceeds the running reference area. Any visited region that fails the
// test resets the reference to zero, so a later, smaller region can still be
// picked. The frame has a candidate only if the reference is non-zero once
// the walk ends. Holes are never visited.
func (s Selector) Select(regions []region.Region) (Candidate, Status) {
	none := Candidate{Index: NoCandidate}

	if len(regions) == 0 {
		return none, StatusNoise
	}
	if s.MaxRegions > 0 && len(regions) >= s.MaxRegions {
		return none, StatusTooManyRegions
	}

	best := none
	refArea := 0.0
	for _, i := range region.TopLevel(regions) {
		m := regions[i].Moments()
		area := m.M00
		if area > s.MinArea && area < s.MaxArea && area > refArea {
			c, _ := m.Centroid()
			best = Candidate{Index: i, Area: area, Centroid: c}
			refArea = area
		} else {
			refArea = 0
		}
	}

	if refArea <= 0 {
		return none, StatusNoise
	}
	return best, StatusTracking
}
