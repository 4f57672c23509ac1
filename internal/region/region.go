// Package region extracts connected foreground regions and their
// containment hierarchy from a binary mask.
package region

import (
	"image"

	"hsv-tracker/pkg/geometry"

	"gocv.io/x/gocv"
)

// NoLink marks an absent hierarchy neighbour.
const NoLink = -1

// Link mirrors one entry of OpenCV's contour hierarchy. Indices refer to the
// slice returned by Extract.
type Link struct {
	Next       int
	Prev       int
	FirstChild int
	Parent     int
}

// TopLevel reports whether the region is an outer boundary.
func (l Link) TopLevel() bool {
	return l.Parent == NoLink
}

// Region is one contour: the boundary polygon of a connected component (or of
// a hole inside one) plus its hierarchy links.
type Region struct {
	Points []image.Point
	Link   Link
}

// Moments returns the polygon moments of the region's boundary.
func (r Region) Moments() geometry.Moments {
	return geometry.PolygonMoments(r.Points)
}

// Area returns the area enclosed by the boundary polygon.
func (r Region) Area() float64 {
	return r.Moments().M00
}

// Extract finds every contour of mask using two-level (component/hole)
// retrieval with simple chain approximation. The mask is not modified. An
// empty or all-background mask yields no regions.
func Extract(mask gocv.Mat) []Region {
	if mask.Empty() {
		return nil
	}

	// findContours may write into its input on older OpenCV builds.
	work := mask.Clone()
	defer work.Close()

	hierarchy := gocv.NewMat()
	defer hierarchy.Close()

	contours := gocv.FindContoursWithParams(work, &hierarchy, gocv.RetrievalCComp, gocv.ChainApproxSimple)
	defer contours.Close()

	n := contours.Size()
	if n == 0 {
		return nil
	}

	regions := make([]Region, n)
	for i := 0; i < n; i++ {
		regions[i] = Region{
			Points: contours.At(i).ToPoints(),
			Link:   linkAt(hierarchy, i, n),
		}
	}
	return regions
}

// linkAt decodes hierarchy entry i. A missing hierarchy degrades to a flat
// sibling chain so callers can still walk every contour.
func linkAt(hierarchy gocv.Mat, i, n int) Link {
	if hierarchy.Empty() || hierarchy.Cols() < n {
		l := Link{Next: i + 1, Prev: i - 1, FirstChild: NoLink, Parent: NoLink}
		if l.Next >= n {
			l.Next = NoLink
		}
		return l
	}
	v := hierarchy.GetVeciAt(0, i)
	return Link{
		Next:       int(v[0]),
		Prev:       int(v[1]),
		FirstChild: int(v[2]),
		Parent:     int(v[3]),
	}
}

// TopLevel returns the indices reached by following Next links from the first
// region. The walk stops after len(regions) steps so malformed links cannot
// loop forever.
func TopLevel(regions []Region) []int {
	if len(regions) == 0 {
		return nil
	}
	var out []int
	for i, steps := 0, 0; i >= 0 && i < len(regions) && steps < len(regions); steps++ {
		out = append(out, i)
		i = regions[i].Link.Next
	}
	return out
}
