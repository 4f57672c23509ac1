package track

import (
	"fmt"
	"image"

	"hsv-tracker/internal/region"
	"hsv-tracker/pkg/geometry"

	"gocv.io/x/gocv"
)

// Status describes the outcome of a detection cycle.
type Status int

const (
	// StatusNoise means no region qualified; the filter likely needs adjusting.
	StatusNoise Status = iota
	// StatusTracking means a region was selected.
	StatusTracking
	// StatusTooManyRegions means the mask broke into too many contours to
	// scan.
	StatusTooManyRegions
)

func (s Status) String() string {
	switch s {
	case StatusTracking:
		return "Tracking Object"
	case StatusNoise:
		return "TOO MUCH NOISE! ADJUST FILTER"
	case StatusTooManyRegions:
		return "TOO MANY OBJECTS! ADJUST FILTER"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// approxEpsilon is the polygon approximation tolerance, in pixels, used
// before taking the bounding box.
const approxEpsilon = 3

// Detection is the per-frame result handed to the display and steering.
type Detection struct {
	Found       bool
	Status      Status
	Centroid    geometry.Point2D
	BoundingBox image.Rectangle
	Area        float64
	// Regions is the number of contours extracted from the mask.
	Regions int
}

// Report builds the Detection for a selection. The bounding box is the
// upright rectangle of the coarse polygon approximation of the selected
// contour.
func Report(regions []region.Region, c Candidate, status Status) Detection {
	d := Detection{Status: status, Regions: len(regions)}
	if !c.Found() || c.Index >= len(regions) {
		if status == StatusTracking {
			d.Status = StatusNoise
		}
		return d
	}

	d.Found = true
	d.Status = StatusTracking
	d.Centroid = c.Centroid
	d.Area = c.Area
	d.BoundingBox = boundingBox(regions[c.Index].Points)
	return d
}

func boundingBox(points []image.Point) image.Rectangle {
	if len(points) == 0 {
		return image.Rectangle{}
	}
	contour := gocv.NewPointVectorFromPoints(points)
	defer contour.Close()

	approx := gocv.ApproxPolyDP(contour, approxEpsilon, true)
	defer approx.Close()
	if approx.Size() == 0 {
		return geometry.BoundingBox(points)
	}
	return gocv.BoundingRect(approx)
}
