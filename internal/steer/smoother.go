package steer

import (
	"hsv-tracker/pkg/geometry"

	kalman_filter "github.com/LdDl/kalman-filter"
	"github.com/pkg/errors"
)

// SmootherParams are the constant-acceleration Kalman filter settings.
type SmootherParams struct {
	Dt       float64
	Ux, Uy   float64
	StdDevA  float64
	StdDevMx float64
	StdDevMy float64
	// MaxJump restarts the track when an observation lands farther than this
	// many pixels from the current estimate. Zero disables the gate.
	MaxJump float64
}

// DefaultSmootherParams suits a ~30 fps feed with pixel-level centroid noise.
func DefaultSmootherParams() SmootherParams {
	return SmootherParams{
		Dt:       1.0 / 30.0,
		Ux:       1.0,
		Uy:       1.0,
		StdDevA:  2.0,
		StdDevMx: 0.5,
		StdDevMy: 0.5,
		MaxJump:  150,
	}
}

// Smoother filters the tracked centroid so steering does not chatter on
// segmentation jitter. It is not safe for concurrent use.
type Smoother struct {
	params  SmootherParams
	tracker *kalman_filter.Kalman2D
	last    geometry.Point2D
}

// NewSmoother returns a smoother that starts on the first observation.
func NewSmoother(p SmootherParams) *Smoother {
	return &Smoother{params: p}
}

// Observe feeds a measured centroid and returns the filtered estimate.
func (s *Smoother) Observe(p geometry.Point2D) (geometry.Point2D, error) {
	if s.tracker == nil || (s.params.MaxJump > 0 && p.Distance(s.last) > s.params.MaxJump) {
		s.tracker = kalman_filter.NewKalman2D(s.params.Dt, s.params.Ux, s.params.Uy,
			s.params.StdDevA, s.params.StdDevMx, s.params.StdDevMy,
			kalman_filter.WithState2D(p.X, p.Y))
		s.last = p
		return p, nil
	}

	s.tracker.Predict()
	if err := s.tracker.Update(p.X, p.Y); err != nil {
		return p, errors.Wrap(err, "Can't update centroid smoother")
	}
	x, y := s.tracker.GetState()
	s.last = geometry.NewPoint2D(x, y)
	return s.last, nil
}

// Predict advances the filter one step without a measurement and returns the
// predicted position. ok is false before the first observation.
func (s *Smoother) Predict() (geometry.Point2D, bool) {
	if s.tracker == nil {
		return geometry.Point2D{}, false
	}
	s.tracker.Predict()
	x, y := s.tracker.GetState()
	s.last = geometry.NewPoint2D(x, y)
	return s.last, true
}

// Reset forgets the track; the next observation starts a new one.
func (s *Smoother) Reset() {
	s.tracker = nil
}
