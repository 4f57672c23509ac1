// Package hsv provides HSV range thresholding and the shared threshold bounds.
package hsv

import (
	"fmt"
	"sync/atomic"

	"gocv.io/x/gocv"
)

// Channel range exposed to the calibration sliders. OpenCV stores 8-bit hue
// as 0-179 and saturation/value as 0-255; an upper bound of 256 simply means
// "no upper limit" once saturated to 8 bits.
const (
	ChannelMin = 0
	ChannelMax = 256
)

// Field identifies one of the six threshold bounds.
type Field int

const (
	HMin Field = iota
	HMax
	SMin
	SMax
	VMin
	VMax
)

// Fields lists all bounds in slider order.
var Fields = []Field{HMin, HMax, SMin, SMax, VMin, VMax}

func (f Field) String() string {
	switch f {
	case HMin:
		return "H_MIN"
	case HMax:
		return "H_MAX"
	case SMin:
		return "S_MIN"
	case SMax:
		return "S_MAX"
	case VMin:
		return "V_MIN"
	case VMax:
		return "V_MAX"
	default:
		return "UNKNOWN"
	}
}

// Bounds is the six-integer HSV acceptance window. min <= max per channel is
// expected but not enforced: an inverted channel yields an empty mask.
type Bounds struct {
	HMin int `json:"h_min"`
	HMax int `json:"h_max"`
	SMin int `json:"s_min"`
	SMax int `json:"s_max"`
	VMin int `json:"v_min"`
	VMax int `json:"v_max"`
}

// FullRange returns bounds that accept every pixel.
func FullRange() Bounds {
	return Bounds{
		HMin: ChannelMin, HMax: ChannelMax,
		SMin: ChannelMin, SMax: ChannelMax,
		VMin: ChannelMin, VMax: ChannelMax,
	}
}

// Get returns the value of a single bound.
func (b Bounds) Get(f Field) int {
	switch f {
	case HMin:
		return b.HMin
	case HMax:
		return b.HMax
	case SMin:
		return b.SMin
	case SMax:
		return b.SMax
	case VMin:
		return b.VMin
	case VMax:
		return b.VMax
	}
	return 0
}

// With returns a copy of b with one bound replaced.
func (b Bounds) With(f Field, v int) Bounds {
	switch f {
	case HMin:
		b.HMin = v
	case HMax:
		b.HMax = v
	case SMin:
		b.SMin = v
	case SMax:
		b.SMax = v
	case VMin:
		b.VMin = v
	case VMax:
		b.VMax = v
	}
	return b
}

// Clamp returns a copy of b with every bound limited to [ChannelMin, ChannelMax].
func (b Bounds) Clamp() Bounds {
	for _, f := range Fields {
		v := b.Get(f)
		if v < ChannelMin {
			v = ChannelMin
		}
		if v > ChannelMax {
			v = ChannelMax
		}
		b = b.With(f, v)
	}
	return b
}

// Lower returns the inclusive lower bound as a scalar for InRange.
func (b Bounds) Lower() gocv.Scalar {
	return gocv.NewScalar(float64(b.HMin), float64(b.SMin), float64(b.VMin), 0)
}

// Upper returns the inclusive upper bound as a scalar for InRange.
func (b Bounds) Upper() gocv.Scalar {
	return gocv.NewScalar(float64(b.HMax), float64(b.SMax), float64(b.VMax), 0)
}

func (b Bounds) String() string {
	return fmt.Sprintf("H(%d-%d) S(%d-%d) V(%d-%d)", b.HMin, b.HMax, b.SMin, b.SMax, b.VMin, b.VMax)
}

// BoundsStore is the process-wide handle for the current threshold bounds.
// Readers take a whole snapshot per cycle and writers swap whole snapshots,
// so a worker never observes a half-updated window.
type BoundsStore struct {
	current atomic.Pointer[Bounds]
}

// NewBoundsStore creates a store seeded with initial.
func NewBoundsStore(initial Bounds) *BoundsStore {
	s := &BoundsStore{}
	s.Store(initial)
	return s
}

// Load returns the current bounds.
func (s *BoundsStore) Load() Bounds {
	return *s.current.Load()
}

// Store replaces all six bounds at once.
func (s *BoundsStore) Store(b Bounds) {
	s.current.Store(&b)
}

// Update applies fn to the current bounds and stores the result, retrying if
// another writer got in first. It returns the stored value.
func (s *BoundsStore) Update(fn func(Bounds) Bounds) Bounds {
	for {
		old := s.current.Load()
		next := fn(*old)
		if s.current.CompareAndSwap(old, &next) {
			return next
		}
	}
}

// Set replaces a single bound.
func (s *BoundsStore) Set(f Field, v int) Bounds {
	return s.Update(func(b Bounds) Bounds { return b.With(f, v) })
}
