package morph

// Mode selects the cleanup sequence applied to a mask.
type Mode int

const (
	// ModeOpenClose applies an opening with the erode element followed by a
	// closing with the dilate element: speckle removal plus hole filling.
	ModeOpenClose Mode = iota
	// ModeAggressive erodes twice then dilates twice. Kept for comparison
	// with older tuning; it never fills holes.
	ModeAggressive
)

func (m Mode) String() string {
	switch m {
	case ModeOpenClose:
		return "open-close"
	case ModeAggressive:
		return "aggressive"
	default:
		return "unknown"
	}
}

// ParseMode maps a config string to a Mode. Unknown strings fall back to
// ModeOpenClose.
func ParseMode(s string) Mode {
	if s == ModeAggressive.String() {
		return ModeAggressive
	}
	return ModeOpenClose
}

// Params holds the structuring element sizes for mask cleanup.
type Params struct {
	// ErodeSize strips foreground narrower than this many pixels.
	ErodeSize int
	// DilateSize grows survivors and closes gaps up to this size.
	DilateSize int
	Mode       Mode
}

// DefaultParams returns the tuned defaults: 12x12 erode, 8x8 dilate.
func DefaultParams() Params {
	return Params{
		ErodeSize:  12,
		DilateSize: 8,
		Mode:       ModeOpenClose,
	}
}

// WithSizes returns a copy of p with new element sizes. Sizes below 1 are
// raised to 1 (a no-op element).
func (p Params) WithSizes(erode, dilate int) Params {
	p.ErodeSize = max(1, erode)
	p.DilateSize = max(1, dilate)
	return p
}

// WithMode returns a copy of p using mode.
func (p Params) WithMode(mode Mode) Params {
	p.Mode = mode
	return p
}
