// Package steer converts tracked positions into coarse steering commands for
// a camera platform.
package steer

import (
	"fmt"

	"hsv-tracker/pkg/geometry"
)

// Guide line offsets from the frame centre, in pixels.
const (
	DefaultDeltaX = 120
	DefaultDeltaY = 100
)

// Horizontal is the left/right zone of a position.
type Horizontal int

const (
	HCenter Horizontal = iota
	Left
	Right
)

func (h Horizontal) String() string {
	switch h {
	case Left:
		return "LEFT"
	case Right:
		return "RIGHT"
	default:
		return "CENTER"
	}
}

// Vertical is the up/down zone of a position.
type Vertical int

const (
	VCenter Vertical = iota
	Up
	Down
)

func (v Vertical) String() string {
	switch v {
	case Up:
		return "UP"
	case Down:
		return "DOWN"
	default:
		return "CENTER"
	}
}

// Guides are the centre lines of the frame and the dead band around them.
// A position between CenterX-DeltaX and CenterX+DeltaX (inclusive) needs no
// horizontal correction; likewise vertically.
type Guides struct {
	CenterX, CenterY int
	DeltaX, DeltaY   int
}

// NewGuides returns the guides for a width x height frame.
func NewGuides(width, height int) Guides {
	return Guides{
		CenterX: width/2 + 1,
		CenterY: height/2 + 1,
		DeltaX:  DefaultDeltaX,
		DeltaY:  DefaultDeltaY,
	}
}

// VerticalLines returns the x positions of the left band edge, the centre and
// the right band edge.
func (g Guides) VerticalLines() [3]int {
	return [3]int{g.CenterX - g.DeltaX, g.CenterX, g.CenterX + g.DeltaX}
}

// HorizontalLines returns the y positions of the upper band edge, the centre
// and the lower band edge.
func (g Guides) HorizontalLines() [3]int {
	return [3]int{g.CenterY - g.DeltaY, g.CenterY, g.CenterY + g.DeltaY}
}

// Command is one steering instruction.
type Command struct {
	H  Horizontal
	V  Vertical
	At geometry.Point2D
	// Lost is set when nothing is tracked; H and V are then centred.
	Lost bool
}

func (c Command) String() string {
	if c.Lost {
		return "LOST"
	}
	return fmt.Sprintf("%s %s %d %d", c.H, c.V, int(c.At.X), int(c.At.Y))
}

// Classify places p in the guide zones. Image y grows downwards, so a point
// above the band is Up.
func (g Guides) Classify(p geometry.Point2D) Command {
	c := Command{At: p}
	switch {
	case p.X < float64(g.CenterX-g.DeltaX):
		c.H = Left
	case p.X > float64(g.CenterX+g.DeltaX):
		c.H = Right
	}
	switch {
	case p.Y < float64(g.CenterY-g.DeltaY):
		c.V = Up
	case p.Y > float64(g.CenterY+g.DeltaY):
		c.V = Down
	}
	return c
}
