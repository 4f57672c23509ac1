// Package display shows the tracker's frames in highgui windows and exposes
// the threshold bounds as trackbars.
package display

import (
	"context"
	"image"
	"time"

	"hsv-tracker/internal/capture"
	"hsv-tracker/internal/hsv"
	"hsv-tracker/internal/steer"
	"hsv-tracker/ui/overlay"

	"gocv.io/x/gocv"
)

// Window titles.
const (
	WindowOriginal  = "Original Image"
	WindowHSV       = "HSV Image"
	WindowThreshold = "Thresholded Image"
	WindowControls  = "Trackbars"
)

// Keys that end the display loop.
const (
	keyEsc = 27
	keyQ   = 'q'
)

// trackbars adapts highgui trackbars to the sliders interface.
type trackbars map[hsv.Field]*gocv.Trackbar

func (t trackbars) Pos(f hsv.Field) int       { return t[f].GetPos() }
func (t trackbars) SetPos(f hsv.Field, v int) { t[f].SetPos(v) }

// Display owns the windows. All methods must be called from the goroutine that
// created it, normally main.
type Display struct {
	original, hsvWin, mask, controls *gocv.Window
	bars                             trackbars
	store                            *hsv.BoundsStore
	applied                          hsv.Bounds
	guides                           steer.Guides
	scratch                          gocv.Mat
}

// Open creates the windows and trackbars, initialised from store.
func Open(store *hsv.BoundsStore, guides steer.Guides) *Display {
	d := &Display{
		original: gocv.NewWindow(WindowOriginal),
		hsvWin:   gocv.NewWindow(WindowHSV),
		mask:     gocv.NewWindow(WindowThreshold),
		controls: gocv.NewWindow(WindowControls),
		bars:     make(trackbars, len(hsv.Fields)),
		store:    store,
		guides:   guides,
		scratch:  gocv.NewMat(),
	}
	cur := store.Load()
	for _, f := range hsv.Fields {
		tb := d.controls.CreateTrackbar(f.String(), hsv.ChannelMax)
		tb.SetPos(cur.Get(f))
		d.bars[f] = tb
	}
	d.applied = cur
	return d
}

// SyncBounds applies slider moves to the store, or moves the sliders after an
// external update.
func (d *Display) SyncBounds() {
	d.applied = syncBounds(d.store, d.bars, d.applied)
}

// Show renders a snapshot: the raw frame with guides and target overlay, the
// HSV image and the cleaned mask. The snapshot itself is not modified.
func (d *Display) Show(s *capture.Snapshot) {
	if s == nil || s.Raw.Empty() {
		return
	}
	s.Raw.CopyTo(&d.scratch)
	overlay.Guides(&d.scratch, d.guides)
	overlay.Target(&d.scratch, s.Detection)
	d.original.IMShow(d.scratch)
	d.hsvWin.IMShow(s.HSV)
	d.mask.IMShow(s.Mask)
}

// ShowCountdown renders a calibration frame with the ROI and remaining time.
func (d *Display) ShowCountdown(remaining time.Duration, roi image.Rectangle, frame gocv.Mat) {
	frame.CopyTo(&d.scratch)
	overlay.Countdown(&d.scratch, roi, remaining)
	d.original.IMShow(d.scratch)
	d.original.WaitKey(1)
}

// Poll pumps window events for up to wait and reports whether quit was pressed.
func (d *Display) Poll(wait time.Duration) bool {
	key := d.original.WaitKey(max(1, int(wait/time.Millisecond)))
	return key == keyEsc || key == keyQ
}

// Loop shows the slot's latest snapshot every wait until ctx ends or the user
// quits. It blocks until the first snapshot arrives.
func (d *Display) Loop(ctx context.Context, slot *capture.Slot, wait time.Duration) error {
	first, err := slot.Wait(ctx)
	if err != nil {
		return err
	}
	first.Release()

	for ctx.Err() == nil {
		d.SyncBounds()
		snap := slot.Acquire()
		d.Show(snap)
		snap.Release()
		if d.Poll(wait) {
			return nil
		}
	}
	return nil
}

// Close destroys the windows.
func (d *Display) Close() error {
	d.scratch.Close()
	for _, w := range []*gocv.Window{d.original, d.hsvWin, d.mask, d.controls} {
		if err := w.Close(); err != nil {
			return err
		}
	}
	return nil
}
