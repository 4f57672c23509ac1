package display

import "hsv-tracker/internal/hsv"

// sliders is the six-trackbar panel, one slider per bound.
type sliders interface {
	Pos(f hsv.Field) int
	SetPos(f hsv.Field, v int)
}

// syncBounds reconciles the slider panel with the bounds store and returns the
// bounds both now agree on. applied is the value from the previous call.
//
// A store value that differs from applied came from elsewhere (calibration),
// so the sliders are moved to it. Otherwise any slider that moved is written
// to the store field by field, leaving concurrent writes to other fields
// intact.
func syncBounds(store *hsv.BoundsStore, sl sliders, applied hsv.Bounds) hsv.Bounds {
	cur := store.Load()
	if cur != applied {
		for _, f := range hsv.Fields {
			sl.SetPos(f, cur.Get(f))
		}
		return cur
	}

	for _, f := range hsv.Fields {
		if v := sl.Pos(f); v != cur.Get(f) {
			cur = store.Set(f, v)
		}
	}
	return cur
}
