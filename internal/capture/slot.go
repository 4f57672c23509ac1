package capture

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"hsv-tracker/internal/track"

	"gocv.io/x/gocv"
)

// Frame is one raw capture. The holder owns Mat and must Close it.
type Frame struct {
	Mat        gocv.Mat
	Seq        uint64
	CapturedAt time.Time
}

// Close releases the frame's pixels.
func (f Frame) Close() error {
	return f.Mat.Close()
}

// Snapshot is the raw frame, its HSV conversion and cleaned mask from a single
// detection cycle, plus that cycle's result. All three images always belong
// to the same cycle.
type Snapshot struct {
	Raw       gocv.Mat
	HSV       gocv.Mat
	Mask      gocv.Mat
	Detection track.Detection
	Worker    int
	Seq       uint64
	At        time.Time

	refs atomic.Int32
}

func newSnapshot(raw, hsvFrame, mask gocv.Mat, d track.Detection, worker int, seq uint64) *Snapshot {
	s := &Snapshot{
		Raw:       raw,
		HSV:       hsvFrame,
		Mask:      mask,
		Detection: d,
		Worker:    worker,
		Seq:       seq,
		At:        time.Now(),
	}
	s.refs.Store(1)
	return s
}

// Release drops one reference. The images are freed when the last holder
// releases.
func (s *Snapshot) Release() {
	if s == nil {
		return
	}
	if s.refs.Add(-1) == 0 {
		s.Raw.Close()
		s.HSV.Close()
		s.Mask.Close()
	}
}

// Slot holds the most recently published snapshot. Publishing replaces the
// whole snapshot under a lock, so readers never observe images from two
// different cycles.
type Slot struct {
	mu    sync.Mutex
	cur   *Snapshot
	ready chan struct{}
	once  sync.Once
}

// NewSlot returns an empty slot.
func NewSlot() *Slot {
	return &Slot{ready: make(chan struct{})}
}

// Publish stores s as the latest snapshot and takes over the caller's
// reference. The previous snapshot is released.
func (sl *Slot) Publish(s *Snapshot) {
	sl.mu.Lock()
	old := sl.cur
	sl.cur = s
	sl.mu.Unlock()

	old.Release()
	sl.once.Do(func() { close(sl.ready) })
}

// Acquire returns the latest snapshot with an extra reference, or nil if
// nothing was published yet. The caller must Release it.
func (sl *Slot) Acquire() *Snapshot {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.cur == nil {
		return nil
	}
	sl.cur.refs.Add(1)
	return sl.cur
}

// Wait blocks until the first snapshot is published, then acquires it.
func (sl *Slot) Wait(ctx context.Context) (*Snapshot, error) {
	select {
	case <-sl.ready:
		return sl.Acquire(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close releases the slot's reference to the current snapshot.
func (sl *Slot) Close() {
	sl.mu.Lock()
	old := sl.cur
	sl.cur = nil
	sl.mu.Unlock()
	old.Release()
}
