package capture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"log"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"hsv-tracker/internal/hsv"
	"hsv-tracker/internal/testutil"
	"hsv-tracker/internal/track"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

var (
	green       = testutil.HSV{H: 60, S: 200, V: 200}
	black       = testutil.HSV{}
	greenBounds = hsv.Bounds{HMin: 50, HMax: 70, SMin: 150, SMax: 256, VMin: 150, VMax: 256}
	square      = image.Rect(60, 40, 100, 80)
)

func quietOptions() Options {
	opts := DefaultOptions()
	opts.Logger = log.New(&bytes.Buffer{}, "", 0)
	opts.RetryDelay = time.Millisecond
	return opts
}

// alternatingSource hands out a frame with the target, then one without, and
// records how many reads overlap.
type alternatingSource struct {
	with, without gocv.Mat
	n             atomic.Uint64
	inFlight      atomic.Int32
	maxInFlight   atomic.Int32
}

func newAlternatingSource() *alternatingSource {
	return &alternatingSource{
		with:    testutil.SquareFrame(160, 120, square, green, black),
		without: testutil.SquareFrame(160, 120, image.Rectangle{}, green, black),
	}
}

func (s *alternatingSource) Read(dst *gocv.Mat) bool {
	cur := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		m := s.maxInFlight.Load()
		if cur <= m || s.maxInFlight.CompareAndSwap(m, cur) {
			break
		}
	}
	time.Sleep(time.Millisecond)

	if s.n.Add(1)%2 == 1 {
		s.with.CopyTo(dst)
	} else {
		s.without.CopyTo(dst)
	}
	return true
}

func (s *alternatingSource) Close() error {
	s.with.Close()
	return s.without.Close()
}

// hasTarget reports whether the raw BGR frame carries the green square.
func hasTarget(raw gocv.Mat) bool {
	c := square.Min.Add(square.Max).Div(2)
	return raw.GetUCharAt(c.Y, c.X*3+1) > 0
}

func TestRunReadsNeverOverlapAndSnapshotsStayConsistent(t *testing.T) {
	src := newAlternatingSource()
	defer src.Close()

	c := NewCoordinator(src, hsv.NewBoundsStore(greenBounds), quietOptions())
	defer c.Slot().Close()

	ctx, cancel := context.WithTimeout(context.Background(), 400*time.Millisecond)
	defer cancel()

	var checked atomic.Int32
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		snap, err := c.Slot().Wait(ctx)
		if err != nil {
			return
		}
		snap.Release()
		for ctx.Err() == nil {
			snap := c.Slot().Acquire()
			raw := hasTarget(snap.Raw)
			masked := gocv.CountNonZero(snap.Mask) > 0
			if raw != masked || raw != snap.Detection.Found {
				t.Errorf("snapshot %d mixes cycles: raw=%v mask=%v found=%v",
					snap.Seq, raw, masked, snap.Detection.Found)
			}
			snap.Release()
			checked.Add(1)
			time.Sleep(time.Millisecond)
		}
	}()

	require.NoError(t, c.Run(ctx, 4))
	wg.Wait()

	assert.Equal(t, int32(1), src.maxInFlight.Load())
	assert.Positive(t, checked.Load())

	stats := c.Stats()
	assert.Positive(t, stats.Published)
	assert.Equal(t, stats.Acquired, stats.Published)
	assert.Zero(t, stats.ReadFailures)
}

func TestAcquireFrame(t *testing.T) {
	frame := testutil.SquareFrame(160, 120, square, green, black)
	defer frame.Close()
	src := NewStaticSource(frame)
	defer src.Close()

	c := NewCoordinator(src, hsv.NewBoundsStore(greenBounds), quietOptions())

	f1, err := c.AcquireFrame(context.Background())
	require.NoError(t, err)
	defer f1.Close()
	f2, err := c.AcquireFrame(context.Background())
	require.NoError(t, err)
	defer f2.Close()

	assert.Equal(t, uint64(1), f1.Seq)
	assert.Equal(t, uint64(2), f2.Seq)
	assert.Equal(t, 160, f1.Mat.Cols())
	assert.True(t, hasTarget(f1.Mat))
	assert.Equal(t, uint64(2), src.Reads())
}

func TestAcquireFrameReadFailure(t *testing.T) {
	frame := testutil.SquareFrame(32, 32, image.Rectangle{}, green, black)
	defer frame.Close()
	src := NewStaticSource(frame)
	src.FailEvery = 1
	defer src.Close()

	c := NewCoordinator(src, hsv.NewBoundsStore(greenBounds), quietOptions())
	_, err := c.AcquireFrame(context.Background())
	assert.ErrorIs(t, err, ErrReadFailed)
	assert.Equal(t, uint64(1), c.Stats().ReadFailures)
}

func TestAcquireFrameTimeout(t *testing.T) {
	frame := testutil.SquareFrame(32, 32, image.Rectangle{}, green, black)
	defer frame.Close()
	src := NewStaticSource(frame)
	src.Delay = 150 * time.Millisecond
	defer func() {
		// Let the abandoned read finish before the frame is freed.
		time.Sleep(200 * time.Millisecond)
		src.Close()
	}()

	opts := quietOptions()
	opts.ReadTimeout = 20 * time.Millisecond
	c := NewCoordinator(src, hsv.NewBoundsStore(greenBounds), opts)

	_, err := c.AcquireFrame(context.Background())
	assert.ErrorIs(t, err, ErrReadTimeout)

	// The abandoned read still holds the source.
	_, err = c.AcquireFrame(context.Background())
	assert.ErrorIs(t, err, ErrReadTimeout)
	assert.Equal(t, uint64(2), c.Stats().Timeouts)
	assert.Equal(t, uint64(1), src.Reads())
}

func TestAcquireFrameCancelled(t *testing.T) {
	frame := testutil.SquareFrame(32, 32, image.Rectangle{}, green, black)
	defer frame.Close()
	src := NewStaticSource(frame)
	defer src.Close()

	c := NewCoordinator(src, hsv.NewBoundsStore(greenBounds), quietOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A ready source may still win a select race; cancellation must surface
	// soon after.
	var err error
	for i := 0; i < 100 && err == nil; i++ {
		var f Frame
		if f, err = c.AcquireFrame(ctx); err == nil {
			f.Close()
		}
	}
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunSingleRendersEachCycle(t *testing.T) {
	frame := testutil.SquareFrame(160, 120, square, green, black)
	defer frame.Close()
	src := NewStaticSource(frame)
	defer src.Close()

	c := NewCoordinator(src, hsv.NewBoundsStore(greenBounds), quietOptions())
	defer c.Slot().Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var renders []bool
	err := c.RunSingle(ctx, func(s *Snapshot) {
		renders = append(renders, s.Detection.Found)
		if len(renders) == 3 {
			cancel()
		}
	})
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true, true}, renders)

	snap := c.Slot().Acquire()
	require.NotNil(t, snap)
	defer snap.Release()
	assert.Equal(t, uint64(3), snap.Seq)
	assert.Equal(t, 0, snap.Worker)
}

func TestRunSurvivesReadFailures(t *testing.T) {
	frame := testutil.SquareFrame(160, 120, square, green, black)
	defer frame.Close()
	src := NewStaticSource(frame)
	src.FailEvery = 2
	defer src.Close()

	var found atomic.Uint64
	opts := quietOptions()
	opts.OnDetection = func(_ int, _ uint64, d track.Detection) {
		if d.Found {
			found.Add(1)
		}
	}
	c := NewCoordinator(src, hsv.NewBoundsStore(greenBounds), opts)
	defer c.Slot().Close()

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	require.NoError(t, c.Run(ctx, 2))

	stats := c.Stats()
	assert.Positive(t, stats.ReadFailures)
	assert.Positive(t, stats.Published)
	assert.Equal(t, stats.Published, found.Load())
}

func TestRunReportsWorkerPanic(t *testing.T) {
	frame := testutil.SquareFrame(32, 32, image.Rectangle{}, green, black)
	defer frame.Close()
	src := NewStaticSource(frame)
	defer src.Close()

	// A nil bounds store panics on the first cycle.
	c := NewCoordinator(src, nil, quietOptions())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := c.Run(ctx, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")
	assert.False(t, errors.Is(err, context.DeadlineExceeded))
}

func TestSlotReleasesReplacedSnapshots(t *testing.T) {
	slot := NewSlot()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := slot.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, slot.Acquire())

	mk := func(seq uint64) *Snapshot {
		return newSnapshot(gocv.NewMat(), gocv.NewMat(), gocv.NewMat(), track.Detection{Found: true}, 0, seq)
	}

	first := mk(1)
	slot.Publish(first)
	held := slot.Acquire()
	require.Same(t, first, held)
	assert.Equal(t, int32(2), first.refs.Load())

	slot.Publish(mk(2))
	assert.Equal(t, int32(1), first.refs.Load())
	held.Release()
	assert.Equal(t, int32(0), first.refs.Load())

	latest, err := slot.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), latest.Seq)
	latest.Release()
	slot.Close()
	assert.Nil(t, slot.Acquire())
}

func TestImageToMat(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 2, color.RGBA{R: 10, G: 20, B: 30, A: 255})

	m := ImageToMat(img)
	defer m.Close()
	assert.Equal(t, 3, m.Rows())
	assert.Equal(t, 4, m.Cols())
	assert.Equal(t, uint8(30), m.GetUCharAt(2, 1*3+0))
	assert.Equal(t, uint8(20), m.GetUCharAt(2, 1*3+1))
	assert.Equal(t, uint8(10), m.GetUCharAt(2, 1*3+2))

	gray := image.NewGray(image.Rect(0, 0, 2, 2))
	gray.Set(0, 0, color.Gray{Y: 77})
	g := ImageToMat(gray)
	defer g.Close()
	assert.Equal(t, uint8(77), g.GetUCharAt(0, 0))
	assert.Equal(t, uint8(77), g.GetUCharAt(0, 2))
}
