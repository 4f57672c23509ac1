package capture

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"sync/atomic"
	"time"

	"hsv-tracker/internal/hsv"
	"hsv-tracker/internal/track"

	"github.com/google/uuid"
	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"
)

// Transient read errors. A worker that hits one skips the cycle.
var (
	ErrReadFailed  = errors.New("camera read failed")
	ErrReadTimeout = errors.New("camera read timed out")
)

// Defaults for Options.
const (
	DefaultWorkers     = 5
	DefaultReadTimeout = 2 * time.Second
	DefaultRenderWait  = 30 * time.Millisecond
	DefaultRetryDelay  = 10 * time.Millisecond
)

// Options configures a Coordinator.
type Options struct {
	ReadTimeout time.Duration
	// RenderWait is the pause between cycles in single-worker mode.
	RenderWait time.Duration
	// RetryDelay is the pause after a failed read.
	RetryDelay time.Duration
	// StatsInterval enables periodic counter logging when > 0.
	StatsInterval time.Duration
	Pipeline      track.Options
	Logger        *log.Logger
	// OnDetection, if set, is called by each worker after it publishes, with
	// the sequence number of the frame d was computed from. Workers finish
	// out of frame order; it must be safe for concurrent use.
	OnDetection func(worker int, seq uint64, d track.Detection)
}

// DefaultOptions returns the standard timings.
func DefaultOptions() Options {
	return Options{
		ReadTimeout: DefaultReadTimeout,
		RenderWait:  DefaultRenderWait,
		RetryDelay:  DefaultRetryDelay,
		Pipeline:    track.DefaultOptions(),
	}
}

// Stats are the coordinator's running counters.
type Stats struct {
	Acquired     uint64
	ReadFailures uint64
	Timeouts     uint64
	Published    uint64
}

// Coordinator owns the frame source, serializes reads from it, and runs
// detection workers that publish into a shared Slot.
type Coordinator struct {
	src     Source
	bounds  *hsv.BoundsStore
	slot    *Slot
	opts    Options
	logger  *log.Logger
	session uuid.UUID

	// readSem guards exactly the Source.Read call.
	readSem chan struct{}

	seq       atomic.Uint64
	acquired  atomic.Uint64
	failures  atomic.Uint64
	timeouts  atomic.Uint64
	published atomic.Uint64
}

// NewCoordinator wires src and bounds into a coordinator with a fresh slot.
func NewCoordinator(src Source, bounds *hsv.BoundsStore, opts Options) *Coordinator {
	def := DefaultOptions()
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = def.ReadTimeout
	}
	if opts.RenderWait <= 0 {
		opts.RenderWait = def.RenderWait
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = def.RetryDelay
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	if opts.Pipeline.Logger == nil {
		opts.Pipeline.Logger = logger
	}
	return &Coordinator{
		src:     src,
		bounds:  bounds,
		slot:    NewSlot(),
		opts:    opts,
		logger:  logger,
		session: uuid.New(),
		readSem: make(chan struct{}, 1),
	}
}

// Session identifies this run in logs.
func (c *Coordinator) Session() uuid.UUID { return c.session }

// Slot returns the slot workers publish into.
func (c *Coordinator) Slot() *Slot { return c.slot }

// Bounds returns the shared threshold store.
func (c *Coordinator) Bounds() *hsv.BoundsStore { return c.bounds }

// Stats returns a copy of the counters.
func (c *Coordinator) Stats() Stats {
	return Stats{
		Acquired:     c.acquired.Load(),
		ReadFailures: c.failures.Load(),
		Timeouts:     c.timeouts.Load(),
		Published:    c.published.Load(),
	}
}

type readResult struct {
	mat gocv.Mat
	ok  bool
}

// AcquireFrame reads the next frame. Only one Read is ever in flight; a read
// that outlives ReadTimeout is abandoned (its frame is discarded when it
// eventually returns) and ErrReadTimeout is reported.
func (c *Coordinator) AcquireFrame(ctx context.Context) (Frame, error) {
	timer := time.NewTimer(c.opts.ReadTimeout)
	defer timer.Stop()

	select {
	case c.readSem <- struct{}{}:
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case <-timer.C:
		c.timeouts.Add(1)
		return Frame{}, ErrReadTimeout
	}

	done := make(chan readResult, 1)
	go func() {
		defer func() { <-c.readSem }()
		m := gocv.NewMat()
		defer func() {
			if r := recover(); r != nil {
				c.logger.Printf("Capture: source panicked: %v", r)
				done <- readResult{mat: m}
			}
		}()
		ok := c.src.Read(&m)
		done <- readResult{mat: m, ok: ok}
	}()

	select {
	case r := <-done:
		if !r.ok || r.mat.Empty() {
			r.mat.Close()
			c.failures.Add(1)
			return Frame{}, ErrReadFailed
		}
		c.acquired.Add(1)
		return Frame{Mat: r.mat, Seq: c.seq.Add(1), CapturedAt: time.Now()}, nil
	case <-ctx.Done():
		go discard(done)
		return Frame{}, ctx.Err()
	case <-timer.C:
		go discard(done)
		c.timeouts.Add(1)
		return Frame{}, ErrReadTimeout
	}
}

func discard(done <-chan readResult) {
	r := <-done
	r.mat.Close()
}

// Run starts workers detection workers and blocks until ctx is cancelled or
// one of them fails. A worker panic is returned as an error naming the worker.
func (c *Coordinator) Run(ctx context.Context, workers int) error {
	if workers < 1 {
		workers = 1
	}
	c.logger.Printf("Capture: session %s starting %d workers", c.session, workers)

	g, gctx := errgroup.WithContext(ctx)
	for id := 0; id < workers; id++ {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("worker %d: panic: %v\n%s", id, r, debug.Stack())
				}
			}()
			return c.worker(gctx, id)
		})
	}
	if c.opts.StatsInterval > 0 {
		g.Go(func() error {
			c.statsLoop(gctx)
			return nil
		})
	}

	err := g.Wait()
	c.drain()
	c.logStats()
	return err
}

func (c *Coordinator) worker(ctx context.Context, id int) error {
	p := track.NewPipeline(c.bounds, c.opts.Pipeline)
	defer p.Close()

	for ctx.Err() == nil {
		if err := c.cycle(ctx, id, p); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Printf("Capture: worker %d: %v", id, err)
			sleepCtx(ctx, c.opts.RetryDelay)
		}
	}
	return nil
}

// cycle runs acquire, detect and publish once.
func (c *Coordinator) cycle(ctx context.Context, id int, p *track.Pipeline) error {
	f, err := c.AcquireFrame(ctx)
	if err != nil {
		return err
	}
	d := p.Process(f.Mat)
	hsvMat, mask := p.HSV(), p.Mask()
	c.slot.Publish(newSnapshot(f.Mat, hsvMat.Clone(), mask.Clone(), d, id, f.Seq))
	c.published.Add(1)
	if c.opts.OnDetection != nil {
		c.opts.OnDetection(id, f.Seq, d)
	}
	return nil
}

// RunSingle is the cooperative variant: one pipeline, and after every cycle
// render is called with the fresh snapshot, then the loop pauses for
// RenderWait. Returns nil when ctx is cancelled.
func (c *Coordinator) RunSingle(ctx context.Context, render func(*Snapshot)) error {
	c.logger.Printf("Capture: session %s running single worker", c.session)
	p := track.NewPipeline(c.bounds, c.opts.Pipeline)
	defer p.Close()
	defer c.drain()

	for ctx.Err() == nil {
		if err := c.cycle(ctx, 0, p); err != nil {
			if ctx.Err() != nil {
				break
			}
			c.logger.Printf("Capture: %v", err)
			sleepCtx(ctx, c.opts.RetryDelay)
			continue
		}
		if render != nil {
			snap := c.slot.Acquire()
			render(snap)
			snap.Release()
		}
		sleepCtx(ctx, c.opts.RenderWait)
	}
	return nil
}

// drain waits for an abandoned read to return so the source can be closed
// safely. A source stuck longer than ReadTimeout is left behind.
func (c *Coordinator) drain() {
	t := time.NewTimer(c.opts.ReadTimeout)
	defer t.Stop()
	select {
	case c.readSem <- struct{}{}:
		<-c.readSem
	case <-t.C:
		c.logger.Printf("Capture: source still busy at shutdown")
	}
}

func (c *Coordinator) statsLoop(ctx context.Context) {
	ticker := time.NewTicker(c.opts.StatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.logStats()
		}
	}
}

func (c *Coordinator) logStats() {
	s := c.Stats()
	c.logger.Printf("Capture: acquired=%d failed=%d timeouts=%d published=%d",
		s.Acquired, s.ReadFailures, s.Timeouts, s.Published)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
