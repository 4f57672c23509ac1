package track

import (
	"image"
	"log"

	"hsv-tracker/internal/hsv"
	"hsv-tracker/internal/morph"
	"hsv-tracker/internal/region"

	"gocv.io/x/gocv"
)

// Options configures a Pipeline.
type Options struct {
	Morph morph.Params
	// Band is applied to the size of each processed frame.
	Band   Band
	Logger *log.Logger
	// Verbose logs the largest tracked area every frame.
	Verbose bool
}

// DefaultOptions returns the tuned pipeline settings.
func DefaultOptions() Options {
	return Options{Morph: morph.DefaultParams(), Band: DefaultBand()}
}

// Pipeline runs filter, cleanup, extraction, selection and reporting over
// buffers it owns. Each worker holds its own Pipeline; the bounds store is the
// only shared state.
type Pipeline struct {
	bounds   *hsv.BoundsStore
	stage    *morph.Stage
	band     Band
	size     image.Point
	selector Selector
	logger   *log.Logger
	verbose  bool

	hsvFrame gocv.Mat
	mask     gocv.Mat
}

// NewPipeline creates a pipeline reading thresholds from bounds.
func NewPipeline(bounds *hsv.BoundsStore, opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Pipeline{
		bounds:   bounds,
		stage:    morph.NewStage(opts.Morph),
		band:     opts.Band,
		logger:   logger,
		verbose:  opts.Verbose,
		hsvFrame: gocv.NewMat(),
		mask:     gocv.NewMat(),
	}
}

// Process runs one detection cycle on a BGR frame. The HSV image and the
// cleaned mask stay available through HSV and Mask until the next call.
func (p *Pipeline) Process(frame gocv.Mat) Detection {
	if frame.Empty() {
		return Detection{Status: StatusNoise}
	}
	if size := image.Pt(frame.Cols(), frame.Rows()); size != p.size {
		p.size = size
		p.selector = p.band.For(size.X, size.Y)
	}

	// One snapshot per cycle; slider moves land on the next frame.
	b := p.bounds.Load()
	hsv.Apply(frame, b, &p.hsvFrame, &p.mask)
	p.stage.Apply(&p.mask)

	regions := region.Extract(p.mask)
	c, status := p.selector.Select(regions)
	d := Report(regions, c, status)

	if p.verbose && d.Found {
		p.logger.Printf("Track: area of largest object: %.0f", d.Area)
	}
	return d
}

// HSV returns the HSV conversion of the last processed frame.
func (p *Pipeline) HSV() gocv.Mat {
	return p.hsvFrame
}

// Mask returns the cleaned mask of the last processed frame.
func (p *Pipeline) Mask() gocv.Mat {
	return p.mask
}

// Selector returns the selector sized for the last processed frame.
func (p *Pipeline) Selector() Selector {
	return p.selector
}

// Close releases the pipeline's buffers.
func (p *Pipeline) Close() error {
	p.hsvFrame.Close()
	p.mask.Close()
	return p.stage.Close()
}
