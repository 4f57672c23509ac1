package steer

import (
	"fmt"
	"io"
	"log"
	"sync"

	"hsv-tracker/internal/track"

	"github.com/pkg/errors"
	"go.bug.st/serial"
)

// Sink receives steering commands.
type Sink interface {
	Send(Command) error
	Close() error
}

// LineSink writes one text line per command.
type LineSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewLineSink writes commands to w. If w is an io.Closer, Close closes it.
func NewLineSink(w io.Writer) *LineSink {
	return &LineSink{w: w}
}

func (s *LineSink) Send(c Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.w, "%s\n", c)
	return err
}

func (s *LineSink) Close() error {
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// DefaultBaudRate is used when OpenSerial is given zero.
const DefaultBaudRate = 9600

// OpenSerial opens a serial port at 8N1 and returns a line sink on it.
func OpenSerial(path string, baud int) (*LineSink, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", path, err)
	}
	return NewLineSink(port), nil
}

// Controller turns detections into commands. It smooths the centroid while
// tracking and emits LOST once when the object disappears.
type Controller struct {
	mu       sync.Mutex
	guides   Guides
	smoother *Smoother
	sink     Sink
	logger   *log.Logger

	// OnlyChanges suppresses commands identical in zones to the last one sent.
	OnlyChanges bool
	last        *Command
	lastSeq     uint64
}

// ErrStale is returned by Handle for a detection older than one already
// handled.
var ErrStale = errors.New("steer: stale detection")

// NewController sends to sink. smoother may be nil to steer on raw centroids.
func NewController(g Guides, smoother *Smoother, sink Sink, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.Default()
	}
	return &Controller{guides: g, smoother: smoother, sink: sink, logger: logger}
}

// Handle classifies d, computed from frame seq, and forwards the command.
// Detections must be handled in frame order; one with a seq not above the last
// handled is dropped with ErrStale. Safe for use by several workers.
func (c *Controller) Handle(seq uint64, d track.Detection) (Command, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if seq <= c.lastSeq {
		return Command{}, ErrStale
	}
	c.lastSeq = seq

	if !d.Found {
		if c.smoother != nil {
			c.smoother.Reset()
		}
		cmd := Command{Lost: true}
		if c.last != nil && c.last.Lost {
			return cmd, nil
		}
		return cmd, c.send(cmd)
	}

	p := d.Centroid
	if c.smoother != nil {
		sp, err := c.smoother.Observe(p)
		if err != nil {
			c.logger.Printf("Steer: %v", err)
			c.smoother.Reset()
		} else {
			p = sp
		}
	}

	cmd := c.guides.Classify(p)
	if c.OnlyChanges && c.last != nil && !c.last.Lost && c.last.H == cmd.H && c.last.V == cmd.V {
		return cmd, nil
	}
	return cmd, c.send(cmd)
}

func (c *Controller) send(cmd Command) error {
	c.last = &cmd
	if c.sink == nil {
		return nil
	}
	if err := c.sink.Send(cmd); err != nil {
		return fmt.Errorf("steer: send %q: %w", cmd, err)
	}
	return nil
}

// Close closes the sink.
func (c *Controller) Close() error {
	if c.sink == nil {
		return nil
	}
	return c.sink.Close()
}
