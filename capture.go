package tdm

import (
	"fmt"
	"sync/atomic"

	"github.com/go-audio/audio"
)

// CaptureOptions configure a capture adapter.
type CaptureOptions struct {
	AdapterOptions
	CorrectDCOffset bool
}

// CaptureAdapter receives frames from a port, removes DC bias and buffers them
// for a consumer. The delivery path never blocks; when the consumer falls
// behind, the oldest frames are overwritten and counted as overruns.
type CaptureAdapter struct {
	StreamAdapter

	dc      *dcFilter
	correct atomic.Bool
	resetDC atomic.Bool
	frames  atomic.Uint64

	readBuf []int32
}

// NewCaptureAdapter creates an unbound capture adapter.
func NewCaptureAdapter(id string, opts CaptureOptions) *CaptureAdapter {
	c := &CaptureAdapter{
		StreamAdapter: StreamAdapter{id: id, dir: DirectionCapture, opts: opts.AdapterOptions},
	}
	c.correct.Store(opts.CorrectDCOffset)

	return c
}

// Bind attaches the adapter to p with format f on the requested slots.
func (c *CaptureAdapter) Bind(p *Port, f Format, req SlotRequest) error {
	if err := c.bind(c, p, f, req); err != nil {
		return err
	}

	c.dc = newDCFilter(c.channels, f.BitsPerSample, f.SampleRate)
	c.resetDC.Store(false)

	logInfo(ComponentCapture, "bound", "adapter", c.id, "port", p.index, "slots", req.Slots,
		"rate", f.SampleRate, "bits", f.BitsPerSample, "mode", f.ChannelMode, "dc_shift", c.dc.shift)

	return nil
}

func (c *CaptureAdapter) receive(words []int32, width int) {
	for len(words) >= width {
		n := c.demux(words, width, c.scratch)
		c.OnFrameReady(c.scratch[:n*c.channels])
		words = words[n*width:]
	}
}

func (c *CaptureAdapter) transmit([]int32, int) {}

// OnFrameReady corrects interleaved samples in place and publishes them to the
// ring. Samples are dropped unless the bound port is running.
func (c *CaptureAdapter) OnFrameReady(samples []int32) {
	p := c.port
	if p == nil || c.ring == nil || len(samples) < c.channels {
		return
	}

	if !p.enter() {
		return
	}
	defer p.exit()

	if c.resetDC.Swap(false) {
		c.dc.reset()
	}

	samples = samples[:len(samples)-len(samples)%c.channels]
	if c.correct.Load() {
		c.dc.process(samples)
	}

	c.ring.write(samples)
	c.frames.Add(uint64(len(samples) / c.channels))
}

// SetCorrectionEnabled toggles DC-offset correction. Disabling it discards the
// running mean; the reset takes effect on the next delivery.
func (c *CaptureAdapter) SetCorrectionEnabled(enabled bool) {
	if !enabled {
		c.resetDC.Store(true)
	}

	if c.correct.Swap(enabled) != enabled {
		logDebug(ComponentCapture, "dc correction", "adapter", c.id, "enabled", enabled)
	}
}

// CorrectionEnabled reports whether DC-offset correction is applied.
func (c *CaptureAdapter) CorrectionEnabled() bool {
	return c.correct.Load()
}

// ReadFrames moves buffered frames into dst and returns how many were copied.
func (c *CaptureAdapter) ReadFrames(dst []int32) int {
	if c.ring == nil {
		return 0
	}

	return c.ring.read(dst)
}

// ReadBuffer fills buf.Data with buffered frames and sets its format.
// It returns the number of frames read; buf.Data is truncated to match.
func (c *CaptureAdapter) ReadBuffer(buf *audio.IntBuffer) (int, error) {
	if c.ring == nil {
		return 0, fmt.Errorf("capture adapter %q is not bound", c.id)
	}

	if buf == nil {
		return 0, fmt.Errorf("nil buffer")
	}

	want := cap(buf.Data) / c.channels
	if want == 0 {
		return 0, fmt.Errorf("buffer holds less than one frame")
	}

	if len(c.readBuf) < want*c.channels {
		c.readBuf = make([]int32, want*c.channels)
	}

	n := c.ring.read(c.readBuf[:want*c.channels])

	buf.Data = buf.Data[:n*c.channels]
	for i, v := range c.readBuf[:n*c.channels] {
		buf.Data[i] = int(v)
	}

	buf.Format = &audio.Format{NumChannels: c.channels, SampleRate: int(c.format.SampleRate)}
	buf.SourceBitDepth = int(c.format.BitsPerSample)

	return n, nil
}

// Available returns the number of frames waiting in the ring.
func (c *CaptureAdapter) Available() int {
	if c.ring == nil {
		return 0
	}

	return c.ring.available()
}

// Overruns returns the number of frames dropped because the consumer fell behind.
func (c *CaptureAdapter) Overruns() uint64 {
	if c.ring == nil {
		return 0
	}

	return c.ring.overruns.Load()
}

// Frames returns the number of frames delivered since bind.
func (c *CaptureAdapter) Frames() uint64 {
	return c.frames.Load()
}
