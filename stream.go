package tdm

import "fmt"

// Format is the audio format an adapter exchanges with its consumer.
type Format struct {
	SampleRate     uint32
	BitsPerSample  BitWidth
	BitsPerChannel BitWidth // BitsAuto follows BitsPerSample
	ChannelMode    ChannelMode
}

// SlotWidth returns the slot width the format occupies on the wire.
func (f Format) SlotWidth() BitWidth {
	if f.BitsPerChannel == BitsAuto {
		return f.BitsPerSample
	}

	return f.BitsPerChannel
}

// SlotRequest names the slots an adapter wants and whether it accepts sharing them.
type SlotRequest struct {
	Slots  SlotMask
	Shared bool
}

// AdapterOptions size the buffers an adapter allocates at bind time.
type AdapterOptions struct {
	// RingFrames is the ring capacity in frames. Zero means 100 ms at the format's rate.
	RingFrames int
	// BlockFrames is the scratch size used to split DMA buffers. Zero means 256.
	BlockFrames int
}

const defaultBlockFrames = 256

func (o AdapterOptions) withDefaults(rate uint32) AdapterOptions {
	if o.RingFrames <= 0 {
		o.RingFrames = max(int(rate/10), 1)
	}

	if o.BlockFrames <= 0 {
		o.BlockFrames = defaultBlockFrames
	}

	return o
}

// endpoint is a bound adapter as seen from the port's delivery path.
type endpoint interface {
	stream() *StreamAdapter
	receive(words []int32, width int)
	transmit(words []int32, width int)
}

// StreamAdapter binds one direction of audio to a port's slots. It holds a
// borrowed reference to the port, cleared by Unbind.
type StreamAdapter struct {
	id   string
	dir  Direction
	opts AdapterOptions

	port     *Port
	self     endpoint
	format   Format
	claim    SlotClaim
	slots    []Slot
	channels int
	shift    uint

	scratch []int32
	ring    *frameRing
}

// ID returns the adapter identifier.
func (s *StreamAdapter) ID() string {
	return s.id
}

// Direction returns capture or playback.
func (s *StreamAdapter) Direction() Direction {
	return s.dir
}

// Port returns the bound port, or nil.
func (s *StreamAdapter) Port() *Port {
	return s.port
}

// Format returns the bound format.
func (s *StreamAdapter) Format() Format {
	return s.format
}

// Claim returns the slot claim held while bound.
func (s *StreamAdapter) Claim() SlotClaim {
	return s.claim
}

// Channels returns the number of interleaved channels per frame.
func (s *StreamAdapter) Channels() int {
	return s.channels
}

// Bound reports whether the adapter is attached to a port.
func (s *StreamAdapter) Bound() bool {
	return s.port != nil
}

// validateFormat checks f against the port configuration. p.mu must not be held.
func validateFormat(p *Port, f Format, req SlotRequest) error {
	cfg := p.Config()

	if !f.BitsPerSample.Valid() {
		return configErr(KindFormatUnsupported, p.index, "unsupported bits per sample %d", f.BitsPerSample)
	}

	if f.BitsPerChannel != BitsAuto && !f.BitsPerChannel.Valid() {
		return configErr(KindFormatUnsupported, p.index, "unsupported bits per channel %d", f.BitsPerChannel)
	}

	if f.SlotWidth() < f.BitsPerSample {
		return configErr(KindFormatUnsupported, p.index, "bits per channel %d below bits per sample %d", f.BitsPerChannel, f.BitsPerSample)
	}

	if (f.BitsPerSample == Bits24 || f.SlotWidth() == Bits24) && cfg.MclkMultiple%3 != 0 {
		return configErr(KindMclkDivisibility, p.index, "24-bit format with mclk multiple %d", cfg.MclkMultiple)
	}

	if f.SampleRate == 0 || f.SampleRate != cfg.SampleRate {
		return configErr(KindFormatUnsupported, p.index, "sample rate %d does not match port rate %d", f.SampleRate, cfg.SampleRate)
	}

	if f.SlotWidth() != cfg.SlotBitWidth {
		return configErr(KindFormatUnsupported, p.index, "slot width %d does not match port slot width %d", f.SlotWidth(), cfg.SlotBitWidth)
	}

	n := req.Slots.Count()
	switch f.ChannelMode {
	case ChannelMono, ChannelLeft, ChannelRight:
		if n != 1 {
			return configErr(KindFormatUnsupported, p.index, "%s needs exactly one slot, got %s", f.ChannelMode, req.Slots)
		}
	case ChannelStereo:
		if n < 2 {
			return configErr(KindFormatUnsupported, p.index, "stereo needs at least two slots, got %s", req.Slots)
		}
	default:
		return configErr(KindFormatUnsupported, p.index, "unknown channel mode %s", f.ChannelMode)
	}

	return nil
}

func (s *StreamAdapter) bind(self endpoint, p *Port, f Format, req SlotRequest) error {
	if s.port != nil {
		return configErr(KindInvalidState, s.port.index, "adapter %q already bound", s.id)
	}

	if p == nil {
		return configErr(KindInvalidState, -1, "adapter %q bound to nil port", s.id)
	}

	if st := p.State(); st != StateConfigured && st != StateStopped {
		return configErr(KindInvalidState, p.index, "cannot bind %q to a port in state %s", s.id, st)
	}

	if err := validateFormat(p, f, req); err != nil {
		return err
	}

	pins := p.Config().Pins
	if s.dir == DirectionCapture && pins.DIN < 0 {
		return configErr(KindInvalidPins, p.index, "capture adapter %q needs a din pin", s.id)
	}

	if s.dir == DirectionPlayback && pins.DOUT < 0 {
		return configErr(KindInvalidPins, p.index, "playback adapter %q needs a dout pin", s.id)
	}

	claim, err := p.arbiter.Claim(s.id, req.Slots, req.Shared)
	if err != nil {
		return err
	}

	opts := s.opts.withDefaults(f.SampleRate)

	s.port = p
	s.self = self
	s.format = f
	s.claim = claim
	s.slots = req.Slots.Indices()
	s.channels = len(s.slots)
	s.shift = uint(f.SlotWidth() - f.BitsPerSample)
	s.scratch = make([]int32, opts.BlockFrames*s.channels)
	s.ring = newFrameRing(opts.RingFrames, s.channels)

	p.attach(self)

	return nil
}

// Unbind releases the slot claim and detaches from the port. The port must not be running.
func (s *StreamAdapter) Unbind() error {
	p := s.port
	if p == nil {
		return nil
	}

	if err := p.arbiter.Release(s.claim); err != nil {
		return fmt.Errorf("failed to unbind %q: %w", s.id, err)
	}

	p.detach(s.self)

	s.port = nil
	s.self = nil
	s.claim = SlotClaim{}

	return nil
}

func (s *StreamAdapter) stream() *StreamAdapter {
	return s
}

// demux extracts the adapter's slots from TDM words into dst and returns the frame count.
func (s *StreamAdapter) demux(words []int32, width int, dst []int32) int {
	frames := min(len(words)/width, len(dst)/s.channels)
	for f := 0; f < frames; f++ {
		in := words[f*width : (f+1)*width]
		out := dst[f*s.channels : (f+1)*s.channels]
		for c, slot := range s.slots {
			out[c] = in[slot] >> s.shift
		}
	}

	return frames
}

// mux places frames from src into the adapter's slots of TDM words.
func (s *StreamAdapter) mux(src []int32, frames, width int, words []int32) {
	for f := 0; f < frames; f++ {
		in := src[f*s.channels : (f+1)*s.channels]
		out := words[f*width : (f+1)*width]
		for c, slot := range s.slots {
			out[slot] = in[c] << s.shift
		}
	}
}
