package tdm

import "context"

// Handler receives DMA completions for a port. All methods run on the
// driver's delivery goroutine and must not block.
type Handler interface {
	// OnReceive is called with interleaved words of whole TDM frames.
	OnReceive(words []int32)
	// OnTransmit fills words with the next whole TDM frames.
	OnTransmit(words []int32)
	// OnFault reports that a stream stopped delivering because of err.
	OnFault(err error)
}

// Driver acquires the clock and DMA resources of a physical port.
type Driver interface {
	Open(ctx context.Context, port int, geom Geometry) (Channel, error)
}

// Channel is an acquired port. Start begins delivery to h; Stop halts it and
// Close releases the hardware.
type Channel interface {
	Start(ctx context.Context, h Handler) error
	Stop() error
	Close() error
}

// NoDevice disables one direction of an ALSAEndpoint.
const NoDevice = -1

// ALSAEndpoint maps a port onto ALSA hardware PCM devices of one card.
type ALSAEndpoint struct {
	Card           uint
	CaptureDevice  int
	PlaybackDevice int
}

// Startable is implemented by ports.
type Startable interface {
	Start(ctx context.Context) error
	Stop() error
}

// FrameProducer yields captured interleaved frames.
type FrameProducer interface {
	ReadFrames(dst []int32) int
	Channels() int
	Format() Format
}

// FrameConsumer accepts interleaved frames for playback.
type FrameConsumer interface {
	WriteFrames(src []int32) int
	Channels() int
	Format() Format
}

var (
	_ Startable     = (*Port)(nil)
	_ Handler       = (*Port)(nil)
	_ FrameProducer = (*CaptureAdapter)(nil)
	_ FrameConsumer = (*PlaybackAdapter)(nil)
)
