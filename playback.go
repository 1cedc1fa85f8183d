package tdm

import (
	"fmt"
	"sync/atomic"

	"github.com/go-audio/audio"
)

// PlaybackAdapter buffers frames from a producer and feeds them to a port's
// transmit path. Missing frames go out as silence and count as underruns.
type PlaybackAdapter struct {
	StreamAdapter

	underruns atomic.Uint64
	sent      atomic.Uint64

	writeBuf []int32
}

// NewPlaybackAdapter creates an unbound playback adapter.
func NewPlaybackAdapter(id string, opts AdapterOptions) *PlaybackAdapter {
	return &PlaybackAdapter{
		StreamAdapter: StreamAdapter{id: id, dir: DirectionPlayback, opts: opts},
	}
}

// Bind attaches the adapter to p with format f on the requested slots.
func (a *PlaybackAdapter) Bind(p *Port, f Format, req SlotRequest) error {
	if err := a.bind(a, p, f, req); err != nil {
		return err
	}

	logInfo(ComponentPlayback, "bound", "adapter", a.id, "port", p.index, "slots", req.Slots,
		"rate", f.SampleRate, "bits", f.BitsPerSample, "mode", f.ChannelMode)

	return nil
}

func (a *PlaybackAdapter) receive([]int32, int) {}

func (a *PlaybackAdapter) transmit(words []int32, width int) {
	for len(words) >= width {
		frames := min(len(words)/width, len(a.scratch)/a.channels)
		chunk := a.scratch[:frames*a.channels]

		n := a.ring.read(chunk)
		if n < frames {
			clear(chunk[n*a.channels:])
			a.underruns.Add(uint64(frames - n))
		}

		a.mux(chunk, frames, width, words)
		a.sent.Add(uint64(n))
		words = words[frames*width:]
	}
}

// WriteFrames queues interleaved frames for transmission and returns the number
// of frames queued. A full ring drops its oldest frames.
func (a *PlaybackAdapter) WriteFrames(src []int32) int {
	if a.ring == nil {
		return 0
	}

	n := len(src) / a.channels
	a.ring.write(src[:n*a.channels])

	return n
}

// WriteBuffer queues the frames of buf. Its channel count must match the adapter.
func (a *PlaybackAdapter) WriteBuffer(buf *audio.IntBuffer) (int, error) {
	if a.ring == nil {
		return 0, fmt.Errorf("playback adapter %q is not bound", a.id)
	}

	if buf == nil || buf.Format == nil {
		return 0, fmt.Errorf("buffer has no format")
	}

	if buf.Format.NumChannels != a.channels {
		return 0, fmt.Errorf("buffer has %d channels, adapter %q expects %d", buf.Format.NumChannels, a.id, a.channels)
	}

	if len(a.writeBuf) < len(buf.Data) {
		a.writeBuf = make([]int32, len(buf.Data))
	}

	samples := a.writeBuf[:len(buf.Data)]
	for i, v := range buf.Data {
		samples[i] = int32(v)
	}

	return a.WriteFrames(samples), nil
}

// Queued returns the number of frames waiting for transmission.
func (a *PlaybackAdapter) Queued() int {
	if a.ring == nil {
		return 0
	}

	return a.ring.available()
}

// Overruns returns the number of queued frames dropped because the producer ran ahead.
func (a *PlaybackAdapter) Overruns() uint64 {
	if a.ring == nil {
		return 0
	}

	return a.ring.overruns.Load()
}

// Underruns returns the number of frames sent as silence because the ring was empty.
func (a *PlaybackAdapter) Underruns() uint64 {
	return a.underruns.Load()
}

// Sent returns the number of queued frames transmitted.
func (a *PlaybackAdapter) Sent() uint64 {
	return a.sent.Load()
}
