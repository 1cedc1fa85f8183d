package tdm_test

import (
	"context"
	"math"
	"testing"

	"github.com/go-audio/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gen2brain/tdm"
)

// A DC-biased sine on slot 0 of a two-slot primary port comes out centered
// on zero with its amplitude intact.
func TestCaptureRemovesDCBias(t *testing.T) {
	const (
		rate      = 16000
		amplitude = 1 << 20
		bias      = 1 << 24
		period    = 40 // 400 Hz
		block     = 320
		seconds   = 2
	)

	p, drv := newPort(t, testConfig(rate, tdm.Bits32), tdm.Slots(0, 1))
	require.Equal(t, tdm.ClockPrimary, p.Config().ClockRole)

	mic := tdm.NewCaptureAdapter("mic", tdm.CaptureOptions{CorrectDCOffset: true})
	require.NoError(t, mic.Bind(p, tdm.Format{SampleRate: rate, BitsPerSample: tdm.Bits32, ChannelMode: tdm.ChannelMono},
		tdm.SlotRequest{Slots: tdm.Slots(0)}))
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	ch := drv.Channel(0)
	words := make([]int32, block*2)
	out := make([]int32, 0, rate*seconds)
	chunk := make([]int32, block)

	for n := 0; n < rate*seconds; n += block {
		for i := 0; i < block; i++ {
			phase := 2 * math.Pi * float64((n+i)%period) / period
			words[2*i] = int32(bias + amplitude*math.Sin(phase))
			words[2*i+1] = -7
		}

		require.True(t, ch.Inject(words))

		got := mic.ReadFrames(chunk)
		require.Equal(t, block, got)
		out = append(out, chunk[:got]...)
	}

	require.Len(t, out, rate*seconds)
	assert.Equal(t, uint64(0), mic.Overruns())
	assert.Equal(t, uint64(rate*seconds), mic.Frames())

	mean := func(s []int32) float64 {
		sum := 0.0
		for _, v := range s {
			sum += float64(v)
		}

		return sum / float64(len(s))
	}

	early := mean(out[:period])
	late := out[len(out)-rate/2:]

	assert.Greater(t, early, float64(bias)/2)
	assert.Less(t, math.Abs(mean(late)), float64(amplitude)/100)

	lo, hi := late[0], late[0]
	for _, v := range late {
		lo = min(lo, v)
		hi = max(hi, v)
	}

	assert.InEpsilon(t, 2*amplitude, float64(hi)-float64(lo), 0.03)
}

func TestCaptureCorrectionToggle(t *testing.T) {
	p, drv := newPort(t, testConfig(16000, tdm.Bits16), tdm.Slots(0, 1))

	mic := tdm.NewCaptureAdapter("mic", tdm.CaptureOptions{
		AdapterOptions:  tdm.AdapterOptions{RingFrames: 8192},
		CorrectDCOffset: true,
	})
	require.NoError(t, mic.Bind(p, tdm.Format{SampleRate: 16000, BitsPerSample: tdm.Bits16, ChannelMode: tdm.ChannelMono},
		tdm.SlotRequest{Slots: tdm.Slots(0)}))
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	assert.True(t, mic.CorrectionEnabled())

	ch := drv.Channel(0)
	constant := func(frames int) []int32 {
		w := make([]int32, 2*frames)
		for i := 0; i < frames; i++ {
			w[2*i] = 1000
		}

		return w
	}

	ch.Inject(constant(8192))
	buf := make([]int32, 8192)
	require.Equal(t, 8192, mic.ReadFrames(buf))
	assert.InDelta(t, 0, buf[8191], 2)

	mic.SetCorrectionEnabled(false)
	assert.False(t, mic.CorrectionEnabled())

	ch.Inject(constant(16))
	require.Equal(t, 16, mic.ReadFrames(buf))
	assert.Equal(t, int32(1000), buf[0])
	assert.Equal(t, int32(1000), buf[15])

	// The estimator restarts from zero once re-enabled.
	mic.SetCorrectionEnabled(true)
	ch.Inject(constant(1))
	require.Equal(t, 1, mic.ReadFrames(buf))
	assert.Greater(t, buf[0], int32(990))
}

func TestCaptureOverrun(t *testing.T) {
	p, drv := newPort(t, testConfig(16000, tdm.Bits16), tdm.Slots(0, 1))

	mic := tdm.NewCaptureAdapter("mic", tdm.CaptureOptions{AdapterOptions: tdm.AdapterOptions{RingFrames: 8, BlockFrames: 3}})
	require.NoError(t, mic.Bind(p, tdm.Format{SampleRate: 16000, BitsPerSample: tdm.Bits16, ChannelMode: tdm.ChannelMono},
		tdm.SlotRequest{Slots: tdm.Slots(0)}))
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	words := make([]int32, 0, 2*20)
	for i := int32(1); i <= 20; i++ {
		words = append(words, i, 0)
	}
	drv.Channel(0).Inject(words)

	assert.Equal(t, uint64(12), mic.Overruns())
	assert.Equal(t, uint64(20), mic.Frames())
	assert.Equal(t, 8, mic.Available())

	got := make([]int32, 8)
	require.Equal(t, 8, mic.ReadFrames(got))
	assert.Equal(t, []int32{13, 14, 15, 16, 17, 18, 19, 20}, got)
}

func TestCaptureOnFrameReadyDirect(t *testing.T) {
	p, _ := newPort(t, testConfig(16000, tdm.Bits16), tdm.Slots(0, 1))

	mic := tdm.NewCaptureAdapter("mic", tdm.CaptureOptions{})
	require.NoError(t, mic.Bind(p, tdm.Format{SampleRate: 16000, BitsPerSample: tdm.Bits16, ChannelMode: tdm.ChannelStereo},
		tdm.SlotRequest{Slots: tdm.Slots(0, 1)}))

	// Nothing is published before the port runs.
	mic.OnFrameReady([]int32{1, 2})
	assert.Equal(t, uint64(0), mic.Frames())

	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	// A trailing partial frame is ignored.
	mic.OnFrameReady([]int32{1, 2, 3, 4, 5})
	assert.Equal(t, 2, mic.Available())
	assert.Equal(t, uint64(2), mic.Frames())
}

func TestCaptureOnFrameReadyAfterStop(t *testing.T) {
	p, _ := newPort(t, testConfig(16000, tdm.Bits16), tdm.Slots(0, 1))

	mic := tdm.NewCaptureAdapter("mic", tdm.CaptureOptions{})
	require.NoError(t, mic.Bind(p, tdm.Format{SampleRate: 16000, BitsPerSample: tdm.Bits16, ChannelMode: tdm.ChannelMono},
		tdm.SlotRequest{Slots: tdm.Slots(0)}))
	require.NoError(t, p.Start(context.Background()))

	mic.OnFrameReady([]int32{7})
	require.Equal(t, uint64(1), mic.Frames())

	require.NoError(t, p.Stop())

	mic.OnFrameReady([]int32{1, 2, 3, 4})
	assert.Equal(t, tdm.StateStopped, p.State())
	assert.Equal(t, uint64(1), mic.Frames())
	assert.Equal(t, 1, mic.Available())
}

func TestCaptureReadBuffer(t *testing.T) {
	p, drv := newPort(t, testConfig(48000, tdm.Bits16), tdm.Slots(0, 1))

	mic := tdm.NewCaptureAdapter("mic", tdm.CaptureOptions{})
	require.NoError(t, mic.Bind(p, tdm.Format{SampleRate: 48000, BitsPerSample: tdm.Bits16, ChannelMode: tdm.ChannelStereo},
		tdm.SlotRequest{Slots: tdm.Slots(0, 1)}))
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	drv.Channel(0).Inject([]int32{1, -1, 2, -2, 3, -3})

	buf := &audio.IntBuffer{Data: make([]int, 0, 4)}
	n, err := mic.ReadBuffer(buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int{1, -1, 2, -2}, buf.Data)
	assert.Equal(t, 2, buf.Format.NumChannels)
	assert.Equal(t, 48000, buf.Format.SampleRate)
	assert.Equal(t, 16, buf.SourceBitDepth)

	buf.Data = buf.Data[:0]
	n, err = mic.ReadBuffer(buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []int{3, -3}, buf.Data)

	_, err = mic.ReadBuffer(&audio.IntBuffer{Data: make([]int, 1)})
	assert.Error(t, err)

	_, err = tdm.NewCaptureAdapter("unbound", tdm.CaptureOptions{}).ReadBuffer(buf)
	assert.Error(t, err)
}
