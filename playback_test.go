package tdm_test

import (
	"context"
	"testing"

	"github.com/go-audio/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gen2brain/tdm"
)

func TestPlaybackUnderrunSendsSilence(t *testing.T) {
	p, drv := newPort(t, testConfig(16000, tdm.Bits16), tdm.Slots(0, 1))

	spk := tdm.NewPlaybackAdapter("spk", tdm.AdapterOptions{})
	require.NoError(t, spk.Bind(p, tdm.Format{SampleRate: 16000, BitsPerSample: tdm.Bits16, ChannelMode: tdm.ChannelMono},
		tdm.SlotRequest{Slots: tdm.Slots(1)}))
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	assert.Equal(t, 3, spk.WriteFrames([]int32{10, 20, 30}))
	assert.Equal(t, 3, spk.Queued())

	words := drv.Channel(0).Pull(5)
	assert.Equal(t, []int32{0, 10, 0, 20, 0, 30, 0, 0, 0, 0}, words)
	assert.Equal(t, uint64(2), spk.Underruns())
	assert.Equal(t, uint64(3), spk.Sent())
	assert.Equal(t, 0, spk.Queued())
}

func TestPlaybackShiftsIntoWideSlots(t *testing.T) {
	p, drv := newPort(t, testConfig(16000, tdm.Bits32), tdm.Slots(0, 1))

	spk := tdm.NewPlaybackAdapter("spk", tdm.AdapterOptions{})
	require.NoError(t, spk.Bind(p, tdm.Format{SampleRate: 16000, BitsPerSample: tdm.Bits16, BitsPerChannel: tdm.Bits32, ChannelMode: tdm.ChannelStereo},
		tdm.SlotRequest{Slots: tdm.Slots(0, 1)}))
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	spk.WriteFrames([]int32{1, -1})
	assert.Equal(t, []int32{1 << 16, -1 << 16}, drv.Channel(0).Pull(1))
}

func TestPlaybackSilentWhenStopped(t *testing.T) {
	p, _ := newPort(t, testConfig(16000, tdm.Bits16), tdm.Slots(0, 1))

	spk := tdm.NewPlaybackAdapter("spk", tdm.AdapterOptions{})
	require.NoError(t, spk.Bind(p, tdm.Format{SampleRate: 16000, BitsPerSample: tdm.Bits16, ChannelMode: tdm.ChannelMono},
		tdm.SlotRequest{Slots: tdm.Slots(0)}))
	spk.WriteFrames([]int32{5, 6})

	words := []int32{9, 9, 9, 9}
	p.OnTransmit(words)
	assert.Equal(t, []int32{0, 0, 0, 0}, words)
	assert.Equal(t, 2, spk.Queued())
}

func TestPlaybackOverrun(t *testing.T) {
	p, _ := newPort(t, testConfig(16000, tdm.Bits16), tdm.Slots(0, 1))

	spk := tdm.NewPlaybackAdapter("spk", tdm.AdapterOptions{RingFrames: 4})
	require.NoError(t, spk.Bind(p, tdm.Format{SampleRate: 16000, BitsPerSample: tdm.Bits16, ChannelMode: tdm.ChannelMono},
		tdm.SlotRequest{Slots: tdm.Slots(0)}))

	assert.Equal(t, 6, spk.WriteFrames([]int32{1, 2, 3, 4, 5, 6}))
	assert.Equal(t, uint64(2), spk.Overruns())
	assert.Equal(t, 4, spk.Queued())
}

func TestPlaybackWriteBuffer(t *testing.T) {
	p, _ := newPort(t, testConfig(16000, tdm.Bits16), tdm.Slots(0, 1))

	spk := tdm.NewPlaybackAdapter("spk", tdm.AdapterOptions{})
	require.NoError(t, spk.Bind(p, tdm.Format{SampleRate: 16000, BitsPerSample: tdm.Bits16, ChannelMode: tdm.ChannelStereo},
		tdm.SlotRequest{Slots: tdm.Slots(0, 1)}))

	n, err := spk.WriteBuffer(&audio.IntBuffer{
		Format: &audio.Format{NumChannels: 2, SampleRate: 16000},
		Data:   []int{1, 2, 3, 4},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = spk.WriteBuffer(&audio.IntBuffer{Format: &audio.Format{NumChannels: 1}, Data: []int{1}})
	assert.Error(t, err)

	_, err = spk.WriteBuffer(&audio.IntBuffer{Data: []int{1}})
	assert.Error(t, err)
}

// Frames written to a playback adapter come back unchanged through a capture
// adapter on the same slot once the transmit words are fed back in.
func TestLoopbackRoundTrip(t *testing.T) {
	p, drv := newPort(t, testConfig(48000, tdm.Bits32), tdm.Slots(0, 1, 2, 3))
	f := tdm.Format{SampleRate: 48000, BitsPerSample: tdm.Bits24, BitsPerChannel: tdm.Bits32, ChannelMode: tdm.ChannelStereo}

	spk := tdm.NewPlaybackAdapter("spk", tdm.AdapterOptions{})
	mic := tdm.NewCaptureAdapter("mic", tdm.CaptureOptions{})

	cfg := p.Config()
	require.Equal(t, tdm.Mclk256, cfg.MclkMultiple)

	// 24-bit needs a multiple of three, so this pairing is refused.
	assert.ErrorIs(t, spk.Bind(p, f, tdm.SlotRequest{Slots: tdm.Slots(2, 3)}), tdm.ErrMclkDivisibility)

	f.BitsPerSample = tdm.Bits32
	require.NoError(t, spk.Bind(p, f, tdm.SlotRequest{Slots: tdm.Slots(2, 3), Shared: true}))
	require.NoError(t, mic.Bind(p, f, tdm.SlotRequest{Slots: tdm.Slots(2, 3), Shared: true}))
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	in := []int32{1, -1, 1 << 30, -1 << 30, 12345, -54321}
	require.Equal(t, 3, spk.WriteFrames(in))

	ch := drv.Channel(0)
	require.True(t, ch.Inject(ch.Pull(3)))

	out := make([]int32, len(in))
	require.Equal(t, 3, mic.ReadFrames(out))
	assert.Equal(t, in, out)
	assert.Equal(t, uint64(0), spk.Underruns())
}
