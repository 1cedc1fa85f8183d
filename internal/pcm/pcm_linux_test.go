//go:build linux

package pcm_test

import (
	"encoding/binary"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gen2brain/tdm/internal/pcm"
)

// To run the hardware tests, the 'snd-aloop' kernel module must be loaded:
//
// sudo modprobe snd-aloop
//
// Playback on device 0 of the loopback card appears as capture on device 1.
const (
	loopbackPlaybackDevice = 0
	loopbackCaptureDevice  = 1
)

// findCard searches /proc/asound/cards for the passed device name and returns its card number. Returns -1 if not found.
func findCard(name string) int {
	content, err := os.ReadFile("/proc/asound/cards")
	if err != nil {
		return -1
	}

	for _, line := range strings.Split(string(content), "\n") {
		if strings.Contains(line, name) {
			var card int
			if _, err := fmt.Sscanf(line, " %d", &card); err == nil {
				return card
			}
		}
	}

	return -1
}

func loopbackCard(t *testing.T) uint {
	t.Helper()

	card := findCard("Loopback")
	if card == -1 {
		t.Skip("ALSA loopback device not found, run: sudo modprobe snd-aloop")
	}

	return uint(card)
}

func TestPath(t *testing.T) {
	assert.Equal(t, "/dev/snd/pcmC1D0p", pcm.Path(1, 0, pcm.Playback))
	assert.Equal(t, "/dev/snd/pcmC0D3c", pcm.Path(0, 3, pcm.Capture))
}

func TestOpenMissingDevice(t *testing.T) {
	_, err := pcm.Open(1000, 1000, pcm.Capture, pcm.Config{Channels: 2, Rate: 48000, PeriodSize: 256, PeriodCount: 4, Format: pcm.FormatS16LE})
	require.Error(t, err)
}

func TestLoopbackRoundTrip(t *testing.T) {
	card := loopbackCard(t)

	config := pcm.Config{Channels: 2, Rate: 48000, PeriodSize: 256, PeriodCount: 4, Format: pcm.FormatS32LE}

	out, err := pcm.Open(card, loopbackPlaybackDevice, pcm.Playback, config)
	require.NoError(t, err)
	defer out.Close()

	in, err := pcm.Open(card, loopbackCaptureDevice, pcm.Capture, config)
	require.NoError(t, err)
	defer in.Close()

	assert.Equal(t, out.Config().Rate, in.Config().Rate)
	assert.Equal(t, out.Config().Channels, in.Config().Channels)

	require.NoError(t, out.Prepare())
	require.NoError(t, in.Prepare())

	frameSize := int(out.Config().FrameSize())
	period := int(out.Config().PeriodSize)

	buf := make([]byte, period*frameSize)
	for i := 0; i < len(buf)/4; i++ {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(int32(i*1000)))
	}

	var wg sync.WaitGroup
	wg.Add(1)

	var readErr error
	got := make([]byte, period*frameSize)

	go func() {
		defer wg.Done()
		_, readErr = in.Read(got)
	}()

	for i := 0; i < 4; i++ {
		_, err := out.Write(buf)
		require.NoError(t, err)
	}

	wg.Wait()
	require.NoError(t, readErr)

	_ = out.Drop()
	_ = in.Drop()
}

func TestReadOnPlaybackFails(t *testing.T) {
	card := loopbackCard(t)

	out, err := pcm.Open(card, loopbackPlaybackDevice, pcm.Playback, pcm.Config{Channels: 2, Rate: 48000, PeriodSize: 256, PeriodCount: 4, Format: pcm.FormatS16LE})
	require.NoError(t, err)
	defer out.Close()

	_, err = out.Read(make([]byte, 64))
	assert.Error(t, err)
}
