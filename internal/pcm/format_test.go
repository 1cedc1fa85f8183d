package pcm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gen2brain/tdm/internal/pcm"
)

func TestFormatBits(t *testing.T) {
	testCases := map[pcm.Format]uint32{
		pcm.FormatS8:        8,
		pcm.FormatS16LE:     16,
		pcm.FormatS24LE:     32, // 24-bit stored in 32-bit container
		pcm.FormatS24Packed: 24,
		pcm.FormatS32LE:     32,
		pcm.Format(-1):      0,
	}

	for format, expectedBits := range testCases {
		t.Run(format.String(), func(t *testing.T) {
			assert.Equal(t, expectedBits, format.Bits())
		})
	}
}

func TestFormatForWidth(t *testing.T) {
	testCases := []struct {
		bits   uint32
		format pcm.Format
		ok     bool
	}{
		{8, pcm.FormatS16LE, true},
		{16, pcm.FormatS16LE, true},
		{24, pcm.FormatS24LE, true},
		{32, pcm.FormatS32LE, true},
		{12, 0, false},
	}

	for _, tc := range testCases {
		format, ok := pcm.FormatForWidth(tc.bits)
		assert.Equal(t, tc.ok, ok, "bits=%d", tc.bits)
		assert.Equal(t, tc.format, format, "bits=%d", tc.bits)
	}
}

func TestConfigSizes(t *testing.T) {
	config := pcm.Config{Channels: 4, Rate: 16000, PeriodSize: 256, PeriodCount: 4, Format: pcm.FormatS32LE}

	assert.Equal(t, uint32(16), config.FrameSize())
	assert.Equal(t, uint32(1024), config.BufferSize())
}
