// Package pcm drives a Linux ALSA hardware PCM device with read/write ioctls.
// It is the host-side stand-in for the DMA engine of a TDM audio port.
package pcm

// Format is an ALSA sample format (SNDRV_PCM_FORMAT_*).
type Format int32

const (
	FormatS8        Format = 0
	FormatS16LE     Format = 2
	FormatS24LE     Format = 6
	FormatS32LE     Format = 10
	FormatS24Packed Format = 32
)

// FormatNames provides human-readable names for the supported formats.
var FormatNames = map[Format]string{
	FormatS8:        "S8",
	FormatS16LE:     "S16_LE",
	FormatS24LE:     "S24_LE",
	FormatS32LE:     "S32_LE",
	FormatS24Packed: "S24_3LE",
}

// String returns the ALSA name of the format.
func (f Format) String() string {
	if name, ok := FormatNames[f]; ok {
		return name
	}

	return "UNKNOWN"
}

// Bits returns the number of bits a sample occupies in memory.
// 24-bit samples stored in a 32-bit container return 32.
func (f Format) Bits() uint32 {
	switch f {
	case FormatS32LE, FormatS24LE:
		return 32
	case FormatS24Packed:
		return 24
	case FormatS16LE:
		return 16
	case FormatS8:
		return 8
	default:
		return 0
	}
}

// FormatForWidth picks the container format for a TDM slot of the given bit width.
// Slots narrower than 16 bits are carried in 16-bit containers and 24-bit slots in
// 32-bit containers, matching what I2S DMA engines deliver.
func FormatForWidth(bits uint32) (Format, bool) {
	switch bits {
	case 8, 16:
		return FormatS16LE, true
	case 24:
		return FormatS24LE, true
	case 32:
		return FormatS32LE, true
	default:
		return 0, false
	}
}

// Config holds the hardware parameters of a stream.
type Config struct {
	Channels    uint32
	Rate        uint32
	PeriodSize  uint32
	PeriodCount uint32
	Format      Format
}

// FrameSize returns the size of one interleaved frame in bytes.
func (c Config) FrameSize() uint32 {
	return c.Channels * (c.Format.Bits() / 8)
}

// BufferSize returns the ring size in frames.
func (c Config) BufferSize() uint32 {
	return c.PeriodSize * c.PeriodCount
}
