package tdm

import "math/bits"

const (
	minDCShift = 4
	maxDCShift = 20
)

// DCShift returns the running-mean shift for a sample rate: floor(log2(rate/10)),
// clamped to [4, 20]. The estimator time constant is 2^k samples, 64 to 128 ms.
func DCShift(sampleRate uint32) uint {
	q := sampleRate / 10
	if q == 0 {
		return minDCShift
	}

	k := uint(bits.Len32(q) - 1)
	switch {
	case k < minDCShift:
		return minDCShift
	case k > maxDCShift:
		return maxDCShift
	}

	return k
}

// dcFilter removes a constant bias per channel with an exponentially
// weighted running mean. acc holds the mean scaled by 2^shift.
type dcFilter struct {
	shift    uint
	channels int
	lo, hi   int64
	acc      []int64
}

func newDCFilter(channels int, width BitWidth, sampleRate uint32) *dcFilter {
	return &dcFilter{
		shift:    DCShift(sampleRate),
		channels: channels,
		lo:       -(int64(1) << (width - 1)),
		hi:       int64(1)<<(width-1) - 1,
		acc:      make([]int64, channels),
	}
}

// process corrects interleaved samples in place. samples starts on a frame boundary.
func (f *dcFilter) process(samples []int32) {
	ch := 0
	for i, x := range samples {
		acc := f.acc[ch]
		acc += int64(x) - acc>>f.shift
		f.acc[ch] = acc

		y := int64(x) - acc>>f.shift
		if y < f.lo {
			y = f.lo
		} else if y > f.hi {
			y = f.hi
		}

		samples[i] = int32(y)

		ch++
		if ch == f.channels {
			ch = 0
		}
	}
}

// mean returns the current bias estimate of a channel.
func (f *dcFilter) mean(ch int) int64 {
	return f.acc[ch] >> f.shift
}

func (f *dcFilter) reset() {
	clear(f.acc)
}
