package tdm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDCShift(t *testing.T) {
	testCases := map[uint32]uint{
		0:       4,
		8:       4,
		160:     4,
		8000:    9,
		16000:   10,
		44100:   12,
		48000:   12,
		96000:   13,
		1 << 30: 20,
	}

	for rate, want := range testCases {
		assert.Equal(t, want, DCShift(rate), "rate %d", rate)
	}
}

func TestDCFilterConvergesMonotonically(t *testing.T) {
	const (
		rate = 16000
		v    = 8192 // a quarter of 16-bit full scale
	)

	f := newDCFilter(1, Bits16, rate)

	prev := int32(v)
	sample := make([]int32, 1)
	for i := 0; i < rate/2; i++ {
		sample[0] = v
		f.process(sample)

		require.LessOrEqual(t, sample[0], prev, "sample %d", i)
		require.GreaterOrEqual(t, sample[0], int32(0), "sample %d", i)
		prev = sample[0]
	}

	// Below 1% of full scale after 500 ms.
	assert.Less(t, prev, int32(32768/100))
	assert.InDelta(t, v, f.mean(0), v/100)
}

func TestDCFilterNegativeBias(t *testing.T) {
	f := newDCFilter(1, Bits32, 48000)

	buf := make([]int32, 4800)
	for round := 0; round < 20; round++ {
		for i := range buf {
			buf[i] = -1 << 20
		}
		f.process(buf)
	}

	assert.InDelta(t, 0, buf[len(buf)-1], float64(1<<20)/100)
}

func TestDCFilterPerChannel(t *testing.T) {
	f := newDCFilter(2, Bits16, 16000)

	frames := make([]int32, 2*1024)
	for n := 0; n < 16; n++ {
		for i := 0; i < len(frames); i += 2 {
			frames[i] = 1000
			frames[i+1] = -3000
		}
		f.process(frames)
	}

	assert.InDelta(t, 1000, f.mean(0), 10)
	assert.InDelta(t, -3000, f.mean(1), 30)
	assert.InDelta(t, 0, frames[len(frames)-2], 10)
	assert.InDelta(t, 0, frames[len(frames)-1], 30)
}

func TestDCFilterSaturates(t *testing.T) {
	f := newDCFilter(1, Bits16, 16000)

	high := make([]int32, 16000)
	for i := range high {
		high[i] = 32767
	}
	f.process(high)

	// The estimate sits near +32767, so a full negative swing would underflow.
	low := []int32{-32768}
	f.process(low)
	assert.Equal(t, int32(-32768), low[0])

	f.reset()
	assert.Equal(t, int64(0), f.mean(0))

	edge := []int32{32767}
	f.process(edge)
	assert.LessOrEqual(t, edge[0], int32(32767))
}
