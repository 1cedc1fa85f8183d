package tdm

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRingFIFO(t *testing.T) {
	r := newFrameRing(4, 2)

	assert.Equal(t, 0, r.write([]int32{1, 1, 2, 2, 3, 3}))
	assert.Equal(t, 3, r.available())

	dst := make([]int32, 4)
	require.Equal(t, 2, r.read(dst))
	assert.Equal(t, []int32{1, 1, 2, 2}, dst)

	// Wraps around the end of the buffer.
	assert.Equal(t, 0, r.write([]int32{4, 4, 5, 5, 6, 6}))

	dst = make([]int32, 8)
	require.Equal(t, 4, r.read(dst))
	assert.Equal(t, []int32{3, 3, 4, 4, 5, 5, 6, 6}, dst)
	assert.Equal(t, 0, r.read(dst))
	assert.Equal(t, uint64(6), r.written.Load())
	assert.Equal(t, uint64(0), r.overruns.Load())
}

func TestFrameRingReadSpansChunks(t *testing.T) {
	const frames = 3*readChunkFrames + 17

	r := newFrameRing(frames, 2)

	src := make([]int32, 2*frames)
	for i := range src {
		src[i] = int32(i)
	}
	require.Equal(t, 0, r.write(src[:2*readChunkFrames]))
	require.Equal(t, 0, r.write(src[2*readChunkFrames:]))

	// Start mid-buffer so a chunk boundary meets the wrap.
	head := make([]int32, 2*5)
	require.Equal(t, 5, r.read(head))
	require.Equal(t, 0, r.write(src[:2*5]))

	dst := make([]int32, 2*frames)
	require.Equal(t, frames, r.read(dst))
	assert.Equal(t, src[2*5:], dst[:2*(frames-5)])
	assert.Equal(t, src[:2*5], dst[2*(frames-5):])
	assert.Equal(t, 0, r.available())
}

func TestFrameRingDropsOldest(t *testing.T) {
	r := newFrameRing(3, 1)

	r.write([]int32{1, 2, 3})
	assert.Equal(t, 2, r.write([]int32{4, 5}))

	dst := make([]int32, 3)
	require.Equal(t, 3, r.read(dst))
	assert.Equal(t, []int32{3, 4, 5}, dst)
	assert.Equal(t, uint64(2), r.overruns.Load())
}

func TestFrameRingWriteLargerThanCapacity(t *testing.T) {
	r := newFrameRing(3, 1)

	r.write([]int32{1})
	assert.Equal(t, 3, r.write([]int32{2, 3, 4, 5, 6}))

	dst := make([]int32, 3)
	require.Equal(t, 3, r.read(dst))
	assert.Equal(t, []int32{4, 5, 6}, dst)
	assert.Equal(t, uint64(3), r.overruns.Load())
}

func TestFrameRingIgnoresPartialFrames(t *testing.T) {
	r := newFrameRing(2, 2)

	assert.Equal(t, 0, r.write([]int32{7}))
	assert.Equal(t, 0, r.available())

	r.write([]int32{1, 2, 9})
	dst := make([]int32, 3)
	assert.Equal(t, 1, r.read(dst))
	assert.Equal(t, []int32{1, 2, 0}, dst)
}

func TestFrameRingConcurrent(t *testing.T) {
	const total = 20000

	r := newFrameRing(64, 1)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		frame := make([]int32, 1)
		for i := 1; i <= total; i++ {
			frame[0] = int32(i)
			r.write(frame)
		}
	}()

	read := 0
	last := int32(0)
	dst := make([]int32, 16)
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	for {
		n := r.read(dst)
		for _, v := range dst[:n] {
			require.Greater(t, v, last)
			last = v
		}
		read += n

		select {
		case <-done:
			if r.available() == 0 {
				assert.Equal(t, uint64(total), uint64(read)+r.overruns.Load())

				return
			}
		default:
		}
	}
}
