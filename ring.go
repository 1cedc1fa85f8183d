package tdm

import (
	"runtime"
	"sync/atomic"
)

// spinLock guards the ring indices. Critical sections are bounded copies,
// so waiters yield instead of parking.
type spinLock struct {
	v atomic.Uint32
}

func (l *spinLock) lock() {
	for !l.v.CompareAndSwap(0, 1) {
		runtime.Gosched()
	}
}

func (l *spinLock) unlock() {
	l.v.Store(0)
}

// frameRing is a fixed-capacity FIFO of interleaved audio frames.
// A full ring drops its oldest frames to make room; it never blocks the writer.
type frameRing struct {
	mu       spinLock
	buf      []int32
	channels int
	capacity int // in frames
	head     int // oldest frame
	count    int

	overruns atomic.Uint64
	written  atomic.Uint64
}

func newFrameRing(capacity, channels int) *frameRing {
	return &frameRing{
		buf:      make([]int32, capacity*channels),
		channels: channels,
		capacity: capacity,
	}
}

// write appends whole frames from samples and returns how many frames were dropped.
func (r *frameRing) write(samples []int32) int {
	n := len(samples) / r.channels
	if n == 0 {
		return 0
	}

	r.mu.lock()

	dropped := 0
	if n > r.capacity {
		dropped = r.count + n - r.capacity
		samples = samples[(n-r.capacity)*r.channels : n*r.channels]
		n = r.capacity
		r.head, r.count = 0, 0
	} else if free := r.capacity - r.count; n > free {
		dropped = n - free
		r.head = (r.head + dropped) % r.capacity
		r.count -= dropped
	}

	tail := (r.head + r.count) % r.capacity
	first := min(n, r.capacity-tail)
	copy(r.buf[tail*r.channels:], samples[:first*r.channels])
	copy(r.buf, samples[first*r.channels:n*r.channels])
	r.count += n

	r.mu.unlock()

	r.written.Add(uint64(n))
	if dropped > 0 {
		r.overruns.Add(uint64(dropped))
	}

	return dropped
}

// readChunkFrames caps the frames one read copies while holding the lock,
// bounding how long the delivery path can wait on a consumer.
const readChunkFrames = 256

// read moves up to len(dst)/channels of the oldest frames into dst and returns the frame count.
func (r *frameRing) read(dst []int32) int {
	want := len(dst) / r.channels

	total := 0
	for total < want {
		n := r.readChunk(dst[total*r.channels:], min(want-total, readChunkFrames))
		if n == 0 {
			break
		}

		total += n
	}

	return total
}

func (r *frameRing) readChunk(dst []int32, want int) int {
	r.mu.lock()
	defer r.mu.unlock()

	n := min(want, r.count)
	if n == 0 {
		return 0
	}

	first := min(n, r.capacity-r.head)
	copy(dst, r.buf[r.head*r.channels:(r.head+first)*r.channels])
	copy(dst[first*r.channels:], r.buf[:(n-first)*r.channels])

	r.head = (r.head + n) % r.capacity
	r.count -= n

	return n
}

// available returns the number of buffered frames.
func (r *frameRing) available() int {
	r.mu.lock()
	defer r.mu.unlock()

	return r.count
}
