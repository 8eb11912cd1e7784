package audio

import (
	"errors"
	"sync"
	"time"
)

// ErrReadTimeout is returned by SampleRing.ReadWait when the requested
// number of samples did not arrive before the deadline.
var ErrReadTimeout = errors.New("audio: ring read timed out")

// ErrRingClosed is returned once the ring has been closed by the producer.
var ErrRingClosed = errors.New("audio: ring closed")

// SampleRing is a bounded circular buffer of PCM samples shared between the
// capture device callback (producer) and the blocking frame reader
// (consumer). When the consumer stalls, the oldest samples are overwritten
// so memory stays bounded.
type SampleRing struct {
	mu       sync.Mutex
	cond     *sync.Cond
	buf      []int16
	size     int
	writePos int
	readPos  int
	length   int
	closed   bool
}

// NewSampleRing creates a ring holding up to size samples.
func NewSampleRing(size int) *SampleRing {
	r := &SampleRing{
		buf:  make([]int16, size),
		size: size,
	}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Write appends samples to the ring, overwriting the oldest samples when
// the ring is full. It returns the number of samples dropped.
func (r *SampleRing) Write(samples []int16) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return len(samples)
	}

	dropped := 0
	for _, s := range samples {
		r.buf[r.writePos] = s
		r.writePos = (r.writePos + 1) % r.size
		if r.length == r.size {
			// Overwrote the oldest unread sample.
			r.readPos = (r.readPos + 1) % r.size
			dropped++
		} else {
			r.length++
		}
	}

	r.cond.Broadcast()
	return dropped
}

// ReadWait blocks until len(dst) samples are available, copies them into
// dst and returns the count. It returns ErrReadTimeout when the deadline
// passes first and ErrRingClosed once the producer has closed the ring.
func (r *SampleRing) ReadWait(dst []int16, timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)
	wakeup := time.AfterFunc(timeout, func() {
		r.mu.Lock()
		r.cond.Broadcast()
		r.mu.Unlock()
	})
	defer wakeup.Stop()

	r.mu.Lock()
	defer r.mu.Unlock()

	for r.length < len(dst) {
		if r.closed {
			return 0, ErrRingClosed
		}
		if !time.Now().Before(deadline) {
			return 0, ErrReadTimeout
		}
		r.cond.Wait()
	}

	for i := range dst {
		dst[i] = r.buf[r.readPos]
		r.readPos = (r.readPos + 1) % r.size
	}
	r.length -= len(dst)

	return len(dst), nil
}

// Len returns the number of unread samples.
func (r *SampleRing) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.length
}

// Close marks the ring as closed and wakes any blocked reader.
func (r *SampleRing) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.cond.Broadcast()
}
