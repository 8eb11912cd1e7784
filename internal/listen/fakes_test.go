package listen

import (
	"context"
	"sync"
	"time"

	"github.com/kimlabs/kim-voice/internal/audio"
	"github.com/kimlabs/kim-voice/internal/stt"
)

// fakeClock is a manually advanced clock shared by the fake source and
// the code under test, so timing behavior is deterministic.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeSource plays back a scripted sequence of frames, advancing the
// clock by one frame duration per read. Once the script is exhausted it
// returns onExhausted, which defaults to a fatal error so loops under
// test terminate.
type fakeSource struct {
	frames      []audio.Frame
	idx         int
	clock       *fakeClock
	step        time.Duration
	onExhausted error
	reads       int
}

func (s *fakeSource) NextFrame(ctx context.Context) (audio.Frame, error) {
	if err := ctx.Err(); err != nil {
		return audio.Frame{}, err
	}
	s.reads++
	if s.idx >= len(s.frames) {
		return audio.Frame{}, s.onExhausted
	}
	frame := s.frames[s.idx]
	s.idx++
	if s.clock != nil {
		s.clock.Advance(s.step)
	}
	return frame, nil
}

// fakeRecognizer returns scripted steps for consecutive Accept calls.
// Calls beyond the script return empty partial steps.
type fakeRecognizer struct {
	steps    []stt.Step
	idx      int
	flush    stt.Step
	flushErr error
	resets   int
	accepted int
}

func (r *fakeRecognizer) Accept(pcm []int16) (stt.Step, error) {
	r.accepted++
	if r.idx >= len(r.steps) {
		return stt.Step{}, nil
	}
	step := r.steps[r.idx]
	r.idx++
	return step, nil
}

func (r *fakeRecognizer) Flush() (stt.Step, error) {
	return r.flush, r.flushErr
}

func (r *fakeRecognizer) Reset() error {
	r.resets++
	return nil
}

func (r *fakeRecognizer) Close() error { return nil }

// speech and quiet build frames relative to the silence floor used by the
// endpointing logic.
func speechFrame() audio.Frame {
	samples := make([]int16, 160)
	for i := range samples {
		samples[i] = 4000
	}
	return audio.Frame{Samples: samples, SampleRate: 16000}
}

func silentFrame() audio.Frame {
	samples := make([]int16, 160)
	for i := range samples {
		samples[i] = 10
	}
	return audio.Frame{Samples: samples, SampleRate: 16000}
}

func partial(text string) stt.Step {
	return stt.Step{Text: text, Final: false}
}

func final(text string, confs ...float64) stt.Step {
	return stt.Step{Text: text, Final: true, WordConfidences: confs}
}

// repeatFrames appends n copies of a frame to the script.
func repeatFrames(frames []audio.Frame, f audio.Frame, n int) []audio.Frame {
	for i := 0; i < n; i++ {
		frames = append(frames, f)
	}
	return frames
}
