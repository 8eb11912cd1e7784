package audio

import "math"

// DefaultSilenceFloor is the mean-amplitude level below which a frame is
// treated as silence by the endpointing logic. 16-bit PCM amplitude units.
const DefaultSilenceFloor = 500.0

// Frame is a block of signed 16-bit PCM samples read from the microphone.
// Frames are ephemeral: they are produced per read and never retained
// beyond the current processing step.
type Frame struct {
	Samples    []int16
	SampleRate int
}

// Empty reports whether the frame carries no data ("nothing this tick").
func (f Frame) Empty() bool {
	return len(f.Samples) == 0
}

// MeanAmplitude returns the mean absolute sample value of the frame.
// An empty frame has amplitude 0.
func (f Frame) MeanAmplitude() float64 {
	if len(f.Samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range f.Samples {
		if s < 0 {
			sum -= float64(s)
		} else {
			sum += float64(s)
		}
	}
	return sum / float64(len(f.Samples))
}

// Energy returns the RMS energy of the frame normalized to [0.0, 1.0].
func (f Frame) Energy() float64 {
	if len(f.Samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range f.Samples {
		normalized := float64(s) / 32768.0
		sum += normalized * normalized
	}
	return math.Sqrt(sum / float64(len(f.Samples)))
}

// IsSilent reports whether the frame's mean amplitude is below the given
// floor. Empty frames count as silent.
func (f Frame) IsSilent(floor float64) bool {
	return f.MeanAmplitude() < floor
}
