// Package stt defines the speech-recognizer boundary the listening
// pipeline consumes, plus its Vosk implementation. The pipeline feeds PCM
// frames and gets back partial or final recognition steps; how speech is
// recognized internally is the engine's business.
package stt

import "strings"

// Step is one recognition step for the current session.
type Step struct {
	// Text is the recognized text so far (partial) or for the completed
	// utterance (final).
	Text string

	// Final indicates a completed utterance rather than an in-progress
	// partial.
	Final bool

	// WordConfidences holds the per-word confidence scores of a final
	// step, in word order. Empty when the engine does not provide them.
	WordConfidences []float64
}

// AvgConfidence returns the mean of the per-word confidences, or 1.0 when
// the engine provided none.
func (s Step) AvgConfidence() float64 {
	if len(s.WordConfidences) == 0 {
		return 1.0
	}
	var sum float64
	for _, c := range s.WordConfidences {
		sum += c
	}
	return sum / float64(len(s.WordConfidences))
}

// IsEmpty reports whether the step carries no recognized text.
func (s Step) IsEmpty() bool {
	return strings.TrimSpace(s.Text) == ""
}

// Recognizer is a single recognition session over a PCM stream.
//
// Implementations guarantee monotonically non-decreasing time progression
// per session. Reset starts a fresh session and must be called between
// independent utterances. Accept and Flush errors are recognition errors:
// callers log them and discard the current frame or utterance, they never
// terminate the listening loop.
type Recognizer interface {
	// Accept feeds one frame of 16-bit PCM and returns the resulting
	// partial or final step.
	Accept(pcm []int16) (Step, error)

	// Flush forces a final step for whatever audio has been fed, ending
	// the current session.
	Flush() (Step, error)

	// Reset discards session state so the next Accept starts a new
	// utterance.
	Reset() error

	// Close releases session resources.
	Close() error
}
