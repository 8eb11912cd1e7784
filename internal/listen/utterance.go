// Package listen implements the voice-activation pipeline: continuous
// wake-word detection over a microphone stream, one-shot utterance capture
// with silence endpointing, and the soft confirmation flow that decides
// whether a captured command can be acted on directly.
package listen

import (
	"strings"
	"time"
	"unicode/utf8"
)

// ScoredUtterance is one completed spoken phrase with its recognition
// quality metadata. Immutable once produced.
type ScoredUtterance struct {
	// Text is the recognized phrase, whitespace-trimmed.
	Text string

	// AvgConfidence is the mean per-word recognition confidence in
	// [0.0, 1.0]; 1.0 when the engine provided no word scores.
	AvgConfidence float64

	// Chars is the character length of Text.
	Chars int

	// Duration is the wall-clock time the capture took.
	Duration time.Duration
}

// newScoredUtterance builds an utterance from raw recognizer output.
func newScoredUtterance(text string, avgConfidence float64, duration time.Duration) ScoredUtterance {
	trimmed := strings.TrimSpace(text)
	return ScoredUtterance{
		Text:          trimmed,
		AvgConfidence: avgConfidence,
		Chars:         utf8.RuneCountInString(trimmed),
		Duration:      duration,
	}
}
