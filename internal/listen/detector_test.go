package listen

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimlabs/kim-voice/internal/audio"
	"github.com/kimlabs/kim-voice/internal/stt"
)

var errStreamEnded = errors.New("stream ended")

func staticNoiseFloor(threshold float64) *audio.NoiseFloor {
	return audio.NewNoiseFloor(audio.NoiseFloorConfig{
		Window:          100,
		Adaptive:        false,
		StaticThreshold: threshold,
		MinFloor:        0.5,
		MaxFloor:        0.9,
	})
}

func TestMatchesWakePhraseStrict(t *testing.T) {
	assert.True(t, matchesWakePhrase("hello kim how are you", "kim", true))
	assert.False(t, matchesWakePhrase("kimberly called", "kim", true))
	assert.True(t, matchesWakePhrase("Kim, turn on the lights!", "kim", true))
	assert.False(t, matchesWakePhrase("nothing here", "kim", true))
}

func TestMatchesWakePhraseRelaxed(t *testing.T) {
	assert.True(t, matchesWakePhrase("kimberly called", "kim", false))
	assert.True(t, matchesWakePhrase("hello kim", "kim", false))
	assert.True(t, matchesWakePhrase("kim", "kim", false))
	assert.False(t, matchesWakePhrase("hello there", "kim", false))
}

func TestMatchesWakePhraseEdgeCases(t *testing.T) {
	assert.False(t, matchesWakePhrase("kim", "", true))
	assert.False(t, matchesWakePhrase("", "kim", true))
	assert.False(t, matchesWakePhrase("...", "kim", true))
	// Cyrillic wake word with punctuation attached.
	assert.True(t, matchesWakePhrase("Ким, включи свет", "ким", true))
}

func TestNormalizeText(t *testing.T) {
	normalized, tokens := normalizeText("  Hello, Kim!  How's it?  ")
	assert.Equal(t, []string{"hello", "kim", "how", "s", "it"}, tokens)
	assert.Equal(t, "hello kim how s it", normalized)
}

func runDetector(t *testing.T, d *Detector) int {
	t.Helper()
	triggers := 0
	err := d.Run(context.Background(), func() { triggers++ })
	require.ErrorIs(t, err, errStreamEnded)
	return triggers
}

func TestDetectorFiresOnWakePhrase(t *testing.T) {
	clock := newFakeClock()
	source := &fakeSource{
		frames:      []audio.Frame{speechFrame(), speechFrame(), speechFrame()},
		clock:       clock,
		step:        250 * time.Millisecond,
		onExhausted: errStreamEnded,
	}
	rec := &fakeRecognizer{steps: []stt.Step{
		partial("hey"),
		partial("hey kim"),
		final("hey kim", 0.9, 0.85),
	}}

	d := NewDetector(DetectorConfig{
		Phrase:          "kim",
		StrictWordMatch: true,
		MinChars:        2,
		Debounce:        1200 * time.Millisecond,
	}, source, rec, staticNoiseFloor(0.5), nil)
	d.now = clock.Now

	assert.Equal(t, 1, runDetector(t, d))
}

func TestDetectorDebounceSuppressesRapidRepeats(t *testing.T) {
	clock := newFakeClock()

	frames := make([]audio.Frame, 0, 8)
	frames = repeatFrames(frames, speechFrame(), 8)
	source := &fakeSource{
		frames:      frames,
		clock:       clock,
		step:        250 * time.Millisecond,
		onExhausted: errStreamEnded,
	}
	rec := &fakeRecognizer{steps: []stt.Step{
		final("hey kim", 0.9, 0.9),        // fires
		final("kim again", 0.9, 0.9),      // 250ms later, debounced
		partial(""),
		partial(""),
		partial(""),
		partial(""),
		partial(""),
		final("kim once more", 0.9, 0.9), // past the debounce window
	}}

	d := NewDetector(DetectorConfig{
		Phrase:          "kim",
		StrictWordMatch: true,
		MinChars:        2,
		Debounce:        1200 * time.Millisecond,
	}, source, rec, staticNoiseFloor(0.5), nil)
	d.now = clock.Now

	assert.Equal(t, 2, runDetector(t, d))
}

func TestDetectorRejectsShortUtterance(t *testing.T) {
	source := &fakeSource{
		frames:      []audio.Frame{speechFrame()},
		onExhausted: errStreamEnded,
	}
	rec := &fakeRecognizer{steps: []stt.Step{final("kim", 0.9)}}

	d := NewDetector(DetectorConfig{
		Phrase:          "kim",
		StrictWordMatch: true,
		MinChars:        5,
		Debounce:        time.Second,
	}, source, rec, staticNoiseFloor(0.5), nil)

	assert.Equal(t, 0, runDetector(t, d))
}

func TestDetectorRejectsLowConfidence(t *testing.T) {
	source := &fakeSource{
		frames:      []audio.Frame{speechFrame()},
		onExhausted: errStreamEnded,
	}
	rec := &fakeRecognizer{steps: []stt.Step{final("hey kim", 0.3, 0.4)}}

	d := NewDetector(DetectorConfig{
		Phrase:          "kim",
		StrictWordMatch: true,
		MinChars:        2,
		Debounce:        time.Second,
	}, source, rec, staticNoiseFloor(0.5), nil)

	assert.Equal(t, 0, runDetector(t, d))
}

func TestDetectorSkipsEmptyFrames(t *testing.T) {
	source := &fakeSource{
		frames:      []audio.Frame{{}, speechFrame(), {}},
		onExhausted: errStreamEnded,
	}
	rec := &fakeRecognizer{steps: []stt.Step{partial("hm")}}

	d := NewDetector(DetectorConfig{
		Phrase:   "kim",
		MinChars: 2,
		Debounce: time.Second,
	}, source, rec, staticNoiseFloor(0.5), nil)

	runDetector(t, d)
	assert.Equal(t, 1, rec.accepted)
}

func TestDetectorStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	source := &fakeSource{onExhausted: errStreamEnded}
	rec := &fakeRecognizer{}

	d := NewDetector(DetectorConfig{Phrase: "kim", MinChars: 2}, source, rec, staticNoiseFloor(0.5), nil)
	err := d.Run(ctx, func() { t.Fatal("trigger after cancel") })
	assert.ErrorIs(t, err, context.Canceled)
}
