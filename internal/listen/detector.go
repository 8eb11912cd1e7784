package listen

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kimlabs/kim-voice/internal/audio"
	"github.com/kimlabs/kim-voice/internal/stt"
)

// DetectorState is the wake-word detector's position in its cycle.
type DetectorState int

const (
	// StateListening means the detector is consuming frames, waiting for
	// a completed recognizer utterance.
	StateListening DetectorState = iota

	// StateEvaluating means a completed utterance is being filtered and
	// matched against the wake phrase.
	StateEvaluating

	// StateFire means a trigger is being delivered; the detector returns
	// to StateListening immediately after.
	StateFire
)

// DetectorConfig is the wake-word detector's immutable configuration,
// owned by the detector for its lifetime.
type DetectorConfig struct {
	// Phrase is the wake word, matched against normalized tokens.
	Phrase string

	// StrictWordMatch requires an exact token equal to the phrase;
	// otherwise a token containing the phrase as a substring (or the
	// whole normalized text equal to it) matches.
	StrictWordMatch bool

	// MinChars rejects completed utterances shorter than this many
	// characters before any matching happens.
	MinChars int

	// Debounce is the minimum gap between two accepted triggers.
	Debounce time.Duration
}

// Detector watches the frame stream for the wake phrase and fires a
// trigger callback on each accepted detection. It owns the microphone
// stream for the whole session: capture and confirmation borrow the same
// stream synchronously from inside the trigger callback, so the wake loop
// is paused while they run.
type Detector struct {
	config DetectorConfig
	phrase string
	source audio.FrameSource
	rec    stt.Recognizer
	noise  *audio.NoiseFloor
	log    *zap.Logger

	// lastTrigger is mutated only inside the detection loop.
	lastTrigger time.Time
	state       DetectorState
	now         func() time.Time
}

// NewDetector creates a wake-word detector.
func NewDetector(config DetectorConfig, source audio.FrameSource, rec stt.Recognizer, noise *audio.NoiseFloor, log *zap.Logger) *Detector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Detector{
		config: config,
		phrase: strings.ToLower(strings.TrimSpace(config.Phrase)),
		source: source,
		rec:    rec,
		noise:  noise,
		log:    log,
		state:  StateListening,
		now:    time.Now,
	}
}

// Run consumes frames until the context is cancelled or the source fails
// fatally. onTrigger is invoked synchronously, in frame-arrival order, on
// every accepted wake-word detection; no two invocations happen within the
// debounce window.
func (d *Detector) Run(ctx context.Context, onTrigger func()) error {
	d.log.Info("wake word listening started",
		zap.String("phrase", d.phrase),
		zap.Bool("strict_word_match", d.config.StrictWordMatch),
		zap.Int("min_chars", d.config.MinChars),
		zap.Duration("debounce", d.config.Debounce))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		frame, err := d.source.NextFrame(ctx)
		if err != nil {
			if audio.IsTransient(err) {
				d.log.Debug("dropping frame after transient read failure", zap.Error(err))
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("listening session aborted: %w", err)
		}
		if frame.Empty() {
			continue
		}

		d.noise.Observe(frame.MeanAmplitude())

		step, err := d.rec.Accept(frame.Samples)
		if err != nil {
			d.log.Warn("recognizer rejected frame", zap.Error(err))
			continue
		}
		if !step.Final {
			continue
		}

		if d.evaluate(step) {
			d.state = StateFire
			onTrigger()
		}
		d.state = StateListening
	}
}

// evaluate applies the length, confidence, match and debounce filters to a
// completed utterance and reports whether a trigger should fire.
func (d *Detector) evaluate(step stt.Step) bool {
	d.state = StateEvaluating

	text := strings.TrimSpace(step.Text)
	if text == "" {
		return false
	}

	length := utf8.RuneCountInString(text)
	confidence := step.AvgConfidence()
	d.log.Debug("completed utterance",
		zap.String("text", text),
		zap.Int("length", length),
		zap.Float64("avg_confidence", confidence))

	if length < d.config.MinChars {
		d.log.Debug("utterance too short",
			zap.Int("length", length),
			zap.Int("min", d.config.MinChars))
		return false
	}

	threshold := d.noise.Threshold()
	if confidence < threshold {
		d.log.Debug("confidence below threshold",
			zap.Float64("avg_confidence", confidence),
			zap.Float64("threshold", threshold))
		return false
	}

	if !matchesWakePhrase(text, d.phrase, d.config.StrictWordMatch) {
		return false
	}

	now := d.now()
	if since := now.Sub(d.lastTrigger); since < d.config.Debounce {
		d.log.Debug("trigger suppressed by debounce", zap.Duration("since_last", since))
		return false
	}
	d.lastTrigger = now

	d.log.Info("wake word detected",
		zap.String("text", text),
		zap.Float64("avg_confidence", confidence),
		zap.Float64("threshold", threshold))
	return true
}

// matchesWakePhrase reports whether the normalized text contains the wake
// phrase under the configured match policy.
func matchesWakePhrase(text, phrase string, strict bool) bool {
	if phrase == "" {
		return false
	}

	normalized, tokens := normalizeText(text)
	if len(tokens) == 0 {
		return false
	}

	if strict {
		for _, token := range tokens {
			if token == phrase {
				return true
			}
		}
		return false
	}

	for _, token := range tokens {
		if strings.Contains(token, phrase) {
			return true
		}
	}
	return normalized == phrase
}

// normalizeText lowercases the text, replaces punctuation with spaces and
// splits on whitespace. It returns the rejoined normalized string and the
// tokens.
func normalizeText(text string) (string, []string) {
	lowered := strings.ToLower(strings.TrimSpace(text))
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return ' '
		}
		return r
	}, lowered)

	tokens := strings.Fields(cleaned)
	return strings.Join(tokens, " "), tokens
}
