package listen

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kimlabs/kim-voice/internal/audio"
	"github.com/kimlabs/kim-voice/internal/stt"
)

// CaptureParams bound one capture attempt.
type CaptureParams struct {
	// MaxDuration is the hard time limit for the phrase.
	MaxDuration time.Duration

	// SilenceTimeout ends the phrase once speech was detected and this
	// much time passed since the last non-silent frame.
	SilenceTimeout time.Duration

	// MinChars rejects phrases shorter than this many characters.
	MinChars int

	// MinAvgConfidence rejects phrases with a lower average word
	// confidence. Both acceptance filters must pass: either alone lets
	// through too much garbled noise or drops too many short commands.
	MinAvgConfidence float64
}

// Capture records one spoken phrase from the shared frame stream. It is a
// one-shot operation invoked after a wake trigger (or in confirmation
// mode) and borrows the stream exclusively while it runs.
type Capture struct {
	source       audio.FrameSource
	rec          stt.Recognizer
	vad          *audio.VAD // optional gate, nil = disabled
	silenceFloor float64
	log          *zap.Logger
	now          func() time.Time
}

// NewCapture creates an utterance capture. vad may be nil to disable the
// voice-activity gate.
func NewCapture(source audio.FrameSource, rec stt.Recognizer, vad *audio.VAD, log *zap.Logger) *Capture {
	if log == nil {
		log = zap.NewNop()
	}
	return &Capture{
		source:       source,
		rec:          rec,
		vad:          vad,
		silenceFloor: audio.DefaultSilenceFloor,
		log:          log,
		now:          time.Now,
	}
}

// Capture listens for one phrase and scores it. It returns (nil, nil) when
// nothing acceptable was recognized — callers must handle that path
// explicitly. Errors are fatal audio failures only; recognition errors are
// logged and degrade to the nil result.
func (c *Capture) Capture(ctx context.Context, params CaptureParams) (*ScoredUtterance, error) {
	start := c.now()

	if err := c.rec.Reset(); err != nil {
		c.log.Warn("recognizer reset failed", zap.Error(err))
	}
	if c.vad != nil {
		c.vad.Reset()
	}

	var (
		speechDetected bool
		lastSpeech     time.Time
		lastFinal      *stt.Step
	)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if c.now().Sub(start) >= params.MaxDuration {
			c.log.Debug("capture reached max duration", zap.Duration("max", params.MaxDuration))
			break
		}

		frame, err := c.source.NextFrame(ctx)
		if err != nil {
			if audio.IsTransient(err) {
				c.log.Debug("dropping frame after transient read failure", zap.Error(err))
				continue
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("capture aborted: %w", err)
		}
		if frame.Empty() {
			continue
		}

		silent := frame.IsSilent(c.silenceFloor)
		if !silent {
			speechDetected = true
			lastSpeech = c.now()
		}

		// The VAD gate keeps non-speech frames away from the recognizer;
		// the silence endpointing above still sees every frame.
		feed := true
		if c.vad != nil {
			active, _, _ := c.vad.ProcessFrame(frame)
			feed = active
		}

		if feed {
			step, err := c.rec.Accept(frame.Samples)
			if err != nil {
				c.log.Warn("recognizer rejected frame", zap.Error(err))
			} else if step.Final && !step.IsEmpty() {
				final := step
				lastFinal = &final
				c.log.Debug("recognized phrase", zap.String("text", step.Text))
			}
		}

		if speechDetected && silent {
			if gap := c.now().Sub(lastSpeech); gap >= params.SilenceTimeout {
				c.log.Debug("silence after speech, ending phrase", zap.Duration("silence", gap))
				break
			}
		}
	}

	// Force a final result if none completed inside the loop.
	if lastFinal == nil {
		step, err := c.rec.Flush()
		if err != nil {
			c.log.Warn("recognizer flush failed", zap.Error(err))
			return nil, nil
		}
		lastFinal = &step
	}

	if lastFinal.IsEmpty() {
		c.log.Debug("no speech recognized")
		return nil, nil
	}

	utterance := newScoredUtterance(lastFinal.Text, lastFinal.AvgConfidence(), c.now().Sub(start))

	if utterance.Chars < params.MinChars {
		c.log.Info("phrase rejected: too short",
			zap.String("text", utterance.Text),
			zap.Int("length", utterance.Chars),
			zap.Int("min", params.MinChars))
		return nil, nil
	}
	if utterance.AvgConfidence < params.MinAvgConfidence {
		c.log.Info("phrase rejected: low confidence",
			zap.String("text", utterance.Text),
			zap.Float64("avg_confidence", utterance.AvgConfidence),
			zap.Float64("min", params.MinAvgConfidence))
		return nil, nil
	}

	c.log.Info("phrase accepted",
		zap.String("text", utterance.Text),
		zap.Float64("avg_confidence", utterance.AvgConfidence),
		zap.Duration("duration", utterance.Duration))
	return &utterance, nil
}

// CaptureWithRetries calls Capture up to maxRetries+1 times and returns
// the first accepted utterance, or (nil, nil) once the attempts are
// exhausted. The bound is explicit iteration so termination is guaranteed.
func (c *Capture) CaptureWithRetries(ctx context.Context, params CaptureParams, maxRetries int) (*ScoredUtterance, error) {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			c.log.Info("retrying capture", zap.Int("attempt", attempt), zap.Int("max_retries", maxRetries))
		}

		utterance, err := c.Capture(ctx, params)
		if err != nil {
			return nil, err
		}
		if utterance != nil {
			return utterance, nil
		}
	}

	c.log.Warn("all capture attempts failed", zap.Int("attempts", maxRetries+1))
	return nil, nil
}
