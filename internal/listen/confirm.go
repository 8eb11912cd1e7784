package listen

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Decision says whether a captured utterance needs verbal confirmation
// before it is acted on. Derived per utterance, never persisted.
type Decision int

const (
	// NotNeeded means the utterance can be dispatched directly.
	NotNeeded Decision = iota

	// NeedsConfirmation means the user should verify the recognized text.
	NeedsConfirmation
)

// Confirmation is requested for low-confidence recognitions and for long
// phrases, where a misrecognition is both more likely and more costly.
const (
	confirmConfidenceThreshold = 0.75
	confirmLengthThreshold     = 25
)

// Relaxed filter settings for the short yes/no reply.
const (
	confirmReplyMinChars       = 2
	confirmReplyMinConfidence  = 0.5
	confirmReplySilenceTimeout = 1 * time.Second
	confirmReplyMaxDuration    = 5 * time.Second
)

// DefaultRejectionWords is the reply vocabulary treated as "that was
// wrong". The set is localizable via configuration.
var DefaultRejectionWords = []string{"no", "incorrect", "wrong", "not right"}

// Decide classifies an utterance: confirmation is needed when the average
// confidence is below the confidence threshold or the text is at least the
// length threshold.
func Decide(u ScoredUtterance) Decision {
	if u.AvgConfidence < confirmConfidenceThreshold || u.Chars >= confirmLengthThreshold {
		return NeedsConfirmation
	}
	return NotNeeded
}

// Prompter emits the spoken prompts of the confirmation flow. Rendering is
// the implementation's business.
type Prompter interface {
	// PromptConfirm asks the user whether the candidate text is what they
	// said.
	PromptConfirm(ctx context.Context, candidate string) error

	// PromptRepeat asks the user to say the command again.
	PromptRepeat(ctx context.Context) error
}

// Confirmer runs the confirmation flow: decide, ask, classify the reply,
// and re-capture once on rejection. It holds no state across utterances.
type Confirmer struct {
	capture        *Capture
	prompter       Prompter
	rejectionWords []string
	retryParams    CaptureParams
	maxRetries     int
	log            *zap.Logger
}

// NewConfirmer creates a confirmation flow. retryParams and maxRetries
// govern the fresh capture after a rejected confirmation. An empty
// rejectionWords falls back to DefaultRejectionWords.
func NewConfirmer(capture *Capture, prompter Prompter, rejectionWords []string, retryParams CaptureParams, maxRetries int, log *zap.Logger) *Confirmer {
	if log == nil {
		log = zap.NewNop()
	}
	if len(rejectionWords) == 0 {
		rejectionWords = DefaultRejectionWords
	}
	return &Confirmer{
		capture:        capture,
		prompter:       prompter,
		rejectionWords: rejectionWords,
		retryParams:    retryParams,
		maxRetries:     maxRetries,
		log:            log,
	}
}

// Resolve returns the utterance to act on. When no confirmation is needed
// the input comes straight back. Otherwise the user is prompted and a
// short relaxed capture collects the reply: a rejection triggers exactly
// one fresh capture round whose result is returned unconfirmed (nil when
// it too failed); any other reply — or none at all — accepts the original,
// erring on the side of proceeding rather than stalling.
func (f *Confirmer) Resolve(ctx context.Context, u *ScoredUtterance) (*ScoredUtterance, error) {
	if Decide(*u) == NotNeeded {
		f.log.Debug("no confirmation needed",
			zap.Float64("avg_confidence", u.AvgConfidence),
			zap.Int("length", u.Chars))
		return u, nil
	}

	f.log.Info("asking for confirmation",
		zap.String("text", u.Text),
		zap.Float64("avg_confidence", u.AvgConfidence),
		zap.Int("length", u.Chars))

	if err := f.prompter.PromptConfirm(ctx, u.Text); err != nil {
		f.log.Warn("confirmation prompt failed", zap.Error(err))
	}

	reply, err := f.capture.Capture(ctx, CaptureParams{
		MaxDuration:      confirmReplyMaxDuration,
		SilenceTimeout:   confirmReplySilenceTimeout,
		MinChars:         confirmReplyMinChars,
		MinAvgConfidence: confirmReplyMinConfidence,
	})
	if err != nil {
		return nil, err
	}

	if reply == nil {
		f.log.Info("no confirmation reply, keeping original phrase")
		return u, nil
	}

	if !f.isRejection(reply.Text) {
		f.log.Info("phrase confirmed", zap.String("reply", reply.Text))
		return u, nil
	}

	// One fresh round only; the result is returned unconfirmed so the
	// flow cannot loop forever.
	f.log.Info("phrase rejected by user, capturing again", zap.String("reply", reply.Text))
	if err := f.prompter.PromptRepeat(ctx); err != nil {
		f.log.Warn("repeat prompt failed", zap.Error(err))
	}

	return f.capture.CaptureWithRetries(ctx, f.retryParams, f.maxRetries)
}

// isRejection reports whether the reply contains any rejection token.
func (f *Confirmer) isRejection(reply string) bool {
	lowered := strings.ToLower(reply)
	for _, word := range f.rejectionWords {
		if strings.Contains(lowered, word) {
			return true
		}
	}
	return false
}
