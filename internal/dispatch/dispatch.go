// Package dispatch defines the command boundary: where final accepted
// text leaves the voice pipeline. The real assistant hands it to an LLM
// router; the local handler answers a few things on its own so the
// pipeline works offline.
package dispatch

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kimlabs/kim-voice/internal/listen"
)

// Dispatcher receives the final accepted utterance and returns the reply
// to speak back, if any.
type Dispatcher interface {
	Dispatch(ctx context.Context, u listen.ScoredUtterance) (string, error)
}

// LocalHandler answers without any external service: greetings, the time
// of day, and a fallback explaining that local-only mode is on.
type LocalHandler struct {
	log *zap.Logger
	now func() time.Time
}

// NewLocalHandler creates a local command handler.
func NewLocalHandler(log *zap.Logger) *LocalHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &LocalHandler{log: log, now: time.Now}
}

var greetingWords = []string{"hello", "hi", "hey", "good morning", "good evening"}

// Dispatch produces a canned local reply for the utterance.
func (h *LocalHandler) Dispatch(_ context.Context, u listen.ScoredUtterance) (string, error) {
	lowered := strings.ToLower(u.Text)
	h.log.Info("dispatching locally",
		zap.String("text", u.Text),
		zap.Float64("avg_confidence", u.AvgConfidence))

	for _, word := range greetingWords {
		if strings.Contains(lowered, word) {
			return "Hi! I'm running in local mode right now, without internet access.", nil
		}
	}

	if strings.Contains(lowered, "time") || strings.Contains(lowered, "what time") {
		return "It's " + h.now().Format("15:04") + ".", nil
	}

	return "Local-only mode is on, so I can't reach the language model.", nil
}
