// Package voice is the spoken-output boundary. The pipeline only needs
// Say; how speech gets rendered (external TTS command, console fallback)
// is up to the implementation.
package voice

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Speaker voices a short message to the user. Implementations must be
// safe to call sequentially from the single listening loop.
type Speaker interface {
	Say(ctx context.Context, text string) error
}

// execSayTimeout bounds one external TTS invocation so a hung command
// cannot stall the listening loop forever.
const execSayTimeout = 30 * time.Second

// NopSpeaker discards all speech. Useful when running fully silent.
type NopSpeaker struct{}

// Say does nothing.
func (NopSpeaker) Say(context.Context, string) error { return nil }

// ExecSpeaker pipes text to an external text-to-speech command's stdin,
// e.g. `piper --output-raw | aplay` wrapped in a script, or `say` on
// macOS.
type ExecSpeaker struct {
	command string
	args    []string
	log     *zap.Logger
}

// NewExecSpeaker creates a speaker backed by an external command.
func NewExecSpeaker(command string, args []string, log *zap.Logger) (*ExecSpeaker, error) {
	if strings.TrimSpace(command) == "" {
		return nil, fmt.Errorf("speaker command is empty")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ExecSpeaker{command: command, args: args, log: log}, nil
}

// Say runs the command with the text on stdin and waits for it to finish.
func (s *ExecSpeaker) Say(ctx context.Context, text string) error {
	ctx, cancel := context.WithTimeout(ctx, execSayTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.command, s.args...)
	cmd.Stdin = strings.NewReader(text)

	s.log.Debug("speaking", zap.String("text", text))
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("speaker command failed: %w (output: %s)", err, strings.TrimSpace(string(out)))
	}
	return nil
}
