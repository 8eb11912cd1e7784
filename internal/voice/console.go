package voice

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// ConsoleSpeaker "speaks" by printing to a writer. It is the default when
// no TTS command is configured and doubles as the test speaker.
type ConsoleSpeaker struct {
	mu            sync.Mutex
	writer        io.Writer
	showTimestamp bool
}

// ConsoleConfig configures console speech output.
type ConsoleConfig struct {
	// ShowTimestamp prefixes each line with a timestamp.
	ShowTimestamp bool

	// Writer is the output destination (default: os.Stdout).
	Writer io.Writer
}

// NewConsoleSpeaker creates a console-backed speaker.
func NewConsoleSpeaker(config ConsoleConfig) *ConsoleSpeaker {
	writer := config.Writer
	if writer == nil {
		writer = os.Stdout
	}
	return &ConsoleSpeaker{
		writer:        writer,
		showTimestamp: config.ShowTimestamp,
	}
}

// DefaultConsoleSpeaker creates a console speaker with timestamps on.
func DefaultConsoleSpeaker() *ConsoleSpeaker {
	return NewConsoleSpeaker(ConsoleConfig{ShowTimestamp: true})
}

// Say prints the message.
func (c *ConsoleSpeaker) Say(_ context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.showTimestamp {
		fmt.Fprintf(c.writer, "[%s] %s\n", time.Now().Format("15:04:05"), text)
	} else {
		fmt.Fprintf(c.writer, "%s\n", text)
	}
	return nil
}
