package audio

import (
	"context"
	"errors"
)

// ErrTransient marks a recoverable read failure (buffer timing glitches,
// short reads). Callers drop the current frame and keep going. Any other
// error from a FrameSource is fatal to the listening session.
var ErrTransient = errors.New("audio: transient read failure")

// IsTransient reports whether err is a recoverable read failure.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// SourceConfig holds configuration for a microphone frame source.
type SourceConfig struct {
	// SampleRate is the number of samples per second (Hz).
	// 16000 is recommended for speech recognition.
	SampleRate int

	// FrameSize is the number of samples per frame handed to consumers.
	FrameSize int

	// Channels is the number of audio channels. Mono for recognition.
	Channels int

	// BufferFrames is how many whole frames the internal ring holds
	// before the oldest samples get overwritten.
	BufferFrames int

	// DeviceIndex selects a capture device by enumeration index.
	// Nil means the default device.
	DeviceIndex *int
}

// DefaultSourceConfig returns a source configuration suitable for
// wake-word listening.
func DefaultSourceConfig() SourceConfig {
	return SourceConfig{
		SampleRate:   16000,
		FrameSize:    4000,
		Channels:     1,
		BufferFrames: 16,
	}
}

// FrameSource yields fixed-size PCM frames from a microphone stream.
//
// NextFrame blocks until a frame is available. A transient failure is
// reported with an error matching ErrTransient after one internal retry
// with a reduced block size; the caller skips the frame and continues.
// Every other error terminates the session. An empty frame means "no data
// this tick" and is skipped, not an error.
type FrameSource interface {
	NextFrame(ctx context.Context) (Frame, error)
}
