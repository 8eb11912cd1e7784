package stt

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	vosk "github.com/alphacep/vosk-api/go"
)

// ModelConfig holds configuration for loading a Vosk model.
type ModelConfig struct {
	// Path is the model directory on disk.
	Path string

	// SampleRate is the audio sample rate in Hz the sessions expect.
	SampleRate int
}

// Model wraps a loaded Vosk model. Loading happens once at construction;
// a load failure is unrecoverable and fails initialization. Independent
// recognition sessions are minted from the same model so the wake-word
// loop and the utterance capture each own one.
type Model struct {
	model      *vosk.VoskModel
	sampleRate int
}

// NewModel loads a Vosk model from disk.
func NewModel(config ModelConfig) (*Model, error) {
	if config.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", config.SampleRate)
	}
	if _, err := os.Stat(config.Path); err != nil {
		return nil, fmt.Errorf("model not found at %s: %w", config.Path, err)
	}

	vosk.SetLogLevel(-1)

	model, err := vosk.NewModel(config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load model from %s: %w", config.Path, err)
	}
	if model == nil {
		return nil, fmt.Errorf("failed to load model from %s: model returned nil", config.Path)
	}

	return &Model{model: model, sampleRate: config.SampleRate}, nil
}

// NewSession creates an independent recognition session.
func (m *Model) NewSession() (*Session, error) {
	recognizer, err := vosk.NewRecognizer(m.model, float64(m.sampleRate))
	if err != nil {
		return nil, fmt.Errorf("failed to create recognizer: %w", err)
	}
	// Word-level results carry the confidence scores.
	recognizer.SetWords(1)

	return &Session{recognizer: recognizer}, nil
}

// Close frees the model. Sessions must be closed first.
func (m *Model) Close() {
	if m.model != nil {
		m.model.Free()
		m.model = nil
	}
}

// Session implements Recognizer on a Vosk recognizer.
type Session struct {
	mu         sync.Mutex
	recognizer *vosk.VoskRecognizer
}

// voskResult mirrors the JSON Vosk emits for partial and final results.
type voskResult struct {
	Text   string `json:"text"`
	Result []struct {
		Conf  float64 `json:"conf"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Word  string  `json:"word"`
	} `json:"result,omitempty"`
	Partial string `json:"partial,omitempty"`
}

// Accept feeds one PCM frame and returns the resulting step.
func (s *Session) Accept(pcm []int16) (Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.recognizer == nil {
		return Step{}, fmt.Errorf("session is closed")
	}

	if s.recognizer.AcceptWaveform(pcmBytes(pcm)) > 0 {
		return parseResult([]byte(s.recognizer.Result()), true)
	}
	return parseResult([]byte(s.recognizer.PartialResult()), false)
}

// Flush forces a final step and ends the current session state.
func (s *Session) Flush() (Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.recognizer == nil {
		return Step{}, fmt.Errorf("session is closed")
	}
	return parseResult([]byte(s.recognizer.FinalResult()), true)
}

// Reset discards pending audio so the next Accept starts a new utterance.
// Vosk resets its internal state after a final result, so forcing one and
// dropping it is sufficient.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.recognizer == nil {
		return fmt.Errorf("session is closed")
	}
	_ = s.recognizer.FinalResult()
	return nil
}

// Close frees the underlying recognizer.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.recognizer != nil {
		s.recognizer.Free()
		s.recognizer = nil
	}
	return nil
}

// parseResult decodes a Vosk JSON payload into a Step.
func parseResult(data []byte, final bool) (Step, error) {
	var result voskResult
	if err := json.Unmarshal(data, &result); err != nil {
		return Step{}, fmt.Errorf("failed to parse recognizer result: %w", err)
	}

	step := Step{Final: final}
	if final {
		step.Text = result.Text
		if len(result.Result) > 0 {
			step.WordConfidences = make([]float64, 0, len(result.Result))
			for _, word := range result.Result {
				step.WordConfidences = append(step.WordConfidences, word.Conf)
			}
		}
	} else {
		step.Text = result.Partial
	}
	return step, nil
}

// pcmBytes converts samples to the little-endian byte layout Vosk expects.
func pcmBytes(pcm []int16) []byte {
	data := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		data[i*2] = byte(s)
		data[i*2+1] = byte(uint16(s) >> 8)
	}
	return data
}
