package audio

// VADConfig holds configuration for Voice Activity Detection.
type VADConfig struct {
	// EnergyThreshold is the minimum normalized RMS energy to consider as
	// speech. Typical values: 0.001 to 0.1 (lower = more sensitive).
	EnergyThreshold float64

	// SpeechFrames is the number of consecutive speech frames before the
	// detector reports speech as active.
	SpeechFrames int

	// SilenceFrames is the number of consecutive silent frames before the
	// detector reports speech as ended.
	SilenceFrames int
}

// DefaultVADConfig returns a default VAD configuration.
func DefaultVADConfig() VADConfig {
	return VADConfig{
		EnergyThreshold: 0.01,
		SpeechFrames:    2,
		SilenceFrames:   8,
	}
}

// VAD classifies frames as speech or non-speech using energy with
// hysteresis, so single noisy or quiet frames do not flip the state. The
// utterance capture uses it as an optional gate that keeps non-speech
// frames away from the recognizer.
type VAD struct {
	config            VADConfig
	speechFrameCount  int
	silenceFrameCount int
	speaking          bool
}

// NewVAD creates a new voice activity detector.
func NewVAD(config VADConfig) *VAD {
	if config.SpeechFrames <= 0 {
		config.SpeechFrames = 1
	}
	if config.SilenceFrames <= 0 {
		config.SilenceFrames = 1
	}
	return &VAD{config: config}
}

// ProcessFrame updates the detector with one frame and returns
// (speechActive, speechStarted, speechEnded).
func (v *VAD) ProcessFrame(frame Frame) (bool, bool, bool) {
	frameHasSpeech := frame.Energy() > v.config.EnergyThreshold

	speechStarted := false
	speechEnded := false

	if frameHasSpeech {
		v.speechFrameCount++
		v.silenceFrameCount = 0
		if !v.speaking && v.speechFrameCount >= v.config.SpeechFrames {
			v.speaking = true
			speechStarted = true
		}
	} else {
		v.silenceFrameCount++
		v.speechFrameCount = 0
		if v.speaking && v.silenceFrameCount >= v.config.SilenceFrames {
			v.speaking = false
			speechEnded = true
		}
	}

	return v.speaking, speechStarted, speechEnded
}

// IsSpeaking reports whether speech is currently active.
func (v *VAD) IsSpeaking() bool {
	return v.speaking
}

// Reset clears the detector state between captures.
func (v *VAD) Reset() {
	v.speechFrameCount = 0
	v.silenceFrameCount = 0
	v.speaking = false
}
