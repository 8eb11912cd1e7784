// Package app assembles the voice pipeline: microphone frames feed the
// wake-word detector; an accepted trigger borrows the same stream for
// command capture and the confirmation flow, then hands the result to a
// dispatcher and speaks the reply.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kimlabs/kim-voice/internal/audio"
	"github.com/kimlabs/kim-voice/internal/config"
	"github.com/kimlabs/kim-voice/internal/dispatch"
	"github.com/kimlabs/kim-voice/internal/listen"
	"github.com/kimlabs/kim-voice/internal/models"
	"github.com/kimlabs/kim-voice/internal/stt"
	"github.com/kimlabs/kim-voice/internal/voice"
)

// Assistant is the long-running voice assistant process.
type Assistant struct {
	cfg *config.Config
	log *zap.Logger
}

// NewAssistant creates an assistant from validated configuration.
func NewAssistant(cfg *config.Config, log *zap.Logger) (*Assistant, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Assistant{cfg: cfg, log: log}, nil
}

// Run blocks until the context is cancelled or a fatal audio error
// occurs.
func (a *Assistant) Run(ctx context.Context) error {
	modelPath, err := models.Resolve(a.cfg.Model.Path)
	if err != nil {
		return err
	}

	model, err := stt.NewModel(stt.ModelConfig{
		Path:       modelPath,
		SampleRate: a.cfg.Audio.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to load speech model: %w", err)
	}
	defer model.Close()

	// The detector and capture each get their own recognizer session so
	// wake-word state never bleeds into command transcription.
	wakeSession, err := model.NewSession()
	if err != nil {
		return fmt.Errorf("failed to create wake recognizer: %w", err)
	}
	defer wakeSession.Close()

	captureSession, err := model.NewSession()
	if err != nil {
		return fmt.Errorf("failed to create capture recognizer: %w", err)
	}
	defer captureSession.Close()

	// Resolve the device first so a bad index fails with a clear error
	// instead of a device init failure.
	device, err := audio.SelectDevice(a.cfg.Audio.DeviceIndex)
	if err != nil {
		return fmt.Errorf("audio device selection: %w", err)
	}
	a.log.Info("using capture device", zap.String("device", device.String()))

	sourceCfg := audio.DefaultSourceConfig()
	sourceCfg.SampleRate = a.cfg.Audio.SampleRate
	sourceCfg.FrameSize = a.cfg.Audio.FrameSize
	sourceCfg.DeviceIndex = a.cfg.Audio.DeviceIndex

	source, err := audio.NewMalgoSource(sourceCfg, a.log.Named("audio"))
	if err != nil {
		return fmt.Errorf("failed to create audio source: %w", err)
	}
	if err := source.Start(ctx); err != nil {
		return fmt.Errorf("failed to start audio capture: %w", err)
	}
	defer source.Stop()

	noise := audio.NewNoiseFloor(audio.NoiseFloorConfig{
		Window:          a.cfg.Wake.NoiseFloorWindow,
		Adaptive:        a.cfg.Wake.AdaptiveThreshold,
		StaticThreshold: a.cfg.Wake.MinHotwordConfidence,
		MinFloor:        a.cfg.Wake.MinConfidenceFloor,
		MaxFloor:        a.cfg.Wake.MaxConfidenceFloor,
	})

	var vad *audio.VAD
	if a.cfg.Capture.UseVAD {
		vadCfg := audio.DefaultVADConfig()
		vadCfg.EnergyThreshold = a.cfg.Capture.VADThreshold
		vad = audio.NewVAD(vadCfg)
	}

	speaker := a.buildSpeaker()
	capture := listen.NewCapture(source, captureSession, vad, a.log.Named("capture"))

	captureParams := listen.CaptureParams{
		MaxDuration:      a.cfg.MaxPhraseDuration(),
		SilenceTimeout:   a.cfg.SilenceTimeout(),
		MinChars:         a.cfg.Capture.MinPhraseChars,
		MinAvgConfidence: a.cfg.Capture.MinAvgConfidence,
	}

	confirmer := listen.NewConfirmer(
		capture,
		&speakerPrompter{speaker: speaker},
		a.cfg.Confirm.RejectionWords,
		captureParams,
		a.cfg.Capture.MaxRetries,
		a.log.Named("confirm"),
	)

	if !a.cfg.LocalOnly {
		a.log.Warn("remote dispatch is not configured in this build, handling commands locally")
	}
	handler := dispatch.NewLocalHandler(a.log.Named("dispatch"))

	detector := listen.NewDetector(listen.DetectorConfig{
		Phrase:          a.cfg.Wake.Phrase,
		StrictWordMatch: a.cfg.Wake.StrictWordMatch,
		MinChars:        a.cfg.Wake.MinChars,
		Debounce:        a.cfg.Debounce(),
	}, source, wakeSession, noise, a.log.Named("wake"))

	a.log.Info("assistant ready",
		zap.String("wake_phrase", a.cfg.Wake.Phrase),
		zap.String("model", modelPath))

	err = detector.Run(ctx, func() {
		a.handleWake(ctx, capture, captureParams, confirmer, handler, speaker)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// handleWake runs one command interaction after a wake trigger. All
// failures inside are spoken or logged, never fatal: the wake loop
// resumes regardless.
func (a *Assistant) handleWake(
	ctx context.Context,
	capture *listen.Capture,
	params listen.CaptureParams,
	confirmer *listen.Confirmer,
	handler dispatch.Dispatcher,
	speaker voice.Speaker,
) {
	a.say(ctx, speaker, "Yes, listening.")

	utterance, err := capture.CaptureWithRetries(ctx, params, a.cfg.Capture.MaxRetries)
	if err != nil {
		a.log.Error("command capture failed", zap.Error(err))
		return
	}
	if utterance == nil {
		a.say(ctx, speaker, "I didn't catch that. Say the wake word to try again.")
		return
	}

	utterance, err = confirmer.Resolve(ctx, utterance)
	if err != nil {
		a.log.Error("confirmation failed", zap.Error(err))
		return
	}
	if utterance == nil {
		a.say(ctx, speaker, "I didn't catch that. Say the wake word to try again.")
		return
	}

	reply, err := handler.Dispatch(ctx, *utterance)
	if err != nil {
		a.log.Error("dispatch failed", zap.Error(err))
		a.say(ctx, speaker, "Sorry, something went wrong handling that.")
		return
	}
	if reply != "" {
		a.say(ctx, speaker, reply)
	}
}

func (a *Assistant) buildSpeaker() voice.Speaker {
	if a.cfg.Speaker.Command != "" {
		speaker, err := voice.NewExecSpeaker(a.cfg.Speaker.Command, a.cfg.Speaker.Args, a.log.Named("speaker"))
		if err == nil {
			return speaker
		}
		a.log.Warn("falling back to console speaker", zap.Error(err))
	}
	return voice.DefaultConsoleSpeaker()
}

func (a *Assistant) say(ctx context.Context, speaker voice.Speaker, text string) {
	if err := speaker.Say(ctx, text); err != nil {
		a.log.Warn("speech output failed", zap.Error(err))
	}
}

// speakerPrompter voices the confirmation prompts.
type speakerPrompter struct {
	speaker voice.Speaker
}

func (p *speakerPrompter) PromptConfirm(ctx context.Context, candidate string) error {
	return p.speaker.Say(ctx, fmt.Sprintf("I think you said: %s. Is that right?", candidate))
}

func (p *speakerPrompter) PromptRepeat(ctx context.Context) error {
	return p.speaker.Say(ctx, "Okay, please say it again.")
}
