package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"go.uber.org/zap"
)

// minReadSamples is the smallest reduced block used for the retry after a
// timed-out read.
const minReadSamples = 1000

// MalgoSource implements FrameSource on top of a malgo capture device.
// The device data callback pushes samples into a bounded ring; NextFrame
// blocks draining the ring into fixed-size frames.
type MalgoSource struct {
	config SourceConfig
	log    *zap.Logger

	malgoContext *malgo.AllocatedContext
	device       *malgo.Device
	ring         *SampleRing
	readTimeout  time.Duration

	mu      sync.Mutex
	running bool
}

// NewMalgoSource creates a new malgo-backed frame source.
func NewMalgoSource(config SourceConfig, log *zap.Logger) (*MalgoSource, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if config.SampleRate <= 0 || config.FrameSize <= 0 {
		return nil, fmt.Errorf("invalid source config: sample_rate=%d frame_size=%d",
			config.SampleRate, config.FrameSize)
	}
	bufferFrames := config.BufferFrames
	if bufferFrames <= 0 {
		bufferFrames = 16
	}

	frameDuration := time.Duration(config.FrameSize) * time.Second / time.Duration(config.SampleRate)
	readTimeout := 2 * frameDuration
	if readTimeout < 250*time.Millisecond {
		readTimeout = 250 * time.Millisecond
	}

	return &MalgoSource{
		config:      config,
		log:         log,
		ring:        NewSampleRing(config.FrameSize * bufferFrames),
		readTimeout: readTimeout,
	}, nil
}

// Start opens the capture device and begins filling the ring.
func (m *MalgoSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("source is already running")
	}

	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	m.malgoContext = malgoCtx

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(m.config.Channels)
	deviceConfig.SampleRate = uint32(m.config.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(m.config.FrameSize)

	if m.config.DeviceIndex != nil {
		infos, err := malgoCtx.Devices(malgo.Capture)
		if err != nil {
			m.teardownContext()
			return fmt.Errorf("failed to enumerate capture devices: %w", err)
		}
		idx := *m.config.DeviceIndex
		if idx < 0 || idx >= len(infos) {
			m.teardownContext()
			return fmt.Errorf("capture device index %d out of range (found %d devices)", idx, len(infos))
		}
		deviceConfig.Capture.DeviceID = infos[idx].ID.Pointer()
		m.log.Info("using capture device",
			zap.Int("index", idx),
			zap.String("name", infos[idx].Name()))
	}

	var callbacks malgo.DeviceCallbacks
	callbacks.Data = func(pOutputSample, pInputSamples []byte, framecount uint32) {
		if dropped := m.ring.Write(bytesToSamples(pInputSamples)); dropped > 0 {
			m.log.Debug("sample ring overflow, dropped oldest samples",
				zap.Int("dropped", dropped))
		}
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		m.teardownContext()
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}
	m.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		m.teardownContext()
		return fmt.Errorf("failed to start capture device: %w", err)
	}

	m.running = true
	return nil
}

// NextFrame blocks until a frame is available. A timed-out read is retried
// once with a reduced block size; when the retry also times out the error
// matches ErrTransient. A closed source returns a fatal error.
func (m *MalgoSource) NextFrame(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	m.mu.Lock()
	running := m.running
	m.mu.Unlock()
	if !running {
		return Frame{}, fmt.Errorf("frame source is not running")
	}

	buf := make([]int16, m.config.FrameSize)
	n, err := m.ring.ReadWait(buf, m.readTimeout)
	if errors.Is(err, ErrReadTimeout) {
		// Retry once with a smaller block before giving up on the tick.
		reduced := m.config.FrameSize / 4
		if reduced < minReadSamples {
			reduced = minReadSamples
		}
		if reduced > m.config.FrameSize {
			reduced = m.config.FrameSize
		}
		m.log.Debug("frame read timed out, retrying with reduced block",
			zap.Int("samples", reduced))
		n, err = m.ring.ReadWait(buf[:reduced], m.readTimeout)
		if errors.Is(err, ErrReadTimeout) {
			return Frame{}, fmt.Errorf("no samples within %s: %w", m.readTimeout, ErrTransient)
		}
	}
	if errors.Is(err, ErrRingClosed) {
		return Frame{}, fmt.Errorf("capture device stopped: %w", err)
	}
	if err != nil {
		return Frame{}, fmt.Errorf("ring read failed: %w", err)
	}

	return Frame{Samples: buf[:n], SampleRate: m.config.SampleRate}, nil
}

// Stop stops the capture device and releases malgo resources.
func (m *MalgoSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}
	m.running = false

	m.ring.Close()

	if m.device != nil {
		if err := m.device.Stop(); err != nil {
			return fmt.Errorf("failed to stop capture device: %w", err)
		}
		m.device.Uninit()
		m.device = nil
	}

	m.teardownContext()
	return nil
}

func (m *MalgoSource) teardownContext() {
	if m.malgoContext != nil {
		_ = m.malgoContext.Uninit()
		m.malgoContext.Free()
		m.malgoContext = nil
	}
}

// bytesToSamples reinterprets little-endian 16-bit PCM bytes as samples.
func bytesToSamples(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
	return samples
}
