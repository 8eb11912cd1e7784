package audio

// Tuning knobs for the adaptive threshold blend. The normalization divisor
// and mix factor are heuristics carried over from field calibration, not
// derived values; adjust them together with the confidence floors.
const (
	// adaptiveMinSamples is how many amplitude readings must be observed
	// before the adaptive threshold starts moving.
	adaptiveMinSamples = 50

	// noiseNormalization maps typical mean amplitudes into [0, 1].
	noiseNormalization = 1000.0

	// adaptiveMix is how far the threshold swings toward the low floor at
	// maximum observed noise.
	adaptiveMix = 0.4
)

// NoiseFloorConfig configures a NoiseFloor estimator.
type NoiseFloorConfig struct {
	// Window is the number of recent amplitude samples retained.
	Window int

	// Adaptive enables threshold adaptation. When false, Threshold always
	// returns StaticThreshold.
	Adaptive bool

	// StaticThreshold is the confidence threshold used before adaptation
	// kicks in, or always when Adaptive is false.
	StaticThreshold float64

	// MinFloor and MaxFloor bound the adaptive threshold. High ambient
	// noise pulls the threshold toward MinFloor, a quiet room keeps it
	// near MaxFloor.
	MinFloor float64
	MaxFloor float64
}

// NoiseFloor estimates the ambient noise level from a sliding window of
// frame amplitudes and derives an adaptive confidence threshold from it.
// A fixed threshold misses wake words in quiet rooms or false-triggers in
// noisy ones; blending between the two floors trades a little
// responsiveness for robustness.
//
// NoiseFloor is not safe for concurrent use; the whole pipeline mutates it
// from the single audio-processing goroutine.
type NoiseFloor struct {
	config    NoiseFloorConfig
	samples   []float64
	pos       int
	count     int
	threshold float64
}

// NewNoiseFloor creates a noise floor estimator.
func NewNoiseFloor(config NoiseFloorConfig) *NoiseFloor {
	if config.Window <= 0 {
		config.Window = 100
	}
	return &NoiseFloor{
		config:    config,
		samples:   make([]float64, config.Window),
		threshold: config.StaticThreshold,
	}
}

// Observe records one amplitude reading, evicting the oldest reading once
// the window is full, and recomputes the adaptive threshold.
func (n *NoiseFloor) Observe(amplitude float64) {
	n.samples[n.pos] = amplitude
	n.pos = (n.pos + 1) % n.config.Window
	if n.count < n.config.Window {
		n.count++
	}

	if !n.config.Adaptive || n.count < adaptiveMinSamples {
		return
	}

	var sum float64
	for i := 0; i < n.count; i++ {
		sum += n.samples[i]
	}
	noiseLevel := sum / float64(n.count)

	normalized := noiseLevel / noiseNormalization
	if normalized > 1.0 {
		normalized = 1.0
	}

	// Low noise keeps the threshold near the high floor; high noise pulls
	// it down toward the low floor.
	threshold := n.config.MaxFloor*(1.0-normalized*adaptiveMix) +
		n.config.MinFloor*(normalized*adaptiveMix)

	if threshold < n.config.MinFloor {
		threshold = n.config.MinFloor
	}
	if threshold > n.config.MaxFloor {
		threshold = n.config.MaxFloor
	}
	n.threshold = threshold
}

// Threshold returns the current confidence threshold. It is idempotent:
// without an intervening Observe the value does not change.
func (n *NoiseFloor) Threshold() float64 {
	if !n.config.Adaptive {
		return n.config.StaticThreshold
	}
	if n.count < adaptiveMinSamples {
		return n.config.StaticThreshold
	}
	return n.threshold
}

// Len returns the number of retained amplitude samples, at most Window.
func (n *NoiseFloor) Len() int {
	return n.count
}
