package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoiseFloorStaticThreshold(t *testing.T) {
	nf := NewNoiseFloor(NoiseFloorConfig{
		Window:          100,
		Adaptive:        false,
		StaticThreshold: 0.7,
		MinFloor:        0.5,
		MaxFloor:        0.9,
	})

	for i := 0; i < 200; i++ {
		nf.Observe(5000)
	}
	assert.Equal(t, 0.7, nf.Threshold())
}

func TestNoiseFloorWarmupUsesStaticThreshold(t *testing.T) {
	nf := NewNoiseFloor(NoiseFloorConfig{
		Window:          100,
		Adaptive:        true,
		StaticThreshold: 0.7,
		MinFloor:        0.5,
		MaxFloor:        0.9,
	})

	// Fewer readings than the warmup minimum: threshold must not move.
	for i := 0; i < 49; i++ {
		nf.Observe(900)
	}
	assert.Equal(t, 0.7, nf.Threshold())
}

func TestNoiseFloorQuietRoomStaysNearMaxFloor(t *testing.T) {
	nf := NewNoiseFloor(NoiseFloorConfig{
		Window:          100,
		Adaptive:        true,
		StaticThreshold: 0.7,
		MinFloor:        0.5,
		MaxFloor:        0.9,
	})

	for i := 0; i < 100; i++ {
		nf.Observe(0)
	}
	assert.InDelta(t, 0.9, nf.Threshold(), 1e-9)
}

func TestNoiseFloorLoudRoomPullsThresholdDown(t *testing.T) {
	nf := NewNoiseFloor(NoiseFloorConfig{
		Window:          100,
		Adaptive:        true,
		StaticThreshold: 0.7,
		MinFloor:        0.5,
		MaxFloor:        0.9,
	})

	for i := 0; i < 100; i++ {
		nf.Observe(10000)
	}
	// Amplitude saturates the normalization: full mix toward the low floor.
	// 0.9*(1-0.4) + 0.5*0.4 = 0.74
	assert.InDelta(t, 0.74, nf.Threshold(), 1e-9)
}

func TestNoiseFloorMonotonicWithNoise(t *testing.T) {
	quiet := NewNoiseFloor(NoiseFloorConfig{Window: 100, Adaptive: true, StaticThreshold: 0.7, MinFloor: 0.5, MaxFloor: 0.9})
	loud := NewNoiseFloor(NoiseFloorConfig{Window: 100, Adaptive: true, StaticThreshold: 0.7, MinFloor: 0.5, MaxFloor: 0.9})

	for i := 0; i < 100; i++ {
		quiet.Observe(100)
		loud.Observe(800)
	}
	assert.Greater(t, quiet.Threshold(), loud.Threshold())
}

func TestNoiseFloorThresholdClamped(t *testing.T) {
	nf := NewNoiseFloor(NoiseFloorConfig{
		Window:          100,
		Adaptive:        true,
		StaticThreshold: 0.7,
		MinFloor:        0.5,
		MaxFloor:        0.9,
	})

	for amp := 0.0; amp <= 20000; amp += 500 {
		nf.Observe(amp)
		th := nf.Threshold()
		assert.GreaterOrEqual(t, th, 0.5)
		assert.LessOrEqual(t, th, 0.9)
	}
}

func TestNoiseFloorThresholdIdempotent(t *testing.T) {
	nf := NewNoiseFloor(NoiseFloorConfig{
		Window:          100,
		Adaptive:        true,
		StaticThreshold: 0.7,
		MinFloor:        0.5,
		MaxFloor:        0.9,
	})

	for i := 0; i < 75; i++ {
		nf.Observe(float64(i * 13 % 1200))
	}
	first := nf.Threshold()
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, nf.Threshold())
	}
}

func TestNoiseFloorWindowBounded(t *testing.T) {
	nf := NewNoiseFloor(NoiseFloorConfig{Window: 100, Adaptive: true, StaticThreshold: 0.7, MinFloor: 0.5, MaxFloor: 0.9})

	for i := 0; i < 500; i++ {
		nf.Observe(300)
		assert.LessOrEqual(t, nf.Len(), 100)
	}
	assert.Equal(t, 100, nf.Len())
}

func TestNoiseFloorEvictsOldReadings(t *testing.T) {
	nf := NewNoiseFloor(NoiseFloorConfig{Window: 100, Adaptive: true, StaticThreshold: 0.7, MinFloor: 0.5, MaxFloor: 0.9})

	// A loud burst followed by enough quiet to fill the whole window: the
	// burst must age out and the threshold recover toward the high floor.
	for i := 0; i < 100; i++ {
		nf.Observe(10000)
	}
	noisy := nf.Threshold()

	for i := 0; i < 100; i++ {
		nf.Observe(0)
	}
	assert.Greater(t, nf.Threshold(), noisy)
	assert.InDelta(t, 0.9, nf.Threshold(), 1e-9)
}
