package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCounterNormalizer_FirstObservationIsZero(t *testing.T) {
	var n CounterNormalizer

	normalized, reset := n.Observe(12345.6)

	assert.Equal(t, 0.0, normalized)
	assert.False(t, reset)
}

func TestCounterNormalizer_ResetSequence(t *testing.T) {
	var n CounterNormalizer

	raws := []float64{100, 150, 20, 70}
	wantNormalized := []float64{0, 50, 0, 50}
	wantReset := []bool{false, false, true, false}

	for i, raw := range raws {
		normalized, reset := n.Observe(raw)
		assert.Equal(t, wantNormalized[i], normalized, "observation %d", i)
		assert.Equal(t, wantReset[i], reset, "observation %d", i)
	}
}

func TestCounterNormalizer_OutputNeverDecreases(t *testing.T) {
	var n CounterNormalizer

	raws := []float64{5, 9, 9, 2, 3, 1, 8, 0, 4}
	prev := 0.0
	for i, raw := range raws {
		normalized, reset := n.Observe(raw)
		assert.GreaterOrEqual(t, normalized, 0.0, "observation %d", i)
		if !reset {
			// Output may only fall back when a counter reset restarts
			// the offset at a new zero.
			assert.GreaterOrEqual(t, normalized, prev, "observation %d", i)
		}
		prev = normalized
	}
}

func TestCounterNormalizer_RepeatedValue(t *testing.T) {
	var n CounterNormalizer

	n.Observe(100)
	first, reset1 := n.Observe(100)
	second, reset2 := n.Observe(100)

	assert.Equal(t, 0.0, first)
	assert.Equal(t, 0.0, second)
	assert.False(t, reset1)
	assert.False(t, reset2)
}
