package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaultTh = Thresholds{Entry: 2.0, Exit: 0.0}

func TestNext_FromFlat(t *testing.T) {
	assert.Equal(t, Long, Next(Flat, -2.5, defaultTh))
	assert.Equal(t, Short, Next(Flat, 2.5, defaultTh))
	assert.Equal(t, Flat, Next(Flat, 1.9, defaultTh))
	assert.Equal(t, Flat, Next(Flat, -2.0, defaultTh)) // estricto: -θ no entra
	assert.Equal(t, Flat, Next(Flat, 2.0, defaultTh))
}

func TestNext_FromLong(t *testing.T) {
	assert.Equal(t, Long, Next(Long, -0.1, defaultTh))
	assert.Equal(t, Flat, Next(Long, 0.0, defaultTh))
	// un z muy alto cierra el largo pero no abre corto en el mismo paso
	assert.Equal(t, Flat, Next(Long, 5.0, defaultTh))
}

func TestNext_FromShort(t *testing.T) {
	assert.Equal(t, Short, Next(Short, 0.1, defaultTh))
	assert.Equal(t, Flat, Next(Short, 0.0, defaultTh))
	assert.Equal(t, Flat, Next(Short, -5.0, defaultTh))
}

func TestNext_AsymmetricExit(t *testing.T) {
	th := Thresholds{Entry: 2.0, Exit: -0.5}
	assert.Equal(t, Flat, Next(Long, -0.4, th))
	assert.Equal(t, Long, Next(Long, -0.6, th))
	assert.Equal(t, Short, Next(Short, -0.4, th))
	assert.Equal(t, Flat, Next(Short, -0.5, th))
}

func TestTransitions_NoDirectFlip(t *testing.T) {
	for from, edges := range Transitions {
		for _, e := range edges {
			if from == Long {
				assert.NotEqual(t, Short, e.To)
			}
			if from == Short {
				assert.NotEqual(t, Long, e.To)
			}
		}
	}
	for _, z := range []float64{-100, -3, -2, -1, 0, 1, 2, 3, 100} {
		assert.NotEqual(t, Short, Next(Long, z, defaultTh), "z=%v", z)
		assert.NotEqual(t, Long, Next(Short, z, defaultTh), "z=%v", z)
	}
}

func TestPosition_StringRoundTrip(t *testing.T) {
	for _, p := range []Position{Flat, Long, Short} {
		got, err := ParsePosition(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	_, err := ParsePosition("SIDEWAYS")
	assert.Error(t, err)
}

func TestPosition_Multiplier(t *testing.T) {
	assert.Equal(t, 0.0, Flat.Multiplier())
	assert.Equal(t, 1.0, Long.Multiplier())
	assert.Equal(t, -1.0, Short.Multiplier())
}
