package prob

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name                string
		win, draw, loss     float64
		wantW, wantD, wantL float64
	}{
		{"already normalized", 0.5, 0.3, 0.2, 0.5, 0.3, 0.2},
		{"scaled up", 1, 1, 2, 0.25, 0.25, 0.5},
		{"negative clamped", 0.8, 0.2, -0.1, 0.8, 0.2, 0},
		{"all zero is uniform", 0, 0, 0, 1.0 / 3, 1.0 / 3, 1.0 / 3},
		{"nan ignored", math.NaN(), 1, 1, 0, 0.5, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Normalize(tt.win, tt.draw, tt.loss)
			assert.InDelta(t, tt.wantW, p.Win, 1e-12)
			assert.InDelta(t, tt.wantD, p.Draw, 1e-12)
			assert.InDelta(t, tt.wantL, p.Loss, 1e-12)
			assert.InDelta(t, 1.0, p.Sum(), 1e-9)
		})
	}
}

func TestRound(t *testing.T) {
	p := Round(Normalize(2, 1, 0), 3)
	assert.Equal(t, 0.667, p.Win)
	assert.Equal(t, 0.333, p.Draw)
	assert.Equal(t, 0.0, p.Loss)
}
