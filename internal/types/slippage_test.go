package types

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateMinAmountOut(t *testing.T) {
	tests := []struct {
		name     string
		expected uint64
		config   SlippageConfig
		want     uint64
	}{
		{"one percent", 1_000_000, Percent(1), 990_000},
		{"rounds down", 999, Percent(0.5), 994},
		{"zero percent", 12345, Percent(0), 12345},
		{"fixed", 12345, SlippageConfig{Type: SlippageFixed, Value: 777}, 777},
		{"none", 12345, SlippageConfig{Type: SlippageNone}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalculateMinAmountOut(tt.expected, tt.config))
		})
	}
}

func TestCalculateMaxAmountIn(t *testing.T) {
	assert.Equal(t, uint64(1_010_000), CalculateMaxAmountIn(1_000_000, Percent(1)))
	// 999 * 1.005 = 1003.995 -> 1004
	assert.Equal(t, uint64(1004), CalculateMaxAmountIn(999, Percent(0.5)))
	assert.Equal(t, uint64(math.MaxUint64), CalculateMaxAmountIn(math.MaxUint64, Percent(50)))
	assert.Equal(t, uint64(math.MaxUint64), CalculateMaxAmountIn(5, SlippageConfig{Type: SlippageNone}))
}

func TestSlippageConfig_Validate(t *testing.T) {
	assert.NoError(t, Percent(1).Validate())
	assert.NoError(t, SlippageConfig{Type: SlippageNone}.Validate())
	assert.Error(t, Percent(-1).Validate())
	assert.Error(t, Percent(100).Validate())
	assert.Error(t, SlippageConfig{Type: "bogus"}.Validate())
}
