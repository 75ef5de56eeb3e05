package computebudget

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildInstructions_LimitOnly(t *testing.T) {
	ixs, err := BuildInstructions(Config{Units: 1_000_000})
	require.NoError(t, err)
	require.Len(t, ixs, 1)

	data, err := ixs[0].Data()
	require.NoError(t, err)
	assert.Equal(t, SetComputeUnitLimit, data[0])
	assert.Equal(t, uint32(1_000_000), binary.LittleEndian.Uint32(data[1:5]))
	assert.True(t, IsComputeBudget(ixs[0]))
	assert.Empty(t, ixs[0].Accounts())
}

func TestBuildInstructions_WithPrice(t *testing.T) {
	ixs, err := BuildInstructions(Config{Units: 300_000, UnitPrice: 5_000})
	require.NoError(t, err)
	require.Len(t, ixs, 2)

	data, err := ixs[1].Data()
	require.NoError(t, err)
	assert.Equal(t, SetComputeUnitPrice, data[0])
	assert.Equal(t, uint64(5_000), binary.LittleEndian.Uint64(data[1:9]))
}

func TestBuildInstructions_ZeroUnitsUsesDefault(t *testing.T) {
	ixs, err := BuildInstructions(Config{})
	require.NoError(t, err)

	data, err := ixs[0].Data()
	require.NoError(t, err)
	assert.Equal(t, DefaultUnits, binary.LittleEndian.Uint32(data[1:5]))
}

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.Equal(t, DefaultUnits, cfg.Units)
	assert.Zero(t, cfg.UnitPrice)

	ixs, err := BuildInstructions(cfg)
	require.NoError(t, err)
	require.Len(t, ixs, 1)
	assert.Equal(t, ProgramID, ixs[0].ProgramID())
}
