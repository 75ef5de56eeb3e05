package perpetuals

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"

	"github.com/rovshanmuradov/perps-client/internal/blockchain"
	"github.com/rovshanmuradov/perps-client/internal/blockchain/solbc"
)

func TestQuoteClient_EntryPriceAndFee(t *testing.T) {
	m := newMarket(t)
	m.expectPool(t)
	want := NewPositionPricesAndFee{EntryPrice: 150_250_000, LiquidationPrice: 80_000_000, Fee: 1_500}
	m.expectReturn(t, want)

	got, err := m.quotes.EntryPriceAndFee(context.Background(), EntryQuoteRequest{
		PoolName:       m.poolName,
		Mint:           testSOL,
		CollateralMint: testUSDC,
		Collateral:     1_000_000,
		Size:           3_000_000,
		Side:           SideLong,
	})
	require.NoError(t, err)
	assert.Equal(t, want, *got)

	// симуляция идет без подписей и без настоящего blockhash
	sim := m.client.Calls[len(m.client.Calls)-1]
	require.Equal(t, "SimulateTransaction", sim.Method)
	tx := sim.Arguments.Get(1).(*solana.Transaction)
	assert.Equal(t, solana.Hash{}, tx.Message.RecentBlockhash)
	assert.Equal(t, testOwner, tx.Message.AccountKeys[0])
	assert.Empty(t, tx.Signatures)
}

func TestQuoteClient_EntryRejectsNoneSide(t *testing.T) {
	m := newMarket(t)
	_, err := m.quotes.EntryPriceAndFee(context.Background(), EntryQuoteRequest{PoolName: m.poolName, Side: SideNone})
	assert.ErrorIs(t, err, ErrInvalidSide)
	assert.Empty(t, m.client.Calls)
}

func TestQuoteClient_MissingReturnData(t *testing.T) {
	m := newMarket(t)
	m.expectPool(t)
	m.client.On("SimulateTransaction", mock.Anything, mock.Anything).
		Return(&blockchain.SimulationResult{Logs: []string{"Program log: nothing to see"}}, nil).Once()

	_, err := m.quotes.OraclePrice(context.Background(), m.poolName, testSOL, false)
	assert.ErrorIs(t, err, ErrMissingReturnData)
}

func TestQuoteClient_ProgramRejection(t *testing.T) {
	m := newMarket(t)
	m.expectPool(t)
	logs := []string{
		"Program " + DefaultProgramID.String() + " invoke [1]",
		"Program log: AnchorError occurred. Error Code: StaleOraclePrice. Error Number: 6003. Error Message: Stale oracle price.",
	}
	m.client.On("SimulateTransaction", mock.Anything, mock.Anything).
		Return(&blockchain.SimulationResult{Err: map[string]interface{}{"InstructionError": []interface{}{0, map[string]interface{}{"Custom": 6003}}}, Logs: logs}, nil).Once()

	_, err := m.quotes.SwapAmountAndFees(context.Background(), m.poolName, testSOL, testUSDC, 1_000)
	require.Error(t, err)

	var pe *solbc.ProgramError
	require.True(t, errors.As(err, &pe))
	require.NotNil(t, pe.Anchor)
	assert.Equal(t, 6003, pe.Anchor.Code)
	assert.Equal(t, "StaleOraclePrice", pe.Anchor.Name)
	assert.Equal(t, logs, pe.Logs)
}

func TestQuoteClient_TransportErrorPropagates(t *testing.T) {
	m := newMarket(t)
	m.expectPool(t)
	boom := errors.New("all endpoints failed")
	m.client.On("SimulateTransaction", mock.Anything, mock.Anything).Return(nil, boom).Once()

	_, err := m.quotes.LpTokenPrice(context.Background(), m.poolName)
	assert.ErrorIs(t, err, boom)
}

func TestQuoteClient_AssetsUnderManagement(t *testing.T) {
	m := newMarket(t)
	m.expectPool(t)
	want := uint128.From64(9_876_543_210)
	m.expectReturn(t, want)

	got, err := m.quotes.AssetsUnderManagement(context.Background(), m.poolName)
	require.NoError(t, err)
	assert.True(t, want.Equals(got))

	// remaining: кастоди и их оракулы после perpetuals и pool
	tx := m.client.Calls[len(m.client.Calls)-1].Arguments.Get(1).(*solana.Transaction)
	ix := tx.Message.Instructions[0]
	assert.Len(t, ix.Accounts, 2+2*len(m.poolAcc.Custodies))
}

func TestQuoteClient_UnknownCustody(t *testing.T) {
	m := newMarket(t)
	m.expectPool(t)

	_, err := m.quotes.AddLiquidityAmountAndFee(context.Background(), m.poolName, newKey(), 10)
	assert.True(t, IsNotFound(err))
}
