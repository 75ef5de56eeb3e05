package perpetuals

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestReader_GetPoolNotFound(t *testing.T) {
	m := newMarket(t)
	m.client.On("GetAccountInfo", mock.Anything, m.pool).Return(nil, rpc.ErrNotFound).Once()

	_, err := m.reader.GetPool(context.Background(), m.poolName)
	require.True(t, IsNotFound(err))

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "pool", nf.Kind)
	assert.Equal(t, m.poolName, nf.Key)
}

func TestReader_TransportErrorIsNotNotFound(t *testing.T) {
	m := newMarket(t)
	boom := errors.New("connection refused")
	m.client.On("GetAccountInfo", mock.Anything, m.pool).Return(nil, boom).Once()

	_, err := m.reader.GetPool(context.Background(), m.poolName)
	assert.ErrorIs(t, err, boom)
	assert.False(t, IsNotFound(err))
}

func TestReader_CustodyMetasOrder(t *testing.T) {
	m := newMarket(t)
	m.expectPool(t)

	metas, err := m.reader.CustodyMetas(context.Background(), m.poolName)
	require.NoError(t, err)
	require.Len(t, metas, 4)

	for i, key := range m.poolAcc.Custodies {
		assert.Equal(t, key, metas[i].PublicKey)
		assert.Equal(t, m.oracles[key], metas[len(m.poolAcc.Custodies)+i].PublicKey)
	}
	for _, meta := range metas {
		assert.False(t, meta.IsWritable)
	}
}

func TestReader_GetUserPositions(t *testing.T) {
	m := newMarket(t)
	position := &PositionAccount{
		Owner:   testOwner,
		Pool:    m.pool,
		Custody: m.poolAcc.Custodies[0],
		Side:    SideShort,
		SizeUsd: 5_000_000,
	}
	good := solana.NewWallet().PublicKey()
	bad := solana.NewWallet().PublicKey()

	m.client.On("GetProgramAccounts", mock.Anything, DefaultProgramID, mock.MatchedBy(func(opts *rpc.GetProgramAccountsOpts) bool {
		if opts == nil || len(opts.Filters) != 1 || opts.Filters[0].Memcmp == nil {
			return false
		}
		f := opts.Filters[0].Memcmp
		want := append(append([]byte{}, positionAccountDiscriminator...), testOwner.Bytes()...)
		return f.Offset == 0 && string(f.Bytes) == string(want)
	})).Return(rpc.GetProgramAccountsResult{
		{Pubkey: good, Account: &rpc.Account{Data: rpc.DataBytesOrJSONFromBytes(encodeAccount(t, positionAccountDiscriminator, position))}},
		{Pubkey: bad, Account: &rpc.Account{Data: rpc.DataBytesOrJSONFromBytes([]byte{1, 2, 3})}},
	}, nil).Once()

	entries, err := m.reader.GetUserPositions(context.Background(), testOwner)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, good, entries[0].Address)
	assert.Equal(t, SideShort, entries[0].Position.Side)
	m.client.AssertExpectations(t)
}

func TestReader_GetPoolTokenPositionsFilters(t *testing.T) {
	m := newMarket(t)
	var captured *rpc.GetProgramAccountsOpts
	m.client.On("GetProgramAccounts", mock.Anything, DefaultProgramID, mock.Anything).
		Run(func(args mock.Arguments) { captured = args.Get(2).(*rpc.GetProgramAccountsOpts) }).
		Return(rpc.GetProgramAccountsResult{}, nil).Once()

	entries, err := m.reader.GetPoolTokenPositions(context.Background(), m.poolName, testSOL)
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NotNil(t, captured)
	require.Len(t, captured.Filters, 2)
	assert.Equal(t, uint64(positionPoolOffset), captured.Filters[1].Memcmp.Offset)
	custody := m.resolver.Custody(m.pool, testSOL)
	assert.Equal(t, append(m.pool.Bytes(), custody.Bytes()...), []byte(captured.Filters[1].Memcmp.Bytes))
}

func TestReader_LoadMarketSameMint(t *testing.T) {
	m := newMarket(t)
	m.expectPool(t)

	market, err := m.reader.LoadMarket(context.Background(), m.poolName, testUSDC, testUSDC)
	require.NoError(t, err)
	assert.Same(t, market.Custody, market.CollateralCustody)
	assert.Equal(t, market.CustodyOracle(), market.CollateralOracle())
	assert.Equal(t, market.CustodyOracle().Oracle, market.CustodyOracle().Twap)
}
