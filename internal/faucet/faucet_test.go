package faucet

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/perps-client/internal/blockchain"
	"github.com/rovshanmuradov/perps-client/internal/blockchain/solana/programs/computebudget"
	"github.com/rovshanmuradov/perps-client/internal/perpetuals"
)

// mockClient реализует только чтение аккаунтов и blockhash.
type mockClient struct {
	blockchain.Client
	mock.Mock
}

func (m *mockClient) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	args := m.Called(ctx)
	return args.Get(0).(solana.Hash), args.Error(1)
}

func (m *mockClient) GetAccountInfo(ctx context.Context, pubkey solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	args := m.Called(ctx, pubkey)
	if v := args.Get(0); v != nil {
		return v.(*rpc.GetAccountInfoResult), args.Error(1)
	}
	return nil, args.Error(1)
}

var (
	testMint  = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	testAdmin = solana.MustPublicKeyFromBase58("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")
)

func newTestBuilder(t *testing.T) (*Builder, *mockClient) {
	t.Helper()
	client := &mockClient{}
	client.On("GetLatestBlockhash", mock.Anything).Return(solana.Hash{7}, nil).Maybe()
	b, err := NewBuilder(client, DefaultProgramID, testMint, computebudget.NewDefaultConfig(), zap.NewNop())
	require.NoError(t, err)
	return b, client
}

func programIDs(tx *solana.Transaction) []solana.PublicKey {
	out := make([]solana.PublicKey, 0, len(tx.Message.Instructions))
	for _, ix := range tx.Message.Instructions {
		out = append(out, tx.Message.AccountKeys[ix.ProgramIDIndex])
	}
	return out
}

func lastAccounts(tx *solana.Transaction) []solana.PublicKey {
	ix := tx.Message.Instructions[len(tx.Message.Instructions)-1]
	out := make([]solana.PublicKey, len(ix.Accounts))
	for i, idx := range ix.Accounts {
		out[i] = tx.Message.AccountKeys[idx]
	}
	return out
}

func TestDerive(t *testing.T) {
	a, err := Derive(DefaultProgramID, testMint)
	require.NoError(t, err)

	cfg, _, err := solana.FindProgramAddress([][]byte{[]byte("faucet_config"), testMint.Bytes()}, DefaultProgramID)
	require.NoError(t, err)
	assert.Equal(t, cfg, a.Config.Address)
	assert.NotEqual(t, a.Config.Address, a.MintAuthority.Address)

	again, err := Derive(DefaultProgramID, testMint)
	require.NoError(t, err)
	assert.Equal(t, a, again)

	_, err = Derive(DefaultProgramID, solana.PublicKey{})
	assert.ErrorIs(t, err, ErrNoMint)
}

func TestInstructions_AccountOrder(t *testing.T) {
	a, err := Derive(DefaultProgramID, testMint)
	require.NoError(t, err)

	ix, err := NewInitializeInstruction(DefaultProgramID, a, testAdmin)
	require.NoError(t, err)
	accounts := ix.Accounts()
	require.Len(t, accounts, 6)
	assert.Equal(t, a.Config.Address, accounts[0].PublicKey)
	assert.True(t, accounts[1].IsSigner)
	assert.Equal(t, solana.TokenProgramID, accounts[5].PublicKey)
	data, err := ix.Data()
	require.NoError(t, err)
	assert.Equal(t, initializeDiscriminator, data)

	user := solana.NewWallet().PublicKey()
	ix, err = NewMintToUserInstruction(DefaultProgramID, a, user, 1_000_000)
	require.NoError(t, err)
	data, err = ix.Data()
	require.NoError(t, err)
	require.Len(t, data, 16)
	assert.Equal(t, mintToUserDiscriminator, data[:8])
	assert.Equal(t, uint64(1_000_000), binary.LittleEndian.Uint64(data[8:]))
	for _, meta := range ix.Accounts() {
		assert.False(t, meta.IsSigner, meta.PublicKey.String())
	}
}

func TestBuilder_MintToCreatesMissingATA(t *testing.T) {
	user := solana.NewWallet().PublicKey()
	ata, _, err := solana.FindAssociatedTokenAddress(user, testMint)
	require.NoError(t, err)

	b, client := newTestBuilder(t)
	client.On("GetAccountInfo", mock.Anything, ata).Return(nil, rpc.ErrNotFound).Once()
	unsigned, err := b.MintTo(context.Background(), testAdmin, user, 5)
	require.NoError(t, err)
	assert.Equal(t, []solana.PublicKey{
		computebudget.ProgramID,
		solana.SPLAssociatedTokenAccountProgramID,
		DefaultProgramID,
	}, programIDs(unsigned.Tx))
	assert.Equal(t, ata, lastAccounts(unsigned.Tx)[2])

	b, client = newTestBuilder(t)
	client.On("GetAccountInfo", mock.Anything, ata).Return(&rpc.GetAccountInfoResult{Value: &rpc.Account{}}, nil).Once()
	unsigned, err = b.MintTo(context.Background(), testAdmin, user, 5)
	require.NoError(t, err)
	assert.Equal(t, []solana.PublicKey{computebudget.ProgramID, DefaultProgramID}, programIDs(unsigned.Tx))
	client.AssertExpectations(t)
}

func TestBuilder_MintToValidation(t *testing.T) {
	b, client := newTestBuilder(t)

	_, err := b.MintTo(context.Background(), testAdmin, solana.NewWallet().PublicKey(), 0)
	assert.True(t, perpetuals.IsValidationError(err))
	_, err = b.MintTo(context.Background(), testAdmin, solana.PublicKey{}, 1)
	assert.True(t, perpetuals.IsValidationError(err))
	client.AssertNotCalled(t, "GetAccountInfo", mock.Anything, mock.Anything)
}

func TestBuilder_TransferAuthoritySignedByAdmin(t *testing.T) {
	b, _ := newTestBuilder(t)
	unsigned, err := b.TransferAuthority(context.Background(), testAdmin)
	require.NoError(t, err)
	assert.Equal(t, testAdmin, unsigned.Tx.Message.AccountKeys[0])
	accounts := lastAccounts(unsigned.Tx)
	assert.Equal(t, b.Addresses().Config.Address, accounts[0])
	assert.Equal(t, b.Addresses().MintAuthority.Address, accounts[3])
	assert.Empty(t, unsigned.ExtraSigners)
}

func TestBuilder_GetConfig(t *testing.T) {
	b, client := newTestBuilder(t)
	want := Config{Admin: testAdmin, Mint: testMint, MintAuthority: b.Addresses().MintAuthority.Address, MintAuthorityNonce: b.Addresses().MintAuthority.Bump}

	buf := new(bytes.Buffer)
	buf.Write(configAccountDiscriminator)
	require.NoError(t, bin.NewBorshEncoder(buf).Encode(want))
	client.On("GetAccountInfo", mock.Anything, b.Addresses().Config.Address).
		Return(&rpc.GetAccountInfoResult{Value: &rpc.Account{Data: rpc.DataBytesOrJSONFromBytes(buf.Bytes())}}, nil).Once()

	got, err := b.GetConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, *got)

	client.On("GetAccountInfo", mock.Anything, b.Addresses().Config.Address).Return(nil, rpc.ErrNotFound).Once()
	_, err = b.GetConfig(context.Background())
	assert.True(t, perpetuals.IsNotFound(err))

	_, err = DecodeConfig([]byte{1, 2, 3})
	assert.ErrorIs(t, err, perpetuals.ErrAccountDiscriminator)
}
