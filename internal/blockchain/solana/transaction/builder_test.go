package transaction

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/perps-client/internal/blockchain/solana/programs/computebudget"
)

type staticBlockhash struct {
	hash solana.Hash
	err  error
}

func (s staticBlockhash) GetLatestBlockhash(context.Context) (solana.Hash, error) {
	return s.hash, s.err
}

func memoLike(program solana.PublicKey, payer solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(program, []*solana.AccountMeta{
		solana.NewAccountMeta(payer, true, true),
	}, []byte{1, 2, 3})
}

func TestBuilder_BuildPrependsComputeBudget(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	program := solana.NewWallet().PublicKey()
	mint := solana.NewWallet()

	unsigned, err := NewBuilder(payer).
		AddInstruction(memoLike(program, payer)).
		AddSigner(mint.PrivateKey).
		Build(context.Background(), staticBlockhash{hash: solana.Hash{1}})
	require.NoError(t, err)

	tx := unsigned.Tx
	require.Len(t, tx.Message.Instructions, 2)
	first, err := tx.Message.Program(tx.Message.Instructions[0].ProgramIDIndex)
	require.NoError(t, err)
	assert.Equal(t, computebudget.ProgramID, first)

	second, err := tx.Message.Program(tx.Message.Instructions[1].ProgramIDIndex)
	require.NoError(t, err)
	assert.Equal(t, program, second)

	assert.Equal(t, payer, tx.Message.AccountKeys[0])
	assert.Empty(t, tx.Signatures)
	require.Len(t, unsigned.ExtraSigners, 1)
	assert.Equal(t, mint.PublicKey(), unsigned.ExtraSigners[0].PublicKey())
}

func TestBuilder_EmptyAndBlockhashErrors(t *testing.T) {
	payer := solana.NewWallet().PublicKey()

	_, err := NewBuilder(payer).Build(context.Background(), staticBlockhash{})
	assert.ErrorIs(t, err, ErrNoInstructions)

	boom := errors.New("boom")
	_, err = NewBuilder(payer).
		AddInstruction(memoLike(solana.SystemProgramID, payer)).
		Build(context.Background(), staticBlockhash{err: boom})
	assert.ErrorIs(t, err, boom)
}
